// Package ffms reads the luma plane of video files through FFMS2.
package ffms

import (
	"errors"
	"fmt"
	"io"
	"runtime"

	goffms "github.com/GreatValueCreamSoda/goffms2"
	"github.com/GreatValueCreamSoda/gopixfmts"
	"github.com/GreatValueCreamSoda/gossim/comparator"
	"github.com/GreatValueCreamSoda/gossim/sources"
)

var ErrRGBUnsupported = errors.New("rgb pixel formats carry no luma plane")

// Reader is a comparator.Source decoding frames in order.
type Reader struct {
	video        *goffms.VideoSource
	currentIndex int
	numFrames    int
	frameRate    float32
	props        comparator.FrameProps
	// expander is set for limited range streams.
	expander *sources.LimitedRangeExpander
}

// NewFFms2Reader indexes path and opens its first video track. When width and
// height are positive frames are scaled to that size, otherwise they keep the
// encoded resolution.
func NewFFms2Reader(path string, width, height int) (*Reader, error) {
	var err error

	var indexer *goffms.Indexer
	if indexer, _, err = goffms.CreateIndexer(path); err != nil {
		return nil, err
	}

	var index *goffms.Index
	if index, _, err = indexer.DoIndexing(goffms.IEHAbort); err != nil {
		return nil, err
	}
	defer index.Close()

	track, _, err := index.GetFirstTrackOfType(goffms.TypeVideo)
	if err != nil {
		return nil, err
	}

	var decThreads int = runtime.NumCPU() / 2
	video, _, err := goffms.CreateVideoSource(path, index, track, decThreads,
		goffms.SeekNormal)
	if err != nil {
		return nil, err
	}

	reader, err := newReader(video, width, height)
	if err != nil {
		video.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reader, nil
}

func newReader(video *goffms.VideoSource, width, height int) (*Reader,
	error) {
	props, err := video.GetVideoProperties()
	if err != nil {
		return nil, err
	}

	ff, _, err := video.GetFrame(0)
	if err != nil {
		return nil, err
	}

	if width <= 0 || height <= 0 {
		width, height = ff.EncodedWidth, ff.EncodedHeight
	}

	_, _, err = video.SetOutputFormatV2([]int{ff.EncodedPixelFormat}, width,
		height, goffms.ResizerBicubic)
	if err != nil {
		return nil, err
	}

	ff, _, err = video.GetFrame(0)
	if err != nil {
		return nil, err
	}

	depth, err := lumaDepth(ff.ConvertedPixelFormat)
	if err != nil {
		return nil, err
	}

	reader := &Reader{
		video:     video,
		numFrames: props.NumFrames,
		props: comparator.FrameProps{Width: ff.ScaledWidth,
			Height: ff.ScaledHeight, BitDepth: depth},
	}
	if props.FPSDenominator > 0 {
		reader.frameRate = float32(props.FPSNumerator) /
			float32(props.FPSDenominator)
	}

	if ff.ColorRange == int(gopixfmts.ColorRangeMPEG) || ff.ColorRange == 0 {
		reader.expander, err = sources.NewLimitedRangeExpander(reader.props)
		if err != nil {
			return nil, err
		}
	}

	return reader, nil
}

// lumaDepth returns the bit depth of the first plane of pixFmt.
func lumaDepth(pixFmt int) (int, error) {
	desc, err := gopixfmts.PixFmtDescGet(gopixfmts.PixelFormat(pixFmt))
	if err != nil {
		return 0, err
	}

	if desc.Flags()&uint64(gopixfmts.PixFmtFlagRGB) != 0 {
		return 0, fmt.Errorf("%w: %s", ErrRGBUnsupported, desc.Name())
	}

	comp, err := desc.Component(0)
	if err != nil {
		return 0, err
	}

	switch comp.Depth {
	case 8, 9, 10, 12, 14, 16:
		return int(comp.Depth), nil
	default:
		return 0, fmt.Errorf("unsupported luma depth %d in %s", comp.Depth,
			desc.Name())
	}
}

func (s *Reader) GetFrame(frame *comparator.Frame) error {
	if s.currentIndex >= s.numFrames {
		return io.EOF
	}

	ffmsFrame, _, err := s.video.GetFrame(s.currentIndex)
	if err != nil {
		return err
	}

	plane, lineSize := ffmsFrame.Data[0], ffmsFrame.Linesize[0]
	if s.expander != nil {
		if plane, err = s.expander.Expand(plane, lineSize); err != nil {
			return err
		}
		lineSize = s.props.RowBytes()
	}

	if err := frame.Write(plane, lineSize); err != nil {
		return err
	}

	s.currentIndex++
	return nil
}

func (s *Reader) GetFrameProps() comparator.FrameProps { return s.props }
func (s *Reader) GetNumFrames() int                    { return s.numFrames }
func (s *Reader) GetFrameRate() float32                { return s.frameRate }

func (s *Reader) Close() error { return s.video.Close() }
