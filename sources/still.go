package sources

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/GreatValueCreamSoda/gossim/comparator"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	ErrCannotOpenReference = errors.New("cannot open reference image")
	// ErrEmptyFrame is returned by live sources that stop delivering frames.
	ErrEmptyFrame = errors.New("cannot capture image")
)

// StillImage is a Source repeating one decoded image forever. Colour images
// are reduced to BT.601 luma.
type StillImage struct {
	plane  []byte
	props  comparator.FrameProps
	format string
}

// NewStillImage decodes the image at path. PNG, JPEG, GIF, BMP, TIFF and WebP
// are supported.
func NewStillImage(path string) (*StillImage, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCannotOpenReference, err)
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCannotOpenReference, path, err)
	}

	still, err := FromImage(img)
	if err != nil {
		return nil, err
	}
	still.format = format
	return still, nil
}

// FromImage builds a StillImage from an already decoded image. Images with
// 16-bit channels keep a 16-bit luma plane.
func FromImage(img image.Image) (*StillImage, error) {
	bounds := img.Bounds()
	props := comparator.FrameProps{Width: bounds.Dx(), Height: bounds.Dy(),
		BitDepth: 8}
	if isDeep(img) {
		props.BitDepth = 16
	}
	if err := props.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCannotOpenReference, err)
	}

	return &StillImage{plane: lumaPlane(img, props), props: props}, nil
}

func isDeep(img image.Image) bool {
	switch img.(type) {
	case *image.Gray16, *image.RGBA64, *image.NRGBA64:
		return true
	}
	return false
}

// lumaPlane returns the tightly packed luma samples of img.
func lumaPlane(img image.Image, props comparator.FrameProps) []byte {
	bounds := img.Bounds()
	rowBytes := props.RowBytes()
	plane := make([]byte, rowBytes*props.Height)

	if gray, ok := img.(*image.Gray); ok {
		for y := 0; y < props.Height; y++ {
			start := gray.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			copy(plane[y*rowBytes:], gray.Pix[start:start+rowBytes])
		}
		return plane
	}

	for y := 0; y < props.Height; y++ {
		row := plane[y*rowBytes:]
		for x := 0; x < props.Width; x++ {
			c := img.At(bounds.Min.X+x, bounds.Min.Y+y)
			if props.BitDepth > 8 {
				g := color.Gray16Model.Convert(c).(color.Gray16)
				binary.LittleEndian.PutUint16(row[2*x:], g.Y)
			} else {
				row[x] = color.GrayModel.Convert(c).(color.Gray).Y
			}
		}
	}
	return plane
}

func (s *StillImage) GetFrame(frame *comparator.Frame) error {
	return frame.Write(s.plane, s.props.RowBytes())
}

func (s *StillImage) GetFrameProps() comparator.FrameProps { return s.props }

// GetNumFrames returns comparator.Unbounded; a still never runs out.
func (s *StillImage) GetNumFrames() int { return comparator.Unbounded }

// GetFrameRate returns 0, a still has no timing of its own.
func (s *StillImage) GetFrameRate() float32 { return 0 }

// Format returns the name of the decoder that read the image, empty for
// images built with FromImage.
func (s *StillImage) Format() string { return s.format }

func (s *StillImage) Close() error { return nil }
