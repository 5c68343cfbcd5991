// Package camera captures live frames from a local video device with OpenCV.
package camera

import (
	"fmt"
	"image"

	"github.com/GreatValueCreamSoda/gossim/comparator"
	"github.com/GreatValueCreamSoda/gossim/sources"
	"gocv.io/x/gocv"
)

var ErrEmptyFrame = sources.ErrEmptyFrame

// Camera is a comparator.Source grabbing frames from a capture device. It
// never ends on its own.
type Camera struct {
	capture *gocv.VideoCapture
	// raw is the last colour frame, kept for display.
	raw, gray, scaled gocv.Mat
	props             comparator.FrameProps
}

// NewCamera opens device. Frames are converted to 8-bit gray and resized to
// width x height when both are positive, otherwise the device resolution is
// kept.
func NewCamera(device, width, height int) (*Camera, error) {
	capture, err := gocv.VideoCaptureDevice(device)
	if err != nil {
		return nil, fmt.Errorf("cannot open camera %d: %w", device, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("cannot open camera %d", device)
	}

	c := &Camera{
		capture: capture,
		raw:     gocv.NewMat(),
		gray:    gocv.NewMat(),
		scaled:  gocv.NewMat(),
	}

	if width <= 0 || height <= 0 {
		if err := c.grab(); err != nil {
			c.Close()
			return nil, err
		}
		width, height = c.raw.Cols(), c.raw.Rows()
	}
	c.props = comparator.FrameProps{Width: width, Height: height, BitDepth: 8}

	return c, nil
}

func (c *Camera) grab() error {
	if ok := c.capture.Read(&c.raw); !ok || c.raw.Empty() {
		return ErrEmptyFrame
	}
	return nil
}

func (c *Camera) GetFrame(frame *comparator.Frame) error {
	if err := c.grab(); err != nil {
		return err
	}

	gocv.CvtColor(c.raw, &c.gray, gocv.ColorBGRToGray)

	luma := c.gray
	if luma.Cols() != c.props.Width || luma.Rows() != c.props.Height {
		gocv.Resize(c.gray, &c.scaled, image.Pt(c.props.Width,
			c.props.Height), 0, 0, gocv.InterpolationLinear)
		luma = c.scaled
	}

	return frame.Write(luma.ToBytes(), c.props.Width)
}

// Display returns the colour frame last read by GetFrame. It is overwritten
// by the next call.
func (c *Camera) Display() *gocv.Mat { return &c.raw }

func (c *Camera) GetFrameProps() comparator.FrameProps { return c.props }

// GetNumFrames returns comparator.Unbounded.
func (c *Camera) GetNumFrames() int { return comparator.Unbounded }

func (c *Camera) GetFrameRate() float32 {
	return float32(c.capture.Get(gocv.VideoCaptureFPS))
}

func (c *Camera) Close() error {
	c.raw.Close()
	c.gray.Close()
	c.scaled.Close()
	return c.capture.Close()
}
