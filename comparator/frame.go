package comparator

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/GreatValueCreamSoda/gossim/ssim"
)

// FrameProps describes the single luma plane a Source delivers.
type FrameProps struct {
	Width, Height int
	// BitDepth is the number of significant bits per sample, 1 to 16.
	// Samples deeper than 8 bits are stored as 16-bit little endian.
	BitDepth int
}

// BytesPerSample returns the storage size of one sample.
func (p FrameProps) BytesPerSample() int {
	if p.BitDepth > 8 {
		return 2
	}
	return 1
}

// RowBytes returns the number of meaningful bytes in one row.
func (p FrameProps) RowBytes() int { return p.Width * p.BytesPerSample() }

// MaxValue returns the largest sample value, 2^BitDepth - 1.
func (p FrameProps) MaxValue() float64 {
	return float64(uint32(1)<<uint(p.BitDepth) - 1)
}

// Validate reports whether the properties describe a usable plane.
func (p FrameProps) Validate() error {
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("invalid frame resolution: %dx%d", p.Width,
			p.Height)
	}
	if p.BitDepth < 1 || p.BitDepth > 16 {
		return fmt.Errorf("unsupported bit depth %d", p.BitDepth)
	}
	return nil
}

// Frame holds a single luma plane. Rows are lineSize bytes apart; only the
// first RowBytes() of each row carry samples.
type Frame struct {
	data     []byte
	lineSize int
	props    FrameProps
}

// NewFrame allocates a tightly packed frame for the given properties.
func NewFrame(props FrameProps) (*Frame, error) {
	if err := props.Validate(); err != nil {
		return nil, err
	}
	return &Frame{
		data:     make([]byte, props.RowBytes()*props.Height),
		lineSize: props.RowBytes(),
		props:    props,
	}, nil
}

// Props returns the frame's resolution and bit depth.
func (f *Frame) Props() FrameProps { return f.props }

// Read returns the plane and its line size. The slice must not be modified.
func (f *Frame) Read() ([]byte, int) { return f.data, f.lineSize }

// Write copies a plane with the given line size into the frame, row by row,
// so sources with padded rows can hand over their decoder buffers directly.
func (f *Frame) Write(data []byte, lineSize int) error {
	rowBytes := f.props.RowBytes()
	if lineSize < rowBytes {
		return fmt.Errorf("line size %d is shorter than a row of %d bytes",
			lineSize, rowBytes)
	}
	need := lineSize*(f.props.Height-1) + rowBytes
	if len(data) < need {
		return fmt.Errorf("failed to write frame data. need %d bytes, got %d",
			need, len(data))
	}

	for y := 0; y < f.props.Height; y++ {
		copy(f.data[y*f.lineSize:y*f.lineSize+rowBytes],
			data[y*lineSize:y*lineSize+rowBytes])
	}
	return nil
}

// ToBuffer converts the plane into dst, a height x width buffer, rescaling
// samples from the frame's bit depth to depth. Equal depths copy the sample
// values unchanged.
func (f *Frame) ToBuffer(dst *ssim.Buffer, depth int) error {
	if dst == nil {
		return errors.New("destination buffer is nil")
	}
	if len(dst.Shape) != 2 || dst.Shape[0] != f.props.Height ||
		dst.Shape[1] != f.props.Width {
		return fmt.Errorf("%w: frame is %dx%d, buffer shape is %v",
			ssim.ErrShapeMismatch, f.props.Width, f.props.Height, dst.Shape)
	}
	if depth < 1 || depth > 16 {
		return fmt.Errorf("unsupported target bit depth %d", depth)
	}

	scale := 1.0
	if depth != f.props.BitDepth {
		target := FrameProps{BitDepth: depth}
		scale = target.MaxValue() / f.props.MaxValue()
	}

	wide := f.props.BytesPerSample() == 2
	for y := 0; y < f.props.Height; y++ {
		row := f.data[y*f.lineSize:]
		out := dst.Data[y*f.props.Width : (y+1)*f.props.Width]
		for x := range out {
			var v uint16
			if wide {
				v = binary.LittleEndian.Uint16(row[2*x:])
			} else {
				v = uint16(row[x])
			}
			out[x] = float64(v) * scale
		}
	}
	return nil
}
