package ssim

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// Buffer is a dense N-dimensional array of samples stored in row-major order,
// the last axis varying fastest. A 2-D image has Shape {height, width}.
//
// Buffers hold float64 samples. Converting integer pixel storage into a Buffer
// is the caller's job (see comparator.Frame.ToBuffer).
type Buffer struct {
	Shape []int
	Data  []float64
}

// NewBuffer allocates a zeroed buffer with the given shape.
func NewBuffer(shape ...int) (*Buffer, error) {
	n, err := volume(shape)
	if err != nil {
		return nil, err
	}
	return &Buffer{Shape: slices.Clone(shape), Data: make([]float64, n)}, nil
}

// NewBufferFrom wraps data in a buffer of the given shape. The slice is not
// copied.
func NewBufferFrom(data []float64, shape ...int) (*Buffer, error) {
	n, err := volume(shape)
	if err != nil {
		return nil, err
	}
	if len(data) != n {
		return nil, fmt.Errorf("%w: %d samples cannot fill shape %v (%d)",
			ErrShapeMismatch, len(data), shape, n)
	}
	return &Buffer{Shape: slices.Clone(shape), Data: data}, nil
}

// NewImage allocates a zeroed 2-D buffer of height rows and width columns.
func NewImage(width, height int) (*Buffer, error) {
	return NewBuffer(height, width)
}

// Len returns the number of samples.
func (b *Buffer) Len() int { return len(b.Data) }

// Dims returns the rank of the buffer.
func (b *Buffer) Dims() int { return len(b.Shape) }

// SameShape reports whether b and o have identical dimensions.
func (b *Buffer) SameShape(o *Buffer) bool {
	return b != nil && o != nil && slices.Equal(b.Shape, o.Shape)
}

// Clone returns a deep copy of b.
func (b *Buffer) Clone() *Buffer {
	return &Buffer{Shape: slices.Clone(b.Shape), Data: slices.Clone(b.Data)}
}

// At returns the sample at the given coordinates, one per axis.
func (b *Buffer) At(coords ...int) float64 { return b.Data[b.offset(coords)] }

// Set stores v at the given coordinates.
func (b *Buffer) Set(v float64, coords ...int) { b.Data[b.offset(coords)] = v }

// Mean returns the arithmetic mean of all samples.
func (b *Buffer) Mean() float64 {
	return floats.Sum(b.Data) / float64(len(b.Data))
}

// Min returns the smallest sample.
func (b *Buffer) Min() float64 { return floats.Min(b.Data) }

// Max returns the largest sample.
func (b *Buffer) Max() float64 { return floats.Max(b.Data) }

func (b *Buffer) offset(coords []int) int {
	if len(coords) != len(b.Shape) {
		panic(fmt.Sprintf("ssim: %d coordinates for a %d-D buffer",
			len(coords), len(b.Shape)))
	}
	var off int
	for axis, c := range coords {
		if c < 0 || c >= b.Shape[axis] {
			panic(fmt.Sprintf("ssim: coordinate %d out of range on axis %d",
				c, axis))
		}
		off = off*b.Shape[axis] + c
	}
	return off
}

// strides returns the element distance between neighbours along every axis.
func strides(shape []int) []int {
	s := make([]int, len(shape))
	step := 1
	for axis := len(shape) - 1; axis >= 0; axis-- {
		s[axis] = step
		step *= shape[axis]
	}
	return s
}

func volume(shape []int) (int, error) {
	if len(shape) == 0 {
		return 0, fmt.Errorf("%w: buffer has no dimensions", ErrEmptyBuffer)
	}
	n := 1
	for axis, d := range shape {
		if d <= 0 {
			return 0, fmt.Errorf("%w: axis %d has size %d", ErrEmptyBuffer,
				axis, d)
		}
		n *= d
	}
	return n, nil
}

// checkBuffer reports whether b has a valid shape whose volume matches the
// number of samples it holds.
func checkBuffer(b *Buffer) error {
	if b == nil {
		return fmt.Errorf("%w: nil buffer", ErrEmptyBuffer)
	}
	n, err := volume(b.Shape)
	if err != nil {
		return err
	}
	if len(b.Data) != n {
		return fmt.Errorf("%w: shape %v needs %d samples, got %d",
			ErrShapeMismatch, b.Shape, n, len(b.Data))
	}
	return nil
}
