package ssim

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrShapeMismatch is returned when two buffers that must be compared
	// element by element have different dimensions.
	ErrShapeMismatch = errors.New("buffer shapes do not match")
	// ErrInvalidParameter is returned for an unusable window size, dynamic
	// range or stabilization constant.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrEmptyBuffer is returned for buffers with no samples.
	ErrEmptyBuffer = errors.New("buffer is empty")
)

// Default tuning values from Wang et al.
const (
	DefaultWindow = 7
	DefaultK1     = 0.01
	DefaultK2     = 0.03
	DefaultL      = 255.0
)

// Border selects how the box filter extends a buffer past its edges.
type Border int

const (
	// BorderReflect101 mirrors around the edge sample without repeating it
	// (gfedcb|abcdefgh|gfedcba).
	BorderReflect101 Border = iota
	// BorderReplicate repeats the edge sample (aaaaaa|abcdefgh|hhhhhhh).
	BorderReplicate
	// BorderZero treats samples outside the buffer as 0. The average is
	// still taken over the full window.
	BorderZero
)

var borderNames = map[Border]string{
	BorderReflect101: "reflect101",
	BorderReplicate:  "replicate",
	BorderZero:       "zero",
}

func (b Border) String() string {
	if name, ok := borderNames[b]; ok {
		return name
	}
	return fmt.Sprintf("Border(%d)", int(b))
}

// ParseBorder returns the Border named s, case insensitively.
func ParseBorder(s string) (Border, error) {
	for b, name := range borderNames {
		if strings.EqualFold(s, name) {
			return b, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown border mode %q", ErrInvalidParameter, s)
}

// Params configures a single SSIM computation. Every call takes its own
// Params; the package keeps no global configuration.
type Params struct {
	// Window is the side of the averaging neighbourhood. It must be odd,
	// at least 3 and no larger than any buffer dimension.
	Window int
	// K1 and K2 scale the stabilization constants C1 and C2.
	K1, K2 float64
	// L is the dynamic range of a sample, 255 for 8-bit data.
	L float64
	// Border is the edge extension used by the box filter.
	Border Border
}

// DefaultParams returns a 7-sample window, K1 = 0.01, K2 = 0.03, L = 255 and
// reflect-101 borders.
func DefaultParams() Params {
	return Params{
		Window: DefaultWindow,
		K1:     DefaultK1,
		K2:     DefaultK2,
		L:      DefaultL,
		Border: BorderReflect101,
	}
}

// Constants returns C1 = (K1·L)² and C2 = (K2·L)².
func (p Params) Constants() (c1, c2 float64) {
	c1 = (p.K1 * p.L) * (p.K1 * p.L)
	c2 = (p.K2 * p.L) * (p.K2 * p.L)
	return c1, c2
}

// Validate checks p against buffers of the given shape. With no shape only
// the shape independent checks run.
//
// K1 and K2 may be zero; callers doing so accept NaN or Inf in the similarity
// map where both images are flat.
func (p Params) Validate(shape ...int) error {
	if !(p.L > 0) || math.IsInf(p.L, 0) {
		return fmt.Errorf("%w: dynamic range L must be positive, got %v",
			ErrInvalidParameter, p.L)
	}
	if !(p.K1 >= 0) || !(p.K2 >= 0) {
		return fmt.Errorf("%w: k1 and k2 must not be negative, got %v and %v",
			ErrInvalidParameter, p.K1, p.K2)
	}
	if _, ok := borderNames[p.Border]; !ok {
		return fmt.Errorf("%w: unknown border mode %d", ErrInvalidParameter,
			int(p.Border))
	}
	if err := checkVarianceWindow(p.Window); err != nil {
		return err
	}
	if len(shape) == 0 {
		return nil
	}
	return checkWindow(shape, p.Window)
}

// checkWindow validates a box filter window against a buffer shape.
func checkWindow(shape []int, window int) error {
	if window < 1 {
		return fmt.Errorf("%w: window must be at least 1, got %d",
			ErrInvalidParameter, window)
	}
	if window%2 == 0 {
		return fmt.Errorf("%w: window must be odd, got %d",
			ErrInvalidParameter, window)
	}
	for axis, d := range shape {
		if window > d {
			return fmt.Errorf("%w: window %d exceeds axis %d of size %d",
				ErrInvalidParameter, window, axis, d)
		}
	}
	return nil
}

// checkVarianceWindow rejects windows that cannot carry a variance estimate.
// A single sample window makes the N/(N-1) correction divide by zero.
func checkVarianceWindow(window int) error {
	if window == 1 {
		return fmt.Errorf("%w: window 1 leaves no samples for a variance "+
			"estimate", ErrInvalidParameter)
	}
	if window < 1 || window%2 == 0 {
		return checkWindow(nil, window)
	}
	return nil
}
