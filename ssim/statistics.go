package ssim

import (
	"fmt"
	"math"
)

// Statistics holds the windowed moments of two buffers. Every field has the
// shape of the inputs.
type Statistics struct {
	MeanA, MeanB *Buffer // local means ux and uy
	VarA, VarB   *Buffer // local variances vx and vy
	Cov          *Buffer // local covariance vxy
}

// ComputeStatistics box-filters a, b and their elementwise products and
// derives the local means, variances and covariance.
//
// Variances carry Bessel's correction N/(N-1) with N = window^ndim, so window
// must be at least 3.
func ComputeStatistics(a, b *Buffer, window int, border Border) (Statistics,
	error) {
	if err := checkPair(a, b); err != nil {
		return Statistics{}, err
	}
	if err := checkVarianceWindow(window); err != nil {
		return Statistics{}, err
	}
	if err := checkWindow(a.Shape, window); err != nil {
		return Statistics{}, err
	}

	n := len(a.Data)
	aa := make([]float64, n)
	bb := make([]float64, n)
	ab := make([]float64, n)
	for i, x := range a.Data {
		y := b.Data[i]
		aa[i] = x * x
		bb[i] = y * y
		ab[i] = x * y
	}

	ux := boxFilter(a.Data, a.Shape, window, border)
	uy := boxFilter(b.Data, b.Shape, window, border)
	uxx := boxFilter(aa, a.Shape, window, border)
	uyy := boxFilter(bb, a.Shape, window, border)
	uxy := boxFilter(ab, a.Shape, window, border)

	np := math.Pow(float64(window), float64(len(a.Shape)))
	covNorm := np / (np - 1)

	// The second moment buffers are reused for the centred results.
	for i := range uxx.Data {
		mx, my := ux.Data[i], uy.Data[i]
		uxx.Data[i] = covNorm * (uxx.Data[i] - mx*mx)
		uyy.Data[i] = covNorm * (uyy.Data[i] - my*my)
		uxy.Data[i] = covNorm * (uxy.Data[i] - mx*my)
	}

	return Statistics{MeanA: ux, MeanB: uy, VarA: uxx, VarB: uyy, Cov: uxy},
		nil
}

func checkPair(a, b *Buffer) error {
	if err := checkBuffer(a); err != nil {
		return err
	}
	if err := checkBuffer(b); err != nil {
		return err
	}
	if !a.SameShape(b) {
		return fmt.Errorf("%w: %v and %v", ErrShapeMismatch, a.Shape, b.Shape)
	}
	return nil
}
