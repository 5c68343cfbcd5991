// Package ssim computes the Structural Similarity Index between two buffers
// of equal shape.
//
// Local statistics come from a uniform box filter rather than the Gaussian
// window of the original paper. Edges are extended with reflect-101 unless
// Params.Border says otherwise; the choice changes scores near the borders.
//
// Every function is pure and allocates its own working buffers, so calls on
// independent inputs may run concurrently.
package ssim

import "fmt"

// Result is the outcome of one comparison.
type Result struct {
	// Map holds the per-sample similarity and has the shape of the inputs.
	Map *Buffer
	// Score is the mean of Map.
	Score float64
}

// Compute returns the similarity map of a and b and its mean.
func Compute(a, b *Buffer, p Params) (Result, error) {
	if err := checkPair(a, b); err != nil {
		return Result{}, err
	}
	if err := p.Validate(a.Shape...); err != nil {
		return Result{}, err
	}

	stats, err := ComputeStatistics(a, b, p.Window, p.Border)
	if err != nil {
		return Result{}, err
	}

	c1, c2 := p.Constants()
	m, err := SimilarityMap(stats, c1, c2)
	if err != nil {
		return Result{}, err
	}

	return Result{Map: m, Score: m.Mean()}, nil
}

// Score returns only the mean similarity of a and b.
func Score(a, b *Buffer, p Params) (float64, error) {
	res, err := Compute(a, b, p)
	if err != nil {
		return 0, err
	}
	return res.Score, nil
}

// SimilarityMap combines windowed statistics into
//
//	(2·ux·uy + C1)(2·vxy + C2) / ((ux² + uy² + C1)(vx + vy + C2))
//
// evaluated per sample. Nothing guards the division: with C1 = C2 = 0 flat
// regions yield NaN.
func SimilarityMap(s Statistics, c1, c2 float64) (*Buffer, error) {
	parts := []*Buffer{s.MeanA, s.MeanB, s.VarA, s.VarB, s.Cov}
	for _, p := range parts {
		if err := checkPair(s.MeanA, p); err != nil {
			return nil, fmt.Errorf("statistics: %w", err)
		}
	}

	out := &Buffer{Shape: append([]int(nil), s.MeanA.Shape...),
		Data: make([]float64, len(s.MeanA.Data))}

	for i := range out.Data {
		ux, uy := s.MeanA.Data[i], s.MeanB.Data[i]
		num := (2*ux*uy + c1) * (2*s.Cov.Data[i] + c2)
		den := (ux*ux + uy*uy + c1) * (s.VarA.Data[i] + s.VarB.Data[i] + c2)
		out.Data[i] = num / den
	}
	return out, nil
}
