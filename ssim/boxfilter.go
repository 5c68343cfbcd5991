package ssim

// BoxFilter returns the uniform average of src over a window^ndim
// neighbourhood centred on every sample. The result has the same shape as src;
// samples past the edges are produced by border.
//
// A window of 1 returns a copy of src.
func BoxFilter(src *Buffer, window int, border Border) (*Buffer, error) {
	if err := checkBuffer(src); err != nil {
		return nil, err
	}
	if err := checkWindow(src.Shape, window); err != nil {
		return nil, err
	}
	return boxFilter(src.Data, src.Shape, window, border), nil
}

// boxFilter runs one 1-D pass per axis. The uniform kernel is separable, so
// the product of the passes equals the full window^ndim average.
func boxFilter(data []float64, shape []int, window int,
	border Border) *Buffer {
	out := &Buffer{Shape: append([]int(nil), shape...),
		Data: append([]float64(nil), data...)}
	if window == 1 {
		return out
	}

	scratch := make([]float64, len(data))
	line := make([]float64, 0, maxInt(shape)+window-1)
	for axis, stride := range strides(shape) {
		filterAxis(scratch, out.Data, shape[axis], stride, window, border,
			line)
		out.Data, scratch = scratch, out.Data
	}
	return out
}

// filterAxis averages window consecutive samples along one axis of length n
// whose neighbours are stride elements apart.
func filterAxis(dst, src []float64, n, stride, window int, border Border,
	line []float64) {
	half := window / 2
	blockLen := n * stride
	div := float64(window)

	for block := 0; block < len(src); block += blockLen {
		for inner := 0; inner < stride; inner++ {
			base := block + inner

			line = line[:0]
			for i := -half; i < n+half; i++ {
				j, ok := edgeIndex(i, n, border)
				if !ok {
					line = append(line, 0)
					continue
				}
				line = append(line, src[base+j*stride])
			}

			for i := 0; i < n; i++ {
				var sum float64
				for _, v := range line[i : i+window] {
					sum += v
				}
				dst[base+i*stride] = sum / div
			}
		}
	}
}

// edgeIndex maps a possibly out of range index onto [0, n). ok is false when
// the sample is a constant zero.
func edgeIndex(i, n int, border Border) (int, bool) {
	if i >= 0 && i < n {
		return i, true
	}

	switch border {
	case BorderZero:
		return 0, false
	case BorderReplicate:
		if i < 0 {
			return 0, true
		}
		return n - 1, true
	}

	if n == 1 {
		return 0, true
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		} else {
			i = 2*(n-1) - i
		}
	}
	return i, true
}

func maxInt(values []int) int {
	var m int
	for _, v := range values {
		m = max(m, v)
	}
	return m
}
