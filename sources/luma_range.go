package sources

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/GreatValueCreamSoda/gossim/comparator"
)

// LimitedRangeExpander stretches limited range luma (16-235 at 8 bits,
// shifted left by depth-8 above that) to the full sample range so video
// frames compare fairly against full range stills.
type LimitedRangeExpander struct {
	props comparator.FrameProps
	lut   []uint16
	plane []byte
}

func NewLimitedRangeExpander(props comparator.FrameProps) (
	*LimitedRangeExpander, error) {
	if err := props.Validate(); err != nil {
		return nil, err
	}
	if props.BitDepth < 8 {
		return nil, fmt.Errorf("limited range needs at least 8 bits, got %d",
			props.BitDepth)
	}

	shift := props.BitDepth - 8
	black := float64(int(16) << shift)
	span := float64(int(219) << shift)
	maxValue := props.MaxValue()

	lut := make([]uint16, 1<<props.BitDepth)
	for v := range lut {
		full := math.Round((float64(v) - black) * maxValue / span)
		lut[v] = uint16(min(max(full, 0), maxValue))
	}

	return &LimitedRangeExpander{
		props: props,
		lut:   lut,
		plane: make([]byte, props.RowBytes()*props.Height),
	}, nil
}

// Expand converts a plane with the given line size and returns the tightly
// packed full range plane. The result is reused by the next call.
func (e *LimitedRangeExpander) Expand(data []byte, lineSize int) ([]byte,
	error) {
	rowBytes := e.props.RowBytes()
	if lineSize < rowBytes || len(data) < lineSize*(e.props.Height-1)+rowBytes {
		return nil, fmt.Errorf("plane of %d bytes with line size %d is too "+
			"small for %dx%d", len(data), lineSize, e.props.Width,
			e.props.Height)
	}

	wide := e.props.BytesPerSample() == 2
	mask := uint16(len(e.lut) - 1)
	for y := 0; y < e.props.Height; y++ {
		src := data[y*lineSize : y*lineSize+rowBytes]
		dst := e.plane[y*rowBytes : (y+1)*rowBytes]
		if !wide {
			for x, v := range src {
				dst[x] = byte(e.lut[v])
			}
			continue
		}
		for x := 0; x < e.props.Width; x++ {
			v := binary.LittleEndian.Uint16(src[2*x:]) & mask
			binary.LittleEndian.PutUint16(dst[2*x:], e.lut[v])
		}
	}
	return e.plane, nil
}
