// Package live runs the interactive loop that scores captured frames against
// a reference until the viewer quits or the capture stops.
package live

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/GreatValueCreamSoda/gossim/comparator"
	"github.com/GreatValueCreamSoda/gossim/sources"
)

const KeyEscape = 27

// Capture delivers live frames. It returns sources.ErrEmptyFrame once no
// more frames can be grabbed.
type Capture interface {
	GetFrame(*comparator.Frame) error
	GetFrameProps() comparator.FrameProps
}

// Display presents the scores of one frame and returns the key pressed
// while it was shown, or -1 for none.
type Display interface {
	Show(scores map[string]float64) (int, error)
}

// Run compares every captured frame against reference with metric. It
// returns nil when Esc, q or Q is pressed, when the capture runs dry or when
// ctx is canceled. An empty grab is reported on w.
func Run(ctx context.Context, w io.Writer, reference *comparator.Frame,
	capture Capture, metric comparator.Metric, display Display) error {
	frame, err := comparator.NewFrame(capture.GetFrameProps())
	if err != nil {
		return err
	}

	for ctx.Err() == nil {
		err := capture.GetFrame(frame)
		if errors.Is(err, sources.ErrEmptyFrame) {
			fmt.Fprintln(w, err)
			return nil
		} else if err != nil {
			return err
		}

		scores, err := metric.Compute(reference, frame)
		if err != nil {
			return err
		}

		key, err := display.Show(scores)
		if err != nil {
			return err
		}
		switch key {
		case KeyEscape, 'q', 'Q':
			return nil
		}
	}
	return nil
}
