package comparator_test

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GreatValueCreamSoda/gossim/comparator"
)

// memorySource yields frames whose every sample equals the frame index plus
// offset. A repeating source always yields offset.
type memorySource struct {
	props     comparator.FrameProps
	numFrames int
	repeat    bool
	offset    byte
	next      int
	failAt    int
	closed    bool
}

func newMemorySource(w, h, numFrames int) *memorySource {
	return &memorySource{
		props:     comparator.FrameProps{Width: w, Height: h, BitDepth: 8},
		numFrames: numFrames,
		failAt:    -1,
	}
}

func (s *memorySource) GetFrame(f *comparator.Frame) error {
	if s.failAt >= 0 && s.next == s.failAt {
		return errors.New("decoder exploded")
	}
	if !s.repeat && s.next >= s.numFrames {
		return io.EOF
	}

	value := s.offset
	if !s.repeat {
		value += byte(s.next)
	}
	plane := make([]byte, s.props.RowBytes()*s.props.Height)
	for i := range plane {
		plane[i] = value
	}
	s.next++
	return f.Write(plane, s.props.RowBytes())
}

func (s *memorySource) GetFrameProps() comparator.FrameProps { return s.props }
func (s *memorySource) GetFrameRate() float32                { return 25 }
func (s *memorySource) Close() error                         { s.closed = true; return nil }

func (s *memorySource) GetNumFrames() int {
	if s.repeat {
		return comparator.Unbounded
	}
	return s.numFrames
}

// sampleMetric reports the first sample of each frame.
type sampleMetric struct {
	name  string
	calls atomic.Int64
	err   error
	delay time.Duration
}

func (m *sampleMetric) Name() string { return m.name }
func (m *sampleMetric) Close()       {}

func (m *sampleMetric) Compute(a, b *comparator.Frame) (map[string]float64,
	error) {
	m.calls.Add(1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.err != nil {
		return nil, m.err
	}
	aData, _ := a.Read()
	bData, _ := b.Read()
	return map[string]float64{
		m.name + "Ref":  float64(aData[0]),
		m.name + "Dist": float64(bData[0]),
	}, nil
}

func Test_Comparator_PairsFramesInOrder(t *testing.T) {
	ref := newMemorySource(4, 3, 0)
	ref.repeat = true
	ref.offset = 200
	dist := newMemorySource(4, 3, 12)
	metric := &sampleMetric{name: "probe"}

	comp, err := comparator.NewComparator(ref, dist,
		[]comparator.Metric{metric}, 3, 12)
	if err != nil {
		t.Fatal(err)
	}

	var progressCalls int
	comp.SetProgressCallback(func(done, total int) {
		progressCalls++
		if total != 12 {
			t.Errorf("expected total 12, got %d", total)
		}
	})

	scores, err := comp.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if progressCalls != 12 {
		t.Fatalf("expected 12 progress calls, got %d", progressCalls)
	}

	distScores := scores["probeDist"]
	if len(distScores) != 12 {
		t.Fatalf("expected 12 scores, got %d", len(distScores))
	}
	for i, v := range distScores {
		if v != float64(i) {
			t.Fatalf("frame %d was paired with distorted frame %v", i, v)
		}
		if scores["probeRef"][i] != 200 {
			t.Fatalf("frame %d was compared against reference %v", i,
				scores["probeRef"][i])
		}
	}
}

func Test_Comparator_RunsUntilEOF(t *testing.T) {
	ref := newMemorySource(5, 5, 0)
	ref.repeat = true
	dist := newMemorySource(5, 5, 7)
	metric := &sampleMetric{name: "probe", delay: time.Millisecond}

	comp, err := comparator.NewComparator(ref, dist,
		[]comparator.Metric{metric}, 2, 0)
	if err != nil {
		t.Fatal(err)
	}

	var lastTotal int
	comp.SetProgressCallback(func(done, total int) { lastTotal = total })

	done := make(chan struct{})
	var scores map[string][]float64
	go func() {
		defer close(done)
		scores, err = comp.Run(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("comparator did not stop at the end of the stream")
	}

	if err != nil {
		t.Fatal(err)
	}
	if lastTotal > 0 {
		t.Fatalf("expected an unknown total, got %d", lastTotal)
	}
	if got := len(scores["probeDist"]); got != 7 {
		t.Fatalf("expected 7 compared frames, got %d", got)
	}
	if got := metric.calls.Load(); got != 7 {
		t.Fatalf("expected 7 metric calls, got %d", got)
	}
}

func Test_Comparator_RejectsSizeMismatch(t *testing.T) {
	ref := newMemorySource(8, 8, 1)
	dist := newMemorySource(8, 7, 1)

	_, err := comparator.NewComparator(ref, dist,
		[]comparator.Metric{&sampleMetric{name: "probe"}}, 1, 1)
	if !errors.Is(err, comparator.ErrFrameSizeMismatch) {
		t.Fatalf("expected ErrFrameSizeMismatch, got %v", err)
	}
}

func Test_Comparator_ValidatesArguments(t *testing.T) {
	ref := newMemorySource(8, 8, 3)
	dist := newMemorySource(8, 8, 3)
	metrics := []comparator.Metric{&sampleMetric{name: "probe"}}

	if _, err := comparator.NewComparator(nil, dist, metrics, 1, 1); err == nil {
		t.Fatal("expected an error for a nil reference")
	}
	if _, err := comparator.NewComparator(ref, dist, nil, 1, 1); err == nil {
		t.Fatal("expected an error without metrics")
	}
	if _, err := comparator.NewComparator(ref, dist, metrics, 0, 1); err == nil {
		t.Fatal("expected an error without frame threads")
	}
	if _, err := comparator.NewComparator(ref, dist, metrics, 1, 4); err == nil {
		t.Fatal("expected an error when asking for more frames than exist")
	}

	bad := newMemorySource(8, 8, 3)
	bad.props.BitDepth = 0
	if _, err := comparator.NewComparator(ref, bad, metrics, 1, 1); err == nil {
		t.Fatal("expected an error for an invalid bit depth")
	}
}

func Test_Comparator_PropagatesMetricErrors(t *testing.T) {
	ref := newMemorySource(4, 4, 0)
	ref.repeat = true
	dist := newMemorySource(4, 4, 20)
	boom := errors.New("metric failed")

	comp, err := comparator.NewComparator(ref, dist,
		[]comparator.Metric{&sampleMetric{name: "probe", err: boom}}, 2, 20)
	if err != nil {
		t.Fatal(err)
	}

	_, err = comp.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected the metric error, got %v", err)
	}
}

func Test_Comparator_PropagatesSourceErrors(t *testing.T) {
	ref := newMemorySource(4, 4, 0)
	ref.repeat = true
	dist := newMemorySource(4, 4, 20)
	dist.failAt = 3

	comp, err := comparator.NewComparator(ref, dist,
		[]comparator.Metric{&sampleMetric{name: "probe"}}, 1, 0)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := comp.Run(context.Background()); err == nil ||
		err.Error() != "decoder exploded" {
		t.Fatalf("expected the decoder error, got %v", err)
	}
}

func Test_Comparator_RejectsDuplicateMetricKeys(t *testing.T) {
	ref := newMemorySource(4, 4, 2)
	dist := newMemorySource(4, 4, 2)
	metrics := []comparator.Metric{
		&sampleMetric{name: "probe"}, &sampleMetric{name: "probe"},
	}

	comp, err := comparator.NewComparator(ref, dist, metrics, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := comp.Run(context.Background()); err == nil {
		t.Fatal("expected an error for duplicate score names")
	}
}

func Test_Comparator_StopsOnCancel(t *testing.T) {
	ref := newMemorySource(4, 4, 0)
	ref.repeat = true
	dist := newMemorySource(4, 4, 0)
	dist.repeat = true

	comp, err := comparator.NewComparator(ref, dist,
		[]comparator.Metric{&sampleMetric{name: "probe"}}, 2, 0)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(),
		20*time.Millisecond)
	defer cancel()

	_, err = comp.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
}
