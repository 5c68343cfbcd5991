package comparator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/GreatValueCreamSoda/gossim/blockingpool"
	"golang.org/x/sync/errgroup"
)

// Unbounded is returned by Source.GetNumFrames when the number of frames is
// not known in advance, such as a repeating still image or a live camera.
const Unbounded = -1

var ErrFrameSizeMismatch = errors.New("reference and distorted frames " +
	"have different resolutions")

// ProgressCallback is called once per compared frame pair. total is the
// requested number of frames, or zero or less when the run lasts until a
// source ends.
type ProgressCallback func(done int, total int)

// Source delivers luma frames. GetFrame returns io.EOF once the source is
// exhausted.
type Source interface {
	GetFrame(*Frame) error
	GetFrameProps() FrameProps
	GetNumFrames() int
	GetFrameRate() float32
	Close() error
}

// Metric is the interface that every metric must implement
type Metric interface {
	Name() string
	Close()
	Compute(a, b *Frame) (map[string]float64, error)
}

// metricResult holds the computed metric scores for a specific frame pair.
// The scores are a map of metric names to their float64 values.
type metricResult struct {
	// The index of the frame pair these scores belong to.
	index  int
	scores map[string]float64 // Map of metric names to computed scores.
}

// framePair is one reference frame and the distorted frame it is compared
// with.
type framePair struct {
	index           int
	reference, dist *Frame
}

// Comparator orchestrates the concurrent comparison of a reference source and
// a distorted source using a set of metrics.
//
// It reads frames from both sources in parallel, pairs them, computes the
// requested metrics on each pair using a configurable number of worker
// goroutines, and aggregates the results.
//
// The zero value is not valid; use NewComparator to construct an instance. A
// Comparator runs once.
type Comparator struct {
	// reference is usually a still image repeated for every frame of
	// distorted.
	reference, distorted Source
	// List of metrics whose scores will be computed on each frame pair.
	metrics []Metric
	// The number of frame pairs metrics will be run on concurrently. Each
	// metric is additionally called concurrently within a pair.
	frameThreads int
	// Reusable frame buffers. Reader threads fill them, metric threads return
	// them.
	framePoolRef, framePoolDist blockingpool.BlockingPool[*Frame]
	// The number of frame pairs to compare. Zero or less compares until a
	// source returns io.EOF.
	numFrames int
	// streamEnd is the number of frames the first exhausted source produced,
	// or -1 while both sources are still delivering.
	streamEnd atomic.Int64

	// Internal channels for the pipeline stages.

	// refFrameChan and distFrameChan carry frames, in order, from the two
	// reader threads to the pairing goroutine.
	refFrameChan, distFrameChan chan *Frame

	// fPairChan is the channel all metric threads read from.
	fPairChan chan framePair

	// scoresChan is the channel metric threads send their results to. It is
	// consumed by the aggregation goroutine.
	scoresChan chan metricResult

	// finalScores accumulates per-metric lists of per-frame scores. It is
	// populated during Run by the aggregation goroutine.
	finalScores map[string][]float64

	// ctx is the context all pipeline goroutines run with during Run. It is
	// canceled if any stage fails.
	ctx context.Context

	progress ProgressCallback
}

// NewComparator creates a new Comparator instance.
//
// Validates inputs, preallocates reusable frame buffers, and initializes
// channels. Both sources must deliver frames of the same resolution; the
// comparator never crops or scales.
//
// frameThreads controls how many frame pairs are processed concurrently. If
// any metric requires strict sequential processing, set frameThreads = 1.
//
// numFrames specifies how many frame pairs to compare. It must not exceed the
// frames available in a bounded source. Zero or less compares until one of
// the sources returns io.EOF.
func NewComparator(reference, distorted Source, metrics []Metric,
	frameThreads, numFrames int) (*Comparator, error) {
	c := &Comparator{
		reference:    reference,
		distorted:    distorted,
		metrics:      metrics,
		frameThreads: frameThreads,
		numFrames:    numFrames,
		finalScores:  make(map[string][]float64),
	}
	c.streamEnd.Store(-1)

	if err := c.validateArguments(); err != nil {
		return nil, err
	}

	totalBuffers := c.calculateTotalNumberOfFrameBuffers()

	c.framePoolRef = blockingpool.NewBlockingPool[*Frame](totalBuffers)
	c.framePoolDist = blockingpool.NewBlockingPool[*Frame](totalBuffers)

	for range totalBuffers {
		if err := c.allocateFrameBuffer(); err != nil {
			return nil, err
		}
	}

	c.scoresChan = make(chan metricResult, frameThreads)

	return c, nil
}

func (c *Comparator) validateArguments() error {
	if c.reference == nil || c.distorted == nil {
		return errors.New("either the reference or the distorted source " +
			"was passed as a nil ptr")
	}

	if len(c.metrics) < 1 {
		return errors.New("at least one metric must be passed to measure with")
	}

	if c.frameThreads < 1 {
		return errors.New("at least 1 frame thread must be used to compare")
	}

	refProps, distProps := c.reference.GetFrameProps(),
		c.distorted.GetFrameProps()
	if err := refProps.Validate(); err != nil {
		return fmt.Errorf("reference: %w", err)
	}
	if err := distProps.Validate(); err != nil {
		return fmt.Errorf("distorted: %w", err)
	}
	if refProps.Width != distProps.Width ||
		refProps.Height != distProps.Height {
		return fmt.Errorf("%w: %dx%d vs %dx%d", ErrFrameSizeMismatch,
			refProps.Width, refProps.Height, distProps.Width, distProps.Height)
	}

	if c.numFrames <= 0 {
		return nil
	}

	if n := c.reference.GetNumFrames(); n != Unbounded && n < c.numFrames {
		return errors.New("reference has less frames than number of frames " +
			"to be compared")
	}

	if n := c.distorted.GetNumFrames(); n != Unbounded && n < c.numFrames {
		return errors.New("distorted source has less frames than number of " +
			"frames to be compared")
	}

	return nil
}

// calculateTotalNumberOfFrameBuffers returns conservative estimate of needed
// buffers accounting for pipeline stages and worker concurrency.
func (c *Comparator) calculateTotalNumberOfFrameBuffers() int {
	c.refFrameChan = make(chan *Frame, 1)
	c.distFrameChan = make(chan *Frame, 1)
	var totalFrameBuffers int = 1

	c.fPairChan = make(chan framePair, c.frameThreads/2)
	totalFrameBuffers = totalFrameBuffers + (c.frameThreads/2 + 1) +
		c.frameThreads

	return totalFrameBuffers
}

func (c *Comparator) allocateFrameBuffer() error {
	ref, err := NewFrame(c.reference.GetFrameProps())
	if err != nil {
		return err
	}
	c.framePoolRef.Put(ref)

	dist, err := NewFrame(c.distorted.GetFrameProps())
	if err != nil {
		return err
	}
	c.framePoolDist.Put(dist)

	return nil
}

// Run executes the full comparison pipeline and blocks until completion.
// Returns per-metric arrays of per-frame scores, indexed by frame number.
//
// If parentCtx is canceled the scores gathered so far are returned together
// with the context's error.
func (c *Comparator) Run(parentCtx context.Context) (
	map[string][]float64, error) {
	group, ctx := errgroup.WithContext(parentCtx)
	c.ctx = ctx

	group.Go(c.spawnReaderThreads)

	group.Go(func() error {
		defer close(c.fPairChan)
		return c.spawnFramePairThreads()
	})

	group.Go(func() error {
		defer close(c.scoresChan)
		return c.spawnMetricsThreads()
	})

	group.Go(c.aggregateResults)

	err := group.Wait()
	return c.finalScores, err
}

// SetProgressCallback registers an optional progress callback. Must be called
// before Run(). Pass nil to clear.
func (c *Comparator) SetProgressCallback(cb ProgressCallback) {
	c.progress = cb
}

// ----------------------------------------------------------------------------
// Reader Threads
// ----------------------------------------------------------------------------

// spawnReaderThreads starts two goroutines to read the reference and the
// distorted source in parallel.
//
// If any error occurs execution is terminated early and the error is returned
func (c *Comparator) spawnReaderThreads() error {
	group, ctx := errgroup.WithContext(c.ctx)

	group.Go(func() error {
		return c.readerThread(ctx, c.reference, c.refFrameChan,
			c.framePoolRef)
	})
	group.Go(func() error {
		return c.readerThread(ctx, c.distorted, c.distFrameChan,
			c.framePoolDist)
	})

	return group.Wait()
}

// readerThread reads from the supplied source and sends the frames to
// frameChan until numFrames frames are read, a source runs dry or the context
// is canceled.
func (c *Comparator) readerThread(ctx context.Context, source Source,
	frameChan chan<- *Frame,
	framePool blockingpool.BlockingPool[*Frame]) error {
	defer close(frameChan)

	for i := 0; c.numFrames <= 0 || i < c.numFrames; i++ {
		if end := c.streamEnd.Load(); end >= 0 && int64(i) >= end {
			return nil
		}

		frame, err := framePool.GetContext(ctx)
		if err != nil {
			return err
		}

		err = source.GetFrame(frame)
		if errors.Is(err, io.EOF) {
			framePool.Put(frame)
			c.endStream(i)
			return nil
		}
		if err != nil {
			framePool.Put(frame)
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case frameChan <- frame:
		}
	}

	return nil
}

// endStream records that a source produced only n frames. The other reader
// stops once it has produced as many.
func (c *Comparator) endStream(n int) {
	for {
		cur := c.streamEnd.Load()
		if cur >= 0 && cur <= int64(n) {
			return
		}
		if c.streamEnd.CompareAndSwap(cur, int64(n)) {
			return
		}
	}
}

// ----------------------------------------------------------------------------
// Frame Pair Threads
// ----------------------------------------------------------------------------

// spawnFramePairThreads consumes one frame from each reader channel, pairs
// them, and sends the pair on fPairChan.
//
// It returns once either reader channel is closed or numFrames pairs were
// sent. Frames the other reader produced past the end are returned to their
// pool.
func (c *Comparator) spawnFramePairThreads() error {
	defer c.drain(c.distFrameChan, c.framePoolDist)
	defer c.drain(c.refFrameChan, c.framePoolRef)

	for i := 0; c.numFrames <= 0 || i < c.numFrames; i++ {
		var ref, dist *Frame
		var ok bool

		select {
		case <-c.ctx.Done():
			return c.ctx.Err()
		case ref, ok = <-c.refFrameChan:
			if !ok {
				return nil
			}
		}

		select {
		case <-c.ctx.Done():
			return c.ctx.Err()
		case dist, ok = <-c.distFrameChan:
			if !ok {
				c.framePoolRef.Put(ref)
				return nil
			}
		}

		select {
		case <-c.ctx.Done():
			return c.ctx.Err()
		case c.fPairChan <- framePair{i, ref, dist}:
		}
	}
	return nil
}

// drain returns unpaired frames to framePool until the reader closes
// frameChan. Once one stream ended the reader stops after streamEnd frames.
func (c *Comparator) drain(frameChan <-chan *Frame,
	framePool blockingpool.BlockingPool[*Frame]) {
	if c.ctx.Err() != nil {
		return
	}
	for frame := range frameChan {
		framePool.Put(frame)
	}
}

// ----------------------------------------------------------------------------
// Metric Threads
// ----------------------------------------------------------------------------

// spawnMetricsThreads starts frameThreads goroutines that each run
// metricThread, consuming frame pairs and producing metricResult values.
//
// If any error occurs execution is terminated early and the error is returned
func (c *Comparator) spawnMetricsThreads() error {
	group, ctx := errgroup.WithContext(c.ctx)

	for range c.frameThreads {
		group.Go(func() error { return c.metricThread(ctx) })
	}

	return group.Wait()
}

// metricThread consumes frame pairs from fPairChan, computes all requested
// metrics for each pair in parallel, and sends a metricResult on scoresChan.
func (c *Comparator) metricThread(ctx context.Context) error {
	for pair := range withContext(ctx, c.fPairChan) {
		scores, err := c.computeFrameMetrics(ctx, pair)
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case c.scoresChan <- metricResult{pair.index, scores}:
		}
	}
	return ctx.Err()
}

// computeFrameMetrics runs all metrics in parallel for one frame pair. Returns
// frames to pools on exit (via defer).
func (c *Comparator) computeFrameMetrics(ctx context.Context,
	pair framePair) (map[string]float64, error) {
	defer c.framePoolRef.Put(pair.reference)
	defer c.framePoolDist.Put(pair.dist)

	result := make(map[string]float64, len(c.metrics)*2)

	if len(c.metrics) == 1 {
		return result, c.computeFrameMetric(pair, result, c.metrics[0], nil)
	}

	var mu sync.Mutex
	group, _ := errgroup.WithContext(ctx)

	for _, metric := range c.metrics {
		group.Go(func() error {
			return c.computeFrameMetric(pair, result, metric, &mu)
		})
	}

	return result, group.Wait()
}

// computeFrameMetric invokes a single Metric's Compute method and merges its
// results into the result map, returning an error on failure or duplicate
// keys. mu may be nil when only one metric writes to res.
func (c *Comparator) computeFrameMetric(pair framePair, res map[string]float64,
	metric Metric, mu *sync.Mutex) error {
	scores, err := metric.Compute(pair.reference, pair.dist)
	if err != nil {
		return fmt.Errorf("%s computation failed: %w", metric.Name(), err)
	}

	if mu != nil {
		mu.Lock()
		defer mu.Unlock()
	}
	for k, v := range scores {
		if _, exists := res[k]; exists {
			return fmt.Errorf("duplicate metric %q from %s", k, metric.Name())
		}
		res[k] = v
	}

	return nil
}

// ----------------------------------------------------------------------------
// Aggregation Threads
// ----------------------------------------------------------------------------

// aggregateResults consumes all metricResult values from scoresChan and
// accumulates them into the Comparator's finalScores map.
func (c *Comparator) aggregateResults() error {
	completed := 0
	for res := range withContext(c.ctx, c.scoresChan) {
		if res.index < 0 || (c.numFrames > 0 && res.index >= c.numFrames) {
			return errors.New("aggregated index outside of numframes")
		}
		for name, val := range res.scores {
			scores := c.finalScores[name]
			for len(scores) <= res.index {
				scores = append(scores, 0)
			}
			scores[res.index] = val
			c.finalScores[name] = scores
		}
		completed++
		if c.progress != nil {
			c.progress(completed, c.numFrames)
		}
	}
	return c.ctx.Err()
}

// withContext returns a new read-only channel that mirrors values from the
// input channel ch until either ch is closed or the provided context ctx is
// canceled.
//
// The returned channel will be closed when one of the following occurs:
//   - The input channel ch is closed (all values have been forwarded).
//   - The context ctx is canceled (ctx.Done() becomes readable).
func withContext[T any](ctx context.Context, ch <-chan T) <-chan T {
	out := make(chan T, 1)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
