package metrics

import (
	"errors"
	"fmt"

	"github.com/GreatValueCreamSoda/gossim/blockingpool"
	"github.com/GreatValueCreamSoda/gossim/comparator"
	"github.com/GreatValueCreamSoda/gossim/ssim"
)

const (
	// SSIMName is the score key of the mean structural similarity.
	SSIMName string = "SSIM"
	// SSIMMinName is the score key of the lowest local similarity in a frame.
	SSIMMinName string = "SSIMMin"
)

// SimilarityMapCallback receives the full result of every comparison. The
// callback may keep result.Map; it is not reused.
type SimilarityMapCallback func(ssim.Result) error

// ssimWorker owns the float buffers frames are converted into.
type ssimWorker struct {
	a, b *ssim.Buffer
}

// SSIMHandler scores frame pairs with SSIM on their luma planes.
//
// Internally it owns a blocking pool of workers, each with its own
// conversion buffers, so up to numWorkers frame pairs are scored at once.
//
// Distortion map and similarity map callbacks require a single worker.
type SSIMHandler struct {
	pool   blockingpool.BlockingPool[*ssimWorker]
	params ssim.Params
	// depth is the bit depth both frames are converted to before scoring.
	// params.L is expected to describe the same range.
	depth         int
	width, height int

	// distortionBuffer holds 1 - ssim per pixel for callback. It is reused
	// across calls.
	distortionBuffer []float32
	callback         DistortionMapCallback
	mapCallback      SimilarityMapCallback

	numWorkers int
}

func (h *SSIMHandler) Name() string { return SSIMName }

// NewSSIMHandler constructs an SSIMHandler with numWorkers workers for frames
// described by props. Frames of another bit depth are rescaled to
// props.BitDepth before scoring.
func NewSSIMHandler(numWorkers int, props comparator.FrameProps,
	params ssim.Params) (*SSIMHandler, error) {
	if numWorkers < 1 {
		return nil, errors.New("at least 1 worker must be used")
	}
	if err := props.Validate(); err != nil {
		return nil, fmt.Errorf("%s initialization failed: %w", SSIMName, err)
	}
	if err := params.Validate(props.Height, props.Width); err != nil {
		return nil, fmt.Errorf("%s initialization failed: %w", SSIMName, err)
	}

	handler := &SSIMHandler{
		pool:       blockingpool.NewBlockingPool[*ssimWorker](numWorkers),
		params:     params,
		depth:      props.BitDepth,
		width:      props.Width,
		height:     props.Height,
		numWorkers: numWorkers,
	}

	for range numWorkers {
		if err := handler.createWorker(); err != nil {
			return nil, err
		}
	}

	return handler, nil
}

// createWorker allocates the conversion buffers of one worker and adds it to
// the pool.
func (h *SSIMHandler) createWorker() error {
	a, err := ssim.NewImage(h.width, h.height)
	if err != nil {
		return fmt.Errorf("%s initialization failed: %w", SSIMName, err)
	}
	b, err := ssim.NewImage(h.width, h.height)
	if err != nil {
		return fmt.Errorf("%s initialization failed: %w", SSIMName, err)
	}
	h.pool.Put(&ssimWorker{a: a, b: b})
	return nil
}

// SetDistMapCallback registers a callback receiving 1 - ssim for every pixel
// of every compared frame.
func (h *SSIMHandler) SetDistMapCallback(callback DistortionMapCallback) error {
	if h.numWorkers > 1 {
		return errors.New("cannot request more than 1 worker when " +
			"returning a distortion map")
	}
	h.callback = callback
	return nil
}

// SetSimilarityMapCallback registers a callback receiving the similarity map
// and score of every compared frame.
func (h *SSIMHandler) SetSimilarityMapCallback(
	callback SimilarityMapCallback) error {
	if h.numWorkers > 1 {
		return errors.New("cannot request more than 1 worker when " +
			"returning a similarity map")
	}
	h.mapCallback = callback
	return nil
}

func (h *SSIMHandler) GetDistMapResolution() (int, int, error) {
	return h.width, h.height, nil
}

// Close is a no-op; workers only hold Go memory.
func (h *SSIMHandler) Close() {}

// Compute converts both frames to float buffers and returns the mean SSIM and
// the minimum of the similarity map.
func (h *SSIMHandler) Compute(a, b *comparator.Frame) (map[string]float64,
	error) {
	worker := h.pool.Get()
	defer h.pool.Put(worker)

	if err := a.ToBuffer(worker.a, h.depth); err != nil {
		return nil, fmt.Errorf("%s computation failed: %w", SSIMName, err)
	}
	if err := b.ToBuffer(worker.b, h.depth); err != nil {
		return nil, fmt.Errorf("%s computation failed: %w", SSIMName, err)
	}

	result, err := ssim.Compute(worker.a, worker.b, h.params)
	if err != nil {
		return nil, fmt.Errorf("%s computation failed: %w", SSIMName, err)
	}

	if err := h.runCallbacks(result); err != nil {
		return nil, err
	}

	return map[string]float64{
		SSIMName:    result.Score,
		SSIMMinName: result.Map.Min(),
	}, nil
}

func (h *SSIMHandler) runCallbacks(result ssim.Result) error {
	if h.mapCallback != nil {
		if err := h.mapCallback(result); err != nil {
			return err
		}
	}

	if h.callback == nil {
		return nil
	}

	if len(h.distortionBuffer) != len(result.Map.Data) {
		h.distortionBuffer = make([]float32, len(result.Map.Data))
	}
	for i, v := range result.Map.Data {
		h.distortionBuffer[i] = float32(max(1-v, 0))
	}
	return h.callback(h.distortionBuffer)
}
