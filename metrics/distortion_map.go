package metrics

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"
	"sync"

	"github.com/GreatValueCreamSoda/gossim/comparator"
)

var ErrInvalidClipping = errors.New("clipping value must be > 0")

// MetricWithDistortionMap is a Metric that can hand every per-pixel
// distortion map it computes to a callback.
type MetricWithDistortionMap interface {
	SetDistMapCallback(DistortionMapCallback) error
	GetDistMapResolution() (int, int, error)
	comparator.Metric
}

// DistortionMapCallback receives one row-major distortion map per frame. The
// slice is reused by the next call.
type DistortionMapCallback func([]float32) error

// HeatmapWriter streams distortion maps as normalized grayf32le frames into a
// sink, usually the stdin of an ffmpeg process.
type HeatmapWriter struct {
	pipe io.WriteCloser
	// wait is called after the pipe is closed. It may be nil.
	wait func() error

	maxValue float32

	normalized []float32
	byteBuf    []byte

	closeOnce sync.Once
	closeErr  error
}

// NewHeatmapWriter returns a writer normalizing maps to [0, 1] by maxValue
// and writing them to pipe.
func NewHeatmapWriter(pipe io.WriteCloser, wait func() error,
	maxValue float32) (*HeatmapWriter, error) {
	if maxValue <= 0 {
		return nil, ErrInvalidClipping
	}
	return &HeatmapWriter{pipe: pipe, wait: wait, maxValue: maxValue}, nil
}

// WriteDistMapToVideo starts ffmpeg encoding the distortion maps of metric
// to path with a heat pseudocolour. settings replaces the default encoder
// arguments when non-nil.
func WriteDistMapToVideo(metric MetricWithDistortionMap, frameRate float32,
	settings []string, path string, maxValue float32) (*HeatmapWriter,
	error) {

	if maxValue <= 0 {
		return nil, ErrInvalidClipping
	}

	width, height, err := metric.GetDistMapResolution()
	if err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid resolution: %dx%d", width, height)
	}

	cmd, pipe, err := startFFmpeg(width, height, frameRate, settings, path)
	if err != nil {
		return nil, err
	}

	writer, err := NewHeatmapWriter(pipe, cmd.Wait, maxValue)
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		pipe.Close()
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	if err := metric.SetDistMapCallback(writer.WriteDistortion); err != nil {
		_ = writer.Close()
		return nil, err
	}

	return writer, nil
}

// ffmpegArgs builds the argument list reading raw grayf32le frames from
// stdin.
func ffmpegArgs(width, height int, frameRate float32, settings []string,
	outputPath string) []string {
	frameRateStr := strconv.FormatFloat(float64(frameRate), 'f', -1, 32)
	resolution := fmt.Sprintf("%dx%d", width, height)

	filter := "format=rgb24,pseudocolor=p=heat"

	if settings == nil {
		settings = []string{"-c:v", "libx264", "-preset", "fast", "-crf", "18"}
	}

	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "grayf32le",
		"-s", resolution,
		"-r", frameRateStr,
		"-i", "-",
		"-vf", filter,
		"-pix_fmt", "yuv420p",
	}
	args = append(args, settings...)
	return append(args, outputPath)
}

func startFFmpeg(width int, height int, frameRate float32, settings []string,
	outputPath string) (*exec.Cmd, io.WriteCloser, error) {

	cmd := exec.Command("ffmpeg",
		ffmpegArgs(width, height, frameRate, settings, outputPath)...)

	if pipe, err := cmd.StdinPipe(); err != nil {
		return nil, nil, fmt.Errorf("failed to get ffmpeg stdin pipe: %w", err)
	} else {
		return cmd, pipe, nil
	}
}

// WriteDistortion normalizes one map and writes it as a frame.
func (h *HeatmapWriter) WriteDistortion(input []float32) error {
	if len(input) == 0 {
		return nil
	}

	h.ensureBuffers(len(input))
	h.normalize(input)
	return h.writeFloats()
}

func (h *HeatmapWriter) ensureBuffers(n int) {
	if cap(h.normalized) < n {
		h.normalized = make([]float32, n)
		h.byteBuf = make([]byte, n*4)
		return
	}

	h.normalized = h.normalized[:n]
	h.byteBuf = h.byteBuf[:n*4]
}

func (h *HeatmapWriter) normalize(input []float32) {
	scale := float32(1.0) / h.maxValue

	for i, v := range input {
		v = min(max(v, 0), h.maxValue)
		h.normalized[i] = v * scale
	}
}

func (h *HeatmapWriter) writeFloats() error {
	for i, v := range h.normalized {
		binary.LittleEndian.PutUint32(h.byteBuf[i*4:], math.Float32bits(v))
	}
	_, err := h.pipe.Write(h.byteBuf)
	return err
}

// Close closes the pipe and waits for the encoder. It is safe to call more
// than once.
func (h *HeatmapWriter) Close() error {
	h.closeOnce.Do(func() {
		_ = h.pipe.Close()
		if h.wait == nil {
			return
		}
		if err := h.wait(); err != nil {
			h.closeErr = fmt.Errorf("ffmpeg failed: %w", err)
		}
	})
	return h.closeErr
}
