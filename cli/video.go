package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/GreatValueCreamSoda/gossim/cli/report"
	"github.com/GreatValueCreamSoda/gossim/comparator"
	"github.com/GreatValueCreamSoda/gossim/metrics"
	"github.com/GreatValueCreamSoda/gossim/render"
	"github.com/GreatValueCreamSoda/gossim/sources"
	"github.com/GreatValueCreamSoda/gossim/sources/ffms"
	"github.com/GreatValueCreamSoda/gossim/ssim"
	"github.com/schollz/progressbar/v3"
)

const fallbackFrameRate float32 = 25

// runVideo scores every frame of the distorted video against reference.
func runVideo(ctx context.Context, reference *sources.StillImage) error {
	refProps := reference.GetFrameProps()

	distortion, err := ffms.NewFFms2Reader(settings.DistortionVideo,
		refProps.Width, refProps.Height)
	if err != nil {
		return fmt.Errorf("cannot open video: %w", err)
	}
	defer distortion.Close()

	handler, err := newSSIMHandler(refProps)
	if err != nil {
		return err
	}
	defer handler.Close()

	writer, err := createHeatmapWriterIfRequested(handler,
		distortion.GetFrameRate())
	if err != nil {
		return err
	}
	if writer != nil {
		defer writer.Close()
	}

	var worst worstFrame
	if settings.MapSnapshotPath != "" {
		if err := handler.SetSimilarityMapCallback(worst.keep); err != nil {
			return err
		}
	}

	total := settings.NumFrames
	if total <= 0 {
		total = distortion.GetNumFrames()
	}

	// Heat map video frames must arrive in order.
	frameThreads := settings.FrameThreads
	if writer != nil {
		frameThreads = 1
	}

	comp, err := comparator.NewComparator(reference, distortion,
		[]comparator.Metric{handler}, frameThreads, total)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(
		total,
		progressbar.OptionSetDescription("Computing SSIM"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
	)

	comp.SetProgressCallback(func(done, total int) {
		_ = bar.Add(1)
	})

	scores, runErr := comp.Run(ctx)
	_ = bar.Finish()

	if writer != nil {
		if err := writer.Close(); err != nil {
			return fmt.Errorf("failed to finalize video: %w", err)
		}
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	report.PrintSummary(os.Stderr, scores)

	if worst.result.Map != nil {
		if err := worst.save(settings.MapSnapshotPath); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "\nWrote lowest scoring map to %s\n",
			settings.MapSnapshotPath)
	}
	return nil
}

// newSSIMHandler builds the metric for frames shaped like props.
func newSSIMHandler(props comparator.FrameProps) (*metrics.SSIMHandler,
	error) {
	params, err := settings.Params(props.MaxValue())
	if err != nil {
		return nil, err
	}

	handler, err := metrics.NewSSIMHandler(settings.MetricWorkers(), props,
		params)
	if err != nil {
		return nil, fmt.Errorf("ssim creation failed: %w", err)
	}
	return handler, nil
}

func createHeatmapWriterIfRequested(metric metrics.MetricWithDistortionMap,
	frameRate float32) (*metrics.HeatmapWriter, error) {
	if settings.SSIMDistMapPath == "" {
		return nil, nil
	}
	if frameRate <= 0 {
		frameRate = fallbackFrameRate
	}

	writer, err := metrics.WriteDistMapToVideo(metric, frameRate, nil,
		settings.SSIMDistMapPath, settings.SSIMClipping)
	if err != nil {
		return nil, fmt.Errorf("failed to create heatmap writer for %s: %w",
			settings.SSIMDistMapPath, err)
	}

	return writer, nil
}

// worstFrame keeps the similarity map with the lowest mean score.
type worstFrame struct {
	result ssim.Result
}

func (w *worstFrame) keep(result ssim.Result) error {
	if w.result.Map == nil || result.Score < w.result.Score {
		w.result = result
	}
	return nil
}

// save writes the kept map as a heat map PNG with its score in the corner.
func (w *worstFrame) save(path string) error {
	img, err := render.Heatmap(w.result.Map, 0, 1)
	if err != nil {
		return err
	}
	render.Annotate(img, render.FormatScore(w.result.Score), image.Pt(4, 14),
		render.ScoreColor)

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return file.Close()
}
