package main

import (
	"context"
	"fmt"
	"image"
	"os"

	"github.com/GreatValueCreamSoda/gossim/cli/live"
	"github.com/GreatValueCreamSoda/gossim/comparator"
	"github.com/GreatValueCreamSoda/gossim/metrics"
	"github.com/GreatValueCreamSoda/gossim/render"
	"github.com/GreatValueCreamSoda/gossim/sources"
	"github.com/GreatValueCreamSoda/gossim/sources/camera"
	"github.com/GreatValueCreamSoda/gossim/ssim"
	"gocv.io/x/gocv"
)

// runLive compares camera frames against reference until Esc, q or Q is
// pressed, the camera stops delivering frames or ctx is canceled.
func runLive(ctx context.Context, reference *sources.StillImage) error {
	refProps := reference.GetFrameProps()

	cam, err := camera.NewCamera(settings.CameraDevice, refProps.Width,
		refProps.Height)
	if err != nil {
		return err
	}
	defer cam.Close()
	fmt.Fprintln(os.Stderr, "Camera ready to capture ...")

	params, err := settings.Params(refProps.MaxValue())
	if err != nil {
		return err
	}
	handler, err := metrics.NewSSIMHandler(1, refProps, params)
	if err != nil {
		return fmt.Errorf("ssim creation failed: %w", err)
	}
	defer handler.Close()

	var last ssim.Result
	err = handler.SetSimilarityMapCallback(func(r ssim.Result) error {
		last = r
		return nil
	})
	if err != nil {
		return err
	}

	refFrame, err := comparator.NewFrame(refProps)
	if err != nil {
		return err
	}
	if err := reference.GetFrame(refFrame); err != nil {
		return err
	}

	original := gocv.IMRead(settings.ReferenceImage, gocv.IMReadColor)
	defer original.Close()

	screen := &liveScreen{cam: cam, original: original, last: &last,
		refWindow:   gocv.NewWindow("origin image"),
		frameWindow: gocv.NewWindow("Frame")}
	defer screen.Close()
	if settings.ShowMap {
		screen.mapWindow = gocv.NewWindow("SSIM map")
	}

	return live.Run(ctx, os.Stderr, refFrame, cam, handler, screen)
}

// liveScreen shows the reference, the scored camera frame and optionally
// the similarity map of that frame.
type liveScreen struct {
	cam      *camera.Camera
	original gocv.Mat
	last     *ssim.Result

	refWindow, frameWindow, mapWindow *gocv.Window
}

func (s *liveScreen) Show(scores map[string]float64) (int, error) {
	display := s.cam.Display()
	gocv.PutText(display, render.FormatScore(scores[metrics.SSIMName]),
		image.Pt(30, 30), gocv.FontHersheyComplexSmall, 0.8,
		render.ScoreColor, 1)

	s.refWindow.IMShow(s.original)
	s.frameWindow.IMShow(*display)

	if s.mapWindow != nil {
		if err := showMap(s.mapWindow, s.last.Map); err != nil {
			return -1, err
		}
	}

	return s.frameWindow.WaitKey(10), nil
}

func (s *liveScreen) Close() {
	s.refWindow.Close()
	s.frameWindow.Close()
	if s.mapWindow != nil {
		s.mapWindow.Close()
	}
}

// showMap displays m as an 8-bit image, 255 where the frame matches.
func showMap(window *gocv.Window, m *ssim.Buffer) error {
	gray, err := render.ToGray8(m)
	if err != nil {
		return err
	}

	mat, err := gocv.NewMatFromBytes(gray.Rect.Dy(), gray.Rect.Dx(),
		gocv.MatTypeCV8U, gray.Pix)
	if err != nil {
		return err
	}
	defer mat.Close()

	window.IMShow(mat)
	return nil
}
