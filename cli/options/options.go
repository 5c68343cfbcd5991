// Package options holds the command line settings of the gossim tool and the
// rules that turn them into SSIM parameters.
package options

import (
	"errors"

	"github.com/GreatValueCreamSoda/gossim/ssim"
	"github.com/spf13/pflag"
)

// NoCamera is the --camera value that disables live capture.
const NoCamera = -1

type Settings struct {
	ReferenceImage, DistortionVideo string
	CameraDevice                    int
	FrameThreads                    int
	NumFrames                       int

	Window       int
	K1, K2       float64
	DynamicRange float64
	Border       string

	SSIMDistMapPath string
	SSIMClipping    float32
	MapSnapshotPath string
	ShowMap         bool
}

// Register adds every flag of s to set with its default value.
func Register(set *pflag.FlagSet, s *Settings) {
	defaults := ssim.DefaultParams()

	// General Flags
	set.StringVarP(&s.ReferenceImage, "reference", "r", "", "The still image every frame is compared against")
	set.StringVarP(&s.DistortionVideo, "distortion", "d", "", "The video whose frames are compared to the reference")
	set.IntVar(&s.CameraDevice, "camera", NoCamera, "Capture device to compare live instead of a video. -1 disables the camera")
	set.IntVar(&s.FrameThreads, "frame-threads", 3, "Number of frames to process in parallel")
	set.IntVar(&s.NumFrames, "frames", 0, "Number of frames to compare. 0 compares the whole video")

	// SSIM settings
	var ssimSectionName string = "SSIM Options"
	set.IntVar(&s.Window, "window", defaults.Window, "Odd side length of the sliding window")
	addFlagToHelpGroup(set, "window", ssimSectionName)

	set.Float64Var(&s.K1, "k1", defaults.K1, "Luminance stabilising constant")
	addFlagToHelpGroup(set, "k1", ssimSectionName)

	set.Float64Var(&s.K2, "k2", defaults.K2, "Contrast stabilising constant")
	addFlagToHelpGroup(set, "k2", ssimSectionName)

	set.Float64Var(&s.DynamicRange, "dynamic-range", -1, "Sample value range L. -1 uses 2^depth-1 of the reference")
	addFlagToHelpGroup(set, "dynamic-range", ssimSectionName)

	set.StringVar(&s.Border, "border", defaults.Border.String(), "Edge handling of the window [reflect101, replicate, zero]")
	addFlagToHelpGroup(set, "border", ssimSectionName)

	// Output Settings
	var outputsSectionString string = "Output Options"
	set.StringVar(&s.SSIMDistMapPath, "ssim-video-path", "", "Output path for the dissimilarity heat map video. Empty disables output")
	addFlagToHelpGroup(set, "ssim-video-path", outputsSectionString)

	set.Float32Var(&s.SSIMClipping, "ssim-clipping-value", 0.5, "The 1-SSIM value drawn at full heat")
	addFlagToHelpGroup(set, "ssim-clipping-value", outputsSectionString)

	set.StringVar(&s.MapSnapshotPath, "map-snapshot", "", "PNG path for a heat map of the lowest scoring frame. Empty disables output")
	addFlagToHelpGroup(set, "map-snapshot", outputsSectionString)

	set.BoolVar(&s.ShowMap, "show-map", false, "Show the similarity map in a window while comparing live")
	addFlagToHelpGroup(set, "show-map", outputsSectionString)
}

// Live reports whether frames come from a camera rather than a video.
func (s *Settings) Live() bool { return s.CameraDevice >= 0 }

func (s *Settings) Validate() error {
	if s.ReferenceImage == "" {
		return errors.New("a reference image is required")
	}

	video, live := s.DistortionVideo != "", s.Live()
	if video == live {
		return errors.New("pass exactly one of --distortion or --camera")
	}

	if s.FrameThreads < 1 {
		return errors.New("at least 1 frame thread is required")
	}

	if _, err := ssim.ParseBorder(s.Border); err != nil {
		return err
	}

	if live && (s.SSIMDistMapPath != "" || s.MapSnapshotPath != "") {
		return errors.New("map outputs are only written when comparing a video")
	}

	return nil
}

// Params builds the SSIM parameters, deriving L from maxValue when no
// dynamic range was given.
func (s *Settings) Params(maxValue float64) (ssim.Params, error) {
	border, err := ssim.ParseBorder(s.Border)
	if err != nil {
		return ssim.Params{}, err
	}

	p := ssim.Params{Window: s.Window, K1: s.K1, K2: s.K2, L: s.DynamicRange,
		Border: border}
	if p.L < 0 {
		p.L = maxValue
	}
	return p, nil
}

// MetricWorkers is the number of SSIM workers to run. Map outputs need a
// single worker.
func (s *Settings) MetricWorkers() int {
	if s.SSIMDistMapPath != "" || s.MapSnapshotPath != "" {
		return 1
	}
	return s.FrameThreads
}
