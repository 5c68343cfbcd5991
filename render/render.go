// Package render turns similarity maps and scores into images and labels.
package render

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"

	"github.com/GreatValueCreamSoda/gossim/ssim"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var ErrNotImage = errors.New("only 2-D maps can be rendered")

// ScoreColor is the colour of score labels, (255, 200, 0) in BGR order.
var ScoreColor = color.RGBA{R: 0, G: 200, B: 255, A: 255}

var (
	// Hot marks dissimilar regions of a heatmap.
	Hot = colorful.Color{R: 0.85, G: 0.1, B: 0.05}
	// Cold marks regions that match the reference.
	Cold = colorful.Color{R: 0.05, G: 0.1, B: 0.35}
)

// FormatScore returns the label drawn over frames, e.g. "mssim:0.953245".
func FormatScore(score float64) string {
	return "mssim:" + strconv.FormatFloat(score, 'g', 6, 64)
}

func imageSize(m *ssim.Buffer) (int, int, error) {
	if m == nil || m.Dims() != 2 {
		return 0, 0, ErrNotImage
	}
	return m.Shape[1], m.Shape[0], nil
}

// ToGray8 scales map values by 255, rounds, and saturates them to [0, 255].
// Negative similarity becomes black.
func ToGray8(m *ssim.Buffer) (*image.Gray, error) {
	width, height, err := imageSize(m)
	if err != nil {
		return nil, err
	}

	img := image.NewGray(image.Rect(0, 0, width, height))
	for i, v := range m.Data {
		img.Pix[i] = saturate8(v * 255)
	}
	return img, nil
}

func saturate8(v float64) uint8 {
	if math.IsNaN(v) {
		return 0
	}
	return uint8(min(max(math.Round(v), 0), 255))
}

// Heatmap colours a map by blending Hot (at low and below) into Cold (at high
// and above) in CIE Lab space.
func Heatmap(m *ssim.Buffer, low, high float64) (*image.RGBA, error) {
	width, height, err := imageSize(m)
	if err != nil {
		return nil, err
	}
	if !(high > low) {
		return nil, errors.New("heatmap range must satisfy low < high")
	}

	// 256 steps are enough for 8-bit output.
	var palette [256]color.RGBA
	for i := range palette {
		r, g, b := Hot.BlendLab(Cold, float64(i)/255).Clamped().RGB255()
		palette[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	scale := 255 / (high - low)
	for i, v := range m.Data {
		c := palette[saturate8((v-low)*scale)]
		img.Pix[4*i], img.Pix[4*i+1], img.Pix[4*i+2], img.Pix[4*i+3] =
			c.R, c.G, c.B, c.A
	}
	return img, nil
}

// Annotate draws text with its baseline starting at at.
func Annotate(img draw.Image, text string, at image.Point, c color.Color) {
	drawer := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(at.X, at.Y),
	}
	drawer.DrawString(text)
}
