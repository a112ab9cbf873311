// Package cascade provides a pure Go face detector and landmark predictor
// built on the pigo pixel-intensity-comparison cascades.
package cascade

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"os"

	pigo "github.com/esimov/pigo/core"

	"github.com/andresmejia3/facecmp/internal/types"
)

// Options tunes the face finder cascade.
type Options struct {
	MinSize      int     `yaml:"min_size"`
	MaxSize      int     `yaml:"max_size"`
	ShiftFactor  float64 `yaml:"shift_factor"`
	ScaleFactor  float64 `yaml:"scale_factor"`
	IoUThreshold float64 `yaml:"iou_threshold"`
	MinQuality   float32 `yaml:"min_quality"`
	Perturbs     int     `yaml:"perturbs"`
}

// DefaultOptions mirrors the values recommended by the pigo authors.
func DefaultOptions() Options {
	return Options{
		MinSize:      20,
		MaxSize:      1000,
		ShiftFactor:  0.1,
		ScaleFactor:  1.1,
		IoUThreshold: 0.2,
		MinQuality:   5.0,
		Perturbs:     63,
	}
}

// imageParams converts img to the grayscale buffer pigo operates on.
func imageParams(img image.Image) pigo.ImageParams {
	b := img.Bounds()
	nrgba := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
	return pigo.ImageParams{
		Pixels: pigo.RgbToGrayscale(nrgba),
		Rows:   b.Dy(),
		Cols:   b.Dx(),
		Dim:    b.Dx(),
	}
}

// Finder detects faces with the pigo facefinder cascade.
type Finder struct {
	classifier *pigo.Pigo
	opts       Options
}

// NewFinder unpacks the facefinder cascade at path.
func NewFinder(path string, opts Options) (*Finder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read face cascade: %w", err)
	}
	classifier, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack face cascade: %w", err)
	}
	return &Finder{classifier: classifier, opts: opts}, nil
}

// Detect returns clustered detections above the quality threshold as square boxes.
func (f *Finder) Detect(ctx context.Context, img *image.RGBA) ([]types.BoundingBox, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	params := imageParams(img)
	dets := f.classifier.RunCascade(pigo.CascadeParams{
		MinSize:     f.opts.MinSize,
		MaxSize:     f.opts.MaxSize,
		ShiftFactor: f.opts.ShiftFactor,
		ScaleFactor: f.opts.ScaleFactor,
		ImageParams: params,
	}, 0.0)
	dets = f.classifier.ClusterDetections(dets, f.opts.IoUThreshold)
	return detectionsToBoxes(dets, f.opts.MinQuality), nil
}

// detectionsToBoxes converts pigo's centre/scale detections to boxes,
// preserving detector order.
func detectionsToBoxes(dets []pigo.Detection, minQuality float32) []types.BoundingBox {
	boxes := make([]types.BoundingBox, 0, len(dets))
	for _, d := range dets {
		if d.Q < minQuality {
			continue
		}
		boxes = append(boxes, types.BoundingBox{
			X:      d.Col - d.Scale/2,
			Y:      d.Row - d.Scale/2,
			Width:  d.Scale,
			Height: d.Scale,
			Score:  float64(d.Q),
		})
	}
	return boxes
}
