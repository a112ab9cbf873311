// Package fakes provides deterministic in-memory model backends and image
// fixtures for tests that exercise the pipeline without real models.
package fakes

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/andresmejia3/facecmp/internal/align"
	"github.com/andresmejia3/facecmp/internal/embed"
	"github.com/andresmejia3/facecmp/internal/imageio"
	"github.com/andresmejia3/facecmp/internal/locate"
	"github.com/andresmejia3/facecmp/internal/pipeline"
	"github.com/andresmejia3/facecmp/internal/types"
)

// Detector reports one box covering the whole image, or none when the image
// is a single flat color.
type Detector struct{}

func (Detector) Detect(ctx context.Context, img *image.RGBA) ([]types.BoundingBox, error) {
	if flat(img) {
		return nil, nil
	}
	b := img.Bounds()
	return []types.BoundingBox{{X: 0, Y: 0, Width: b.Dx(), Height: b.Dy(), Score: 1}}, nil
}

func flat(img *image.RGBA) bool {
	first := img.RGBAAt(0, 0)
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.RGBAAt(x, y) != first {
				return false
			}
		}
	}
	return true
}

// Predictor places the outer eye corners and nose tip of a 68-point layout
// at fixed fractions of the box.
type Predictor struct{}

func (Predictor) Landmarks(ctx context.Context, img *image.RGBA, box types.BoundingBox) (types.LandmarkSet, error) {
	pts := make([]types.Point, 68)
	at := func(fx, fy float64) types.Point {
		return types.Point{X: float64(box.X) + fx*float64(box.Width), Y: float64(box.Y) + fy*float64(box.Height)}
	}
	pts[36] = at(0.25, 0.3)
	pts[45] = at(0.75, 0.3)
	pts[33] = at(0.5, 0.6)
	return types.LandmarkSet{Points: pts}, nil
}

// Embedder summarizes the canonical face into Dim buckets of mean intensity.
// It counts calls so tests can observe memoization.
type Embedder struct {
	Dim int

	mu    sync.Mutex
	calls int
}

func (e *Embedder) Embed(ctx context.Context, face types.CanonicalFace) ([]float64, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	sums := make([]float64, e.Dim)
	counts := make([]float64, e.Dim)
	for i, v := range face.RGB() {
		sums[i%e.Dim] += float64(v) / 255
		counts[i%e.Dim]++
	}
	for k := range sums {
		if counts[k] > 0 {
			sums[k] /= counts[k]
		}
	}
	return sums, nil
}

// Calls returns how many forward passes ran.
func (e *Embedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// NewPipeline wires the fakes into a real pipeline.
func NewPipeline(t testing.TB, emb *Embedder, opts pipeline.Options) *pipeline.Pipeline {
	t.Helper()
	aligner, err := align.New(Predictor{}, align.OuterEyesAndNose, align.DefaultSize)
	if err != nil {
		t.Fatal(err)
	}
	return pipeline.New(
		locate.New(Detector{}),
		aligner,
		embed.NewExtractor(emb, align.DefaultSize, emb.Dim),
		opts,
	)
}

// FaceImage draws a deterministic pattern that varies with seed.
func FaceImage(size int, seed uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x*3) + seed,
				G: uint8(y*5) ^ seed,
				B: uint8(x+y) * seed,
				A: 255,
			})
		}
	}
	return img
}

// BlankImage is a flat gray image with no face.
func BlankImage(size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	return img
}

// WriteImage saves img as PNG under dir and returns its path.
func WriteImage(t testing.TB, dir, name string, img image.Image) string {
	t.Helper()
	data, err := imageio.EncodePNG(img)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}
