package types

import (
	"image"
	"time"
)

// BoundingBox is an axis-aligned face region in source image pixels.
type BoundingBox struct {
	X      int     `json:"x"`
	Y      int     `json:"y"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Score  float64 `json:"score"` // Detector confidence, informational only
}

// Area returns Width*Height, the ranking key used by the face locator.
func (b BoundingBox) Area() int {
	return b.Width * b.Height
}

// Point is a 2D landmark position in source image pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LandmarkSet is the ordered keypoint list returned by a landmark predictor.
// Indices are fixed by the predictor's layout.
type LandmarkSet struct {
	Points []Point `json:"points"`
}

// Len returns the number of landmarks.
func (l LandmarkSet) Len() int {
	return len(l.Points)
}

// CanonicalFace is a pose-normalized, square RGB face crop.
type CanonicalFace struct {
	Size  int
	Image *image.RGBA
}

// RGB packs the face into Size*Size*3 bytes in row-major RGB order.
func (f CanonicalFace) RGB() []byte {
	out := make([]byte, 0, f.Size*f.Size*3)
	for y := 0; y < f.Size; y++ {
		row := f.Image.Pix[y*f.Image.Stride:]
		for x := 0; x < f.Size; x++ {
			out = append(out, row[x*4], row[x*4+1], row[x*4+2])
		}
	}
	return out
}

// Embedding is the fixed-length representation produced by the embedding model.
type Embedding []float64

// ComparisonResult is the distance between the faces of two input images.
type ComparisonResult struct {
	A        string  `json:"a"`
	B        string  `json:"b"`
	Distance float64 `json:"distance"`
}

// RunSummary describes a comparison run persisted by the result store.
type RunSummary struct {
	ID         string    `json:"id"`
	Label      string    `json:"label,omitempty"`
	ImageCount int       `json:"image_count"`
	PairCount  int       `json:"pair_count"`
	CreatedAt  time.Time `json:"created_at"`
}
