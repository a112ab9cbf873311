package locate

import (
	"context"
	"fmt"
	"image"

	"github.com/andresmejia3/facecmp/internal/types"
)

// Detector returns every candidate face region found in an image, in the
// detector's own order.
type Detector interface {
	Detect(ctx context.Context, img *image.RGBA) ([]types.BoundingBox, error)
}

// Locator selects the single most prominent face in an image.
type Locator struct {
	detector Detector
}

func New(d Detector) *Locator {
	return &Locator{detector: d}
}

// Locate returns the candidate with the largest area. On ties the first
// candidate reported by the detector wins; confidence is not consulted.
func (l *Locator) Locate(ctx context.Context, img *image.RGBA) (types.BoundingBox, error) {
	boxes, err := l.detector.Detect(ctx, img)
	if err != nil {
		return types.BoundingBox{}, fmt.Errorf("face detection failed: %w", err)
	}
	best, ok := Largest(boxes)
	if !ok {
		return types.BoundingBox{}, types.ErrNoFaceFound
	}
	return best, nil
}

// Largest picks the largest-area box. It reports false for an empty slice.
func Largest(boxes []types.BoundingBox) (types.BoundingBox, bool) {
	if len(boxes) == 0 {
		return types.BoundingBox{}, false
	}
	best := boxes[0]
	for _, b := range boxes[1:] {
		if b.Area() > best.Area() {
			best = b
		}
	}
	return best, true
}
