// Package align normalizes a located face into a fixed-size canonical image
// using a similarity transform fitted to facial landmarks.
package align

import (
	"context"
	"fmt"
	"image"

	"github.com/andresmejia3/facecmp/internal/types"
)

// DefaultSize is the canonical face edge length expected by the OpenFace nn4 models.
const DefaultSize = 96

// LandmarkPredictor returns the ordered keypoints of the face inside box.
type LandmarkPredictor interface {
	Landmarks(ctx context.Context, img *image.RGBA, box types.BoundingBox) (types.LandmarkSet, error)
}

// Aligner produces CanonicalFace buffers of a fixed size.
type Aligner struct {
	predictor LandmarkPredictor
	scheme    Scheme
	size      int
}

func New(p LandmarkPredictor, scheme Scheme, size int) (*Aligner, error) {
	if err := scheme.Validate(); err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, fmt.Errorf("invalid canonical size %d", size)
	}
	return &Aligner{predictor: p, scheme: scheme, size: size}, nil
}

// Align predicts landmarks for box, fits the scheme's template and warps img
// into canonical space.
func (a *Aligner) Align(ctx context.Context, img *image.RGBA, box types.BoundingBox) (types.CanonicalFace, error) {
	landmarks, err := a.predictor.Landmarks(ctx, img, box)
	if err != nil {
		return types.CanonicalFace{}, fmt.Errorf("%w: landmark prediction failed: %w", types.ErrAlignment, err)
	}
	if landmarks.Len() == 0 {
		return types.CanonicalFace{}, fmt.Errorf("%w: no landmarks for region", types.ErrAlignment)
	}
	if landmarks.Len() != a.scheme.Cardinality {
		return types.CanonicalFace{}, fmt.Errorf("%w: expected %d landmarks, got %d",
			types.ErrAlignment, a.scheme.Cardinality, landmarks.Len())
	}

	src := make([]types.Point, len(a.scheme.Indices))
	for i, idx := range a.scheme.Indices {
		src[i] = landmarks.Points[idx]
	}

	t, err := EstimateSimilarity(src, a.scheme.targets(a.size))
	if err != nil {
		return types.CanonicalFace{}, err
	}

	return types.CanonicalFace{Size: a.size, Image: Warp(img, t, a.size)}, nil
}
