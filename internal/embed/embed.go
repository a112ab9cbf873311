// Package embed wraps an external embedding model behind its dimensional contract.
package embed

import (
	"context"
	"fmt"

	"github.com/andresmejia3/facecmp/internal/types"
)

// DefaultDim is the output length of the OpenFace nn4.small2 network.
const DefaultDim = 128

// Embedder runs one forward pass of a face embedding model.
type Embedder interface {
	Embed(ctx context.Context, face types.CanonicalFace) ([]float64, error)
}

// Extractor enforces the size-in, dimension-out contract around an Embedder.
type Extractor struct {
	model Embedder
	size  int
	dim   int
}

func NewExtractor(model Embedder, size, dim int) *Extractor {
	return &Extractor{model: model, size: size, dim: dim}
}

// Extract returns the embedding of face. Any model failure or contract
// violation is reported as ErrEmbeddingInference; there is no retry.
func (e *Extractor) Extract(ctx context.Context, face types.CanonicalFace) (types.Embedding, error) {
	if face.Image == nil || face.Size != e.size ||
		face.Image.Bounds().Dx() != e.size || face.Image.Bounds().Dy() != e.size {
		return nil, fmt.Errorf("%w: expected %dx%d face", types.ErrEmbeddingInference, e.size, e.size)
	}

	vec, err := e.model.Embed(ctx, face)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrEmbeddingInference, err)
	}
	if len(vec) != e.dim {
		return nil, fmt.Errorf("%w: model returned %d values, expected %d", types.ErrEmbeddingInference, len(vec), e.dim)
	}

	out := make(types.Embedding, len(vec))
	copy(out, vec)
	return out, nil
}
