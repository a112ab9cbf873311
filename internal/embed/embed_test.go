package embed

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/andresmejia3/facecmp/internal/types"
)

type fakeModel struct {
	vec   []float64
	err   error
	calls int
}

func (f *fakeModel) Embed(ctx context.Context, face types.CanonicalFace) ([]float64, error) {
	f.calls++
	return f.vec, f.err
}

func face(size int) types.CanonicalFace {
	return types.CanonicalFace{Size: size, Image: image.NewRGBA(image.Rect(0, 0, size, size))}
}

func TestExtract(t *testing.T) {
	vec := make([]float64, 4)
	vec[2] = 0.5
	model := &fakeModel{vec: vec}

	got, err := NewExtractor(model, 8, 4).Extract(context.Background(), face(8))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(got) != 4 || got[2] != 0.5 {
		t.Errorf("Unexpected embedding %v", got)
	}

	// The result must not alias the model's buffer
	vec[2] = 9
	if got[2] != 0.5 {
		t.Error("Extract returned the model's slice instead of a copy")
	}
}

func TestExtractContractViolations(t *testing.T) {
	boom := errors.New("forward pass failed")

	tests := []struct {
		name      string
		model     *fakeModel
		face      types.CanonicalFace
		wantCalls int
	}{
		{name: "Wrong face size", model: &fakeModel{vec: make([]float64, 4)}, face: face(16), wantCalls: 0},
		{name: "Missing image", model: &fakeModel{vec: make([]float64, 4)}, face: types.CanonicalFace{Size: 8}, wantCalls: 0},
		{name: "Short vector", model: &fakeModel{vec: make([]float64, 3)}, face: face(8), wantCalls: 1},
		{name: "Empty vector", model: &fakeModel{}, face: face(8), wantCalls: 1},
		{name: "Model failure", model: &fakeModel{err: boom}, face: face(8), wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewExtractor(tt.model, 8, 4).Extract(context.Background(), tt.face)
			if !errors.Is(err, types.ErrEmbeddingInference) {
				t.Errorf("Expected ErrEmbeddingInference, got %v", err)
			}
			if tt.model.calls != tt.wantCalls {
				t.Errorf("Model called %d times, want %d", tt.model.calls, tt.wantCalls)
			}
		})
	}
}
