package locate

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/andresmejia3/facecmp/internal/types"
)

type fakeDetector struct {
	boxes []types.BoundingBox
	err   error
}

func (f fakeDetector) Detect(ctx context.Context, img *image.RGBA) ([]types.BoundingBox, error) {
	return f.boxes, f.err
}

func TestLocate(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 50, 50))

	tests := []struct {
		name    string
		boxes   []types.BoundingBox
		want    types.BoundingBox
		wantErr error
	}{
		{
			name: "Largest area wins",
			boxes: []types.BoundingBox{
				{X: 0, Y: 0, Width: 10, Height: 10, Score: 0.99}, // area 100
				{X: 5, Y: 5, Width: 20, Height: 20, Score: 0.10}, // area 400
			},
			want: types.BoundingBox{X: 5, Y: 5, Width: 20, Height: 20, Score: 0.10},
		},
		{
			name: "Tie keeps detector order",
			boxes: []types.BoundingBox{
				{X: 1, Width: 10, Height: 20},
				{X: 2, Width: 20, Height: 10},
			},
			want: types.BoundingBox{X: 1, Width: 10, Height: 20},
		},
		{
			name:  "Single candidate",
			boxes: []types.BoundingBox{{X: 3, Y: 4, Width: 5, Height: 6}},
			want:  types.BoundingBox{X: 3, Y: 4, Width: 5, Height: 6},
		},
		{
			name:    "No candidates",
			boxes:   nil,
			wantErr: types.ErrNoFaceFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New(fakeDetector{boxes: tt.boxes}).Locate(context.Background(), img)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Locate() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Locate() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Locate() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLocateDetectorError(t *testing.T) {
	boom := errors.New("cascade exploded")
	_, err := New(fakeDetector{err: boom}).Locate(context.Background(), image.NewRGBA(image.Rect(0, 0, 1, 1)))
	if !errors.Is(err, boom) {
		t.Errorf("Expected detector error to be wrapped, got %v", err)
	}
	if errors.Is(err, types.ErrNoFaceFound) {
		t.Error("Detector failure must not be reported as NoFaceFound")
	}
}
