package cascade

import (
	"context"
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"

	"github.com/andresmejia3/facecmp/internal/types"
)

// mouthCorner is the flploc cascade locating the mouth corners.
const mouthCorner = "lp84"

// LayoutSize is the number of points produced by Landmarker:
// left pupil, right pupil, left mouth corner, right mouth corner.
const LayoutSize = 4

// Landmarker predicts pupils with puploc and mouth corners with the flploc cascades.
type Landmarker struct {
	puploc   *pigo.PuplocCascade
	flpcs    map[string][]*pigo.FlpCascade
	perturbs int
}

// NewLandmarker unpacks the pupil cascade and reads the landmark cascade directory.
func NewLandmarker(puplocPath, flplocDir string, opts Options) (*Landmarker, error) {
	data, err := os.ReadFile(puplocPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read pupil cascade: %w", err)
	}
	plc, err := pigo.NewPuplocCascade().UnpackCascade(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack pupil cascade: %w", err)
	}
	flpcs, err := plc.ReadCascadeDir(flplocDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read landmark cascades: %w", err)
	}
	if len(flpcs[mouthCorner]) == 0 {
		return nil, fmt.Errorf("landmark cascade %s missing from %s", mouthCorner, flplocDir)
	}
	return &Landmarker{puploc: plc, flpcs: flpcs, perturbs: opts.Perturbs}, nil
}

// Landmarks returns the 4-point layout for the face in box. A point the
// cascades cannot place yields an empty set.
func (l *Landmarker) Landmarks(ctx context.Context, img *image.RGBA, box types.BoundingBox) (types.LandmarkSet, error) {
	if err := ctx.Err(); err != nil {
		return types.LandmarkSet{}, err
	}
	params := imageParams(img)
	row := box.Y + box.Height/2
	col := box.X + box.Width/2
	scale := float32(box.Width)

	leftEye := l.puploc.RunDetector(pigo.Puploc{
		Row:      row - int(0.075*scale),
		Col:      col - int(0.175*scale),
		Scale:    scale * 0.25,
		Perturbs: l.perturbs,
	}, params, 0.0, false)
	rightEye := l.puploc.RunDetector(pigo.Puploc{
		Row:      row - int(0.075*scale),
		Col:      col + int(0.185*scale),
		Scale:    scale * 0.25,
		Perturbs: l.perturbs,
	}, params, 0.0, false)
	if !placed(leftEye) || !placed(rightEye) {
		return types.LandmarkSet{}, nil
	}

	flpc := l.flpcs[mouthCorner][0]
	return layout(leftEye, rightEye,
		flpc.GetLandmarkPoint(leftEye, rightEye, params, l.perturbs, false),
		flpc.GetLandmarkPoint(leftEye, rightEye, params, l.perturbs, true),
	), nil
}

// layout orders two pupils and two mouth corners into the LayoutSize
// points, each pair left to right in image space. Any unplaced point
// yields an empty set.
func layout(eyeA, eyeB, mouthA, mouthB *pigo.Puploc) types.LandmarkSet {
	for _, p := range []*pigo.Puploc{eyeA, eyeB, mouthA, mouthB} {
		if !placed(p) {
			return types.LandmarkSet{}
		}
	}
	if eyeB.Col < eyeA.Col {
		eyeA, eyeB = eyeB, eyeA
	}
	if mouthB.Col < mouthA.Col {
		mouthA, mouthB = mouthB, mouthA
	}
	return types.LandmarkSet{Points: []types.Point{
		toPoint(eyeA), toPoint(eyeB), toPoint(mouthA), toPoint(mouthB),
	}}
}

func placed(p *pigo.Puploc) bool {
	return p != nil && p.Row > 0 && p.Col > 0
}

func toPoint(p *pigo.Puploc) types.Point {
	return types.Point{X: float64(p.Col), Y: float64(p.Row)}
}
