package align

import (
	"fmt"

	"github.com/andresmejia3/facecmp/internal/types"
)

// Scheme pairs a subset of landmark indices with their target positions in
// canonical space. Template coordinates are normalized to [0, 1] and scaled
// by the output size at alignment time.
type Scheme struct {
	Name        string
	Cardinality int // Landmark count of the layout the indices refer to
	Indices     []int
	Template    []types.Point
}

// OuterEyesAndNose uses the 68-point iBUG layout: outer left eye corner (36),
// outer right eye corner (45) and nose tip (33).
var OuterEyesAndNose = Scheme{
	Name:        "outer-eyes-and-nose",
	Cardinality: 68,
	Indices:     []int{36, 45, 33},
	Template:    []types.Point{canonical[36], canonical[45], canonical[33]},
}

// PupilsAndMouth uses the 4-point layout produced by the pigo cascades:
// left pupil, right pupil, left mouth corner, right mouth corner. Pupils sit
// at the centre of the 68-point eye contours.
var PupilsAndMouth = Scheme{
	Name:        "pupils-and-mouth",
	Cardinality: 4,
	Indices:     []int{0, 1, 2, 3},
	Template: []types.Point{
		canonicalMean(36, 41),
		canonicalMean(42, 47),
		canonical[48],
		canonical[54],
	},
}

var schemes = map[string]Scheme{
	OuterEyesAndNose.Name: OuterEyesAndNose,
	PupilsAndMouth.Name:   PupilsAndMouth,
}

// SchemeByName looks up a built-in scheme.
func SchemeByName(name string) (Scheme, error) {
	s, ok := schemes[name]
	if !ok {
		return Scheme{}, fmt.Errorf("unknown alignment scheme %q", name)
	}
	return s, nil
}

// Validate checks the scheme is internally consistent.
func (s Scheme) Validate() error {
	if len(s.Indices) != len(s.Template) {
		return fmt.Errorf("scheme %s: %d indices for %d template points", s.Name, len(s.Indices), len(s.Template))
	}
	for _, idx := range s.Indices {
		if idx < 0 || idx >= s.Cardinality {
			return fmt.Errorf("scheme %s: index %d outside layout of %d points", s.Name, idx, s.Cardinality)
		}
	}
	return nil
}

// targets returns the template scaled to a size x size canonical image.
func (s Scheme) targets(size int) []types.Point {
	out := make([]types.Point, len(s.Template))
	for i, p := range s.Template {
		out[i] = types.Point{X: p.X * float64(size), Y: p.Y * float64(size)}
	}
	return out
}
