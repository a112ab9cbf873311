package align

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/andresmejia3/facecmp/internal/types"
)

const (
	minSpread     = 1e-9
	minEigenRatio = 1e-6
)

// Similarity maps (x, y) to (A*x - B*y + Tx, B*x + A*y + Ty): a rotation,
// a uniform scale of hypot(A, B) and a translation.
type Similarity struct {
	A, B   float64
	Tx, Ty float64
}

// Apply maps a source point into destination space.
func (s Similarity) Apply(p types.Point) types.Point {
	return types.Point{
		X: s.A*p.X - s.B*p.Y + s.Tx,
		Y: s.B*p.X + s.A*p.Y + s.Ty,
	}
}

// Scale returns the uniform scale factor.
func (s Similarity) Scale() float64 {
	return math.Hypot(s.A, s.B)
}

// Aff3 returns the source-to-destination matrix in the layout used by x/image/draw.
func (s Similarity) Aff3() f64.Aff3 {
	return f64.Aff3{
		s.A, -s.B, s.Tx,
		s.B, s.A, s.Ty,
	}
}

// EstimateSimilarity fits the least-squares similarity transform taking src
// onto dst. It needs at least three points that neither coincide nor lie on a
// single line; otherwise the fit is rejected with ErrAlignment.
func EstimateSimilarity(src, dst []types.Point) (Similarity, error) {
	n := len(src)
	if n != len(dst) {
		return Similarity{}, fmt.Errorf("%w: %d source points for %d template points", types.ErrAlignment, n, len(dst))
	}
	if n < 3 {
		return Similarity{}, fmt.Errorf("%w: need at least 3 points, got %d", types.ErrAlignment, n)
	}

	var msx, msy, mdx, mdy float64
	for i := range src {
		msx += src[i].X
		msy += src[i].Y
		mdx += dst[i].X
		mdy += dst[i].Y
	}
	fn := float64(n)
	msx, msy, mdx, mdy = msx/fn, msy/fn, mdx/fn, mdy/fn

	var cxx, cyy, cxy, dot, cross float64
	for i := range src {
		ax, ay := src[i].X-msx, src[i].Y-msy
		bx, by := dst[i].X-mdx, dst[i].Y-mdy
		cxx += ax * ax
		cyy += ay * ay
		cxy += ax * ay
		dot += ax*bx + ay*by
		cross += ax*by - ay*bx
	}

	spread := cxx + cyy
	if !(spread > minSpread) {
		return Similarity{}, fmt.Errorf("%w: landmarks coincide", types.ErrAlignment)
	}

	// Eigenvalues of the 2x2 scatter matrix; a vanishing minor axis means the
	// points are collinear and the rotation is underdetermined.
	half := spread / 2
	det := cxx*cyy - cxy*cxy
	disc := math.Sqrt(math.Max(0, half*half-det))
	if (half-disc)/(half+disc) < minEigenRatio {
		return Similarity{}, fmt.Errorf("%w: landmarks are collinear", types.ErrAlignment)
	}

	s := Similarity{A: dot / spread, B: cross / spread}
	scale := s.Scale()
	if math.IsNaN(scale) || math.IsInf(scale, 0) || scale < minSpread {
		return Similarity{}, fmt.Errorf("%w: degenerate scale %v", types.ErrAlignment, scale)
	}
	s.Tx = mdx - (s.A*msx - s.B*msy)
	s.Ty = mdy - (s.B*msx + s.A*msy)
	return s, nil
}

// Warp resamples src through t into a size x size buffer with bilinear
// interpolation. Destination pixels that map outside src stay opaque black.
func Warp(src *image.RGBA, t Similarity, size int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.Black}, image.Point{}, draw.Src)
	draw.BiLinear.Transform(dst, t.Aff3(), src, src.Bounds(), draw.Over, nil)
	return dst
}
