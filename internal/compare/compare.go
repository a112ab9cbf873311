// Package compare computes pairwise face distances across a list of images.
package compare

import (
	"context"
	"fmt"
	"io"

	"github.com/andresmejia3/facecmp/internal/types"
)

// Representer turns an image path into a face embedding.
type Representer interface {
	Represent(ctx context.Context, path string) (types.Embedding, error)
}

// Comparator runs every unordered pair of images through a Representer.
type Comparator struct {
	rep Representer
	// OnPair is called after each pair completes with the number done and the total.
	OnPair func(done, total int)
}

func New(rep Representer) *Comparator {
	return &Comparator{rep: rep}
}

// Pairs enumerates index pairs (i, j) with i < j, i varying slowest.
func Pairs(n int) [][2]int {
	if n < 2 {
		return nil
	}
	out := make([][2]int, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			out = append(out, [2]int{i, j})
		}
	}
	return out
}

// SquaredL2 returns the sum of squared component differences.
func SquaredL2(u, v []float64) (float64, error) {
	if len(u) != len(v) {
		return 0, fmt.Errorf("embedding length mismatch: %d vs %d", len(u), len(v))
	}
	var sum float64
	for k := range u {
		d := u[k] - v[k]
		sum += d * d
	}
	return sum, nil
}

// Compare returns one result per pair in Pairs order. Both images of every pair
// are represented independently. The first failure aborts the run and no
// results are returned.
func (c *Comparator) Compare(ctx context.Context, paths []string) ([]types.ComparisonResult, error) {
	if len(paths) < 2 {
		return nil, fmt.Errorf("%w: got %d", types.ErrTooFewImages, len(paths))
	}

	pairs := Pairs(len(paths))
	results := make([]types.ComparisonResult, 0, len(pairs))
	for n, p := range pairs {
		a, b := paths[p[0]], paths[p[1]]

		repA, err := c.rep.Represent(ctx, a)
		if err != nil {
			return nil, err
		}
		repB, err := c.rep.Represent(ctx, b)
		if err != nil {
			return nil, err
		}
		d, err := SquaredL2(repA, repB)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrEmbeddingInference, err)
		}

		results = append(results, types.ComparisonResult{A: a, B: b, Distance: d})
		if c.OnPair != nil {
			c.OnPair(n+1, len(pairs))
		}
	}
	return results, nil
}

// WriteReport prints the results in the compare report format.
func WriteReport(w io.Writer, results []types.ComparisonResult) error {
	for _, r := range results {
		if _, err := fmt.Fprintf(w, "Comparing %s with %s.\n", r.A, r.B); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "  + Squared l2 distance between representations: %0.3f\n", r.Distance); err != nil {
			return err
		}
	}
	return nil
}
