// Package pipeline maps an image path to the embedding of its most prominent face.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/andresmejia3/facecmp/internal/align"
	"github.com/andresmejia3/facecmp/internal/embed"
	"github.com/andresmejia3/facecmp/internal/imageio"
	"github.com/andresmejia3/facecmp/internal/locate"
	"github.com/andresmejia3/facecmp/internal/types"
	"github.com/andresmejia3/facecmp/internal/utils"
)

// Options controls optional pipeline behaviour.
type Options struct {
	// Log receives per-stage progress and timings. Nil keeps the pipeline silent.
	Log io.Writer
	// Memoize caches embeddings by image identity for the life of the pipeline.
	Memoize bool
}

// Pipeline runs Load -> Locate -> Align -> Embed for one image at a time.
type Pipeline struct {
	load      func(path string) (*image.RGBA, error)
	locator   *locate.Locator
	aligner   *align.Aligner
	extractor *embed.Extractor
	log       io.Writer

	mu    sync.Mutex
	cache map[string]types.Embedding
}

func New(locator *locate.Locator, aligner *align.Aligner, extractor *embed.Extractor, opts Options) *Pipeline {
	p := &Pipeline{
		load:      imageio.Load,
		locator:   locator,
		aligner:   aligner,
		extractor: extractor,
		log:       opts.Log,
	}
	if opts.Memoize {
		p.cache = make(map[string]types.Embedding)
	}
	return p
}

func (p *Pipeline) logf(format string, args ...any) {
	if p.log != nil {
		fmt.Fprintf(p.log, format, args...)
	}
}

// Represent returns the embedding for the largest face in the image at path.
// The first failing stage ends the run with a *types.StageError.
func (p *Pipeline) Represent(ctx context.Context, path string) (types.Embedding, error) {
	key := ""
	if p.cache != nil {
		if id, err := utils.ImageID(path); err == nil {
			key = id
			p.mu.Lock()
			rep, ok := p.cache[key]
			p.mu.Unlock()
			if ok {
				p.logf("Reusing representation for %s.\n", path)
				return slices.Clone(rep), nil
			}
		}
	}

	rep, err := p.run(ctx, path)
	if err != nil {
		return nil, err
	}

	if key != "" {
		p.mu.Lock()
		p.cache[key] = slices.Clone(rep)
		p.mu.Unlock()
	}
	return rep, nil
}

func (p *Pipeline) run(ctx context.Context, path string) (types.Embedding, error) {
	fail := func(stage types.Stage, err error) (types.Embedding, error) {
		return nil, &types.StageError{Stage: stage, Path: path, Err: err}
	}

	p.logf("Processing %s.\n", path)
	img, err := p.load(path)
	if err != nil {
		return fail(types.StageLoad, err)
	}
	p.logf("  + Original size: %dx%d\n", img.Bounds().Dx(), img.Bounds().Dy())

	if err := ctx.Err(); err != nil {
		return fail(types.StageLocate, err)
	}
	start := time.Now()
	box, err := p.locator.Locate(ctx, img)
	if err != nil {
		return fail(types.StageLocate, err)
	}
	p.logf("  + Face detection took %s.\n", time.Since(start))

	if err := ctx.Err(); err != nil {
		return fail(types.StageAlign, err)
	}
	start = time.Now()
	face, err := p.aligner.Align(ctx, img, box)
	if err != nil {
		return fail(types.StageAlign, err)
	}
	p.logf("  + Face alignment took %s.\n", time.Since(start))

	if err := ctx.Err(); err != nil {
		return fail(types.StageEmbed, err)
	}
	start = time.Now()
	rep, err := p.extractor.Extract(ctx, face)
	if err != nil {
		return fail(types.StageEmbed, err)
	}
	p.logf("  + Forward pass took %s.\n", time.Since(start))

	return rep, nil
}
