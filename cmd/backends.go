package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/andresmejia3/facecmp/internal/align"
	"github.com/andresmejia3/facecmp/internal/cascade"
	"github.com/andresmejia3/facecmp/internal/config"
	"github.com/andresmejia3/facecmp/internal/embed"
	"github.com/andresmejia3/facecmp/internal/embedclient"
	"github.com/andresmejia3/facecmp/internal/locate"
	"github.com/andresmejia3/facecmp/internal/pipeline"
	"github.com/andresmejia3/facecmp/internal/utils"
	"github.com/andresmejia3/facecmp/internal/worker"
)

// Models holds the backends loaded once per process.
type Models struct {
	Pipeline *pipeline.Pipeline
	// Worker is nil unless a selected backend runs out of process.
	Worker *worker.ModelWorker
}

// WorkerCmd returns the worker process for error reports, or nil.
func (m *Models) WorkerCmd() *utils.SafeCommand {
	if m == nil || m.Worker == nil {
		return nil
	}
	return m.Worker.Cmd
}

func (m *Models) Close() {
	if m.Worker != nil {
		m.Worker.Close()
	}
}

// loadModels resolves assets and builds the pipeline for the configured backends.
// The worker, if any, is bound to ctx.
func loadModels(ctx context.Context, c *config.Config, memoize bool) (*Models, error) {
	if err := c.ResolveAssets(); err != nil {
		return nil, err
	}

	m := &Models{}
	if c.NeedsWorker() {
		if c.Verbose {
			fmt.Fprintln(os.Stderr, "⚙️  Spawning model worker...")
		}
		w, err := worker.NewModelWorker(ctx, 0, c.Worker.Python, "-u", c.WorkerScriptPath(),
			"--predictor", c.PredictorPath(),
			"--network", c.NetworkModelPath(),
			"--img-dim", strconv.Itoa(c.ImageDim),
		)
		if err != nil {
			return nil, err
		}
		m.Worker = w
	}

	var detector locate.Detector
	switch c.Detector {
	case config.BackendWorker:
		detector = m.Worker
	default:
		f, err := cascade.NewFinder(c.FaceFinderPath(), c.Cascade)
		if err != nil {
			m.Close()
			return nil, err
		}
		detector = f
	}

	var predictor align.LandmarkPredictor
	switch c.Landmarks {
	case config.BackendWorker:
		predictor = m.Worker
	default:
		l, err := cascade.NewLandmarker(c.PuplocPath(), c.FlplocDir(), c.Cascade)
		if err != nil {
			m.Close()
			return nil, err
		}
		predictor = l
	}

	var embedder embed.Embedder
	switch c.Embedder {
	case config.BackendHTTP:
		embedder = embedclient.New(c.Embedding.URL)
	default:
		embedder = m.Worker
	}

	scheme, err := c.Scheme()
	if err != nil {
		m.Close()
		return nil, err
	}
	aligner, err := align.New(predictor, scheme, c.ImageDim)
	if err != nil {
		m.Close()
		return nil, err
	}

	var log io.Writer
	if c.Verbose {
		log = os.Stderr
	}
	m.Pipeline = pipeline.New(
		locate.New(detector),
		aligner,
		embed.NewExtractor(embedder, c.ImageDim, c.EmbeddingDim),
		pipeline.Options{Log: log, Memoize: memoize},
	)
	return m, nil
}
