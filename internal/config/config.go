package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/andresmejia3/facecmp/internal/align"
	"github.com/andresmejia3/facecmp/internal/cascade"
	"github.com/andresmejia3/facecmp/internal/types"
	"github.com/andresmejia3/facecmp/internal/worker"
)

// Backend names accepted for each model slot.
const (
	BackendPigo   = "pigo"
	BackendWorker = "worker"
	BackendHTTP   = "http"
)

type Config struct {
	ModelRoot    string          `yaml:"models"`
	ImageDim     int             `yaml:"image_dim"`
	EmbeddingDim int             `yaml:"embedding_dim"`
	Detector     string          `yaml:"detector"`  // pigo | worker
	Landmarks    string          `yaml:"landmarks"` // pigo | worker
	Embedder     string          `yaml:"embedder"`  // worker | http
	Alignment    string          `yaml:"alignment"` // empty picks the scheme matching Landmarks
	Verbose      bool            `yaml:"verbose"`
	Worker       WorkerConfig    `yaml:"worker"`
	Embedding    EmbeddingConfig `yaml:"embedding"`
	Database     DatabaseConfig  `yaml:"database"`
	Cascade      cascade.Options `yaml:"cascade"`
}

type WorkerConfig struct {
	Python string `yaml:"python"` // defaults to python3
}

type EmbeddingConfig struct {
	URL string `yaml:"url"` // defaults to http://localhost:8000
}

type DatabaseConfig struct {
	URL string `yaml:"url"` // PostgreSQL connection URL, only needed with --store
}

// Asset is one model file resolved against the installation root.
type Asset struct {
	Name     string
	Path     string
	Required bool
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		ModelRoot:    "models",
		ImageDim:     96,
		EmbeddingDim: 128,
		Detector:     BackendPigo,
		Landmarks:    BackendPigo,
		Embedder:     BackendWorker,
		Worker:       WorkerConfig{Python: "python3"},
		Embedding:    EmbeddingConfig{URL: "http://localhost:8000"},
		Cascade:      cascade.DefaultOptions(),
	}
}

// Load layers defaults, the optional YAML file at path and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	envString("FACECMP_MODELS", &cfg.ModelRoot)
	envString("FACECMP_DETECTOR", &cfg.Detector)
	envString("FACECMP_LANDMARKS", &cfg.Landmarks)
	envString("FACECMP_EMBEDDER", &cfg.Embedder)
	envString("FACECMP_ALIGNMENT", &cfg.Alignment)
	envString("FACECMP_PYTHON", &cfg.Worker.Python)
	envString("EMBEDDING_URL", &cfg.Embedding.URL)
	envString("DATABASE_URL", &cfg.Database.URL)
	cfg.ImageDim = envInt("FACECMP_IMAGE_DIM", cfg.ImageDim)
	cfg.EmbeddingDim = envInt("FACECMP_EMBEDDING_DIM", cfg.EmbeddingDim)
	if v, err := strconv.ParseBool(os.Getenv("FACECMP_VERBOSE")); err == nil {
		cfg.Verbose = v
	}

	return cfg, nil
}

// Validate checks backend names and dimensions.
func (c *Config) Validate() error {
	check := func(slot, name string, allowed ...string) error {
		for _, a := range allowed {
			if name == a {
				return nil
			}
		}
		return fmt.Errorf("unknown %s backend %q (want one of %v)", slot, name, allowed)
	}
	if err := check("detector", c.Detector, BackendPigo, BackendWorker); err != nil {
		return err
	}
	if err := check("landmarks", c.Landmarks, BackendPigo, BackendWorker); err != nil {
		return err
	}
	if err := check("embedder", c.Embedder, BackendWorker, BackendHTTP); err != nil {
		return err
	}
	if c.ImageDim <= 0 || c.EmbeddingDim <= 0 {
		return fmt.Errorf("image_dim and embedding_dim must be positive, got %d and %d", c.ImageDim, c.EmbeddingDim)
	}
	_, err := c.Scheme()
	return err
}

// Scheme returns the alignment scheme for the selected landmark backend.
// An explicit Alignment must match the layout that backend produces.
func (c *Config) Scheme() (align.Scheme, error) {
	layout := cascade.LayoutSize
	if c.Landmarks == BackendWorker {
		layout = worker.LayoutSize
	}

	if c.Alignment == "" {
		if c.Landmarks == BackendWorker {
			return align.OuterEyesAndNose, nil
		}
		return align.PupilsAndMouth, nil
	}

	s, err := align.SchemeByName(c.Alignment)
	if err != nil {
		return align.Scheme{}, err
	}
	if s.Cardinality != layout {
		return align.Scheme{}, fmt.Errorf("alignment %s needs %d landmarks but %s landmarks produce %d",
			s.Name, s.Cardinality, c.Landmarks, layout)
	}
	return s, nil
}

func (c *Config) FaceFinderPath() string { return filepath.Join(c.ModelRoot, "pigo", "facefinder") }
func (c *Config) PuplocPath() string     { return filepath.Join(c.ModelRoot, "pigo", "puploc") }
func (c *Config) FlplocDir() string      { return filepath.Join(c.ModelRoot, "pigo", "lps") }

func (c *Config) PredictorPath() string {
	return filepath.Join(c.ModelRoot, "dlib", "shape_predictor_68_face_landmarks.dat")
}

func (c *Config) NetworkModelPath() string {
	return filepath.Join(c.ModelRoot, "openface", "nn4.small2.v1.t7")
}

func (c *Config) WorkerScriptPath() string {
	return filepath.Join(c.ModelRoot, "worker", "model_worker.py")
}

// NeedsWorker reports whether any selected backend runs in the model worker.
func (c *Config) NeedsWorker() bool {
	return c.Detector == BackendWorker || c.Landmarks == BackendWorker || c.Embedder == BackendWorker
}

// Assets lists every known model file, marking those the selected backends need.
func (c *Config) Assets() []Asset {
	return []Asset{
		{Name: "pigo face finder", Path: c.FaceFinderPath(), Required: c.Detector == BackendPigo},
		{Name: "pigo pupil localizer", Path: c.PuplocPath(), Required: c.Landmarks == BackendPigo},
		{Name: "pigo landmark cascades", Path: c.FlplocDir(), Required: c.Landmarks == BackendPigo},
		{Name: "dlib shape predictor", Path: c.PredictorPath(), Required: c.Landmarks == BackendWorker},
		{Name: "openface network", Path: c.NetworkModelPath(), Required: c.Embedder == BackendWorker},
		{Name: "model worker", Path: c.WorkerScriptPath(), Required: c.NeedsWorker()},
	}
}

// ResolveAssets fails with a *types.AssetError for the first required asset
// that does not exist.
func (c *Config) ResolveAssets() error {
	for _, a := range c.Assets() {
		if !a.Required {
			continue
		}
		if _, err := os.Stat(a.Path); err != nil {
			return &types.AssetError{Name: a.Name, Path: a.Path}
		}
	}
	return nil
}
