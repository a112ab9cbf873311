package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/andresmejia3/facecmp/internal/config"
	"github.com/andresmejia3/facecmp/internal/store"
)

var (
	// cfg is the resolved configuration shared by subcommands
	cfg *config.Config

	configPath       string
	modelRoot        string
	verbose          bool
	dbURL            string
	detectorBackend  string
	landmarksBackend string
	embedderBackend  string
	alignmentScheme  string
)

// Version is the application version.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "facecmp",
	Short:   "Compare faces across images by embedding distance",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		applyFlags(cmd, cfg)
		return cfg.Validate()
	},
}

// applyFlags lets explicitly set flags win over file and environment values.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("models") {
		c.ModelRoot = modelRoot
	}
	if flags.Changed("verbose") {
		c.Verbose = verbose
	}
	if flags.Changed("db") {
		c.Database.URL = dbURL
	}
	if flags.Changed("detector") {
		c.Detector = detectorBackend
	}
	if flags.Changed("landmarks") {
		c.Landmarks = landmarksBackend
	}
	if flags.Changed("embedder") {
		c.Embedder = embedderBackend
	}
	if flags.Changed("alignment") {
		c.Alignment = alignmentScheme
	}
}

// databaseURL resolves the connection string for commands that use the result store.
func databaseURL() string {
	if cfg.Database.URL != "" {
		return cfg.Database.URL
	}
	// Try to build the connection string from the environment
	if host := os.Getenv("POSTGRES_HOST"); host != "" {
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		name := os.Getenv("POSTGRES_DB")
		port := os.Getenv("POSTGRES_PORT")
		if port == "" {
			port = "5432"
		}
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, pass, host, port, name)
	}
	// Fallback to local default if no env vars are present
	return "postgres://localhost:5432/facecmp"
}

// openStore connects to the result store. Callers close it with context.Background
// because the command context may already be cancelled.
func openStore(ctx context.Context) (*store.Store, error) {
	s, err := store.New(ctx, databaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return s, nil
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(func() {
		// A missing .env is fine; the environment may already be set
		_ = godotenv.Load()
	})

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to a YAML config file")
	flags.StringVar(&modelRoot, "models", "models", "Installation root holding the model assets")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Print per-stage progress and timings to stderr")
	flags.StringVar(&dbURL, "db", "", "PostgreSQL connection string (default: postgres://localhost:5432/facecmp)")
	flags.StringVar(&detectorBackend, "detector", config.BackendPigo, "Face detector backend: pigo, worker")
	flags.StringVar(&landmarksBackend, "landmarks", config.BackendPigo, "Landmark predictor backend: pigo, worker")
	flags.StringVar(&embedderBackend, "embedder", config.BackendWorker, "Embedding backend: worker, http")
	flags.StringVar(&alignmentScheme, "alignment", "", "Alignment scheme: outer-eyes-and-nose, pupils-and-mouth (default: matches --landmarks)")
}
