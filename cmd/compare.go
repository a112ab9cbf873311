package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/andresmejia3/facecmp/internal/compare"
	"github.com/andresmejia3/facecmp/internal/types"
	"github.com/andresmejia3/facecmp/internal/utils"
)

// CompareOptions holds the flags of the compare command
type CompareOptions struct {
	Memoize  bool
	Progress bool
	Store    bool
}

var compareOpts CompareOptions

var compareCmd = &cobra.Command{
	Use:   "compare <image> <image> [<image>...]",
	Short: "Print the squared L2 distance between the faces of every pair of images",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		runCompare(cmd.Context(), args, compareOpts)
		return nil
	},
}

func init() {
	compareCmd.Flags().BoolVar(&compareOpts.Memoize, "memoize", false, "Reuse the representation of an image that appears in several pairs")
	compareCmd.Flags().BoolVarP(&compareOpts.Progress, "progress", "p", false, "Show a progress bar over pairs on stderr")
	compareCmd.Flags().BoolVar(&compareOpts.Store, "store", false, "Persist the report to PostgreSQL")
	rootCmd.AddCommand(compareCmd)
}

func runCompare(ctx context.Context, paths []string, opts CompareOptions) {
	models, err := loadModels(ctx, cfg, opts.Memoize)
	if err != nil {
		utils.Die("Failed to load models", err, models.WorkerCmd())
	}
	defer models.Close()

	results, err := compareImages(ctx, compare.New(models.Pipeline), paths, opts.Progress, os.Stderr)
	if err != nil {
		models.Close()
		utils.Die("Comparison failed", err, models.WorkerCmd())
	}

	if opts.Store {
		s, err := openStore(ctx)
		if err != nil {
			utils.Die("Failed to open result store", err, nil)
		}
		runID, err := s.SaveRun(ctx, len(paths), results)
		s.Close(context.Background())
		if err != nil {
			utils.Die("Failed to store comparison run", err, nil)
		}
		fmt.Fprintf(os.Stderr, "💾 Stored run %s\n", runID)
	}

	if err := compare.WriteReport(os.Stdout, results); err != nil {
		utils.Die("Failed to write report", err, nil)
	}
}

// compareImages runs the comparison, optionally drawing a bar on w.
// Nothing is returned unless every pair succeeded.
func compareImages(ctx context.Context, c *compare.Comparator, paths []string, progress bool, w io.Writer) ([]types.ComparisonResult, error) {
	if progress {
		bar := progressbar.NewOptions(len(compare.Pairs(len(paths))),
			progressbar.OptionSetDescription("🔍 Comparing"),
			progressbar.OptionSetWriter(w),
			progressbar.OptionShowCount(),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(w) }),
		)
		c.OnPair = func(done, total int) {
			_ = bar.Set(done)
		}
	}
	return c.Compare(ctx, paths)
}
