package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/facecmp/internal/compare"
	"github.com/andresmejia3/facecmp/internal/types"
	"github.com/andresmejia3/facecmp/internal/utils"
)

var runsCmd = &cobra.Command{
	Use:   "runs [run_id]",
	Short: "List stored comparison runs, or print the report of one run",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runRuns(cmd.Context(), args)
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
}

func runRuns(ctx context.Context, args []string) {
	s, err := openStore(ctx)
	if err != nil {
		utils.Die("Failed to open result store", err, nil)
	}
	defer s.Close(context.Background())

	if len(args) == 1 {
		results, err := s.GetRun(ctx, args[0])
		if err != nil {
			utils.Die("Failed to load run", err, nil)
		}
		if err := compare.WriteReport(os.Stdout, results); err != nil {
			utils.Die("Failed to write report", err, nil)
		}
		return
	}

	runs, err := s.ListRuns(ctx)
	if err != nil {
		utils.Die("Failed to list runs", err, nil)
	}
	writeRuns(os.Stdout, runs)
}

func writeRuns(out io.Writer, runs []types.RunSummary) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No comparison runs found in database.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tLABEL\tIMAGES\tPAIRS\tCREATED")
	fmt.Fprintln(w, "--\t-----\t------\t-----\t-------")

	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", r.ID, r.Label, r.ImageCount, r.PairCount, r.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	w.Flush()
}
