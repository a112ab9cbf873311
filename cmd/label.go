package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/facecmp/internal/utils"
)

var labelCmd = &cobra.Command{
	Use:   "label <run_id> <label>",
	Short: "Attach a label to a stored comparison run",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		runLabel(cmd.Context(), args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(labelCmd)
}

func runLabel(ctx context.Context, id, label string) {
	s, err := openStore(ctx)
	if err != nil {
		utils.Die("Failed to open result store", err, nil)
	}
	defer s.Close(context.Background())

	if err := s.LabelRun(ctx, id, label); err != nil {
		utils.Die("Failed to label run", err, nil)
	}

	fmt.Printf("✅ Run %s labeled as '%s'\n", id, label)
}
