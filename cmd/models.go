package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/facecmp/internal/config"
	"github.com/andresmejia3/facecmp/internal/utils"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Show the model assets the selected backends need",
	Run: func(cmd *cobra.Command, args []string) {
		writeAssets(os.Stdout, cfg)
		if err := cfg.ResolveAssets(); err != nil {
			utils.Die("Model assets missing", err, nil)
		}
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func writeAssets(out io.Writer, c *config.Config) {
	fmt.Fprintf(out, "Backends: detector=%s landmarks=%s embedder=%s\n\n", c.Detector, c.Landmarks, c.Embedder)

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ASSET\tPATH\tSTATUS")
	fmt.Fprintln(w, "-----\t----\t------")
	for _, a := range c.Assets() {
		status := "OK"
		if _, err := os.Stat(a.Path); err != nil {
			status = "MISSING"
		}
		if !a.Required {
			status += " (unused)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", a.Name, a.Path, status)
	}
	w.Flush()
}
