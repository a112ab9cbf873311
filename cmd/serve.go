package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/facecmp/internal/server"
	"github.com/andresmejia3/facecmp/internal/utils"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve face comparisons over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runServe(cmd.Context(), serveAddr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":9090", "Address to listen on")
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context, addr string) error {
	models, err := loadModels(ctx, cfg, false)
	if err != nil {
		utils.Die("Failed to load models", err, models.WorkerCmd())
	}
	defer models.Close()

	srv := server.New(models.Pipeline, server.Options{AccessLog: os.Stderr})

	go func() {
		<-ctx.Done()
		fmt.Fprintln(os.Stderr, "\n🛑 Shutting down...")
		srv.Shutdown()
	}()

	fmt.Fprintf(os.Stderr, "🚀 Listening on %s\n", addr)
	if err := srv.Listen(addr); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
