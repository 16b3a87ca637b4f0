package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"surveysync/internal/config"
	"surveysync/internal/logging"
	"surveysync/internal/tracing"

	"github.com/spf13/cobra"
)

var (
	cfg             *config.Config
	logCloser       io.Closer
	shutdownTracing tracing.ShutdownFunc
)

var rootCmd = &cobra.Command{
	Use:   "surveysync",
	Short: "Incrementally copy ODK Central submissions into local storage",
	Long: `surveysync pulls new and edited submissions of one ODK Central form,
flattens them into path-keyed records and writes them to the configured
storage backend, optionally offloading media attachments.

Configuration is read from the environment (and a .env file if present).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		logCloser = logging.Setup(cfg.Log)

		shutdownTracing, err = tracing.Setup(cmd.Context(), cfg.Tracing, cfg.App.Name, cfg.App.Version)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if shutdownTracing != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := shutdownTracing(ctx); err != nil {
				log.Printf("Warning: trace flush failed: %v", err)
			}
			cancel()
		}
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, syncCmd, exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
