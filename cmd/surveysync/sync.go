package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	syncNoAttachments   bool
	syncIncludeRejected bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync cycle and print the ids of the written submissions",
	Long: `Run one sync cycle against the configured form and storage.

The ids of the submissions written are printed one per line, in the order
the platform returned them. If the cycle fails, the ids written before the
failure are still printed and the cursor is left where it was.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("no-attachments") {
			cfg.Sync.NoAttachments = syncNoAttachments
		}
		if cmd.Flags().Changed("include-rejected") {
			cfg.Sync.IncludeRejected = syncIncludeRejected
		}

		a, err := newApp(cfg, true)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithTimeout(ctx, cfg.Sync.Timeout)
		defer cancel()

		ids, err := a.svc.Sync(ctx, a.store, a.opts)
		out := cmd.OutOrStdout()
		for _, id := range ids {
			fmt.Fprintln(out, id)
		}
		if err != nil {
			return fmt.Errorf("sync stopped after %d submissions: %w", len(ids), err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%d submissions written\n", len(ids))
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncNoAttachments, "no-attachments", false, "skip attachment offload (overrides SYNC_NO_ATTACHMENTS)")
	syncCmd.Flags().BoolVar(&syncIncludeRejected, "include-rejected", false, "also fetch rejected submissions (overrides SYNC_INCLUDE_REJECTED)")
}
