package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"surveysync/internal/service"

	"github.com/spf13/cobra"
)

var (
	exportOut    string
	exportFormat string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every stored submission as one table",
	Long: `Read every stored submission and write them as a single table indexed
by KEY, one column per field path. Missing values are left empty.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportFormat != "csv" && exportFormat != "json" {
			return fmt.Errorf("unsupported format %q (want csv or json)", exportFormat)
		}

		a, err := newApp(cfg, false)
		if err != nil {
			return err
		}
		defer a.Close()

		table, err := service.SubmissionsTable(cmd.Context(), a.store)
		if err != nil {
			return err
		}

		var out io.Writer = cmd.OutOrStdout()
		if exportOut != "" && exportOut != "-" {
			f, err := os.Create(exportOut)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", exportOut, err)
			}
			defer f.Close()
			out = f
		}

		if exportFormat == "json" {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(table)
		}
		if err := service.WriteCSV(out, table); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%d submissions exported\n", table.Len())
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default stdout)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "output format: csv or json")
}
