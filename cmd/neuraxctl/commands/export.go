package commands

import (
	"context"

	"github.com/spf13/cobra"

	"neurax/internal/printer"
	"neurax/pkg/neurax"
)

var (
	exportRunID  string
	exportLatest bool
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Copy a run's artifacts to another directory",
	Long: `Copy the artifacts of a run (config, rounds, steps, edges and final
states) to <out>/<run id>.

Examples:
  neuraxctl export --latest
  neuraxctl export --run-id <id> --out /tmp/exports`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportRunID, "run-id", "", "Run to export")
	exportCmd.Flags().BoolVar(&exportLatest, "latest", false, "Export the most recent run")
	exportCmd.Flags().StringVar(&exportOut, "out", "exports", "Destination directory")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	client, err := newClient(neurax.Options{ExportsDir: exportOut})
	if err != nil {
		return err
	}
	defer client.Close()

	exported, err := client.Export(context.Background(), neurax.ExportRequest{
		RunID:  exportRunID,
		Latest: exportLatest,
	})
	if err != nil {
		return printer.Error(
			"export failed",
			err.Error(),
			[]string{"List recorded runs:\n  neuraxctl runs"},
		)
	}

	printer.Success("Exported run %s\n", exported.RunID)
	printer.Info("  Directory: %s\n", exported.Directory)
	return nil
}
