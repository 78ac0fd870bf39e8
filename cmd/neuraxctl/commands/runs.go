package commands

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"neurax/internal/printer"
	"neurax/pkg/neurax"
)

var (
	runsLimit  int
	runsOutput string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs",
	Long: `List runs recorded in the runs directory, newest first.

Examples:
  neuraxctl runs
  neuraxctl runs --limit 5 --output json`,
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum number of runs to list")
	runsCmd.Flags().StringVarP(&runsOutput, "output", "o", "table", "Output format (table or json)")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	client, err := newClient(neurax.Options{})
	if err != nil {
		return err
	}
	defer client.Close()

	runs, err := client.Runs(context.Background(), neurax.RunsRequest{Limit: runsLimit})
	if err != nil {
		return printer.Error("failed to read run index", err.Error(), nil)
	}

	switch runsOutput {
	case "json":
		return outputJSON(runs)
	case "table":
	default:
		return printer.Error(
			"invalid output format",
			"Unknown format: "+runsOutput,
			[]string{"Valid formats: table, json"},
		)
	}

	if len(runs) == 0 {
		printer.Info("No runs found in %s\n", runsDir)
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.RunID,
			formatCreated(r.CreatedAtUTC, time.Now()),
			strconv.Itoa(r.Nodes),
			strconv.Itoa(r.Steps),
			r.Topology,
			r.Status,
			formatFloat(r.MeanActivation),
		})
	}
	printer.Table([]string{"RUN", "CREATED", "NODES", "STEPS", "TOPOLOGY", "STATUS", "ACTIVATION"}, rows)
	return nil
}

// formatCreated renders an RFC 3339 timestamp relative to now. Unparseable
// values are returned unchanged.
func formatCreated(value string, now time.Time) string {
	created, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return value
	}
	return humanize.RelTime(created, now, "ago", "from now")
}

func outputJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
