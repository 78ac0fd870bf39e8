package commands

import (
	"os"
	"sort"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"neurax/internal/printer"
	"neurax/pkg/neurax"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <state.json>",
	Short: "Summarize a saved neuron state",
	Long: `Summarize a neuron state written by 'neuraxctl run --save-states'.

Prints the node identity, parameters, neighbour weights and the size of
the field container without loading the field itself.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	path := args[0]
	state, err := neurax.ReadState(path)
	if err != nil {
		return printer.Error(
			"failed to read neuron state",
			err.Error(),
			[]string{"Save states with:\n  neuraxctl run --save-states"},
		)
	}

	fieldSize := "missing"
	if info, err := os.Stat(state.FieldPath(path)); err == nil {
		fieldSize = humanize.Bytes(uint64(info.Size()))
	}

	printer.Info("Node:        %s\n", state.NodeID)
	printer.Info("Iterations:  %s\n", humanize.Comma(int64(state.Iterations)))
	printer.Info("Saved:       %s\n", humanize.Time(state.SavedAt))
	printer.Info("Params:      p0=%s beta1=%s beta2=%s beta3=%s\n",
		formatFloat(state.Params.P0), formatFloat(state.Params.Beta1),
		formatFloat(state.Params.Beta2), formatFloat(state.Params.Beta3))
	printer.Info("Field:       %s (%s)\n", state.FieldFile, fieldSize)
	printer.Info("Knowledge:   %d shared, %d received\n", len(state.SharedKnowledge), len(state.ReceivedKnowledge))

	if n := len(state.History.Activation); n > 0 {
		printer.Info("Last step:   activation=%s p_eff=%s\n",
			formatFloat(state.History.Activation[n-1]),
			formatFloat(lastOr(state.History.PEffective, 0)))
	}

	if len(state.Neighbors) == 0 {
		printer.Info("Neighbours:  none\n")
		return nil
	}
	printer.Println()
	printer.Table([]string{"NEIGHBOUR", "WEIGHT"}, neighbourRows(state.Neighbors))
	return nil
}

func neighbourRows(neighbours map[string]float64) [][]string {
	ids := make([]string, 0, len(neighbours))
	for id := range neighbours {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, []string{id, strconv.FormatFloat(neighbours[id], 'f', 4, 64)})
	}
	return rows
}

func lastOr(values []float64, fallback float64) float64 {
	if len(values) == 0 {
		return fallback
	}
	return values[len(values)-1]
}
