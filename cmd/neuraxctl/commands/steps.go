package commands

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"neurax/internal/printer"
	"neurax/pkg/neurax"
)

var (
	stepsRunID   string
	stepsLatest  bool
	stepsNode    string
	stepsLimit   int
	stepsSummary bool
	stepsOutput  string
)

var stepsCmd = &cobra.Command{
	Use:   "steps",
	Short: "Show the step records of a run",
	Long: `Show the per-node step records of a run, or a per-node summary of them.

Examples:
  neuraxctl steps --latest
  neuraxctl steps --run-id <id> --node <node-id> --limit 10
  neuraxctl steps --latest --summary`,
	RunE: runStepsCmd,
}

func init() {
	stepsCmd.Flags().StringVar(&stepsRunID, "run-id", "", "Run to show")
	stepsCmd.Flags().BoolVar(&stepsLatest, "latest", false, "Show the most recent run")
	stepsCmd.Flags().StringVar(&stepsNode, "node", "", "Only show steps of this node")
	stepsCmd.Flags().IntVar(&stepsLimit, "limit", 0, "Show only the last N steps (0 = all)")
	stepsCmd.Flags().BoolVar(&stepsSummary, "summary", false, "Summarize the steps per node")
	stepsCmd.Flags().StringVarP(&stepsOutput, "output", "o", "table", "Output format (table or json)")
	rootCmd.AddCommand(stepsCmd)
}

func runStepsCmd(cmd *cobra.Command, args []string) error {
	if stepsOutput != "table" && stepsOutput != "json" {
		return printer.Error(
			"invalid output format",
			"Unknown format: "+stepsOutput,
			[]string{"Valid formats: table, json"},
		)
	}

	client, err := newClient(neurax.Options{})
	if err != nil {
		return err
	}
	defer client.Close()

	ctx := context.Background()
	req := neurax.StepsRequest{RunID: stepsRunID, Latest: stepsLatest, NodeID: stepsNode, Limit: stepsLimit}

	if stepsSummary {
		nodes, err := client.NodeSummaries(ctx, req)
		if err != nil {
			return stepsError(err)
		}
		if stepsOutput == "json" {
			return outputJSON(nodes)
		}
		rows := make([][]string, 0, len(nodes))
		for _, n := range nodes {
			rows = append(rows, []string{
				n.NodeID,
				strconv.Itoa(n.Activation.Count),
				formatFloat(n.Activation.Mean),
				formatFloat(n.Activation.Max),
				formatFloat(n.PEffective.Mean),
				formatFloat(n.Consensus.Mean),
			})
		}
		printer.Table([]string{"NODE", "STEPS", "MEAN ACT", "MAX ACT", "MEAN P_EFF", "MEAN CONSENSUS"}, rows)
		return nil
	}

	steps, err := client.Steps(ctx, req)
	if err != nil {
		return stepsError(err)
	}
	if stepsOutput == "json" {
		return outputJSON(steps)
	}
	rows := make([][]string, 0, len(steps))
	for _, s := range steps {
		rows = append(rows, []string{
			strconv.Itoa(s.Round),
			s.NodeID,
			formatFloat(s.Activation),
			formatFloat(s.Creativity),
			formatFloat(s.Decision),
			formatFloat(s.NetworkConsensus),
			formatFloat(s.PEffective),
			strconv.Itoa(s.ConnectedPeers),
		})
	}
	printer.Table([]string{"ROUND", "NODE", "ACTIVATION", "CREATIVITY", "DECISION", "CONSENSUS", "P_EFF", "PEERS"}, rows)
	return nil
}

func stepsError(err error) error {
	return printer.Error(
		"failed to read steps",
		err.Error(),
		[]string{"List recorded runs:\n  neuraxctl runs"},
	)
}
