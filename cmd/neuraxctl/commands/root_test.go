package commands

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neurax/internal/field"
	"neurax/internal/neuron"
	"neurax/internal/printer"
)

func captureOutput(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	previous := color.NoColor
	color.NoColor = true
	printer.SetOutput(stdout, stderr)
	t.Cleanup(func() {
		color.NoColor = previous
		printer.SetOutput(io.Writer(os.Stdout), io.Writer(os.Stderr))
	})
	return stdout, stderr
}

// TestRootCommand_ShowsHelpWhenNoSubcommand tests that the root command
// shows help instead of silently succeeding when invoked without a subcommand
func TestRootCommand_ShowsHelpWhenNoSubcommand(t *testing.T) {
	testRoot := &cobra.Command{
		Use:   "neuraxctl",
		Short: "Test root command",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	buf := new(bytes.Buffer)
	testRoot.SetOut(buf)
	testRoot.SetErr(buf)

	err := testRoot.Execute()
	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "Usage:", "Help should be displayed")
}

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "runs", "steps", "inspect", "watch", "export"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestRootCommand_RejectsUnknownFlags(t *testing.T) {
	captureOutput(t)
	rootCmd.SetArgs([]string{"--unknown-flag", "value"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := Execute()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flag")
}

func TestSetVersionInfo(t *testing.T) {
	SetVersionInfo("1.2.3", "abc", "today")
	assert.Equal(t, "1.2.3 (commit: abc, built: today)", rootCmd.Version)
}

func TestRunRunsStepsAndExport(t *testing.T) {
	stdout, _ := captureOutput(t)
	base := t.TempDir()
	runs := filepath.Join(base, "runs")
	exports := filepath.Join(base, "exports")

	execute := func(args ...string) error {
		rootCmd.SetArgs(args)
		return Execute()
	}
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, execute("run",
		"--runs-dir", runs, "--store", "memory",
		"--nodes", "2", "--steps", "2", "--size", "4", "--time-steps", "2",
		"--intensity", "0.1", "--seed", "9", "--save-states"))
	assert.Contains(t, stdout.String(), "ROUND")
	assert.Contains(t, stdout.String(), "completed")

	stdout.Reset()
	require.NoError(t, execute("runs", "--runs-dir", runs, "--store", "memory"))
	assert.Contains(t, stdout.String(), "completed")
	assert.Contains(t, stdout.String(), "full")

	stdout.Reset()
	require.NoError(t, execute("steps", "--runs-dir", runs, "--store", "memory", "--latest", "--summary"))
	assert.Contains(t, stdout.String(), "MEAN ACT")

	stdout.Reset()
	require.NoError(t, execute("export", "--runs-dir", runs, "--store", "memory", "--latest", "--out", exports))
	assert.Contains(t, stdout.String(), "Exported run")

	entries, err := os.ReadDir(exports)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	states, err := filepath.Glob(filepath.Join(runs, entries[0].Name(), "states", "*.json"))
	require.NoError(t, err)
	require.Len(t, states, 2)

	stdout.Reset()
	require.NoError(t, execute("inspect", states[0]))
	assert.Contains(t, stdout.String(), "Iterations:  2")
	assert.Contains(t, stdout.String(), "NEIGHBOUR")
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	_, stderr := captureOutput(t)
	rootCmd.SetArgs([]string{"run", "--runs-dir", t.TempDir(), "--store", "memory", "--size", "1"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := Execute()
	require.Error(t, err)
	assert.Contains(t, stderr.String(), "neuron.size must be >= 2")

	// Reset the flag for later tests sharing rootCmd.
	require.NoError(t, runCmd.Flags().Set("size", "20"))
}

func TestFormatCreated(t *testing.T) {
	now := time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, "3 hours ago", formatCreated(now.Add(-3*time.Hour).Format(time.RFC3339Nano), now))
	assert.Equal(t, "not-a-time", formatCreated("not-a-time", now))
}

func TestNeighbourRowsAreSorted(t *testing.T) {
	rows := neighbourRows(map[string]float64{"b": 0.5, "a": 0.25})
	assert.Equal(t, [][]string{{"a", "0.2500"}, {"b", "0.5000"}}, rows)
}

func TestStreamPackages(t *testing.T) {
	pkg := neuron.KnowledgePackage{
		NodeID:     "node-a",
		Timestamp:  time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC),
		Iteration:  3,
		Activation: 0.5,
		PEffective: 0.25,
		Metrics:    field.Metrics{TotalEnergy: 1},
	}

	t.Run("default format", func(t *testing.T) {
		events := make(chan neuron.KnowledgePackage, 1)
		events <- pkg
		close(events)

		var buf bytes.Buffer
		require.NoError(t, streamPackages(context.Background(), events, nil, "default", &buf))
		assert.Equal(t, "[15:04:05] node-a iter=3 activation=0.5 creativity=0 decision=0 p_eff=0.25\n", buf.String())
	})

	t.Run("json format", func(t *testing.T) {
		events := make(chan neuron.KnowledgePackage, 1)
		events <- pkg
		close(events)

		var buf bytes.Buffer
		require.NoError(t, streamPackages(context.Background(), events, nil, "json", &buf))
		assert.Contains(t, buf.String(), `"node_id":"node-a"`)
	})

	t.Run("stops on cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		var buf bytes.Buffer
		require.NoError(t, streamPackages(ctx, make(chan neuron.KnowledgePackage), nil, "default", &buf))
		assert.Empty(t, buf.String())
	})
}
