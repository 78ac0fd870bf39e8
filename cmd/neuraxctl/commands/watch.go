package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"neurax/internal/config"
	"neurax/internal/neuron"
	"neurax/internal/printer"
)

var (
	watchRedisURL string
	watchInstance string
	watchOutput   string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream knowledge packages from Redis",
	Long: `Stream the knowledge packages published by a mesh that exchanges
through Redis.

Output Formats:
  default - One human-readable line per package
  json    - Line-delimited JSON for programmatic processing

Examples:
  # Watch the default instance
  neuraxctl watch --redis-url redis://localhost:6379

  # Export packages as JSON
  neuraxctl watch --instance lab --output=json > packages.jsonl`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchRedisURL, "redis-url", "", "Redis URL (defaults to $"+config.RedisURLEnv+")")
	watchCmd.Flags().StringVarP(&watchInstance, "instance", "n", "default", "Redis namespace of the mesh")
	watchCmd.Flags().StringVarP(&watchOutput, "output", "o", "default", "Output format (default or json)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchOutput != "default" && watchOutput != "json" {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutput),
			[]string{"Valid formats: default, json"},
		)
	}

	redisURL := watchRedisURL
	if redisURL == "" {
		redisURL = os.Getenv(config.RedisURLEnv)
	}
	if redisURL == "" {
		return printer.Error(
			"no Redis URL",
			"watch needs the Redis server the mesh exchanges through.",
			[]string{fmt.Sprintf("Pass --redis-url or set %s", config.RedisURLEnv)},
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus, err := connectRedisBus(ctx, redisURL, watchInstance)
	if err != nil {
		return err
	}
	defer bus.Close()

	sub, err := bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sub.Close()

	if watchOutput == "default" {
		printer.Step("Watching knowledge packages on instance '%s' (Ctrl+C to stop)\n", watchInstance)
	}
	return streamPackages(ctx, sub.Events(), sub.Errors(), watchOutput, os.Stdout)
}

// streamPackages writes packages until ctx is done or events is closed.
func streamPackages(ctx context.Context, events <-chan neuron.KnowledgePackage, errs <-chan error, format string, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			printer.Warning("%v\n", err)
		case pkg, ok := <-events:
			if !ok {
				return nil
			}
			if format == "json" {
				if err := encoder.Encode(pkg); err != nil {
					return err
				}
				continue
			}
			fmt.Fprintln(w, formatPackage(pkg))
		}
	}
}

func formatPackage(pkg neuron.KnowledgePackage) string {
	return fmt.Sprintf("[%s] %s iter=%d activation=%s creativity=%s decision=%s p_eff=%s",
		pkg.Timestamp.UTC().Format(time.TimeOnly),
		pkg.NodeID,
		pkg.Iteration,
		formatFloat(pkg.Activation),
		formatFloat(pkg.Creativity),
		formatFloat(pkg.Decision),
		formatFloat(pkg.PEffective),
	)
}
