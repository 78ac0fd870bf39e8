package commands

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"neurax/internal/printer"
	"neurax/internal/storage"
	"neurax/pkg/neurax"
)

var (
	version string
	commit  string
	date    string
)

var (
	runsDir   string
	storeKind string
	dbPath    string
	verbose   bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "neuraxctl",
	Short: "neuraxctl - gravitational field neuron simulator",
	Long: `neuraxctl drives meshes of field neurons. Each neuron evolves its own
4-D scalar field, derives activation and probability indices from it and
shares knowledge packages with its peers.

Runs are persisted to a store and written as JSON and CSV artifacts that
can be listed, inspected and exported.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute runs the root command. Cobra's own error and usage output is
// silenced; errors are printed by the printer package.
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	err := rootCmd.Execute()
	if err != nil && !printer.IsPrinted(err) {
		printer.Error(err.Error(), "", nil)
	}
	return err
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&runsDir, "runs-dir", "runs", "Directory holding run artifacts")
	rootCmd.PersistentFlags().StringVar(&storeKind, "store", storage.DefaultStoreKind(), "Run store backend (memory or sqlite)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "neurax.db", "SQLite database path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func newLogger() *log.Logger {
	var w io.Writer = io.Discard
	if verbose {
		w = os.Stderr
	}
	return log.New(w, "", log.LstdFlags)
}

func newClient(opts neurax.Options) (*neurax.Client, error) {
	if opts.RunsDir == "" {
		opts.RunsDir = runsDir
	}
	if opts.StoreKind == "" {
		opts.StoreKind = storeKind
	}
	if opts.DBPath == "" {
		opts.DBPath = dbPath
	}
	if opts.Logger == nil {
		opts.Logger = newLogger()
	}
	opts.Verbose = opts.Verbose || verbose
	client, err := neurax.New(opts)
	if err != nil {
		return nil, printer.Error(
			"failed to open run store",
			err.Error(),
			[]string{"Valid stores: memory, sqlite (sqlite needs the 'sqlite' build tag)"},
		)
	}
	return client, nil
}
