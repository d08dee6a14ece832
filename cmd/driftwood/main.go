// Command driftwood validates SedimentDrift trajectory datasets and splits
// them into visualization-ready fragments.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/justapithecus/driftwood/driftwood"
)

// Exit codes. Orchestrators branch on these: 1 means the dataset needs the
// compatibility step (or the user declined), 2 means the run itself failed.
const (
	exitOK     = 0
	exitAction = 1
	exitFatal  = 2
)

var (
	verbose bool

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "driftwood",
	Short: "SedimentDrift dataset validator and fragmenter",
	Long: `driftwood prepares OpenDrift SedimentDrift trajectory datasets for
visualization pipelines.

It validates that a dataset carries the particulate variables the renderer
requires, and splits large datasets into memory-bounded fragments, injecting
any missing variables with physically sensible defaults.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(fragmentCmd)
}

// actionNeeded marks outcomes that exit 1 instead of 2: the tool worked,
// but the dataset (or the user) requires a follow-up.
type actionNeededError struct {
	msg string
}

func (e *actionNeededError) Error() string { return e.msg }

func main() {
	err := rootCmd.Execute()
	if err == nil {
		os.Exit(exitOK)
	}

	var action *actionNeededError
	switch {
	case errors.Is(err, driftwood.ErrUserCancelled):
		fmt.Fprintln(os.Stderr, "cancelled")
		os.Exit(exitAction)
	case errors.As(err, &action):
		os.Exit(exitAction)
	default:
		fmt.Fprintf(os.Stderr, "❌ ERROR: %v\n", err)
		os.Exit(exitFatal)
	}
}
