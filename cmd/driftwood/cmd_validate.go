package main

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/justapithecus/driftwood/driftwood"
	"github.com/justapithecus/driftwood/internal/console"
)

var (
	validateQuick bool
	validateJSON  bool
)

var validateCmd = &cobra.Command{
	Use:   "validate <dataset.nc>",
	Short: "Check a dataset for the variables the visualization requires",
	Long: `Validates a trajectory dataset against the SedimentDrift variable
catalog. Missing required variables are a normal outcome: they signal that
the fragment step should run to inject them (exit code 1). Structural
problems make the dataset unusable (exit code 2).`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateQuick, "quick", false, "skip data integrity sampling")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "emit the report as JSON instead of text")
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := args[0]

	var opts []driftwood.ValidateOption
	if validateQuick {
		opts = append(opts, driftwood.WithQuick())
	}

	ds, err := driftwood.OpenDataset(path)
	var report *driftwood.ValidationReport
	if err != nil {
		logger.Warn("dataset unreadable", zap.String("path", path), zap.Error(err))
		report = driftwood.InvalidReport(err.Error())
	} else {
		defer ds.Close()
		if !validateJSON {
			console.PrintOverview(os.Stdout, ds)
		}
		report = driftwood.Validate(ds, opts...)
	}

	if validateJSON {
		enc := jsoniter.ConfigCompatibleWithStandardLibrary
		data, err := enc.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
		fmt.Println(string(data))
	} else {
		console.PrintReport(os.Stdout, report)
	}

	logger.Info("validation complete",
		zap.String("path", path),
		zap.String("status", report.Status.String()),
		zap.Int("missing", len(report.Missing)),
		zap.Int("errors", len(report.Errors)))

	switch report.Status {
	case driftwood.StatusFullyValid:
		return nil
	case driftwood.StatusValidWithMissing:
		return &actionNeededError{msg: "missing required variables"}
	default:
		return fmt.Errorf("dataset is invalid")
	}
}
