package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/justapithecus/driftwood/driftwood"
	s3store "github.com/justapithecus/driftwood/driftwood/s3"
	"github.com/justapithecus/driftwood/internal/config"
	"github.com/justapithecus/driftwood/internal/console"
	"github.com/justapithecus/driftwood/internal/sysmem"
)

var (
	fragmentConfig      string
	fragmentYes         bool
	fragmentSummary     bool
	fragmentMemoryMB    int64
	fragmentCompressor  string
	fragmentS3Bucket    string
	fragmentS3Region    string
	fragmentS3Endpoint  string
	fragmentS3PathStyle bool
)

var fragmentCmd = &cobra.Command{
	Use:   "fragment <dataset.nc> <percentage> [output-prefix] [class] [size] [diameter-mm] [density]",
	Short: "Split a dataset into fragments, injecting missing variables",
	Long: `Splits a trajectory dataset into fragments of the given percentage of
trajectories each, injecting any missing catalog variables with the supplied
physical parameters.

A pre-flight memory check estimates the per-fragment footprint; risky runs
prompt for confirmation and suggest a safer percentage. Use --yes for
unattended runs.

Examples:
  driftwood fragment drift.nc 10
  driftwood fragment drift.nc 5 out/run1 oil small 0.05 900
  driftwood fragment drift.nc 10 --s3-bucket viz-fragments --s3-region us-east-1`,
	Args: cobra.RangeArgs(2, 7),
	RunE: runFragment,
}

func init() {
	fragmentCmd.Flags().StringVar(&fragmentConfig, "config", "", "path to a YAML config file")
	fragmentCmd.Flags().BoolVarP(&fragmentYes, "yes", "y", false, "proceed without prompting on risky memory estimates")
	fragmentCmd.Flags().BoolVar(&fragmentSummary, "summary", false, "write a parquet run summary next to the fragments")
	fragmentCmd.Flags().Int64Var(&fragmentMemoryMB, "memory", 0, "override available memory in MB (0 probes the system)")
	fragmentCmd.Flags().StringVar(&fragmentCompressor, "compressor", "", "payload compressor: zstd, gzip, or none")
	fragmentCmd.Flags().StringVar(&fragmentS3Bucket, "s3-bucket", "", "write fragments to this S3 bucket instead of the filesystem")
	fragmentCmd.Flags().StringVar(&fragmentS3Region, "s3-region", "us-east-1", "S3 region")
	fragmentCmd.Flags().StringVar(&fragmentS3Endpoint, "s3-endpoint", "", "custom S3 endpoint (MinIO, LocalStack)")
	fragmentCmd.Flags().BoolVar(&fragmentS3PathStyle, "s3-path-style", false, "use path-style S3 addressing")
}

func runFragment(cmd *cobra.Command, args []string) error {
	input := args[0]
	percentage, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("percentage must be an integer, got %q", args[1])
	}

	cfg := config.Default()
	if fragmentConfig != "" {
		cfg, err = config.Load(fragmentConfig)
		if err != nil {
			return err
		}
	}
	params, err := cfg.Params()
	if err != nil {
		return err
	}
	if err := applyParamArgs(&params, args[2:]); err != nil {
		return err
	}

	compName := cfg.Compressor
	if fragmentCompressor != "" {
		compName = fragmentCompressor
	}
	comp, err := driftwood.CompressorByName(compName)
	if err != nil {
		return err
	}

	estimator, err := driftwood.NewEstimator(cfg.ExpansionFactor, cfg.SafetyThreshold)
	if err != nil {
		return err
	}

	prefix := outputPrefix(input, args)
	store, storePrefix, err := buildStore(cmd, prefix)
	if err != nil {
		return err
	}

	var confirmer driftwood.Confirmer
	if fragmentYes {
		confirmer = driftwood.AutoApprove()
	} else {
		confirmer = console.NewLineConfirmer(os.Stdin, os.Stdout)
	}

	res, err := driftwood.Fragment(cmd.Context(), input, driftwood.FragmentOptions{
		Percentage:     percentage,
		OutputPrefix:   storePrefix,
		Params:         params,
		Store:          store,
		Compressor:     comp,
		Estimator:      &estimator,
		AvailableBytes: fragmentMemoryMB << 20,
		Probe:          sysmem.Available,
		Confirmer:      confirmer,
		Logger:         logger,
		Progress:       os.Stdout,
		Summary:        fragmentSummary,
	})
	if err != nil {
		return err
	}

	logger.Info("fragmentation complete",
		zap.String("run_id", res.RunID),
		zap.Int("fragments", len(res.Files)),
		zap.Strings("injected", res.MissingBefore),
		zap.String("manifest", res.ManifestPath))
	return nil
}

// applyParamArgs overlays the optional positional physical parameters.
// Order: class, size class, diameter in mm, density in kg/m3. The third
// positional argument is the output prefix, handled separately.
func applyParamArgs(params *driftwood.PhysicalParams, rest []string) error {
	if len(rest) > 1 {
		class, err := driftwood.ParseParticleClass(rest[1])
		if err != nil {
			return err
		}
		params.Class = class
	}
	if len(rest) > 2 {
		size, err := driftwood.ParseSizeClass(rest[2])
		if err != nil {
			return err
		}
		params.Size = size
	}
	if len(rest) > 3 {
		d, err := strconv.ParseFloat(rest[3], 64)
		if err != nil {
			return fmt.Errorf("diameter must be a number, got %q", rest[3])
		}
		params.DiameterMM = d
	}
	if len(rest) > 4 {
		d, err := strconv.ParseFloat(rest[4], 64)
		if err != nil {
			return fmt.Errorf("density must be a number, got %q", rest[4])
		}
		params.DensityKgM3 = d
	}
	return params.Validate()
}

func outputPrefix(input string, args []string) string {
	if len(args) > 2 && args[2] != "" {
		return args[2]
	}
	base := filepath.Base(input)
	base = strings.TrimSuffix(base, ".nc")
	return filepath.Join(filepath.Dir(input), base+"_processed")
}

// buildStore returns the output store and the key prefix within it. The
// filesystem store is rooted at the prefix's directory so fragment keys stay
// relative; S3 keys use the prefix as-is.
func buildStore(cmd *cobra.Command, prefix string) (driftwood.Store, string, error) {
	if fragmentS3Bucket != "" {
		client, err := s3store.NewClient(cmd.Context(), s3store.ClientConfig{
			Region:       fragmentS3Region,
			Endpoint:     fragmentS3Endpoint,
			UsePathStyle: fragmentS3PathStyle,
		})
		if err != nil {
			return nil, "", fmt.Errorf("building S3 client: %w", err)
		}
		store, err := s3store.New(client, s3store.Config{Bucket: fragmentS3Bucket})
		if err != nil {
			return nil, "", err
		}
		return store, strings.TrimPrefix(prefix, "/"), nil
	}

	dir := filepath.Dir(prefix)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", fmt.Errorf("creating output directory: %w", err)
	}
	store, err := driftwood.NewFS(dir)
	if err != nil {
		return nil, "", err
	}
	return store, filepath.Base(prefix), nil
}
