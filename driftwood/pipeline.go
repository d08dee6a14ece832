package driftwood

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// fallbackAvailableBytes stands in when the platform probe yields nothing.
// Deliberately conservative: better to prompt than to OOM.
const fallbackAvailableBytes = 4 << 30

// FragmentOptions configures a fragmentation run.
type FragmentOptions struct {
	// Percentage of trajectories per fragment, 1-100.
	Percentage int

	// OutputPrefix names the fragment files. Empty derives
	// "<input>_processed" from the input path.
	OutputPrefix string

	// Params are the physical properties injected into synthesized
	// variables. Zero value means DefaultPhysicalParams.
	Params PhysicalParams

	// Store receives the fragments, manifest, and summary. Required.
	Store Store

	// Compressor encodes fragment payloads. Nil means zstd.
	Compressor Compressor

	// Estimator performs the pre-flight memory check. Nil uses defaults.
	Estimator *Estimator

	// AvailableBytes overrides the probed available memory. Zero probes
	// the platform, falling back to 4 GiB with a warning.
	AvailableBytes int64

	// Probe reports available memory. Nil with AvailableBytes zero uses
	// the fallback.
	Probe func() (int64, error)

	// Confirmer resolves risky-run confirmations. Nil declines.
	Confirmer Confirmer

	// Logger receives diagnostics. Nil discards.
	Logger *zap.Logger

	// Progress receives human-readable run output. Nil discards.
	Progress io.Writer

	// Summary enables the parquet run summary.
	Summary bool

	// RunID overrides the generated run identifier.
	RunID string
}

// FragmentResult reports a completed run.
type FragmentResult struct {
	RunID        string
	Plan         *FragmentPlan
	Estimate     MemoryEstimate
	Files        []FileRef
	ManifestPath string
	SummaryPath  string

	// MissingBefore names the required variables absent from the source;
	// every one of them was synthesized into each fragment.
	MissingBefore []string
}

// Fragment runs the full pipeline: open, estimate, confirm if risky, plan,
// write, manifest, optional summary.
//
// A risky estimate routes through opts.Confirmer before any output is
// produced; a decline returns ErrUserCancelled with no files written. A
// write failure returns the refs written so far inside a *WriteFailure
// chain; partial output is left in place for inspection.
func Fragment(ctx context.Context, inputPath string, opts FragmentOptions) (*FragmentResult, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("driftwood: store is required")
	}
	params := opts.Params
	if params == (PhysicalParams{}) {
		params = DefaultPhysicalParams()
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	progress := opts.Progress
	if progress == nil {
		progress = io.Discard
	}
	comp := opts.Compressor
	if comp == nil {
		comp = NewZstdCompressor()
	}
	confirm := opts.Confirmer
	if confirm == nil {
		confirm = AutoDecline()
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	prefix := opts.OutputPrefix
	if prefix == "" {
		prefix = trimDatasetExt(filepath.Base(inputPath)) + "_processed"
	}

	ds, err := OpenDataset(inputPath)
	if err != nil {
		return nil, err
	}
	defer ds.Close()

	primary, ok := ds.Dim(PrimaryDimension)
	if !ok {
		return nil, &StructuralError{Path: inputPath, Reason: fmt.Sprintf("missing primary dimension %q", PrimaryDimension)}
	}

	est, err := preflight(ctx, ds, opts, confirm, log, progress)
	if err != nil {
		return nil, err
	}

	plan, err := Plan(primary, opts.Percentage)
	if err != nil {
		return nil, err
	}
	log.Info("run planned",
		zap.String("run_id", runID),
		zap.String("input", inputPath),
		zap.Int("percentage", plan.Percentage),
		zap.Int("trajectories", plan.PrimaryLength),
		zap.Int("fragments", plan.TotalFragments()))
	fmt.Fprintf(progress, "\nSplitting %d trajectories into %d fragments of %d%% each\n",
		plan.PrimaryLength, plan.TotalFragments(), plan.Percentage)

	missing := missingRequired(ds)
	if len(missing) > 0 {
		fmt.Fprintf(progress, "Missing variables detected; each fragment will include: %s\n",
			strings.Join(missing, ", "))
	}

	w, err := NewFragmentWriter(opts.Store,
		WithCompressor(comp),
		WithLogger(log),
		WithProgress(progress),
		WithRunID(runID))
	if err != nil {
		return nil, err
	}

	files, err := w.Write(ctx, ds, plan, params, prefix)
	if err != nil {
		return nil, err
	}

	manifest := &Manifest{
		RunID:          runID,
		CreatedAt:      time.Now().UTC(),
		Source:         filepath.Base(inputPath),
		Percentage:     plan.Percentage,
		PrimaryLength:  plan.PrimaryLength,
		TotalFragments: plan.TotalFragments(),
		Params:         params,
		Files:          files,
	}
	manifestPath, err := w.WriteManifest(ctx, manifest, prefix)
	if err != nil {
		return nil, err
	}

	res := &FragmentResult{
		RunID:         runID,
		Plan:          plan,
		Estimate:      est,
		Files:         files,
		ManifestPath:  manifestPath,
		MissingBefore: missing,
	}

	if opts.Summary {
		summaryPath, err := WriteSummary(ctx, opts.Store, manifest, prefix)
		if err != nil {
			return nil, err
		}
		res.SummaryPath = summaryPath
	}

	fmt.Fprintf(progress, "\n✓ Created %d fragment files\n", len(files))
	log.Info("run complete",
		zap.String("run_id", runID),
		zap.Int("files", len(files)),
		zap.String("manifest", manifestPath))
	return res, nil
}

// preflight estimates the run's memory footprint and, when the estimate is
// risky, routes through the confirmer before any output exists.
func preflight(ctx context.Context, ds *Dataset, opts FragmentOptions, confirm Confirmer, log *zap.Logger, progress io.Writer) (MemoryEstimate, error) {
	estimator := opts.Estimator
	if estimator == nil {
		e, err := NewEstimator(0, 0)
		if err != nil {
			return MemoryEstimate{}, err
		}
		estimator = &e
	}

	avail := opts.AvailableBytes
	if avail <= 0 && opts.Probe != nil {
		probed, err := opts.Probe()
		if err != nil {
			log.Warn("memory probe failed", zap.Error(err))
		} else {
			avail = probed
		}
	}
	if avail <= 0 {
		avail = fallbackAvailableBytes
		fmt.Fprintf(progress, "⚠️  WARNING: could not determine available memory, assuming %.0f GB\n",
			float64(fallbackAvailableBytes)/(1<<30))
	}

	est := estimator.Estimate(ds.SizeBytes(), opts.Percentage, avail)

	fmt.Fprintf(progress, "\nMemory check:\n")
	fmt.Fprintf(progress, "  Available: %.1f MB\n", float64(est.AvailableBytes)/(1<<20))
	fmt.Fprintf(progress, "  Estimated per fragment: %.1f MB\n", float64(est.EstimatedFragmentBytes)/(1<<20))

	if !est.Risky() {
		return est, nil
	}

	fmt.Fprintf(progress, "\n⚠️  WARNING: estimated fragment memory is %.1f%% of available\n", est.UsageRatio*100)
	fmt.Fprintf(progress, "ℹ️  INFO: recommended percentage for this system: %.1f%%\n", est.RecommendedPercent)
	log.Warn("memory estimate is risky",
		zap.Float64("usage_ratio", est.UsageRatio),
		zap.Float64("recommended_percent", est.RecommendedPercent))

	ok, err := confirm.Confirm(ctx, ConfirmationRequest{
		Estimate:         est,
		RequestedPercent: opts.Percentage,
	})
	if err != nil {
		return MemoryEstimate{}, err
	}
	if !ok {
		return MemoryEstimate{}, ErrUserCancelled
	}
	return est, nil
}

// missingRequired lists the required catalog variables the source lacks.
func missingRequired(ds *Dataset) []string {
	var missing []string
	for _, name := range RequiredVariables() {
		if !ds.HasVariable(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

func trimDatasetExt(name string) string {
	if ext := filepath.Ext(name); ext == ".nc" {
		return name[:len(name)-len(ext)]
	}
	return name
}
