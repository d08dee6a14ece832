package driftwood

import (
	"fmt"
	"math"

	"github.com/cockroachdb/apd/v3"
)

// Estimator defaults. The expansion factor models the blow-up from
// compressed on-disk storage to the decompressed in-memory representation;
// it is empirically calibrated and tunable, not a law.
const (
	DefaultExpansionFactor = 3.0
	DefaultSafetyThreshold = 0.8

	// minRecommendedPercent floors the advisory percentage; below this the
	// fragment count becomes absurd and the advice useless.
	minRecommendedPercent = 0.1
)

// MemoryEstimate is the advisory memory-risk assessment for one
// fragmentation request. Computed fresh per request, never persisted. It
// never blocks the planner by itself; it only feeds the confirmation
// protocol.
type MemoryEstimate struct {
	// AvailableBytes is the memory available to the process.
	AvailableBytes int64 `json:"available_bytes"`

	// EstimatedFragmentBytes is the predicted in-memory footprint of one
	// fragment.
	EstimatedFragmentBytes int64 `json:"estimated_fragment_bytes"`

	// UsageRatio is EstimatedFragmentBytes / AvailableBytes.
	UsageRatio float64 `json:"usage_ratio"`

	// Threshold is the safety threshold the ratio was compared against.
	Threshold float64 `json:"threshold"`

	// RecommendedPercent is the largest percentage keeping the ratio at or
	// below the threshold, rounded down to one decimal. Equal to the
	// requested percentage when the request is already safe.
	RecommendedPercent float64 `json:"recommended_percent"`
}

// Risky reports whether the estimate exceeded the safety threshold.
func (m MemoryEstimate) Risky() bool {
	return m.UsageRatio > m.Threshold
}

// ExpectedFragments returns the fragment count the recommended percentage
// implies: ceil(100 / recommended).
func (m MemoryEstimate) ExpectedFragments() int {
	if m.RecommendedPercent <= 0 {
		return 0
	}
	n := int(100 / m.RecommendedPercent)
	if float64(n)*m.RecommendedPercent < 100 {
		n++
	}
	return n
}

// Estimator predicts fragment memory footprints before any data is
// materialized.
type Estimator struct {
	// ExpansionFactor scales on-disk bytes to in-memory bytes.
	ExpansionFactor float64

	// SafetyThreshold is the maximum acceptable usage ratio.
	SafetyThreshold float64
}

// NewEstimator creates an estimator, substituting documented defaults for
// zero values.
func NewEstimator(expansionFactor, safetyThreshold float64) (Estimator, error) {
	if expansionFactor == 0 {
		expansionFactor = DefaultExpansionFactor
	}
	if safetyThreshold == 0 {
		safetyThreshold = DefaultSafetyThreshold
	}
	if expansionFactor < 1 {
		return Estimator{}, fmt.Errorf("driftwood: expansion factor must be at least 1, got %v", expansionFactor)
	}
	if safetyThreshold <= 0 || safetyThreshold > 1 {
		return Estimator{}, fmt.Errorf("driftwood: safety threshold must be in (0, 1], got %v", safetyThreshold)
	}
	return Estimator{ExpansionFactor: expansionFactor, SafetyThreshold: safetyThreshold}, nil
}

// Estimate computes the memory risk of fragmenting a dataset of the given
// on-disk size at the given percentage.
func (e Estimator) Estimate(datasetSizeBytes int64, percentage int, availableBytes int64) MemoryEstimate {
	estimated := float64(datasetSizeBytes) * (float64(percentage) / 100.0) * e.ExpansionFactor

	m := MemoryEstimate{
		AvailableBytes:         availableBytes,
		EstimatedFragmentBytes: int64(estimated),
		Threshold:              e.SafetyThreshold,
		RecommendedPercent:     float64(percentage),
	}
	if availableBytes > 0 {
		m.UsageRatio = estimated / float64(availableBytes)
	} else {
		// No measurable memory: treat as maximally risky.
		m.UsageRatio = math.Inf(1)
	}

	if m.Risky() {
		m.RecommendedPercent = e.recommend(datasetSizeBytes, availableBytes)
	}
	return m
}

// recommend solves the estimate formula for the largest percentage whose
// usage ratio stays at or below the threshold:
//
//	p = threshold * available * 100 / (size * expansion)
//
// rounded down to one decimal place. The arithmetic runs in exact decimals
// so the advisory value the user retypes is not subject to binary-float
// drift.
func (e Estimator) recommend(datasetSizeBytes, availableBytes int64) float64 {
	if datasetSizeBytes <= 0 || availableBytes <= 0 {
		return minRecommendedPercent
	}

	ctx := apd.BaseContext.WithPrecision(25)

	var p, num, den apd.Decimal
	mustSetFloat(&num, e.SafetyThreshold*float64(availableBytes)*100)
	mustSetFloat(&den, float64(datasetSizeBytes)*e.ExpansionFactor)
	if _, err := ctx.Quo(&p, &num, &den); err != nil {
		return minRecommendedPercent
	}

	// Round down to one decimal; the recommendation must stay under the threshold.
	ctx.Rounding = apd.RoundDown
	if _, err := ctx.Quantize(&p, &p, -1); err != nil {
		return minRecommendedPercent
	}

	f, err := p.Float64()
	if err != nil {
		return minRecommendedPercent
	}
	if f < minRecommendedPercent {
		return minRecommendedPercent
	}
	if f > 100 {
		return 100
	}
	return f
}

func mustSetFloat(d *apd.Decimal, f float64) {
	// SetFloat64 fails only on NaN/Inf, which the callers never produce.
	if _, err := d.SetFloat64(f); err != nil {
		d.SetInt64(0)
	}
}
