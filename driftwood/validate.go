package driftwood

import (
	"encoding/binary"
	"fmt"
	"math"
)

// -----------------------------------------------------------------------------
// Validation report
// -----------------------------------------------------------------------------

// ReportStatus is the overall classification of a validation run.
type ReportStatus int

// Report classifications. Missing required variables are a normal outcome
// signaling that the compatibility step should run; only structural problems
// make a dataset invalid.
const (
	StatusFullyValid ReportStatus = iota
	StatusValidWithMissing
	StatusInvalid
)

func (s ReportStatus) String() string {
	switch s {
	case StatusFullyValid:
		return "fully-valid"
	case StatusValidWithMissing:
		return "valid-with-missing"
	case StatusInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("ReportStatus(%d)", int(s))
	}
}

// CheckKind classifies one line of the validation transcript.
type CheckKind int

// Transcript line kinds, in the order the console protocol renders them.
const (
	CheckPass CheckKind = iota
	CheckMissing
	CheckInfo
	CheckWarning
	CheckError
)

// Check is one entry in the ordered validation transcript.
type Check struct {
	Kind    CheckKind `json:"kind"`
	Message string    `json:"message"`
}

// ValidationReport is the immutable result of one validation run.
// Validating the same unmodified dataset twice yields identical reports.
type ValidationReport struct {
	// Passed names the catalog entries present and well-formed.
	Passed []string `json:"passed"`

	// Missing names the required catalog entries that are absent.
	Missing []string `json:"missing"`

	// Errors lists structural problems. Any entry makes the report invalid.
	Errors []string `json:"errors"`

	// Warnings lists advisory problems that do not affect the status.
	Warnings []string `json:"warnings"`

	// Checks is the ordered human-readable transcript of every check, the
	// source for the console protocol's summary block.
	Checks []Check `json:"checks"`

	// Status is the overall classification.
	Status ReportStatus `json:"status"`
}

// HasAllRequired reports whether no required variables are missing.
func (r *ValidationReport) HasAllRequired() bool {
	return len(r.Missing) == 0
}

// IsValid reports whether the dataset is structurally usable.
func (r *ValidationReport) IsValid() bool {
	return len(r.Errors) == 0
}

func (r *ValidationReport) pass(format string, args ...any) {
	r.Checks = append(r.Checks, Check{CheckPass, fmt.Sprintf(format, args...)})
}

func (r *ValidationReport) missing(name, description string) {
	r.Missing = append(r.Missing, name)
	r.Checks = append(r.Checks, Check{CheckMissing, fmt.Sprintf("%s (%s)", name, description)})
}

func (r *ValidationReport) info(format string, args ...any) {
	r.Checks = append(r.Checks, Check{CheckInfo, fmt.Sprintf(format, args...)})
}

func (r *ValidationReport) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.Warnings = append(r.Warnings, msg)
	r.Checks = append(r.Checks, Check{CheckWarning, msg})
}

func (r *ValidationReport) fail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.Errors = append(r.Errors, msg)
	r.Checks = append(r.Checks, Check{CheckError, msg})
}

// classify applies the report classification rule.
func (r *ValidationReport) classify() {
	switch {
	case len(r.Errors) > 0:
		r.Status = StatusInvalid
	case len(r.Missing) > 0:
		r.Status = StatusValidWithMissing
	default:
		r.Status = StatusFullyValid
	}
}

// InvalidReport builds a report for a dataset that could not be opened.
func InvalidReport(reason string) *ValidationReport {
	r := &ValidationReport{}
	r.fail("%s", reason)
	r.classify()
	return r
}

// -----------------------------------------------------------------------------
// Validator
// -----------------------------------------------------------------------------

// ValidateOption configures a validation run.
type ValidateOption func(*validator)

// WithQuick skips payload sampling, useful for very large files.
func WithQuick() ValidateOption {
	return func(v *validator) { v.quick = true }
}

// WithSampleSize overrides the number of trajectories and time steps
// sampled during integrity checks. Default 100.
func WithSampleSize(n int) ValidateOption {
	return func(v *validator) {
		if n > 0 {
			v.sample = n
		}
	}
}

type validator struct {
	quick  bool
	sample int
}

// Validate inspects an opened dataset against the SedimentDrift catalog and
// returns a fresh report. The dataset is never mutated.
func Validate(ds *Dataset, opts ...ValidateOption) *ValidationReport {
	v := &validator{sample: 100}
	for _, opt := range opts {
		opt(v)
	}

	r := &ValidationReport{}
	v.checkDimensions(ds, r)
	v.checkCatalog(ds, r)
	v.checkAdvisory(ds, r)
	v.checkAttributes(ds, r)
	v.checkIntegrity(ds, r)
	r.classify()
	return r
}

// ValidateFile opens and validates a dataset path. Open failures produce an
// invalid report rather than an error: unreadable input is a validation
// outcome, not a caller bug.
func ValidateFile(path string, opts ...ValidateOption) *ValidationReport {
	ds, err := OpenDataset(path)
	if err != nil {
		return InvalidReport(fmt.Sprintf("failed to open dataset: %v", err))
	}
	defer func() { _ = ds.Close() }()
	return Validate(ds, opts...)
}

func (v *validator) checkDimensions(ds *Dataset, r *ValidationReport) {
	for _, dim := range RequiredDimensions {
		if n, ok := ds.Dim(dim); ok {
			r.pass("Required dimension '%s' present (%d elements)", dim, n)
		} else {
			r.fail("Missing required dimension: %s", dim)
		}
	}

	nTraj, okT := ds.Dim(PrimaryDimension)
	nTime, okS := ds.Dim(TimeDimension)
	if !okT || !okS {
		return
	}

	r.info("Total data points: %d", nTraj*nTime)
	if nTraj < 10 {
		r.warn("Very few trajectories (%d)", nTraj)
	}
	if nTime < 10 {
		r.warn("Very few time steps (%d)", nTime)
	}
}

func (v *validator) checkCatalog(ds *Dataset, r *ValidationReport) {
	for _, entry := range Catalog() {
		dv, ok := ds.Var(entry.Name)
		if !ok {
			if entry.Required {
				r.missing(entry.Name, entry.Description)
			} else {
				r.info("Optional variable '%s' not present (%s)", entry.Name, entry.Description)
			}
			continue
		}

		// The injector never overwrites, so a present-but-incompatible
		// variable is unrepairable: escalate instead of passing it along.
		if !entry.Dtype.Compatible(dv.Dtype) {
			r.fail("Variable '%s' has dtype %s, expected %s-compatible", entry.Name, dv.Dtype, entry.Dtype)
			continue
		}
		if !sameDims(dv.Dimensions, entry.Dimensions) {
			r.fail("Variable '%s' has dimensions %v, expected %v", entry.Name, dv.Dimensions, entry.Dimensions)
			continue
		}

		r.Passed = append(r.Passed, entry.Name)
		if entry.Required {
			r.pass("Required variable '%s' present", entry.Name)
		} else {
			r.pass("Optional variable '%s' present", entry.Name)
		}
	}
}

func (v *validator) checkAdvisory(ds *Dataset, r *ValidationReport) {
	for _, av := range advisoryVariables {
		if ds.HasVariable(av.Name) {
			r.pass("Trajectory variable '%s' present (%s)", av.Name, av.Description)
		} else {
			r.warn("Common variable '%s' not found (%s)", av.Name, av.Description)
		}
	}
}

func (v *validator) checkAttributes(ds *Dataset, r *ValidationReport) {
	attrs := ds.Attributes()

	if cls, ok := attrs[AttrModelClass]; ok {
		r.pass("Model class: %v", cls)
		if s, _ := cls.(string); s != SedimentDriftClass {
			r.info("Model class is '%v' (expected '%s')", cls, SedimentDriftClass)
		}
	} else {
		r.warn("Missing '%s' attribute", AttrModelClass)
	}

	for _, attr := range RecommendedAttributes {
		if _, ok := attrs[attr]; ok {
			r.pass("Metadata attribute '%s' present", attr)
		} else {
			r.info("Optional metadata '%s' not present", attr)
		}
	}
}

// checkIntegrity samples coordinate variables and verifies their ranges.
// Sampling is strided, not random, so repeated validation of the same file
// yields identical reports.
func (v *validator) checkIntegrity(ds *Dataset, r *ValidationReport) {
	if v.quick {
		r.info("Skipping data sampling (quick mode)")
		return
	}

	ranges := []struct {
		name     string
		min, max float64
	}{
		{"lon", -180, 180},
		{"lat", -90, 90},
	}

	sampled := false
	for _, cr := range ranges {
		dv, ok := ds.Var(cr.name)
		if !ok {
			continue
		}
		lo, hi, n, err := v.sampleRange(ds, dv)
		if err != nil {
			r.warn("Could not validate %s: %v", cr.name, err)
			continue
		}
		sampled = true
		if n == 0 {
			r.info("No finite %s values in sample", cr.name)
			continue
		}
		if lo < cr.min || hi > cr.max {
			r.warn("%s sample values outside valid range [%g, %g]: [%.2f, %.2f]", cr.name, cr.min, cr.max, lo, hi)
		} else {
			r.pass("%s sample range valid: [%.2f, %.2f]", cr.name, lo, hi)
		}
	}
	if sampled {
		r.info("Data integrity checked using strided sample of up to %d rows", v.sample)
	}
}

// sampleRange reads up to v.sample evenly strided rows of a float variable
// and returns the finite min/max and the count of finite values.
func (v *validator) sampleRange(ds *Dataset, dv *Variable) (lo, hi float64, n int, err error) {
	if dv.Dtype.BasicType != TypeFloat {
		return 0, 0, 0, fmt.Errorf("variable is not floating point (%s)", dv.Dtype)
	}
	if len(dv.Dimensions) == 0 {
		return 0, 0, 0, fmt.Errorf("variable is scalar")
	}

	outer, _ := ds.Dim(dv.Dimensions[0])
	stride := outer / v.sample
	if stride < 1 {
		stride = 1
	}

	full, err := ds.ReadVariable(dv)
	if err != nil {
		return 0, 0, 0, err
	}
	rowBytes, err := ds.RowBytes(dv)
	if err != nil {
		return 0, 0, 0, err
	}

	lo, hi = math.Inf(1), math.Inf(-1)
	for row := 0; row < outer; row += stride {
		raw := full[int64(row)*rowBytes : int64(row+1)*rowBytes]
		for off := 0; off+dv.Dtype.ByteSize <= len(raw); off += dv.Dtype.ByteSize {
			var f float64
			switch dv.Dtype.ByteSize {
			case 4:
				f = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[off:])))
			case 8:
				f = math.Float64frombits(binary.LittleEndian.Uint64(raw[off:]))
			}
			if math.IsNaN(f) || math.IsInf(f, 0) {
				continue
			}
			n++
			if f < lo {
				lo = f
			}
			if f > hi {
				hi = f
			}
		}
	}
	if n == 0 {
		return 0, 0, 0, nil
	}
	return lo, hi, n, nil
}

func sameDims(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
