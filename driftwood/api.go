// Package driftwood validates and restructures particle-tracking trajectory
// datasets so they can be consumed by a downstream visualization engine.
//
// Driftwood focuses on dataset preparation: schema validation against the
// SedimentDrift variable catalog, memory-budgeted fragmentation along the
// trajectory dimension, and synthesis of missing variables from declared
// physical parameters. It does not perform particle-transport simulation.
package driftwood

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// -----------------------------------------------------------------------------
// Physical parameters
// -----------------------------------------------------------------------------

// ParticleClass identifies the kind of particle a dataset tracks.
type ParticleClass string

// Particle classes understood by the SedimentDrift visualizer.
const (
	ClassOil           ParticleClass = "oil"
	ClassOther         ParticleClass = "other"
	ClassBubble        ParticleClass = "bubble"
	ClassFaecalPellets ParticleClass = "faecal_pellets"
	ClassCopepod       ParticleClass = "copepod"
	ClassDiatomChain   ParticleClass = "diatom_chain"
	ClassOilyGas       ParticleClass = "oily_gas"
)

// ParticleClasses lists all valid particle classes in declaration order.
var ParticleClasses = []ParticleClass{
	ClassOil, ClassOther, ClassBubble, ClassFaecalPellets,
	ClassCopepod, ClassDiatomChain, ClassOilyGas,
}

// ParseParticleClass parses a particle class name.
func ParseParticleClass(s string) (ParticleClass, error) {
	for _, c := range ParticleClasses {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("driftwood: unknown particle class %q", s)
}

// SizeClass is the coarse particle size classification.
type SizeClass string

// Size classes understood by the SedimentDrift visualizer.
const (
	SizeSmall  SizeClass = "small"
	SizeMedium SizeClass = "medium"
	SizeLarge  SizeClass = "large"
)

// SizeClasses lists all valid size classes in declaration order.
var SizeClasses = []SizeClass{SizeSmall, SizeMedium, SizeLarge}

// ParseSizeClass parses a size class name.
func ParseSizeClass(s string) (SizeClass, error) {
	for _, c := range SizeClasses {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("driftwood: unknown size class %q", s)
}

// PhysicalParams declares the physical properties applied uniformly to every
// variable synthesized during a run. Supplied once per invocation and
// validated once at entry.
type PhysicalParams struct {
	// Class is the particle classification.
	Class ParticleClass `json:"particle_class"`

	// Size is the coarse size classification.
	Size SizeClass `json:"size_class"`

	// DiameterMM is the particle diameter in millimeters.
	DiameterMM float64 `json:"diameter_mm"`

	// DensityKgM3 is the particle density in kg/m³.
	DensityKgM3 float64 `json:"density_kg_m3"`
}

// DefaultPhysicalParams returns the documented defaults: generic medium
// particles of 0.1 mm, slightly denser than seawater.
func DefaultPhysicalParams() PhysicalParams {
	return PhysicalParams{
		Class:       ClassOther,
		Size:        SizeMedium,
		DiameterMM:  0.1,
		DensityKgM3: 1027,
	}
}

// Validate checks that all parameters are well-formed.
func (p PhysicalParams) Validate() error {
	if _, err := ParseParticleClass(string(p.Class)); err != nil {
		return err
	}
	if _, err := ParseSizeClass(string(p.Size)); err != nil {
		return err
	}
	if p.DiameterMM <= 0 {
		return fmt.Errorf("driftwood: diameter must be positive, got %v mm", p.DiameterMM)
	}
	if p.DensityKgM3 <= 0 {
		return fmt.Errorf("driftwood: density must be positive, got %v kg/m³", p.DensityKgM3)
	}
	return nil
}

// DiameterM returns the diameter converted to meters, the unit stored in
// synthesized particulate_diameter variables.
func (p PhysicalParams) DiameterM() float64 {
	return p.DiameterMM / 1000.0
}

// -----------------------------------------------------------------------------
// Store interface
// -----------------------------------------------------------------------------

// Store abstracts the destination for fragment files, manifests and
// summaries.
//
// Implementations may target filesystems, S3-compatible object stores, or
// memory. Written objects are immutable: Put refuses to overwrite.
type Store interface {
	// Put writes data to the given path. Returns ErrPathExists if the path
	// already holds an object.
	Put(ctx context.Context, path string, r io.Reader) error

	// Get retrieves data from the given path.
	Get(ctx context.Context, path string) (io.ReadCloser, error)

	// Exists checks whether a path exists.
	Exists(ctx context.Context, path string) (bool, error)

	// Delete removes the path if it exists.
	Delete(ctx context.Context, path string) error
}

// -----------------------------------------------------------------------------
// Compressor interface
// -----------------------------------------------------------------------------

// Compressor handles compression of variable payloads inside container
// files. Compressors are pluggable; the compressor used for each variable is
// recorded in the container header so readers need no out-of-band knowledge.
type Compressor interface {
	// Name returns the compressor identifier (for example, "zstd", "gzip",
	// "none").
	Name() string

	// Compress wraps a writer with compression.
	Compress(w io.Writer) (io.WriteCloser, error)

	// Decompress wraps a reader with decompression.
	Decompress(r io.Reader) (io.ReadCloser, error)
}

// -----------------------------------------------------------------------------
// Confirmation protocol
// -----------------------------------------------------------------------------

// ConfirmationRequest carries the memory estimate that triggered a risk
// confirmation. The pipeline suspends until the Confirmer answers.
type ConfirmationRequest struct {
	// Estimate is the memory estimate that exceeded the safety threshold.
	Estimate MemoryEstimate

	// RequestedPercent is the originally requested fragment percentage.
	// An affirmative answer resumes the run with this value.
	RequestedPercent int
}

// Confirmer answers risk confirmations. At most one request is outstanding
// at a time; the pipeline makes no forward progress while a request is
// pending.
type Confirmer interface {
	// Confirm reports whether the run should proceed. A false answer with a
	// nil error is a clean decline.
	Confirm(ctx context.Context, req ConfirmationRequest) (bool, error)
}

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

// Error sentinel values for common conditions.
var (
	// ErrNotFound indicates a requested resource does not exist.
	ErrNotFound = errNotFound{}

	// ErrPathExists indicates an attempt to write to an existing path.
	ErrPathExists = errPathExists{}

	// ErrUserCancelled indicates the run was aborted cleanly, either by a
	// negative confirmation or by caller cancellation between fragments.
	ErrUserCancelled = errUserCancelled{}

	// ErrConfirmationPending indicates a second confirmation was requested
	// while one was already outstanding.
	ErrConfirmationPending = errConfirmationPending{}
)

type errNotFound struct{}

func (errNotFound) Error() string { return "not found" }

type errPathExists struct{}

func (errPathExists) Error() string { return "path exists" }

type errUserCancelled struct{}

func (errUserCancelled) Error() string { return "cancelled by user" }

type errConfirmationPending struct{}

func (errConfirmationPending) Error() string { return "confirmation already pending" }

// StructuralError indicates a dataset that cannot be used at all: a corrupt
// or truncated file, a malformed header, or an absent primary dimension.
// Structural errors are fatal; they are never repaired by the injector.
type StructuralError struct {
	// Path is the dataset path, when known.
	Path string

	// Reason describes the structural problem.
	Reason string

	// Err is the underlying error, if any.
	Err error
}

func (e *StructuralError) Error() string {
	var b strings.Builder
	b.WriteString("driftwood: structural error")
	if e.Path != "" {
		b.WriteString(" in ")
		b.WriteString(e.Path)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *StructuralError) Unwrap() error { return e.Err }

// PlanningError indicates the requested percentage cannot partition the
// primary dimension into non-empty fragments.
type PlanningError struct {
	// Length is the primary dimension length.
	Length int

	// Percentage is the requested per-fragment percentage.
	Percentage int

	// Fragments is the fragment count the percentage implies.
	Fragments int
}

func (e *PlanningError) Error() string {
	return fmt.Sprintf(
		"driftwood: cannot split %d trajectories into %d non-empty fragments (%d%% per fragment)",
		e.Length, e.Fragments, e.Percentage)
}

// WriteFailure indicates a fragment could not be persisted. The remaining
// sequence is aborted and any fragments already on disk are incomplete
// output, not a successful run.
type WriteFailure struct {
	// Index is the 1-based index of the fragment that failed.
	Index int

	// Total is the total fragment count of the plan.
	Total int

	// Path is the destination path of the failed fragment.
	Path string

	// Err is the underlying storage error.
	Err error
}

func (e *WriteFailure) Error() string {
	return fmt.Sprintf("driftwood: writing fragment %d/%d to %s: %v", e.Index, e.Total, e.Path, e.Err)
}

func (e *WriteFailure) Unwrap() error { return e.Err }
