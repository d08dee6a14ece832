package driftwood

import (
	"encoding/binary"
	"math"
)

// Dimension names every trajectory dataset must declare.
const (
	// PrimaryDimension is the particle/trajectory axis fragmentation
	// partitions along.
	PrimaryDimension = "trajectory"

	// TimeDimension is the time-step axis.
	TimeDimension = "time"
)

// RequiredDimensions lists the dimensions the validator demands.
var RequiredDimensions = []string{PrimaryDimension, TimeDimension}

// Global attribute carrying the trajectory model class.
const (
	AttrModelClass     = "opendrift_class"
	SedimentDriftClass = "SedimentDrift"
)

// RecommendedAttributes are advisory global metadata attributes; their
// absence is only noted, never an error.
var RecommendedAttributes = []string{"title", "institution", "source", "history", "Conventions"}

// SchemaEntry defines one variable the SedimentDrift visualizer consumes:
// its shape, element type, and how the injector fills it when absent.
// Entries are immutable; the catalog is defined once.
type SchemaEntry struct {
	// Name is the variable name.
	Name string

	// Description is the human-readable long name.
	Description string

	// Units is the CF-style units string, empty for dimensionless values.
	Units string

	// Dtype is the expected element type.
	Dtype Dtype

	// Dimensions is the expected shape in storage order.
	Dimensions []string

	// Required marks variables whose absence downgrades a report to
	// valid-with-missing. Non-required entries are synthesized with
	// documented defaults but only noted by the validator.
	Required bool

	// Classes enumerates the admissible values for classification
	// variables, recorded as a variable attribute on synthesis.
	Classes string

	fill func(p PhysicalParams) []byte
}

// FillElement encodes the single-element fill value derived from the
// physical parameters, in the entry's dtype.
func (e SchemaEntry) FillElement(p PhysicalParams) []byte {
	return e.fill(p)
}

// VariableAttributes returns the attributes stamped on a synthesized
// variable.
func (e SchemaEntry) VariableAttributes() Attributes {
	attrs := Attributes{"units": e.Units, "long_name": e.Description}
	if e.Classes != "" {
		attrs["classes"] = e.Classes
	}
	return attrs
}

func fillFloat32(f func(PhysicalParams) float64) func(PhysicalParams) []byte {
	return func(p PhysicalParams) []byte {
		out := make([]byte, 4)
		binary.LittleEndian.PutUint32(out, math.Float32bits(float32(f(p))))
		return out
	}
}

func fillString(n int, f func(PhysicalParams) string) func(PhysicalParams) []byte {
	return func(p PhysicalParams) []byte {
		out := make([]byte, n) // NUL-padded
		copy(out, f(p))
		return out
	}
}

// Defaults for the derived physical-field variables: empirical constants
// used when no better source exists, matching the values the downstream
// visualizer was calibrated against.
const (
	DefaultVerticalDiffusivity = 0.02 // m²/s
	DefaultMixedLayerThickness = 50.0 // m

	particleClassBytes = 32
	sizeClassBytes     = 8
)

// catalog is defined once; Catalog returns copies.
var catalog = []SchemaEntry{
	{
		Name:        "particulate_diameter",
		Description: "Particle diameter",
		Units:       "m",
		Dtype:       Float32,
		Dimensions:  []string{PrimaryDimension, TimeDimension},
		Required:    true,
		fill:        fillFloat32(func(p PhysicalParams) float64 { return p.DiameterM() }),
	},
	{
		Name:        "particulate_density",
		Description: "Particle density",
		Units:       "kg m-3",
		Dtype:       Float32,
		Dimensions:  []string{PrimaryDimension, TimeDimension},
		Required:    true,
		fill:        fillFloat32(func(p PhysicalParams) float64 { return p.DensityKgM3 }),
	},
	{
		Name:        "particulate_class",
		Description: "Particle classification",
		Dtype:       Bytes(particleClassBytes),
		Dimensions:  []string{PrimaryDimension, TimeDimension},
		Required:    true,
		Classes:     "oil,other,bubble,faecal_pellets,copepod,diatom_chain,oily_gas",
		fill:        fillString(particleClassBytes, func(p PhysicalParams) string { return string(p.Class) }),
	},
	{
		Name:        "particulate_size_class",
		Description: "Particle size classification",
		Dtype:       Bytes(sizeClassBytes),
		Dimensions:  []string{PrimaryDimension, TimeDimension},
		Required:    true,
		Classes:     "small,medium,large",
		fill:        fillString(sizeClassBytes, func(p PhysicalParams) string { return string(p.Size) }),
	},
	{
		Name:        "settled",
		Description: "Particle settled on seafloor",
		Units:       "1",
		Dtype:       Uint8,
		Dimensions:  []string{PrimaryDimension, TimeDimension},
		Required:    true,
		// Unset/false sentinel: freshly prepared particles have not settled.
		fill: func(PhysicalParams) []byte { return []byte{0} },
	},
	{
		Name:        "ocean_vertical_diffusivity",
		Description: "Ocean vertical diffusivity",
		Units:       "m2 s-1",
		Dtype:       Float32,
		Dimensions:  []string{PrimaryDimension, TimeDimension},
		fill:        fillFloat32(func(PhysicalParams) float64 { return DefaultVerticalDiffusivity }),
	},
	{
		Name:        "ocean_mixed_layer_thickness",
		Description: "Ocean mixed layer thickness",
		Units:       "m",
		Dtype:       Float32,
		Dimensions:  []string{PrimaryDimension, TimeDimension},
		fill:        fillFloat32(func(PhysicalParams) float64 { return DefaultMixedLayerThickness }),
	},
}

// Catalog returns the SedimentDrift schema entries in canonical order.
func Catalog() []SchemaEntry {
	out := make([]SchemaEntry, len(catalog))
	copy(out, catalog)
	return out
}

// RequiredVariables returns the names of required catalog entries in
// canonical order.
func RequiredVariables() []string {
	var out []string
	for _, e := range catalog {
		if e.Required {
			out = append(out, e.Name)
		}
	}
	return out
}

// advisoryVariable is a common trajectory variable whose absence is worth a
// warning but which the injector never synthesizes.
type advisoryVariable struct {
	Name        string
	Description string
}

// advisoryVariables are the coordinate and status variables a usable
// trajectory dataset normally carries.
var advisoryVariables = []advisoryVariable{
	{"lon", "Longitude"},
	{"lat", "Latitude"},
	{"z", "Depth"},
	{"status", "Particle status"},
}
