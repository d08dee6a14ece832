package driftwood

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"
)

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// Container format framing. A container file is:
//
//	magic   [8]byte   "DRIFTNC1"
//	hdrlen  uint32    little-endian length of the header JSON
//	header  JSON      dimensions, attributes, variable table
//	payload           concatenated per-variable compressed payloads
//
// Variable payloads are little-endian, C-order (last dimension varies
// fastest), with the variable's first dimension outermost. Payload offsets
// in the header are relative to the end of the header, so the header does
// not depend on its own encoded length.
const (
	containerMagic  = "DRIFTNC1"
	formatVersion   = "1.0.0"
	headerFrameSize = len(containerMagic) + 4

	// maxHeaderBytes bounds header allocation when opening untrusted files.
	maxHeaderBytes = 64 * 1024 * 1024
)

// Dimension is a named axis of a dataset. Lengths are immutable once set at
// creation.
type Dimension struct {
	Name   string `json:"name"`
	Length int    `json:"length"`
}

// Attributes holds named metadata on a dataset or variable.
type Attributes map[string]any

// Clone returns a shallow copy. A nil receiver yields an empty map.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Variable describes one array in a container: its dtype, the dimensions
// spanning its shape, per-variable attributes, and where its payload lives.
type Variable struct {
	// Name is the variable name, unique within a dataset.
	Name string `json:"name"`

	// Dtype is the element type.
	Dtype Dtype `json:"dtype"`

	// Dimensions names the axes of the variable in storage order.
	Dimensions []string `json:"dimensions"`

	// Attributes holds per-variable metadata (units, long_name, ...).
	Attributes Attributes `json:"attributes,omitempty"`

	// Compressor names the compression applied to the payload.
	Compressor string `json:"compressor"`

	// Offset is the payload position relative to the end of the header.
	Offset int64 `json:"offset"`

	// StoredBytes is the compressed payload length.
	StoredBytes int64 `json:"stored_bytes"`

	// RawBytes is the decompressed payload length.
	RawBytes int64 `json:"raw_bytes"`
}

// header is the JSON document following the magic frame.
type header struct {
	FormatVersion string      `json:"format_version"`
	Dimensions    []Dimension `json:"dimensions"`
	Attributes    Attributes  `json:"attributes"`
	Variables     []*Variable `json:"variables"`
}

// -----------------------------------------------------------------------------
// Dataset
// -----------------------------------------------------------------------------

// Dataset is an opened, read-only container file. Variable payloads are read
// lazily, one variable at a time, which bounds memory to a single variable's
// decompressed footprint.
type Dataset struct {
	path   string
	r      io.ReaderAt
	closer io.Closer
	size   int64

	hdr  header
	dims map[string]int
	vars map[string]*Variable

	payloadStart int64
}

// OpenDataset opens a container file for reading. Malformed files return a
// *StructuralError.
func OpenDataset(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &StructuralError{Path: path, Reason: "cannot open file", Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, &StructuralError{Path: path, Reason: "cannot stat file", Err: err}
	}
	ds, err := NewDatasetReader(f, info.Size(), path)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	ds.closer = f
	return ds, nil
}

// NewDatasetReader decodes a container from an arbitrary random-access
// reader. The name is used in diagnostics and provenance only.
func NewDatasetReader(r io.ReaderAt, size int64, name string) (*Dataset, error) {
	frame := make([]byte, headerFrameSize)
	if _, err := r.ReadAt(frame, 0); err != nil {
		return nil, &StructuralError{Path: name, Reason: "file too short for header frame", Err: err}
	}
	if string(frame[:len(containerMagic)]) != containerMagic {
		return nil, &StructuralError{Path: name, Reason: "not a driftwood container (bad magic)"}
	}
	hdrLen := int64(binary.LittleEndian.Uint32(frame[len(containerMagic):]))
	if hdrLen <= 0 || hdrLen > maxHeaderBytes {
		return nil, &StructuralError{Path: name, Reason: fmt.Sprintf("implausible header length %d", hdrLen)}
	}
	if int64(headerFrameSize)+hdrLen > size {
		return nil, &StructuralError{Path: name, Reason: "truncated header"}
	}

	raw := make([]byte, hdrLen)
	if _, err := r.ReadAt(raw, int64(headerFrameSize)); err != nil {
		return nil, &StructuralError{Path: name, Reason: "reading header", Err: err}
	}

	var hdr header
	if err := jsonCodec.Unmarshal(raw, &hdr); err != nil {
		return nil, &StructuralError{Path: name, Reason: "malformed header JSON", Err: err}
	}

	ds := &Dataset{
		path:         name,
		r:            r,
		size:         size,
		hdr:          hdr,
		dims:         make(map[string]int, len(hdr.Dimensions)),
		vars:         make(map[string]*Variable, len(hdr.Variables)),
		payloadStart: int64(headerFrameSize) + hdrLen,
	}
	if err := ds.check(); err != nil {
		return nil, err
	}
	return ds, nil
}

// check establishes the structural invariants: unique positive dimensions,
// every variable dimension declared, payload ranges inside the file, raw
// sizes consistent with shape and dtype.
func (d *Dataset) check() error {
	fail := func(reason string) error {
		return &StructuralError{Path: d.path, Reason: reason}
	}

	for _, dim := range d.hdr.Dimensions {
		if dim.Name == "" {
			return fail("dimension with empty name")
		}
		if dim.Length < 1 {
			return fail(fmt.Sprintf("dimension %q has non-positive length %d", dim.Name, dim.Length))
		}
		if _, dup := d.dims[dim.Name]; dup {
			return fail(fmt.Sprintf("duplicate dimension %q", dim.Name))
		}
		d.dims[dim.Name] = dim.Length
	}

	for _, v := range d.hdr.Variables {
		if v.Name == "" {
			return fail("variable with empty name")
		}
		if _, dup := d.vars[v.Name]; dup {
			return fail(fmt.Sprintf("duplicate variable %q", v.Name))
		}
		if v.Dtype.ByteOrder == BigEndian {
			return fail(fmt.Sprintf("variable %q uses big-endian payload, not supported", v.Name))
		}
		elems := int64(1)
		for i, dn := range v.Dimensions {
			n, ok := d.dims[dn]
			if !ok {
				return fail(fmt.Sprintf("variable %q references undeclared dimension %q", v.Name, dn))
			}
			// Fragmentation slices rows off the outermost axis; a primary
			// dimension buried deeper cannot be sliced contiguously.
			if dn == PrimaryDimension && i != 0 {
				return fail(fmt.Sprintf("variable %q has %q as dimension %d, must be outermost", v.Name, dn, i))
			}
			elems *= int64(n)
		}
		if want := elems * int64(v.Dtype.ByteSize); v.RawBytes != want {
			return fail(fmt.Sprintf("variable %q raw size %d does not match shape (%d expected)", v.Name, v.RawBytes, want))
		}
		if v.Offset < 0 || v.StoredBytes < 0 || d.payloadStart+v.Offset+v.StoredBytes > d.size {
			return fail(fmt.Sprintf("variable %q payload extends past end of file", v.Name))
		}
		if _, err := CompressorByName(v.Compressor); err != nil {
			return fail(fmt.Sprintf("variable %q: %v", v.Name, err))
		}
		d.vars[v.Name] = v
	}

	return nil
}

// Close releases the underlying file, if the dataset owns one.
func (d *Dataset) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer.Close()
}

// Path returns the path or name the dataset was opened from.
func (d *Dataset) Path() string { return d.path }

// SizeBytes returns the on-disk size of the container.
func (d *Dataset) SizeBytes() int64 { return d.size }

// Dimensions returns the declared dimensions in header order.
func (d *Dataset) Dimensions() []Dimension {
	out := make([]Dimension, len(d.hdr.Dimensions))
	copy(out, d.hdr.Dimensions)
	return out
}

// Dim returns the length of a named dimension.
func (d *Dataset) Dim(name string) (int, bool) {
	n, ok := d.dims[name]
	return n, ok
}

// Attributes returns a copy of the global attributes.
func (d *Dataset) Attributes() Attributes {
	return d.hdr.Attributes.Clone()
}

// Variables returns the variable table in header order.
func (d *Dataset) Variables() []*Variable {
	out := make([]*Variable, len(d.hdr.Variables))
	copy(out, d.hdr.Variables)
	return out
}

// Var looks up a variable by name.
func (d *Dataset) Var(name string) (*Variable, bool) {
	v, ok := d.vars[name]
	return v, ok
}

// HasVariable reports whether a variable exists.
func (d *Dataset) HasVariable(name string) bool {
	_, ok := d.vars[name]
	return ok
}

// ReadVariable decompresses and returns a variable's full payload.
func (d *Dataset) ReadVariable(v *Variable) ([]byte, error) {
	if _, ok := d.vars[v.Name]; !ok {
		return nil, fmt.Errorf("driftwood: variable %q not in dataset %s", v.Name, d.path)
	}

	comp, err := CompressorByName(v.Compressor)
	if err != nil {
		return nil, err
	}

	section := io.NewSectionReader(d.r, d.payloadStart+v.Offset, v.StoredBytes)
	rc, err := comp.Decompress(section)
	if err != nil {
		return nil, &StructuralError{Path: d.path, Reason: fmt.Sprintf("decompressing variable %q", v.Name), Err: err}
	}
	defer func() { _ = rc.Close() }()

	raw := make([]byte, v.RawBytes)
	if _, err := io.ReadFull(rc, raw); err != nil {
		return nil, &StructuralError{Path: d.path, Reason: fmt.Sprintf("variable %q payload shorter than declared", v.Name), Err: err}
	}
	// A well-formed payload ends exactly at RawBytes.
	if n, _ := rc.Read(make([]byte, 1)); n != 0 {
		return nil, &StructuralError{Path: d.path, Reason: fmt.Sprintf("variable %q payload longer than declared", v.Name)}
	}
	return raw, nil
}

// RowBytes returns the byte length of one slice of the variable's outermost
// dimension.
func (d *Dataset) RowBytes(v *Variable) (int64, error) {
	if len(v.Dimensions) == 0 {
		return 0, fmt.Errorf("driftwood: variable %q is scalar, has no rows", v.Name)
	}
	row := int64(v.Dtype.ByteSize)
	for _, dn := range v.Dimensions[1:] {
		row *= int64(d.dims[dn])
	}
	return row, nil
}

// ReadRows decompresses a variable and returns the contiguous row range
// [start, start+count) along its outermost dimension.
func (d *Dataset) ReadRows(v *Variable, start, count int) ([]byte, error) {
	if len(v.Dimensions) == 0 {
		return nil, fmt.Errorf("driftwood: variable %q is scalar, cannot slice rows", v.Name)
	}
	outer := d.dims[v.Dimensions[0]]
	if start < 0 || count < 1 || start+count > outer {
		return nil, fmt.Errorf("driftwood: row range [%d,%d) out of bounds for variable %q (%d rows)",
			start, start+count, v.Name, outer)
	}

	raw, err := d.ReadVariable(v)
	if err != nil {
		return nil, err
	}
	row, err := d.RowBytes(v)
	if err != nil {
		return nil, err
	}
	out := make([]byte, int64(count)*row)
	copy(out, raw[int64(start)*row:int64(start+count)*row])
	return out, nil
}
