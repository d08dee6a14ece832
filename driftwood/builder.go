package driftwood

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// -----------------------------------------------------------------------------
// Builder
// -----------------------------------------------------------------------------

// Builder assembles a container in memory: dimensions first, then variables
// with their payloads, then a single encode. One builder holds roughly one
// fragment's decompressed footprint, which is the peak memory of a
// fragmentation run.
type Builder struct {
	dims   []Dimension
	dimIdx map[string]int
	attrs  Attributes

	vars   []*builderVar
	varIdx map[string]int
}

type builderVar struct {
	meta    Variable
	payload []byte
}

// NewBuilder creates a builder with the given dimensions and global
// attributes. Dimension names must be unique and lengths positive.
func NewBuilder(dims []Dimension, attrs Attributes) (*Builder, error) {
	b := &Builder{
		dimIdx: make(map[string]int, len(dims)),
		attrs:  attrs.Clone(),
		varIdx: make(map[string]int),
	}
	for _, dim := range dims {
		if dim.Name == "" {
			return nil, fmt.Errorf("driftwood: dimension with empty name")
		}
		if dim.Length < 1 {
			return nil, fmt.Errorf("driftwood: dimension %q must have positive length, got %d", dim.Name, dim.Length)
		}
		if _, dup := b.dimIdx[dim.Name]; dup {
			return nil, fmt.Errorf("driftwood: duplicate dimension %q", dim.Name)
		}
		b.dimIdx[dim.Name] = dim.Length
		b.dims = append(b.dims, dim)
	}
	return b, nil
}

// Dim returns the length of a named dimension.
func (b *Builder) Dim(name string) (int, bool) {
	n, ok := b.dimIdx[name]
	return n, ok
}

// HasVariable reports whether a variable was already added.
func (b *Builder) HasVariable(name string) bool {
	_, ok := b.varIdx[name]
	return ok
}

// VariableNames returns added variable names in insertion order.
func (b *Builder) VariableNames() []string {
	out := make([]string, len(b.vars))
	for i, v := range b.vars {
		out[i] = v.meta.Name
	}
	return out
}

// Attr returns a global attribute.
func (b *Builder) Attr(key string) (any, bool) {
	v, ok := b.attrs[key]
	return v, ok
}

// SetAttr sets a global attribute.
func (b *Builder) SetAttr(key string, value any) {
	if b.attrs == nil {
		b.attrs = Attributes{}
	}
	b.attrs[key] = value
}

// AddVariable appends a variable with its raw (uncompressed) payload. The
// payload length must match the declared shape and dtype exactly, and the
// primary dimension, when present, must be outermost.
func (b *Builder) AddVariable(name string, dt Dtype, dims []string, attrs Attributes, payload []byte) error {
	if name == "" {
		return fmt.Errorf("driftwood: variable name must be non-empty")
	}
	if b.HasVariable(name) {
		return fmt.Errorf("driftwood: variable %q already added", name)
	}
	if dt.ByteOrder == BigEndian {
		return fmt.Errorf("driftwood: variable %q: payloads are written little-endian", name)
	}

	elems := int64(1)
	for i, dn := range dims {
		n, ok := b.dimIdx[dn]
		if !ok {
			return fmt.Errorf("driftwood: variable %q references undeclared dimension %q", name, dn)
		}
		if dn == PrimaryDimension && i != 0 {
			return fmt.Errorf("driftwood: variable %q must have %q as its outermost dimension", name, PrimaryDimension)
		}
		elems *= int64(n)
	}
	if want := elems * int64(dt.ByteSize); int64(len(payload)) != want {
		return fmt.Errorf("driftwood: variable %q payload is %d bytes, shape requires %d", name, len(payload), want)
	}

	dimsCopy := make([]string, len(dims))
	copy(dimsCopy, dims)

	b.varIdx[name] = len(b.vars)
	b.vars = append(b.vars, &builderVar{
		meta: Variable{
			Name:       name,
			Dtype:      dt,
			Dimensions: dimsCopy,
			Attributes: attrs.Clone(),
			RawBytes:   int64(len(payload)),
		},
		payload: payload,
	})
	return nil
}

// WriteTo encodes the container using the given compressor for every
// variable payload and returns the number of bytes written.
func (b *Builder) WriteTo(w io.Writer, comp Compressor) (int64, error) {
	if comp == nil {
		comp = NewNoOpCompressor()
	}

	// Compress payloads first so the header can carry final offsets.
	stored := make([][]byte, len(b.vars))
	hdr := header{
		FormatVersion: formatVersion,
		Dimensions:    b.dims,
		Attributes:    b.attrs,
	}
	var offset int64
	for i, v := range b.vars {
		var buf bytes.Buffer
		cw, err := comp.Compress(&buf)
		if err != nil {
			return 0, fmt.Errorf("driftwood: compressing variable %q: %w", v.meta.Name, err)
		}
		if _, err := cw.Write(v.payload); err != nil {
			_ = cw.Close()
			return 0, fmt.Errorf("driftwood: compressing variable %q: %w", v.meta.Name, err)
		}
		if err := cw.Close(); err != nil {
			return 0, fmt.Errorf("driftwood: compressing variable %q: %w", v.meta.Name, err)
		}
		stored[i] = buf.Bytes()

		meta := v.meta
		meta.Compressor = comp.Name()
		meta.Offset = offset
		meta.StoredBytes = int64(len(stored[i]))
		offset += meta.StoredBytes
		hdr.Variables = append(hdr.Variables, &meta)
	}

	hdrJSON, err := jsonCodec.Marshal(&hdr)
	if err != nil {
		return 0, fmt.Errorf("driftwood: encoding header: %w", err)
	}
	if len(hdrJSON) > maxHeaderBytes {
		return 0, fmt.Errorf("driftwood: header of %d bytes exceeds limit", len(hdrJSON))
	}

	var written int64
	frame := make([]byte, headerFrameSize)
	copy(frame, containerMagic)
	binary.LittleEndian.PutUint32(frame[len(containerMagic):], uint32(len(hdrJSON)))

	for _, chunk := range [][]byte{frame, hdrJSON} {
		n, err := w.Write(chunk)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	for _, chunk := range stored {
		n, err := w.Write(chunk)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
