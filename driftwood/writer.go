package driftwood

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

const (
	manifestSchemaName    = "driftwood-manifest"
	manifestFormatVersion = "1.0.0"
)

// FileRef describes one written fragment.
type FileRef struct {
	// Path is the fragment path within the store.
	Path string `json:"path"`

	// SizeBytes is the encoded fragment size.
	SizeBytes int64 `json:"size_bytes"`

	// Checksum is the SHA-256 of the encoded fragment, hex-encoded.
	Checksum string `json:"checksum"`

	// Index is the 1-based fragment index.
	Index int `json:"index"`

	// Start is the first trajectory row of the fragment.
	Start int `json:"start"`

	// Length is the trajectory row count of the fragment.
	Length int `json:"length"`

	// Injected names the variables synthesized into this fragment.
	Injected []string `json:"injected,omitempty"`
}

// Manifest records the provenance of a completed fragmentation run. It is
// written next to the fragments as <prefix>_manifest.json.
type Manifest struct {
	SchemaName     string         `json:"schema_name"`
	FormatVersion  string         `json:"format_version"`
	RunID          string         `json:"run_id"`
	CreatedAt      time.Time      `json:"created_at"`
	Source         string         `json:"source"`
	Percentage     int            `json:"percentage"`
	PrimaryLength  int            `json:"primary_length"`
	TotalFragments int            `json:"total_fragments"`
	Params         PhysicalParams `json:"params"`
	Files          []FileRef      `json:"files"`
}

// Provenance attribute names stamped on every fragment.
const (
	AttrFragmentNumber  = "fragment_number"
	AttrTotalFragments  = "total_fragments"
	AttrTrajectoryStart = "fragment_trajectory_start"
	AttrTrajectoryEnd   = "fragment_trajectory_end"
	AttrOriginalFile    = "original_file"
	AttrRunID           = "run_id"
	AttrModifiedBy      = "modified_by"
)

const toolName = "driftwood"

// FragmentWriter slices a dataset per a plan, applies the injector, and
// persists each fragment through a Store. Fragments are written strictly in
// index order, never concurrently: peak memory stays near one fragment's
// footprint, which is what the memory estimate models.
type FragmentWriter struct {
	store      Store
	compressor Compressor
	log        *zap.Logger
	progress   io.Writer
	runID      string
}

// WriterOption configures a FragmentWriter.
type WriterOption func(*FragmentWriter)

// WithCompressor sets the payload compressor. Default: zstd.
func WithCompressor(c Compressor) WriterOption {
	return func(w *FragmentWriter) { w.compressor = c }
}

// WithLogger sets the diagnostic logger. Default: no-op.
func WithLogger(log *zap.Logger) WriterOption {
	return func(w *FragmentWriter) { w.log = log }
}

// WithProgress sets the writer for orchestrator-facing progress lines.
// Default: discard.
func WithProgress(out io.Writer) WriterOption {
	return func(w *FragmentWriter) { w.progress = out }
}

// WithRunID sets the provenance run ID. Default: none; the pipeline
// generates one per run.
func WithRunID(id string) WriterOption {
	return func(w *FragmentWriter) { w.runID = id }
}

// NewFragmentWriter creates a writer targeting the given store.
func NewFragmentWriter(store Store, opts ...WriterOption) (*FragmentWriter, error) {
	if store == nil {
		return nil, fmt.Errorf("driftwood: store is required")
	}
	w := &FragmentWriter{
		store:      store,
		compressor: NewZstdCompressor(),
		log:        zap.NewNop(),
		progress:   io.Discard,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// FragmentName returns the deterministic fragment file name for an index.
func FragmentName(prefix string, index, total int) string {
	return fmt.Sprintf("%s_fragment_%03d_of_%03d.nc", prefix, index, total)
}

// Write persists every fragment of the plan, in index order. A failure on
// fragment k aborts the remaining sequence and returns the refs written so
// far together with a *WriteFailure; partial output stays on disk and the
// run must be surfaced as incomplete, never as success.
//
// Cancellation is cooperative: ctx is checked between fragments, and a
// cancelled run returns ErrUserCancelled with the refs already written.
func (w *FragmentWriter) Write(ctx context.Context, ds *Dataset, plan *FragmentPlan, params PhysicalParams, prefix string) ([]FileRef, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if _, ok := ds.Dim(PrimaryDimension); !ok {
		return nil, &StructuralError{Path: ds.Path(), Reason: fmt.Sprintf("missing primary dimension %q", PrimaryDimension)}
	}

	total := plan.TotalFragments()
	var refs []FileRef
	for _, spec := range plan.Specs {
		select {
		case <-ctx.Done():
			w.log.Warn("fragmentation cancelled",
				zap.Int("written", len(refs)),
				zap.Int("total", total))
			return refs, ErrUserCancelled
		default:
		}

		ref, err := w.writeFragment(ctx, ds, spec, params, prefix)
		if err != nil {
			return refs, &WriteFailure{
				Index: spec.Index,
				Total: total,
				Path:  FragmentName(prefix, spec.Index, total),
				Err:   err,
			}
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func (w *FragmentWriter) writeFragment(ctx context.Context, ds *Dataset, spec FragmentSpec, params PhysicalParams, prefix string) (FileRef, error) {
	path := FragmentName(prefix, spec.Index, spec.Total)

	fmt.Fprintf(w.progress, "\nFragment %d/%d:\n", spec.Index, spec.Total)
	fmt.Fprintf(w.progress, "  Trajectories: %d to %d (%d total)\n", spec.Start, spec.Start+spec.Length-1, spec.Length)
	fmt.Fprintf(w.progress, "  Output: %s\n", path)

	dims := ds.Dimensions()
	for i := range dims {
		if dims[i].Name == PrimaryDimension {
			dims[i].Length = spec.Length
		}
	}

	attrs := ds.Attributes()
	attrs[AttrFragmentNumber] = spec.Index
	attrs[AttrTotalFragments] = spec.Total
	attrs[AttrTrajectoryStart] = spec.Start
	attrs[AttrTrajectoryEnd] = spec.Start + spec.Length
	attrs[AttrOriginalFile] = filepath.Base(ds.Path())
	attrs[AttrModifiedBy] = toolName
	if w.runID != "" {
		attrs[AttrRunID] = w.runID
	}

	b, err := NewBuilder(dims, attrs)
	if err != nil {
		return FileRef{}, err
	}

	// One variable at a time: decompress, slice, hand the slice to the
	// builder, release the full payload.
	for _, v := range ds.Variables() {
		var payload []byte
		if len(v.Dimensions) > 0 && v.Dimensions[0] == PrimaryDimension {
			payload, err = ds.ReadRows(v, spec.Start, spec.Length)
		} else {
			payload, err = ds.ReadVariable(v)
		}
		if err != nil {
			return FileRef{}, err
		}
		if err := b.AddVariable(v.Name, v.Dtype, v.Dimensions, v.Attributes, payload); err != nil {
			return FileRef{}, err
		}
	}

	added, err := Inject(b, params)
	if err != nil {
		return FileRef{}, err
	}
	if len(added) > 0 {
		fmt.Fprintf(w.progress, "  Added variables:\n")
		for _, name := range added {
			fmt.Fprintf(w.progress, "    + %s\n", name)
		}
	} else {
		fmt.Fprintf(w.progress, "  All catalog variables already present\n")
	}

	var buf bytes.Buffer
	if _, err := b.WriteTo(&buf, w.compressor); err != nil {
		return FileRef{}, err
	}

	sum := sha256.Sum256(buf.Bytes())
	size := int64(buf.Len())

	if err := w.store.Put(ctx, path, &buf); err != nil {
		return FileRef{}, err
	}

	w.log.Info("fragment written",
		zap.String("path", path),
		zap.Int("index", spec.Index),
		zap.Int("total", spec.Total),
		zap.Int64("bytes", size),
		zap.Strings("injected", added))
	fmt.Fprintf(w.progress, "  Size: %.2f MB\n", float64(size)/(1024*1024))

	return FileRef{
		Path:      path,
		SizeBytes: size,
		Checksum:  hex.EncodeToString(sum[:]),
		Index:     spec.Index,
		Start:     spec.Start,
		Length:    spec.Length,
		Injected:  added,
	}, nil
}

// ManifestName returns the run manifest path for an output prefix.
func ManifestName(prefix string) string {
	return prefix + "_manifest.json"
}

// WriteManifest persists the run manifest for a completed sequence.
func (w *FragmentWriter) WriteManifest(ctx context.Context, m *Manifest, prefix string) (string, error) {
	m.SchemaName = manifestSchemaName
	m.FormatVersion = manifestFormatVersion

	data, err := jsonCodec.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("driftwood: encoding manifest: %w", err)
	}

	path := ManifestName(prefix)
	if err := w.store.Put(ctx, path, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("driftwood: writing manifest: %w", err)
	}
	return path, nil
}
