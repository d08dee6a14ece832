package driftwood

import (
	"bytes"
	"context"
	"fmt"

	"github.com/parquet-go/parquet-go"
)

// summaryRow is one fragment in the columnar run summary. The summary is an
// analyst-facing artifact: load it with pandas or DuckDB to audit a run
// without touching the fragments themselves.
type summaryRow struct {
	RunID       string  `parquet:"run_id"`
	Source      string  `parquet:"source"`
	Fragment    int32   `parquet:"fragment"`
	Total       int32   `parquet:"total_fragments"`
	Path        string  `parquet:"path"`
	Start       int64   `parquet:"trajectory_start"`
	Length      int64   `parquet:"trajectory_length"`
	SizeBytes   int64   `parquet:"size_bytes"`
	Checksum    string  `parquet:"checksum_sha256"`
	Injected    int32   `parquet:"injected_count"`
	Class       string  `parquet:"particulate_class"`
	SizeClass   string  `parquet:"particulate_size_class"`
	DiameterMM  float64 `parquet:"diameter_mm"`
	DensityKgM3 float64 `parquet:"density_kg_m3"`
}

// SummaryName returns the run summary path for an output prefix.
func SummaryName(prefix string) string {
	return prefix + "_summary.parquet"
}

// WriteSummary persists a parquet table with one row per written fragment.
func WriteSummary(ctx context.Context, store Store, m *Manifest, prefix string) (string, error) {
	rows := make([]summaryRow, 0, len(m.Files))
	for _, f := range m.Files {
		rows = append(rows, summaryRow{
			RunID:       m.RunID,
			Source:      m.Source,
			Fragment:    int32(f.Index),
			Total:       int32(m.TotalFragments),
			Path:        f.Path,
			Start:       int64(f.Start),
			Length:      int64(f.Length),
			SizeBytes:   f.SizeBytes,
			Checksum:    f.Checksum,
			Injected:    int32(len(f.Injected)),
			Class:       string(m.Params.Class),
			SizeClass:   string(m.Params.Size),
			DiameterMM:  m.Params.DiameterMM,
			DensityKgM3: m.Params.DensityKgM3,
		})
	}

	var buf bytes.Buffer
	w := parquet.NewGenericWriter[summaryRow](&buf, parquet.Compression(&parquet.Snappy))
	if _, err := w.Write(rows); err != nil {
		return "", fmt.Errorf("driftwood: encoding summary: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("driftwood: closing summary writer: %w", err)
	}

	path := SummaryName(prefix)
	if err := store.Put(ctx, path, &buf); err != nil {
		return "", fmt.Errorf("driftwood: writing summary: %w", err)
	}
	return path, nil
}

// ReadSummary loads a run summary back from a store. Used by tests and by
// tooling that audits completed runs.
func ReadSummary(ctx context.Context, store Store, prefix string) ([]summaryRow, error) {
	rc, err := store.Get(ctx, SummaryName(prefix))
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		return nil, fmt.Errorf("driftwood: reading summary: %w", err)
	}
	rows, err := parquet.Read[summaryRow](bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		return nil, fmt.Errorf("driftwood: decoding summary: %w", err)
	}
	return rows, nil
}
