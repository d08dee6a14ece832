package driftwood

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

// -----------------------------------------------------------------------------
// Round-trip
// -----------------------------------------------------------------------------

func TestContainer_RoundTrip(t *testing.T) {
	for _, comp := range []Compressor{NewNoOpCompressor(), NewGzipCompressor(), NewZstdCompressor()} {
		t.Run(comp.Name(), func(t *testing.T) {
			b := newTestBuilder(t)
			ds := openBuilt(t, b, comp)

			if n, ok := ds.Dim(PrimaryDimension); !ok || n != testTrajectories {
				t.Fatalf("trajectory dim = %d, %v; want %d", n, ok, testTrajectories)
			}
			if n, ok := ds.Dim(TimeDimension); !ok || n != testSteps {
				t.Fatalf("time dim = %d, %v; want %d", n, ok, testSteps)
			}

			attrs := ds.Attributes()
			if cls, _ := attrs[AttrModelClass].(string); cls != SedimentDriftClass {
				t.Errorf("model class = %q, want %q", cls, SedimentDriftClass)
			}

			lon, ok := ds.Var("lon")
			if !ok {
				t.Fatal("lon variable missing after round trip")
			}
			data, err := ds.ReadVariable(lon)
			if err != nil {
				t.Fatal(err)
			}
			if len(data) != testTrajectories*testSteps*4 {
				t.Fatalf("lon payload = %d bytes, want %d", len(data), testTrajectories*testSteps*4)
			}
			first := math.Float32frombits(binary.LittleEndian.Uint32(data))
			if first != 4.5 {
				t.Errorf("lon[0,0] = %v, want 4.5", first)
			}
		})
	}
}

func TestContainer_ReadRows(t *testing.T) {
	b := newTestBuilder(t)
	ds := openBuilt(t, b, NewZstdCompressor())

	lon, _ := ds.Var("lon")
	rows, err := ds.ReadRows(lon, 3, 2)
	if err != nil {
		t.Fatal(err)
	}
	if want := 2 * testSteps * 4; len(rows) != want {
		t.Fatalf("2 rows = %d bytes, want %d", len(rows), want)
	}
	// Row 3, step 0 should match the generator.
	got := math.Float32frombits(binary.LittleEndian.Uint32(rows))
	want := float32(4.5 + 0.01*3)
	if got != want {
		t.Errorf("lon[3,0] = %v, want %v", got, want)
	}

	if _, err := ds.ReadRows(lon, testTrajectories, 1); err == nil {
		t.Error("out-of-bounds row read should fail")
	}
	if _, err := ds.ReadRows(lon, 0, 0); err == nil {
		t.Error("zero-count row read should fail")
	}
}

// -----------------------------------------------------------------------------
// Structural rejection
// -----------------------------------------------------------------------------

func TestContainer_BadMagic(t *testing.T) {
	b := newTestBuilder(t)
	var buf bytes.Buffer
	if _, err := b.WriteTo(&buf, nil); err != nil {
		t.Fatal(err)
	}

	data := buf.Bytes()
	copy(data, "NOTADATA")

	_, err := NewDatasetReader(bytes.NewReader(data), int64(len(data)), "bad.nc")
	var se *StructuralError
	if !errors.As(err, &se) {
		t.Fatalf("expected StructuralError, got %v", err)
	}
}

func TestContainer_Truncated(t *testing.T) {
	b := newTestBuilder(t)
	var buf bytes.Buffer
	if _, err := b.WriteTo(&buf, nil); err != nil {
		t.Fatal(err)
	}

	for _, cut := range []int{4, headerFrameSize, buf.Len() / 2} {
		data := buf.Bytes()[:cut]
		if _, err := NewDatasetReader(bytes.NewReader(data), int64(len(data)), "cut.nc"); err == nil {
			t.Errorf("truncation at %d bytes should fail open", cut)
		}
	}
}

func TestContainer_TruncatedPayloadReadFails(t *testing.T) {
	b := newTestBuilder(t)
	var buf bytes.Buffer
	if _, err := b.WriteTo(&buf, nil); err != nil {
		t.Fatal(err)
	}

	// Cut into the last variable's payload but keep the header intact.
	data := buf.Bytes()[:buf.Len()-10]
	if _, err := NewDatasetReader(bytes.NewReader(data), int64(len(data)), "cut.nc"); err == nil {
		t.Error("payload extending past EOF should fail open")
	}
}

func TestBuilder_RejectsPrimaryNotOutermost(t *testing.T) {
	b, err := NewBuilder([]Dimension{
		{Name: PrimaryDimension, Length: 4},
		{Name: TimeDimension, Length: 2},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	payload := make([]byte, 4*2*4)
	err = b.AddVariable("flipped", Float32, []string{TimeDimension, PrimaryDimension}, nil, payload)
	if err == nil {
		t.Fatal("primary dimension must be outermost")
	}
}

func TestBuilder_RejectsShapeMismatch(t *testing.T) {
	b, err := NewBuilder([]Dimension{{Name: PrimaryDimension, Length: 4}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.AddVariable("short", Float32, []string{PrimaryDimension}, nil, make([]byte, 15)); err == nil {
		t.Error("payload shorter than shape should be rejected")
	}
	if err := b.AddVariable("dangling", Float32, []string{"depth"}, nil, make([]byte, 4)); err == nil {
		t.Error("undeclared dimension should be rejected")
	}
}

func TestBuilder_RejectsDuplicateVariable(t *testing.T) {
	b, err := NewBuilder([]Dimension{{Name: PrimaryDimension, Length: 2}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	payload := make([]byte, 2*4)
	if err := b.AddVariable("v", Float32, []string{PrimaryDimension}, nil, payload); err != nil {
		t.Fatal(err)
	}
	if err := b.AddVariable("v", Float32, []string{PrimaryDimension}, nil, payload); err == nil {
		t.Error("duplicate variable should be rejected")
	}
}

func TestOpenDataset_MissingFile(t *testing.T) {
	_, err := OpenDataset("/nonexistent/path/file.nc")
	var se *StructuralError
	if !errors.As(err, &se) {
		t.Fatalf("expected StructuralError, got %v", err)
	}
}
