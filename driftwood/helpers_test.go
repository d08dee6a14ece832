package driftwood

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// testDims are the fixture dimensions used across the package tests.
const (
	testTrajectories = 20
	testSteps        = 12
)

func float32Payload(nTraj, nTime int, f func(traj, step int) float32) []byte {
	out := make([]byte, 0, nTraj*nTime*4)
	var elem [4]byte
	for i := 0; i < nTraj; i++ {
		for j := 0; j < nTime; j++ {
			binary.LittleEndian.PutUint32(elem[:], math.Float32bits(f(i, j)))
			out = append(out, elem[:]...)
		}
	}
	return out
}

func uniformFloat32(nTraj, nTime int, v float32) []byte {
	return float32Payload(nTraj, nTime, func(int, int) float32 { return v })
}

// newTestBuilder creates a builder with the fixture dimensions, the
// SedimentDrift class attribute, and the lon/lat coordinate variables.
func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	b, err := NewBuilder(
		[]Dimension{
			{Name: PrimaryDimension, Length: testTrajectories},
			{Name: TimeDimension, Length: testSteps},
		},
		Attributes{AttrModelClass: SedimentDriftClass, "title": "fixture run"},
	)
	if err != nil {
		t.Fatal(err)
	}

	lon := float32Payload(testTrajectories, testSteps, func(i, j int) float32 {
		return float32(4.5 + 0.01*float64(i) + 0.001*float64(j))
	})
	lat := float32Payload(testTrajectories, testSteps, func(i, j int) float32 {
		return float32(60.0 + 0.01*float64(i) - 0.001*float64(j))
	})
	dims := []string{PrimaryDimension, TimeDimension}
	if err := b.AddVariable("lon", Float32, dims, Attributes{"units": "degrees_east"}, lon); err != nil {
		t.Fatal(err)
	}
	if err := b.AddVariable("lat", Float32, dims, Attributes{"units": "degrees_north"}, lat); err != nil {
		t.Fatal(err)
	}
	if err := b.AddVariable("z", Float32, dims, Attributes{"units": "m"}, uniformFloat32(testTrajectories, testSteps, -5)); err != nil {
		t.Fatal(err)
	}
	status := bytes.Repeat([]byte{0, 0, 0, 0}, testTrajectories*testSteps)
	if err := b.AddVariable("status", Int32, dims, nil, status); err != nil {
		t.Fatal(err)
	}
	return b
}

// addCatalogVariables fills in every catalog variable with defaults so the
// fixture validates as fully valid.
func addCatalogVariables(t *testing.T, b *Builder) {
	t.Helper()
	if _, err := Inject(b, DefaultPhysicalParams()); err != nil {
		t.Fatal(err)
	}
}

// openBuilt encodes a builder and reopens it as a dataset backed by memory.
func openBuilt(t *testing.T, b *Builder, comp Compressor) *Dataset {
	t.Helper()
	var buf bytes.Buffer
	if _, err := b.WriteTo(&buf, comp); err != nil {
		t.Fatal(err)
	}
	ds, err := NewDatasetReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()), "fixture.nc")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ds.Close() })
	return ds
}

// writeTestFile encodes a builder to a .nc file under a temp dir.
func writeTestFile(t *testing.T, b *Builder, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.WriteTo(f, NewZstdCompressor()); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}
