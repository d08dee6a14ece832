package driftwood

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func fixtureFile(t *testing.T) string {
	t.Helper()
	b := newTestBuilder(t)
	return writeTestFile(t, b, "drift.nc")
}

func TestFragment_EndToEnd(t *testing.T) {
	ctx := context.Background()
	input := fixtureFile(t)
	store := NewMemory()

	res, err := Fragment(ctx, input, FragmentOptions{
		Percentage:     25,
		OutputPrefix:   "out/drift",
		Store:          store,
		AvailableBytes: 8 << 30,
		RunID:          "run-e2e",
		Summary:        true,
	})
	if err != nil {
		t.Fatal(err)
	}

	if res.RunID != "run-e2e" {
		t.Errorf("run ID = %q", res.RunID)
	}
	if len(res.Files) != 4 {
		t.Fatalf("files = %d, want 4", len(res.Files))
	}
	if got, want := res.MissingBefore, RequiredVariables(); !reflect.DeepEqual(got, want) {
		t.Errorf("missing before = %v, want %v", got, want)
	}

	for _, ref := range res.Files {
		ok, err := store.Exists(ctx, ref.Path)
		if err != nil || !ok {
			t.Errorf("fragment %s not stored (%v)", ref.Path, err)
		}
	}
	if ok, _ := store.Exists(ctx, res.ManifestPath); !ok {
		t.Errorf("manifest %s not stored", res.ManifestPath)
	}
	if res.SummaryPath == "" {
		t.Fatal("summary requested but not written")
	}
	if ok, _ := store.Exists(ctx, res.SummaryPath); !ok {
		t.Errorf("summary %s not stored", res.SummaryPath)
	}

	// Every fragment must validate cleanly after injection.
	rows, err := ReadSummary(ctx, store, "out/drift")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 {
		t.Errorf("summary rows = %d, want 4", len(rows))
	}
}

func TestFragment_DefaultRunID(t *testing.T) {
	res, err := Fragment(context.Background(), fixtureFile(t), FragmentOptions{
		Percentage:     50,
		OutputPrefix:   "drift",
		Store:          NewMemory(),
		AvailableBytes: 8 << 30,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.RunID == "" {
		t.Error("run ID should be generated when unset")
	}
}

func TestFragment_RiskyDeclinedByDefault(t *testing.T) {
	// 1 byte of available memory makes any estimate risky; with no
	// confirmer the run must stop before writing anything.
	store := NewMemory()
	_, err := Fragment(context.Background(), fixtureFile(t), FragmentOptions{
		Percentage:     25,
		OutputPrefix:   "drift",
		Store:          store,
		AvailableBytes: 1,
	})
	if !errors.Is(err, ErrUserCancelled) {
		t.Fatalf("expected ErrUserCancelled, got %v", err)
	}
	if ok, _ := store.Exists(context.Background(), FragmentName("drift", 1, 4)); ok {
		t.Error("declined run must not write fragments")
	}
}

func TestFragment_RiskyApproved(t *testing.T) {
	res, err := Fragment(context.Background(), fixtureFile(t), FragmentOptions{
		Percentage:     25,
		OutputPrefix:   "drift",
		Store:          NewMemory(),
		AvailableBytes: 1,
		Confirmer:      AutoApprove(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Files) != 4 {
		t.Errorf("files = %d, want 4", len(res.Files))
	}
	if !res.Estimate.Risky() {
		t.Error("estimate should have been risky")
	}
}

func TestFragment_ProbeFallback(t *testing.T) {
	var out strings.Builder
	res, err := Fragment(context.Background(), fixtureFile(t), FragmentOptions{
		Percentage:   50,
		OutputPrefix: "drift",
		Store:        NewMemory(),
		Probe:        func() (int64, error) { return 0, errors.New("no meminfo") },
		Progress:     &out,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Estimate.AvailableBytes != fallbackAvailableBytes {
		t.Errorf("available = %d, want fallback %d", res.Estimate.AvailableBytes, fallbackAvailableBytes)
	}
	if !strings.Contains(out.String(), "WARNING") {
		t.Error("fallback should warn on progress output")
	}
}

func TestFragment_PlanErrorSurfaces(t *testing.T) {
	// 20 trajectories cannot feed 100 fragments.
	_, err := Fragment(context.Background(), fixtureFile(t), FragmentOptions{
		Percentage:     1,
		OutputPrefix:   "drift",
		Store:          NewMemory(),
		AvailableBytes: 8 << 30,
	})
	var pe *PlanningError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PlanningError, got %v", err)
	}
}

func TestFragment_InvalidInput(t *testing.T) {
	_, err := Fragment(context.Background(), "/nonexistent.nc", FragmentOptions{
		Percentage:     10,
		OutputPrefix:   "drift",
		Store:          NewMemory(),
		AvailableBytes: 8 << 30,
	})
	var se *StructuralError
	if !errors.As(err, &se) {
		t.Fatalf("expected StructuralError, got %v", err)
	}
}

func TestFragment_RequiresStore(t *testing.T) {
	if _, err := Fragment(context.Background(), "drift.nc", FragmentOptions{Percentage: 10}); err == nil {
		t.Error("missing store should fail")
	}
}

func TestFragment_DerivedPrefix(t *testing.T) {
	input := fixtureFile(t)
	store := NewMemory()
	res, err := Fragment(context.Background(), input, FragmentOptions{
		Percentage:     50,
		Store:          store,
		AvailableBytes: 8 << 30,
	})
	if err != nil {
		t.Fatal(err)
	}
	if want := "drift_processed_fragment_001_of_002.nc"; res.Files[0].Path != want {
		t.Errorf("derived path = %q, want %q", res.Files[0].Path, want)
	}
}
