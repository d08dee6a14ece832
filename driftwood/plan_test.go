package driftwood

import (
	"errors"
	"testing"
)

func TestPlan_ExactPartition(t *testing.T) {
	// Every legal percentage must yield a contiguous, exact partition.
	for p := 1; p <= 100; p++ {
		plan, err := Plan(1000, p)
		if err != nil {
			t.Fatalf("Plan(1000, %d): %v", p, err)
		}

		wantTotal := (100 + p - 1) / p
		if plan.TotalFragments() != wantTotal {
			t.Fatalf("Plan(1000, %d) = %d fragments, want %d", p, plan.TotalFragments(), wantTotal)
		}

		offset := 0
		for i, spec := range plan.Specs {
			if spec.Index != i+1 {
				t.Fatalf("p=%d: spec %d has index %d", p, i, spec.Index)
			}
			if spec.Total != wantTotal {
				t.Fatalf("p=%d: spec %d has total %d, want %d", p, i, spec.Total, wantTotal)
			}
			if spec.Start != offset {
				t.Fatalf("p=%d: spec %d starts at %d, want %d", p, i, spec.Start, offset)
			}
			if spec.Length < 1 {
				t.Fatalf("p=%d: spec %d has empty slice", p, i)
			}
			offset += spec.Length
		}
		if offset != 1000 {
			t.Fatalf("p=%d: slices cover %d rows, want 1000", p, offset)
		}
	}
}

func TestPlan_LastFragmentAbsorbsRemainder(t *testing.T) {
	// 1003 rows at 10% -> 10 fragments of 100, last gets 103.
	plan, err := Plan(1003, 10)
	if err != nil {
		t.Fatal(err)
	}
	if plan.TotalFragments() != 10 {
		t.Fatalf("fragments = %d, want 10", plan.TotalFragments())
	}
	for _, spec := range plan.Specs[:9] {
		if spec.Length != 100 {
			t.Errorf("fragment %d length = %d, want 100", spec.Index, spec.Length)
		}
	}
	if last := plan.Specs[9]; last.Length != 103 {
		t.Errorf("last fragment length = %d, want 103", last.Length)
	}
}

func TestPlan_UnevenPercentage(t *testing.T) {
	// 30% -> ceil(100/30) = 4 fragments.
	plan, err := Plan(100, 30)
	if err != nil {
		t.Fatal(err)
	}
	if plan.TotalFragments() != 4 {
		t.Fatalf("fragments = %d, want 4", plan.TotalFragments())
	}
	if last := plan.Specs[3]; last.Start+last.Length != 100 {
		t.Errorf("plan does not cover the dimension: last ends at %d", last.Start+last.Length)
	}
}

func TestPlan_TooFewRows(t *testing.T) {
	// 1% needs 100 fragments; 50 rows cannot feed them.
	_, err := Plan(50, 1)
	var pe *PlanningError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PlanningError, got %v", err)
	}
	if pe.Length != 50 || pe.Percentage != 1 || pe.Fragments != 100 {
		t.Errorf("error detail = %+v", pe)
	}
}

func TestPlan_RejectsBadInput(t *testing.T) {
	for _, p := range []int{0, -5, 101} {
		if _, err := Plan(100, p); err == nil {
			t.Errorf("Plan(100, %d) should fail", p)
		}
	}
	if _, err := Plan(0, 10); err == nil {
		t.Error("zero-length dimension should fail")
	}
}

func TestPlan_SingleFragment(t *testing.T) {
	plan, err := Plan(7, 100)
	if err != nil {
		t.Fatal(err)
	}
	if plan.TotalFragments() != 1 {
		t.Fatalf("fragments = %d, want 1", plan.TotalFragments())
	}
	if spec := plan.Specs[0]; spec.Start != 0 || spec.Length != 7 {
		t.Errorf("spec = %+v", spec)
	}
}
