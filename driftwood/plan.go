package driftwood

import "fmt"

// FragmentSpec describes one contiguous slice of the primary dimension.
type FragmentSpec struct {
	// Index is the 1-based fragment index.
	Index int `json:"index"`

	// Total is the fragment count of the plan the spec belongs to.
	Total int `json:"total"`

	// Start is the first trajectory row of the slice.
	Start int `json:"start"`

	// Length is the number of trajectory rows in the slice.
	Length int `json:"length"`
}

// FragmentPlan is a deterministic, exact partition of the primary
// dimension: specs are contiguous, non-overlapping, in ascending order, and
// their lengths sum to the dimension's full length.
type FragmentPlan struct {
	// Percentage is the requested per-fragment percentage.
	Percentage int `json:"percentage"`

	// PrimaryLength is the partitioned dimension's total length.
	PrimaryLength int `json:"primary_length"`

	// Specs holds the fragments in index order.
	Specs []FragmentSpec `json:"specs"`
}

// TotalFragments returns the fragment count.
func (p *FragmentPlan) TotalFragments() int {
	return len(p.Specs)
}

// Plan partitions a primary dimension of the given length into
// ceil(100/percentage) fragments. All fragments but the last have equal
// length; the last absorbs the remainder. Returns a *PlanningError when the
// dimension is too short to give every fragment at least one row.
func Plan(primaryLength, percentage int) (*FragmentPlan, error) {
	if percentage < 1 || percentage > 100 {
		return nil, fmt.Errorf("driftwood: percentage must be between 1 and 100, got %d", percentage)
	}
	if primaryLength < 1 {
		return nil, fmt.Errorf("driftwood: primary dimension length must be positive, got %d", primaryLength)
	}

	total := (100 + percentage - 1) / percentage
	if primaryLength < total {
		return nil, &PlanningError{Length: primaryLength, Percentage: percentage, Fragments: total}
	}

	base := primaryLength / total
	specs := make([]FragmentSpec, total)
	offset := 0
	for i := 0; i < total; i++ {
		length := base
		if i == total-1 {
			length = primaryLength - offset
		}
		specs[i] = FragmentSpec{
			Index:  i + 1,
			Total:  total,
			Start:  offset,
			Length: length,
		}
		offset += length
	}

	return &FragmentPlan{
		Percentage:    percentage,
		PrimaryLength: primaryLength,
		Specs:         specs,
	}, nil
}
