package driftwood

import (
	"bytes"
	"fmt"
)

// Inject synthesizes every catalog variable missing from the fragment under
// construction, filling it uniformly from the physical parameters. Existing
// variables are never overwritten, so injection is idempotent: applying it
// to a fragment that already carries the full catalog is a no-op.
//
// Returns the names of the variables that were synthesized, in catalog
// order.
func Inject(b *Builder, params PhysicalParams) ([]string, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	var added []string
	for _, entry := range Catalog() {
		if b.HasVariable(entry.Name) {
			continue
		}

		elems := 1
		for _, dn := range entry.Dimensions {
			n, ok := b.Dim(dn)
			if !ok {
				return added, fmt.Errorf("driftwood: cannot synthesize %q: fragment lacks dimension %q", entry.Name, dn)
			}
			elems *= n
		}

		elem := entry.FillElement(params)
		if len(elem) != entry.Dtype.ByteSize {
			return added, fmt.Errorf("driftwood: fill value for %q is %d bytes, dtype needs %d", entry.Name, len(elem), entry.Dtype.ByteSize)
		}
		payload := bytes.Repeat(elem, elems)

		if err := b.AddVariable(entry.Name, entry.Dtype, entry.Dimensions, entry.VariableAttributes(), payload); err != nil {
			return added, err
		}
		added = append(added, entry.Name)
	}

	if _, ok := b.Attr(AttrModelClass); !ok {
		b.SetAttr(AttrModelClass, SedimentDriftClass)
	}

	return added, nil
}
