package catalogs

import "rgsim.dev/internal/sim/modifier"

// Aligned is any subject that belongs to an alignment.
type Aligned interface {
	AlignmentRef() AlignmentID
}

// BuildingFilter matches building subjects with one of ids.
func BuildingFilter(ids ...BuildingID) modifier.Filter {
	return modifier.FilterFunc(func(_ modifier.View, subject any) bool {
		b, ok := subject.(*Building)
		if !ok {
			return false
		}
		for _, id := range ids {
			if b.ID == id {
				return true
			}
		}
		return false
	})
}

// AlignmentFilter matches aligned subjects whose alignment is one of ids.
func AlignmentFilter(ids ...AlignmentID) modifier.Filter {
	return modifier.FilterFunc(func(_ modifier.View, subject any) bool {
		a, ok := subject.(Aligned)
		if !ok {
			return false
		}
		ref := a.AlignmentRef()
		for _, id := range ids {
			if ref == id {
				return true
			}
		}
		return false
	})
}
