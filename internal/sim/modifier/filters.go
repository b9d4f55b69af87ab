package modifier

type always struct{}

func (always) AppliesTo(View, any) bool { return true }

// Always matches every subject.
func Always() Filter { return always{} }

// Not inverts f.
func Not(f Filter) Filter {
	return FilterFunc(func(v View, subject any) bool {
		return !f.AppliesTo(v, subject)
	})
}

// AnyOf matches when at least one of fs matches. An empty AnyOf matches nothing.
func AnyOf(fs ...Filter) Filter {
	return FilterFunc(func(v View, subject any) bool {
		for _, f := range fs {
			if f.AppliesTo(v, subject) {
				return true
			}
		}
		return false
	})
}

// AllOf matches when every one of fs matches. An empty AllOf matches everything.
func AllOf(fs ...Filter) Filter {
	return FilterFunc(func(v View, subject any) bool {
		for _, f := range fs {
			if !f.AppliesTo(v, subject) {
				return false
			}
		}
		return true
	})
}
