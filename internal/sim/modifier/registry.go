package modifier

import (
	"sort"

	"github.com/shopspring/decimal"
)

type bucketKey struct {
	strategy Strategy
	target   Target
}

// bucket keeps modifiers for one (strategy, target) pair in registration
// order. Replacing an id keeps its original slot.
type bucket struct {
	order []string
	byID  map[string]Modifier
}

// Registry holds the active modifiers. The zero value is not usable; call
// NewRegistry.
type Registry struct {
	buckets map[bucketKey]*bucket
	n       int
}

func NewRegistry() *Registry {
	return &Registry{buckets: map[bucketKey]*bucket{}}
}

// Register inserts m, replacing any modifier with the same key.
func (r *Registry) Register(m Modifier) {
	bk := bucketKey{strategy: m.Strategy, target: m.Target}
	b := r.buckets[bk]
	if b == nil {
		b = &bucket{byID: map[string]Modifier{}}
		r.buckets[bk] = b
	}
	if _, ok := b.byID[m.ID]; !ok {
		b.order = append(b.order, m.ID)
		r.n++
	}
	b.byID[m.ID] = m
}

// Deregister removes the modifier with m's key. Absent keys are ignored.
func (r *Registry) Deregister(m Modifier) {
	b := r.buckets[bucketKey{strategy: m.Strategy, target: m.Target}]
	if b == nil {
		return
	}
	if _, ok := b.byID[m.ID]; !ok {
		return
	}
	delete(b.byID, m.ID)
	for i, id := range b.order {
		if id == m.ID {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	r.n--
}

// Lookup returns the modifier registered under k.
func (r *Registry) Lookup(k Key) (Modifier, bool) {
	b := r.buckets[bucketKey{strategy: k.Strategy, target: k.Target}]
	if b == nil {
		return Modifier{}, false
	}
	m, ok := b.byID[k.ID]
	return m, ok
}

// Len is the number of active modifiers.
func (r *Registry) Len() int { return r.n }

// Active returns the modifiers for (s, t) in registration order.
func (r *Registry) Active(s Strategy, t Target) []Modifier {
	b := r.buckets[bucketKey{strategy: s, target: t}]
	if b == nil {
		return nil
	}
	out := make([]Modifier, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.byID[id])
	}
	return out
}

// Keys returns every active key, sorted.
func (r *Registry) Keys() []Key {
	out := make([]Key, 0, r.n)
	for bk, b := range r.buckets {
		for _, id := range b.order {
			out = append(out, Key{Strategy: bk.strategy, Target: bk.target, ID: id})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Strategy != out[j].Strategy {
			return out[i].Strategy < out[j].Strategy
		}
		if out[i].Target != out[j].Target {
			return out[i].Target < out[j].Target
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Evaluate folds the active modifiers for t over base: every applicable
// additive amount is summed first, then the total is multiplied by every
// applicable multiplicative amount.
func (r *Registry) Evaluate(v View, subject any, t Target, base decimal.Decimal) decimal.Decimal {
	result := base
	if b := r.buckets[bucketKey{strategy: Additive, target: t}]; b != nil {
		for _, id := range b.order {
			m := b.byID[id]
			if m.appliesTo(v, subject) {
				result = result.Add(m.Amount.Amount(v, subject))
			}
		}
	}
	if b := r.buckets[bucketKey{strategy: Multiplicative, target: t}]; b != nil {
		for _, id := range b.order {
			m := b.byID[id]
			if m.appliesTo(v, subject) {
				result = result.Mul(m.Amount.Amount(v, subject))
			}
		}
	}
	return result
}
