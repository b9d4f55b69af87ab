// Package modifier implements the effect stacking engine: a registry of
// additive and multiplicative modifiers per game quantity, and the fold that
// turns a base value into a final value.
package modifier

import (
	"github.com/shopspring/decimal"
)

// View is the read-only game state an amount or filter may consult.
// Implementations must not mutate state while answering.
type View interface {
	Trophies() decimal.Decimal
	BuildingProduction() decimal.Decimal
}

// Amount computes the value a modifier contributes for a subject.
// The subject is the entity being evaluated (a building, for production),
// or nil for quantities not tied to an entity.
type Amount interface {
	Amount(v View, subject any) decimal.Decimal
}

// Filter restricts a modifier to a subset of subjects.
type Filter interface {
	AppliesTo(v View, subject any) bool
}

// AmountFunc adapts a plain function to Amount.
type AmountFunc func(v View, subject any) decimal.Decimal

func (f AmountFunc) Amount(v View, subject any) decimal.Decimal { return f(v, subject) }

// FilterFunc adapts a plain function to Filter.
type FilterFunc func(v View, subject any) bool

func (f FilterFunc) AppliesTo(v View, subject any) bool { return f(v, subject) }

// Owner identifies the source that contributed a modifier. It is only used
// for identity and is never consulted for values.
type Owner interface {
	OwnerKey() string
}

// OwnerKey is a string Owner, used for baseline modifiers.
type OwnerKey string

func (k OwnerKey) OwnerKey() string { return string(k) }

// Modifier is a single effect. Values are immutable once built; copies share
// their Amount and Filter.
type Modifier struct {
	ID       string
	Strategy Strategy
	Target   Target
	Amount   Amount
	Filter   Filter
	Owner    Owner
}

// New builds a modifier that applies to every subject.
func New(id string, s Strategy, t Target, amount Amount) Modifier {
	return Modifier{ID: id, Strategy: s, Target: t, Amount: amount, Filter: Always()}
}

// NewAdditive is New(id, Additive, t, amount).
func NewAdditive(id string, t Target, amount Amount) Modifier {
	return New(id, Additive, t, amount)
}

// NewMultiplicative is New(id, Multiplicative, t, amount).
func NewMultiplicative(id string, t Target, amount Amount) Modifier {
	return New(id, Multiplicative, t, amount)
}

// When returns a copy restricted by f.
func (m Modifier) When(f Filter) Modifier {
	if f == nil {
		f = Always()
	}
	m.Filter = f
	return m
}

// WithOwner returns a copy tagged with o.
func (m Modifier) WithOwner(o Owner) Modifier {
	m.Owner = o
	return m
}

// Key is the registry identity of the modifier.
func (m Modifier) Key() Key {
	return Key{Strategy: m.Strategy, Target: m.Target, ID: m.ID}
}

func (m Modifier) appliesTo(v View, subject any) bool {
	if m.Filter == nil {
		return true
	}
	return m.Filter.AppliesTo(v, subject)
}

// Key indexes a modifier inside a Registry.
type Key struct {
	Strategy Strategy
	Target   Target
	ID       string
}

func (k Key) String() string {
	return k.Strategy.String() + "/" + k.Target.String() + "/" + k.ID
}
