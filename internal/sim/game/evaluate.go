package game

import (
	"fmt"

	"github.com/shopspring/decimal"

	"rgsim.dev/internal/sim/modifier"
)

// view exposes the read side of a GameState to amounts and filters.
type view struct{ g *GameState }

func (v view) Trophies() decimal.Decimal { return v.g.Trophies }

func (v view) BuildingProduction() decimal.Decimal {
	// Errors are recorded on the state by evaluate and surface from the
	// outermost call.
	p, err := v.g.buildingProduction()
	if err != nil {
		return decimal.Zero
	}
	return p
}

// Evaluate folds the active modifiers for target over base, with subject as
// the entity being evaluated (a *catalogs.Building for production, nil
// otherwise). An amount that re-enters evaluation of a target already being
// folded aborts with ErrModifierCycle.
func (g *GameState) Evaluate(subject any, target modifier.Target, base decimal.Decimal) (decimal.Decimal, error) {
	outer := len(g.evaluating) == 0
	if outer {
		g.cycle = nil
	}
	v, err := g.evaluate(subject, target, base)
	if outer {
		if err == nil {
			err = g.cycle
		}
		g.cycle = nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return v, nil
}

func (g *GameState) evaluate(subject any, target modifier.Target, base decimal.Decimal) (decimal.Decimal, error) {
	if g.evaluating[target] {
		err := fmt.Errorf("%w: %s re-entered", ErrModifierCycle, target)
		if g.cycle == nil {
			g.cycle = err
		}
		return decimal.Zero, err
	}
	g.evaluating[target] = true
	defer delete(g.evaluating, target)

	r := g.registry.Evaluate(view{g: g}, subject, target, base)
	if g.cycle != nil {
		return decimal.Zero, g.cycle
	}
	return r, nil
}

// CalculateBuildingProduction sums owned times evaluated base production over
// every building with a non-zero owned count.
func (g *GameState) CalculateBuildingProduction() (decimal.Decimal, error) {
	outer := len(g.evaluating) == 0
	if outer {
		g.cycle = nil
	}
	p, err := g.buildingProduction()
	if outer {
		if err == nil {
			err = g.cycle
		}
		g.cycle = nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return p, nil
}

func (g *GameState) buildingProduction() (decimal.Decimal, error) {
	total := decimal.Zero
	for _, b := range g.cats.Buildings.All() {
		bs := g.buildings[b.ID]
		if bs.Owned.IsZero() {
			continue
		}
		per, err := g.evaluate(b, modifier.BuildingProduction, b.BaseProduction)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(bs.Owned.Mul(per))
	}
	return total, nil
}

// BuildingOutput is the per-unit production of one building.
func (g *GameState) BuildingOutput(bs *BuildingState) (decimal.Decimal, error) {
	return g.Evaluate(bs.Building, modifier.BuildingProduction, bs.Building.BaseProduction)
}

func (g *GameState) quantity(t modifier.Target) (decimal.Decimal, error) {
	return g.Evaluate(nil, t, decimal.Zero)
}

func (g *GameState) ClickReward() (decimal.Decimal, error) { return g.quantity(modifier.ClickReward) }
func (g *GameState) MaxMana() (decimal.Decimal, error)     { return g.quantity(modifier.MaxMana) }
func (g *GameState) ManaRegen() (decimal.Decimal, error)   { return g.quantity(modifier.ManaRegen) }
func (g *GameState) Assistants() (decimal.Decimal, error)  { return g.quantity(modifier.Assistants) }

func (g *GameState) OfflineClicksPerSecond() (decimal.Decimal, error) {
	return g.quantity(modifier.OfflineClicksPerSecond)
}
