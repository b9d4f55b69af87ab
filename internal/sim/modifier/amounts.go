package modifier

import "github.com/shopspring/decimal"

var hundredth = decimal.New(1, -2)

type fixedAmount struct{ v decimal.Decimal }

// Fixed always contributes v.
func Fixed(v decimal.Decimal) Amount { return fixedAmount{v: v} }

// FixedInt is Fixed(decimal.NewFromInt(v)).
func FixedInt(v int64) Amount { return fixedAmount{v: decimal.NewFromInt(v)} }

func (a fixedAmount) Amount(View, any) decimal.Decimal { return a.v }

type percentOfProduction struct{ pct decimal.Decimal }

// PercentOfProduction contributes pct percent of the current total building
// production. It must not be attached to BuildingProduction itself.
func PercentOfProduction(pct decimal.Decimal) Amount { return percentOfProduction{pct: pct} }

func (a percentOfProduction) Amount(v View, _ any) decimal.Decimal {
	return v.BuildingProduction().Mul(a.pct).Mul(hundredth)
}

type trophyScaled struct{ factor decimal.Decimal }

// TrophyScaled contributes the player's trophy count times factor.
func TrophyScaled(factor decimal.Decimal) Amount { return trophyScaled{factor: factor} }

func (a trophyScaled) Amount(v View, _ any) decimal.Decimal {
	return v.Trophies().Mul(a.factor)
}
