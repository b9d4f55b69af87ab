// Package game holds the mutable player state: balances, owned buildings,
// purchased upgrades and the active modifier registry.
//
// A GameState is not safe for concurrent use. Wrap it in Locked when more
// than one goroutine needs it.
package game

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"rgsim.dev/internal/sim/catalogs"
	"rgsim.dev/internal/sim/modifier"
	"rgsim.dev/internal/sim/tuning"
)

var (
	ErrNegativeQuantity = errors.New("negative quantity")
	ErrModifierCycle    = errors.New("modifier cycle")
)

// Baseline modifier ids.
const (
	BaselineClick         = "default.click"
	BaselineMana          = "default.mana"
	BaselineManaRegen     = "default.manaRegen"
	BaselineHoLMultiplier = "default.holMultiplier"
)

const baselineOwner = modifier.OwnerKey("default")

type BuildingState struct {
	Building *catalogs.Building
	Owned    decimal.Decimal
}

type UpgradeState struct {
	Upgrade   *catalogs.Upgrade
	Purchased bool
}

type GameState struct {
	Mana        decimal.Decimal
	Gold        decimal.Decimal
	Gems        decimal.Decimal
	Trophies    decimal.Decimal
	Treasury    decimal.Decimal
	Excavations decimal.Decimal

	cats      *catalogs.Catalogs
	buildings map[catalogs.BuildingID]*BuildingState
	upgrades  map[catalogs.UpgradeID]*UpgradeState
	registry  *modifier.Registry

	// evaluating holds the targets currently being folded; cycle records the
	// first re-entry seen while the outermost evaluation runs.
	evaluating map[modifier.Target]bool
	cycle      error

	rec Recorder
}

// New builds a fresh state with one entry per catalog building and upgrade
// and the baseline modifiers registered.
func New(cats *catalogs.Catalogs, tune tuning.Tuning) (*GameState, error) {
	if cats == nil {
		return nil, errors.New("game: nil catalogs")
	}
	g := &GameState{
		Mana:        tune.StartingBalances.Mana,
		Gold:        tune.StartingBalances.Gold,
		Gems:        tune.StartingBalances.Gems,
		Trophies:    tune.StartingBalances.Trophies,
		Treasury:    tune.StartingBalances.Treasury,
		Excavations: tune.StartingBalances.Excavations,

		cats:       cats,
		buildings:  make(map[catalogs.BuildingID]*BuildingState, cats.Buildings.Len()),
		upgrades:   make(map[catalogs.UpgradeID]*UpgradeState, cats.Upgrades.Len()),
		registry:   modifier.NewRegistry(),
		evaluating: map[modifier.Target]bool{},
	}
	for _, b := range cats.Buildings.All() {
		g.buildings[b.ID] = &BuildingState{Building: b, Owned: decimal.Zero}
	}
	for _, u := range cats.Upgrades.All() {
		g.upgrades[u.ID] = &UpgradeState{Upgrade: u}
	}

	hol, err := cats.Buildings.Get(catalogs.BuildingID(tune.Baselines.TrophyBuilding))
	if err != nil {
		return nil, fmt.Errorf("game: trophy building: %w", err)
	}
	bl := tune.Baselines
	for _, m := range []modifier.Modifier{
		modifier.NewAdditive(BaselineClick, modifier.ClickReward, modifier.Fixed(bl.ClickReward)),
		modifier.NewAdditive(BaselineMana, modifier.MaxMana, modifier.Fixed(bl.MaxMana)),
		modifier.NewAdditive(BaselineManaRegen, modifier.ManaRegen, modifier.Fixed(bl.ManaRegen)),
		modifier.NewMultiplicative(BaselineHoLMultiplier, modifier.BuildingProduction, modifier.TrophyScaled(bl.TrophyFactor)).
			When(catalogs.BuildingFilter(hol.ID)),
	} {
		g.registry.Register(m.WithOwner(baselineOwner))
	}
	return g, nil
}

// Catalogs returns the definitions this state was built from.
func (g *GameState) Catalogs() *catalogs.Catalogs { return g.cats }

func (g *GameState) Building(id catalogs.BuildingID) (*BuildingState, error) {
	if bs, ok := g.buildings[id]; ok {
		return bs, nil
	}
	return nil, &catalogs.LookupError{Catalog: "building", Key: id}
}

func (g *GameState) Upgrade(id catalogs.UpgradeID) (*UpgradeState, error) {
	if us, ok := g.upgrades[id]; ok {
		return us, nil
	}
	return nil, &catalogs.LookupError{Catalog: "upgrade", Key: id}
}

// PurchaseBuilding adds qty to the owned count of building id.
func (g *GameState) PurchaseBuilding(id catalogs.BuildingID, qty decimal.Decimal) error {
	if qty.IsNegative() {
		return fmt.Errorf("purchase building %d: %w: %s", id, ErrNegativeQuantity, qty)
	}
	bs, err := g.Building(id)
	if err != nil {
		return err
	}
	bs.Owned = bs.Owned.Add(qty)
	g.record(Event{Kind: EventBuildingPurchased, Building: id, Quantity: qty})
	return nil
}

// PurchaseUpgrade marks upgrade id purchased and registers its effects.
// Purchasing an owned upgrade does nothing. When spendGold is set the cost is
// debited without an affordability check.
func (g *GameState) PurchaseUpgrade(id catalogs.UpgradeID, spendGold bool) error {
	us, err := g.Upgrade(id)
	if err != nil {
		return err
	}
	if g.purchase(us, spendGold) {
		g.record(Event{Kind: EventUpgradePurchased, Upgrade: id, Quantity: decimal.NewFromInt(1)})
	}
	return nil
}

// UnpurchaseUpgrade is the inverse of PurchaseUpgrade.
func (g *GameState) UnpurchaseUpgrade(id catalogs.UpgradeID, creditGold bool) error {
	us, err := g.Upgrade(id)
	if err != nil {
		return err
	}
	if g.unpurchase(us, creditGold) {
		g.record(Event{Kind: EventUpgradeUnpurchased, Upgrade: id, Quantity: decimal.NewFromInt(1)})
	}
	return nil
}

func (g *GameState) purchase(us *UpgradeState, spendGold bool) bool {
	if us.Purchased {
		return false
	}
	us.Purchased = true
	for _, m := range us.Upgrade.Effects {
		g.registry.Register(m)
	}
	if spendGold {
		g.Gold = g.Gold.Sub(us.Upgrade.Cost)
	}
	return true
}

func (g *GameState) unpurchase(us *UpgradeState, creditGold bool) bool {
	if !us.Purchased {
		return false
	}
	us.Purchased = false
	for _, m := range us.Upgrade.Effects {
		g.registry.Deregister(m)
	}
	if creditGold {
		g.Gold = g.Gold.Add(us.Upgrade.Cost)
	}
	return true
}

func (g *GameState) RegisterModifier(m modifier.Modifier)   { g.registry.Register(m) }
func (g *GameState) DeregisterModifier(m modifier.Modifier) { g.registry.Deregister(m) }

// ActiveModifiers returns the keys of every registered modifier, sorted.
func (g *GameState) ActiveModifiers() []modifier.Key { return g.registry.Keys() }

// PurchasedUpgrades returns the ids of purchased upgrades in catalog order.
func (g *GameState) PurchasedUpgrades() []catalogs.UpgradeID {
	var out []catalogs.UpgradeID
	for _, u := range g.cats.Upgrades.All() {
		if g.upgrades[u.ID].Purchased {
			out = append(out, u.ID)
		}
	}
	return out
}
