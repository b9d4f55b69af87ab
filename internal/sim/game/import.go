package game

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"rgsim.dev/internal/persistence/savefile"
	"rgsim.dev/internal/sim/catalogs"
)

// ImportReport lists save entries that had no catalog counterpart.
type ImportReport struct {
	UnknownBuildings []uint32
	UnknownUpgrades  []uint32
}

// ImportSave replaces owned counts, purchased flags and balances with the
// values of a decoded save:
//
//	building current_quantity  -> owned
//	upgrade with any flag set  -> purchased (effects registered, no gold moved)
//	current game mana/coins    -> Mana/Gold
//	current game gems          -> Gems
//	current game excavations   -> Excavations
//	trophy records with U1 set -> Trophies
//
// Treasury is kept. Nothing is changed if an error is returned. A single
// save_imported event is recorded; per-upgrade changes are not.
func (g *GameState) ImportSave(s *savefile.Save) (ImportReport, error) {
	var rep ImportReport
	cg := s.CurrentGame
	bal := map[string]float64{
		"mana":        cg.Mana,
		"coins":       cg.Coins,
		"gems":        cg.Gems,
		"excavations": cg.Excavations,
	}
	for name, v := range bal {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return rep, fmt.Errorf("import save: %s is not finite", name)
		}
	}

	owned := make(map[catalogs.BuildingID]decimal.Decimal, len(s.Buildings))
	for _, b := range s.Buildings {
		id := catalogs.BuildingID(b.ID)
		if _, ok := g.buildings[id]; !ok {
			rep.UnknownBuildings = append(rep.UnknownBuildings, b.ID)
			continue
		}
		owned[id] = decimal.NewFromInt(int64(b.CurrentQuantity))
	}
	purchased := make(map[catalogs.UpgradeID]bool, len(s.Upgrades))
	for _, u := range s.Upgrades {
		id := catalogs.UpgradeID(u.ID)
		if _, ok := g.upgrades[id]; !ok {
			rep.UnknownUpgrades = append(rep.UnknownUpgrades, u.ID)
			continue
		}
		purchased[id] = purchased[id] || u.Owned()
	}
	var trophies int64
	for _, t := range s.Trophies {
		if t.U1 {
			trophies++
		}
	}

	for id, bs := range g.buildings {
		if q, ok := owned[id]; ok {
			bs.Owned = q
		} else {
			bs.Owned = decimal.Zero
		}
	}
	for _, u := range g.cats.Upgrades.All() {
		us := g.upgrades[u.ID]
		if purchased[u.ID] {
			g.purchase(us, false)
		} else {
			g.unpurchase(us, false)
		}
	}
	g.Mana = decimal.NewFromFloat(cg.Mana)
	g.Gold = decimal.NewFromFloat(cg.Coins)
	g.Gems = decimal.NewFromFloat(cg.Gems)
	g.Excavations = decimal.NewFromFloat(cg.Excavations)
	g.Trophies = decimal.NewFromInt(trophies)
	g.record(Event{Kind: EventSaveImported, Quantity: decimal.NewFromInt(int64(len(owned)))})
	return rep, nil
}
