package game

import (
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/shopspring/decimal"

	"rgsim.dev/internal/persistence/snapshot"
	"rgsim.dev/internal/sim/catalogs"
)

var ErrCatalogMismatch = errors.New("snapshot catalogs differ")

// Snapshot captures balances, owned counts and purchased upgrades. Modifiers
// registered directly through RegisterModifier are not part of it.
func (g *GameState) Snapshot() snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version:        snapshot.Version,
			TakenAt:        time.Now().UTC(),
			CatalogDigests: g.cats.Digests(),
		},
		Mana:        g.Mana,
		Gold:        g.Gold,
		Gems:        g.Gems,
		Trophies:    g.Trophies,
		Treasury:    g.Treasury,
		Excavations: g.Excavations,
	}
	for _, b := range g.cats.Buildings.All() {
		if owned := g.buildings[b.ID].Owned; !owned.IsZero() {
			snap.Buildings = append(snap.Buildings, snapshot.BuildingV1{ID: uint32(b.ID), Owned: owned})
		}
	}
	for _, id := range g.PurchasedUpgrades() {
		snap.Upgrades = append(snap.Upgrades, uint32(id))
	}
	return snap
}

// Restore replaces balances, owned counts and purchases with those of snap.
// The snapshot must have been taken against the same catalog files. Nothing
// is changed if an error is returned.
func (g *GameState) Restore(snap snapshot.SnapshotV1) error {
	if snap.Header.Version != snapshot.Version {
		return fmt.Errorf("restore: %w: %d", snapshot.ErrVersion, snap.Header.Version)
	}
	if !maps.Equal(snap.Header.CatalogDigests, g.cats.Digests()) {
		return fmt.Errorf("restore: %w", ErrCatalogMismatch)
	}
	owned := make(map[catalogs.BuildingID]decimal.Decimal, len(snap.Buildings))
	for _, b := range snap.Buildings {
		id := catalogs.BuildingID(b.ID)
		if _, err := g.Building(id); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		if b.Owned.IsNegative() {
			return fmt.Errorf("restore building %d: %w: %s", id, ErrNegativeQuantity, b.Owned)
		}
		owned[id] = b.Owned
	}
	purchased := make(map[catalogs.UpgradeID]bool, len(snap.Upgrades))
	for _, raw := range snap.Upgrades {
		id := catalogs.UpgradeID(raw)
		if _, err := g.Upgrade(id); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		purchased[id] = true
	}

	for id, bs := range g.buildings {
		bs.Owned = decimal.Zero
		if q, ok := owned[id]; ok {
			bs.Owned = q
		}
	}
	for _, u := range g.cats.Upgrades.All() {
		if purchased[u.ID] {
			g.purchase(g.upgrades[u.ID], false)
		} else {
			g.unpurchase(g.upgrades[u.ID], false)
		}
	}
	g.Mana = snap.Mana
	g.Gold = snap.Gold
	g.Gems = snap.Gems
	g.Trophies = snap.Trophies
	g.Treasury = snap.Treasury
	g.Excavations = snap.Excavations
	return nil
}
