package game

import (
	"sync"

	"github.com/shopspring/decimal"

	"rgsim.dev/internal/persistence/savefile"
	"rgsim.dev/internal/persistence/snapshot"
	"rgsim.dev/internal/sim/catalogs"
	"rgsim.dev/internal/sim/modifier"
)

// Locked guards a GameState with one mutex. Balances, building and upgrade
// tables and the registry form a single lock domain: production reads all of
// them at once.
type Locked struct {
	mu sync.Mutex
	g  *GameState
}

func NewLocked(g *GameState) *Locked { return &Locked{g: g} }

// Do runs fn with the lock held. fn must not retain g.
func (l *Locked) Do(fn func(g *GameState) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(l.g)
}

func (l *Locked) PurchaseBuilding(id catalogs.BuildingID, qty decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.g.PurchaseBuilding(id, qty)
}

func (l *Locked) PurchaseUpgrade(id catalogs.UpgradeID, spendGold bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.g.PurchaseUpgrade(id, spendGold)
}

func (l *Locked) UnpurchaseUpgrade(id catalogs.UpgradeID, creditGold bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.g.UnpurchaseUpgrade(id, creditGold)
}

func (l *Locked) RegisterModifier(m modifier.Modifier) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.g.RegisterModifier(m)
}

func (l *Locked) DeregisterModifier(m modifier.Modifier) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.g.DeregisterModifier(m)
}

func (l *Locked) CalculateBuildingProduction() (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.g.CalculateBuildingProduction()
}

func (l *Locked) Evaluate(subject any, target modifier.Target, base decimal.Decimal) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.g.Evaluate(subject, target, base)
}

func (l *Locked) ImportSave(s *savefile.Save) (ImportReport, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.g.ImportSave(s)
}

func (l *Locked) Snapshot() snapshot.SnapshotV1 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.g.Snapshot()
}

func (l *Locked) Restore(snap snapshot.SnapshotV1) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.g.Restore(snap)
}
