package game

import (
	"github.com/shopspring/decimal"

	"rgsim.dev/internal/sim/catalogs"
)

type EventKind string

const (
	EventBuildingPurchased  EventKind = "building_purchased"
	EventUpgradePurchased   EventKind = "upgrade_purchased"
	EventUpgradeUnpurchased EventKind = "upgrade_unpurchased"
	EventSaveImported       EventKind = "save_imported"
)

// Event describes one state change. Gold is the balance after the change.
// For save_imported, Quantity is the number of buildings taken from the save.
type Event struct {
	Kind     EventKind           `json:"kind"`
	Building catalogs.BuildingID `json:"building,omitempty"`
	Upgrade  catalogs.UpgradeID  `json:"upgrade,omitempty"`
	Quantity decimal.Decimal     `json:"quantity"`
	Gold     decimal.Decimal     `json:"gold"`
}

// Recorder receives state changes as they are applied. Record is called with
// the state's lock held (when wrapped in Locked) and must not call back into
// the state.
type Recorder interface {
	Record(Event)
}

// SetRecorder installs r; nil disables recording. Idempotent purchases and
// failed operations are not recorded.
func (g *GameState) SetRecorder(r Recorder) { g.rec = r }

func (g *GameState) record(ev Event) {
	if g.rec == nil {
		return
	}
	ev.Gold = g.Gold
	g.rec.Record(ev)
}
