// Package savefile reads and writes the game's textual save blob: a framed,
// base64 encoded, DEFLATE compressed, XOR enciphered stream of fixed-layout
// big-endian records.
//
// Field names follow the layout recovered from the game client. Only the byte
// layout and types are specified; meanings beyond that are not assumed.
package savefile

import (
	"sort"
)

// Record sizes in bytes.
const (
	HeaderSize        = 28
	BuildingSize      = 88
	UpgradeSize       = 11
	TrophySize        = 6
	ArtifactSize      = 4
	SpellSize         = 78
	CurrentGameSize   = 53
	FactionCoinSize   = 12
	EventResourceSize = 8
	StatisticSize     = 24
	LineageSize       = 8

	countSize = 2
)

type Header struct {
	SaveVersion       uint16
	Reserved          uint16
	PlayFabSeason     uint16
	SeasonNumber      uint16
	HalloweenMonsters uint16
	BreathEffects     uint16
	EggRNGState       uint32
	EggStackSize      uint16
	CTAFactionCasts   uint16
	AlignmentIndex    uint32
	ChecksumIndex     uint32
}

type Building struct {
	ID              uint32
	CurrentQuantity uint32
	RBuilt          float64
	RMaxBuilt       float64
	TBuilt          float64
	TMaxBuilt       float64
	Reserved        [6]float64
}

type Upgrade struct {
	ID       uint32
	U1       bool
	U2       bool
	U3       bool
	RNGState uint32
}

// Owned reports whether any of the upgrade's flags is set.
func (u Upgrade) Owned() bool { return u.U1 || u.U2 || u.U3 }

type Trophy struct {
	ID uint32
	U1 bool
	U2 uint8
}

type Spell struct {
	ID                          uint32
	ActiveTicks                 int32
	Autocast                    bool
	PrimaryAutocastPriority     int32
	SecondaryAutocastPriority   int32
	IndependentAutocastPriority int32
	Tiers                       int32
	ActiveTiers                 int8
	Casts                       float64
	RCasts                      float64
	TCasts                      float64
	TimeActive                  float64
	RTimeActive                 float64
	TTimeActive                 float64
	SpellRNGState               uint32
}

type CurrentGame struct {
	Alignment            int8
	Faction              int8
	PrestigeFaction      int8
	ElitePrestigeFaction int8
	Gems                 float64
	Reincarnation        uint16
	Ascension            uint16
	SecondaryAlignment   int8
	LastSave             uint32
	Mana                 float64
	Coins                float64
	Rubies               float64
	Excavations          float64
}

type FactionCoin struct {
	Coins     float64
	Exchanges uint32
}

type EventResource struct {
	Resource float64
}

type Statistic struct {
	Stat  float64
	RStat float64
	TStat float64
}

type Lineage struct {
	Level float64
}

// Save is one decoded save, sections in wire order.
type Save struct {
	Header           Header
	Buildings        []Building
	Upgrades         []Upgrade
	Trophies         []Trophy
	ArtifactRNGState uint32
	Spells           []Spell
	CurrentGame      CurrentGame
	FactionCoins     []FactionCoin
	EventResources   []EventResource
	Statistics       []Statistic
	Lineages         []Lineage

	// Trailing holds bytes found after the last lineage record. They are
	// written back verbatim on encode.
	Trailing []byte
}

// Warnings lists non-fatal anomalies found while decoding.
func (s *Save) Warnings() []error {
	if len(s.Trailing) == 0 {
		return nil
	}
	return []error{&TrailingDataWarning{Bytes: len(s.Trailing)}}
}

// OwnedUpgrades returns the ids of upgrade records with any flag set, sorted.
func (s *Save) OwnedUpgrades() []uint32 {
	var ids []uint32
	for _, u := range s.Upgrades {
		if u.Owned() {
			ids = append(ids, u.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
