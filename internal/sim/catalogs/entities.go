package catalogs

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"rgsim.dev/internal/sim/modifier"
)

// Ids are the game's own numbering and are stable across runs.
type (
	BuildingID  uint32
	UpgradeID   uint32
	AlignmentID uint8
	FactionID   int8
)

type AlignmentType string

const (
	AlignmentTypeNone      AlignmentType = "none"
	AlignmentTypePrimary   AlignmentType = "primary"
	AlignmentTypeSecondary AlignmentType = "secondary"
)

type Alignment struct {
	ID   AlignmentID
	Key  string
	Name string
	Type AlignmentType
}

func (a *Alignment) IsPrimary() bool   { return a.Type == AlignmentTypePrimary }
func (a *Alignment) IsSecondary() bool { return a.Type == AlignmentTypeSecondary }

type FactionType string

const (
	FactionTypeNone     FactionType = "none"
	FactionTypeBase     FactionType = "base"
	FactionTypePrestige FactionType = "prestige"
	FactionTypeElite    FactionType = "elite"
)

type Faction struct {
	ID        FactionID
	Key       string
	Name      string
	Type      FactionType
	Alignment AlignmentID
}

func (f *Faction) IsBase() bool     { return f.Type == FactionTypeBase }
func (f *Faction) IsPrestige() bool { return f.Type == FactionTypePrestige }
func (f *Faction) IsElite() bool    { return f.Type == FactionTypeElite }

func (f *Faction) AlignmentRef() AlignmentID { return f.Alignment }

type Building struct {
	ID             BuildingID
	Key            string
	Name           string
	Tier           int
	Alignment      AlignmentID
	BaseProduction decimal.Decimal
	BasePrice      decimal.Decimal
}

func (b *Building) AlignmentRef() AlignmentID { return b.Alignment }

// Upgrade is a purchasable effect bundle. Effects are owner-tagged copies
// made once at load time.
type Upgrade struct {
	ID      UpgradeID
	Key     string
	Name    string
	Cost    decimal.Decimal
	Effects []modifier.Modifier
}

func (u *Upgrade) OwnerKey() string { return "upgrade." + strconv.FormatUint(uint64(u.ID), 10) }

// displayName turns an upper-snake key into words unless an override is set.
func displayName(key, override string) string {
	if override != "" {
		return override
	}
	return cases.Title(language.English).String(strings.ToLower(strings.ReplaceAll(key, "_", " ")))
}
