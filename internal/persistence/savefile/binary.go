package savefile

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Section names used in errors.
const (
	sectionHeader         = "header"
	sectionBuildings      = "buildings"
	sectionUpgrades       = "upgrades"
	sectionTrophies       = "trophies"
	sectionArtifact       = "artifact rng state"
	sectionSpells         = "spells"
	sectionCurrentGame    = "current game"
	sectionFactionCoins   = "faction coins"
	sectionEventResources = "event resources"
	sectionStatistics     = "statistics"
	sectionLineages       = "lineages"
)

type reader struct {
	b   []byte
	off int
}

func (r *reader) take(section string, index, n int) (*fields, error) {
	if have := len(r.b) - r.off; have < n {
		return nil, &TruncatedRecordError{Section: section, Index: index, Need: n, Have: have}
	}
	p := r.b[r.off : r.off+n]
	r.off += n
	return &fields{p: p}, nil
}

func (r *reader) count(section string) (int, error) {
	f, err := r.take(section+" count", -1, countSize)
	if err != nil {
		return 0, err
	}
	return int(f.u16()), nil
}

// fields walks one record that is known to be long enough.
type fields struct{ p []byte }

func (f *fields) u8() uint8 {
	v := f.p[0]
	f.p = f.p[1:]
	return v
}

func (f *fields) i8() int8   { return int8(f.u8()) }
func (f *fields) flag() bool { return f.u8() != 0 }

func (f *fields) u16() uint16 {
	v := binary.BigEndian.Uint16(f.p)
	f.p = f.p[2:]
	return v
}

func (f *fields) u32() uint32 {
	v := binary.BigEndian.Uint32(f.p)
	f.p = f.p[4:]
	return v
}

func (f *fields) i32() int32 { return int32(f.u32()) }

func (f *fields) f64() float64 {
	v := binary.BigEndian.Uint64(f.p)
	f.p = f.p[8:]
	return math.Float64frombits(v)
}

func readMany[T any](r *reader, section string, size int, dec func(*fields) T) ([]T, error) {
	n, err := r.count(section)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]T, 0, n)
	for i := 0; i < n; i++ {
		f, err := r.take(section, i, size)
		if err != nil {
			return nil, err
		}
		out = append(out, dec(f))
	}
	return out, nil
}

type writer struct{ b []byte }

func (w *writer) u8(v uint8) { w.b = append(w.b, v) }
func (w *writer) i8(v int8)  { w.u8(uint8(v)) }

func (w *writer) flag(v bool) {
	if v {
		w.u8(1)
		return
	}
	w.u8(0)
}

func (w *writer) u16(v uint16)  { w.b = binary.BigEndian.AppendUint16(w.b, v) }
func (w *writer) u32(v uint32)  { w.b = binary.BigEndian.AppendUint32(w.b, v) }
func (w *writer) i32(v int32)   { w.u32(uint32(v)) }
func (w *writer) f64(v float64) { w.b = binary.BigEndian.AppendUint64(w.b, math.Float64bits(v)) }

func writeMany[T any](w *writer, section string, recs []T, enc func(*writer, T)) error {
	if len(recs) > math.MaxUint16 {
		return fmt.Errorf("%s: %w: %d", section, ErrTooManyRecords, len(recs))
	}
	w.u16(uint16(len(recs)))
	for _, rec := range recs {
		enc(w, rec)
	}
	return nil
}

func decodeHeader(f *fields) Header {
	return Header{
		SaveVersion:       f.u16(),
		Reserved:          f.u16(),
		PlayFabSeason:     f.u16(),
		SeasonNumber:      f.u16(),
		HalloweenMonsters: f.u16(),
		BreathEffects:     f.u16(),
		EggRNGState:       f.u32(),
		EggStackSize:      f.u16(),
		CTAFactionCasts:   f.u16(),
		AlignmentIndex:    f.u32(),
		ChecksumIndex:     f.u32(),
	}
}

func encodeHeader(w *writer, h Header) {
	w.u16(h.SaveVersion)
	w.u16(h.Reserved)
	w.u16(h.PlayFabSeason)
	w.u16(h.SeasonNumber)
	w.u16(h.HalloweenMonsters)
	w.u16(h.BreathEffects)
	w.u32(h.EggRNGState)
	w.u16(h.EggStackSize)
	w.u16(h.CTAFactionCasts)
	w.u32(h.AlignmentIndex)
	w.u32(h.ChecksumIndex)
}

func decodeBuilding(f *fields) Building {
	b := Building{
		ID:              f.u32(),
		CurrentQuantity: f.u32(),
		RBuilt:          f.f64(),
		RMaxBuilt:       f.f64(),
		TBuilt:          f.f64(),
		TMaxBuilt:       f.f64(),
	}
	for i := range b.Reserved {
		b.Reserved[i] = f.f64()
	}
	return b
}

func encodeBuilding(w *writer, b Building) {
	w.u32(b.ID)
	w.u32(b.CurrentQuantity)
	w.f64(b.RBuilt)
	w.f64(b.RMaxBuilt)
	w.f64(b.TBuilt)
	w.f64(b.TMaxBuilt)
	for _, v := range b.Reserved {
		w.f64(v)
	}
}

func decodeUpgrade(f *fields) Upgrade {
	return Upgrade{ID: f.u32(), U1: f.flag(), U2: f.flag(), U3: f.flag(), RNGState: f.u32()}
}

func encodeUpgrade(w *writer, u Upgrade) {
	w.u32(u.ID)
	w.flag(u.U1)
	w.flag(u.U2)
	w.flag(u.U3)
	w.u32(u.RNGState)
}

func decodeTrophy(f *fields) Trophy {
	return Trophy{ID: f.u32(), U1: f.flag(), U2: f.u8()}
}

func encodeTrophy(w *writer, t Trophy) {
	w.u32(t.ID)
	w.flag(t.U1)
	w.u8(t.U2)
}

func decodeSpell(f *fields) Spell {
	return Spell{
		ID:                          f.u32(),
		ActiveTicks:                 f.i32(),
		Autocast:                    f.flag(),
		PrimaryAutocastPriority:     f.i32(),
		SecondaryAutocastPriority:   f.i32(),
		IndependentAutocastPriority: f.i32(),
		Tiers:                       f.i32(),
		ActiveTiers:                 f.i8(),
		Casts:                       f.f64(),
		RCasts:                      f.f64(),
		TCasts:                      f.f64(),
		TimeActive:                  f.f64(),
		RTimeActive:                 f.f64(),
		TTimeActive:                 f.f64(),
		SpellRNGState:               f.u32(),
	}
}

func encodeSpell(w *writer, s Spell) {
	w.u32(s.ID)
	w.i32(s.ActiveTicks)
	w.flag(s.Autocast)
	w.i32(s.PrimaryAutocastPriority)
	w.i32(s.SecondaryAutocastPriority)
	w.i32(s.IndependentAutocastPriority)
	w.i32(s.Tiers)
	w.i8(s.ActiveTiers)
	w.f64(s.Casts)
	w.f64(s.RCasts)
	w.f64(s.TCasts)
	w.f64(s.TimeActive)
	w.f64(s.RTimeActive)
	w.f64(s.TTimeActive)
	w.u32(s.SpellRNGState)
}

func decodeCurrentGame(f *fields) CurrentGame {
	return CurrentGame{
		Alignment:            f.i8(),
		Faction:              f.i8(),
		PrestigeFaction:      f.i8(),
		ElitePrestigeFaction: f.i8(),
		Gems:                 f.f64(),
		Reincarnation:        f.u16(),
		Ascension:            f.u16(),
		SecondaryAlignment:   f.i8(),
		LastSave:             f.u32(),
		Mana:                 f.f64(),
		Coins:                f.f64(),
		Rubies:               f.f64(),
		Excavations:          f.f64(),
	}
}

func encodeCurrentGame(w *writer, c CurrentGame) {
	w.i8(c.Alignment)
	w.i8(c.Faction)
	w.i8(c.PrestigeFaction)
	w.i8(c.ElitePrestigeFaction)
	w.f64(c.Gems)
	w.u16(c.Reincarnation)
	w.u16(c.Ascension)
	w.i8(c.SecondaryAlignment)
	w.u32(c.LastSave)
	w.f64(c.Mana)
	w.f64(c.Coins)
	w.f64(c.Rubies)
	w.f64(c.Excavations)
}

func decodeFactionCoin(f *fields) FactionCoin {
	return FactionCoin{Coins: f.f64(), Exchanges: f.u32()}
}

func encodeFactionCoin(w *writer, c FactionCoin) {
	w.f64(c.Coins)
	w.u32(c.Exchanges)
}

func decodeEventResource(f *fields) EventResource { return EventResource{Resource: f.f64()} }
func encodeEventResource(w *writer, e EventResource) { w.f64(e.Resource) }

func decodeStatistic(f *fields) Statistic {
	return Statistic{Stat: f.f64(), RStat: f.f64(), TStat: f.f64()}
}

func encodeStatistic(w *writer, s Statistic) {
	w.f64(s.Stat)
	w.f64(s.RStat)
	w.f64(s.TStat)
}

func decodeLineage(f *fields) Lineage    { return Lineage{Level: f.f64()} }
func encodeLineage(w *writer, l Lineage) { w.f64(l.Level) }

// UnmarshalBinary parses a deciphered record stream into s. On error s is
// left unchanged.
func (s *Save) UnmarshalBinary(data []byte) error {
	r := &reader{b: data}
	var out Save

	f, err := r.take(sectionHeader, -1, HeaderSize)
	if err != nil {
		return err
	}
	out.Header = decodeHeader(f)

	if out.Buildings, err = readMany(r, sectionBuildings, BuildingSize, decodeBuilding); err != nil {
		return err
	}
	if out.Upgrades, err = readMany(r, sectionUpgrades, UpgradeSize, decodeUpgrade); err != nil {
		return err
	}
	if out.Trophies, err = readMany(r, sectionTrophies, TrophySize, decodeTrophy); err != nil {
		return err
	}
	if f, err = r.take(sectionArtifact, -1, ArtifactSize); err != nil {
		return err
	}
	out.ArtifactRNGState = f.u32()
	if out.Spells, err = readMany(r, sectionSpells, SpellSize, decodeSpell); err != nil {
		return err
	}
	if f, err = r.take(sectionCurrentGame, -1, CurrentGameSize); err != nil {
		return err
	}
	out.CurrentGame = decodeCurrentGame(f)
	if out.FactionCoins, err = readMany(r, sectionFactionCoins, FactionCoinSize, decodeFactionCoin); err != nil {
		return err
	}
	if out.EventResources, err = readMany(r, sectionEventResources, EventResourceSize, decodeEventResource); err != nil {
		return err
	}
	if out.Statistics, err = readMany(r, sectionStatistics, StatisticSize, decodeStatistic); err != nil {
		return err
	}
	if out.Lineages, err = readMany(r, sectionLineages, LineageSize, decodeLineage); err != nil {
		return err
	}
	if r.off < len(r.b) {
		out.Trailing = append([]byte(nil), r.b[r.off:]...)
	}
	*s = out
	return nil
}

// MarshalBinary writes s in wire order, before enciphering.
func (s *Save) MarshalBinary() ([]byte, error) {
	w := &writer{b: make([]byte, 0, s.size())}
	encodeHeader(w, s.Header)
	if err := writeMany(w, sectionBuildings, s.Buildings, encodeBuilding); err != nil {
		return nil, err
	}
	if err := writeMany(w, sectionUpgrades, s.Upgrades, encodeUpgrade); err != nil {
		return nil, err
	}
	if err := writeMany(w, sectionTrophies, s.Trophies, encodeTrophy); err != nil {
		return nil, err
	}
	w.u32(s.ArtifactRNGState)
	if err := writeMany(w, sectionSpells, s.Spells, encodeSpell); err != nil {
		return nil, err
	}
	encodeCurrentGame(w, s.CurrentGame)
	if err := writeMany(w, sectionFactionCoins, s.FactionCoins, encodeFactionCoin); err != nil {
		return nil, err
	}
	if err := writeMany(w, sectionEventResources, s.EventResources, encodeEventResource); err != nil {
		return nil, err
	}
	if err := writeMany(w, sectionStatistics, s.Statistics, encodeStatistic); err != nil {
		return nil, err
	}
	if err := writeMany(w, sectionLineages, s.Lineages, encodeLineage); err != nil {
		return nil, err
	}
	w.b = append(w.b, s.Trailing...)
	return w.b, nil
}

func (s *Save) size() int {
	return HeaderSize + ArtifactSize + CurrentGameSize + 8*countSize +
		len(s.Buildings)*BuildingSize +
		len(s.Upgrades)*UpgradeSize +
		len(s.Trophies)*TrophySize +
		len(s.Spells)*SpellSize +
		len(s.FactionCoins)*FactionCoinSize +
		len(s.EventResources)*EventResourceSize +
		len(s.Statistics)*StatisticSize +
		len(s.Lineages)*LineageSize +
		len(s.Trailing)
}
