package indexdb

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"rgsim.dev/internal/persistence/savefile"
	"rgsim.dev/internal/sim/catalogs"
	"rgsim.dev/internal/sim/tuning"
)

func testSave() *savefile.Save {
	return &savefile.Save{
		Header: savefile.Header{SaveVersion: 67, SeasonNumber: 12},
		CurrentGame: savefile.CurrentGame{
			Faction:              -1,
			ElitePrestigeFaction: -1,
			Gems:                 250,
			Reincarnation:        42,
			Ascension:            2,
			Mana:                 1000,
			Coins:                1.5e150,
		},
		Buildings: []savefile.Building{{ID: 9, CurrentQuantity: 12}},
		Upgrades:  []savefile.Upgrade{{ID: 501002, U1: true}, {ID: 32}},
		Trophies:  []savefile.Trophy{{ID: 1, U1: true}},
		Trailing:  []byte{0xAA},
	}
}

func openTemp(t *testing.T) (*SQLiteIndex, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx, path
}

func TestSQLiteIndex_RecordLookupLoad(t *testing.T) {
	idx, _ := openTemp(t)
	ctx := context.Background()

	sv := testSave()
	if err := idx.RecordSave("d1", sv); err != nil {
		t.Fatalf("RecordSave: %v", err)
	}
	if err := idx.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	row, err := idx.LookupSave(ctx, "d1")
	if err != nil {
		t.Fatalf("LookupSave: %v", err)
	}
	if row.ID == "" || row.SaveVersion != 67 || row.SeasonNumber != 12 || row.Reincarnation != 42 || row.Ascension != 2 {
		t.Fatalf("header fields mismatch: %+v", row)
	}
	if row.Coins != 1.5e150 || row.Mana != 1000 || row.Gems != 250 {
		t.Fatalf("balances mismatch: %+v", row)
	}
	if row.Buildings != 1 || row.Upgrades != 2 || row.TrailingBytes != 1 {
		t.Fatalf("counts mismatch: %+v", row)
	}
	if !reflect.DeepEqual(row.OwnedUpgrades, []uint32{501002}) {
		t.Fatalf("owned upgrades=%v", row.OwnedUpgrades)
	}

	got, err := idx.LoadSave(ctx, row.ID)
	if err != nil {
		t.Fatalf("LoadSave: %v", err)
	}
	if !reflect.DeepEqual(got, sv) {
		t.Fatalf("loaded save differs:\n got=%+v\nwant=%+v", got, sv)
	}

	if st := idx.Stats(); st.RecordedTotal != 1 || st.DropSaveTotal != 0 || st.WriteErrorTotal != 0 {
		t.Fatalf("stats=%+v", st)
	}
}

func TestSQLiteIndex_DuplicateDigestKeepsFirstRow(t *testing.T) {
	idx, _ := openTemp(t)
	ctx := context.Background()

	first := testSave()
	second := testSave()
	second.Header.SeasonNumber = 13
	if err := idx.RecordSave("same", first); err != nil {
		t.Fatalf("RecordSave: %v", err)
	}
	if err := idx.RecordSave("same", second); err != nil {
		t.Fatalf("RecordSave: %v", err)
	}
	if err := idx.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	row, err := idx.LookupSave(ctx, "same")
	if err != nil {
		t.Fatalf("LookupSave: %v", err)
	}
	if row.SeasonNumber != 12 {
		t.Fatalf("season=%d want 12", row.SeasonNumber)
	}
	if st := idx.Stats(); st.RecordedTotal != 1 || st.WriteErrorTotal != 0 {
		t.Fatalf("stats=%+v want one recorded row", st)
	}
	rows, err := idx.SavesInSeason(ctx, 13)
	if err != nil {
		t.Fatalf("SavesInSeason: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("duplicate digest was indexed: %+v", rows)
	}
}

func TestSQLiteIndex_SavesInSeason(t *testing.T) {
	idx, _ := openTemp(t)
	ctx := context.Background()

	for i, digest := range []string{"a", "b", "c"} {
		sv := testSave()
		sv.Header.SeasonNumber = uint16(20 + i%2)
		if err := idx.RecordSave(digest, sv); err != nil {
			t.Fatalf("RecordSave: %v", err)
		}
	}
	if err := idx.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	rows, err := idx.SavesInSeason(ctx, 20)
	if err != nil {
		t.Fatalf("SavesInSeason: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%d want 2", len(rows))
	}
	seen := map[string]bool{}
	for _, r := range rows {
		seen[r.Digest] = true
	}
	if !seen["a"] || !seen["c"] {
		t.Fatalf("unexpected digests: %v", seen)
	}
}

func TestSQLiteIndex_NotFound(t *testing.T) {
	idx, _ := openTemp(t)
	ctx := context.Background()
	if _, err := idx.LookupSave(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LookupSave: expected ErrNotFound, got %v", err)
	}
	if _, err := idx.LoadSave(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LoadSave: expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteIndex_UpsertCatalogs(t *testing.T) {
	idx, _ := openTemp(t)
	cats, err := catalogs.Default()
	if err != nil {
		t.Fatalf("catalogs.Default: %v", err)
	}
	if err := idx.UpsertCatalogs(cats); err != nil {
		t.Fatalf("UpsertCatalogs: %v", err)
	}
	// A second upsert replaces rows in place.
	if err := idx.UpsertCatalogs(cats); err != nil {
		t.Fatalf("UpsertCatalogs again: %v", err)
	}
	got, err := idx.CatalogDigests(context.Background())
	if err != nil {
		t.Fatalf("CatalogDigests: %v", err)
	}
	if !reflect.DeepEqual(got, cats.Digests()) {
		t.Fatalf("digests=%v want %v", got, cats.Digests())
	}
}

func TestSQLiteIndex_CloseCommitsPending(t *testing.T) {
	idx, path := openTemp(t)
	if err := idx.RecordSave("pending", testSave()); err != nil {
		t.Fatalf("RecordSave: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := idx.RecordSave("late", testSave()); !errors.Is(err, ErrClosed) {
		t.Fatalf("RecordSave after Close: %v", err)
	}
	if err := idx.Flush(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("Flush after Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM saves WHERE digest='pending'`).Scan(&n); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if n != 1 {
		t.Fatalf("rows=%d want 1", n)
	}
	var version string
	if err := db.QueryRow(`SELECT value FROM meta WHERE key='schema_version'`).Scan(&version); err == nil {
		t.Fatalf("schema_version written without UpsertCatalogs: %q", version)
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqSave}

	if err := s.RecordSave("x", testSave()); err != nil {
		t.Fatalf("RecordSave: %v", err)
	}
	if err := s.RecordSave("", testSave()); err == nil {
		t.Fatalf("expected error for empty digest")
	}

	st := s.Stats()
	if st.DropSaveTotal != 1 {
		t.Fatalf("DropSaveTotal=%d want=1", st.DropSaveTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestOpenFromTuning(t *testing.T) {
	cfg := tuning.Default().Index
	if _, err := OpenFromTuning(cfg, nil); err == nil {
		t.Fatalf("expected error for empty path")
	}
	cfg.Path = filepath.Join(t.TempDir(), "idx.db")
	cfg.QueueSize = 8
	idx, err := OpenFromTuning(cfg, nil)
	if err != nil {
		t.Fatalf("OpenFromTuning: %v", err)
	}
	defer idx.Close()
	if st := idx.Stats(); st.QueueCapacity != 8 {
		t.Fatalf("QueueCapacity=%d want 8", st.QueueCapacity)
	}
}

func TestSQLiteIndex_SavesInSeasonOrdersByTime(t *testing.T) {
	idx, _ := openTemp(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	// Queued newest first; .120 and a whole second must still sort before .123.
	for _, tc := range []struct {
		digest string
		at     time.Time
	}{
		{"newer", base.Add(123 * time.Millisecond)},
		{"older", base.Add(120 * time.Millisecond)},
		{"oldest", base},
	} {
		row, err := newSaveRow(tc.digest, testSave(), tc.at)
		if err != nil {
			t.Fatalf("newSaveRow: %v", err)
		}
		if err := idx.enqueue(row); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	if err := idx.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	rows, err := idx.SavesInSeason(ctx, 12)
	if err != nil {
		t.Fatalf("SavesInSeason: %v", err)
	}
	var got []string
	for _, r := range rows {
		got = append(got, r.Digest)
	}
	if !reflect.DeepEqual(got, []string{"oldest", "older", "newer"}) {
		t.Fatalf("order=%v", got)
	}
	if !rows[1].RecordedAt.Equal(base.Add(120 * time.Millisecond)) {
		t.Fatalf("recorded_at=%s", rows[1].RecordedAt)
	}
}

func TestSQLiteIndex_FailedInsertKeepsBatch(t *testing.T) {
	idx, _ := openTemp(t)
	ctx := context.Background()

	first, err := newSaveRow("first", testSave(), time.Now())
	if err != nil {
		t.Fatalf("newSaveRow: %v", err)
	}
	// Same row id under another digest violates the primary key.
	clash, err := newSaveRow("clash", testSave(), time.Now())
	if err != nil {
		t.Fatalf("newSaveRow: %v", err)
	}
	clash.ID = first.ID
	third, err := newSaveRow("third", testSave(), time.Now())
	if err != nil {
		t.Fatalf("newSaveRow: %v", err)
	}
	for _, r := range []saveRow{first, clash, third} {
		if err := idx.enqueue(r); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	if err := idx.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	for _, d := range []string{"first", "third"} {
		if _, err := idx.LookupSave(ctx, d); err != nil {
			t.Fatalf("LookupSave(%s): %v", d, err)
		}
	}
	if _, err := idx.LookupSave(ctx, "clash"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("clash row: expected ErrNotFound, got %v", err)
	}
	if st := idx.Stats(); st.RecordedTotal != 2 || st.WriteErrorTotal != 1 {
		t.Fatalf("stats=%+v want 2 recorded, 1 error", st)
	}
}
