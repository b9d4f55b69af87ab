package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func sample() SnapshotV1 {
	return SnapshotV1{
		Header: Header{
			Version:        Version,
			TakenAt:        time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
			CatalogDigests: map[string]string{"buildings.json": "abc"},
		},
		Gold:      decimal.RequireFromString("1.5e40"),
		Mana:      decimal.NewFromInt(1000),
		Buildings: []BuildingV1{{ID: 9, Owned: decimal.NewFromInt(12)}},
		Upgrades:  []uint32{501001, 501002},
	}
}

func TestWriteReadSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snaps", "state.snap.zst")
	in := sample()
	if err := WriteSnapshot(path, in); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	out, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if !out.Gold.Equal(in.Gold) || !out.Mana.Equal(in.Mana) || !out.Gems.IsZero() {
		t.Fatalf("balances mismatch: %+v", out)
	}
	if len(out.Buildings) != 1 || out.Buildings[0].ID != 9 || !out.Buildings[0].Owned.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("buildings mismatch: %+v", out.Buildings)
	}
	if !reflect.DeepEqual(out.Upgrades, in.Upgrades) || !reflect.DeepEqual(out.Header.CatalogDigests, in.Header.CatalogDigests) {
		t.Fatalf("upgrades/header mismatch: %+v", out)
	}
	if !out.Header.TakenAt.Equal(in.Header.TakenAt) {
		t.Fatalf("taken_at=%s", out.Header.TakenAt)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temporary files left behind: %d entries", len(entries))
	}
}

func TestReadSnapshot_RejectsOtherVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v2.snap.zst")
	s := sample()
	s.Header.Version = 2
	if err := WriteSnapshot(path, s); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	if _, err := ReadSnapshot(path); !errors.Is(err, ErrVersion) {
		t.Fatalf("expected ErrVersion, got %v", err)
	}
}

func TestReadSnapshot_Missing(t *testing.T) {
	if _, err := ReadSnapshot(filepath.Join(t.TempDir(), "none")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}
