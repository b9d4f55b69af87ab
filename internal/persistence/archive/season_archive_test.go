package archive

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"rgsim.dev/internal/persistence/savefile"
)

func encoded(t *testing.T, s *savefile.Save) string {
	t.Helper()
	blob, err := savefile.DefaultCodec().Encode(s)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return blob
}

func TestArchiveSave_FilesBySeason(t *testing.T) {
	dir := t.TempDir()
	s := &savefile.Save{
		Header:      savefile.Header{SaveVersion: 67, SeasonNumber: 12},
		CurrentGame: savefile.CurrentGame{Reincarnation: 42, Ascension: 2},
	}
	blob := encoded(t, s)

	season, path, ok, err := ArchiveSave(dir, blob, s)
	if err != nil {
		t.Fatalf("ArchiveSave: %v", err)
	}
	if !ok || season != 12 {
		t.Fatalf("season=%d archived=%v", season, ok)
	}
	if filepath.Dir(path) != SeasonDir(dir, 12) {
		t.Fatalf("path=%s", path)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read archived: %v", err)
	}
	if string(got) != blob {
		t.Fatalf("archived content mismatch")
	}
	if _, err := savefile.DefaultCodec().Decode(string(got)); err != nil {
		t.Fatalf("archived blob does not decode: %v", err)
	}

	// Same blob again: no new entry.
	_, again, ok, err := ArchiveSave(dir, blob+"\n", s)
	if err != nil {
		t.Fatalf("ArchiveSave again: %v", err)
	}
	if ok || again != path {
		t.Fatalf("duplicate archived: ok=%v path=%s", ok, again)
	}

	s.CurrentGame.Reincarnation = 43
	if _, _, ok, err := ArchiveSave(dir, encoded(t, s), s); err != nil || !ok {
		t.Fatalf("second save: ok=%v err=%v", ok, err)
	}

	meta, err := ReadMeta(dir, 12)
	if err != nil {
		t.Fatalf("ReadMeta: %v", err)
	}
	if meta.Season != 12 || len(meta.Saves) != 2 {
		t.Fatalf("meta=%+v", meta)
	}
	if meta.Saves[0].Reincarnation != 42 || meta.Saves[1].Reincarnation != 43 || meta.Saves[0].Digest != savefile.Digest(blob) {
		t.Fatalf("meta entries=%+v", meta.Saves)
	}
}

func TestReadMeta_EmptySeason(t *testing.T) {
	meta, err := ReadMeta(t.TempDir(), 3)
	if err != nil {
		t.Fatalf("ReadMeta: %v", err)
	}
	if meta.Season != 3 || len(meta.Saves) != 0 {
		t.Fatalf("meta=%+v", meta)
	}
}

func TestArchiveSave_ConcurrentSameSeason(t *testing.T) {
	dir := t.TempDir()
	const n = 8
	blobs := make([]string, n)
	saves := make([]*savefile.Save, n)
	for i := range saves {
		saves[i] = &savefile.Save{
			Header:      savefile.Header{SaveVersion: 67, SeasonNumber: 3},
			CurrentGame: savefile.CurrentGame{Reincarnation: uint16(10 + i)},
		}
		blobs[i] = encoded(t, saves[i])
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, _, _, err := ArchiveSave(dir, blobs[i], saves[i]); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("ArchiveSave: %v", err)
	}

	meta, err := ReadMeta(dir, 3)
	if err != nil {
		t.Fatalf("ReadMeta: %v", err)
	}
	if len(meta.Saves) != n {
		t.Fatalf("entries=%d want %d", len(meta.Saves), n)
	}
	seen := map[uint16]bool{}
	for _, e := range meta.Saves {
		seen[e.Reincarnation] = true
	}
	if len(seen) != n {
		t.Fatalf("distinct reincarnations=%d want %d", len(seen), n)
	}
}
