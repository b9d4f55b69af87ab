// Package archive files save blobs by season under a data directory.
package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"rgsim.dev/internal/persistence/savefile"
)

type SeasonArchiveMeta struct {
	Season int            `json:"season"`
	Saves  []ArchivedSave `json:"saves"`
}

type ArchivedSave struct {
	File          string `json:"file"`
	Digest        string `json:"digest"`
	SaveVersion   uint16 `json:"save_version"`
	Reincarnation uint16 `json:"reincarnation"`
	Ascension     uint16 `json:"ascension"`
	CreatedAt     string `json:"created_at"`
}

// SeasonDir is the archive directory for one season.
func SeasonDir(dataDir string, season int) string {
	return filepath.Join(dataDir, "archives", fmt.Sprintf("season_%03d", season))
}

// metaMu serialises meta.json updates within the process. Separate processes
// sharing a data directory are not coordinated.
var metaMu sync.Mutex

// ArchiveSave writes blob into dataDir/archives/season_<NNN>/ and appends it to
// that season's meta.json. s must be the decoded form of blob. A blob whose
// digest is already archived is left alone and archived is false.
func ArchiveSave(dataDir, blob string, s *savefile.Save) (season int, archivedPath string, archived bool, err error) {
	season = int(s.Header.SeasonNumber)
	dir := SeasonDir(dataDir, season)

	metaMu.Lock()
	defer metaMu.Unlock()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, "", false, err
	}

	meta, err := ReadMeta(dataDir, season)
	if err != nil {
		return 0, "", false, err
	}
	digest := savefile.Digest(blob)
	for _, e := range meta.Saves {
		if e.Digest == digest {
			return season, filepath.Join(dir, e.File), false, nil
		}
	}

	name := fmt.Sprintf("r%05d-%s.txt", s.CurrentGame.Reincarnation, digest[:16])
	dst := filepath.Join(dir, name)
	if err := writeFileAtomic(dst, []byte(blob)); err != nil {
		return 0, "", false, err
	}

	meta.Saves = append(meta.Saves, ArchivedSave{
		File:          name,
		Digest:        digest,
		SaveVersion:   s.Header.SaveVersion,
		Reincarnation: s.CurrentGame.Reincarnation,
		Ascension:     s.CurrentGame.Ascension,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339Nano),
	})
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return 0, "", false, err
	}
	if err := writeFileAtomic(filepath.Join(dir, "meta.json"), b); err != nil {
		return 0, "", false, err
	}
	return season, dst, true, nil
}

// ReadMeta returns the archive index of one season; a season with no archive
// yet has an empty index.
func ReadMeta(dataDir string, season int) (SeasonArchiveMeta, error) {
	meta := SeasonArchiveMeta{Season: season}
	b, err := os.ReadFile(filepath.Join(SeasonDir(dataDir, season), "meta.json"))
	if errors.Is(err, fs.ErrNotExist) {
		return meta, nil
	}
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(b, &meta); err != nil {
		return meta, fmt.Errorf("season %d meta.json: %w", season, err)
	}
	return meta, nil
}

func writeFileAtomic(dst string, b []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
