// Package indexdb keeps a SQLite index of decoded saves so they can be
// looked up by blob digest and reloaded without the original text.
package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"rgsim.dev/internal/persistence/savefile"
	"rgsim.dev/internal/sim/catalogs"
	"rgsim.dev/internal/sim/tuning"
)

var (
	ErrNotFound = errors.New("indexdb: not found")
	ErrClosed   = errors.New("indexdb: closed")
)

const (
	defaultQueueSize = 1024
	commitEvery      = 256
	commitMaxWait    = 2 * time.Second

	// recordedAtLayout is fixed width so recorded_at sorts in time order.
	recordedAtLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// EncodeAll and DecodeAll are safe for concurrent use.
var (
	zenc, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zdec, _ = zstd.NewReader(nil)
)

type Options struct {
	// QueueSize bounds pending writes. Zero means 1024.
	QueueSize int
	// Logger receives writer failures. Nil means log.Default().
	Logger *log.Logger
}

type Stats struct {
	QueueDepth    int
	QueueCapacity int
	// RecordedTotal counts committed rows; saves whose digest was already
	// indexed are not counted.
	RecordedTotal   uint64
	DropSaveTotal   uint64
	WriteErrorTotal uint64
}

// SaveRow is the indexed summary of one save.
type SaveRow struct {
	ID            string
	Digest        string
	SaveVersion   uint16
	SeasonNumber  uint16
	Reincarnation uint16
	Ascension     uint16
	Gems          float64
	Coins         float64
	Mana          float64
	Buildings     int
	Upgrades      int
	OwnedUpgrades []uint32
	TrailingBytes int
	RecordedAt    time.Time
}

type SQLiteIndex struct {
	db   *sql.DB // writer goroutine and UpsertCatalogs
	rdb  *sql.DB // reads
	logf func(format string, args ...any)

	mu   sync.RWMutex // guards ch against Close
	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	recorded   atomic.Uint64
	dropSave   atomic.Uint64
	writeError atomic.Uint64
}

type reqKind int

const (
	reqSave reqKind = iota + 1
	reqFlush
)

type req struct {
	kind reqKind
	save saveRow
	done chan struct{}
}

type saveRow struct {
	SaveRow
	payload []byte
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return OpenSQLiteWithOptions(path, Options{})
}

// OpenFromTuning opens the index configured in the tuning file.
func OpenFromTuning(t tuning.Index, logger *log.Logger) (*SQLiteIndex, error) {
	return OpenSQLiteWithOptions(t.Path, Options{QueueSize: t.QueueSize, Logger: logger})
}

func OpenSQLiteWithOptions(path string, opts Options) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := openConn(path)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	rdb, err := openConn(path)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	s := &SQLiteIndex{
		db:   db,
		rdb:  rdb,
		logf: logger.Printf,
		ch:   make(chan req, size),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

// openConn returns a single-connection pool so per-connection pragmas stick.
func openConn(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func initPragmas(db *sql.DB) error {
	// WAL lets the reader connection see committed rows while the writer holds a tx.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS saves (
			id TEXT PRIMARY KEY,
			digest TEXT NOT NULL UNIQUE,
			save_version INTEGER NOT NULL,
			season_number INTEGER NOT NULL,
			reincarnation INTEGER NOT NULL,
			ascension INTEGER NOT NULL,
			gems REAL,
			coins REAL,
			mana REAL,
			buildings INTEGER NOT NULL,
			upgrades INTEGER NOT NULL,
			owned_upgrades TEXT NOT NULL,
			trailing_bytes INTEGER NOT NULL,
			payload BLOB NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS saves_season ON saves(season_number);`,
	}
	for _, st := range stmts {
		if _, err := db.Exec(st); err != nil {
			return err
		}
	}
	return nil
}

// Close drains pending writes, commits them and closes the database.
func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed.Store(true)
		close(s.ch)
		s.mu.Unlock()
		s.wg.Wait()
		err = errors.Join(s.db.Close(), s.rdb.Close())
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		QueueDepth:      len(s.ch),
		QueueCapacity:   cap(s.ch),
		RecordedTotal:   s.recorded.Load(),
		DropSaveTotal:   s.dropSave.Load(),
		WriteErrorTotal: s.writeError.Load(),
	}
}

// RecordSave queues a save for indexing under its blob digest. It never
// blocks: when the queue is full the save is dropped and counted in Stats.
// A digest that is already indexed keeps its first row.
func (s *SQLiteIndex) RecordSave(digest string, sv *savefile.Save) error {
	if digest == "" {
		return fmt.Errorf("indexdb: empty digest")
	}
	row, err := newSaveRow(digest, sv, time.Now())
	if err != nil {
		return err
	}
	return s.enqueue(row)
}

func newSaveRow(digest string, sv *savefile.Save, now time.Time) (saveRow, error) {
	raw, err := sv.MarshalBinary()
	if err != nil {
		return saveRow{}, fmt.Errorf("indexdb: %w", err)
	}
	owned := sv.OwnedUpgrades()
	if owned == nil {
		owned = []uint32{}
	}
	return saveRow{
		SaveRow: SaveRow{
			ID:            uuid.NewString(),
			Digest:        digest,
			SaveVersion:   sv.Header.SaveVersion,
			SeasonNumber:  sv.Header.SeasonNumber,
			Reincarnation: sv.CurrentGame.Reincarnation,
			Ascension:     sv.CurrentGame.Ascension,
			Gems:          sv.CurrentGame.Gems,
			Coins:         sv.CurrentGame.Coins,
			Mana:          sv.CurrentGame.Mana,
			Buildings:     len(sv.Buildings),
			Upgrades:      len(sv.Upgrades),
			OwnedUpgrades: owned,
			TrailingBytes: len(sv.Trailing),
			RecordedAt:    now.UTC(),
		},
		payload: zenc.EncodeAll(raw, nil),
	}, nil
}

func (s *SQLiteIndex) enqueue(row saveRow) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed.Load() {
		return ErrClosed
	}
	select {
	case s.ch <- req{kind: reqSave, save: row}:
	default:
		s.dropSave.Add(1)
	}
	return nil
}

// Flush waits until every save queued before the call is committed.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	done := make(chan struct{})
	s.mu.RLock()
	if s.closed.Load() {
		s.mu.RUnlock()
		return ErrClosed
	}
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
		s.mu.RUnlock()
	case <-ctx.Done():
		s.mu.RUnlock()
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpsertCatalogs records the digest of every catalog file the state was
// built from.
func (s *SQLiteIndex) UpsertCatalogs(cats *catalogs.Catalogs) error {
	if s.closed.Load() {
		return ErrClosed
	}
	digests := cats.Digests()
	names := make([]string, 0, len(digests))
	for name := range digests {
		names = append(names, name)
	}
	sort.Strings(names)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,updated_at) VALUES(?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, name := range names {
		if _, err := stmt.Exec(name, digests[name], now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CatalogDigests returns the stored catalog digests by file name.
func (s *SQLiteIndex) CatalogDigests(ctx context.Context) (map[string]string, error) {
	rows, err := s.rdb.QueryContext(ctx, `SELECT name,digest FROM catalogs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var name, digest string
		if err := rows.Scan(&name, &digest); err != nil {
			return nil, err
		}
		out[name] = digest
	}
	return out, rows.Err()
}

const saveColumns = `id,digest,save_version,season_number,reincarnation,ascension,gems,coins,mana,buildings,upgrades,owned_upgrades,trailing_bytes,recorded_at`

// LookupSave returns the indexed summary for a blob digest.
func (s *SQLiteIndex) LookupSave(ctx context.Context, digest string) (SaveRow, error) {
	row := s.rdb.QueryRowContext(ctx, `SELECT `+saveColumns+` FROM saves WHERE digest=?`, digest)
	r, err := scanSaveRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SaveRow{}, fmt.Errorf("save digest %s: %w", digest, ErrNotFound)
	}
	return r, err
}

// LoadSave reconstructs the full save stored under a row id.
func (s *SQLiteIndex) LoadSave(ctx context.Context, id string) (*savefile.Save, error) {
	var payload []byte
	err := s.rdb.QueryRowContext(ctx, `SELECT payload FROM saves WHERE id=?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("save %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	raw, err := zdec.DecodeAll(payload, nil)
	if err != nil {
		return nil, fmt.Errorf("save %s: zstd: %w", id, err)
	}
	var sv savefile.Save
	if err := sv.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("save %s: %w", id, err)
	}
	return &sv, nil
}

// SavesInSeason lists indexed saves for one season, oldest first.
func (s *SQLiteIndex) SavesInSeason(ctx context.Context, season uint16) ([]SaveRow, error) {
	rows, err := s.rdb.QueryContext(ctx, `SELECT `+saveColumns+` FROM saves WHERE season_number=? ORDER BY recorded_at,id`, int64(season))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SaveRow
	for rows.Next() {
		r, err := scanSaveRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSaveRow(sc scanner) (SaveRow, error) {
	var (
		r                 SaveRow
		gems, coins, mana sql.NullFloat64
		owned, recorded   string
	)
	if err := sc.Scan(&r.ID, &r.Digest, &r.SaveVersion, &r.SeasonNumber, &r.Reincarnation, &r.Ascension,
		&gems, &coins, &mana, &r.Buildings, &r.Upgrades, &owned, &r.TrailingBytes, &recorded); err != nil {
		return SaveRow{}, err
	}
	r.Gems, r.Coins, r.Mana = gems.Float64, coins.Float64, mana.Float64
	if err := json.Unmarshal([]byte(owned), &r.OwnedUpgrades); err != nil {
		return SaveRow{}, fmt.Errorf("owned_upgrades: %w", err)
	}
	t, err := time.Parse(recordedAtLayout, recorded)
	if err != nil {
		return SaveRow{}, fmt.Errorf("recorded_at: %w", err)
	}
	r.RecordedAt = t
	return r, nil
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertSave, err := s.db.Prepare(`INSERT INTO saves(` + saveColumns + `,payload) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?) ON CONFLICT(digest) DO NOTHING`)
	if err != nil {
		s.logf("[indexdb] prepare: %v", err)
	}
	defer func() {
		if insertSave != nil {
			_ = insertSave.Close()
		}
	}()

	var (
		tx         *sql.Tx
		opCount    int
		pending    int
		lastCommit = time.Now()
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.logf("[indexdb] begin: %v", err)
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		pending = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.logf("[indexdb] commit: %v", err)
			s.writeError.Add(uint64(pending))
		} else {
			s.recorded.Add(uint64(pending))
		}
		tx = nil
		opCount = 0
		pending = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		pending = 0
		lastCommit = time.Now()
	}

	ticker := time.NewTicker(commitMaxWait)
	defer ticker.Stop()

	for {
		select {
		case r, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			switch r.kind {
			case reqFlush:
				commit()
				close(r.done)
				continue
			case reqSave:
				if insertSave == nil {
					s.writeError.Add(1)
					continue
				}
				begin()
				if tx == nil {
					s.writeError.Add(1)
					continue
				}
				n, err := s.insert(tx, tx.Stmt(insertSave), r.save)
				if err != nil {
					s.logf("[indexdb] insert save %s: %v", r.save.Digest, err)
					s.writeError.Add(1)
					if n < 0 {
						// The savepoint could not be restored; the whole batch is lost.
						s.writeError.Add(uint64(pending))
						rollback()
					}
					continue
				}
				opCount++
				pending += int(n)
			}
			if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
				commit()
			}
		case <-ticker.C:
			if tx != nil && time.Since(lastCommit) >= commitMaxWait {
				commit()
			}
		}
	}
}

// insert writes one row inside its own savepoint so a failing row leaves the
// rest of the batch intact. It returns the number of rows written, or -1 when
// the savepoint itself failed and the transaction must be abandoned.
func (s *SQLiteIndex) insert(tx *sql.Tx, stmt *sql.Stmt, r saveRow) (int64, error) {
	owned, err := json.Marshal(r.OwnedUpgrades)
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec(`SAVEPOINT save_row`); err != nil {
		return -1, err
	}
	res, err := stmt.Exec(
		r.ID,
		r.Digest,
		int64(r.SaveVersion),
		int64(r.SeasonNumber),
		int64(r.Reincarnation),
		int64(r.Ascension),
		r.Gems,
		r.Coins,
		r.Mana,
		r.Buildings,
		r.Upgrades,
		string(owned),
		r.TrailingBytes,
		r.RecordedAt.UTC().Format(recordedAtLayout),
		r.payload,
	)
	if err != nil {
		if _, rerr := tx.Exec(`ROLLBACK TO save_row`); rerr != nil {
			return -1, errors.Join(err, rerr)
		}
		if _, rerr := tx.Exec(`RELEASE save_row`); rerr != nil {
			return -1, errors.Join(err, rerr)
		}
		return 0, err
	}
	if _, err := tx.Exec(`RELEASE save_row`); err != nil {
		return -1, err
	}
	return res.RowsAffected()
}
