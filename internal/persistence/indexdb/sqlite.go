package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"stockpile.ai/internal/sim/catalogs"
)

// SQLiteIndex is a read model of zone configs, their change history and admission decisions.
// Writes are queued and applied by one goroutine in batched transactions.
type SQLiteIndex struct {
	db *sql.DB

	// sendMu guards ch against sends racing Close.
	sendMu sync.RWMutex
	ch     chan req
	wg     sync.WaitGroup
	once   sync.Once

	closed  atomic.Bool
	dropped atomic.Uint64
}

type reqKind int

const (
	reqChange reqKind = iota + 1
	reqDecision
	reqFlush
)

type req struct {
	kind reqKind

	change   ChangeRow
	decision DecisionRow
	done     chan struct{}
}

// ChangeRow mirrors one committed zone config mutation.
type ChangeRow struct {
	Seq               uint64
	Op                string // SET | DELETE | RENAME
	ZoneID            string
	From              string
	RefillThreshold   int
	SimilarStackLimit int
	At                string
}

type DecisionRow struct {
	At         string
	ItemID     string
	ItemType   string
	Requested  int
	X, Z       int
	ZoneID     string
	Admit      bool
	Quantity   int
	Reason     string
	StackLimit int
	Duplicates int
}

// ZoneRow is one row of the current zone config table.
type ZoneRow struct {
	ZoneID            string
	RefillThreshold   int
	SimilarStackLimit int
	UpdatedAt         string
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

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
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// Decisions arrive at haul-search rate; keep a deep buffer so evaluation never blocks.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
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
			count INTEGER NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS zone_configs (
			zone_id TEXT PRIMARY KEY,
			refill_threshold INTEGER NOT NULL,
			similar_stack_limit INTEGER NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS zone_changes (
			seq INTEGER PRIMARY KEY,
			op TEXT NOT NULL,
			zone_id TEXT NOT NULL,
			from_id TEXT,
			refill_threshold INTEGER NOT NULL,
			similar_stack_limit INTEGER NOT NULL,
			at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_zone_changes_zone ON zone_changes(zone_id, seq);`,
		`CREATE TABLE IF NOT EXISTS decisions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at TEXT NOT NULL,
			item_id TEXT NOT NULL,
			item_type TEXT NOT NULL,
			requested INTEGER NOT NULL,
			x INTEGER NOT NULL,
			z INTEGER NOT NULL,
			zone_id TEXT,
			admit INTEGER NOT NULL,
			quantity INTEGER NOT NULL,
			reason TEXT NOT NULL,
			stack_limit INTEGER NOT NULL,
			duplicates INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_zone ON decisions(zone_id, id);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.sendMu.Lock()
		s.closed.Store(true)
		close(s.ch)
		s.sendMu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Dropped counts decisions discarded because the writer fell behind.
func (s *SQLiteIndex) Dropped() uint64 { return s.dropped.Load() }

// RecordChange queues a config mutation. Changes are never dropped: the table must converge.
func (s *SQLiteIndex) RecordChange(r ChangeRow) {
	if s == nil {
		return
	}
	if r.At == "" {
		r.At = time.Now().UTC().Format(time.RFC3339Nano)
	}
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.closed.Load() {
		return
	}
	s.ch <- req{kind: reqChange, change: r}
}

func (s *SQLiteIndex) RecordDecision(r DecisionRow) {
	if s == nil {
		return
	}
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqDecision, decision: r}:
	default:
		// The JSONL decision log remains the source of truth.
		s.dropped.Add(1)
	}
}

// Flush blocks until every request queued before it is committed.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s == nil {
		return nil
	}
	done := make(chan struct{})
	s.sendMu.RLock()
	if s.closed.Load() {
		s.sendMu.RUnlock()
		return nil
	}
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
		s.sendMu.RUnlock()
	case <-ctx.Done():
		s.sendMu.RUnlock()
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) UpsertCatalogs(cats *catalogs.Catalogs) error {
	if s == nil || cats == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,count,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	if _, err := stmt.Exec("items_defs", cats.Items.DefsDigest, len(cats.Items.Defs), now); err != nil {
		return err
	}
	if _, err := stmt.Exec("items_palette", cats.Items.PaletteDigest, len(cats.Items.Palette), now); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadZoneConfigs reads the current zone config table ordered by zone id.
func (s *SQLiteIndex) LoadZoneConfigs(ctx context.Context) ([]ZoneRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT zone_id,refill_threshold,similar_stack_limit,updated_at FROM zone_configs ORDER BY zone_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ZoneRow
	for rows.Next() {
		var r ZoneRow
		if err := rows.Scan(&r.ZoneID, &r.RefillThreshold, &r.SimilarStackLimit, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LastChangeSeq returns the highest recorded change sequence, 0 when empty.
func (s *SQLiteIndex) LastChangeSeq(ctx context.Context) (uint64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM zone_changes`).Scan(&seq); err != nil {
		return 0, err
	}
	if !seq.Valid {
		return 0, nil
	}
	return uint64(seq.Int64), nil
}
