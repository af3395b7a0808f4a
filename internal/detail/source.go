package detail

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

//go:embed seed.json
var seedJSON []byte

// Source looks records up by ID. Lookups are synchronous and read-only.
type Source interface {
	Lookup(id string) (Record, bool)
}

// Lister is a Source that can enumerate its IDs.
type Lister interface {
	Source
	IDs() []string
}

// Seed returns the bundled records.
func Seed() ([]Record, error) {
	return ParseRecords(seedJSON)
}

// ParseRecords decodes a JSON array of records.
func ParseRecords(data []byte) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse detail records: %w", err)
	}
	for i, r := range records {
		if r.ID == "" {
			return nil, fmt.Errorf("detail record %d: missing id", i)
		}
	}
	return records, nil
}

// StaticSource serves records from memory.
type StaticSource struct {
	records map[string]Record
}

// NewStaticSource indexes records by ID; later duplicates win.
func NewStaticSource(records []Record) *StaticSource {
	m := make(map[string]Record, len(records))
	for _, r := range records {
		m[r.ID] = r
	}
	return &StaticSource{records: m}
}

// SeedSource returns a StaticSource over the bundled records.
func SeedSource() (*StaticSource, error) {
	records, err := Seed()
	if err != nil {
		return nil, err
	}
	return NewStaticSource(records), nil
}

// Lookup implements Source.
func (s *StaticSource) Lookup(id string) (Record, bool) {
	r, ok := s.records[id]
	return r, ok
}

// IDs implements Lister.
func (s *StaticSource) IDs() []string {
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Schema creates the table SQLSource reads from.
const Schema = `CREATE TABLE IF NOT EXISTS detail_records (
	id   VARCHAR PRIMARY KEY,
	body JSON NOT NULL
)`

// SQLSource reads records from the detail_records table, caching every hit.
type SQLSource struct {
	db  *sql.DB
	log zerolog.Logger

	mu    sync.RWMutex
	cache map[string]Record
}

// NewSQLSource returns a source over db. The table must exist; see Migrate.
func NewSQLSource(db *sql.DB, log zerolog.Logger) *SQLSource {
	return &SQLSource{
		db:    db,
		log:   log.With().Str("component", "detail").Logger(),
		cache: make(map[string]Record),
	}
}

// Migrate creates the detail_records table if needed.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create detail_records: %w", err)
	}
	return nil
}

// Store upserts records into the detail_records table.
func Store(ctx context.Context, db *sql.DB, records []Record) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO detail_records (id, body) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		body, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode %q: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, string(body)); err != nil {
			return fmt.Errorf("store %q: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// Get reads one record, going to the database on a cache miss.
func (s *SQLSource) Get(ctx context.Context, id string) (Record, bool, error) {
	s.mu.RLock()
	r, ok := s.cache[id]
	s.mu.RUnlock()
	if ok {
		return r, true, nil
	}

	var body string
	err := s.db.QueryRowContext(ctx, `SELECT CAST(body AS VARCHAR) FROM detail_records WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("query %q: %w", id, err)
	}
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return Record{}, false, fmt.Errorf("decode %q: %w", id, err)
	}

	s.mu.Lock()
	s.cache[id] = r
	s.mu.Unlock()
	return r, true, nil
}

// Lookup implements Source. Database errors are logged and reported as a miss.
func (s *SQLSource) Lookup(id string) (Record, bool) {
	r, ok, err := s.Get(context.Background(), id)
	if err != nil {
		s.log.Error().Err(err).Str("id", id).Msg("detail lookup failed")
		return Record{}, false
	}
	return r, ok
}

// IDs implements Lister.
func (s *SQLSource) IDs() []string {
	rows, err := s.db.Query(`SELECT id FROM detail_records ORDER BY id`)
	if err != nil {
		s.log.Error().Err(err).Msg("list detail ids failed")
		return nil
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// Invalidate drops the cache.
func (s *SQLSource) Invalidate() {
	s.mu.Lock()
	s.cache = make(map[string]Record)
	s.mu.Unlock()
}
