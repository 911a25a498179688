// Package platform provides case and history persistence for the executor.
package platform

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/goliatone/go-casework"
	"github.com/goliatone/go-casework/flow"
)

// FirstCaseID is the first identifier handed out; case numbers are 16 digits.
const FirstCaseID int64 = 1_000_000_000_000_001

// MemoryStore is a thread-safe in-memory case store.
type MemoryStore struct {
	mu     sync.RWMutex
	cases  map[int64]casework.Case
	nextID int64
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cases:  make(map[int64]casework.Case),
		nextID: FirstCaseID,
	}
}

// Load returns a copy of the case, or nil when it does not exist.
func (s *MemoryStore) Load(_ context.Context, id int64) (*casework.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[id]
	if !ok {
		return nil, nil
	}
	out := c.Clone()
	return &out, nil
}

// SaveIfVersion stores c when the stored version equals expectedVersion.
// A case that does not exist yet has version 0.
func (s *MemoryStore) SaveIfVersion(_ context.Context, c casework.Case, expectedVersion int) (int, error) {
	if c.ID == 0 {
		return 0, errors.New("case id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current := 0
	if existing, ok := s.cases[c.ID]; ok {
		current = existing.Version
	}
	if current != expectedVersion {
		return 0, versionConflict(c.ID, expectedVersion, current)
	}
	c = c.Clone()
	c.Version = expectedVersion + 1
	s.cases[c.ID] = c
	if c.ID >= s.nextID {
		s.nextID = c.ID + 1
	}
	return c.Version, nil
}

// NextID allocates a case identifier.
func (s *MemoryStore) NextID(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	return id, nil
}

// DueCases lists cases whose due date falls on or before at, oldest first.
func (s *MemoryStore) DueCases(_ context.Context, at time.Time) ([]casework.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]casework.Case, 0)
	for _, c := range s.cases {
		if due := c.Data.DueDate; !due.IsZero() && !due.After(at) {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Data.DueDate.Equal(out[j].Data.DueDate) {
			return out[i].Data.DueDate.Before(out[j].Data.DueDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func versionConflict(id int64, expected, actual int) error {
	return casework.NewError(casework.ErrVersionConflict, "", nil, map[string]any{
		"case_id":          id,
		"expected_version": expected,
		"actual_version":   actual,
	})
}

// SQLiteStore persists cases and their history in SQLite. Case data is
// stored as a JSON document next to the indexed columns the scanner queries.
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ flow.CaseStore    = (*SQLiteStore)(nil)
	_ flow.IDAllocator  = (*SQLiteStore)(nil)
	_ flow.HistoryStore = (*SQLiteStore)(nil)
)

// NewSQLiteStore ensures the schema exists and returns a store over db.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("sqlite db not configured")
	}
	s := &SQLiteStore{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Open opens (or creates) a SQLite database at path and returns a store over it.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	store, err := NewSQLiteStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// DB exposes the underlying handle so other tables can share it.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS cases (
			id INTEGER PRIMARY KEY,
			stage TEXT NOT NULL,
			version INTEGER NOT NULL,
			data TEXT NOT NULL,
			due_at INTEGER,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS cases_due_at ON cases (due_at)`,
		`CREATE TABLE IF NOT EXISTS case_ids (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			allocated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS case_history (
			execution_id TEXT PRIMARY KEY,
			case_id INTEGER NOT NULL,
			event_id TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			actor_role TEXT NOT NULL,
			previous_stage TEXT NOT NULL,
			stage TEXT NOT NULL,
			version INTEGER NOT NULL,
			at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS case_history_case ON case_history (case_id, version)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure case schema: %w", err)
		}
	}
	return nil
}

// Load reads a case, or nil when it does not exist.
func (s *SQLiteStore) Load(ctx context.Context, id int64) (*casework.Case, error) {
	var (
		c    casework.Case
		data string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, stage, version, data FROM cases WHERE id = ?`, id,
	).Scan(&c.ID, &c.Stage, &c.Version, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load case %d: %w", id, err)
	}
	if err := json.Unmarshal([]byte(data), &c.Data); err != nil {
		return nil, fmt.Errorf("decode case %d: %w", id, err)
	}
	return &c, nil
}

// SaveIfVersion writes c using an optimistic version compare.
func (s *SQLiteStore) SaveIfVersion(ctx context.Context, c casework.Case, expectedVersion int) (int, error) {
	if c.ID == 0 {
		return 0, errors.New("case id required")
	}
	data, err := json.Marshal(c.Data)
	if err != nil {
		return 0, fmt.Errorf("encode case %d: %w", c.ID, err)
	}
	updated := toMillis(time.Now())
	due := nullableMillis(c.Data.DueDate)

	if expectedVersion == 0 {
		result, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO cases (id, stage, version, data, due_at, updated_at) VALUES (?, ?, 1, ?, ?, ?)`,
			c.ID, string(c.Stage), string(data), due, updated,
		)
		if err != nil {
			return 0, fmt.Errorf("insert case %d: %w", c.ID, err)
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return 0, s.conflict(ctx, c.ID, expectedVersion)
		}
		return 1, nil
	}

	next := expectedVersion + 1
	result, err := s.db.ExecContext(ctx,
		`UPDATE cases SET stage = ?, version = ?, data = ?, due_at = ?, updated_at = ? WHERE id = ? AND version = ?`,
		string(c.Stage), next, string(data), due, updated, c.ID, expectedVersion,
	)
	if err != nil {
		return 0, fmt.Errorf("update case %d: %w", c.ID, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return 0, s.conflict(ctx, c.ID, expectedVersion)
	}
	return next, nil
}

func (s *SQLiteStore) conflict(ctx context.Context, id int64, expected int) error {
	actual := 0
	err := s.db.QueryRowContext(ctx, `SELECT version FROM cases WHERE id = ?`, id).Scan(&actual)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read case %d version: %w", id, err)
	}
	return versionConflict(id, expected, actual)
}

// NextID allocates a case identifier from a monotonic sequence.
func (s *SQLiteStore) NextID(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `INSERT INTO case_ids (allocated_at) VALUES (?)`, toMillis(time.Now()))
	if err != nil {
		return 0, fmt.Errorf("allocate case id: %w", err)
	}
	seq, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("allocate case id: %w", err)
	}
	return FirstCaseID + seq - 1, nil
}

// DueCases lists cases whose due date falls on or before at, oldest first.
func (s *SQLiteStore) DueCases(ctx context.Context, at time.Time) ([]casework.Case, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM cases WHERE due_at IS NOT NULL AND due_at <= ? ORDER BY due_at, id`, toMillis(at))
	if err != nil {
		return nil, fmt.Errorf("query due cases: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan due case: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate due cases: %w", err)
	}
	_ = rows.Close()

	out := make([]casework.Case, 0, len(ids))
	for _, id := range ids {
		c, err := s.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if c != nil {
			out = append(out, *c)
		}
	}
	return out, nil
}

// Append records a committed execution.
func (s *SQLiteStore) Append(ctx context.Context, entry flow.HistoryEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO case_history (execution_id, case_id, event_id, actor_id, actor_role, previous_stage, stage, version, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ExecutionID, entry.CaseID, entry.EventID, entry.Actor.ID, string(entry.Actor.Role),
		string(entry.PreviousStage), string(entry.Stage), entry.Version, toMillis(entry.At),
	)
	if err != nil {
		return fmt.Errorf("append history %s: %w", entry.ExecutionID, err)
	}
	return nil
}

// List returns the executions of caseID in version order.
func (s *SQLiteStore) List(ctx context.Context, caseID int64) ([]flow.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT execution_id, case_id, event_id, actor_id, actor_role, previous_stage, stage, version, at
		 FROM case_history WHERE case_id = ? ORDER BY version, at`, caseID)
	if err != nil {
		return nil, fmt.Errorf("query history for case %d: %w", caseID, err)
	}
	defer rows.Close()

	var out []flow.HistoryEntry
	for rows.Next() {
		var (
			entry flow.HistoryEntry
			at    int64
		)
		if err := rows.Scan(&entry.ExecutionID, &entry.CaseID, &entry.EventID, &entry.Actor.ID, &entry.Actor.Role,
			&entry.PreviousStage, &entry.Stage, &entry.Version, &at); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		entry.At = fromMillis(at)
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func nullableMillis(value time.Time) sql.NullInt64 {
	if value.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(value), Valid: true}
}
