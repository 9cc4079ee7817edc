// Package devbackend is a local resource backend speaking the same routes
// the console client expects. Records of every resource live as JSON
// documents in one SQLite table, so any schema works without DDL.
package devbackend

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/docdesk/pkg/core"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

// ErrNotFound is returned when a record or document does not exist.
var ErrNotFound = errors.New("not found")

// Store persists records and uploaded documents.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (or creates) the database at path and runs migrations.
// Use ":memory:" for a throwaway store.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// every pool connection would otherwise get its own database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewWithDB(db, logger), nil
}

// NewWithDB wraps an already migrated database.
func NewWithDB(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{db: db, logger: logger, now: time.Now}
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// List returns one page of records matching the query, newest first.
func (s *Store) List(ctx context.Context, res *core.Resource, q core.Query) (core.Result, error) {
	q = q.Normalize(res.PerPage)
	where, args := buildWhere(res, q)

	var total int
	countSQL := "SELECT COUNT(*) FROM records WHERE " + where
	if err := s.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return core.Result{}, fmt.Errorf("failed to count %s: %w", res.Name, err)
	}

	listSQL := "SELECT id, data, created_at, updated_at FROM records WHERE " + where +
		" ORDER BY id DESC LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ctx, listSQL, append(args, q.PerPage, (q.Page-1)*q.PerPage)...)
	if err != nil {
		return core.Result{}, fmt.Errorf("failed to list %s: %w", res.Name, err)
	}
	defer func() { _ = rows.Close() }()

	result := core.Result{
		Rows:     []core.Record{},
		Page:     q.Page,
		PerPage:  q.PerPage,
		Total:    total,
		LastPage: core.LastPageFor(total, q.PerPage),
	}
	for rows.Next() {
		rec, err := scanRecord(res, rows)
		if err != nil {
			return core.Result{}, err
		}
		result.Rows = append(result.Rows, rec)
	}
	if err := rows.Err(); err != nil {
		return core.Result{}, fmt.Errorf("failed to read %s: %w", res.Name, err)
	}
	return result, nil
}

// Get returns one record.
func (s *Store) Get(ctx context.Context, res *core.Resource, id int64) (core.Record, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, data, created_at, updated_at FROM records WHERE resource = ? AND id = ?",
		res.Name, id)
	rec, err := scanRecord(res, row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// Singleton returns the single record of a singleton resource, or an empty
// record when it was never saved.
func (s *Store) Singleton(ctx context.Context, res *core.Resource) (core.Record, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, data, created_at, updated_at FROM records WHERE resource = ? ORDER BY id LIMIT 1",
		res.Name)
	rec, err := scanRecord(res, row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Record{}, nil
	}
	return rec, err
}

// Create inserts a record and returns it with its id and timestamps.
func (s *Store) Create(ctx context.Context, res *core.Resource, values map[string]any) (core.Record, error) {
	data, err := encodeData(values)
	if err != nil {
		return nil, err
	}
	now := s.timestamp()
	result, err := s.db.ExecContext(ctx,
		"INSERT INTO records (resource, data, created_at, updated_at) VALUES (?, ?, ?, ?)",
		res.Name, data, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", res.Name, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", res.Name, err)
	}
	return s.Get(ctx, res, id)
}

// Update merges values into an existing record. Keys not present in values
// keep their stored value.
func (s *Store) Update(ctx context.Context, res *core.Resource, id int64, values map[string]any) (core.Record, error) {
	existing, err := s.Get(ctx, res, id)
	if err != nil {
		return nil, err
	}
	merged := stripMeta(res, existing)
	for k, v := range values {
		merged[k] = v
	}
	data, err := encodeData(merged)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx,
		"UPDATE records SET data = ?, updated_at = ? WHERE resource = ? AND id = ?",
		data, s.timestamp(), res.Name, id); err != nil {
		return nil, fmt.Errorf("failed to update %s %d: %w", res.Name, id, err)
	}
	return s.Get(ctx, res, id)
}

// PutSingleton creates or merges the single record of a singleton resource.
func (s *Store) PutSingleton(ctx context.Context, res *core.Resource, values map[string]any) (core.Record, error) {
	existing, err := s.Singleton(ctx, res)
	if err != nil {
		return nil, err
	}
	id, ok := existing[res.IDKey].(float64)
	if !ok {
		return s.Create(ctx, res, values)
	}
	return s.Update(ctx, res, int64(id), values)
}

// Delete removes one record.
func (s *Store) Delete(ctx context.Context, res *core.Resource, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE resource = ? AND id = ?", res.Name, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s %d: %w", res.Name, id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete %s %d: %w", res.Name, id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// BulkDelete removes all listed records in one transaction and returns how
// many existed.
func (s *Store) BulkDelete(ctx context.Context, res *core.Resource, ids []int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var deleted int64
	for _, id := range ids {
		result, err := tx.ExecContext(ctx, "DELETE FROM records WHERE resource = ? AND id = ?", res.Name, id)
		if err != nil {
			return 0, fmt.Errorf("failed to delete %s %d: %w", res.Name, id, err)
		}
		n, _ := result.RowsAffected()
		deleted += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit bulk delete: %w", err)
	}
	return deleted, nil
}

// BulkCreate inserts one record per row of a column-major payload in one
// transaction. All arrays must have the same length.
func (s *Store) BulkCreate(ctx context.Context, res *core.Resource, columns map[string][]any) (int, error) {
	n := -1
	for name, col := range columns {
		if n == -1 {
			n = len(col)
		} else if len(col) != n {
			return 0, fmt.Errorf("column %q has %d values, expected %d", name, len(col), n)
		}
	}
	if n <= 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO records (resource, data, created_at, updated_at) VALUES (?, ?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := s.timestamp()
	for i := range n {
		values := make(map[string]any, len(columns))
		for name, col := range columns {
			values[name] = col[i]
		}
		data, err := encodeData(values)
		if err != nil {
			return 0, err
		}
		if _, err := stmt.ExecContext(ctx, res.Name, data, now, now); err != nil {
			return 0, fmt.Errorf("failed to insert %s row %d: %w", res.Name, i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit bulk create: %w", err)
	}
	return n, nil
}

// SaveDocument stores an uploaded file and returns its download path,
// relative to the API root.
func (s *Store) SaveDocument(ctx context.Context, res *core.Resource, fh *core.FileHandle) (string, error) {
	id := uuid.New().String()
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO documents (id, resource, name, content_type, data, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		id, res.Name, fh.Name, fh.ContentType, fh.Data, s.timestamp()); err != nil {
		return "", fmt.Errorf("failed to store document %s: %w", fh.Name, err)
	}
	return DocumentPath(id, fh.Name), nil
}

// Document loads a stored file by id.
func (s *Store) Document(ctx context.Context, id string) (*core.FileHandle, error) {
	fh := &core.FileHandle{ID: id}
	err := s.db.QueryRowContext(ctx,
		"SELECT name, content_type, data FROM documents WHERE id = ?", id).
		Scan(&fh.Name, &fh.ContentType, &fh.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", id, err)
	}
	return fh, nil
}

// DocumentPath is the route a stored document is served from.
func DocumentPath(id, name string) string {
	return "documents/" + id + "/" + name
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(res *core.Resource, row scanner) (core.Record, error) {
	var (
		id                   int64
		data                 string
		createdAt, updatedAt string
	)
	if err := row.Scan(&id, &data, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan %s: %w", res.Name, err)
	}
	rec := core.Record{}
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("corrupt %s record %d: %w", res.Name, id, err)
	}
	rec[res.IDKey] = float64(id)
	rec["created_at"] = createdAt
	rec["updated_at"] = updatedAt
	return rec, nil
}

func stripMeta(res *core.Resource, rec core.Record) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		if k == res.IDKey || k == "created_at" || k == "updated_at" {
			continue
		}
		out[k] = v
	}
	return out
}

func encodeData(values map[string]any) (string, error) {
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to encode record: %w", err)
	}
	return string(data), nil
}

// ParseID parses a record id path segment.
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
