package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/acfsync/acfsync/internal/domain"
	"github.com/acfsync/acfsync/internal/logger"
	"github.com/acfsync/acfsync/internal/store/migrations"
)

const (
	recordsTable = "records"
	auditTable   = "audit_log"
)

var recordColumns = []string{"id", "category", "record_key", "title", "fields", "created_at", "updated_at"}

// queryRower is satisfied by both *sql.DB and *sql.Tx
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore implements Store on top of a sqlite database
type SQLStore struct {
	db   *sql.DB
	path string
	log  *logger.Logger
	now  func() time.Time
}

// OpenSQLStore opens (creating if needed) the sqlite database at path and
// applies the embedded migrations
func OpenSQLStore(ctx context.Context, path string, log *logger.Logger) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}

	if err := migrations.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := EnsureFilePermissions(path); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to verify store permissions: %w", err)
	}

	s := NewSQLStore(db, path, log)
	s.log.Debug().Str("path", path).Msg("record store opened")
	return s, nil
}

// NewSQLStore wraps an already migrated database
func NewSQLStore(db *sql.DB, path string, log *logger.Logger) *SQLStore {
	return &SQLStore{
		db:   db,
		path: path,
		log:  log.Component("sqlite"),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Path returns the database file path
func (s *SQLStore) Path() string {
	return s.path
}

// Close closes the database
func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.log.Debug().Str("path", s.path).Msg("record store closed")
	return err
}

// ClassifyByKey derives the record category from a key
func (s *SQLStore) ClassifyByKey(_ context.Context, key string) (domain.Category, error) {
	return domain.ClassifyKey(key)
}

// FindByKeyAndCategory looks a record up by its unique (category, key) pair
func (s *SQLStore) FindByKeyAndCategory(ctx context.Context, key string, category domain.Category) (*domain.Record, error) {
	if s.db == nil {
		return nil, ErrStoreNotOpen
	}
	return s.selectRecord(ctx, s.db, sq.Eq{"category": string(category), "record_key": key})
}

// Persist creates or updates the record described by d inside one transaction
func (s *SQLStore) Persist(ctx context.Context, d domain.Descriptor, category domain.Category) (domain.Descriptor, error) {
	if s.db == nil {
		return nil, ErrStoreNotOpen
	}

	key := d.Key()
	if key == "" {
		return nil, ErrMissingKey
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	owner, err := s.selectRecord(ctx, tx, sq.Eq{"category": string(category), "record_key": key})
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		return nil, err
	}

	now := s.now()
	var rec *domain.Record

	if id, ok := d.ID(); ok {
		existing, err := s.selectRecord(ctx, tx, sq.Eq{"id": id, "category": string(category)})
		if err != nil {
			return nil, fmt.Errorf("cannot update %s #%d: %w", category, id, err)
		}
		if owner != nil && owner.ID != id {
			return nil, fmt.Errorf("%w: key %s belongs to another %s", ErrRecordExists, key, category)
		}
		if rec, err = applyUpdate(existing, d, now); err != nil {
			return nil, err
		}
		if err := s.updateRecord(ctx, tx, rec); err != nil {
			return nil, err
		}
	} else {
		if owner != nil {
			return nil, fmt.Errorf("%w: %s %s", ErrRecordExists, category, key)
		}
		rec = newRecord(0, d, category, now)
		if rec.ID, err = s.insertRecord(ctx, tx, rec); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit record: %w", err)
	}

	return rec.Descriptor(), nil
}

func (s *SQLStore) insertRecord(ctx context.Context, tx *sql.Tx, rec *domain.Record) (int64, error) {
	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal record: %w", err)
	}

	query, args, err := sq.Insert(recordsTable).
		Columns("category", "record_key", "title", "fields", "created_at", "updated_at").
		Values(string(rec.Category), rec.Key, rec.Title, string(fields), formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build insert: %w", err)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read record id: %w", err)
	}
	return id, nil
}

func (s *SQLStore) updateRecord(ctx context.Context, tx *sql.Tx, rec *domain.Record) error {
	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	query, args, err := sq.Update(recordsTable).
		Set("record_key", rec.Key).
		Set("title", rec.Title).
		Set("fields", string(fields)).
		Set("updated_at", formatTime(rec.UpdatedAt)).
		Where(sq.Eq{"id": rec.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	return nil
}

func (s *SQLStore) selectRecord(ctx context.Context, q queryRower, where sq.Eq) (*domain.Record, error) {
	query, args, err := sq.Select(recordColumns...).From(recordsTable).Where(where).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	rec, err := scanRecord(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record: %w", err)
	}
	return rec, nil
}

// ListRecords returns records of one category, or all records when category
// is empty, ordered by ID
func (s *SQLStore) ListRecords(ctx context.Context, category domain.Category) ([]*domain.Record, error) {
	if s.db == nil {
		return nil, ErrStoreNotOpen
	}

	builder := sq.Select(recordColumns...).From(recordsTable).OrderBy("id")
	if category != "" {
		builder = builder.Where(sq.Eq{"category": string(category)})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var out []*domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetRecord returns the record with the given ID
func (s *SQLStore) GetRecord(ctx context.Context, id int64) (*domain.Record, error) {
	if s.db == nil {
		return nil, ErrStoreNotOpen
	}
	return s.selectRecord(ctx, s.db, sq.Eq{"id": id})
}

// CountRecords returns the number of records per category
func (s *SQLStore) CountRecords(ctx context.Context) (map[domain.Category]int, error) {
	if s.db == nil {
		return nil, ErrStoreNotOpen
	}

	query, args, err := sq.Select("category", "COUNT(*)").From(recordsTable).GroupBy("category").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build count: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Category]int)
	for _, c := range domain.Categories() {
		counts[c] = 0
	}
	for rows.Next() {
		var c string
		var n int
		if err := rows.Scan(&c, &n); err != nil {
			return nil, fmt.Errorf("failed to read count: %w", err)
		}
		counts[domain.Category(c)] = n
	}
	return counts, rows.Err()
}

// LogOperation appends an audit entry
func (s *SQLStore) LogOperation(ctx context.Context, op *domain.Operation) error {
	if s.db == nil {
		return ErrStoreNotOpen
	}
	if op == nil {
		return fmt.Errorf("operation cannot be nil")
	}
	if op.Timestamp.IsZero() {
		op.Timestamp = s.now()
	}

	query, args, err := sq.Insert(auditTable).
		Columns("run_id", "type", "source", "total", "success", "error", "created_at").
		Values(op.RunID, op.Type, op.Source, op.Total, op.Success, op.Error, formatTime(op.Timestamp)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build audit insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}

// GetAuditLog returns audit operations in chronological order
func (s *SQLStore) GetAuditLog(ctx context.Context) ([]*domain.Operation, error) {
	if s.db == nil {
		return nil, ErrStoreNotOpen
	}

	query, args, err := sq.Select("run_id", "type", "source", "total", "success", "error", "created_at").
		From(auditTable).OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build audit select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	defer rows.Close()

	var ops []*domain.Operation
	for rows.Next() {
		var op domain.Operation
		var ts string
		if err := rows.Scan(&op.RunID, &op.Type, &op.Source, &op.Total, &op.Success, &op.Error, &ts); err != nil {
			return nil, fmt.Errorf("failed to decode audit entry: %w", err)
		}
		if op.Timestamp, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("failed to decode audit entry: %w", err)
		}
		ops = append(ops, &op)
	}
	return ops, rows.Err()
}

// VerifyIntegrity checks the schema version and that stored fields decode
func (s *SQLStore) VerifyIntegrity(ctx context.Context) error {
	if s.db == nil {
		return ErrStoreNotOpen
	}

	v, err := migrations.Version(s.db)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreCorrupted, err)
	}
	if v < migrations.SchemaVersion {
		return fmt.Errorf("%w: schema version %d, want %d", ErrStoreCorrupted, v, migrations.SchemaVersion)
	}

	if _, err := s.ListRecords(ctx, ""); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreCorrupted, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.Record, error) {
	var (
		rec      domain.Record
		category string
		fields   string
		created  string
		updated  string
	)
	if err := row.Scan(&rec.ID, &category, &rec.Key, &rec.Title, &fields, &created, &updated); err != nil {
		return nil, err
	}
	rec.Category = domain.Category(category)

	dec := json.NewDecoder(bytes.NewReader([]byte(fields)))
	dec.UseNumber()
	if err := dec.Decode(&rec.Fields); err != nil {
		return nil, fmt.Errorf("%w: undecodable fields for record %d: %v", ErrStoreCorrupted, rec.ID, err)
	}

	var err error
	if rec.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}
