package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/acfsync/acfsync/internal/config"
	"github.com/acfsync/acfsync/internal/domain"
	"github.com/acfsync/acfsync/internal/logger"
	"github.com/acfsync/acfsync/internal/util"
)

// Error variables for record store operations
var (
	// ErrStoreNotOpen is returned when an operation runs against a closed store
	ErrStoreNotOpen = errors.New("record store is not open")
	// ErrRecordNotFound is returned when no record matches the lookup
	ErrRecordNotFound = errors.New("record not found")
	// ErrRecordExists is returned when a key is already owned by another record
	ErrRecordExists = errors.New("record already exists")
	// ErrMissingKey is returned when a descriptor carries no key
	ErrMissingKey = errors.New(`descriptor has no "key" field`)
	// ErrStoreLocked is returned when the store is locked by another process
	ErrStoreLocked = util.ErrLocked
	// ErrStoreCorrupted is returned when the store data is corrupted or invalid
	ErrStoreCorrupted = util.ErrCorrupted
)

// RecordStore is the collaborator the import reconciler works against.
//
//go:generate mockgen -destination=../mock/record_store_mock.go -package=mock github.com/acfsync/acfsync/internal/store RecordStore
type RecordStore interface {
	// ClassifyByKey derives the record category from a key
	ClassifyByKey(ctx context.Context, key string) (domain.Category, error)
	// FindByKeyAndCategory returns ErrRecordNotFound when no record matches
	FindByKeyAndCategory(ctx context.Context, key string, category domain.Category) (*domain.Record, error)
	// Persist creates the record when the descriptor has no ID and updates it
	// otherwise, returning the descriptor as stored including its ID
	Persist(ctx context.Context, d domain.Descriptor, category domain.Category) (domain.Descriptor, error)
}

// Store is the full record store used by the CLI
type Store interface {
	RecordStore

	ListRecords(ctx context.Context, category domain.Category) ([]*domain.Record, error)
	GetRecord(ctx context.Context, id int64) (*domain.Record, error)
	CountRecords(ctx context.Context) (map[domain.Category]int, error)

	LogOperation(ctx context.Context, op *domain.Operation) error
	GetAuditLog(ctx context.Context) ([]*domain.Operation, error)

	VerifyIntegrity(ctx context.Context) error
	Path() string
	Close() error
}

// Open opens the record store selected by cfg.Driver, creating it if missing
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (Store, error) {
	switch cfg.Driver {
	case config.DriverBolt:
		bs := NewBoltStore(log)
		if err := bs.Open(cfg.StorePath, cfg.LockTimeout); err != nil {
			return nil, err
		}
		return bs, nil
	case config.DriverSQLite:
		return OpenSQLStore(ctx, cfg.StorePath, log)
	default:
		return nil, &util.ConfigurationError{Msg: fmt.Sprintf("unknown record store driver %q", cfg.Driver)}
	}
}

// CheckReady verifies the store can classify, look up and persist records
// before any reconciliation starts.
func CheckReady(ctx context.Context, s Store) error {
	if s == nil {
		return &util.ConfigurationError{Msg: "no record store configured"}
	}
	if err := s.VerifyIntegrity(ctx); err != nil {
		return &util.ConfigurationError{Msg: "required record store capabilities are unavailable", Err: err}
	}
	return nil
}
