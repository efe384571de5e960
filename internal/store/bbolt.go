package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/acfsync/acfsync/internal/domain"
	"github.com/acfsync/acfsync/internal/logger"
)

// Bucket names
var (
	MetadataBucket = []byte("metadata")
	AuditBucket    = []byte("audit")
)

// storeInfoKey holds the StoreInfo document inside MetadataBucket
var storeInfoKey = []byte("store_info")

// StoreVersion is written to new stores and checked on open
const StoreVersion = "1.0.0"

// StoreInfo is the metadata document kept in every bolt store
type StoreInfo struct {
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

func recordsBucketName(c domain.Category) []byte { return []byte("records:" + string(c)) }
func keysBucketName(c domain.Category) []byte    { return []byte("keys:" + string(c)) }

// BoltStore implements Store using BoltDB
type BoltStore struct {
	db     *bbolt.DB
	path   string
	lock   *FileLock
	log    *logger.Logger
	now    func() time.Time
	isOpen bool
}

// NewBoltStore creates a new BoltDB-based record store
func NewBoltStore(log *logger.Logger) *BoltStore {
	return &BoltStore{
		log: log.Component("bolt"),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Open opens the store at path, creating the file and its buckets when missing.
// A second process opening the same path waits up to timeout and then fails
// with ErrStoreLocked.
func (bs *BoltStore) Open(path string, timeout time.Duration) error {
	if bs.isOpen {
		return fmt.Errorf("record store is already open")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	lock := NewFileLock(path)
	if err := lock.Lock(timeout); err != nil {
		if errors.Is(err, ErrLockTimeout) {
			return fmt.Errorf("%w: %s", ErrStoreLocked, lock.Path())
		}
		return fmt.Errorf("failed to lock record store: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: timeout})
	if err != nil {
		_ = lock.Unlock()
		return fmt.Errorf("failed to open record store: %w", err)
	}

	if err := db.Update(bs.initBuckets); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return err
	}

	if err := EnsureFilePermissions(path); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return fmt.Errorf("failed to verify store permissions: %w", err)
	}

	bs.db = db
	bs.path = path
	bs.lock = lock
	bs.isOpen = true
	bs.log.Debug().Str("path", path).Msg("record store opened")

	return nil
}

// initBuckets creates any missing bucket and the metadata document
func (bs *BoltStore) initBuckets(tx *bbolt.Tx) error {
	meta, err := tx.CreateBucketIfNotExists(MetadataBucket)
	if err != nil {
		return fmt.Errorf("failed to create metadata bucket: %w", err)
	}

	if meta.Get(storeInfoKey) == nil {
		info := StoreInfo{Version: StoreVersion, CreatedAt: bs.now()}
		data, err := json.Marshal(info)
		if err != nil {
			return fmt.Errorf("failed to marshal store info: %w", err)
		}
		if err := meta.Put(storeInfoKey, data); err != nil {
			return fmt.Errorf("failed to store store info: %w", err)
		}
	}

	if _, err := tx.CreateBucketIfNotExists(AuditBucket); err != nil {
		return fmt.Errorf("failed to create audit bucket: %w", err)
	}

	for _, c := range domain.Categories() {
		if _, err := tx.CreateBucketIfNotExists(recordsBucketName(c)); err != nil {
			return fmt.Errorf("failed to create records bucket for %s: %w", c, err)
		}
		if _, err := tx.CreateBucketIfNotExists(keysBucketName(c)); err != nil {
			return fmt.Errorf("failed to create key index for %s: %w", c, err)
		}
	}

	return nil
}

// Close closes the store and releases the file lock
func (bs *BoltStore) Close() error {
	if !bs.isOpen {
		return nil
	}

	var err error
	if bs.db != nil {
		if dbErr := bs.db.Close(); dbErr != nil {
			err = dbErr
		}
		bs.db = nil
	}

	if bs.lock != nil {
		if lockErr := bs.lock.Unlock(); lockErr != nil && err == nil {
			err = lockErr
		}
		bs.lock = nil
	}

	bs.isOpen = false
	bs.log.Debug().Str("path", bs.path).Msg("record store closed")
	return err
}

// IsOpen returns true if the store is currently open
func (bs *BoltStore) IsOpen() bool {
	return bs.isOpen
}

// Path returns the store file path
func (bs *BoltStore) Path() string {
	return bs.path
}

// ClassifyByKey derives the record category from a key
func (bs *BoltStore) ClassifyByKey(_ context.Context, key string) (domain.Category, error) {
	return domain.ClassifyKey(key)
}

// FindByKeyAndCategory looks a record up through the per-category key index
func (bs *BoltStore) FindByKeyAndCategory(_ context.Context, key string, category domain.Category) (*domain.Record, error) {
	if !bs.isOpen {
		return nil, ErrStoreNotOpen
	}

	var rec *domain.Record
	err := bs.db.View(func(tx *bbolt.Tx) error {
		records, keys, err := categoryBuckets(tx, category)
		if err != nil {
			return err
		}

		idBytes := keys.Get([]byte(key))
		if idBytes == nil {
			return ErrRecordNotFound
		}

		rec, err = getRecord(records, idBytes)
		return err
	})

	return rec, err
}

// Persist creates or updates the record described by d
func (bs *BoltStore) Persist(_ context.Context, d domain.Descriptor, category domain.Category) (domain.Descriptor, error) {
	if !bs.isOpen {
		return nil, ErrStoreNotOpen
	}

	key := d.Key()
	if key == "" {
		return nil, ErrMissingKey
	}

	var persisted domain.Descriptor
	err := bs.db.Update(func(tx *bbolt.Tx) error {
		records, keys, err := categoryBuckets(tx, category)
		if err != nil {
			return err
		}

		now := bs.now()
		owner := keys.Get([]byte(key))

		var rec *domain.Record
		if id, ok := d.ID(); ok {
			existing, err := getRecord(records, idKey(id))
			if err != nil {
				return fmt.Errorf("cannot update %s #%d: %w", category, id, err)
			}
			if owner != nil && !bytes.Equal(owner, idKey(id)) {
				return fmt.Errorf("%w: key %s belongs to another %s", ErrRecordExists, key, category)
			}
			if existing.Key != key {
				if err := keys.Delete([]byte(existing.Key)); err != nil {
					return fmt.Errorf("failed to drop old key %s: %w", existing.Key, err)
				}
			}
			if rec, err = applyUpdate(existing, d, now); err != nil {
				return err
			}
		} else {
			if owner != nil {
				return fmt.Errorf("%w: %s %s", ErrRecordExists, category, key)
			}
			seq, err := tx.Bucket(MetadataBucket).NextSequence()
			if err != nil {
				return fmt.Errorf("failed to allocate record id: %w", err)
			}
			rec = newRecord(int64(seq), d, category, now)
		}

		if err := putRecord(records, keys, rec); err != nil {
			return err
		}
		persisted = rec.Descriptor()
		return nil
	})
	if err != nil {
		return nil, err
	}

	return persisted, nil
}

// ListRecords returns records of one category, or all records when category
// is empty, ordered by ID
func (bs *BoltStore) ListRecords(_ context.Context, category domain.Category) ([]*domain.Record, error) {
	if !bs.isOpen {
		return nil, ErrStoreNotOpen
	}

	categories := domain.Categories()
	if category != "" {
		categories = []domain.Category{category}
	}

	var out []*domain.Record
	err := bs.db.View(func(tx *bbolt.Tx) error {
		for _, c := range categories {
			records, _, err := categoryBuckets(tx, c)
			if err != nil {
				return err
			}
			if err := records.ForEach(func(k, v []byte) error {
				rec, err := decodeRecord(v)
				if err != nil {
					return err
				}
				out = append(out, rec)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetRecord returns the record with the given ID from any category
func (bs *BoltStore) GetRecord(_ context.Context, id int64) (*domain.Record, error) {
	if !bs.isOpen {
		return nil, ErrStoreNotOpen
	}

	var rec *domain.Record
	err := bs.db.View(func(tx *bbolt.Tx) error {
		for _, c := range domain.Categories() {
			records, _, err := categoryBuckets(tx, c)
			if err != nil {
				return err
			}
			if v := records.Get(idKey(id)); v != nil {
				rec, err = decodeRecord(v)
				return err
			}
		}
		return ErrRecordNotFound
	})

	return rec, err
}

// CountRecords returns the number of records per category
func (bs *BoltStore) CountRecords(_ context.Context) (map[domain.Category]int, error) {
	if !bs.isOpen {
		return nil, ErrStoreNotOpen
	}

	counts := make(map[domain.Category]int)
	err := bs.db.View(func(tx *bbolt.Tx) error {
		for _, c := range domain.Categories() {
			records, _, err := categoryBuckets(tx, c)
			if err != nil {
				return err
			}
			counts[c] = records.Stats().KeyN
		}
		return nil
	})

	return counts, err
}

// LogOperation appends an audit entry in the audit bucket
func (bs *BoltStore) LogOperation(_ context.Context, op *domain.Operation) error {
	if !bs.isOpen {
		return ErrStoreNotOpen
	}
	if op == nil {
		return fmt.Errorf("operation cannot be nil")
	}
	if op.Timestamp.IsZero() {
		op.Timestamp = bs.now()
	}

	return bs.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(AuditBucket)
		if bucket == nil {
			return fmt.Errorf("%w: audit bucket not found", ErrStoreCorrupted)
		}

		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate audit sequence: %w", err)
		}

		payload, err := json.Marshal(op)
		if err != nil {
			return fmt.Errorf("failed to encode audit entry: %w", err)
		}

		return bucket.Put(idKey(int64(seq)), payload)
	})
}

// GetAuditLog returns audit operations in chronological order
func (bs *BoltStore) GetAuditLog(_ context.Context) ([]*domain.Operation, error) {
	if !bs.isOpen {
		return nil, ErrStoreNotOpen
	}

	var ops []*domain.Operation
	err := bs.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(AuditBucket)
		if bucket == nil {
			return fmt.Errorf("%w: audit bucket not found", ErrStoreCorrupted)
		}

		return bucket.ForEach(func(k, v []byte) error {
			var op domain.Operation
			if err := json.Unmarshal(v, &op); err != nil {
				return fmt.Errorf("failed to decode audit entry: %w", err)
			}
			op.Timestamp = op.Timestamp.UTC()
			ops = append(ops, &op)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return ops, nil
}

// VerifyIntegrity checks required buckets, the metadata document and that
// every key index entry points at a record carrying that key
func (bs *BoltStore) VerifyIntegrity(_ context.Context) error {
	if !bs.isOpen {
		return ErrStoreNotOpen
	}

	return bs.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(MetadataBucket)
		if meta == nil {
			return fmt.Errorf("%w: missing bucket %s", ErrStoreCorrupted, MetadataBucket)
		}
		if tx.Bucket(AuditBucket) == nil {
			return fmt.Errorf("%w: missing bucket %s", ErrStoreCorrupted, AuditBucket)
		}

		var info StoreInfo
		if err := json.Unmarshal(meta.Get(storeInfoKey), &info); err != nil {
			return fmt.Errorf("%w: unreadable store info: %v", ErrStoreCorrupted, err)
		}
		if info.Version != StoreVersion {
			return fmt.Errorf("%w: unsupported store version %q", ErrStoreCorrupted, info.Version)
		}

		for _, c := range domain.Categories() {
			records, keys, err := categoryBuckets(tx, c)
			if err != nil {
				return err
			}
			if err := keys.ForEach(func(k, v []byte) error {
				rec, err := getRecord(records, v)
				if err != nil {
					return fmt.Errorf("%w: key %s in %s points at a missing record", ErrStoreCorrupted, k, c)
				}
				if rec.Key != string(k) {
					return fmt.Errorf("%w: key %s in %s points at record %d", ErrStoreCorrupted, k, c, rec.ID)
				}
				return nil
			}); err != nil {
				return err
			}
		}

		return nil
	})
}

func categoryBuckets(tx *bbolt.Tx, c domain.Category) (records, keys *bbolt.Bucket, err error) {
	records = tx.Bucket(recordsBucketName(c))
	keys = tx.Bucket(keysBucketName(c))
	if records == nil || keys == nil {
		return nil, nil, fmt.Errorf("%w: no buckets for category %q", ErrStoreCorrupted, c)
	}
	return records, keys, nil
}

func getRecord(records *bbolt.Bucket, id []byte) (*domain.Record, error) {
	v := records.Get(id)
	if v == nil {
		return nil, ErrRecordNotFound
	}
	return decodeRecord(v)
}

func putRecord(records, keys *bbolt.Bucket, rec *domain.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	id := idKey(rec.ID)
	if err := records.Put(id, data); err != nil {
		return fmt.Errorf("failed to store record: %w", err)
	}
	if err := keys.Put([]byte(rec.Key), id); err != nil {
		return fmt.Errorf("failed to index record key: %w", err)
	}
	return nil
}

// decodeRecord keeps numbers as json.Number so exported fields match the input
func decodeRecord(data []byte) (*domain.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var rec domain.Record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("%w: undecodable record: %v", ErrStoreCorrupted, err)
	}
	return &rec, nil
}

func idKey(id int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}
