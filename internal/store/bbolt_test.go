package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/acfsync/acfsync/internal/domain"
	"github.com/acfsync/acfsync/internal/logger"
	"github.com/acfsync/acfsync/internal/util"
)

func openBolt(t *testing.T, path string) *BoltStore {
	t.Helper()
	bs := NewBoltStore(logger.Nop())
	require.NoError(t, bs.Open(path, time.Second))
	t.Cleanup(func() { _ = bs.Close() })
	return bs
}

func TestBoltStore_OpenTwiceInProcess(t *testing.T) {
	bs := openBolt(t, filepath.Join(t.TempDir(), "records.db"))
	assert.True(t, bs.IsOpen())
	assert.Error(t, bs.Open(bs.Path(), time.Second))
}

func TestBoltStore_LockedByAnotherWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.db")
	first := openBolt(t, path)

	second := NewBoltStore(logger.Nop())
	err := second.Open(path, 100*time.Millisecond)
	require.ErrorIs(t, err, ErrStoreLocked)
	assert.Equal(t, util.ExitStoreLocked, util.ExitCode(err))
	assert.False(t, second.IsOpen())

	require.NoError(t, first.Close())
	require.NoError(t, second.Open(path, time.Second))
	require.NoError(t, second.Close())
}

func TestBoltStore_ClosedStoreOperations(t *testing.T) {
	ctx := context.Background()
	bs := NewBoltStore(logger.Nop())

	_, err := bs.FindByKeyAndCategory(ctx, "group_1", domain.CategoryFieldGroup)
	assert.ErrorIs(t, err, ErrStoreNotOpen)
	_, err = bs.Persist(ctx, domain.Descriptor{"key": "group_1"}, domain.CategoryFieldGroup)
	assert.ErrorIs(t, err, ErrStoreNotOpen)
	_, err = bs.ListRecords(ctx, "")
	assert.ErrorIs(t, err, ErrStoreNotOpen)
	assert.ErrorIs(t, bs.LogOperation(ctx, &domain.Operation{}), ErrStoreNotOpen)
	assert.NoError(t, bs.Close())
}

func TestBoltStore_VerifyIntegrityDetectsDanglingKey(t *testing.T) {
	ctx := context.Background()
	bs := openBolt(t, filepath.Join(t.TempDir(), "records.db"))

	_, err := bs.Persist(ctx, domain.Descriptor{"key": "group_1"}, domain.CategoryFieldGroup)
	require.NoError(t, err)
	require.NoError(t, bs.VerifyIntegrity(ctx))

	err = bs.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(keysBucketName(domain.CategoryFieldGroup)).Put([]byte("group_ghost"), idKey(77))
	})
	require.NoError(t, err)

	err = bs.VerifyIntegrity(ctx)
	require.ErrorIs(t, err, ErrStoreCorrupted)
	assert.Contains(t, err.Error(), "group_ghost")
	assert.Equal(t, util.ExitIntegrityErr, util.ExitCode(err))

	ready := CheckReady(ctx, bs)
	var cfgErr *util.ConfigurationError
	assert.ErrorAs(t, ready, &cfgErr)
}

func TestBoltStore_UndecodableRecord(t *testing.T) {
	ctx := context.Background()
	bs := openBolt(t, filepath.Join(t.TempDir(), "records.db"))

	err := bs.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(recordsBucketName(domain.CategoryTaxonomy)).Put(idKey(5), []byte("{broken"))
	})
	require.NoError(t, err)

	_, err = bs.GetRecord(ctx, 5)
	assert.ErrorIs(t, err, ErrStoreCorrupted)
}

func TestBoltStore_StoreFileIsPrivate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.db")
	openBolt(t, path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Mode().Perm()&0o077)
}
