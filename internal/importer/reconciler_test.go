package importer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/acfsync/acfsync/internal/domain"
	"github.com/acfsync/acfsync/internal/logger"
	"github.com/acfsync/acfsync/internal/mock"
	"github.com/acfsync/acfsync/internal/store"
	"github.com/acfsync/acfsync/internal/util"
)

// memStore is an in-memory RecordStore whose ID sequence starts at next
type memStore struct {
	next     int64
	records  map[string]*domain.Record
	persists int
}

func newMemStore(start int64) *memStore {
	return &memStore{next: start, records: map[string]*domain.Record{}}
}

func (m *memStore) ClassifyByKey(_ context.Context, key string) (domain.Category, error) {
	return domain.ClassifyKey(key)
}

func (m *memStore) FindByKeyAndCategory(_ context.Context, key string, category domain.Category) (*domain.Record, error) {
	rec, ok := m.records[string(category)+"/"+key]
	if !ok {
		return nil, store.ErrRecordNotFound
	}
	return rec, nil
}

func (m *memStore) Persist(_ context.Context, d domain.Descriptor, category domain.Category) (domain.Descriptor, error) {
	m.persists++
	k := string(category) + "/" + d.Key()
	if id, ok := d.ID(); ok {
		rec := m.records[k]
		if rec == nil || rec.ID != id {
			return nil, store.ErrRecordNotFound
		}
		for f, v := range d.WithoutID() {
			rec.Fields[f] = v
		}
		return rec.Descriptor(), nil
	}
	rec := &domain.Record{ID: m.next, Key: d.Key(), Category: category, Fields: d.WithoutID()}
	m.next++
	m.records[k] = rec
	return rec.Descriptor(), nil
}

func TestReconcile_SequenceStartingAt101(t *testing.T) {
	ctx := context.Background()
	fake := newMemStore(101)
	r := NewReconciler(fake, logger.Nop(), Options{})

	batch, err := ParseBatch([]byte(`[{"key":"group_1"},{"key":"group_2"}]`))
	require.NoError(t, err)

	res, err := r.Reconcile(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, []int64{101, 102}, res.IDs)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, domain.ActionCreated, res.Outcomes[0].Action)

	again, err := r.Reconcile(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, []int64{101, 102}, again.IDs)
	assert.Equal(t, 2, again.Total)
	assert.Equal(t, domain.ActionUpdated, again.Outcomes[1].Action)
	assert.Len(t, fake.records, 2)
}

func TestReconcile_DoesNotMutateInput(t *testing.T) {
	fake := newMemStore(1)
	batch := domain.Batch{{"key": "group_1", "ID": int64(999)}}

	res, err := NewReconciler(fake, logger.Nop(), Options{}).Reconcile(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, res.IDs, "a stale ID in the input is ignored for unseen keys")
	assert.Equal(t, int64(999), batch[0]["ID"])
}

func TestReconcile_DuplicateKeysShareRecord(t *testing.T) {
	fake := newMemStore(1)
	batch := domain.Batch{
		{"key": "group_1", "title": "First"},
		{"key": "group_1", "title": "Second"},
	}

	res, err := NewReconciler(fake, logger.Nop(), Options{}).Reconcile(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 1}, res.IDs)
	assert.Equal(t, domain.ActionCreated, res.Outcomes[0].Action)
	assert.Equal(t, domain.ActionUpdated, res.Outcomes[1].Action)
	assert.Equal(t, "Second", fake.records["acf-field-group/group_1"].Fields["title"])
}

func TestReconcile_SingleObjectEqualsOneElementArray(t *testing.T) {
	ctx := context.Background()

	single, err := ParseBatch([]byte(`{"key":"taxonomy_genre","title":"Genre"}`))
	require.NoError(t, err)
	array, err := ParseBatch([]byte(`[{"key":"taxonomy_genre","title":"Genre"}]`))
	require.NoError(t, err)
	assert.Equal(t, array, single)

	a, err := NewReconciler(newMemStore(7), logger.Nop(), Options{}).Reconcile(ctx, single)
	require.NoError(t, err)
	b, err := NewReconciler(newMemStore(7), logger.Nop(), Options{}).Reconcile(ctx, array)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestReconcile_PreconditionsTouchNoStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mock.NewMockRecordStore(ctrl)
	r := NewReconciler(m, logger.Nop(), Options{})

	_, err := r.Reconcile(context.Background(), nil)
	var recErr *util.ReconciliationError
	require.ErrorAs(t, err, &recErr)

	_, err = r.Reconcile(context.Background(), domain.Batch{{"key": "group_1"}, {"title": "no key"}})
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, 1, recErr.Index)
	assert.Equal(t, `import item 1 has no "key" field`, err.Error())
}

func TestReconcile_OrderOfStoreCalls(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	m := mock.NewMockRecordStore(ctrl)

	existing := &domain.Record{ID: 40, Key: "post_type_book", Category: domain.CategoryPostType}

	gomock.InOrder(
		m.EXPECT().ClassifyByKey(ctx, "group_new").Return(domain.CategoryFieldGroup, nil),
		m.EXPECT().FindByKeyAndCategory(ctx, "group_new", domain.CategoryFieldGroup).Return(nil, store.ErrRecordNotFound),
		m.EXPECT().Persist(ctx, domain.Descriptor{"key": "group_new"}, domain.CategoryFieldGroup).
			Return(domain.Descriptor{"key": "group_new", "ID": int64(41)}, nil),

		m.EXPECT().ClassifyByKey(ctx, "post_type_book").Return(domain.CategoryPostType, nil),
		m.EXPECT().FindByKeyAndCategory(ctx, "post_type_book", domain.CategoryPostType).Return(existing, nil),
		m.EXPECT().Persist(ctx, domain.Descriptor{"key": "post_type_book", "label": "Books", "ID": int64(40)}, domain.CategoryPostType).
			Return(domain.Descriptor{"key": "post_type_book", "label": "Books", "ID": int64(40)}, nil),
	)

	batch := domain.Batch{{"key": "group_new"}, {"key": "post_type_book", "label": "Books"}}
	res, err := NewReconciler(m, logger.Nop(), Options{}).Reconcile(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, []int64{41, 40}, res.IDs)
	assert.Equal(t, []domain.Outcome{
		{Key: "group_new", Category: domain.CategoryFieldGroup, ID: 41, Action: domain.ActionCreated},
		{Key: "post_type_book", Category: domain.CategoryPostType, ID: 40, Action: domain.ActionUpdated},
	}, res.Outcomes)
}

func TestReconcile_ThirdOfFiveFails(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	m := mock.NewMockRecordStore(ctrl)
	boom := errors.New("disk full")

	m.EXPECT().ClassifyByKey(gomock.Any(), gomock.Any()).Return(domain.CategoryFieldGroup, nil).Times(3)
	m.EXPECT().FindByKeyAndCategory(gomock.Any(), gomock.Any(), domain.CategoryFieldGroup).
		Return(nil, store.ErrRecordNotFound).Times(3)

	var persisted []string
	m.EXPECT().Persist(gomock.Any(), gomock.Any(), domain.CategoryFieldGroup).
		DoAndReturn(func(_ context.Context, d domain.Descriptor, _ domain.Category) (domain.Descriptor, error) {
			if len(persisted) == 2 {
				return nil, boom
			}
			persisted = append(persisted, d.Key())
			return d.WithID(int64(len(persisted))), nil
		}).Times(3)

	batch := domain.Batch{{"key": "group_1"}, {"key": "group_2"}, {"key": "group_3"}, {"key": "group_4"}, {"key": "group_5"}}
	res, err := NewReconciler(m, logger.Nop(), Options{}).Reconcile(ctx, batch)

	assert.Nil(t, res)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "disk full", err.Error())
	var recErr *util.ReconciliationError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, 2, recErr.Index)
	assert.Equal(t, "group_3", recErr.Key)
	assert.Equal(t, []string{"group_1", "group_2"}, persisted)
	assert.Equal(t, util.ExitError, util.ExitCode(err))
}

func TestReconcile_ClassifyFailureAborts(t *testing.T) {
	fake := newMemStore(1)
	batch := domain.Batch{{"key": "group_ok"}, {"key": "field_bad"}, {"key": "group_never"}}

	res, err := NewReconciler(fake, logger.Nop(), Options{}).Reconcile(context.Background(), batch)
	assert.Nil(t, res)
	require.ErrorIs(t, err, domain.ErrUnknownCategory)
	assert.Equal(t, 1, fake.persists)
	assert.Contains(t, fake.records, "acf-field-group/group_ok")
	assert.NotContains(t, fake.records, "acf-field-group/group_never")
}

func TestReconcile_LookupFailureAborts(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mock.NewMockRecordStore(ctrl)
	lookupErr := errors.New("database is locked")

	m.EXPECT().ClassifyByKey(gomock.Any(), "group_1").Return(domain.CategoryFieldGroup, nil)
	m.EXPECT().FindByKeyAndCategory(gomock.Any(), "group_1", domain.CategoryFieldGroup).Return(nil, lookupErr)

	_, err := NewReconciler(m, logger.Nop(), Options{}).Reconcile(context.Background(), domain.Batch{{"key": "group_1"}})
	require.ErrorIs(t, err, lookupErr)
}

func TestReconcile_DryRunNeverPersists(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	m := mock.NewMockRecordStore(ctrl)

	m.EXPECT().ClassifyByKey(ctx, "group_a").Return(domain.CategoryFieldGroup, nil)
	m.EXPECT().FindByKeyAndCategory(ctx, "group_a", domain.CategoryFieldGroup).
		Return(&domain.Record{ID: 12, Key: "group_a", Category: domain.CategoryFieldGroup}, nil)
	m.EXPECT().ClassifyByKey(ctx, "group_b").Return(domain.CategoryFieldGroup, nil)
	m.EXPECT().FindByKeyAndCategory(ctx, "group_b", domain.CategoryFieldGroup).Return(nil, store.ErrRecordNotFound)
	m.EXPECT().Persist(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	r := NewReconciler(m, logger.Nop(), Options{DryRun: true})
	res, err := r.Reconcile(ctx, domain.Batch{{"key": "group_a"}, {"key": "group_b"}})
	require.NoError(t, err)
	assert.Equal(t, []int64{12, 0}, res.IDs)
	assert.Equal(t, domain.ActionUpdated, res.Outcomes[0].Action)
	assert.Equal(t, domain.ActionCreated, res.Outcomes[1].Action)
}

func TestReconcile_MissingIDFromStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mock.NewMockRecordStore(ctrl)

	m.EXPECT().ClassifyByKey(gomock.Any(), "group_1").Return(domain.CategoryFieldGroup, nil)
	m.EXPECT().FindByKeyAndCategory(gomock.Any(), "group_1", domain.CategoryFieldGroup).Return(nil, store.ErrRecordNotFound)
	m.EXPECT().Persist(gomock.Any(), gomock.Any(), domain.CategoryFieldGroup).Return(domain.Descriptor{"key": "group_1"}, nil)

	_, err := NewReconciler(m, logger.Nop(), Options{}).Reconcile(context.Background(), domain.Batch{{"key": "group_1"}})
	assert.ErrorContains(t, err, "no ID")
}

func TestReconcile_AgainstBoltStore(t *testing.T) {
	ctx := context.Background()
	bs := store.NewBoltStore(logger.Nop())
	require.NoError(t, bs.Open(filepath.Join(t.TempDir(), "records.db"), time.Second))
	defer bs.Close()
	r := NewReconciler(bs, logger.Nop(), Options{})

	first, err := ParseBatch([]byte(`[
		{"key":"group_hero","title":"Hero","location":"front-page"},
		{"key":"post_type_book","title":"Books"},
		{"key":"ui_options_page_site","title":"Site"}
	]`))
	require.NoError(t, err)

	res, err := r.Reconcile(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, res.IDs)

	// partial update keeps the stored location
	second, err := ParseBatch([]byte(`{"key":"group_hero","title":"Hero v2"}`))
	require.NoError(t, err)
	res, err = r.Reconcile(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, res.IDs)

	rec, err := bs.FindByKeyAndCategory(ctx, "group_hero", domain.CategoryFieldGroup)
	require.NoError(t, err)
	assert.Equal(t, "Hero v2", rec.Title)
	assert.Equal(t, "front-page", rec.Fields["location"])

	res, err = r.Reconcile(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, res.IDs)

	all, err := bs.ListRecords(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
