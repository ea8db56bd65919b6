package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"plantshop/internal/database"
	"plantshop/internal/events"
	"plantshop/internal/logger"
	"plantshop/internal/models"
	"plantshop/internal/services/lightspeed"
	"plantshop/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVendor struct {
	mu         sync.Mutex
	items      []lightspeed.Item
	categories []lightspeed.Category
	vendors    []lightspeed.Vendor
	itemsErr   error
	fetchErr   error
	fetched    []string
}

func (f *fakeVendor) FetchAllItems(ctx context.Context) ([]lightspeed.Item, error) {
	return f.items, f.itemsErr
}

func (f *fakeVendor) FetchCategories(ctx context.Context) ([]lightspeed.Category, error) {
	return f.categories, nil
}

func (f *fakeVendor) FetchVendors(ctx context.Context) ([]lightspeed.Vendor, error) {
	return f.vendors, nil
}

func (f *fakeVendor) FetchItem(ctx context.Context, itemID string) (*lightspeed.Item, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, itemID)
	f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	for _, item := range f.items {
		if item.ItemID == itemID {
			found := item
			return &found, nil
		}
	}
	return nil, fmt.Errorf("item %s: %w", itemID, lightspeed.ErrNotFound)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := database.New("sqlite://:memory:", false)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return store.New(db.DB, logger.Discard(), func() time.Time {
		return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	})
}

func newTransformer() *lightspeed.Transformer {
	return lightspeed.NewTransformer("", func() time.Time {
		return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	})
}

func item(id, name, vendorID string, qoh string) lightspeed.Item {
	return lightspeed.Item{
		ItemID:          id,
		Description:     name,
		PublishToEcom:   true,
		DefaultCost:     "10",
		DefaultVendorID: vendorID,
		TimeStamp:       "2024-05-01T00:00:00+00:00",
		ItemShops:       []lightspeed.ItemShop{{QOH: qoh}},
	}
}

func activeIDs(t *testing.T, st *store.Store) []string {
	t.Helper()
	products, err := st.ListProducts(context.Background(), store.ProductFilter{SortBy: models.SortNameAZ})
	require.NoError(t, err)
	ids := []string{}
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestFullSyncDropsArchivedVendor(t *testing.T) {
	st := newTestStore(t)
	vendor := &fakeVendor{
		items: []lightspeed.Item{
			item("1", "Alocasia", "10", "2"),
			item("2", "Begonia", "20", "1"),
			item("3", "Croton", "", "0"),
		},
		vendors: []lightspeed.Vendor{
			{VendorID: "10", Archived: false},
			{VendorID: "20", Archived: true},
		},
	}
	syncer := NewSyncer(vendor, st, newTransformer(), time.Minute, logger.Discard())

	result, err := syncer.Run(context.Background(), models.SyncTypeFull)
	require.NoError(t, err)

	assert.Equal(t, 2, result.ItemsSynced)
	assert.Equal(t, []string{"1", "3"}, activeIDs(t, st))

	logs, err := st.LatestSyncLogs(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.SyncStatusCompleted, logs[0].Status)
	assert.Equal(t, 2, logs[0].ItemsSynced)
	assert.Equal(t, result.LogID, logs[0].ID)
}

func TestFullSyncArchivesRemovedProducts(t *testing.T) {
	st := newTestStore(t)
	vendor := &fakeVendor{items: []lightspeed.Item{
		item("1", "Alocasia", "", "2"),
		item("2", "Begonia", "", "1"),
	}}
	syncer := NewSyncer(vendor, st, newTransformer(), time.Minute, logger.Discard())
	_, err := syncer.Run(context.Background(), models.SyncTypeFull)
	require.NoError(t, err)

	vendor.items = vendor.items[:1]
	result, err := syncer.Run(context.Background(), models.SyncTypeFull)
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.Archived)
	assert.Equal(t, []string{"1"}, activeIDs(t, st))
}

func TestFullSyncWithEmptyCatalogSkipsArchival(t *testing.T) {
	st := newTestStore(t)
	vendor := &fakeVendor{items: []lightspeed.Item{item("1", "Alocasia", "", "2")}}
	syncer := NewSyncer(vendor, st, newTransformer(), time.Minute, logger.Discard())
	_, err := syncer.Run(context.Background(), models.SyncTypeFull)
	require.NoError(t, err)

	vendor.items = nil
	result, err := syncer.Run(context.Background(), models.SyncTypeFull)
	require.NoError(t, err)

	assert.Equal(t, 0, result.ItemsSynced)
	assert.Equal(t, []string{"1"}, activeIDs(t, st))
}

func TestSyncFailureLeavesOneFailedLog(t *testing.T) {
	st := newTestStore(t)
	vendor := &fakeVendor{itemsErr: errors.New("lightspeed down")}
	syncer := NewSyncer(vendor, st, newTransformer(), time.Minute, logger.Discard())

	_, err := syncer.Run(context.Background(), models.SyncTypeInventory)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lightspeed down")

	logs, err := st.LatestSyncLogs(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.SyncStatusFailed, logs[0].Status)
	assert.Equal(t, models.SyncTypeInventory, logs[0].SyncType)
	require.NotNil(t, logs[0].Errors)
	assert.Contains(t, *logs[0].Errors, "lightspeed down")
}

func TestInventorySync(t *testing.T) {
	st := newTestStore(t)
	vendor := &fakeVendor{items: []lightspeed.Item{
		item("1", "Alocasia", "", "2"),
		item("2", "Begonia", "", "1"),
	}}
	syncer := NewSyncer(vendor, st, newTransformer(), time.Minute, logger.Discard())
	_, err := syncer.Run(context.Background(), models.SyncTypeFull)
	require.NoError(t, err)

	vendor.items = []lightspeed.Item{
		item("1", "Alocasia", "", "0"),
		item("2", "Begonia", "", "7"),
		item("99", "Unknown", "", "3"),
	}
	result, err := syncer.Run(context.Background(), models.SyncTypeInventory)
	require.NoError(t, err)
	assert.Equal(t, 3, result.ItemsSynced)

	p1, err := st.ProductByID(context.Background(), "1")
	require.NoError(t, err)
	assert.False(t, p1.InStock)
	assert.Equal(t, 0, p1.Quantity)

	p2, err := st.ProductByID(context.Background(), "2")
	require.NoError(t, err)
	assert.Equal(t, 7, p2.Quantity)
}

type failingLogStore struct {
	Store
	recorded int32
}

func (f *failingLogStore) StartSyncLog(ctx context.Context, syncType models.SyncType) (*models.SyncLog, error) {
	return nil, errors.New("database unavailable")
}

func (f *failingLogStore) RecordFailedSync(ctx context.Context, syncType models.SyncType, startedAt time.Time, cause error) error {
	atomic.AddInt32(&f.recorded, 1)
	return nil
}

func TestSyncRecordsFailureWhenStartLogFails(t *testing.T) {
	st := &failingLogStore{Store: newTestStore(t)}
	vendor := &fakeVendor{}
	syncer := NewSyncer(vendor, st, newTransformer(), time.Minute, logger.Discard())

	_, err := syncer.Run(context.Background(), models.SyncTypeFull)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&st.recorded))
}

type completeFailingStore struct {
	*store.Store
}

func (f completeFailingStore) CompleteSyncLog(ctx context.Context, id string, itemsSynced int) error {
	return errors.New("connection reset")
}

func TestSyncMarksLogFailedWhenCompletionFails(t *testing.T) {
	st := newTestStore(t)
	vendor := &fakeVendor{items: []lightspeed.Item{item("1", "Fern", "", "2")}}
	syncer := NewSyncer(vendor, completeFailingStore{st}, newTransformer(), time.Minute, logger.Discard())

	_, err := syncer.Run(context.Background(), models.SyncTypeFull)
	require.Error(t, err)

	logs, err := st.LatestSyncLogs(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.SyncStatusFailed, logs[0].Status)
	require.NotNil(t, logs[0].Errors)
	assert.Contains(t, *logs[0].Errors, "connection reset")
}

func TestDispatchItemUpdated(t *testing.T) {
	st := newTestStore(t)
	vendor := &fakeVendor{items: []lightspeed.Item{item("5", "Pothos\n[careLevel:easy] Trailing", "", "4")}}
	d := NewDispatcher(vendor, st, newTransformer(), logger.Discard())

	err := d.Dispatch(context.Background(), events.Event{Event: events.ItemUpdated, Data: map[string]interface{}{"itemID": "5"}})
	require.NoError(t, err)

	p, err := st.ProductByID(context.Background(), "5")
	require.NoError(t, err)
	assert.Equal(t, "Pothos", p.Name)
	assert.Equal(t, models.CareEasy, p.Attributes.CareLevel)
	assert.Equal(t, 4, p.Quantity)
}

func TestDispatchFetchMissIsDropped(t *testing.T) {
	st := newTestStore(t)
	d := NewDispatcher(&fakeVendor{}, st, newTransformer(), logger.Discard())

	err := d.Dispatch(context.Background(), events.Event{Event: events.ItemCreated, Data: map[string]interface{}{"itemID": "404"}})
	assert.NoError(t, err)
}

func TestDispatchArchivesInactiveItems(t *testing.T) {
	st := newTestStore(t)
	live := item("5", "Pothos", "", "4")
	vendor := &fakeVendor{items: []lightspeed.Item{live}}
	d := NewDispatcher(vendor, st, newTransformer(), logger.Discard())
	ctx := context.Background()

	require.NoError(t, d.Dispatch(ctx, events.Event{Event: events.ItemCreated, Data: map[string]interface{}{"itemID": "5"}}))

	live.PublishToEcom = false
	vendor.items = []lightspeed.Item{live}
	require.NoError(t, d.Dispatch(ctx, events.Event{Event: events.ItemUpdated, Data: map[string]interface{}{"itemID": "5"}}))

	_, err := st.ProductByID(ctx, "5")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDispatchItemDeleted(t *testing.T) {
	st := newTestStore(t)
	vendor := &fakeVendor{items: []lightspeed.Item{item("5", "Pothos", "", "4")}}
	d := NewDispatcher(vendor, st, newTransformer(), logger.Discard())
	ctx := context.Background()

	// unknown id touches nothing and is not an error
	require.NoError(t, d.Dispatch(ctx, events.Event{Event: events.ItemDeleted, Data: map[string]interface{}{"itemID": "nope"}}))

	require.NoError(t, d.Dispatch(ctx, events.Event{Event: events.ItemCreated, Data: map[string]interface{}{"itemID": "5"}}))
	require.NoError(t, d.Dispatch(ctx, events.Event{Event: events.ItemDeleted, Data: map[string]interface{}{"itemID": "5"}}))

	_, err := st.ProductByID(ctx, "5")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, []string{"5"}, vendor.fetched)
}

func TestDispatchNoOps(t *testing.T) {
	st := newTestStore(t)
	vendor := &fakeVendor{}
	d := NewDispatcher(vendor, st, newTransformer(), logger.Discard())
	ctx := context.Background()

	assert.NoError(t, d.Dispatch(ctx, events.Event{Event: events.SaleCompleted, Data: map[string]interface{}{"saleID": "77"}}))
	assert.NoError(t, d.Dispatch(ctx, events.Event{Event: "customer.updated"}))
	assert.NoError(t, d.Dispatch(ctx, events.Event{Event: events.ItemUpdated, Data: map[string]interface{}{}}))
	assert.Empty(t, vendor.fetched)
}

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	k := newKeyedMutex()
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("item")
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Empty(t, k.locks)
}
