package catalog

import (
	"context"
	"fmt"
	"time"

	"plantshop/internal/logger"
	"plantshop/internal/metrics"
	"plantshop/internal/models"
	"plantshop/internal/services/lightspeed"
	"plantshop/internal/store"

	"golang.org/x/sync/errgroup"
)

// logWriteTimeout bounds sync log writes made after the run context is done.
const logWriteTimeout = 10 * time.Second

// Vendor is the part of the Lightspeed client the catalog needs.
type Vendor interface {
	FetchAllItems(ctx context.Context) ([]lightspeed.Item, error)
	FetchCategories(ctx context.Context) ([]lightspeed.Category, error)
	FetchVendors(ctx context.Context) ([]lightspeed.Vendor, error)
	FetchItem(ctx context.Context, itemID string) (*lightspeed.Item, error)
}

// Store is the reconciliation store as seen by sync runs and webhooks.
type Store interface {
	UpsertProducts(ctx context.Context, products []models.Product) error
	UpdateInventory(ctx context.Context, updates []store.InventoryUpdate) store.InventoryResult
	ArchiveRemovedProducts(ctx context.Context, activeIDs []string) (int64, error)
	ArchiveProduct(ctx context.Context, itemID string) (int64, error)
	StartSyncLog(ctx context.Context, syncType models.SyncType) (*models.SyncLog, error)
	CompleteSyncLog(ctx context.Context, id string, itemsSynced int) error
	FailSyncLog(ctx context.Context, id string, itemsSynced int, cause error) error
	RecordFailedSync(ctx context.Context, syncType models.SyncType, startedAt time.Time, cause error) error
}

// Result describes a finished run.
type Result struct {
	SyncType    models.SyncType `json:"syncType"`
	ItemsSynced int             `json:"itemsSynced"`
	Archived    int64           `json:"archived"`
	LogID       string          `json:"logId,omitempty"`
	StartedAt   time.Time       `json:"startedAt"`
	FinishedAt  time.Time       `json:"finishedAt"`
}

// Syncer runs full and inventory-only syncs from Lightspeed into the store.
// Every run leaves exactly one sync log row behind.
type Syncer struct {
	vendor      Vendor
	store       Store
	transformer *lightspeed.Transformer
	timeout     time.Duration
	logger      *logger.Logger
	now         func() time.Time
}

func NewSyncer(vendor Vendor, st Store, transformer *lightspeed.Transformer, timeout time.Duration, log *logger.Logger) *Syncer {
	if log == nil {
		log = logger.Discard()
	}
	return &Syncer{
		vendor:      vendor,
		store:       st,
		transformer: transformer,
		timeout:     timeout,
		logger:      log.WithPrefix("sync"),
		now:         time.Now,
	}
}

// Run executes one sync of the given type under the configured deadline.
func (s *Syncer) Run(ctx context.Context, syncType models.SyncType) (Result, error) {
	result := Result{SyncType: syncType, StartedAt: s.now()}

	syncLog, err := s.store.StartSyncLog(ctx, syncType)
	if err != nil {
		err = fmt.Errorf("failed to start sync: %w", err)
		s.logger.Error("Sync error: %v", err)
		writeCtx, cancel := detached(ctx)
		defer cancel()
		if recErr := s.store.RecordFailedSync(writeCtx, syncType, result.StartedAt, err); recErr != nil {
			s.logger.Error("Failed to record failed sync: %v", recErr)
		}
		s.record(result, "failed")
		return result, err
	}
	result.LogID = syncLog.ID

	runCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if syncType == models.SyncTypeFull {
		s.logger.Info("Starting full inventory sync...")
		result.ItemsSynced, result.Archived, err = s.full(runCtx)
	} else {
		s.logger.Info("Starting inventory-only sync...")
		result.ItemsSynced, err = s.inventory(runCtx)
	}
	result.FinishedAt = s.now()

	writeCtx, cancel := detached(ctx)
	defer cancel()

	if err != nil {
		s.logger.Error("Sync error: %v", err)
		if logErr := s.store.FailSyncLog(writeCtx, syncLog.ID, result.ItemsSynced, err); logErr != nil {
			s.logger.Error("Failed to mark sync log %s failed: %v", syncLog.ID, logErr)
		}
		s.record(result, "failed")
		return result, err
	}

	if err := s.store.CompleteSyncLog(writeCtx, syncLog.ID, result.ItemsSynced); err != nil {
		err = fmt.Errorf("failed to complete sync log: %w", err)
		s.logger.Error("Sync error: %v", err)
		// a run never leaves its log row started
		if logErr := s.store.FailSyncLog(writeCtx, syncLog.ID, result.ItemsSynced, err); logErr != nil {
			s.logger.Error("Failed to mark sync log %s failed: %v", syncLog.ID, logErr)
		}
		s.record(result, "failed")
		return result, err
	}

	s.logger.Info("%s sync completed: %d items synced, %d archived", syncType, result.ItemsSynced, result.Archived)
	s.record(result, "completed")
	return result, nil
}

func (s *Syncer) full(ctx context.Context) (int, int64, error) {
	var (
		items      []lightspeed.Item
		categories []lightspeed.Category
		vendors    []lightspeed.Vendor
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.vendor.FetchAllItems(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = s.vendor.FetchCategories(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		vendors, err = s.vendor.FetchVendors(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, 0, err
	}

	s.logger.Info("Fetched %d items from Lightspeed", len(items))

	products := lightspeed.FilterActiveProducts(
		s.transformer.TransformAll(items, categories),
		lightspeed.ActiveVendorIDs(vendors),
	)
	s.logger.Info("Transformed %d active products", len(products))

	if err := s.store.UpsertProducts(ctx, products); err != nil {
		return 0, 0, err
	}

	if len(items) == 0 {
		s.logger.Warn("Lightspeed returned no items, skipping archival")
		return len(products), 0, nil
	}

	activeIDs := make([]string, 0, len(products))
	for _, p := range products {
		activeIDs = append(activeIDs, p.ID)
	}
	archived, err := s.store.ArchiveRemovedProducts(ctx, activeIDs)
	if err != nil {
		return len(products), archived, err
	}
	return len(products), archived, nil
}

func (s *Syncer) inventory(ctx context.Context) (int, error) {
	items, err := s.vendor.FetchAllItems(ctx)
	if err != nil {
		return 0, err
	}

	updates := make([]store.InventoryUpdate, 0, len(items))
	for _, item := range items {
		inv := lightspeed.InventoryFor(item)
		updates = append(updates, store.InventoryUpdate{
			ID:       inv.ID,
			Quantity: inv.Quantity,
			InStock:  inv.InStock,
		})
	}

	res := s.store.UpdateInventory(ctx, updates)
	s.logger.Info("Inventory updated: %d updated, %d unknown, %d failed", res.Updated, res.Missing, res.Failed)
	return len(updates), nil
}

func (s *Syncer) record(r Result, status string) {
	finished := r.FinishedAt
	if finished.IsZero() {
		finished = s.now()
	}
	metrics.RecordSync(string(r.SyncType), status, r.ItemsSynced, finished.Sub(r.StartedAt))
}

// detached keeps request values but survives cancellation of ctx, so a run
// that timed out can still be logged.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), logWriteTimeout)
}
