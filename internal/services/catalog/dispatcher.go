package catalog

import (
	"context"
	"fmt"
	"sync"

	"plantshop/internal/events"
	"plantshop/internal/logger"
	"plantshop/internal/metrics"
	"plantshop/internal/models"
	"plantshop/internal/services/lightspeed"
)

// ItemFetcher loads a single item fresh from Lightspeed.
type ItemFetcher interface {
	FetchItem(ctx context.Context, itemID string) (*lightspeed.Item, error)
}

// Dispatcher applies webhook events to the store.
type Dispatcher struct {
	vendor      ItemFetcher
	store       Store
	transformer *lightspeed.Transformer
	locks       *keyedMutex
	logger      *logger.Logger
}

func NewDispatcher(vendor ItemFetcher, st Store, transformer *lightspeed.Transformer, log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.Discard()
	}
	return &Dispatcher{
		vendor:      vendor,
		store:       st,
		transformer: transformer,
		locks:       newKeyedMutex(),
		logger:      log.WithPrefix("webhook"),
	}
}

// Dispatch routes an event by type. Only store failures are returned; a
// missing item or an unknown event is logged and dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, e events.Event) error {
	d.logger.Info("Received webhook: %s %v", e.Event, e.Data)

	var err error
	outcome := "applied"
	switch e.Event {
	case events.ItemCreated, events.ItemUpdated:
		outcome, err = d.refreshItem(ctx, e.ItemID())
	case events.ItemDeleted:
		outcome, err = d.archiveItem(ctx, e.ItemID())
	case events.SaleCompleted:
		// stock changes from sales reach the store through the periodic
		// inventory sync
		if id := e.SaleID(); id != "" {
			d.logger.Info("Sale completed: %s", id)
		}
		outcome = "ignored"
	default:
		d.logger.Info("Unhandled webhook event: %s", e.Event)
		outcome = "ignored"
	}

	if err != nil {
		outcome = "failed"
	}
	metrics.RecordWebhook(e.Event, outcome)
	return err
}

func (d *Dispatcher) refreshItem(ctx context.Context, itemID string) (string, error) {
	if itemID == "" {
		return "ignored", nil
	}
	unlock := d.locks.Lock(itemID)
	defer unlock()

	item, err := d.vendor.FetchItem(ctx, itemID)
	if err != nil {
		d.logger.Error("Item %s not found: %v", itemID, err)
		return "dropped", nil
	}

	if item.Archived || !item.PublishToEcom {
		n, err := d.store.ArchiveProduct(ctx, itemID)
		if err != nil {
			return "", err
		}
		d.logger.Info("Archived product %s (inactive in Lightspeed, %d rows)", itemID, n)
		return "archived", nil
	}

	product := d.transformer.Transform(*item, nil)
	if err := d.store.UpsertProducts(ctx, []models.Product{product}); err != nil {
		return "", fmt.Errorf("failed to upsert item %s: %w", itemID, err)
	}
	d.logger.Info("Updated product: %s", product.Name)
	return "applied", nil
}

func (d *Dispatcher) archiveItem(ctx context.Context, itemID string) (string, error) {
	if itemID == "" {
		return "ignored", nil
	}
	unlock := d.locks.Lock(itemID)
	defer unlock()

	n, err := d.store.ArchiveProduct(ctx, itemID)
	if err != nil {
		return "", err
	}
	d.logger.Info("Archived product: %s (%d rows)", itemID, n)
	return "archived", nil
}

// keyedMutex serializes work per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
