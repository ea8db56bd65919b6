package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"plantshop/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	upsertBatchSize  = 200
	archiveBatchSize = 500
)

// syncedColumns are overwritten when a newer vendor copy arrives. Featured
// and plant-of-the-month flags and created_at belong to the shop and are
// left alone.
var syncedColumns = []string{
	"sku",
	"name",
	"slug",
	"description",
	"short_description",
	"price",
	"compare_at_price",
	"images",
	"category",
	"subcategory",
	"tags",
	"in_stock",
	"quantity",
	"low_stock_threshold",
	"attr_light_level",
	"attr_is_pet_safe",
	"attr_is_air_purifying",
	"attr_humidity",
	"attr_care_level",
	"attr_watering_frequency",
	"attr_size",
	"attr_plant_type",
	"attr_is_rare",
	"vendor",
	"is_archived",
	"updated_at",
	"source_updated_at",
	"synced_at",
}

// newerOrUnknown lets an incoming row through unless the stored copy carries
// a strictly later vendor timestamp.
const newerOrUnknown = "products.source_updated_at IS NULL OR excluded.source_updated_at IS NULL OR excluded.source_updated_at >= products.source_updated_at"

// InventoryUpdate is a partial write of stock fields for one item.
type InventoryUpdate struct {
	ID       string
	Quantity int
	InStock  bool
}

// InventoryResult counts the outcome of UpdateInventory.
type InventoryResult struct {
	Updated int
	Missing int
	Failed  int
}

// UpsertProducts writes products keyed by their Lightspeed item ID. Writing
// the same product twice leaves one row. A row whose stored vendor timestamp
// is newer than the incoming one is not overwritten.
func (s *Store) UpsertProducts(ctx context.Context, products []models.Product) error {
	if len(products) == 0 {
		return nil
	}

	// last copy of an ID wins within a batch
	index := make(map[string]int, len(products))
	rows := make([]models.Product, 0, len(products))
	for _, p := range products {
		if p.LightspeedItemID == "" {
			p.LightspeedItemID = p.ID
		}
		if i, ok := index[p.ID]; ok {
			rows[i] = p
			continue
		}
		index[p.ID] = len(rows)
		rows = append(rows, p)
	}

	now := s.timestamp()
	for start := 0; start < len(rows); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := s.upsertChunk(ctx, rows[start:end], now); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) upsertChunk(ctx context.Context, chunk []models.Product, now time.Time) error {
	err := s.writeChunk(ctx, chunk, now)
	if isUniqueViolation(err) {
		// another writer claimed a slug between resolution and insert
		s.logger.Warn("Slug conflict upserting %d products, retrying once", len(chunk))
		err = s.writeChunk(ctx, chunk, now)
	}
	if err != nil {
		return fmt.Errorf("failed to upsert products: %w", err)
	}
	return nil
}

func (s *Store) writeChunk(ctx context.Context, chunk []models.Product, now time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows := make([]models.Product, len(chunk))
		copy(rows, chunk)
		if err := resolveSlugs(tx, rows); err != nil {
			return err
		}
		for i := range rows {
			rows[i].SyncedAt = now
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "lightspeed_item_id"}},
			DoUpdates: clause.AssignmentColumns(syncedColumns),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: newerOrUnknown},
			}},
		}).Create(&rows).Error
	})
}

type slugOwner struct {
	ID   string
	Slug string
}

// slugIndex tracks which product holds each slug, in the table and within
// the batch being written.
type slugIndex struct {
	tx      *gorm.DB
	holder  map[string]string
	known   map[string]bool
	claimed map[string]string
}

// free reports whether id may take slug. Slugs outside the preloaded set
// are looked up on demand.
func (x *slugIndex) free(slug, id string) (bool, error) {
	if owner, ok := x.claimed[slug]; ok && owner != id {
		return false, nil
	}
	if !x.known[slug] {
		var owners []slugOwner
		if err := x.tx.Model(&models.Product{}).Select("id, slug").Where("slug = ?", slug).Find(&owners).Error; err != nil {
			return false, fmt.Errorf("failed to load slug %q: %w", slug, err)
		}
		for _, o := range owners {
			x.holder[o.Slug] = o.ID
		}
		x.known[slug] = true
	}
	owner, ok := x.holder[slug]
	return !ok || owner == id, nil
}

// resolveSlugs makes every slug in rows unique. A product whose base slug is
// held by a different product gets "<base>-<id>", then "<base>-<id>-2" and
// so on until a free slug is found. A product keeps a disambiguated slug it
// already holds.
func resolveSlugs(tx *gorm.DB, rows []models.Product) error {
	ids := make([]string, 0, len(rows))
	candidates := make([]string, 0, len(rows)*2)
	for i := range rows {
		if rows[i].Slug == "" {
			rows[i].Slug = "product"
		}
		ids = append(ids, rows[i].ID)
		candidates = append(candidates, rows[i].Slug, disambiguated(rows[i].Slug, rows[i].ID))
	}

	var owners []slugOwner
	err := tx.Model(&models.Product{}).
		Select("id, slug").
		Where("slug IN ? OR id IN ?", candidates, ids).
		Find(&owners).Error
	if err != nil {
		return fmt.Errorf("failed to load slugs: %w", err)
	}

	x := &slugIndex{
		tx:      tx,
		holder:  make(map[string]string, len(owners)),
		known:   make(map[string]bool, len(candidates)+len(owners)),
		claimed: make(map[string]string, len(rows)),
	}
	current := make(map[string]string, len(owners))
	for _, c := range candidates {
		x.known[c] = true
	}
	for _, o := range owners {
		x.holder[o.Slug] = o.ID
		x.known[o.Slug] = true
		current[o.ID] = o.Slug
	}

	for i := range rows {
		id := rows[i].ID
		base := rows[i].Slug
		suffixed := disambiguated(base, id)

		slug := current[id]
		if !isDisambiguation(slug, suffixed) {
			slug = base
			ok, err := x.free(slug, id)
			if err != nil {
				return err
			}
			for n := 1; !ok; n++ {
				slug = suffixed
				if n > 1 {
					slug = fmt.Sprintf("%s-%d", suffixed, n)
				}
				if ok, err = x.free(slug, id); err != nil {
					return err
				}
			}
		}

		rows[i].Slug = slug
		x.claimed[slug] = id
	}
	return nil
}

func disambiguated(base, id string) string {
	return base + "-" + id
}

// isDisambiguation reports whether slug is suffixed or suffixed plus a
// numeric counter.
func isDisambiguation(slug, suffixed string) bool {
	if slug == suffixed {
		return true
	}
	rest, ok := strings.CutPrefix(slug, suffixed+"-")
	if !ok {
		return false
	}
	n, err := strconv.Atoi(rest)
	return err == nil && n > 1
}

// UpdateInventory applies stock-only updates one by one. A failing ID is
// logged and counted; the rest still run.
func (s *Store) UpdateInventory(ctx context.Context, updates []InventoryUpdate) InventoryResult {
	var result InventoryResult
	now := s.timestamp()
	for _, u := range updates {
		res := s.db.WithContext(ctx).
			Model(&models.Product{}).
			Where("lightspeed_item_id = ?", u.ID).
			UpdateColumns(map[string]interface{}{
				"quantity":  u.Quantity,
				"in_stock":  u.InStock,
				"synced_at": now,
			})
		switch {
		case res.Error != nil:
			s.logger.Error("Error updating inventory for %s: %v", u.ID, res.Error)
			result.Failed++
		case res.RowsAffected == 0:
			result.Missing++
		default:
			result.Updated++
		}
	}
	return result
}

// ArchiveRemovedProducts archives every active product whose ID is not in
// activeIDs and returns how many rows changed. An empty activeIDs archives
// the whole catalog.
func (s *Store) ArchiveRemovedProducts(ctx context.Context, activeIDs []string) (int64, error) {
	keep := make(map[string]struct{}, len(activeIDs))
	for _, id := range activeIDs {
		keep[id] = struct{}{}
	}

	var stored []string
	err := s.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("is_archived = ?", false).
		Pluck("lightspeed_item_id", &stored).Error
	if err != nil {
		return 0, fmt.Errorf("failed to load active products: %w", err)
	}

	var removed []string
	for _, id := range stored {
		if _, ok := keep[id]; !ok {
			removed = append(removed, id)
		}
	}

	now := s.timestamp()
	var archived int64
	for _, chunk := range chunkStrings(removed, archiveBatchSize) {
		res := s.db.WithContext(ctx).
			Model(&models.Product{}).
			Where("lightspeed_item_id IN ? AND is_archived = ?", chunk, false).
			UpdateColumns(map[string]interface{}{
				"is_archived": true,
				"synced_at":   now,
			})
		if res.Error != nil {
			return archived, fmt.Errorf("failed to archive products: %w", res.Error)
		}
		archived += res.RowsAffected
	}
	return archived, nil
}

// ArchiveProduct archives a single product by Lightspeed item ID. Unknown
// IDs affect zero rows and are not an error.
func (s *Store) ArchiveProduct(ctx context.Context, itemID string) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("lightspeed_item_id = ?", itemID).
		UpdateColumns(map[string]interface{}{
			"is_archived": true,
			"synced_at":   s.timestamp(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to archive product %s: %w", itemID, res.Error)
	}
	return res.RowsAffected, nil
}
