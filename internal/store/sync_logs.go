package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"plantshop/internal/models"
)

const defaultSyncLogLimit = 20

// StartSyncLog records the start of a run.
func (s *Store) StartSyncLog(ctx context.Context, syncType models.SyncType) (*models.SyncLog, error) {
	log := &models.SyncLog{
		SyncType:  syncType,
		Status:    models.SyncStatusStarted,
		StartedAt: s.timestamp(),
	}
	if err := s.db.WithContext(ctx).Create(log).Error; err != nil {
		return nil, fmt.Errorf("failed to create sync log: %w", err)
	}
	return log, nil
}

// CompleteSyncLog moves a started log to completed.
func (s *Store) CompleteSyncLog(ctx context.Context, id string, itemsSynced int) error {
	now := s.timestamp()
	return s.finish(ctx, id, map[string]interface{}{
		"status":       models.SyncStatusCompleted,
		"items_synced": itemsSynced,
		"completed_at": now,
	})
}

// FailSyncLog moves a started log to failed, recording the cause.
func (s *Store) FailSyncLog(ctx context.Context, id string, itemsSynced int, cause error) error {
	now := s.timestamp()
	return s.finish(ctx, id, map[string]interface{}{
		"status":       models.SyncStatusFailed,
		"items_synced": itemsSynced,
		"errors":       errorPayload(cause),
		"completed_at": now,
	})
}

// RecordFailedSync writes a single failed row for a run whose started row
// could not be created.
func (s *Store) RecordFailedSync(ctx context.Context, syncType models.SyncType, startedAt time.Time, cause error) error {
	now := s.timestamp()
	payload := errorPayload(cause)
	log := &models.SyncLog{
		SyncType:    syncType,
		Status:      models.SyncStatusFailed,
		Errors:      &payload,
		StartedAt:   startedAt.UTC().Truncate(time.Second),
		CompletedAt: &now,
	}
	if err := s.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("failed to record failed sync: %w", err)
	}
	return nil
}

// FailStaleSyncLogs marks runs still started after olderThan as failed. A
// process that crashed mid-run leaves such rows behind.
func (s *Store) FailStaleSyncLogs(ctx context.Context, olderThan time.Duration) (int64, error) {
	now := s.timestamp()
	payload := errorPayload(fmt.Errorf("sync abandoned: still started after %s", olderThan))
	res := s.db.WithContext(ctx).
		Model(&models.SyncLog{}).
		Where("status = ? AND started_at < ?", models.SyncStatusStarted, now.Add(-olderThan)).
		Updates(map[string]interface{}{
			"status":       models.SyncStatusFailed,
			"errors":       payload,
			"completed_at": now,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to fail stale sync logs: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// LatestSyncLogs returns the most recent runs first.
func (s *Store) LatestSyncLogs(ctx context.Context, limit int) ([]models.SyncLog, error) {
	if limit <= 0 {
		limit = defaultSyncLogLimit
	}
	var logs []models.SyncLog
	err := s.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sync logs: %w", err)
	}
	return logs, nil
}

func (s *Store) finish(ctx context.Context, id string, fields map[string]interface{}) error {
	res := s.db.WithContext(ctx).
		Model(&models.SyncLog{}).
		Where("id = ? AND status = ?", id, models.SyncStatusStarted).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("failed to update sync log %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("sync log %s is not started: %w", id, ErrNotFound)
	}
	return nil
}

func errorPayload(cause error) string {
	msg := "Unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	b, _ := json.Marshal(map[string]string{"message": msg})
	return string(b)
}
