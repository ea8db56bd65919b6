package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"plantshop/internal/logger"
	"plantshop/internal/models"
	"plantshop/internal/services/catalog"

	"github.com/gin-gonic/gin"
)

// SyncRunner runs one orchestrated sync.
type SyncRunner interface {
	Run(ctx context.Context, syncType models.SyncType) (catalog.Result, error)
}

// SyncLogReader lists recent sync runs.
type SyncLogReader interface {
	LatestSyncLogs(ctx context.Context, limit int) ([]models.SyncLog, error)
}

type SyncHandler struct {
	runner SyncRunner
	logs   SyncLogReader
	logger *logger.Logger
}

func NewSyncHandler(runner SyncRunner, logs SyncLogReader, log *logger.Logger) *SyncHandler {
	return &SyncHandler{
		runner: runner,
		logs:   logs,
		logger: log,
	}
}

// Trigger runs a sync. ?type=full (the default) runs a full sync; any other
// value runs an inventory-only sync.
func (h *SyncHandler) Trigger(c *gin.Context) {
	syncType := models.ParseSyncType(c.Query("type"))

	result, err := h.runner.Run(c.Request.Context(), syncType)
	if err != nil {
		h.logger.Error("Sync error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Sync failed",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"syncType":    result.SyncType,
		"itemsSynced": result.ItemsSynced,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Logs returns the most recent sync runs.
func (h *SyncHandler) Logs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	logs, err := h.logs.LatestSyncLogs(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to fetch sync logs: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch sync logs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"logs": logs})
}
