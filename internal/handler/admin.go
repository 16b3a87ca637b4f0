package handler

import (
	"net/http"
	"runtime"
	"time"

	"surveysync/internal/model"
	"surveysync/internal/storage"
	"surveysync/pkg/response"
)

// AdminHandler handles admin-related HTTP requests.
type AdminHandler struct {
	store       storage.Storage
	runner      SyncRunner
	storageType string
	startTime   time.Time
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(store storage.Storage, runner SyncRunner, storageType string) *AdminHandler {
	return &AdminHandler{
		store:       store,
		runner:      runner,
		storageType: storageType,
		startTime:   time.Now(),
	}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := make(map[string]interface{})

	// System info
	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["storage_type"] = h.storageType

	// Memory stats
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_inuse_mb": float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	// Storage stats
	if sp, ok := h.store.(storage.StatsProvider); ok {
		storageStats, err := sp.GetStats(ctx)
		if err == nil {
			storageStats["status"] = "connected"
			stats["storage"] = storageStats
		} else {
			stats["storage"] = map[string]interface{}{
				"status": "error",
				"error":  err.Error(),
			}
		}
	} else {
		stats["storage"] = map[string]interface{}{
			"status": "no_stats",
		}
	}

	// Sync state
	syncStats := map[string]interface{}{}
	for key, name := range map[model.MetadataKey]string{
		model.MetadataCursor:       "cursor",
		model.MetadataDataTimezone: "data_timezone",
	} {
		value, ok, err := h.store.GetMetadata(ctx, key)
		switch {
		case err != nil:
			syncStats[name+"_error"] = err.Error()
		case ok:
			syncStats[name] = value
		default:
			syncStats[name] = nil
		}
	}
	if h.runner != nil {
		syncStats["in_progress"] = h.runner.InProgress()
		syncStats["last_run"] = h.runner.LastRun()
	}
	stats["sync"] = syncStats

	// Runtime info
	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}
