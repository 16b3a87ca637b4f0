package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"surveysync/internal/model"
	"surveysync/internal/service"
	"surveysync/pkg/apierror"
	"surveysync/pkg/response"
)

// SyncRunner runs sync cycles. Implemented by *service.SyncScheduler.
type SyncRunner interface {
	RunNow(ctx context.Context, trigger string) (*model.SyncRun, error)
	RunAsync(trigger string) error
	LastRun() *model.SyncRun
	InProgress() bool
}

// SyncHandler handles sync-related HTTP requests.
type SyncHandler struct {
	runner SyncRunner
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(runner SyncRunner) *SyncHandler {
	return &SyncHandler{runner: runner}
}

// SyncResponse is returned after a foreground sync.
type SyncResponse struct {
	Submissions []string `json:"submissions"`
	Count       int      `json:"count"`
	DurationMS  int64    `json:"duration_ms"`
}

// Trigger handles POST /api/v1/sync
//
// With ?async=true the cycle runs in the background and 202 is returned.
func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	async := false
	if v := r.URL.Query().Get("async"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			response.Error(w, apierror.ValidationError("Invalid query parameter",
				apierror.FieldError{Field: "async", Message: "must be a boolean"}))
			return
		}
		async = parsed
	}

	if async {
		if err := h.runner.RunAsync(service.TriggerManual); err != nil {
			writeError(w, r, err)
			return
		}
		response.Accepted(w, map[string]interface{}{
			"status": "started",
		})
		return
	}

	run, err := h.runner.RunNow(r.Context(), service.TriggerManual)
	if err != nil {
		if run != nil && !errors.Is(err, service.ErrSyncInProgress) {
			log.Printf("[SyncHandler] Sync wrote %d submissions before failing", len(run.Submissions))
		}
		writeError(w, r, err)
		return
	}

	response.OK(w, SyncResponse{
		Submissions: run.Submissions,
		Count:       len(run.Submissions),
		DurationMS:  run.FinishedAt.Sub(run.StartedAt).Milliseconds(),
	})
}

// Status handles GET /api/v1/sync
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]interface{}{
		"in_progress": h.runner.InProgress(),
		"last_run":    h.runner.LastRun(),
	})
}
