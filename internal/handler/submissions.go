package handler

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"surveysync/internal/model"
	"surveysync/internal/service"
	"surveysync/internal/storage"
	"surveysync/pkg/apierror"
	"surveysync/pkg/response"

	"github.com/go-chi/chi/v5"
)

// SubmissionsHandler serves stored submissions.
type SubmissionsHandler struct {
	store storage.Storage
}

// NewSubmissionsHandler creates a new submissions handler.
func NewSubmissionsHandler(store storage.Storage) *SubmissionsHandler {
	return &SubmissionsHandler{store: store}
}

// List handles GET /api/v1/submissions?format=json|csv
func (h *SubmissionsHandler) List(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		response.Error(w, apierror.ValidationError("Invalid query parameter",
			apierror.FieldError{Field: "format", Message: "must be json or csv"}))
		return
	}

	table, err := service.SubmissionsTable(r.Context(), h.store)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if format == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf(`attachment; filename="submissions-%s.csv"`, time.Now().UTC().Format("20060102-150405")))
		if err := service.WriteCSV(w, table); err != nil {
			log.Printf("[SubmissionsHandler] CSV export aborted: %v", err)
		}
		return
	}

	response.OK(w, map[string]interface{}{
		"count":       table.Len(),
		"index":       table.Index,
		"columns":     table.Columns,
		"submissions": rowsAsRecords(table),
	})
}

// Get handles GET /api/v1/submissions/{id}
func (h *SubmissionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.Error(w, apierror.BadRequest("id is required"))
		return
	}

	present, err := h.store.QuerySubmission(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !present {
		response.Error(w, apierror.NotFound("Submission "+id+" has not been synced"))
		return
	}

	response.OK(w, map[string]interface{}{
		"id":      id,
		"present": true,
	})
}

// rowsAsRecords turns table rows back into one object per submission.
func rowsAsRecords(table *model.Table) []map[string]any {
	records := make([]map[string]any, 0, table.Len())
	for i, key := range table.Keys {
		rec := make(map[string]any, len(table.Columns)+1)
		rec[table.Index] = key
		for j, col := range table.Columns {
			rec[col] = table.Rows[i][j]
		}
		records = append(records, rec)
	}
	return records
}
