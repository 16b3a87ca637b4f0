package handler

import (
	"errors"
	"log"
	"net/http"

	"surveysync/internal/model"
	"surveysync/internal/service"
	"surveysync/pkg/apierror"
	"surveysync/pkg/response"
)

// writeError maps domain errors onto API errors.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		cfgErr       *model.ConfigurationError
		transportErr *model.TransportError
		storageErr   *model.StorageError
		shapeErr     *model.DataShapeError
	)

	switch {
	case errors.Is(err, service.ErrSyncInProgress):
		response.Error(w, apierror.SyncInProgress())
	case errors.As(err, &cfgErr):
		response.Error(w, apierror.NotConfigured(cfgErr.Error()))
	case errors.As(err, &transportErr):
		response.Error(w, apierror.PlatformError(transportErr.Op+" failed", transportErr.StatusCode))
	case errors.As(err, &shapeErr):
		response.Error(w, apierror.MalformedSubmission(shapeErr.Error()))
	case errors.As(err, &storageErr):
		log.Printf("[Handler] %s %s storage failure: %v", r.Method, r.URL.Path, err)
		response.Error(w, apierror.StorageFailure(storageErr.Backend, storageErr.Op))
	default:
		log.Printf("[Handler] %s %s failed: %v", r.Method, r.URL.Path, err)
		response.Error(w, err)
	}
}
