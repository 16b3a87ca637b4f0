package apierror

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestToJSON(t *testing.T) {
	e := ValidationError("Invalid query parameter", FieldError{Field: "format", Message: "must be json or csv"})

	var got struct {
		Success bool  `json:"success"`
		Error   Error `json:"error"`
	}
	if err := json.Unmarshal(e.ToJSON(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Success || got.Error.Code != CodeValidation || len(got.Error.Details) != 1 || got.Error.Details[0].Field != "format" {
		t.Errorf("envelope = %+v", got)
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		err    *Error
		status int
		code   string
	}{
		{BadRequest("x"), http.StatusBadRequest, CodeBadRequest},
		{Unauthorized(""), http.StatusUnauthorized, CodeUnauthorized},
		{NotFound(""), http.StatusNotFound, CodeNotFound},
		{SyncInProgress(), http.StatusConflict, CodeSyncInProgress},
		{NotConfigured("missing ODK_FORM_ID"), http.StatusServiceUnavailable, CodeNotConfigured},
		{PlatformError("fetch submissions failed", 500), http.StatusBadGateway, CodePlatformError},
		{MalformedSubmission("missing KEY"), http.StatusBadGateway, CodeMalformedSubmission},
		{StorageFailure("sqlite", "store submission"), http.StatusInternalServerError, CodeStorageError},
		{InternalError(""), http.StatusInternalServerError, CodeInternal},
	}
	for _, tt := range tests {
		if tt.err.StatusCode != tt.status || tt.err.Code != tt.code || tt.err.Message == "" {
			t.Errorf("%s: got %d %s %q", tt.code, tt.err.StatusCode, tt.err.Code, tt.err.Message)
		}
	}

	if d := PlatformError("x", 401).Details; len(d) != 1 || d[0].Message != "401" {
		t.Errorf("PlatformError details = %+v", d)
	}
	if d := PlatformError("x", 0).Details; d != nil {
		t.Errorf("PlatformError without status details = %+v", d)
	}
}
