package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Flattened field names the sync engine reads from every submission.
const (
	FieldKey                = "KEY"
	FieldUpdatedAt          = "__system/updatedAt"
	FieldSubmissionDate     = "__system/submissionDate"
	FieldAttachmentsPresent = "__system/attachmentsPresent"
	FieldReviewState        = "__system/reviewState"
)

// ReviewStateRejected is the review state excluded from syncs by default.
const ReviewStateRejected = "rejected"

// Fields is a flattened submission: column path to scalar value.
type Fields map[string]any

// Submission is one flattened record with its sync-relevant fields parsed out.
type Submission struct {
	ID                 string
	UpdatedAt          string
	SubmissionDate     string
	AttachmentsPresent int
	ReviewState        string
	Fields             Fields
}

// NewSubmission validates flattened fields and extracts the sync-relevant values.
// UpdatedAt may be absent; SubmissionDate is then required.
func NewSubmission(fields Fields) (*Submission, error) {
	id, _ := fields[FieldKey].(string)
	if id == "" {
		return nil, &DataShapeError{Field: FieldKey, Reason: "is missing"}
	}

	s := &Submission{
		ID:             id,
		UpdatedAt:      stringField(fields[FieldUpdatedAt]),
		SubmissionDate: stringField(fields[FieldSubmissionDate]),
		ReviewState:    stringField(fields[FieldReviewState]),
		Fields:         fields,
	}
	if s.UpdatedAt == "" && s.SubmissionDate == "" {
		return nil, &DataShapeError{SubmissionID: id, Field: FieldSubmissionDate, Reason: "is missing"}
	}

	count, err := intField(fields[FieldAttachmentsPresent])
	if err != nil {
		return nil, &DataShapeError{SubmissionID: id, Field: FieldAttachmentsPresent, Reason: err.Error()}
	}
	s.AttachmentsPresent = count

	return s, nil
}

// LastTouched returns the later-of-update-or-submission timestamp used as the change signal.
func (s *Submission) LastTouched() string {
	if s.UpdatedAt != "" {
		return s.UpdatedAt
	}
	return s.SubmissionDate
}

// HasAttachments reports whether the platform says attachments exist.
func (s *Submission) HasAttachments() bool {
	return s.AttachmentsPresent > 0
}

// StoredSubmission is a submission as read back from storage.
type StoredSubmission struct {
	ID     string
	Fields Fields
}

// AttachmentInfo describes one attachment listed by the platform.
type AttachmentInfo struct {
	Name   string `json:"name"`
	Exists bool   `json:"exists"`
}

// SyncRun records the outcome of one sync cycle.
type SyncRun struct {
	Trigger     string    `json:"trigger"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Submissions []string  `json:"submissions"`
	Error       string    `json:"error,omitempty"`
}

func stringField(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func intField(v any) (int, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			f, ferr := t.Float64()
			if ferr != nil {
				return 0, fmt.Errorf("is not a number: %q", t.String())
			}
			return int(f), nil
		}
		return int(n), nil
	case string:
		if t == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(t)
		if err != nil {
			return 0, fmt.Errorf("is not a number: %q", t)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("has unexpected type %T", v)
	}
}
