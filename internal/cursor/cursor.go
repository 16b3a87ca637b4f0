// Package cursor tracks the synchronization high-water mark.
//
// The cursor is an opaque timestamp string kept in storage metadata. Filter
// construction and advancement are pure functions; Tracker persists the value.
package cursor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"surveysync/internal/model"
)

// MetadataStore is the slice of storage the tracker needs.
type MetadataStore interface {
	GetMetadata(ctx context.Context, key model.MetadataKey) (string, bool, error)
	StoreMetadata(ctx context.Context, key model.MetadataKey, value string) error
	SetDataTimezone(ctx context.Context, loc *time.Location) error
}

// BuildFilter returns the platform filter expression for a sync starting at cursor.
// The timestamp comparison is inclusive, so the record that set the cursor is fetched again.
func BuildFilter(cursor string, includeRejected bool) string {
	var conditions []string
	if cursor != "" {
		conditions = append(conditions, fmt.Sprintf("(%s ge %s or %s ge %s)",
			model.FieldUpdatedAt, cursor, model.FieldSubmissionDate, cursor))
	}
	if !includeRejected {
		conditions = append(conditions, fmt.Sprintf("%s ne '%s'", model.FieldReviewState, model.ReviewStateRejected))
	}
	return strings.Join(conditions, " and ")
}

// ParseTimestamp parses a platform timestamp into a comparable instant.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// Advance computes the cursor after processing batch. The candidate starts at the
// last record's LastTouched and is replaced by any record touched strictly later,
// which covers batches not ordered by last-touched. changed reports whether the
// result differs from the current cursor.
func Advance(current string, batch []*model.Submission) (next string, changed bool, err error) {
	if len(batch) == 0 {
		return current, false, nil
	}

	last := batch[len(batch)-1]
	next = last.LastTouched()
	nextAt, err := ParseTimestamp(next)
	if err != nil {
		return "", false, &model.DataShapeError{SubmissionID: last.ID, Field: model.FieldUpdatedAt, Reason: err.Error()}
	}

	for _, sub := range batch {
		touched := sub.LastTouched()
		touchedAt, err := ParseTimestamp(touched)
		if err != nil {
			return "", false, &model.DataShapeError{SubmissionID: sub.ID, Field: model.FieldUpdatedAt, Reason: err.Error()}
		}
		if touchedAt.After(nextAt) {
			next, nextAt = touched, touchedAt
		}
	}

	return next, next != current, nil
}

// Tracker reads and writes the cursor through storage metadata.
type Tracker struct {
	store MetadataStore
}

// NewTracker creates a tracker over store.
func NewTracker(store MetadataStore) *Tracker {
	return &Tracker{store: store}
}

// Load returns the current cursor, or "" when none has been stored yet.
func (t *Tracker) Load(ctx context.Context) (string, error) {
	value, ok, err := t.store.GetMetadata(ctx, model.MetadataCursor)
	if err != nil {
		return "", fmt.Errorf("failed to load cursor: %w", err)
	}
	if !ok {
		return "", nil
	}
	return value, nil
}

// Save persists a new cursor and tags stored timestamps as UTC, the platform's
// canonical zone, so the next filter compares like with like.
func (t *Tracker) Save(ctx context.Context, value string) error {
	if err := t.store.StoreMetadata(ctx, model.MetadataCursor, value); err != nil {
		return fmt.Errorf("failed to save cursor: %w", err)
	}
	if err := t.store.SetDataTimezone(ctx, time.UTC); err != nil {
		return fmt.Errorf("failed to set data timezone: %w", err)
	}
	return nil
}
