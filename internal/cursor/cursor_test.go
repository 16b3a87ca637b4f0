package cursor

import (
	"context"
	"errors"
	"testing"
	"time"

	"surveysync/internal/model"
)

func sub(id, updatedAt, submissionDate string) *model.Submission {
	return &model.Submission{ID: id, UpdatedAt: updatedAt, SubmissionDate: submissionDate}
}

func TestBuildFilter(t *testing.T) {
	tests := []struct {
		name            string
		cursor          string
		includeRejected bool
		want            string
	}{
		{"first run", "", false, "__system/reviewState ne 'rejected'"},
		{"first run with rejected", "", true, ""},
		{
			"cursor",
			"2024-01-01T10:00:00.000Z",
			false,
			"(__system/updatedAt ge 2024-01-01T10:00:00.000Z or __system/submissionDate ge 2024-01-01T10:00:00.000Z) and __system/reviewState ne 'rejected'",
		},
		{
			"cursor with rejected",
			"2024-01-01T10:00:00.000Z",
			true,
			"(__system/updatedAt ge 2024-01-01T10:00:00.000Z or __system/submissionDate ge 2024-01-01T10:00:00.000Z)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildFilter(tt.cursor, tt.includeRejected); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestAdvanceTakesMaximum(t *testing.T) {
	batch := []*model.Submission{
		sub("a", "", "2024-01-01T10:00:00.000Z"),
		sub("b", "", "2024-01-01T10:05:00.000Z"),
		sub("c", "", "2024-01-01T10:03:00.000Z"),
	}

	next, changed, err := Advance("", batch)
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if next != "2024-01-01T10:05:00.000Z" {
		t.Errorf("expected maximum, got %s", next)
	}
	if !changed {
		t.Error("expected cursor to change")
	}
}

func TestAdvanceComparesInstantsNotStrings(t *testing.T) {
	batch := []*model.Submission{
		sub("a", "2024-01-01T12:00:00+02:00", ""),
		sub("b", "2024-01-01T10:30:00Z", ""),
	}

	next, _, err := Advance("", batch)
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if next != "2024-01-01T10:30:00Z" {
		t.Errorf("expected later instant, got %s", next)
	}
}

func TestAdvanceUnchanged(t *testing.T) {
	cur := "2024-01-01T10:00:00.000Z"
	next, changed, err := Advance(cur, []*model.Submission{sub("a", cur, "2023-12-31T00:00:00.000Z")})
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if changed || next != cur {
		t.Errorf("expected unchanged cursor, got %s (changed=%v)", next, changed)
	}
}

func TestAdvanceEmptyBatch(t *testing.T) {
	next, changed, err := Advance("x", nil)
	if err != nil || changed || next != "x" {
		t.Errorf("expected no-op, got %q %v %v", next, changed, err)
	}
}

func TestAdvanceBadTimestamp(t *testing.T) {
	_, _, err := Advance("", []*model.Submission{sub("a", "yesterday", "")})
	var shapeErr *model.DataShapeError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("expected DataShapeError, got %v", err)
	}
	if shapeErr.SubmissionID != "a" {
		t.Errorf("expected submission a, got %s", shapeErr.SubmissionID)
	}
}

type fakeMetadata struct {
	values   map[model.MetadataKey]string
	timezone *time.Location
	failOn   model.MetadataKey
}

func (f *fakeMetadata) GetMetadata(ctx context.Context, key model.MetadataKey) (string, bool, error) {
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeMetadata) StoreMetadata(ctx context.Context, key model.MetadataKey, value string) error {
	if key == f.failOn {
		return errors.New("boom")
	}
	if f.values == nil {
		f.values = make(map[model.MetadataKey]string)
	}
	f.values[key] = value
	return nil
}

func (f *fakeMetadata) SetDataTimezone(ctx context.Context, loc *time.Location) error {
	f.timezone = loc
	return nil
}

func TestTrackerRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := &fakeMetadata{}
	tracker := NewTracker(store)

	cur, err := tracker.Load(ctx)
	if err != nil || cur != "" {
		t.Fatalf("expected empty cursor, got %q %v", cur, err)
	}

	if err := tracker.Save(ctx, "2024-01-01T10:05:00.000Z"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if store.timezone != time.UTC {
		t.Errorf("expected UTC timezone tag, got %v", store.timezone)
	}

	cur, err = tracker.Load(ctx)
	if err != nil || cur != "2024-01-01T10:05:00.000Z" {
		t.Errorf("expected saved cursor, got %q %v", cur, err)
	}
}

func TestTrackerSaveFailureSkipsTimezone(t *testing.T) {
	store := &fakeMetadata{failOn: model.MetadataCursor}
	if err := NewTracker(store).Save(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
	if store.timezone != nil {
		t.Error("timezone must not be tagged when the cursor was not stored")
	}
}
