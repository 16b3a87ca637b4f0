package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"surveysync/internal/cursor"
	"surveysync/internal/flatten"
	"surveysync/internal/model"
	"surveysync/internal/platform"
	"surveysync/internal/storage"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("sync")

// Action is what a planned record needs at apply time.
type Action int

const (
	// ActionWrite stores the record unconditionally.
	ActionWrite Action = iota
	// ActionWriteIfAbsent stores the record only if storage does not hold it yet.
	// Used for records touched exactly at the cursor, which the inclusive
	// filter fetches again.
	ActionWriteIfAbsent
)

func (a Action) String() string {
	switch a {
	case ActionWrite:
		return "write"
	case ActionWriteIfAbsent:
		return "write-if-absent"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// PlannedRecord is one fetched record and its decided action.
type PlannedRecord struct {
	Submission *model.Submission
	Action     Action
}

// Plan is the I/O-free outcome of examining a fetched batch.
type Plan struct {
	Records       []PlannedRecord
	Cursor        string
	CursorChanged bool
}

// PlanBatch flattens raw records, classifies each one against the pre-sync
// cursor, and computes the cursor to persist once every record is applied.
// Records keep the platform's order.
func PlanBatch(current string, raw []map[string]any) (*Plan, error) {
	flat := flatten.Batch(raw)

	subs := make([]*model.Submission, 0, len(flat))
	for _, fields := range flat {
		sub, err := model.NewSubmission(fields)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}

	next, changed, err := cursor.Advance(current, subs)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Records:       make([]PlannedRecord, 0, len(subs)),
		Cursor:        next,
		CursorChanged: changed,
	}
	for _, sub := range subs {
		action := ActionWrite
		if current != "" && sub.LastTouched() == current {
			action = ActionWriteIfAbsent
		}
		plan.Records = append(plan.Records, PlannedRecord{Submission: sub, Action: action})
	}
	return plan, nil
}

// SyncOptions controls one sync cycle.
type SyncOptions struct {
	// AttachmentStorage receives attachments; nil means the primary storage.
	AttachmentStorage storage.Storage
	// NoAttachments skips attachment offload entirely.
	NoAttachments bool
	// IncludeRejected also fetches submissions whose review state is rejected.
	IncludeRejected bool
}

// SyncService pulls changed submissions of one form into storage.
type SyncService struct {
	client platform.Client
	formID string
}

// NewSyncService creates a sync service for formID.
func NewSyncService(client platform.Client, formID string) *SyncService {
	return &SyncService{client: client, formID: formID}
}

// FormID returns the form being synced.
func (s *SyncService) FormID() string {
	return s.formID
}

// Sync runs one cycle and returns the ids of the submissions written, in
// platform order. On failure the ids written before the failure are returned
// with the error; the cursor only advances after every record is applied.
func (s *SyncService) Sync(ctx context.Context, store storage.Storage, opts SyncOptions) ([]string, error) {
	if s.client == nil || s.formID == "" {
		return nil, &model.ConfigurationError{Reason: "platform client and form id are required to sync"}
	}
	if store == nil {
		return nil, &model.ConfigurationError{Reason: "storage is required to sync"}
	}

	ctx, span := tracer.Start(ctx, "Sync.Service.Sync")
	defer span.End()
	span.SetAttributes(attribute.String("sync.form_id", s.formID))

	written, err := s.sync(ctx, store, opts)
	span.SetAttributes(attribute.Int("sync.written", len(written)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sync failed")
	}
	return written, err
}

func (s *SyncService) sync(ctx context.Context, store storage.Storage, opts SyncOptions) ([]string, error) {
	attachments := opts.AttachmentStorage
	if opts.NoAttachments {
		attachments = nil
	} else if attachments == nil {
		attachments = store
	}

	tracker := cursor.NewTracker(store)
	current, err := tracker.Load(ctx)
	if err != nil {
		return nil, err
	}

	filter := cursor.BuildFilter(current, opts.IncludeRejected)
	started := time.Now()
	raw, err := s.client.FetchMatching(ctx, s.formID, filter)
	if err != nil {
		return nil, err
	}
	log.Printf("[SyncService] Fetched %d records for %s in %v (cursor %q)", len(raw), s.formID, time.Since(started), current)

	written := []string{}
	if len(raw) == 0 {
		return written, nil
	}

	plan, err := PlanBatch(current, raw)
	if err != nil {
		return written, err
	}

	for _, rec := range plan.Records {
		sub := rec.Submission
		if rec.Action == ActionWriteIfAbsent {
			present, err := store.QuerySubmission(ctx, sub.ID)
			if err != nil {
				return written, err
			}
			if present {
				continue
			}
		}

		if attachments != nil && attachments.AttachmentsSupported() && sub.HasAttachments() {
			if err := s.offloadAttachments(ctx, attachments, sub.ID); err != nil {
				return written, err
			}
		}

		if err := store.StoreSubmission(ctx, sub.ID, sub.Fields); err != nil {
			return written, err
		}
		written = append(written, sub.ID)
	}

	if plan.CursorChanged {
		if err := tracker.Save(ctx, plan.Cursor); err != nil {
			return written, err
		}
		log.Printf("[SyncService] Cursor advanced to %s", plan.Cursor)
	}

	log.Printf("[SyncService] Wrote %d of %d fetched submissions", len(written), len(plan.Records))
	return written, nil
}

// offloadAttachments streams every existing attachment of a submission into
// dest, one at a time.
func (s *SyncService) offloadAttachments(ctx context.Context, dest storage.Storage, submissionID string) error {
	list, err := s.client.FetchAttachmentList(ctx, s.formID, submissionID)
	if err != nil {
		return err
	}

	for _, att := range list {
		if !att.Exists {
			continue
		}
		if err := s.copyAttachment(ctx, dest, submissionID, att.Name); err != nil {
			return err
		}
	}
	return nil
}

func (s *SyncService) copyAttachment(ctx context.Context, dest storage.Storage, submissionID, name string) error {
	body, err := s.client.FetchAttachment(ctx, s.formID, submissionID, name)
	if err != nil {
		return err
	}
	defer body.Close()

	return dest.StoreAttachment(ctx, submissionID, name, body)
}
