package storage

import (
	"context"
	"io"
	"time"

	"surveysync/internal/model"
)

// Storage defines the persistence capabilities the sync engine relies on.
// Implementations must report a submission as present only once it is durably
// stored, and must surface every failure; retries belong to the caller.
type Storage interface {
	// StoreSubmission persists or overwrites the flat record under id. Idempotent.
	StoreSubmission(ctx context.Context, id string, fields model.Fields) error

	// QuerySubmission reports whether a submission is already stored.
	QuerySubmission(ctx context.Context, id string) (bool, error)

	// StoreAttachment persists attachment bytes read from data.
	StoreAttachment(ctx context.Context, submissionID, name string, data io.Reader) error

	// AttachmentsSupported reports whether StoreAttachment is usable.
	AttachmentsSupported() bool

	// GetMetadata returns a metadata value; ok is false when the key is absent.
	GetMetadata(ctx context.Context, key model.MetadataKey) (value string, ok bool, err error)

	// StoreMetadata persists a metadata value.
	StoreMetadata(ctx context.Context, key model.MetadataKey, value string) error

	// SetDataTimezone records the timezone stored timestamps are expressed in.
	SetDataTimezone(ctx context.Context, loc *time.Location) error

	// GetSubmissions returns every stored submission.
	GetSubmissions(ctx context.Context) ([]model.StoredSubmission, error)

	// Close releases the backend's resources.
	Close() error
}

// Common storage errors
type Error string

func (e Error) Error() string { return string(e) }

const (
	// ErrAttachmentsUnsupported is returned by backends that cannot hold attachments.
	ErrAttachmentsUnsupported Error = "attachments not supported by this storage"

	// ErrUnknownType is returned by New for an unrecognised storage type.
	ErrUnknownType Error = "unknown storage type"
)

// StatsProvider is implemented by backends that can report usage statistics.
type StatsProvider interface {
	GetStats(ctx context.Context) (map[string]interface{}, error)
}
