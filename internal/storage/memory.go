package storage

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"surveysync/internal/model"
)

// MemoryStorage is an in-process implementation of Storage.
// Use this for development/testing; nothing survives a restart.
type MemoryStorage struct {
	mu          sync.RWMutex
	submissions map[string]model.Fields
	attachments map[string]map[string][]byte
	metadata    map[model.MetadataKey]string
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		submissions: make(map[string]model.Fields),
		attachments: make(map[string]map[string][]byte),
		metadata:    make(map[model.MetadataKey]string),
	}
}

// StoreSubmission stores a copy of fields under id.
func (s *MemoryStorage) StoreSubmission(ctx context.Context, id string, fields model.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.submissions[id] = copyFields(fields)
	return nil
}

// QuerySubmission checks whether id is stored.
func (s *MemoryStorage) QuerySubmission(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.submissions[id]
	return ok, nil
}

// StoreAttachment reads data fully and keeps it in memory.
func (s *MemoryStorage) StoreAttachment(ctx context.Context, submissionID, name string, data io.Reader) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, data); err != nil {
		return &model.StorageError{Backend: "memory", Op: "read attachment " + name, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attachments[submissionID] == nil {
		s.attachments[submissionID] = make(map[string][]byte)
	}
	s.attachments[submissionID][name] = buf.Bytes()
	return nil
}

// AttachmentsSupported always returns true.
func (s *MemoryStorage) AttachmentsSupported() bool { return true }

// Attachment returns stored attachment bytes, for inspection.
func (s *MemoryStorage) Attachment(submissionID, name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.attachments[submissionID][name]
	return data, ok
}

// GetMetadata retrieves a metadata value.
func (s *MemoryStorage) GetMetadata(ctx context.Context, key model.MetadataKey) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.metadata[key]
	return v, ok, nil
}

// StoreMetadata stores a metadata value.
func (s *MemoryStorage) StoreMetadata(ctx context.Context, key model.MetadataKey, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metadata[key] = value
	return nil
}

// SetDataTimezone records loc under the data timezone metadata key.
func (s *MemoryStorage) SetDataTimezone(ctx context.Context, loc *time.Location) error {
	return s.StoreMetadata(ctx, model.MetadataDataTimezone, loc.String())
}

// GetSubmissions returns copies of all stored submissions, ordered by id.
func (s *MemoryStorage) GetSubmissions(ctx context.Context) ([]model.StoredSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.StoredSubmission, 0, len(s.submissions))
	for id, fields := range s.submissions {
		out = append(out, model.StoredSubmission{ID: id, Fields: copyFields(fields)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetStats returns submission and attachment counts.
func (s *MemoryStorage) GetStats(ctx context.Context) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	attachments := 0
	for _, byName := range s.attachments {
		attachments += len(byName)
	}
	return map[string]interface{}{
		"backend":           "memory",
		"total_submissions": len(s.submissions),
		"total_attachments": attachments,
	}, nil
}

// Close is a no-op.
func (s *MemoryStorage) Close() error { return nil }

func copyFields(fields model.Fields) model.Fields {
	out := make(model.Fields, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// Ensure MemoryStorage implements Storage
var _ Storage = (*MemoryStorage)(nil)
