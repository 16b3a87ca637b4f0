package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"time"

	"surveysync/internal/model"
)

var namespacePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// sqlQueries holds the dialect-specific statements for one namespace.
type sqlQueries struct {
	upsertSubmission string // id, fields, stored_at
	existsSubmission string // id
	selectAll        string
	upsertMetadata   string // name, value, updated_at
	selectMetadata   string // name
	countSubmissions string
	lastStored       string
}

// sqlStorage implements Storage over database/sql. Each backend file supplies
// its schema and statements; attachments are not supported.
type sqlStorage struct {
	db      *sql.DB
	backend string
	q       sqlQueries
}

func validateNamespace(ns string) error {
	if !namespacePattern.MatchString(ns) {
		return fmt.Errorf("invalid storage namespace %q", ns)
	}
	return nil
}

// StoreSubmission upserts the submission row.
func (s *sqlStorage) StoreSubmission(ctx context.Context, id string, fields model.Fields) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return s.fail("encode submission "+id, err)
	}

	if _, err := s.db.ExecContext(ctx, s.q.upsertSubmission, id, string(data), time.Now().UTC()); err != nil {
		return s.fail("store submission "+id, err)
	}
	return nil
}

// QuerySubmission checks for the submission row.
func (s *sqlStorage) QuerySubmission(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, s.q.existsSubmission, id).Scan(&one)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, s.fail("query submission "+id, err)
	}
	return true, nil
}

// StoreAttachment is not supported by SQL backends.
func (s *sqlStorage) StoreAttachment(ctx context.Context, submissionID, name string, data io.Reader) error {
	return ErrAttachmentsUnsupported
}

// AttachmentsSupported always returns false.
func (s *sqlStorage) AttachmentsSupported() bool { return false }

// GetMetadata reads a metadata row.
func (s *sqlStorage) GetMetadata(ctx context.Context, key model.MetadataKey) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.q.selectMetadata, string(key)).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, s.fail("read metadata "+string(key), err)
	}
	return value, true, nil
}

// StoreMetadata upserts a metadata row.
func (s *sqlStorage) StoreMetadata(ctx context.Context, key model.MetadataKey, value string) error {
	if _, err := s.db.ExecContext(ctx, s.q.upsertMetadata, string(key), value, time.Now().UTC()); err != nil {
		return s.fail("store metadata "+string(key), err)
	}
	return nil
}

// SetDataTimezone records loc under the data timezone metadata key.
func (s *sqlStorage) SetDataTimezone(ctx context.Context, loc *time.Location) error {
	return s.StoreMetadata(ctx, model.MetadataDataTimezone, loc.String())
}

// GetSubmissions reads every submission row, ordered by id.
func (s *sqlStorage) GetSubmissions(ctx context.Context) ([]model.StoredSubmission, error) {
	rows, err := s.db.QueryContext(ctx, s.q.selectAll)
	if err != nil {
		return nil, s.fail("list submissions", err)
	}
	defer rows.Close()

	var out []model.StoredSubmission
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, s.fail("scan submission", err)
		}

		fields, err := decodeFields(raw)
		if err != nil {
			return nil, s.fail("decode submission "+id, err)
		}
		out = append(out, model.StoredSubmission{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("list submissions", err)
	}
	return out, nil
}

// GetStats returns statistics about the submissions table.
func (s *sqlStorage) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})
	stats["backend"] = s.backend

	var count int64
	if err := s.db.QueryRowContext(ctx, s.q.countSubmissions).Scan(&count); err != nil {
		return nil, s.fail("count submissions", err)
	}
	stats["total_submissions"] = count

	var lastStored sql.NullString
	if err := s.db.QueryRowContext(ctx, s.q.lastStored).Scan(&lastStored); err == nil && lastStored.Valid {
		stats["last_stored"] = lastStored.String
	}

	dbStats := s.db.Stats()
	stats["connections"] = map[string]interface{}{
		"open":     dbStats.OpenConnections,
		"in_use":   dbStats.InUse,
		"idle":     dbStats.Idle,
		"max_open": dbStats.MaxOpenConnections,
	}
	return stats, nil
}

// Close closes the database connection.
func (s *sqlStorage) Close() error {
	return s.db.Close()
}

func (s *sqlStorage) fail(op string, err error) error {
	return &model.StorageError{Backend: s.backend, Op: op, Err: err}
}
