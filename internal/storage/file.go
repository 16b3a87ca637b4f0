package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"surveysync/internal/model"
)

const (
	submissionsDir = "submissions"
	attachmentsDir = "attachments"
	metadataDir    = "metadata"
)

// FileStorage implements Storage on a local directory tree:
//
//	<root>/submissions/<id>.json
//	<root>/attachments/<id>/<name>
//	<root>/metadata/<key>
//
// Every write goes to a temp file that is synced and renamed into place, so a
// file that exists is complete.
type FileStorage struct {
	root string
}

// NewFileStorage creates the directory tree under root if needed.
func NewFileStorage(root string) (*FileStorage, error) {
	for _, dir := range []string{submissionsDir, attachmentsDir, metadataDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", dir, err)
		}
	}

	log.Printf("[FileStorage] Initialized at: %s", root)
	return &FileStorage{root: root}, nil
}

// StoreSubmission writes fields as JSON to the submission's file.
func (s *FileStorage) StoreSubmission(ctx context.Context, id string, fields model.Fields) error {
	name, err := fileName(id)
	if err != nil {
		return s.fail("store submission", err)
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return s.fail("encode submission "+id, err)
	}

	path := filepath.Join(s.root, submissionsDir, name+".json")
	if err := writeFileAtomic(path, bytes.NewReader(data)); err != nil {
		return s.fail("store submission "+id, err)
	}
	return nil
}

// QuerySubmission checks for the submission's file.
func (s *FileStorage) QuerySubmission(ctx context.Context, id string) (bool, error) {
	name, err := fileName(id)
	if err != nil {
		return false, s.fail("query submission", err)
	}

	_, err = os.Stat(filepath.Join(s.root, submissionsDir, name+".json"))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, s.fail("query submission "+id, err)
}

// StoreAttachment streams data into the attachment's file.
func (s *FileStorage) StoreAttachment(ctx context.Context, submissionID, name string, data io.Reader) error {
	dir, err := fileName(submissionID)
	if err != nil {
		return s.fail("store attachment", err)
	}
	file, err := fileName(name)
	if err != nil {
		return s.fail("store attachment", err)
	}

	if err := os.MkdirAll(filepath.Join(s.root, attachmentsDir, dir), 0o755); err != nil {
		return s.fail("create attachment directory", err)
	}

	path := filepath.Join(s.root, attachmentsDir, dir, file)
	if err := writeFileAtomic(path, data); err != nil {
		return s.fail("store attachment "+name, err)
	}
	return nil
}

// AttachmentsSupported always returns true.
func (s *FileStorage) AttachmentsSupported() bool { return true }

// AttachmentPath returns where an attachment is (or would be) stored.
func (s *FileStorage) AttachmentPath(submissionID, name string) string {
	dir, _ := fileName(submissionID)
	file, _ := fileName(name)
	return filepath.Join(s.root, attachmentsDir, dir, file)
}

// GetMetadata reads a metadata file.
func (s *FileStorage) GetMetadata(ctx context.Context, key model.MetadataKey) (string, bool, error) {
	data, err := os.ReadFile(filepath.Join(s.root, metadataDir, string(key)))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, s.fail("read metadata "+string(key), err)
	}
	return string(data), true, nil
}

// StoreMetadata writes a metadata file.
func (s *FileStorage) StoreMetadata(ctx context.Context, key model.MetadataKey, value string) error {
	path := filepath.Join(s.root, metadataDir, string(key))
	if err := writeFileAtomic(path, strings.NewReader(value)); err != nil {
		return s.fail("store metadata "+string(key), err)
	}
	return nil
}

// SetDataTimezone records loc under the data timezone metadata key.
func (s *FileStorage) SetDataTimezone(ctx context.Context, loc *time.Location) error {
	return s.StoreMetadata(ctx, model.MetadataDataTimezone, loc.String())
}

// GetSubmissions reads every submission file, ordered by id.
func (s *FileStorage) GetSubmissions(ctx context.Context) ([]model.StoredSubmission, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, submissionsDir))
	if err != nil {
		return nil, s.fail("list submissions", err)
	}

	out := make([]model.StoredSubmission, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		id, err := url.QueryUnescape(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			return nil, s.fail("decode submission file name "+entry.Name(), err)
		}

		data, err := os.ReadFile(filepath.Join(s.root, submissionsDir, entry.Name()))
		if err != nil {
			return nil, s.fail("read submission "+id, err)
		}

		fields, err := decodeFields(data)
		if err != nil {
			return nil, s.fail("decode submission "+id, err)
		}
		out = append(out, model.StoredSubmission{ID: id, Fields: fields})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetStats counts submission files and reports the storage root.
func (s *FileStorage) GetStats(ctx context.Context) (map[string]interface{}, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, submissionsDir))
	if err != nil {
		return nil, s.fail("list submissions", err)
	}

	count := 0
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			count++
		}
	}
	return map[string]interface{}{
		"backend":           "file",
		"root":              s.root,
		"total_submissions": count,
	}, nil
}

// Close is a no-op.
func (s *FileStorage) Close() error { return nil }

func (s *FileStorage) fail(op string, err error) error {
	return &model.StorageError{Backend: "file", Op: op, Err: err}
}

// fileName escapes an id into a single safe path element.
func fileName(id string) (string, error) {
	if id == "" || id == "." || id == ".." {
		return "", fmt.Errorf("invalid name %q", id)
	}
	return url.QueryEscape(id), nil
}

func writeFileAtomic(path string, data io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// decodeFields decodes stored JSON, keeping numbers as json.Number so values
// round-trip without float conversion.
func decodeFields(data []byte) (model.Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var fields model.Fields
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// Ensure FileStorage implements Storage
var _ Storage = (*FileStorage)(nil)
