package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"surveysync/internal/cache"
	"surveysync/internal/config"
	"surveysync/internal/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// exerciseStorage runs the behaviour every backend must share.
func exerciseStorage(t *testing.T, s Storage) {
	t.Helper()
	ctx := context.Background()

	ok, err := s.QuerySubmission(ctx, "uuid:1")
	if err != nil || ok {
		t.Fatalf("QuerySubmission(absent) = %v, %v; want false, nil", ok, err)
	}

	fields := model.Fields{"KEY": "uuid:1", "age": 42, "name": "Ada", "note": nil}
	if err := s.StoreSubmission(ctx, "uuid:1", fields); err != nil {
		t.Fatalf("StoreSubmission() error = %v", err)
	}
	// idempotent rewrite
	if err := s.StoreSubmission(ctx, "uuid:1", fields); err != nil {
		t.Fatalf("StoreSubmission() again error = %v", err)
	}
	if err := s.StoreSubmission(ctx, "uuid:0", model.Fields{"KEY": "uuid:0"}); err != nil {
		t.Fatalf("StoreSubmission() error = %v", err)
	}

	ok, err = s.QuerySubmission(ctx, "uuid:1")
	if err != nil || !ok {
		t.Fatalf("QuerySubmission(stored) = %v, %v; want true, nil", ok, err)
	}

	subs, err := s.GetSubmissions(ctx)
	if err != nil {
		t.Fatalf("GetSubmissions() error = %v", err)
	}
	if len(subs) != 2 || subs[0].ID != "uuid:0" || subs[1].ID != "uuid:1" {
		t.Fatalf("GetSubmissions() ids = %v, want [uuid:0 uuid:1]", ids(subs))
	}
	got := subs[1].Fields
	if fmt.Sprint(got["age"]) != "42" || got["name"] != "Ada" {
		t.Errorf("stored fields = %v", got)
	}
	if v, present := got["note"]; !present || v != nil {
		t.Errorf("note = %v (present %v), want nil leaf", v, present)
	}

	if _, ok, err := s.GetMetadata(ctx, model.MetadataCursor); err != nil || ok {
		t.Fatalf("GetMetadata(absent) ok = %v, err = %v", ok, err)
	}
	if err := s.StoreMetadata(ctx, model.MetadataCursor, "2024-01-01T10:00:00.000Z"); err != nil {
		t.Fatalf("StoreMetadata() error = %v", err)
	}
	if err := s.SetDataTimezone(ctx, time.UTC); err != nil {
		t.Fatalf("SetDataTimezone() error = %v", err)
	}

	value, ok, err := s.GetMetadata(ctx, model.MetadataCursor)
	if err != nil || !ok || value != "2024-01-01T10:00:00.000Z" {
		t.Errorf("GetMetadata(cursor) = %q, %v, %v", value, ok, err)
	}
	tz, ok, err := s.GetMetadata(ctx, model.MetadataDataTimezone)
	if err != nil || !ok || tz != "UTC" {
		t.Errorf("GetMetadata(timezone) = %q, %v, %v", tz, ok, err)
	}

	// metadata never shows up as a submission
	subs, _ = s.GetSubmissions(ctx)
	if len(subs) != 2 {
		t.Errorf("GetSubmissions() after metadata = %d rows, want 2", len(subs))
	}
}

func ids(subs []model.StoredSubmission) []string {
	out := make([]string, len(subs))
	for i, s := range subs {
		out[i] = s.ID
	}
	return out
}

func TestMemoryStorage(t *testing.T) {
	s := NewMemoryStorage()
	exerciseStorage(t, s)

	ctx := context.Background()
	if err := s.StoreAttachment(ctx, "uuid:1", "photo.jpg", strings.NewReader("jpeg")); err != nil {
		t.Fatalf("StoreAttachment() error = %v", err)
	}
	data, ok := s.Attachment("uuid:1", "photo.jpg")
	if !ok || string(data) != "jpeg" {
		t.Errorf("Attachment() = %q, %v", data, ok)
	}
}

func TestFileStorage(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileStorage(root)
	if err != nil {
		t.Fatalf("NewFileStorage() error = %v", err)
	}
	exerciseStorage(t, s)

	ctx := context.Background()
	if err := s.StoreAttachment(ctx, "uuid:1", "photo.jpg", strings.NewReader("first")); err != nil {
		t.Fatalf("StoreAttachment() error = %v", err)
	}
	if err := s.StoreAttachment(ctx, "uuid:1", "photo.jpg", strings.NewReader("second")); err != nil {
		t.Fatalf("StoreAttachment() overwrite error = %v", err)
	}

	data, err := os.ReadFile(s.AttachmentPath("uuid:1", "photo.jpg"))
	if err != nil {
		t.Fatalf("read attachment: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("attachment = %q, want %q", data, "second")
	}

	// no temp files are left behind
	leftovers, _ := filepath.Glob(filepath.Join(root, "*", ".tmp-*"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left: %v", leftovers)
	}
}

func TestFileStorageRejectsUnsafeNames(t *testing.T) {
	s, err := NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStorage() error = %v", err)
	}
	ctx := context.Background()

	if err := s.StoreSubmission(ctx, "..", model.Fields{}); !model.IsStorageError(err) {
		t.Errorf("StoreSubmission(..) error = %v, want StorageError", err)
	}
	if err := s.StoreAttachment(ctx, "uuid:1", "", strings.NewReader("x")); !model.IsStorageError(err) {
		t.Errorf("StoreAttachment(empty name) error = %v, want StorageError", err)
	}

	// ids with separators stay inside the submissions directory
	if err := s.StoreSubmission(ctx, "a/b", model.Fields{"KEY": "a/b"}); err != nil {
		t.Fatalf("StoreSubmission(a/b) error = %v", err)
	}
	if ok, _ := s.QuerySubmission(ctx, "a/b"); !ok {
		t.Error("QuerySubmission(a/b) = false, want true")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestFileStorageAttachmentReadFailure(t *testing.T) {
	s, err := NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStorage() error = %v", err)
	}

	err = s.StoreAttachment(context.Background(), "uuid:1", "photo.jpg", failingReader{})
	if !model.IsStorageError(err) {
		t.Fatalf("StoreAttachment() error = %v, want StorageError", err)
	}
	if _, statErr := os.Stat(s.AttachmentPath("uuid:1", "photo.jpg")); !os.IsNotExist(statErr) {
		t.Errorf("partial attachment present: %v", statErr)
	}
}

func TestSQLiteStorage(t *testing.T) {
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"), "forms")
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error = %v", err)
	}
	defer s.Close()

	exerciseStorage(t, s)

	if s.AttachmentsSupported() {
		t.Error("AttachmentsSupported() = true, want false")
	}
	err = s.StoreAttachment(context.Background(), "uuid:1", "a.jpg", strings.NewReader("x"))
	if err != ErrAttachmentsUnsupported {
		t.Errorf("StoreAttachment() error = %v, want ErrAttachmentsUnsupported", err)
	}

	stats, err := s.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if stats["total_submissions"] != int64(2) {
		t.Errorf("total_submissions = %v, want 2", stats["total_submissions"])
	}
}

func TestSQLiteStorageRejectsBadNamespace(t *testing.T) {
	_, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"), "forms; DROP TABLE x")
	if err == nil {
		t.Fatal("NewSQLiteStorage() error = nil, want invalid namespace")
	}
}

// countingStorage counts backend presence lookups.
type countingStorage struct {
	*MemoryStorage
	queries int
	failPut bool
}

func (c *countingStorage) QuerySubmission(ctx context.Context, id string) (bool, error) {
	c.queries++
	return c.MemoryStorage.QuerySubmission(ctx, id)
}

func (c *countingStorage) StoreSubmission(ctx context.Context, id string, fields model.Fields) error {
	if c.failPut {
		return &model.StorageError{Backend: "memory", Op: "store submission " + id, Err: io.ErrShortWrite}
	}
	return c.MemoryStorage.StoreSubmission(ctx, id, fields)
}

func TestCachedStorage(t *testing.T) {
	backend := &countingStorage{MemoryStorage: NewMemoryStorage()}
	c := cache.NewMemoryCache(time.Hour)
	defer c.Close()
	s := NewCachedStorage(backend, c, time.Hour, "forms")
	ctx := context.Background()

	// misses are not cached
	for i := 0; i < 2; i++ {
		if ok, err := s.QuerySubmission(ctx, "uuid:1"); err != nil || ok {
			t.Fatalf("QuerySubmission(absent) = %v, %v", ok, err)
		}
	}
	if backend.queries != 2 {
		t.Errorf("backend queries = %d, want 2", backend.queries)
	}

	if err := s.StoreSubmission(ctx, "uuid:1", model.Fields{"KEY": "uuid:1"}); err != nil {
		t.Fatalf("StoreSubmission() error = %v", err)
	}
	if ok, err := s.QuerySubmission(ctx, "uuid:1"); err != nil || !ok {
		t.Fatalf("QuerySubmission(stored) = %v, %v", ok, err)
	}
	if backend.queries != 2 {
		t.Errorf("backend queries after cached hit = %d, want 2", backend.queries)
	}
}

func TestCachedStorageFailedWriteNotCached(t *testing.T) {
	backend := &countingStorage{MemoryStorage: NewMemoryStorage(), failPut: true}
	c := cache.NewMemoryCache(time.Hour)
	defer c.Close()
	s := NewCachedStorage(backend, c, time.Hour, "forms")
	ctx := context.Background()

	if err := s.StoreSubmission(ctx, "uuid:1", model.Fields{}); !model.IsStorageError(err) {
		t.Fatalf("StoreSubmission() error = %v, want StorageError", err)
	}
	if ok, _ := s.QuerySubmission(ctx, "uuid:1"); ok {
		t.Error("QuerySubmission() = true after failed write")
	}
}

func TestCachedStorageStats(t *testing.T) {
	c := cache.NewMemoryCache(time.Hour)
	defer c.Close()
	s := NewCachedStorage(NewMemoryStorage(), c, time.Hour, "forms")

	stats, err := s.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if stats["backend"] != "memory" || stats["cache"] != "memory" {
		t.Errorf("stats = %v", stats)
	}
}

func TestNew(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     config.StorageConfig
		want    string
		wantErr bool
	}{
		{"default is file", config.StorageConfig{Path: filepath.Join(dir, "files")}, "*storage.FileStorage", false},
		{"memory", config.StorageConfig{Type: "memory"}, "*storage.MemoryStorage", false},
		{"sqlite", config.StorageConfig{Type: "sqlite", Path: filepath.Join(dir, "db"), Namespace: "forms"}, "*storage.SQLiteStorage", false},
		{"postgres without dsn", config.StorageConfig{Type: "postgres"}, "", true},
		{"mongodb without uri", config.StorageConfig{Type: "mongodb"}, "", true},
		{"unknown", config.StorageConfig{Type: "tape"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("New() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			defer s.Close()
			if got := fmt.Sprintf("%T", s); got != tt.want {
				t.Errorf("New() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestBSONFieldsKeepNumbers(t *testing.T) {
	doc, err := bsonFields(model.Fields{
		"age":    json.Number("41"),
		"big":    json.Number("12345678901234567890"),
		"weight": json.Number("72.5"),
		"name":   "Ana",
		"empty":  nil,
		"nested": map[string]interface{}{"count": json.Number("3")},
		"list":   []interface{}{json.Number("9007199254740993")},
	})
	if err != nil {
		t.Fatalf("bsonFields() error = %v", err)
	}

	if doc["age"] != int64(41) {
		t.Errorf("age = %#v, want int64(41)", doc["age"])
	}
	big, ok := doc["big"].(primitive.Decimal128)
	if !ok || big.String() != "12345678901234567890" {
		t.Errorf("big = %#v, want exact Decimal128", doc["big"])
	}
	if doc["weight"] != 72.5 {
		t.Errorf("weight = %#v, want 72.5", doc["weight"])
	}
	if doc["name"] != "Ana" || doc["empty"] != nil {
		t.Errorf("non-numeric fields changed: %v", doc)
	}
	if nested := doc["nested"].(map[string]interface{}); nested["count"] != int64(3) {
		t.Errorf("nested = %#v", nested)
	}
	if list := doc["list"].([]interface{}); list[0] != int64(9007199254740993) {
		t.Errorf("list = %#v, want exact int64 beyond 2^53", list)
	}

	back := fieldsFromBSON(doc)
	if back["big"] != json.Number("12345678901234567890") {
		t.Errorf("read back big = %#v, want json.Number", back["big"])
	}
}

func TestBSONFieldsRejectsBadNumber(t *testing.T) {
	if _, err := bsonFields(model.Fields{"age": json.Number("forty")}); err == nil {
		t.Error("bsonFields() error = nil, want invalid number")
	}
}
