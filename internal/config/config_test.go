package config

import (
	"errors"
	"testing"
	"time"

	"surveysync/internal/model"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Storage.Namespace != "submissions" {
		t.Errorf("Storage.Namespace = %q, want submissions", cfg.Storage.Namespace)
	}
	if cfg.Cache.Type != "none" {
		t.Errorf("Cache.Type = %q, want none", cfg.Cache.Type)
	}
	if cfg.Sync.Interval != 15*time.Minute {
		t.Errorf("Sync.Interval = %v, want 15m", cfg.Sync.Interval)
	}
}

func TestLoadStorageSections(t *testing.T) {
	t.Setenv("STORAGE_TYPE", "sqlite")
	t.Setenv("STORAGE_PATH", "/var/lib/surveysync/db.sqlite")
	t.Setenv("ATTACHMENT_STORAGE_TYPE", "file")
	t.Setenv("ATTACHMENT_STORAGE_PATH", "/srv/attachments")
	t.Setenv("ATTACHMENT_STORAGE_MONGO_URI", "mongodb://example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Storage.Type != "sqlite" || cfg.Storage.Path != "/var/lib/surveysync/db.sqlite" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Attachments.Type != "file" || cfg.Attachments.Path != "/srv/attachments" {
		t.Errorf("Attachments = %+v", cfg.Attachments)
	}
	if cfg.Attachments.MongoURI != "mongodb://example" {
		t.Errorf("Attachments.MongoURI = %q", cfg.Attachments.MongoURI)
	}
	if cfg.Storage.MongoURI != "" {
		t.Errorf("Storage.MongoURI = %q, want empty", cfg.Storage.MongoURI)
	}
	if !cfg.Attachments.Enabled() {
		t.Error("Attachments.Enabled() = false, want true")
	}
}

func TestLoadAPIKeys(t *testing.T) {
	t.Setenv("API_KEYS", "alpha,beta")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.App.APIKeys) != 2 || cfg.App.APIKeys[0] != "alpha" || cfg.App.APIKeys[1] != "beta" {
		t.Errorf("APIKeys = %v, want [alpha beta]", cfg.App.APIKeys)
	}
}

func TestPlatformValidate(t *testing.T) {
	valid := PlatformConfig{BaseURL: "https://odk.example.org", ProjectID: 3, FormID: "household"}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}

	missing := PlatformConfig{BaseURL: "https://odk.example.org"}
	err := missing.Validate()

	var cfgErr *model.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Validate() error = %v, want ConfigurationError", err)
	}
	if cfgErr.Reason != "missing ODK_PROJECT_ID, ODK_FORM_ID" {
		t.Errorf("Reason = %q", cfgErr.Reason)
	}
}
