package main

import (
	"io"
	"log"

	"surveysync/internal/cache"
	"surveysync/internal/config"
	"surveysync/internal/platform/odk"
	"surveysync/internal/service"
	"surveysync/internal/storage"
)

// app holds the components shared by every command.
type app struct {
	svc     *service.SyncService
	store   storage.Storage
	opts    service.SyncOptions
	closers []io.Closer
}

// newApp wires the platform client, storage, presence cache and attachment
// destination from cfg. requirePlatform turns missing ODK settings into an
// error; otherwise the service is built without a client and every sync
// reports the configuration error.
func newApp(cfg *config.Config, requirePlatform bool) (*app, error) {
	a := &app{
		opts: service.SyncOptions{
			NoAttachments:   cfg.Sync.NoAttachments,
			IncludeRejected: cfg.Sync.IncludeRejected,
		},
	}

	a.svc = service.NewSyncService(nil, cfg.Platform.FormID)
	if err := cfg.Platform.Validate(); err != nil {
		if requirePlatform {
			return nil, err
		}
		log.Printf("Warning: %v; sync is disabled until it is configured", err)
	} else {
		client := odk.NewClient(cfg.Platform.BaseURL, cfg.Platform.ProjectID,
			odk.WithCredentials(cfg.Platform.Username, cfg.Platform.Password),
			odk.WithHTTPTimeout(cfg.Platform.Timeout),
			odk.WithPageSize(cfg.Platform.PageSize),
		)
		a.svc = service.NewSyncService(client, cfg.Platform.FormID)
	}

	store, err := storage.New(cfg.Storage)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store)
	log.Printf("Storage initialized: %s", storageType(cfg.Storage))

	presence, err := cache.New(cfg.Cache)
	if err != nil {
		log.Printf("Warning: presence cache disabled: %v", err)
	} else if presence != nil {
		a.closers = append(a.closers, presence)
		store = storage.NewCachedStorage(store, presence, cfg.Cache.TTL, cfg.Storage.Namespace)
		log.Printf("Presence cache initialized: %s (ttl %v)", cfg.Cache.Type, cfg.Cache.TTL)
	}
	a.store = store

	if cfg.Attachments.Enabled() && !cfg.Sync.NoAttachments {
		attachments, err := storage.New(cfg.Attachments)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, attachments)
		a.opts.AttachmentStorage = attachments
		log.Printf("Attachment storage initialized: %s", cfg.Attachments.Type)
	}

	return a, nil
}

// Close releases every opened component.
func (a *app) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			log.Printf("Warning: close failed: %v", err)
		}
	}
}

func storageType(cfg config.StorageConfig) string {
	if cfg.Type == "" {
		return "file"
	}
	return cfg.Type
}
