package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"surveysync/internal/config"
	"surveysync/internal/model"
)

// New opens the backend selected by cfg.Type. An empty type means the file backend.
func New(cfg config.StorageConfig) (Storage, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "file":
		return NewFileStorage(cfg.Path)
	case "memory":
		return NewMemoryStorage(), nil
	case "sqlite":
		path := cfg.DSN
		if path == "" {
			if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create %s: %w", cfg.Path, err)
			}
			path = filepath.Join(cfg.Path, cfg.Namespace+".db")
		}
		return NewSQLiteStorage(path, cfg.Namespace)
	case "postgres", "postgresql":
		if cfg.DSN == "" {
			return nil, &model.ConfigurationError{Reason: "postgres storage requires a DSN"}
		}
		return NewPostgresStorage(cfg.DSN, cfg.Namespace)
	case "mysql":
		if cfg.DSN == "" {
			return nil, &model.ConfigurationError{Reason: "mysql storage requires a DSN"}
		}
		return NewMySQLStorage(cfg.DSN, cfg.Namespace)
	case "mongodb", "mongo":
		if cfg.MongoURI == "" {
			return nil, &model.ConfigurationError{Reason: "mongodb storage requires a MONGO_URI"}
		}
		return NewMongoDBStorage(cfg.MongoURI, cfg.MongoDatabase, cfg.Namespace)
	case "redis":
		return NewRedisStorage(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.Namespace)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, cfg.Type)
	}
}
