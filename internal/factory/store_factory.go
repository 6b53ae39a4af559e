package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mikey/inbox-triage/internal/adapters/store"
	"github.com/mikey/inbox-triage/internal/config"
	"github.com/mikey/inbox-triage/internal/ports"
)

// StoreFactory creates stores based on configuration
type StoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, logger *zap.Logger) *StoreFactory {
	return &StoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateStore creates the configured store and starts its janitor
func (f *StoreFactory) CreateStore() (ports.Store, error) {
	c, err := f.cfg.GetStore()
	if err != nil {
		return nil, err
	}
	opts := store.Options{
		CleanupInterval: c.CleanupInterval,
		RunRetention:    c.RunRetention,
	}

	switch c.Type {
	case "memory":
		return store.NewMemoryStore(f.logger, opts), nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(c.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return store.NewSQLiteStore(c.SQLitePath, f.logger, opts)
	case "mysql":
		return store.NewMySQLStore(c.MySQLDSN, f.logger, opts)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", c.Type)
	}
}
