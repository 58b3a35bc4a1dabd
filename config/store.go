package config

import (
	"context"
	"fmt"
	"io"

	"github.com/aponysus/smartretry/store"
	"github.com/aponysus/smartretry/store/filestore"
	"github.com/aponysus/smartretry/store/pgstore"
	"github.com/aponysus/smartretry/store/redisstore"
	"github.com/aponysus/smartretry/store/sqlitestore"
)

// Store drivers accepted in store.driver.
const (
	DriverFile     = "file"
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

func knownDriver(d string) bool {
	switch d {
	case DriverFile, DriverMemory, DriverSQLite, DriverRedis, DriverPostgres:
		return true
	default:
		return false
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenStore opens the store selected by cfg.Driver. The returned closer
// releases connections held by the store and is never nil on success.
func OpenStore(ctx context.Context, cfg StoreConfig) (store.Store, io.Closer, error) {
	switch cfg.Driver {
	case DriverFile, "":
		s, err := filestore.Open(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, nopCloser{}, nil
	case DriverMemory:
		return store.NewMemory(), nopCloser{}, nil
	case DriverSQLite:
		path := cfg.Path
		if path == "" {
			path = "smart-retry-log.db"
		}
		s, err := sqlitestore.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case DriverRedis:
		s, err := redisstore.Open(ctx, redisstore.Config{URL: cfg.URL, Prefix: cfg.Prefix})
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case DriverPostgres:
		s, err := pgstore.Open(ctx, cfg.URL)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("config: unknown store driver %q", cfg.Driver)
	}
}
