package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aponysus/smartretry/policy"
	"github.com/aponysus/smartretry/store"
	"github.com/aponysus/smartretry/store/filestore"
	"github.com/aponysus/smartretry/store/sqlitestore"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "smartretry.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Retry.MaxRetries != 3 || cfg.Retry.DelayMS != 2000 || cfg.Retry.Backoff != "exponential" {
		t.Fatalf("retry=%+v", cfg.Retry)
	}
	if cfg.Store.Driver != DriverFile || cfg.Store.Path != filestore.DefaultFileName || cfg.Store.Prefix != "smartretry" {
		t.Fatalf("store=%+v", cfg.Store)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Fatalf("logging=%+v", cfg.Logging)
	}

	p, err := cfg.Policy()
	if err != nil {
		t.Fatalf("Policy: %v", err)
	}
	if p.MaxAttempts != 3 || p.BaseDelay != 2*time.Second || p.Backoff != policy.BackoffExponential {
		t.Fatalf("policy=%+v", p)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("SMARTRETRY_TEST_DB", "/tmp/failures.db")
	path := writeConfig(t, `
retry:
  max_retries: 5
  delay_ms: 250
  backoff: linear
  classifier: always
store:
  driver: sqlite
  path: ${SMARTRETRY_TEST_DB}
logging:
  level: debug
  format: json
metrics:
  addr: ":9090"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Driver != DriverSQLite || cfg.Store.Path != "/tmp/failures.db" {
		t.Fatalf("store=%+v", cfg.Store)
	}
	if cfg.Logging.Format != "json" || cfg.Metrics.Addr != ":9090" {
		t.Fatalf("cfg=%+v", cfg)
	}

	p, err := cfg.Policy()
	if err != nil {
		t.Fatalf("Policy: %v", err)
	}
	if p.MaxAttempts != 5 || p.BaseDelay != 250*time.Millisecond || p.Backoff != policy.BackoffLinear || p.ClassifierName != "always" {
		t.Fatalf("policy=%+v", p)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "retry:\n  max_retries: 1\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Retry.MaxRetries != 1 || cfg.Retry.DelayMS != 2000 || cfg.Store.Driver != DriverFile {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "retry: [unterminated"},
		{"bad backoff", "retry:\n  backoff: fibonacci\n"},
		{"bad driver", "store:\n  driver: mongo\n"},
		{"negative delay", "retry:\n  delay_ms: -5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err=%v, want ErrNotExist", err)
	}
}

func TestLoad_BadBackoffIsNormalizeError(t *testing.T) {
	_, err := Load(writeConfig(t, "retry:\n  backoff: fibonacci\n"))
	var nerr *policy.NormalizeError
	if !errors.As(err, &nerr) || nerr.Field != "retry.backoff" {
		t.Fatalf("err=%v, want NormalizeError", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	t.Chdir(t.TempDir())

	if err := LoadDotEnv(); err != nil {
		t.Fatalf("LoadDotEnv without file: %v", err)
	}

	if err := os.WriteFile(".env", []byte("SMARTRETRY_DOTENV_CHECK=loaded\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("SMARTRETRY_DOTENV_CHECK", "")
	os.Unsetenv("SMARTRETRY_DOTENV_CHECK")

	if err := LoadDotEnv(); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("SMARTRETRY_DOTENV_CHECK"); got != "loaded" {
		t.Fatalf("env=%q, want loaded", got)
	}
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name  string
		cfg   StoreConfig
		check func(t *testing.T, s store.Store)
	}{
		{
			name: "file",
			cfg:  StoreConfig{Driver: DriverFile, Path: filepath.Join(dir, "log.json")},
			check: func(t *testing.T, s store.Store) {
				if _, ok := s.(*filestore.Store); !ok {
					t.Fatalf("store=%T", s)
				}
			},
		},
		{
			name: "memory",
			cfg:  StoreConfig{Driver: DriverMemory},
			check: func(t *testing.T, s store.Store) {
				if _, ok := s.(*store.Memory); !ok {
					t.Fatalf("store=%T", s)
				}
			},
		},
		{
			name: "sqlite",
			cfg:  StoreConfig{Driver: DriverSQLite, Path: filepath.Join(dir, "log.db")},
			check: func(t *testing.T, s store.Store) {
				if _, ok := s.(*sqlitestore.Store); !ok {
					t.Fatalf("store=%T", s)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, closer, err := OpenStore(ctx, tt.cfg)
			if err != nil {
				t.Fatalf("OpenStore: %v", err)
			}
			defer closer.Close()
			tt.check(t, s)

			if n, err := s.Count(ctx); err != nil || n != 0 {
				t.Fatalf("Count=%d err=%v", n, err)
			}
		})
	}

	if _, _, err := OpenStore(ctx, StoreConfig{Driver: "mongo"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
