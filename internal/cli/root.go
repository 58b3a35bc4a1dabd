// Package cli implements the smartretry command.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aponysus/smartretry/config"
	"github.com/aponysus/smartretry/internal/logging"
	"github.com/aponysus/smartretry/retry"
	"github.com/aponysus/smartretry/store/filestore"
)

// DefaultConfigPath is read when --config is not given. A missing default
// file falls back to built-in defaults.
const DefaultConfigPath = "smartretry.yaml"

// errRequestFailed is returned after a failed request has been reported on
// stdout.
var errRequestFailed = errors.New("request failed")

type rootFlags struct {
	cfgPath string
	isDebug bool
	store   string
	driver  string
}

// Execute runs the command and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		if !errors.Is(err, errRequestFailed) {
			slog.Error("smartretry failed", "error", err)
		}
		os.Exit(1)
	}
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:           "smartretry",
		Short:         "Retry HTTP requests and inspect the failure log",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.cfgPath, "config", DefaultConfigPath, "config file")
	rootCmd.PersistentFlags().BoolVar(&flags.isDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flags.store, "store", "", "store location (file path, or URL for redis/postgres)")
	rootCmd.PersistentFlags().StringVar(&flags.driver, "driver", "", "store driver: file, memory, sqlite, redis, postgres")

	rootCmd.AddCommand(newRequestCmd(flags))
	rootCmd.AddCommand(newFailuresCmd(flags))
	return rootCmd
}

// env is everything a subcommand needs after flags and config are resolved.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	exec   *retry.Executor
	closer io.Closer
}

func (e *env) Close() error {
	if e.closer == nil {
		return nil
	}
	return e.closer.Close()
}

func loadConfig(cmd *cobra.Command, flags *rootFlags) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	cfg, err := config.Load(flags.cfgPath)
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return nil, err
	}

	if flags.driver != "" && flags.driver != cfg.Store.Driver {
		cfg.Store.Driver = flags.driver
		if cfg.Store.Path == filestore.DefaultFileName {
			cfg.Store.Path = ""
		}
	}
	if flags.store != "" {
		switch cfg.Store.Driver {
		case config.DriverRedis, config.DriverPostgres:
			cfg.Store.URL = flags.store
		default:
			cfg.Store.Path = flags.store
		}
	}
	if flags.isDebug {
		cfg.Logging.Level = "debug"
	}
	return cfg, cfg.Validate()
}

// openEnv builds the logger and opens the store behind an executor. Callers
// must Close the returned env.
func openEnv(ctx context.Context, cmd *cobra.Command, cfg *config.Config, opts ...retry.Option) (*env, error) {
	logger, err := logging.Setup(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	pol, err := cfg.Policy()
	if err != nil {
		return nil, err
	}

	st, closer, err := config.OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}

	base := []retry.Option{
		retry.WithPolicy(pol),
		retry.WithStore(st),
		retry.WithLogger(logger),
	}
	exec, err := retry.New(append(base, opts...)...)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	return &env{cfg: cfg, logger: logger, exec: exec, closer: closer}, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
