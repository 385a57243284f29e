package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vidyasagar/gsurf/internal/gemini"
	"github.com/vidyasagar/gsurf/internal/logging"
	"github.com/vidyasagar/gsurf/internal/metrics"
	"github.com/vidyasagar/gsurf/internal/storage"
	"go.uber.org/zap"
)

// env is what every command needs: configuration, storage, logging and a
// client that pins certificates in the known-hosts table.
type env struct {
	cfg     *storage.Config
	dataDir string
	db      *storage.DB
	pins    *storage.PinStore
	logger  *zap.Logger
	metrics *metrics.Metrics
	client  *gemini.Client
}

func setup(cmd *cobra.Command) (*env, error) {
	cfg, err := storage.LoadConfig()
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, cfg)

	dataDir, err := storage.DataDir()
	if err != nil {
		return nil, err
	}

	logCfg := logging.DefaultConfig(dataDir)
	logCfg.Level = cfg.LogLevel
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, err
	}

	db, err := storage.OpenDB(dataDir)
	if err != nil {
		logger.Sync() //nolint:errcheck
		return nil, fmt.Errorf("opening database: %w", err)
	}
	pins, err := storage.NewPinStore(db)
	if err != nil {
		db.Close()
		logger.Sync() //nolint:errcheck
		return nil, err
	}

	m := metrics.New()
	client := gemini.NewClient(pins,
		gemini.WithTimeouts(cfg.ConnectTimeoutDuration(), cfg.ReadTimeoutDuration()),
		gemini.WithLogger(logger.Named("gemini")),
		gemini.WithMetrics(m),
	)

	return &env{
		cfg:     cfg,
		dataDir: dataDir,
		db:      db,
		pins:    pins,
		logger:  logger,
		metrics: m,
		client:  client,
	}, nil
}

// applyFlags lets command-line flags override the loaded configuration.
func applyFlags(cmd *cobra.Command, cfg *storage.Config) {
	flags := cmd.Flags()
	if flags.Changed("connect-timeout") {
		if v, err := flags.GetInt("connect-timeout"); err == nil && v > 0 {
			cfg.ConnectTimeout = v
		}
	}
	if flags.Changed("read-timeout") {
		if v, err := flags.GetInt("read-timeout"); err == nil && v > 0 {
			cfg.ReadTimeout = v
		}
	}
	if flags.Changed("log-level") {
		if v, err := flags.GetString("log-level"); err == nil && v != "" {
			cfg.LogLevel = v
		}
	}
}

func (e *env) Close() {
	if err := e.db.Close(); err != nil {
		e.logger.Warn("closing database", zap.Error(err))
	}
	e.logger.Sync() //nolint:errcheck
}
