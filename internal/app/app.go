// Package app wires the configured collaborators of a pipeline run and owns
// their lifecycle.
package app

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/teamhub/teamhub/internal/config"
	perrors "github.com/teamhub/teamhub/internal/errors"
	"github.com/teamhub/teamhub/internal/fetch"
	"github.com/teamhub/teamhub/internal/observability"
	"github.com/teamhub/teamhub/internal/pipeline"
	"github.com/teamhub/teamhub/internal/store"
)

// App holds the resources of one pipeline run.
type App struct {
	cfg *config.Config

	logger   *zap.Logger
	store    store.Store
	metrics  *observability.Metrics
	pipeline *pipeline.Pipeline

	// Closed in reverse order of registration
	closers   []io.Closer
	closersMu sync.Mutex
	stopOnce  sync.Once
}

// New resolves and validates cfg and creates the run's data directories.
func New(cfg *config.Config) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, perrors.NewInvalidConfigError(err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	return &App{cfg: cfg, logger: logger}, nil
}

// Start opens the store and builds the pipeline.
func (a *App) Start(ctx context.Context) error {
	s, err := store.Open(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", a.cfg.Store.Type, err)
	}
	a.store = s
	a.registerCloser(s)

	a.metrics = observability.NewMetrics()
	client := fetch.NewClient(a.cfg.Upstream.BaseURL, a.cfg.Upstream.Timeout, a.cfg.Upstream.UserAgent)
	a.pipeline = pipeline.New(a.cfg, s, client, a.logger, pipeline.WithMetrics(a.metrics))

	a.logger.Debug("pipeline ready",
		zap.String("store", string(a.cfg.Store.Type)),
		zap.String("run_id", a.pipeline.RunID()))
	return nil
}

// Pipeline returns the pipeline built by Start.
func (a *App) Pipeline() *pipeline.Pipeline { return a.pipeline }

// Store returns the store opened by Start.
func (a *App) Store() store.Store { return a.store }

// Logger returns the run logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Config returns the resolved configuration.
func (a *App) Config() *config.Config { return a.cfg }

// Stop pushes metrics when a Pushgateway is configured, then releases every
// resource. A failed push is logged, never returned.
func (a *App) Stop(ctx context.Context) error {
	var stopErr error
	a.stopOnce.Do(func() {
		if a.metrics != nil && a.cfg.Metrics.PushgatewayURL != "" {
			if err := a.metrics.Push(ctx, a.cfg.Metrics.PushgatewayURL, a.cfg.Metrics.Job, a.pipeline.RunID()); err != nil {
				a.logger.Warn("failed to push metrics", zap.Error(err))
			}
		}

		a.closersMu.Lock()
		closers := a.closers
		a.closersMu.Unlock()
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil && stopErr == nil {
				stopErr = fmt.Errorf("close failed: %w", err)
			}
		}
		_ = a.logger.Sync()
	})
	return stopErr
}

func (a *App) registerCloser(c io.Closer) {
	a.closersMu.Lock()
	defer a.closersMu.Unlock()
	a.closers = append(a.closers, c)
}
