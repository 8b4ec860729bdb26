// Package app wires the offline services together and owns their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/NgigiN/finsync/internal/config"
	"github.com/NgigiN/finsync/internal/offline"
	"github.com/NgigiN/finsync/internal/remote"
	"github.com/NgigiN/finsync/internal/routine"
	"github.com/NgigiN/finsync/internal/storage"
)

// App holds every long-lived service. Create it with New, then Start it;
// Stop tears everything down in reverse order.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	cfg       *config.Config
	store     *storage.Database
	transport remote.Transport
	runner    *routine.Manager
	monitor   *offline.Monitor
	engine    *offline.Engine
	submitter *offline.Submitter
	scheduler *cron.Cron
}

// New builds the services described by cfg.
func New(cfg *config.Config) (*App, error) {
	store, err := storage.NewDatabase(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize the database: %w", err)
	}

	transport, network := newTransport(cfg)
	runner := routine.NewManager(8)

	monitor := offline.NewMonitor(transport, network, runner, cfg.ProbeTimeout)
	engine := offline.NewEngine(store, transport, monitor, offline.EngineConfig{
		RecordAttempts: cfg.SyncRecordAttempts,
		RecordBackoff:  cfg.RetryBackoff,
		RequestTimeout: cfg.RequestTimeout,
		MaxAttempts:    cfg.MaxSyncAttempts,
	})
	monitor.SetDrainer(engine)

	submitter := offline.NewSubmitter(transport, store, offline.SubmitterConfig{
		Attempts:       cfg.MaxRetryAttempts,
		Backoff:        cfg.RetryBackoff,
		RequestTimeout: cfg.RequestTimeout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		ctx:       ctx,
		cancel:    cancel,
		cfg:       cfg,
		store:     store,
		transport: transport,
		runner:    runner,
		monitor:   monitor,
		engine:    engine,
		submitter: submitter,
		scheduler: cron.New(),
	}, nil
}

func newTransport(cfg *config.Config) (remote.Transport, offline.NetworkProbe) {
	if cfg.Transport == config.TransportFixture {
		slog.Warn("using the in-memory fixture backend, nothing leaves this process")
		return remote.NewFixture(), offline.AlwaysOnline
	}

	client := remote.NewHTTPClient(remote.HTTPConfig{
		BaseURL:    cfg.APIBaseURL,
		Token:      cfg.APIToken,
		CreatePath: cfg.CreatePath,
		HealthPath: cfg.HealthPath,
	}, nil)
	return client, offline.DialProbe(cfg.NetworkProbeAddr, cfg.ProbeTimeout)
}

// Config returns the configuration the app was built with.
func (a *App) Config() *config.Config { return a.cfg }

// Store returns the local queue.
func (a *App) Store() *storage.Database { return a.store }

// Transport returns the remote transport.
func (a *App) Transport() remote.Transport { return a.transport }

// Monitor returns the connectivity monitor.
func (a *App) Monitor() *offline.Monitor { return a.monitor }

// Engine returns the sync engine.
func (a *App) Engine() *offline.Engine { return a.engine }

// Submitter returns the submission facade.
func (a *App) Submitter() *offline.Submitter { return a.submitter }

// Context is cancelled when the app stops.
func (a *App) Context() context.Context { return a.ctx }

// Start schedules the periodic probe and housekeeping and runs the first
// connectivity check in the background.
func (a *App) Start() error {
	every := fmt.Sprintf("@every %s", a.cfg.ProbeInterval)
	if _, err := a.scheduler.AddFunc(every, func() { a.monitor.Refresh(a.ctx) }); err != nil {
		return fmt.Errorf("failed to schedule connectivity probe: %w", err)
	}

	if a.cfg.PruneSchedule != "" {
		_, err := a.scheduler.AddFunc(a.cfg.PruneSchedule, func() {
			a.runner.Go(a.ctx, "prune-synced", func(ctx context.Context) error {
				_, err := a.Prune(ctx)
				return err
			})
		})
		if err != nil {
			return fmt.Errorf("failed to schedule pruning %q: %w", a.cfg.PruneSchedule, err)
		}
	}

	a.scheduler.Start()
	a.monitor.Refresh(a.ctx)
	slog.Info("offline sync started", "probe_interval", a.cfg.ProbeInterval.String(), "transport", a.cfg.Transport)
	return nil
}

// Prune deletes synced records.
func (a *App) Prune(ctx context.Context) (int64, error) {
	n, err := a.store.PruneSynced(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to prune synced transactions", "error", err)
		return 0, err
	}
	if n > 0 {
		slog.InfoContext(ctx, "pruned synced transactions", "count", n)
	}
	return n, nil
}

// Stop halts the scheduler, waits for background work and closes the store.
func (a *App) Stop(ctx context.Context) error {
	a.cancel()

	stopped := a.scheduler.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		slog.WarnContext(ctx, "scheduler jobs still running at shutdown")
	}

	var errs []error
	if err := a.runner.Wait(); err != nil {
		slog.ErrorContext(ctx, "error from background tasks", "error", err)
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	}
	return errors.Join(errs...)
}
