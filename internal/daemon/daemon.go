package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"scribe/internal/audio"
	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/media"
	"scribe/internal/queue"
	"scribe/internal/speech"
	"scribe/internal/storage"
	"scribe/internal/transcribe"
	"scribe/internal/workflow"
)

// Daemon owns the long-running pipeline process: it wires configuration,
// the job ledger, and the workflow manager into one lifecycle guarded by a
// file lock so only a single instance runs per data directory.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
}

// Status reports daemon runtime information.
type Status struct {
	Running  bool
	LockPath string
	Queue    queue.HealthSummary
}

// New builds a daemon and its full pipeline from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return nil, err
	}

	objectStore, err := storage.NewClient(cfg.Storage)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	downloader := media.NewDownloader(cfg, logger)
	acquirer := media.NewAcquirer(objectStore, downloader, logger)
	normalizer := audio.NewNormalizer(cfg, logger)
	recognizer := speech.NewClient(cfg.Speech, logger)
	engine := transcribe.NewEngine(cfg, recognizer, normalizer, objectStore, logger)

	lockPath := filepath.Join(cfg.Paths.LogDir, "scribed.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		workflow: workflow.NewManager(cfg, store, acquirer, engine, logger),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock, settles interrupted jobs, and launches
// the worker.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another scribe daemon instance is already running")
	}

	if err := d.workflow.Recover(ctx); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("recover interrupted jobs: %w", err)
	}
	d.workflow.Start()

	d.running.Store(true)
	d.logger.Info("scribe daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop halts background processing and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("scribe daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Workflow exposes the pipeline manager for submissions and status queries.
func (d *Daemon) Workflow() *workflow.Manager {
	return d.workflow
}

// Status reports whether the daemon runs and the aggregate queue counts.
func (d *Daemon) Status(ctx context.Context) (Status, error) {
	health, err := d.store.Health(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Running:  d.running.Load(),
		LockPath: d.lockPath,
		Queue:    health,
	}, nil
}
