package workflow

import (
	"context"
	"encoding/hex"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"scribe/internal/config"
	"scribe/internal/fileutil"
	"scribe/internal/language"
	"scribe/internal/logging"
	"scribe/internal/media"
	"scribe/internal/queue"
	"scribe/internal/results"
	"scribe/internal/services"
	"scribe/internal/transcribe"
)

// Acquirer resolves a job's declared source into recognition inputs.
type Acquirer interface {
	Resolve(ctx context.Context, job *queue.Job) error
}

// Engine runs the recognition strategy for one request.
type Engine interface {
	Run(ctx context.Context, req transcribe.Request) (*transcribe.Result, error)
}

// Source is the single input a job starts from. Exactly one field must be
// set.
type Source struct {
	LocalPath string
	RemoteURI string
	OriginURL string
}

// Manager owns the job pipeline: it accepts submissions, runs the single
// worker that moves jobs through acquisition and recognition, and answers
// status queries from memory, snapshots, or legacy result files.
type Manager struct {
	cfg       *config.Config
	store     *queue.Store
	snapshots *queue.SnapshotStore
	results   *results.Writer
	acquirer  Acquirer
	engine    Engine
	logger    *slog.Logger

	mu   sync.RWMutex
	jobs map[string]*queue.Job

	wake      chan struct{}
	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewManager(cfg *config.Config, store *queue.Store, acquirer Acquirer, engine Engine, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:       cfg,
		store:     store,
		snapshots: queue.NewSnapshotStore(cfg.Paths.JobsDir),
		results:   results.NewWriter(cfg.Paths.ResultsDir),
		acquirer:  acquirer,
		engine:    engine,
		logger:    logging.NewComponentLogger(logger, "workflow"),
		jobs:      make(map[string]*queue.Job),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// NewJob validates a submission and builds a queued job with defaults
// applied and languages canonicalized.
func NewJob(cfg *config.Config, source Source, params queue.Params) (*queue.Job, error) {
	if err := validateSource(source); err != nil {
		return nil, err
	}

	if params.Language == "" {
		params.Language = cfg.Defaults.Language
	}
	params.Language = language.Canonical(params.Language)
	for i, fallback := range params.FallbackLanguages {
		params.FallbackLanguages[i] = language.Canonical(fallback)
	}
	if params.FallbackLanguages == nil {
		params.FallbackLanguages = append([]string(nil), cfg.Defaults.FallbackLanguages...)
	}
	if params.DiarizationSpeakers > 0 {
		params.WordTimeOffsets = true
	}

	id := uuid.New()
	return &queue.Job{
		ID:         hex.EncodeToString(id[:]),
		SourcePath: source.LocalPath,
		RemoteURI:  source.RemoteURI,
		OriginURL:  source.OriginURL,
		Params:     params,
		Status:     queue.StatusQueued,
	}, nil
}

// Submit records a job in the ledger and snapshot tiers without running a
// worker. The CLI uses it when the daemon owns processing: the daemon's poll
// loop discovers the new row.
func Submit(ctx context.Context, cfg *config.Config, store *queue.Store, source Source, params queue.Params) (*queue.Job, error) {
	job, err := NewJob(cfg, source, params)
	if err != nil {
		return nil, err
	}
	if err := store.Insert(ctx, job); err != nil {
		return nil, services.Wrap(services.ErrProvider, "enqueue", "insert job", "", err)
	}
	if err := queue.NewSnapshotStore(cfg.Paths.JobsDir).Write(job); err != nil {
		return nil, services.Wrap(services.ErrProvider, "enqueue", "write snapshot", "", err)
	}
	return job, nil
}

// Enqueue validates and records a new job, then wakes the worker. The worker
// goroutine is started lazily on the first submission.
func (m *Manager) Enqueue(ctx context.Context, source Source, params queue.Params) (string, error) {
	job, err := NewJob(m.cfg, source, params)
	if err != nil {
		return "", err
	}

	if err := m.store.Insert(ctx, job); err != nil {
		return "", services.Wrap(services.ErrProvider, "enqueue", "insert job", "", err)
	}
	m.mu.Lock()
	m.jobs[job.ID] = job.Clone()
	m.mu.Unlock()
	if err := m.snapshots.Write(job); err != nil {
		m.logger.Warn("snapshot write failed", logging.String(logging.FieldJobID, job.ID), logging.Error(err))
	}

	m.logger.Info("job enqueued",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("language", job.Params.Language),
	)

	m.Start()
	select {
	case m.wake <- struct{}{}:
	default:
	}
	return job.ID, nil
}

// Get answers a status query. Lookup is tiered: the in-memory table first,
// then the on-disk snapshot, and finally a probe for a result file left by an
// earlier process.
func (m *Manager) Get(ctx context.Context, jobID string) (*queue.Job, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, services.Wrap(services.ErrValidation, "status", "get", "job id is empty", nil)
	}

	m.mu.RLock()
	job, ok := m.jobs[jobID]
	m.mu.RUnlock()
	if ok {
		return job.Clone(), nil
	}

	snap, err := m.snapshots.Load(jobID)
	if err == nil && snap != nil {
		return snap.Job(), nil
	}

	if m.results.Exists(jobID) {
		return &queue.Job{
			ID:         jobID,
			Status:     queue.StatusDone,
			ResultPath: m.results.PathFor(jobID),
		}, nil
	}
	return nil, nil
}

// Start launches the worker goroutine. Safe to call more than once.
func (m *Manager) Start() {
	m.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		m.cancel = cancel
		go m.run(ctx)
	})
}

// Stop halts the worker and waits for the in-flight job to settle.
func (m *Manager) Stop() {
	m.Start()
	m.cancel()
	<-m.done
}

// Recover settles the ledger after a restart: jobs interrupted mid-processing
// are failed (their transcript progress is gone and status may only move
// forward), and their snapshots are refreshed to match. Queued jobs need no
// touch-up; the worker simply picks them up again.
func (m *Manager) Recover(ctx context.Context) error {
	interrupted, err := m.store.FailInterrupted(ctx)
	if err != nil {
		return err
	}
	if interrupted == 0 {
		return nil
	}
	m.logger.Warn("failed interrupted jobs from previous run", logging.Int64("count", interrupted))

	failed, err := m.store.List(ctx, queue.StatusError)
	if err != nil {
		return err
	}
	for _, job := range failed {
		if job.ErrorMessage != queue.InterruptedMessage {
			continue
		}
		if err := m.snapshots.Write(job); err != nil {
			m.logger.Warn("snapshot refresh failed", logging.String(logging.FieldJobID, job.ID), logging.Error(err))
		}
	}
	return nil
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.done)

	pollInterval := time.Duration(m.cfg.Workflow.QueuePollInterval) * time.Second
	retryInterval := time.Duration(m.cfg.Workflow.ErrorRetryInterval) * time.Second

	for {
		if ctx.Err() != nil {
			return
		}
		job, err := m.store.NextQueued(ctx)
		if err != nil {
			m.logger.Error("queue poll failed", logging.Error(err))
			if !sleepCtx(ctx, retryInterval) {
				return
			}
			continue
		}
		if job == nil {
			select {
			case <-ctx.Done():
				return
			case <-m.wake:
			case <-time.After(pollInterval):
			}
			continue
		}
		m.process(ctx, job)
	}
}

// process moves one job through its stages. All failures converge here: the
// job is marked failed with the error text and the loop moves on.
func (m *Manager) process(ctx context.Context, job *queue.Job) {
	ctx = services.WithJobID(ctx, job.ID)
	jobLogger := logging.WithContext(ctx, m.logger)

	job.Status = queue.StatusProcessing
	m.persist(ctx, job)
	jobLogger.Info("job started")

	result, err := m.execute(ctx, job)
	if err != nil {
		job.SetFailed(err.Error())
		m.persist(ctx, job)
		jobLogger.Error("job failed", logging.Error(err))
		return
	}

	path, err := m.results.Write(job, result)
	if err != nil {
		job.SetFailed(err.Error())
		m.persist(ctx, job)
		jobLogger.Error("result write failed", logging.Error(err))
		return
	}
	job.SetDone(path)
	m.persist(ctx, job)
	jobLogger.Info("job done",
		logging.String("result_path", path),
		logging.String("route", result.Meta.Via),
		logging.String("language", result.Meta.Language),
	)
}

func (m *Manager) execute(ctx context.Context, job *queue.Job) (*transcribe.Result, error) {
	if err := m.acquirer.Resolve(services.WithStage(ctx, "acquire"), job); err != nil {
		return nil, err
	}
	// Acquisition may have filled in the local path or remote URI.
	m.persist(ctx, job)

	return m.engine.Run(services.WithStage(ctx, "transcribe"), transcribe.Request{
		LocalPath: job.SourcePath,
		RemoteURI: job.RemoteURI,
		Params:    job.Params,
	})
}

// persist pushes the job's current state to every tier: memory, ledger,
// snapshot.
func (m *Manager) persist(ctx context.Context, job *queue.Job) {
	m.mu.Lock()
	m.jobs[job.ID] = job.Clone()
	m.mu.Unlock()
	if err := m.store.Update(ctx, job); err != nil {
		m.logger.Error("ledger update failed", logging.String(logging.FieldJobID, job.ID), logging.Error(err))
	}
	if err := m.snapshots.Write(job); err != nil {
		m.logger.Warn("snapshot write failed", logging.String(logging.FieldJobID, job.ID), logging.Error(err))
	}
}

func validateSource(source Source) error {
	count := 0
	for _, value := range []string{source.LocalPath, source.RemoteURI, source.OriginURL} {
		if strings.TrimSpace(value) != "" {
			count++
		}
	}
	if count != 1 {
		return services.Wrap(services.ErrValidation, "enqueue", "validate source", "exactly one of file, URI, or URL required", nil)
	}
	if source.OriginURL != "" {
		return media.ValidateOriginURL(source.OriginURL)
	}
	if source.LocalPath != "" && !fileutil.FileExists(source.LocalPath) {
		return services.Wrap(services.ErrNotFound, "enqueue", "validate source", "audio file does not exist: "+source.LocalPath, nil)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
