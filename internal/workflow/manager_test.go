package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/queue"
	"scribe/internal/services"
	"scribe/internal/speech"
	"scribe/internal/testsupport"
	"scribe/internal/transcribe"
)

type fakeAcquirer struct {
	err       error
	remoteURI string
}

func (f *fakeAcquirer) Resolve(_ context.Context, job *queue.Job) error {
	if f.err != nil {
		return f.err
	}
	if f.remoteURI != "" && job.RemoteURI == "" {
		job.RemoteURI = f.remoteURI
	}
	return nil
}

type fakeEngine struct {
	result *transcribe.Result
	err    error
}

func (f *fakeEngine) Run(context.Context, transcribe.Request) (*transcribe.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func successResult() *transcribe.Result {
	return &transcribe.Result{
		Transcription: speech.Transcription{Transcript: "dzien dobry"},
		Meta:          transcribe.Meta{Via: "inline", Language: "pl-PL"},
	}
}

func newManager(t *testing.T, cfg *config.Config, acquirer Acquirer, engine Engine) *Manager {
	t.Helper()
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	m := NewManager(cfg, store, acquirer, engine, logging.NewNop())
	t.Cleanup(m.Stop)
	return m
}

func enqueueFile(t *testing.T, m *Manager, cfg *config.Config) string {
	t.Helper()
	src := filepath.Join(cfg.Paths.UploadDir, "audio.mp3")
	testsupport.WriteFile(t, src, 256)
	id, err := m.Enqueue(context.Background(), Source{LocalPath: src}, queue.Params{})
	if err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}
	return id
}

func waitTerminal(t *testing.T, m *Manager, jobID string) *queue.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := m.Get(context.Background(), jobID)
		if err != nil {
			t.Fatalf("Get returned error: %v", err)
		}
		if job != nil && job.Status.IsTerminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal status", jobID)
	return nil
}

func TestEnqueueValidation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	m := newManager(t, cfg, &fakeAcquirer{}, &fakeEngine{result: successResult()})

	cases := []struct {
		name   string
		source Source
		marker error
	}{
		{"no source", Source{}, services.ErrValidation},
		{"two sources", Source{LocalPath: "/a", RemoteURI: "gs://b/c"}, services.ErrValidation},
		{"bad origin URL", Source{OriginURL: "https://example.com/v"}, services.ErrValidation},
		{"missing file", Source{LocalPath: "/nonexistent/audio.mp3"}, services.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.Enqueue(context.Background(), tc.source, queue.Params{})
			if !errors.Is(err, tc.marker) {
				t.Fatalf("expected %v, got %v", tc.marker, err)
			}
		})
	}
}

func TestEnqueueAppliesDefaults(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Defaults.Language = "pl-PL"
	cfg.Defaults.FallbackLanguages = []string{"en-US"}
	m := newManager(t, cfg, &fakeAcquirer{}, &fakeEngine{result: successResult()})

	id := enqueueFile(t, m, cfg)
	job, err := m.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if job.Params.Language != "pl-PL" {
		t.Fatalf("expected default language, got %q", job.Params.Language)
	}
	if len(job.Params.FallbackLanguages) != 1 || job.Params.FallbackLanguages[0] != "en-US" {
		t.Fatalf("expected default fallbacks, got %v", job.Params.FallbackLanguages)
	}
}

func TestEnqueueCanonicalizesLanguages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	m := newManager(t, cfg, &fakeAcquirer{}, &fakeEngine{result: successResult()})

	src := filepath.Join(cfg.Paths.UploadDir, "audio.mp3")
	testsupport.WriteFile(t, src, 64)
	id, err := m.Enqueue(context.Background(), Source{LocalPath: src}, queue.Params{
		Language:          "pl_pl",
		FallbackLanguages: []string{"en_us"},
	})
	if err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}
	job, _ := m.Get(context.Background(), id)
	if job.Params.Language != "pl-PL" {
		t.Fatalf("expected canonical pl-PL, got %q", job.Params.Language)
	}
	if job.Params.FallbackLanguages[0] != "en-US" {
		t.Fatalf("expected canonical en-US, got %q", job.Params.FallbackLanguages[0])
	}
}

func TestJobRunsToDone(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	m := newManager(t, cfg, &fakeAcquirer{}, &fakeEngine{result: successResult()})

	id := enqueueFile(t, m, cfg)
	job := waitTerminal(t, m, id)
	if job.Status != queue.StatusDone {
		t.Fatalf("expected done, got %s (%s)", job.Status, job.ErrorMessage)
	}
	if job.ResultPath == "" {
		t.Fatal("expected a result path")
	}
	if _, err := os.Stat(job.ResultPath); err != nil {
		t.Fatalf("expected result document on disk: %v", err)
	}
	if job.ErrorMessage != "" {
		t.Fatalf("done job must not carry an error, got %q", job.ErrorMessage)
	}
}

func TestJobFailureRecordsMessage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	engineErr := services.Wrap(services.ErrProvider, "recognize", "call provider", "boom", nil)
	m := newManager(t, cfg, &fakeAcquirer{}, &fakeEngine{err: engineErr})

	id := enqueueFile(t, m, cfg)
	job := waitTerminal(t, m, id)
	if job.Status != queue.StatusError {
		t.Fatalf("expected error status, got %s", job.Status)
	}
	if job.ErrorMessage == "" {
		t.Fatal("expected an error message")
	}
	if job.ResultPath != "" {
		t.Fatalf("failed job must not carry a result path, got %q", job.ResultPath)
	}
}

func TestAcquireFailureFailsJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	acquireErr := services.Wrap(services.ErrAccessBlocked, "acquire", "download", "cookies required", nil)
	m := newManager(t, cfg, &fakeAcquirer{err: acquireErr}, &fakeEngine{result: successResult()})

	id := enqueueFile(t, m, cfg)
	job := waitTerminal(t, m, id)
	if job.Status != queue.StatusError {
		t.Fatalf("expected error status, got %s", job.Status)
	}
}

func TestWorkerSurvivesFailedJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	engine := &fakeEngine{err: services.Wrap(services.ErrProvider, "recognize", "call provider", "boom", nil)}
	m := newManager(t, cfg, &fakeAcquirer{}, engine)

	first := enqueueFile(t, m, cfg)
	waitTerminal(t, m, first)

	engine.err = nil
	engine.result = successResult()
	second := enqueueFile(t, m, cfg)
	job := waitTerminal(t, m, second)
	if job.Status != queue.StatusDone {
		t.Fatalf("expected worker to keep running after a failure, got %s", job.Status)
	}
}

func TestGetServedFromDiskAfterRestart(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	m := newManager(t, cfg, &fakeAcquirer{}, &fakeEngine{result: successResult()})

	id := enqueueFile(t, m, cfg)
	done := waitTerminal(t, m, id)
	m.Stop()

	// A fresh manager has an empty in-memory table; the snapshot answers.
	restarted := newManager(t, cfg, &fakeAcquirer{}, &fakeEngine{result: successResult()})
	job, err := restarted.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if job == nil || job.Status != queue.StatusDone {
		t.Fatalf("expected done from snapshot, got %+v", job)
	}
	if job.ResultPath != done.ResultPath {
		t.Fatalf("expected result path %q, got %q", done.ResultPath, job.ResultPath)
	}

	// Without the snapshot the result file alone still answers.
	if err := os.Remove(filepath.Join(cfg.Paths.JobsDir, id+".json")); err != nil {
		t.Fatalf("remove snapshot: %v", err)
	}
	job, err = restarted.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if job == nil || job.Status != queue.StatusDone {
		t.Fatalf("expected done from result probe, got %+v", job)
	}
}

func TestGetUnknownJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	m := newManager(t, cfg, &fakeAcquirer{}, &fakeEngine{result: successResult()})

	job, err := m.Get(context.Background(), "deadbeef")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if job != nil {
		t.Fatalf("expected nil for unknown job, got %+v", job)
	}
}

func TestRecoverFailsInterruptedJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	stuck := &queue.Job{
		ID:     "feedface",
		Status: queue.StatusProcessing,
		Params: queue.Params{Language: "pl-PL"},
	}
	if err := store.Insert(context.Background(), stuck); err != nil {
		t.Fatalf("insert job: %v", err)
	}
	snapshots := queue.NewSnapshotStore(cfg.Paths.JobsDir)
	if err := snapshots.Write(stuck); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}

	m := NewManager(cfg, store, &fakeAcquirer{}, &fakeEngine{result: successResult()}, logging.NewNop())
	if err := m.Recover(context.Background()); err != nil {
		t.Fatalf("Recover returned error: %v", err)
	}

	job, err := store.GetByID(context.Background(), "feedface")
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if job.Status != queue.StatusError {
		t.Fatalf("expected interrupted job failed, got %s", job.Status)
	}
	if job.ErrorMessage != queue.InterruptedMessage {
		t.Fatalf("unexpected message %q", job.ErrorMessage)
	}

	snap, _ := snapshots.Load("feedface")
	if snap == nil || snap.Status != queue.StatusError {
		t.Fatalf("expected snapshot refreshed to error, got %+v", snap)
	}
}
