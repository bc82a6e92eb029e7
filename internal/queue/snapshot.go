package queue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"scribe/internal/fileutil"
)

// Snapshot is the durable on-disk projection of a Job, written atomically
// after every state change. It serves crash recovery and status queries when
// the in-memory job table no longer holds the job.
type Snapshot struct {
	JobID      string `json:"job_id"`
	LocalPath  string `json:"local_path,omitempty"`
	RemoteURI  string `json:"remote_uri,omitempty"`
	OriginURL  string `json:"origin_url,omitempty"`
	Params     Params `json:"params"`
	Status     Status `json:"status"`
	ResultPath string `json:"result_path,omitempty"`
	Error      string `json:"error,omitempty"`
	UpdatedAt  int64  `json:"updated_at"`
}

// SnapshotStore writes and reads per-job snapshot files in a directory.
type SnapshotStore struct {
	dir string
}

// NewSnapshotStore returns a snapshot store rooted at dir.
func NewSnapshotStore(dir string) *SnapshotStore {
	return &SnapshotStore{dir: dir}
}

// PathFor returns the snapshot file location for a job id.
func (s *SnapshotStore) PathFor(jobID string) string {
	return filepath.Join(s.dir, jobID+".json")
}

// Write persists the job's current state with a write-temp-then-rename
// sequence so concurrent status reads never observe a torn file.
func (s *SnapshotStore) Write(job *Job) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("job with id required")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("ensure snapshot directory: %w", err)
	}
	snap := Snapshot{
		JobID:      job.ID,
		LocalPath:  job.SourcePath,
		RemoteURI:  job.RemoteURI,
		OriginURL:  job.OriginURL,
		Params:     job.Params,
		Status:     job.Status,
		ResultPath: job.ResultPath,
		Error:      job.ErrorMessage,
		UpdatedAt:  time.Now().Unix(),
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := fileutil.WriteFileAtomic(s.PathFor(job.ID), data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Job rebuilds a Job from the snapshot projection.
func (snap *Snapshot) Job() *Job {
	if snap == nil {
		return nil
	}
	return &Job{
		ID:           snap.JobID,
		SourcePath:   snap.LocalPath,
		RemoteURI:    snap.RemoteURI,
		OriginURL:    snap.OriginURL,
		Params:       snap.Params,
		Status:       snap.Status,
		ResultPath:   snap.ResultPath,
		ErrorMessage: snap.Error,
		UpdatedAt:    time.Unix(snap.UpdatedAt, 0).UTC(),
	}
}

// Load reads a job's snapshot. Missing or unreadable files yield (nil, nil):
// the tiered status lookup treats both the same way and falls through to the
// legacy result-file probe.
func (s *SnapshotStore) Load(jobID string) (*Snapshot, error) {
	data, err := os.ReadFile(s.PathFor(jobID))
	if err != nil {
		return nil, nil
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, nil
	}
	return &snap, nil
}
