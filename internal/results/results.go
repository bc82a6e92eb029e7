package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"scribe/internal/fileutil"
	"scribe/internal/queue"
	"scribe/internal/transcribe"
)

// Document is the durable output of a finished job. It is what the job's
// result locator points at and what survives restarts.
type Document struct {
	JobID     string             `json:"job_id"`
	Source    string             `json:"source"`
	OriginURL string             `json:"origin_url,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	Params    queue.Params       `json:"params"`
	Result    *transcribe.Result `json:"result"`
}

// Writer persists result documents into the results directory.
type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// PathFor returns the result file path for a job ID.
func (w *Writer) PathFor(jobID string) string {
	return filepath.Join(w.dir, fmt.Sprintf("transcription_%s.json", jobID))
}

// Write assembles and atomically persists the document for a finished job,
// returning the result path.
func (w *Writer) Write(job *queue.Job, result *transcribe.Result) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create results directory: %w", err)
	}
	doc := Document{
		JobID:     job.ID,
		Source:    sourceLabel(job),
		OriginURL: job.OriginURL,
		CreatedAt: time.Now().UTC(),
		Params:    job.Params,
		Result:    result,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode result document: %w", err)
	}
	path := w.PathFor(job.ID)
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write result document: %w", err)
	}
	return path, nil
}

// Load reads a result document. A missing file returns (nil, nil) so callers
// can treat it as "job unknown or unfinished".
func (w *Writer) Load(jobID string) (*Document, error) {
	data, err := os.ReadFile(w.PathFor(jobID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read result document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode result document: %w", err)
	}
	return &doc, nil
}

// Exists reports whether a result document is on disk for the job.
func (w *Writer) Exists(jobID string) bool {
	return fileutil.FileExists(w.PathFor(jobID))
}

func sourceLabel(job *queue.Job) string {
	switch {
	case job.SourcePath != "":
		return job.SourcePath
	case job.RemoteURI != "":
		return job.RemoteURI
	default:
		return job.OriginURL
	}
}
