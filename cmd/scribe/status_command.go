package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/queue"
	"scribe/internal/results"
)

// jobView is the JSON projection of a job used by status and jobs output.
type jobView struct {
	ID           string       `json:"job_id"`
	Status       queue.Status `json:"status"`
	SourcePath   string       `json:"source_path,omitempty"`
	RemoteURI    string       `json:"remote_uri,omitempty"`
	OriginURL    string       `json:"origin_url,omitempty"`
	Params       queue.Params `json:"params"`
	ResultPath   string       `json:"result_path,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
	CreatedAt    string       `json:"created_at,omitempty"`
	UpdatedAt    string       `json:"updated_at,omitempty"`
}

func newJobView(job *queue.Job) jobView {
	view := jobView{
		ID:           job.ID,
		Status:       job.Status,
		SourcePath:   job.SourcePath,
		RemoteURI:    job.RemoteURI,
		OriginURL:    job.OriginURL,
		Params:       job.Params,
		ResultPath:   job.ResultPath,
		ErrorMessage: job.ErrorMessage,
	}
	if !job.CreatedAt.IsZero() {
		view.CreatedAt = job.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !job.UpdatedAt.IsZero() {
		view.UpdatedAt = job.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return view
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the status of a transcription job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := strings.TrimSpace(args[0])
			if jobID == "" {
				return fmt.Errorf("job id is empty")
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				job, err := lookupJob(cmd.Context(), cfg, store, jobID)
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("job %s not found", jobID)
				}
				if jsonOut {
					return writeJSON(cmd.OutOrStdout(), newJobView(job))
				}
				rows := statusRows(job)
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignLeft}))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of a table")
	return cmd
}

// lookupJob answers a status query without the daemon: the ledger first, then
// the per-job snapshot, then a probe for a result file from an older
// installation whose ledger is gone.
func lookupJob(ctx context.Context, cfg *config.Config, store *queue.Store, jobID string) (*queue.Job, error) {
	job, err := store.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job != nil {
		return job, nil
	}

	snapshots := queue.NewSnapshotStore(cfg.Paths.JobsDir)
	snap, err := snapshots.Load(jobID)
	if err == nil && snap != nil {
		return snap.Job(), nil
	}

	writer := results.NewWriter(cfg.Paths.ResultsDir)
	if writer.Exists(jobID) {
		return &queue.Job{
			ID:         jobID,
			Status:     queue.StatusDone,
			ResultPath: writer.PathFor(jobID),
		}, nil
	}
	return nil, nil
}

func statusRows(job *queue.Job) [][]string {
	rows := [][]string{
		{"Job", job.ID},
		{"Status", string(job.Status)},
		{"Language", job.Params.Language},
	}
	if len(job.Params.FallbackLanguages) > 0 {
		rows = append(rows, []string{"Fallbacks", strings.Join(job.Params.FallbackLanguages, ", ")})
	}
	if job.Params.DiarizationSpeakers > 0 {
		rows = append(rows, []string{"Speakers", fmt.Sprintf("%d", job.Params.DiarizationSpeakers)})
	}
	if source := sourceSummary(job); source != "" {
		rows = append(rows, []string{"Source", source})
	}
	if job.ResultPath != "" {
		rows = append(rows, []string{"Result", job.ResultPath})
	}
	if job.ErrorMessage != "" {
		rows = append(rows, []string{"Error", job.ErrorMessage})
	}
	if !job.UpdatedAt.IsZero() {
		rows = append(rows, []string{"Updated", job.UpdatedAt.UTC().Format(time.RFC3339)})
	}
	return rows
}

func sourceSummary(job *queue.Job) string {
	switch {
	case job.SourcePath != "":
		return job.SourcePath
	case job.RemoteURI != "":
		return job.RemoteURI
	case job.OriginURL != "":
		return job.OriginURL
	}
	return ""
}
