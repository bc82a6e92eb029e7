package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/queue"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List transcription jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				var statuses []queue.Status
				for _, value := range listStatuses {
					status, ok := queue.ParseStatus(value)
					if !ok {
						return fmt.Errorf("unknown status %q", value)
					}
					statuses = append(statuses, status)
				}

				jobs, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if jsonOut {
					views := make([]jobView, 0, len(jobs))
					for _, job := range jobs {
						views = append(views, newJobView(job))
					}
					return writeJSON(cmd.OutOrStdout(), views)
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Status", "Language", "Source", "Updated"},
					buildJobRows(jobs),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&listStatuses, "status", nil, "Filter by status (queued, processing, done, error)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of a table")
	return cmd
}

func buildJobRows(jobs []*queue.Job) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		updated := ""
		if !job.UpdatedAt.IsZero() {
			updated = job.UpdatedAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, []string{
			job.ID,
			string(job.Status),
			job.Params.Language,
			truncate(sourceSummary(job), 48),
			updated,
		})
	}
	return rows
}

func truncate(value string, max int) string {
	runes := []rune(value)
	if max <= 3 || len(runes) <= max {
		return value
	}
	return string(runes[:max-3]) + "..."
}
