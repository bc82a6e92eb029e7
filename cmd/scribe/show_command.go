package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"scribe/internal/results"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Display a finished job's transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			jobID := strings.TrimSpace(args[0])
			writer := results.NewWriter(cfg.Paths.ResultsDir)
			doc, err := writer.Load(jobID)
			if err != nil {
				return fmt.Errorf("load result: %w", err)
			}
			if doc == nil {
				return fmt.Errorf("no result for job %s; check `scribe status %s`", jobID, jobID)
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), doc)
			}

			out := cmd.OutOrStdout()
			if doc.Result != nil {
				meta := doc.Result.Meta
				fmt.Fprintf(out, "Job %s (%s, via %s)\n", doc.JobID, meta.Language, meta.Via)
				if doc.Source != "" {
					fmt.Fprintf(out, "Source: %s\n", doc.Source)
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, doc.Result.Transcript)
			} else {
				fmt.Fprintf(out, "Job %s has no transcript payload\n", doc.JobID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the full result document as JSON")
	return cmd
}
