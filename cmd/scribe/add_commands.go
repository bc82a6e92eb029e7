package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/fileutil"
	"scribe/internal/queue"
	"scribe/internal/textutil"
	"scribe/internal/workflow"
)

// paramFlags holds the per-job recognition parameters shared by all
// submission commands.
type paramFlags struct {
	language          string
	fallbackLanguages []string
	speakers          int
	model             string
	enhanced          bool
	hints             []string
	wordOffsets       bool
}

func (f *paramFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.language, "language", "l", "", "Primary language code (defaults to the configured default)")
	flags.StringSliceVar(&f.fallbackLanguages, "fallback-languages", nil, "Fallback language codes tried in order when the primary yields nothing")
	flags.IntVar(&f.speakers, "speakers", 0, "Expected speaker count; enables diarization when greater than zero")
	flags.StringVar(&f.model, "model", "", "Recognition model override")
	flags.BoolVar(&f.enhanced, "enhanced", false, "Force the enhanced model variant on or off")
	flags.StringSliceVar(&f.hints, "hints", nil, "Phrase hints passed to the recognizer")
	flags.BoolVar(&f.wordOffsets, "word-offsets", false, "Request per-word time offsets")
}

// params materializes the flag values. UseEnhanced stays nil unless the flag
// was given explicitly so the model-selection defaults still apply.
func (f *paramFlags) params(cmd *cobra.Command) queue.Params {
	p := queue.Params{
		Language:            f.language,
		FallbackLanguages:   f.fallbackLanguages,
		DiarizationSpeakers: f.speakers,
		Model:               f.model,
		PhraseHints:         f.hints,
		WordTimeOffsets:     f.wordOffsets,
	}
	if cmd.Flags().Changed("enhanced") {
		enhanced := f.enhanced
		p.UseEnhanced = &enhanced
	}
	return p
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	flags := &paramFlags{}

	cmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Queue a local audio file for transcription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			absPath, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}

			info, err := os.Stat(absPath)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("file does not exist: %s", absPath)
				}
				return fmt.Errorf("inspect file: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", absPath)
			}

			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				staged, err := stageUpload(cfg, absPath)
				if err != nil {
					return fmt.Errorf("stage upload: %w", err)
				}
				job, err := workflow.Submit(cmd.Context(), cfg, store, workflow.Source{LocalPath: staged}, flags.params(cmd))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued job %s (%s)\n", job.ID, filepath.Base(absPath))
				return nil
			})
		},
	}

	flags.register(cmd)
	return cmd
}

func newAddURICommand(ctx *commandContext) *cobra.Command {
	flags := &paramFlags{}

	cmd := &cobra.Command{
		Use:   "add-uri <uri>",
		Short: "Queue audio already stored in the object store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uri := strings.TrimSpace(args[0])
			if !strings.Contains(uri, "://") {
				return fmt.Errorf("invalid object URI %q", args[0])
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				job, err := workflow.Submit(cmd.Context(), cfg, store, workflow.Source{RemoteURI: uri}, flags.params(cmd))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued job %s (%s)\n", job.ID, uri)
				return nil
			})
		},
	}

	flags.register(cmd)
	return cmd
}

func newAddURLCommand(ctx *commandContext) *cobra.Command {
	flags := &paramFlags{}

	cmd := &cobra.Command{
		Use:   "add-url <url>",
		Short: "Queue a web video URL; its audio is downloaded before transcription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				job, err := workflow.Submit(cmd.Context(), cfg, store, workflow.Source{OriginURL: strings.TrimSpace(args[0])}, flags.params(cmd))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued job %s (%s)\n", job.ID, job.OriginURL)
				return nil
			})
		},
	}

	flags.register(cmd)
	return cmd
}

// stageUpload copies the source file into the upload directory so the job
// survives the caller deleting or moving the original.
func stageUpload(cfg *config.Config, srcPath string) (string, error) {
	if err := os.MkdirAll(cfg.Paths.UploadDir, 0o755); err != nil {
		return "", err
	}
	id := uuid.New()
	name := hex.EncodeToString(id[:8]) + "_" + textutil.SanitizeFileName(filepath.Base(srcPath))
	dest := filepath.Join(cfg.Paths.UploadDir, name)
	if err := fileutil.CopyFile(srcPath, dest); err != nil {
		return "", err
	}
	return dest, nil
}
