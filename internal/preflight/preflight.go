package preflight

import (
	"context"

	"scribe/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("Upload directory", cfg.Paths.UploadDir),
		CheckDirectoryAccess("Jobs directory", cfg.Paths.JobsDir),
		CheckDirectoryAccess("Results directory", cfg.Paths.ResultsDir),
		CheckSpeechCredentials(cfg),
		CheckStorageConfig(cfg),
	}
	return results
}
