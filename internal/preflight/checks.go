package preflight

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"scribe/internal/config"
	"scribe/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is
// readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSpeechCredentials verifies that the recognition provider can be
// called at all.
func CheckSpeechCredentials(cfg *config.Config) Result {
	const name = "Speech credentials"
	if cfg.Speech.APIKey == "" {
		return Result{Name: name, Detail: "api key missing (set speech.api_key or SCRIBE_SPEECH_API_KEY)"}
	}
	return Result{Name: name, Passed: true, Detail: "api key configured"}
}

// CheckStorageConfig verifies the object-store settings needed for remote
// recognition. An unset bucket is reported but passes: inline recognition of
// small files still works without one.
func CheckStorageConfig(cfg *config.Config) Result {
	const name = "Object storage"
	if cfg.Storage.Bucket == "" {
		return Result{Name: name, Passed: true, Detail: "bucket not configured; large files will fail"}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("bucket %q", cfg.Storage.Bucket)}
}

// CheckSystemDeps evaluates the external binaries the pipeline shells out
// to. Both are optional: ffmpeg only improves recognition quality and yt-dlp
// is needed only for video-URL jobs.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Transcode.Binary,
			Description: "Normalizes audio to mono 16kHz PCM before recognition",
			Optional:    true,
		},
		{
			Name:        "yt-dlp",
			Command:     cfg.Download.Binary,
			Description: "Required for video URL submissions",
			Optional:    true,
		},
	}
	return deps.CheckBinaries(requirements)
}
