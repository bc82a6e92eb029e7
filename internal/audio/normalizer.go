package audio

import (
	"context"
	"encoding/hex"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"

	"scribe/internal/config"
	"scribe/internal/fileutil"
	"scribe/internal/logging"
)

var commandContext = exec.CommandContext

// Canonical recognition encoding produced by the normalizer.
const (
	CanonicalSampleRate = 16000
	CanonicalEncoding   = "LINEAR16"
)

// Normalizer transcodes arbitrary audio into mono/16kHz/PCM16 WAV on a
// best-effort basis. Failure is never fatal: recognition proceeds with the
// original bytes.
type Normalizer struct {
	binary  string
	enabled bool
	outDir  string
	logger  *slog.Logger
}

// NewNormalizer constructs a normalizer writing temp files under the
// staging directory.
func NewNormalizer(cfg *config.Config, logger *slog.Logger) *Normalizer {
	return &Normalizer{
		binary:  cfg.Transcode.Binary,
		enabled: cfg.Transcode.Enabled,
		outDir:  cfg.Paths.StagingDir,
		logger:  logging.NewComponentLogger(logger, "normalizer"),
	}
}

// ToCanonicalPCM transcodes src and returns the temp output path. ok=false
// means the original file should be used unmodified; no error is ever
// returned because normalization is a quality optimization only. The caller
// owns removal of the returned file.
func (n *Normalizer) ToCanonicalPCM(ctx context.Context, src string) (string, bool) {
	if !n.enabled || !n.available(ctx) {
		return "", false
	}
	if err := os.MkdirAll(n.outDir, 0o755); err != nil {
		n.logger.Debug("staging directory unavailable", logging.Error(err))
		return "", false
	}

	id := uuid.New()
	out := filepath.Join(n.outDir, hex.EncodeToString(id[:])+".16k.wav")

	cmd := commandContext(ctx, n.binary,
		"-y",
		"-i", src,
		"-ac", "1",
		"-ar", "16000",
		"-acodec", "pcm_s16le",
		"-vn",
		out,
	)
	if err := cmd.Run(); err != nil || !fileutil.FileExists(out) {
		if err != nil {
			n.logger.Debug("transcode failed; using original audio",
				logging.String("source", src),
				logging.Error(err),
			)
		}
		_ = os.Remove(out)
		return "", false
	}
	return out, true
}

func (n *Normalizer) available(ctx context.Context) bool {
	cmd := commandContext(ctx, n.binary, "-version")
	return cmd.Run() == nil
}
