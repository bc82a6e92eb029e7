package media

import (
	"context"
	"encoding/hex"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/services"
)

var commandContext = exec.CommandContext

// CookiesHint is appended to blocked-download errors so operators know the
// recovery path without digging through yt-dlp output.
const CookiesHint = "configure download.cookies_file with signed-in browser cookies and retry"

// blockedMarkers are yt-dlp output fragments that indicate the host demands
// authenticated cookies rather than a transient failure.
var blockedMarkers = []string{
	"sign in to confirm",
	"cookies",
	"http error 403",
	"login required",
}

// Downloader fetches the best audio stream of an origin video URL into the
// staging directory via yt-dlp.
type Downloader struct {
	binary         string
	userAgent      string
	acceptLanguage string
	cookiesFile    string
	timeout        time.Duration
	stagingDir     string
	logger         *slog.Logger
}

func NewDownloader(cfg *config.Config, logger *slog.Logger) *Downloader {
	return &Downloader{
		binary:         cfg.Download.Binary,
		userAgent:      cfg.Download.UserAgent,
		acceptLanguage: cfg.Download.AcceptLanguage,
		cookiesFile:    cfg.Download.CookiesFile,
		timeout:        time.Duration(cfg.Download.Timeout) * time.Second,
		stagingDir:     cfg.Paths.StagingDir,
		logger:         logging.NewComponentLogger(logger, "downloader"),
	}
}

// Download fetches originURL and returns the path of the downloaded audio
// file. Each download gets its own directory under staging so the result can
// be located without parsing tool output.
func (d *Downloader) Download(ctx context.Context, originURL string) (string, error) {
	if err := ValidateOriginURL(originURL); err != nil {
		return "", err
	}

	id := uuid.New()
	outDir := filepath.Join(d.stagingDir, "download_"+hex.EncodeToString(id[:8]))
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrProvider, "acquire", "download", "create staging directory", err)
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	args := []string{
		"-f", "bestaudio/best",
		"--no-playlist",
		"--no-warnings",
		"-o", filepath.Join(outDir, "%(id)s.%(ext)s"),
	}
	if d.userAgent != "" {
		args = append(args, "--user-agent", d.userAgent)
	}
	if d.acceptLanguage != "" {
		args = append(args, "--add-header", "Accept-Language:"+d.acceptLanguage)
	}
	if d.cookiesFile != "" {
		args = append(args, "--cookies", d.cookiesFile)
	}
	args = append(args, originURL)

	d.logger.Info("downloading origin audio", logging.String("url", originURL))
	cmd := commandContext(ctx, d.binary, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if isBlockedOutput(detail) {
			message := firstLine(detail)
			if message == "" {
				message = "host refused the download"
			}
			return "", services.Wrap(services.ErrAccessBlocked, "acquire", "download", message+"; "+CookiesHint, err)
		}
		if detail == "" {
			detail = "download failed"
		}
		return "", services.Wrap(services.ErrProvider, "acquire", "download", detail, err)
	}

	path, err := findDownloadedFile(outDir)
	if err != nil {
		return "", services.Wrap(services.ErrProvider, "acquire", "download", "downloaded file not found", err)
	}
	return path, nil
}

func firstLine(output string) string {
	line, _, _ := strings.Cut(output, "\n")
	return strings.TrimSpace(line)
}

func isBlockedOutput(output string) bool {
	lowered := strings.ToLower(output)
	for _, marker := range blockedMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

// findDownloadedFile returns the single regular file yt-dlp wrote into dir,
// preferring the largest when fragments or thumbnails linger.
func findDownloadedFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var (
		best     string
		bestSize int64 = -1
	)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if strings.HasSuffix(entry.Name(), ".part") {
			continue
		}
		if info.Size() > bestSize {
			best = filepath.Join(dir, entry.Name())
			bestSize = info.Size()
		}
	}
	if best == "" {
		return "", fs.ErrNotExist
	}
	return best, nil
}
