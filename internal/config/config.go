package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	UploadDir  string `toml:"upload_dir"`
	JobsDir    string `toml:"jobs_dir"`
	ResultsDir string `toml:"results_dir"`
	LogDir     string `toml:"log_dir"`
}

// Speech contains configuration for the recognition provider.
type Speech struct {
	Endpoint string `toml:"endpoint"`
	APIKey   string `toml:"api_key"`
	// InlineMaxBytes is the ceiling above which synchronous inline
	// recognition is skipped in favour of the remote-URI path.
	InlineMaxBytes int64 `toml:"inline_max_bytes"`
	// LongRunTimeout bounds the wait for a remote long-running operation,
	// in seconds.
	LongRunTimeout int `toml:"long_run_timeout"`
	// PollInterval is the delay between remote operation polls, in seconds.
	PollInterval int `toml:"poll_interval"`
}

// Storage contains configuration for the object store holding remote audio.
type Storage struct {
	Endpoint  string `toml:"endpoint"`
	Bucket    string `toml:"bucket"`
	Prefix    string `toml:"prefix"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Region    string `toml:"region"`
	UseSSL    bool   `toml:"use_ssl"`
	// URIScheme is the scheme of returned object URIs. The default "gs"
	// matches the recognition provider's expectations when the endpoint is
	// a GCS interoperability endpoint.
	URIScheme string `toml:"uri_scheme"`
}

// Download contains configuration for origin-video audio downloads.
type Download struct {
	Binary         string `toml:"binary"`
	UserAgent      string `toml:"user_agent"`
	AcceptLanguage string `toml:"accept_language"`
	CookiesFile    string `toml:"cookies_file"`
	Timeout        int    `toml:"timeout"`
}

// Transcode contains configuration for best-effort audio normalization.
type Transcode struct {
	Enabled bool   `toml:"enabled"`
	Binary  string `toml:"binary"`
}

// Defaults contains per-job parameter defaults applied at enqueue time.
type Defaults struct {
	Language          string   `toml:"language"`
	FallbackLanguages []string `toml:"fallback_languages"`
}

// Workflow contains configuration for worker timing.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for scribe.
//
// Configuration sections by subsystem:
//   - Paths: staging, upload, snapshot, result, and log directories
//   - Speech: recognition provider endpoint, credentials, and limits
//   - Storage: object store for durable remote audio URIs
//   - Download: yt-dlp invocation settings for origin video URLs
//   - Transcode: ffmpeg normalization toggle and binary
//   - Defaults: per-job parameter defaults
//   - Workflow: worker polling intervals
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Speech    Speech    `toml:"speech"`
	Storage   Storage   `toml:"storage"`
	Download  Download  `toml:"download"`
	Transcode Transcode `toml:"transcode"`
	Defaults  Defaults  `toml:"defaults"`
	Workflow  Workflow  `toml:"workflow"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/scribe/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("scribe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for pipeline operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{
		c.Paths.StagingDir,
		c.Paths.UploadDir,
		c.Paths.JobsDir,
		c.Paths.ResultsDir,
		c.Paths.LogDir,
	} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// WriteSample writes the embedded sample configuration to path.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
