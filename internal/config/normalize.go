package config

import (
	"fmt"
	"os"
	"strings"

	"scribe/internal/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSpeech()
	c.normalizeStorage()
	if err := c.normalizeDownload(); err != nil {
		return err
	}
	c.normalizeTranscode()
	c.normalizeDefaults()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(orDefault(c.Paths.StagingDir, defaultStagingDir)); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.UploadDir, err = expandPath(orDefault(c.Paths.UploadDir, defaultUploadDir)); err != nil {
		return fmt.Errorf("paths.upload_dir: %w", err)
	}
	if c.Paths.JobsDir, err = expandPath(orDefault(c.Paths.JobsDir, defaultJobsDir)); err != nil {
		return fmt.Errorf("paths.jobs_dir: %w", err)
	}
	if c.Paths.ResultsDir, err = expandPath(orDefault(c.Paths.ResultsDir, defaultResultsDir)); err != nil {
		return fmt.Errorf("paths.results_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(orDefault(c.Paths.LogDir, defaultLogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSpeech() {
	c.Speech.Endpoint = strings.TrimRight(strings.TrimSpace(c.Speech.Endpoint), "/")
	if c.Speech.Endpoint == "" {
		c.Speech.Endpoint = defaultSpeechEndpoint
	}
	if c.Speech.APIKey == "" {
		if value, ok := os.LookupEnv("SCRIBE_SPEECH_API_KEY"); ok {
			c.Speech.APIKey = value
		}
	}
	if c.Speech.InlineMaxBytes <= 0 {
		c.Speech.InlineMaxBytes = defaultInlineMaxBytes
	}
	if c.Speech.LongRunTimeout <= 0 {
		c.Speech.LongRunTimeout = defaultLongRunTimeout
	}
	if c.Speech.PollInterval <= 0 {
		c.Speech.PollInterval = defaultPollInterval
	}
}

func (c *Config) normalizeStorage() {
	c.Storage.Endpoint = strings.TrimSpace(c.Storage.Endpoint)
	if c.Storage.Endpoint == "" {
		c.Storage.Endpoint = defaultStorageEndpoint
	}
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	if c.Storage.Bucket == "" {
		if value, ok := os.LookupEnv("SCRIBE_STORAGE_BUCKET"); ok {
			c.Storage.Bucket = strings.TrimSpace(value)
		}
	}
	if c.Storage.AccessKey == "" {
		if value, ok := os.LookupEnv("SCRIBE_STORAGE_ACCESS_KEY"); ok {
			c.Storage.AccessKey = value
		}
	}
	if c.Storage.SecretKey == "" {
		if value, ok := os.LookupEnv("SCRIBE_STORAGE_SECRET_KEY"); ok {
			c.Storage.SecretKey = value
		}
	}
	c.Storage.Prefix = strings.Trim(strings.TrimSpace(c.Storage.Prefix), "/")
	if c.Storage.Prefix == "" {
		c.Storage.Prefix = defaultStoragePrefix
	}
	c.Storage.URIScheme = strings.TrimSpace(c.Storage.URIScheme)
	if c.Storage.URIScheme == "" {
		c.Storage.URIScheme = defaultURIScheme
	}
}

func (c *Config) normalizeDownload() error {
	c.Download.Binary = strings.TrimSpace(c.Download.Binary)
	if c.Download.Binary == "" {
		c.Download.Binary = defaultDownloadBinary
	}
	if c.Download.UserAgent == "" {
		c.Download.UserAgent = defaultUserAgent
	}
	if c.Download.AcceptLanguage == "" {
		c.Download.AcceptLanguage = defaultAcceptLanguage
	}
	if c.Download.Timeout <= 0 {
		c.Download.Timeout = defaultDownloadTimeout
	}
	if strings.TrimSpace(c.Download.CookiesFile) != "" {
		expanded, err := expandPath(c.Download.CookiesFile)
		if err != nil {
			return fmt.Errorf("download.cookies_file: %w", err)
		}
		c.Download.CookiesFile = expanded
	}
	return nil
}

func (c *Config) normalizeTranscode() {
	c.Transcode.Binary = strings.TrimSpace(c.Transcode.Binary)
	if c.Transcode.Binary == "" {
		c.Transcode.Binary = defaultTranscodeBinary
	}
}

func (c *Config) normalizeDefaults() {
	c.Defaults.Language = language.Canonical(c.Defaults.Language)
	if c.Defaults.Language == "" {
		c.Defaults.Language = defaultLanguage
	}
	c.Defaults.FallbackLanguages = language.Fallbacks(c.Defaults.Language, c.Defaults.FallbackLanguages)
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
