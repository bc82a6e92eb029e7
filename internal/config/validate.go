package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSpeech(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSpeech() error {
	if c.Speech.Endpoint == "" {
		return errors.New("speech.endpoint must be set")
	}
	if c.Speech.InlineMaxBytes <= 0 {
		return errors.New("speech.inline_max_bytes must be positive")
	}
	if c.Speech.LongRunTimeout <= 0 {
		return errors.New("speech.long_run_timeout must be positive")
	}
	return nil
}

func (c *Config) validateStorage() error {
	// The bucket is required only when a job actually reaches the
	// remote-URI path, so config load does not reject its absence, but
	// partial credentials are a misconfiguration worth failing fast on.
	hasAccess := c.Storage.AccessKey != ""
	hasSecret := c.Storage.SecretKey != ""
	if hasAccess != hasSecret {
		return errors.New("storage.access_key and storage.secret_key must be set together")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.QueuePollInterval <= 0 {
		return errors.New("workflow.queue_poll_interval must be positive")
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		return errors.New("workflow.error_retry_interval must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
