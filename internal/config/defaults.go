package config

const (
	defaultStagingDir = "~/.local/share/scribe/staging"
	defaultUploadDir  = "~/.local/share/scribe/uploads"
	defaultJobsDir    = "~/.local/share/scribe/jobs"
	defaultResultsDir = "~/.local/share/scribe/results"
	defaultLogDir     = "~/.local/share/scribe/logs"

	defaultSpeechEndpoint = "https://speech.googleapis.com"
	defaultInlineMaxBytes = 9_000_000
	defaultLongRunTimeout = 3600
	defaultPollInterval   = 5

	defaultStorageEndpoint = "storage.googleapis.com"
	defaultStoragePrefix   = "stt_uploads"
	defaultURIScheme       = "gs"

	defaultDownloadBinary  = "yt-dlp"
	defaultDownloadTimeout = 600
	defaultUserAgent       = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	defaultAcceptLanguage  = "pl-PL,pl;q=0.9,en-US;q=0.8,en;q=0.7"

	defaultTranscodeBinary = "ffmpeg"

	defaultLanguage = "pl-PL"

	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			UploadDir:  defaultUploadDir,
			JobsDir:    defaultJobsDir,
			ResultsDir: defaultResultsDir,
			LogDir:     defaultLogDir,
		},
		Speech: Speech{
			Endpoint:       defaultSpeechEndpoint,
			InlineMaxBytes: defaultInlineMaxBytes,
			LongRunTimeout: defaultLongRunTimeout,
			PollInterval:   defaultPollInterval,
		},
		Storage: Storage{
			Endpoint:  defaultStorageEndpoint,
			Prefix:    defaultStoragePrefix,
			UseSSL:    true,
			URIScheme: defaultURIScheme,
		},
		Download: Download{
			Binary:         defaultDownloadBinary,
			UserAgent:      defaultUserAgent,
			AcceptLanguage: defaultAcceptLanguage,
			Timeout:        defaultDownloadTimeout,
		},
		Transcode: Transcode{
			Enabled: true,
			Binary:  defaultTranscodeBinary,
		},
		Defaults: Defaults{
			Language: defaultLanguage,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
