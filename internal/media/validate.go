package media

import (
	"regexp"
	"strings"

	"scribe/internal/services"
)

// Supported origin video hosts. Shorts, watch, and embed URLs all share
// these prefixes.
var videoOriginPattern = regexp.MustCompile(`^https?://(www\.)?(youtube\.com|youtu\.be)/`)

// IsVideoOriginURL reports whether raw looks like a downloadable video URL.
func IsVideoOriginURL(raw string) bool {
	return videoOriginPattern.MatchString(strings.TrimSpace(raw))
}

// ValidateOriginURL rejects origin URLs for unknown hosts before any
// downloader process is spawned.
func ValidateOriginURL(raw string) error {
	if !IsVideoOriginURL(raw) {
		return services.Wrap(services.ErrValidation, "acquire", "validate origin", "unsupported video URL: "+strings.TrimSpace(raw), nil)
	}
	return nil
}
