package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks structurally invalid input caught before any
	// external call, such as an origin URL that is not a known video host.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks missing or unusable configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks a referenced local file that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAccessBlocked marks an origin that refused automated access,
	// typically a video host demanding authenticated cookies.
	ErrAccessBlocked = errors.New("access blocked")
	// ErrDurationLimit marks the provider-reported inline duration ceiling.
	// It is the only recoverable member of the taxonomy: the strategy reacts
	// by switching to the remote-URI path instead of failing the job.
	ErrDurationLimit = errors.New("inline duration limit exceeded")
	// ErrEmptyResult marks a job whose every strategy produced no transcript.
	ErrEmptyResult = errors.New("empty result")
	// ErrTimeout marks a remote operation that exceeded its wait budget.
	ErrTimeout = errors.New("timeout")
	// ErrProvider marks any other recognition or storage failure.
	ErrProvider = errors.New("provider error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrProvider
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsDurationLimit reports whether err carries the inline duration-limit marker.
func IsDurationLimit(err error) bool {
	return errors.Is(err, ErrDurationLimit)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
