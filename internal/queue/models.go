package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a transcription job. Transitions are
// monotonic: queued -> processing -> done | error.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusError      Status = "error"
)

// InterruptedMessage is the error recorded for jobs found mid-processing
// after a restart. Status monotonicity forbids moving them back to queued.
const InterruptedMessage = "processing interrupted by restart; re-submit the job"

var allStatuses = []Status{StatusQueued, StatusProcessing, StatusDone, StatusError}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := statusSet[normalized]; !ok {
		return "", false
	}
	return normalized, true
}

// IsTerminal reports whether the status is done or error.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusError
}

// Params is the per-job transcription parameter set. All fields except
// Language are optional; zero values mean "provider default".
type Params struct {
	// Language is the primary BCP-47 recognition language code.
	Language string `json:"language_code"`
	// FallbackLanguages are tried in order when the primary language
	// yields no transcript. The first language producing any transcript
	// text wins.
	FallbackLanguages []string `json:"fallback_languages,omitempty"`
	// DiarizationSpeakers enables speaker diarization when > 0 and also
	// forces WordTimeOffsets, since diarization output without per-word
	// timing cannot attribute speakers.
	DiarizationSpeakers int `json:"diarization_speaker_count,omitempty"`
	// Model forces a specific recognition model; empty selects the
	// provider default (or the rich model under diarization).
	Model string `json:"model,omitempty"`
	// UseEnhanced forces the enhanced-model flag; nil leaves the choice
	// to the strategy.
	UseEnhanced *bool `json:"use_enhanced,omitempty"`
	// PhraseHints biases recognition toward the given phrases.
	PhraseHints []string `json:"additional_hints,omitempty"`
	// WordTimeOffsets requests per-word start/end times.
	WordTimeOffsets bool `json:"enable_word_time_offsets"`
}

// Job is one audio transcription request moving through the pipeline.
// Exactly one of SourcePath, RemoteURI, OriginURL is populated at creation;
// acquisition fills in the others as it resolves them.
type Job struct {
	ID           string
	SourcePath   string
	RemoteURI    string
	OriginURL    string
	Params       Params
	Status       Status
	ResultPath   string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SetFailed marks the job as terminally failed with the given message.
// The result locator is cleared so the two terminal fields never coexist.
func (j *Job) SetFailed(message string) {
	j.Status = StatusError
	j.ErrorMessage = message
	j.ResultPath = ""
}

// SetDone marks the job as done with its result locator.
func (j *Job) SetDone(resultPath string) {
	j.Status = StatusDone
	j.ResultPath = resultPath
	j.ErrorMessage = ""
}

// Clone returns a deep copy safe to hand to concurrent readers.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	cp.Params.FallbackLanguages = append([]string(nil), j.Params.FallbackLanguages...)
	cp.Params.PhraseHints = append([]string(nil), j.Params.PhraseHints...)
	if j.Params.UseEnhanced != nil {
		v := *j.Params.UseEnhanced
		cp.Params.UseEnhanced = &v
	}
	return &cp
}

// HealthSummary describes aggregated job counts per lifecycle state.
type HealthSummary struct {
	Total      int
	Queued     int
	Processing int
	Done       int
	Error      int
}
