package speech

import (
	"strconv"
	"strings"
)

// Transcription is the assembled output of one recognition response: the
// joined best hypotheses plus the per-segment alternatives and any word-level
// detail the provider returned.
type Transcription struct {
	Transcript   string        `json:"transcript"`
	Alternatives []Alternative `json:"alternatives"`
	Words        []Word        `json:"diarization_words,omitempty"`
}

// Alternative is the best hypothesis of one recognized segment.
type Alternative struct {
	Text       string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

// Word carries timing and speaker attribution for a single recognized word.
// Times are seconds from the start of the audio; nil means the provider
// omitted the value.
type Word struct {
	Word       string   `json:"word"`
	Start      *float64 `json:"start_time"`
	End        *float64 `json:"end_time"`
	SpeakerTag int      `json:"speaker_tag"`
	ChannelTag int      `json:"channel_tag"`
}

// Empty reports whether no transcript text was produced.
func (t *Transcription) Empty() bool {
	return t == nil || strings.TrimSpace(t.Transcript) == ""
}

// ExtractTranscript flattens a recognition response. Segments without
// alternatives are skipped; the overall transcript joins each segment's best
// hypothesis with single spaces.
func ExtractTranscript(resp *RecognizeResponse) *Transcription {
	out := &Transcription{}
	if resp == nil {
		return out
	}

	var chunks []string
	for _, result := range resp.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		best := result.Alternatives[0]
		text := strings.TrimSpace(best.Transcript)
		if text != "" {
			chunks = append(chunks, text)
		}
		out.Alternatives = append(out.Alternatives, Alternative{
			Text:       text,
			Confidence: best.Confidence,
		})
		for _, word := range best.Words {
			out.Words = append(out.Words, Word{
				Word:       word.Word,
				Start:      parseDuration(word.StartTime),
				End:        parseDuration(word.EndTime),
				SpeakerTag: word.SpeakerTag,
				ChannelTag: result.ChannelTag,
			})
		}
	}
	out.Transcript = strings.Join(chunks, " ")
	return out
}

// parseDuration converts the provider's "3.500s" duration strings into
// seconds.
func parseDuration(value string) *float64 {
	value = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "s"))
	if value == "" {
		return nil
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil
	}
	return &seconds
}
