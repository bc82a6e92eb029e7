package speech

// REST payload types for the recognition provider's v1 surface. Field names
// follow the provider's JSON casing exactly.

// RecognitionConfig describes how one recognition request is decoded and
// modeled. Encoding and SampleRateHertz are normally omitted so the provider
// sniffs the container; they are forced only for pre-normalized PCM.
type RecognitionConfig struct {
	Encoding                   string                    `json:"encoding,omitempty"`
	SampleRateHertz            int                       `json:"sampleRateHertz,omitempty"`
	LanguageCode               string                    `json:"languageCode"`
	EnableAutomaticPunctuation bool                      `json:"enableAutomaticPunctuation,omitempty"`
	EnableWordTimeOffsets      bool                      `json:"enableWordTimeOffsets,omitempty"`
	DiarizationConfig          *SpeakerDiarizationConfig `json:"diarizationConfig,omitempty"`
	SpeechContexts             []SpeechContext           `json:"speechContexts,omitempty"`
	Model                      string                    `json:"model,omitempty"`
	UseEnhanced                bool                      `json:"useEnhanced,omitempty"`
}

// SpeakerDiarizationConfig requests speaker attribution on word output.
type SpeakerDiarizationConfig struct {
	EnableSpeakerDiarization bool `json:"enableSpeakerDiarization"`
	MinSpeakerCount          int  `json:"minSpeakerCount,omitempty"`
	MaxSpeakerCount          int  `json:"maxSpeakerCount,omitempty"`
}

// SpeechContext biases recognition toward the given phrases.
type SpeechContext struct {
	Phrases []string `json:"phrases"`
}

// RecognitionAudio carries either inline base64 content or an object-store
// URI, never both.
type RecognitionAudio struct {
	Content string `json:"content,omitempty"`
	URI     string `json:"uri,omitempty"`
}

type recognizeRequest struct {
	Config RecognitionConfig `json:"config"`
	Audio  RecognitionAudio  `json:"audio"`
}

// RecognizeResponse is the provider's recognition result set. The same shape
// is embedded in a finished long-running operation.
type RecognizeResponse struct {
	Results []RecognitionResult `json:"results"`
}

// RecognitionResult is one contiguous recognized segment.
type RecognitionResult struct {
	Alternatives []RecognitionAlternative `json:"alternatives"`
	ChannelTag   int                      `json:"channelTag"`
	LanguageCode string                   `json:"languageCode"`
}

// RecognitionAlternative is a hypothesis for a segment, best first.
type RecognitionAlternative struct {
	Transcript string     `json:"transcript"`
	Confidence float64    `json:"confidence"`
	Words      []WordInfo `json:"words"`
}

// WordInfo carries per-word timing and speaker attribution. Times arrive as
// decimal-second strings such as "3.500s".
type WordInfo struct {
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
	Word       string `json:"word"`
	SpeakerTag int    `json:"speakerTag"`
}

// Operation mirrors the provider's long-running operation resource.
type Operation struct {
	Name     string             `json:"name"`
	Done     bool               `json:"done"`
	Error    *OperationError    `json:"error,omitempty"`
	Response *RecognizeResponse `json:"response,omitempty"`
}

// OperationError is the failure payload of a finished operation.
type OperationError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
