package transcribe

import (
	"context"
	"log/slog"
	"os"

	"scribe/internal/audio"
	"scribe/internal/config"
	"scribe/internal/language"
	"scribe/internal/logging"
	"scribe/internal/queue"
	"scribe/internal/services"
	"scribe/internal/speech"
	"scribe/internal/storage"
)

// EmptyResultMessage explains the likely causes when every recognition
// attempt produced no text.
const EmptyResultMessage = "no transcript produced; possible causes: audio too long for synchronous mode, unsupported codec, silence, or a wrong language code"

// richModelLanguages are the languages with a dedicated video model. The
// rich model is selected automatically under diarization when no model was
// forced.
var richModelLanguages = map[string]struct{}{
	"en-US": {},
	"en-GB": {},
	"en-AU": {},
	"fr-FR": {},
	"de-DE": {},
	"es-ES": {},
	"es-US": {},
	"it-IT": {},
	"pt-BR": {},
	"ja-JP": {},
	"ko-KR": {},
}

// Recognizer is the provider surface the engine drives.
type Recognizer interface {
	Recognize(ctx context.Context, cfg speech.RecognitionConfig, audio []byte) (*speech.RecognizeResponse, error)
	LongRunningRecognize(ctx context.Context, cfg speech.RecognitionConfig, uri string) (string, error)
	WaitOperation(ctx context.Context, name string) (*speech.RecognizeResponse, error)
}

// Normalizer converts audio into the canonical PCM format on a best-effort
// basis.
type Normalizer interface {
	ToCanonicalPCM(ctx context.Context, src string) (string, bool)
}

// Request is one transcription to perform. LocalPath and RemoteURI may both
// be set; the engine picks the route.
type Request struct {
	LocalPath string
	RemoteURI string
	Params    queue.Params
}

// Meta records how a transcript was obtained.
type Meta struct {
	// Via is "inline" for synchronous recognition over audio bytes and
	// "remote" for long-running recognition over an object-store URI.
	Via                string `json:"via"`
	Language           string `json:"language"`
	Converted          bool   `json:"converted"`
	URI                string `json:"uri,omitempty"`
	Model              string `json:"model"`
	UseEnhanced        bool   `json:"use_enhanced"`
	DiarizationEnabled bool   `json:"diarization_enabled"`
	DiarizationMin     int    `json:"diarization_min,omitempty"`
	DiarizationMax     int    `json:"diarization_max,omitempty"`
}

// Result is a transcript plus the route metadata.
type Result struct {
	speech.Transcription
	Meta Meta `json:"meta"`
}

// Engine implements the recognition strategy: inline-vs-remote selection by
// size, best-effort normalization, the language fallback loop with
// short-circuit, and duration-limit recovery onto the remote path.
type Engine struct {
	recognizer     Recognizer
	normalizer     Normalizer
	store          storage.ObjectStore
	inlineMaxBytes int64
	logger         *slog.Logger
}

func NewEngine(cfg *config.Config, recognizer Recognizer, normalizer Normalizer, store storage.ObjectStore, logger *slog.Logger) *Engine {
	return &Engine{
		recognizer:     recognizer,
		normalizer:     normalizer,
		store:          store,
		inlineMaxBytes: cfg.Speech.InlineMaxBytes,
		logger:         logging.NewComponentLogger(logger, "transcribe"),
	}
}

// Run executes the strategy for one request.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	plan := e.plan(req.Params)

	if req.LocalPath == "" {
		if req.RemoteURI == "" {
			return nil, services.Wrap(services.ErrValidation, "transcribe", "plan", "request has no audio source", nil)
		}
		return e.remote(ctx, plan, req.RemoteURI, plan.primary, false)
	}

	info, err := os.Stat(req.LocalPath)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "transcribe", "stat audio", req.LocalPath, err)
	}

	if info.Size() > e.inlineMaxBytes {
		e.logger.Info("audio exceeds inline ceiling; using remote recognition",
			logging.Int64("size_bytes", info.Size()),
			logging.Int64("inline_max_bytes", e.inlineMaxBytes),
		)
		uri, err := e.ensureURI(ctx, req.RemoteURI, req.LocalPath)
		if err != nil {
			return nil, err
		}
		return e.remote(ctx, plan, uri, plan.primary, false)
	}

	normalized, converted := e.normalizer.ToCanonicalPCM(ctx, req.LocalPath)
	usePath := req.LocalPath
	if converted {
		usePath = normalized
		defer os.Remove(normalized)
	}

	audioBytes, err := os.ReadFile(usePath)
	if err != nil {
		return nil, services.Wrap(services.ErrProvider, "transcribe", "read audio", usePath, err)
	}

	for _, lang := range language.TryOrder(plan.primary, req.Params.FallbackLanguages) {
		// Inline requests never pin the encoding: the provider sniffs the
		// WAV header even for normalized audio.
		resp, err := e.recognizer.Recognize(ctx, plan.config(lang, false), audioBytes)
		if err != nil {
			if services.IsDurationLimit(err) {
				e.logger.Info("inline audio exceeds duration limit; switching to remote recognition",
					logging.String("language", lang),
				)
				// The normalized temp file differs from whatever was
				// uploaded during acquisition, so it needs its own upload.
				existing := req.RemoteURI
				if converted {
					existing = ""
				}
				uri, uploadErr := e.ensureURI(ctx, existing, usePath)
				if uploadErr != nil {
					return nil, uploadErr
				}
				return e.remote(ctx, plan, uri, lang, converted)
			}
			return nil, err
		}
		transcription := speech.ExtractTranscript(resp)
		if !transcription.Empty() {
			return plan.result(transcription, Meta{
				Via:       "inline",
				Language:  lang,
				Converted: converted,
			}), nil
		}
		e.logger.Debug("no transcript for language; trying next", logging.String("language", lang))
	}

	// Every sync attempt came back empty. One remote retry with the primary
	// language and the original, unconverted file.
	uri, err := e.ensureURI(ctx, req.RemoteURI, req.LocalPath)
	if err != nil {
		return nil, err
	}
	return e.remote(ctx, plan, uri, plan.primary, false)
}

func (e *Engine) remote(ctx context.Context, plan recognitionPlan, uri, lang string, forceCanonical bool) (*Result, error) {
	name, err := e.recognizer.LongRunningRecognize(ctx, plan.config(lang, forceCanonical), uri)
	if err != nil {
		return nil, err
	}
	resp, err := e.recognizer.WaitOperation(ctx, name)
	if err != nil {
		return nil, err
	}
	transcription := speech.ExtractTranscript(resp)
	if transcription.Empty() {
		return nil, services.Wrap(services.ErrEmptyResult, "transcribe", "remote", EmptyResultMessage, nil)
	}
	return plan.result(transcription, Meta{
		Via:       "remote",
		Language:  lang,
		Converted: forceCanonical,
		URI:       uri,
	}), nil
}

// ensureURI returns existing when set, otherwise uploads path to the object
// store. The remote path cannot proceed without a URI, so upload failure is
// fatal here.
func (e *Engine) ensureURI(ctx context.Context, existing, path string) (string, error) {
	if existing != "" {
		return existing, nil
	}
	return e.store.Put(ctx, path)
}

// recognitionPlan is the per-job request shape computed once up front.
type recognitionPlan struct {
	primary     string
	diarization *speech.SpeakerDiarizationConfig
	wordOffsets bool
	contexts    []speech.SpeechContext
	model       string
	useEnhanced bool
}

func (e *Engine) plan(params queue.Params) recognitionPlan {
	plan := recognitionPlan{
		primary:     params.Language,
		wordOffsets: params.WordTimeOffsets,
		model:       params.Model,
	}
	if params.UseEnhanced != nil {
		plan.useEnhanced = *params.UseEnhanced
	}
	if len(params.PhraseHints) > 0 {
		plan.contexts = []speech.SpeechContext{{Phrases: params.PhraseHints}}
	}
	if params.DiarizationSpeakers > 0 {
		plan.diarization = &speech.SpeakerDiarizationConfig{
			EnableSpeakerDiarization: true,
			MinSpeakerCount:          max(2, params.DiarizationSpeakers),
			MaxSpeakerCount:          params.DiarizationSpeakers,
		}
		// Speaker attribution is meaningless without word timing.
		plan.wordOffsets = true
		if plan.model == "" {
			if _, ok := richModelLanguages[params.Language]; ok {
				plan.model = "video"
				if params.UseEnhanced == nil {
					plan.useEnhanced = true
				}
			}
		}
	}
	return plan
}

// config builds the provider request config for one language attempt.
// forceCanonical pins encoding and sample rate to the normalized PCM format;
// it is set only when the bytes behind the URI were produced by the
// normalizer.
func (p recognitionPlan) config(lang string, forceCanonical bool) speech.RecognitionConfig {
	cfg := speech.RecognitionConfig{
		LanguageCode:               lang,
		EnableAutomaticPunctuation: true,
		EnableWordTimeOffsets:      p.wordOffsets,
		DiarizationConfig:          p.diarization,
		SpeechContexts:             p.contexts,
		Model:                      p.model,
		UseEnhanced:                p.useEnhanced,
	}
	if forceCanonical {
		cfg.Encoding = audio.CanonicalEncoding
		cfg.SampleRateHertz = audio.CanonicalSampleRate
	}
	return cfg
}

func (p recognitionPlan) result(transcription *speech.Transcription, meta Meta) *Result {
	meta.Model = p.model
	meta.UseEnhanced = p.useEnhanced
	if p.diarization != nil {
		meta.DiarizationEnabled = true
		meta.DiarizationMin = p.diarization.MinSpeakerCount
		meta.DiarizationMax = p.diarization.MaxSpeakerCount
	}
	return &Result{
		Transcription: *transcription,
		Meta:          meta,
	}
}
