package transcribe

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/queue"
	"scribe/internal/services"
	"scribe/internal/speech"
	"scribe/internal/testsupport"
)

type syncOutcome struct {
	transcript string
	err        error
}

type remoteCall struct {
	cfg speech.RecognitionConfig
	uri string
}

type fakeRecognizer struct {
	syncOutcomes []syncOutcome
	syncCalls    []speech.RecognitionConfig
	remoteCalls  []remoteCall
	remoteResult string
	remoteErr    error
}

func responseWith(transcript string) *speech.RecognizeResponse {
	if transcript == "" {
		return &speech.RecognizeResponse{}
	}
	return &speech.RecognizeResponse{
		Results: []speech.RecognitionResult{{
			Alternatives: []speech.RecognitionAlternative{{Transcript: transcript, Confidence: 0.9}},
		}},
	}
}

func (f *fakeRecognizer) Recognize(_ context.Context, cfg speech.RecognitionConfig, _ []byte) (*speech.RecognizeResponse, error) {
	idx := len(f.syncCalls)
	f.syncCalls = append(f.syncCalls, cfg)
	if idx >= len(f.syncOutcomes) {
		return responseWith(""), nil
	}
	outcome := f.syncOutcomes[idx]
	if outcome.err != nil {
		return nil, outcome.err
	}
	return responseWith(outcome.transcript), nil
}

func (f *fakeRecognizer) LongRunningRecognize(_ context.Context, cfg speech.RecognitionConfig, uri string) (string, error) {
	f.remoteCalls = append(f.remoteCalls, remoteCall{cfg: cfg, uri: uri})
	return "operations/op-1", nil
}

func (f *fakeRecognizer) WaitOperation(context.Context, string) (*speech.RecognizeResponse, error) {
	if f.remoteErr != nil {
		return nil, f.remoteErr
	}
	return responseWith(f.remoteResult), nil
}

type noopNormalizer struct{}

func (noopNormalizer) ToCanonicalPCM(context.Context, string) (string, bool) { return "", false }

type fixedNormalizer struct {
	out string
}

func (n fixedNormalizer) ToCanonicalPCM(context.Context, string) (string, bool) { return n.out, true }

type fakeStore struct {
	uri   string
	err   error
	calls []string
}

func (f *fakeStore) Put(_ context.Context, localPath string) (string, error) {
	f.calls = append(f.calls, localPath)
	if f.err != nil {
		return "", f.err
	}
	return f.uri, nil
}

func newEngine(t *testing.T, recognizer *fakeRecognizer, normalizer Normalizer, store *fakeStore, mutate func(*config.Config)) *Engine {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if mutate != nil {
		mutate(cfg)
	}
	return NewEngine(cfg, recognizer, normalizer, store, logging.NewNop())
}

func writeAudio(t *testing.T, size int64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.mp3")
	testsupport.WriteFile(t, path, size)
	return path
}

func TestInlineGateSkipsSyncAboveCeiling(t *testing.T) {
	recognizer := &fakeRecognizer{remoteResult: "remote transcript"}
	engine := newEngine(t, recognizer, noopNormalizer{}, &fakeStore{}, func(cfg *config.Config) {
		cfg.Speech.InlineMaxBytes = 9_000_000
	})

	result, err := engine.Run(context.Background(), Request{
		LocalPath: writeAudio(t, 10_000_000),
		RemoteURI: "gs://bucket/audio.mp3",
		Params:    queue.Params{Language: "pl-PL"},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(recognizer.syncCalls) != 0 {
		t.Fatalf("expected no sync attempts above the ceiling, got %d", len(recognizer.syncCalls))
	}
	if len(recognizer.remoteCalls) != 1 {
		t.Fatalf("expected exactly one remote call, got %d", len(recognizer.remoteCalls))
	}
	if recognizer.remoteCalls[0].uri != "gs://bucket/audio.mp3" {
		t.Fatalf("expected existing URI to be reused, got %q", recognizer.remoteCalls[0].uri)
	}
	if result.Meta.Via != "remote" {
		t.Fatalf("expected remote route, got %q", result.Meta.Via)
	}
}

func TestInlineUnderCeilingStaysSync(t *testing.T) {
	recognizer := &fakeRecognizer{syncOutcomes: []syncOutcome{{transcript: "tekst"}}}
	engine := newEngine(t, recognizer, noopNormalizer{}, &fakeStore{}, nil)

	result, err := engine.Run(context.Background(), Request{
		LocalPath: writeAudio(t, 8_999_999),
		Params:    queue.Params{Language: "pl-PL"},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(recognizer.remoteCalls) != 0 {
		t.Fatalf("expected no remote calls under the ceiling, got %d", len(recognizer.remoteCalls))
	}
	if result.Meta.Via != "inline" || result.Meta.Language != "pl-PL" {
		t.Fatalf("unexpected meta %+v", result.Meta)
	}
}

func TestLanguageShortCircuit(t *testing.T) {
	recognizer := &fakeRecognizer{syncOutcomes: []syncOutcome{{transcript: "dzien dobry"}}}
	engine := newEngine(t, recognizer, noopNormalizer{}, &fakeStore{}, nil)

	result, err := engine.Run(context.Background(), Request{
		LocalPath: writeAudio(t, 1024),
		Params: queue.Params{
			Language:          "pl-PL",
			FallbackLanguages: []string{"en-US", "de-DE"},
		},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(recognizer.syncCalls) != 1 {
		t.Fatalf("expected fallbacks to never run after a hit, got %d attempts", len(recognizer.syncCalls))
	}
	if recognizer.syncCalls[0].LanguageCode != "pl-PL" {
		t.Fatalf("expected primary language first, got %q", recognizer.syncCalls[0].LanguageCode)
	}
	if result.Transcript != "dzien dobry" {
		t.Fatalf("unexpected transcript %q", result.Transcript)
	}
}

func TestLanguageFallbackOrderAndDedup(t *testing.T) {
	recognizer := &fakeRecognizer{syncOutcomes: []syncOutcome{
		{transcript: ""},
		{transcript: "hello there"},
	}}
	engine := newEngine(t, recognizer, noopNormalizer{}, &fakeStore{}, nil)

	result, err := engine.Run(context.Background(), Request{
		LocalPath: writeAudio(t, 1024),
		Params: queue.Params{
			Language:          "pl-PL",
			FallbackLanguages: []string{"pl-PL", "en-US"},
		},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(recognizer.syncCalls) != 2 {
		t.Fatalf("expected primary plus one deduped fallback, got %d attempts", len(recognizer.syncCalls))
	}
	if recognizer.syncCalls[1].LanguageCode != "en-US" {
		t.Fatalf("expected en-US second, got %q", recognizer.syncCalls[1].LanguageCode)
	}
	if result.Meta.Language != "en-US" {
		t.Fatalf("expected winning language recorded, got %q", result.Meta.Language)
	}
}

func TestDurationLimitSwitchesToRemoteSameLanguage(t *testing.T) {
	recognizer := &fakeRecognizer{
		syncOutcomes: []syncOutcome{
			{transcript: ""},
			{err: services.Wrap(services.ErrDurationLimit, "recognize", "call provider", "inline audio exceeds duration limit", nil)},
		},
		remoteResult: "long transcript",
	}
	engine := newEngine(t, recognizer, noopNormalizer{}, &fakeStore{}, nil)

	result, err := engine.Run(context.Background(), Request{
		LocalPath: writeAudio(t, 1024),
		RemoteURI: "gs://bucket/audio.mp3",
		Params: queue.Params{
			Language:          "pl-PL",
			FallbackLanguages: []string{"en-US", "de-DE"},
		},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(recognizer.syncCalls) != 2 {
		t.Fatalf("expected sync loop to abort on duration limit, got %d attempts", len(recognizer.syncCalls))
	}
	if len(recognizer.remoteCalls) != 1 {
		t.Fatalf("expected exactly one remote call, got %d", len(recognizer.remoteCalls))
	}
	if got := recognizer.remoteCalls[0].cfg.LanguageCode; got != "en-US" {
		t.Fatalf("expected remote retry with the failing language, got %q", got)
	}
	if result.Meta.Via != "remote" || result.Meta.Language != "en-US" {
		t.Fatalf("unexpected meta %+v", result.Meta)
	}
	if cfg := recognizer.remoteCalls[0].cfg; cfg.Encoding != "" || cfg.SampleRateHertz != 0 {
		t.Fatalf("expected no forced encoding for unconverted audio, got %+v", cfg)
	}
}

func TestDurationLimitWithNormalizedAudioForcesEncoding(t *testing.T) {
	normalized := writeAudio(t, 2048)
	recognizer := &fakeRecognizer{
		syncOutcomes: []syncOutcome{
			{err: services.Wrap(services.ErrDurationLimit, "recognize", "call provider", "inline audio exceeds duration limit", nil)},
		},
		remoteResult: "long transcript",
	}
	store := &fakeStore{uri: "gs://bucket/normalized.wav"}
	engine := newEngine(t, recognizer, fixedNormalizer{out: normalized}, store, nil)

	_, err := engine.Run(context.Background(), Request{
		LocalPath: writeAudio(t, 1024),
		RemoteURI: "gs://bucket/original.mp3",
		Params:    queue.Params{Language: "pl-PL"},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(store.calls) != 1 || store.calls[0] != normalized {
		t.Fatalf("expected the normalized file to be uploaded, got %v", store.calls)
	}
	cfg := recognizer.remoteCalls[0].cfg
	if cfg.Encoding != "LINEAR16" || cfg.SampleRateHertz != 16000 {
		t.Fatalf("expected forced LINEAR16/16000 for normalized audio, got %+v", cfg)
	}
	if recognizer.remoteCalls[0].uri != "gs://bucket/normalized.wav" {
		t.Fatalf("expected the fresh upload URI, got %q", recognizer.remoteCalls[0].uri)
	}
}

func TestPrimaryAttemptedWithoutFallbacks(t *testing.T) {
	recognizer := &fakeRecognizer{
		syncOutcomes: []syncOutcome{{transcript: ""}},
		remoteResult: "remote transcript",
	}
	engine := newEngine(t, recognizer, noopNormalizer{}, &fakeStore{}, nil)

	_, err := engine.Run(context.Background(), Request{
		LocalPath: writeAudio(t, 1024),
		RemoteURI: "gs://bucket/audio.mp3",
		Params:    queue.Params{Language: "de-DE"},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(recognizer.syncCalls) != 1 {
		t.Fatalf("expected one inline attempt with the primary language, got %d", len(recognizer.syncCalls))
	}
	if recognizer.syncCalls[0].LanguageCode != "de-DE" {
		t.Fatalf("expected primary language inline, got %q", recognizer.syncCalls[0].LanguageCode)
	}
	if len(recognizer.remoteCalls) != 1 {
		t.Fatalf("expected the empty inline result to fall back to remote, got %d calls", len(recognizer.remoteCalls))
	}
}

func TestExhaustedLanguagesRetriesRemoteWithPrimary(t *testing.T) {
	recognizer := &fakeRecognizer{
		syncOutcomes: []syncOutcome{{transcript: ""}, {transcript: ""}},
		remoteResult: "finally",
	}
	engine := newEngine(t, recognizer, noopNormalizer{}, &fakeStore{}, nil)

	result, err := engine.Run(context.Background(), Request{
		LocalPath: writeAudio(t, 1024),
		RemoteURI: "gs://bucket/audio.mp3",
		Params: queue.Params{
			Language:          "pl-PL",
			FallbackLanguages: []string{"en-US"},
		},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(recognizer.remoteCalls) != 1 {
		t.Fatalf("expected one remote retry, got %d", len(recognizer.remoteCalls))
	}
	if got := recognizer.remoteCalls[0].cfg.LanguageCode; got != "pl-PL" {
		t.Fatalf("expected remote retry with the primary language, got %q", got)
	}
	if result.Transcript != "finally" {
		t.Fatalf("unexpected transcript %q", result.Transcript)
	}
}

func TestEmptyRemoteResultFailsWithDiagnostic(t *testing.T) {
	recognizer := &fakeRecognizer{remoteResult: ""}
	engine := newEngine(t, recognizer, noopNormalizer{}, &fakeStore{}, nil)

	_, err := engine.Run(context.Background(), Request{
		RemoteURI: "gs://bucket/audio.mp3",
		Params:    queue.Params{Language: "pl-PL"},
	})
	if !errors.Is(err, services.ErrEmptyResult) {
		t.Fatalf("expected ErrEmptyResult, got %v", err)
	}
}

func TestSyncProviderErrorPropagates(t *testing.T) {
	recognizer := &fakeRecognizer{
		syncOutcomes: []syncOutcome{
			{err: services.Wrap(services.ErrProvider, "recognize", "call provider", "bad credentials", nil)},
		},
	}
	engine := newEngine(t, recognizer, noopNormalizer{}, &fakeStore{}, nil)

	_, err := engine.Run(context.Background(), Request{
		LocalPath: writeAudio(t, 1024),
		Params: queue.Params{
			Language:          "pl-PL",
			FallbackLanguages: []string{"en-US"},
		},
	})
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected provider error to propagate, got %v", err)
	}
	if len(recognizer.syncCalls) != 1 {
		t.Fatalf("expected no fallback after a hard error, got %d attempts", len(recognizer.syncCalls))
	}
}

func TestDiarizationSpec(t *testing.T) {
	recognizer := &fakeRecognizer{syncOutcomes: []syncOutcome{{transcript: "tekst"}}}
	engine := newEngine(t, recognizer, noopNormalizer{}, &fakeStore{}, nil)

	result, err := engine.Run(context.Background(), Request{
		LocalPath: writeAudio(t, 1024),
		Params: queue.Params{
			Language:            "pl-PL",
			DiarizationSpeakers: 3,
		},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	cfg := recognizer.syncCalls[0]
	if cfg.DiarizationConfig == nil {
		t.Fatal("expected diarization config")
	}
	if cfg.DiarizationConfig.MinSpeakerCount != 3 || cfg.DiarizationConfig.MaxSpeakerCount != 3 {
		t.Fatalf("expected min=3 max=3, got %+v", cfg.DiarizationConfig)
	}
	if !cfg.EnableWordTimeOffsets {
		t.Fatal("diarization must force word time offsets")
	}
	if !result.Meta.DiarizationEnabled || result.Meta.DiarizationMin != 3 || result.Meta.DiarizationMax != 3 {
		t.Fatalf("unexpected diarization meta %+v", result.Meta)
	}
}

func TestDiarizationSingleSpeakerRaisesMinimum(t *testing.T) {
	recognizer := &fakeRecognizer{syncOutcomes: []syncOutcome{{transcript: "tekst"}}}
	engine := newEngine(t, recognizer, noopNormalizer{}, &fakeStore{}, nil)

	_, err := engine.Run(context.Background(), Request{
		LocalPath: writeAudio(t, 1024),
		Params: queue.Params{
			Language:            "pl-PL",
			DiarizationSpeakers: 1,
		},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	cfg := recognizer.syncCalls[0].DiarizationConfig
	if cfg.MinSpeakerCount != 2 || cfg.MaxSpeakerCount != 1 {
		t.Fatalf("expected min=2 max=1, got %+v", cfg)
	}
}

func TestRichModelSelection(t *testing.T) {
	cases := []struct {
		name         string
		params       queue.Params
		wantModel    string
		wantEnhanced bool
	}{
		{
			name:         "diarization with rich language",
			params:       queue.Params{Language: "en-US", DiarizationSpeakers: 2},
			wantModel:    "video",
			wantEnhanced: true,
		},
		{
			name:         "diarization outside rich set",
			params:       queue.Params{Language: "pl-PL", DiarizationSpeakers: 2},
			wantModel:    "",
			wantEnhanced: false,
		},
		{
			name:         "forced model wins",
			params:       queue.Params{Language: "en-US", DiarizationSpeakers: 2, Model: "phone_call"},
			wantModel:    "phone_call",
			wantEnhanced: false,
		},
		{
			name:         "no diarization no rich model",
			params:       queue.Params{Language: "en-US"},
			wantModel:    "",
			wantEnhanced: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			recognizer := &fakeRecognizer{syncOutcomes: []syncOutcome{{transcript: "text"}}}
			engine := newEngine(t, recognizer, noopNormalizer{}, &fakeStore{}, nil)

			result, err := engine.Run(context.Background(), Request{
				LocalPath: writeAudio(t, 1024),
				Params:    tc.params,
			})
			if err != nil {
				t.Fatalf("Run returned error: %v", err)
			}
			cfg := recognizer.syncCalls[0]
			if cfg.Model != tc.wantModel {
				t.Fatalf("expected model %q, got %q", tc.wantModel, cfg.Model)
			}
			if cfg.UseEnhanced != tc.wantEnhanced {
				t.Fatalf("expected enhanced=%v, got %v", tc.wantEnhanced, cfg.UseEnhanced)
			}
			if result.Meta.Model != tc.wantModel {
				t.Fatalf("expected meta model %q, got %q", tc.wantModel, result.Meta.Model)
			}
		})
	}
}

func TestRemoteOnlyRequest(t *testing.T) {
	recognizer := &fakeRecognizer{remoteResult: "from uri"}
	store := &fakeStore{}
	engine := newEngine(t, recognizer, noopNormalizer{}, store, nil)

	result, err := engine.Run(context.Background(), Request{
		RemoteURI: "gs://bucket/audio.flac",
		Params:    queue.Params{Language: "pl-PL"},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(store.calls) != 0 {
		t.Fatalf("expected no uploads for remote-only request, got %v", store.calls)
	}
	if result.Meta.URI != "gs://bucket/audio.flac" {
		t.Fatalf("expected URI recorded in meta, got %q", result.Meta.URI)
	}
}

func TestRequestWithoutSource(t *testing.T) {
	engine := newEngine(t, &fakeRecognizer{}, noopNormalizer{}, &fakeStore{}, nil)
	_, err := engine.Run(context.Background(), Request{Params: queue.Params{Language: "pl-PL"}})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
