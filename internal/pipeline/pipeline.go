// Package pipeline runs one voice translation end to end: transcribe the
// recording, translate the transcript, then speak the translation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dooshek/polyvoice/internal/archive"
	"github.com/dooshek/polyvoice/internal/generation"
	"github.com/dooshek/polyvoice/internal/logger"
	"github.com/dooshek/polyvoice/internal/transcriber"
	"github.com/dooshek/polyvoice/internal/translator"
	"github.com/dooshek/polyvoice/internal/types"
	"github.com/google/uuid"
)

var (
	ErrUnsupportedLanguage = errors.New("unsupported target language")
	ErrNoAudio             = errors.New("no audio provided")
	ErrNoSpeech            = errors.New("no speech recognized")
)

type Generator interface {
	GenerateAudio(ctx context.Context, req generation.Request) generation.Result
}

type StatsRecorder interface {
	Record(backend string, elapsed time.Duration, success bool)
}

type Input struct {
	Audio          []byte
	Filename       string
	TargetLanguage string
	Mode           types.VoiceMode
	APIKey         string
}

type Timings struct {
	TranscribeMs int64 `json:"transcribe_ms"`
	TranslateMs  int64 `json:"translate_ms"`
	GenerateMs   int64 `json:"generate_ms"`
	TotalMs      int64 `json:"total_ms"`
}

type Result struct {
	ID             string            `json:"id"`
	Transcript     string            `json:"transcript"`
	SourceLanguage string            `json:"source_language,omitempty"`
	Translation    string            `json:"translation"`
	TargetLanguage string            `json:"target_language"`
	Mode           types.VoiceMode   `json:"mode"`
	Audio          generation.Result `json:"audio"`
	AudioFailed    bool              `json:"audio_failed"`
	ArchiveKey     string            `json:"archive_key,omitempty"`
	Timings        Timings           `json:"timings"`
}

// Deps are the collaborators of a Pipeline. Stats and Archive are optional.
type Deps struct {
	Transcriber transcriber.Transcriber
	Translator  translator.Translator
	Generator   Generator
	Stats       StatsRecorder
	Archive     archive.Store
}

type Pipeline struct {
	deps Deps
}

func New(deps Deps) *Pipeline {
	return &Pipeline{deps: deps}
}

// Process returns an error only when transcription or translation fails. A
// failed audio generation still yields the text result with AudioFailed set.
func (p *Pipeline) Process(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()

	if _, ok := types.LookupLanguage(in.TargetLanguage); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, in.TargetLanguage)
	}
	if len(in.Audio) == 0 {
		return nil, ErrNoAudio
	}
	if in.Filename == "" {
		in.Filename = "recording.wav"
	}

	res := &Result{
		ID:             uuid.NewString(),
		TargetLanguage: in.TargetLanguage,
		Mode:           in.Mode,
	}
	log := logger.Component("pipeline").With().Str("id", res.ID).Logger()

	stepStart := time.Now()
	transcript, err := p.deps.Transcriber.Transcribe(ctx, in.Filename, in.Audio, in.APIKey)
	p.record(p.deps.Transcriber.Name(), time.Since(stepStart), err == nil)
	res.Timings.TranscribeMs = time.Since(stepStart).Milliseconds()
	if err != nil {
		log.Error().Err(err).Str("kind", types.FailureKind(err)).Msg("Transcription failed")
		return nil, fmt.Errorf("transcription failed: %w", err)
	}
	if strings.TrimSpace(transcript.Text) == "" {
		return nil, ErrNoSpeech
	}
	res.Transcript = transcript.Text
	res.SourceLanguage = transcript.LanguageCode
	log.Info().Int("chars", len(transcript.Text)).Str("language", transcript.LanguageCode).Msg("📝 Transcribed")

	stepStart = time.Now()
	translation, err := p.deps.Translator.Translate(ctx, transcript.Text, transcript.LanguageCode, in.TargetLanguage, in.APIKey)
	p.record(p.deps.Translator.Name(), time.Since(stepStart), err == nil)
	res.Timings.TranslateMs = time.Since(stepStart).Milliseconds()
	if err != nil {
		log.Error().Err(err).Str("kind", types.FailureKind(err)).Msg("Translation failed")
		return nil, fmt.Errorf("translation failed: %w", err)
	}
	res.Translation = translation
	log.Info().Str("target", in.TargetLanguage).Msg("🌐 Translated")

	stepStart = time.Now()
	res.Audio = p.deps.Generator.GenerateAudio(ctx, generation.Request{
		GenText:        translation,
		RefText:        transcript.Text,
		RefAudio:       in.Audio,
		TargetLanguage: in.TargetLanguage,
		Mode:           in.Mode,
		APIKey:         in.APIKey,
	})
	res.Timings.GenerateMs = time.Since(stepStart).Milliseconds()
	res.AudioFailed = !res.Audio.Success

	if res.AudioFailed {
		log.Warn().Str("error", res.Audio.Error).Msg("Audio generation failed, returning text only")
	} else {
		log.Info().Str("provider", string(res.Audio.Provider)).Str("backend", res.Audio.Backend).Msg("🔊 Audio generated")
		res.ArchiveKey = p.archive(ctx, res)
	}

	res.Timings.TotalMs = time.Since(start).Milliseconds()
	return res, nil
}

func (p *Pipeline) archive(ctx context.Context, res *Result) string {
	if p.deps.Archive == nil {
		return ""
	}

	data, err := types.DecodeAudioPayload(res.Audio.AudioBase64)
	if err != nil {
		logger.Warnf("Not archiving %s: audio is not base64: %v", res.ID, err)
		return ""
	}

	key, err := p.deps.Archive.Put(ctx, archive.Object{
		Data: data,
		Metadata: map[string]string{
			"pipeline-id": res.ID,
			"language":    res.TargetLanguage,
			"provider":    string(res.Audio.Provider),
		},
	})
	if err != nil {
		logger.Error("Failed to archive generated audio", err)
		return ""
	}
	return key
}

func (p *Pipeline) record(backend string, elapsed time.Duration, ok bool) {
	if p.deps.Stats != nil {
		p.deps.Stats.Record(backend, elapsed, ok)
	}
}
