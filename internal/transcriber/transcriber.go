package transcriber

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dooshek/polyvoice/internal/llm"
	"github.com/dooshek/polyvoice/internal/logger"
	"github.com/dooshek/polyvoice/internal/sarvam"
	"github.com/dooshek/polyvoice/internal/types"
)

// Transcript is recognized speech plus the language the backend detected,
// empty when the backend does not report one
type Transcript struct {
	Text         string `json:"text"`
	LanguageCode string `json:"language_code,omitempty"`
}

type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio []byte, apiKey string) (Transcript, error)
	Name() string
}

// New builds the transcriber selected by cfg.Transcription.Provider
func New(cfg *types.Config, httpClient *http.Client) (Transcriber, error) {
	logger.Debug("Initializing transcriber")

	tc := cfg.Transcription
	switch types.LLMProvider(tc.Provider) {
	case types.ProviderSarvam, "":
		client := sarvam.NewClient(cfg.Keys.SarvamKey, cfg.TTS.Sarvam.BaseURL, httpClient)
		return NewSarvamTranscriber(client, tc.Model, tc.Language), nil
	default:
		provider, err := llm.NewProvider(types.LLMProvider(tc.Provider), cfg.Keys)
		if err != nil {
			logger.Error("Failed to initialize LLM provider", err)
			return nil, fmt.Errorf("failed to initialize LLM provider: %w", err)
		}
		return NewLLMTranscriber(tc.Provider, provider, llm.TranscriptionOptions{Model: tc.Model, Language: tc.Language}), nil
	}
}

// SarvamTranscriber uses the Saarika speech-to-text model
type SarvamTranscriber struct {
	client   *sarvam.Client
	model    string
	language string
}

func NewSarvamTranscriber(client *sarvam.Client, model, language string) *SarvamTranscriber {
	if model == "" {
		model = types.DefaultSarvamSTTModel
	}
	return &SarvamTranscriber{client: client, model: model, language: language}
}

func (t *SarvamTranscriber) Transcribe(ctx context.Context, filename string, audio []byte, apiKey string) (Transcript, error) {
	logger.Debugf("Starting Sarvam transcription of %s (%d bytes)", filename, len(audio))

	res, err := t.client.SpeechToText(ctx, filename, bytes.NewReader(audio), t.model, t.language, apiKey)
	if err != nil {
		return Transcript{}, fmt.Errorf("error transcribing audio: %w", err)
	}

	return Transcript{Text: strings.TrimSpace(res.Transcript), LanguageCode: res.LanguageCode}, nil
}

func (t *SarvamTranscriber) Name() string {
	return "sarvam-saarika"
}

// LLMTranscriber uses a Whisper-compatible endpoint through internal/llm
type LLMTranscriber struct {
	name     string
	provider llm.Provider
	opts     llm.TranscriptionOptions
}

func NewLLMTranscriber(name string, provider llm.Provider, opts llm.TranscriptionOptions) *LLMTranscriber {
	return &LLMTranscriber{name: name, provider: provider, opts: opts}
}

func (t *LLMTranscriber) Transcribe(ctx context.Context, filename string, audio []byte, _ string) (Transcript, error) {
	logger.Debugf("Starting %s transcription of %s", t.name, filename)

	text, err := t.provider.TranscribeAudio(ctx, filename, bytes.NewReader(audio), t.opts)
	if err != nil {
		return Transcript{}, fmt.Errorf("error transcribing audio: %w", err)
	}

	return Transcript{Text: strings.TrimSpace(text), LanguageCode: t.opts.Language}, nil
}

func (t *LLMTranscriber) Name() string {
	return t.name + "-whisper"
}

// TranscribeFile reads an audio file from disk and transcribes it
func TranscribeFile(ctx context.Context, t Transcriber, path string) (Transcript, error) {
	logger.Debugf("Starting transcription of file: %s", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return Transcript{}, fmt.Errorf("error opening audio file: %w", err)
	}

	tr, err := t.Transcribe(ctx, filepath.Base(path), data, "")
	if err != nil {
		return Transcript{}, err
	}

	logger.Debug("Transcription completed successfully")
	return tr, nil
}
