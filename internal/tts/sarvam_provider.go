package tts

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dooshek/polyvoice/internal/logger"
	"github.com/dooshek/polyvoice/internal/sarvam"
	"github.com/dooshek/polyvoice/internal/types"
)

const SarvamBackend = "sarvam-bulbul"

// SarvamProvider implements Provider for the Sarvam Bulbul TTS API
type SarvamProvider struct {
	client   *sarvam.Client
	resolver *ResponseResolver
	config   types.TTSSarvamConfig
}

func NewSarvamProvider(client *sarvam.Client, config types.TTSSarvamConfig, httpClient *http.Client) *SarvamProvider {
	if config.Speaker == "" {
		config.Speaker = types.DefaultSarvamSpeaker
	}
	if config.Model == "" {
		config.Model = types.DefaultSarvamTTSModel
	}
	if config.SampleRate == 0 {
		config.SampleRate = 22050
	}

	return &SarvamProvider{
		client:   client,
		resolver: NewResponseResolver(SarvamBackend, httpClient),
		config:   config,
	}
}

func (p *SarvamProvider) Synthesize(ctx context.Context, req SynthesisRequest) (Audio, error) {
	if req.Text == "" {
		return Audio{}, fmt.Errorf("text cannot be empty")
	}

	preprocessing := true
	if p.config.EnablePreprocessing != nil {
		preprocessing = *p.config.EnablePreprocessing
	}

	logger.Debugf("Generating Sarvam TTS (%d chars, %s, speaker %s)", len(req.Text), req.TargetLanguageCode, p.config.Speaker)

	fields, err := p.client.TextToSpeech(ctx, sarvam.TTSRequest{
		Text:                req.Text,
		TargetLanguageCode:  req.TargetLanguageCode,
		Speaker:             p.config.Speaker,
		Model:               p.config.Model,
		EnablePreprocessing: preprocessing,
		SampleRate:          p.config.SampleRate,
	}, req.APIKey)
	if err != nil {
		return Audio{}, fmt.Errorf("sarvam TTS request failed: %w", err)
	}

	payload, err := p.resolver.Resolve(ctx, fields)
	if err != nil {
		return Audio{}, fmt.Errorf("sarvam TTS response: %w", err)
	}

	// Bulbul returns base64 WAV at the requested sample rate
	return Audio{Base64: payload, Format: FormatWAV}, nil
}

func (p *SarvamProvider) Name() string {
	return SarvamBackend
}
