package tts

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/dooshek/polyvoice/internal/logger"
	"github.com/dooshek/polyvoice/internal/types"
	"github.com/sashabaranov/go-openai"
)

const OpenAIBackend = "openai-tts"

// OpenAITTSProvider implements Provider for the OpenAI speech API
type OpenAITTSProvider struct {
	client *openai.Client
	config types.TTSOpenAIConfig
}

// NewOpenAITTSProvider creates a new OpenAI TTS provider
func NewOpenAITTSProvider(client *openai.Client, config types.TTSOpenAIConfig) *OpenAITTSProvider {
	if config.Model == "" {
		config.Model = string(openai.TTSModel1HD)
	}
	if config.Voice == "" {
		config.Voice = string(openai.VoiceNova)
	}
	if config.Speed == 0 {
		config.Speed = 1.0
	}
	if config.Format == "" {
		config.Format = string(openai.SpeechResponseFormatMp3)
	}

	return &OpenAITTSProvider{
		client: client,
		config: config,
	}
}

// Synthesize converts text to speech. OpenAI voices are multilingual, so the
// target language is carried by the text itself.
func (p *OpenAITTSProvider) Synthesize(ctx context.Context, req SynthesisRequest) (Audio, error) {
	if req.Text == "" {
		return Audio{}, fmt.Errorf("text cannot be empty")
	}

	logger.Debugf("Generating OpenAI TTS (%d chars) with voice: %s", len(req.Text), p.config.Voice)

	response, err := p.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(p.config.Model),
		Input:          req.Text,
		Voice:          openai.SpeechVoice(p.config.Voice),
		Speed:          p.config.Speed,
		ResponseFormat: openai.SpeechResponseFormat(p.config.Format),
	})
	if err != nil {
		return Audio{}, classifyOpenAIError(OpenAIBackend, err)
	}
	defer response.Close()

	audioData, err := io.ReadAll(response)
	if err != nil {
		return Audio{}, types.ClassifyTransportError(OpenAIBackend, fmt.Errorf("failed to read audio data: %w", err))
	}
	if len(audioData) == 0 {
		return Audio{}, &types.ProviderError{Provider: OpenAIBackend, Err: ErrEmptyAudio}
	}

	logger.Debugf("Generated %d bytes of %s audio", len(audioData), p.config.Format)

	return Audio{
		Base64: base64.StdEncoding.EncodeToString(audioData),
		Format: AudioFormat(p.config.Format),
	}, nil
}

func (p *OpenAITTSProvider) Name() string {
	return OpenAIBackend
}
