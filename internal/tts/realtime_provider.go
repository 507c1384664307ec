package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	openairt "github.com/WqyJh/go-openai-realtime"
	"github.com/dooshek/polyvoice/internal/logger"
	"github.com/dooshek/polyvoice/internal/types"
	"github.com/dooshek/polyvoice/pkg/wav"
	"github.com/sashabaranov/go-openai"
)

const (
	RealtimeBackend = "openai-realtime"

	// Realtime API PCM16 output is fixed at 24 kHz mono
	realtimeSampleRate = 24000
	realtimeChannels   = 1

	realtimeReadTimeout = 5 * time.Second
)

// RealtimeTTSProvider implements Provider using the OpenAI Realtime API. It
// asks the model to read the text verbatim and collects the streamed PCM16
// deltas into a WAV document.
type RealtimeTTSProvider struct {
	apiKey string
	config types.TTSRealtimeConfig
}

// NewRealtimeTTSProvider creates a new Realtime TTS provider
func NewRealtimeTTSProvider(apiKey string, config types.TTSRealtimeConfig) *RealtimeTTSProvider {
	if config.Model == "" {
		config.Model = "gpt-4o-realtime-preview"
	}
	if config.Voice == "" {
		config.Voice = "alloy"
	}

	return &RealtimeTTSProvider{
		apiKey: apiKey,
		config: config,
	}
}

func (p *RealtimeTTSProvider) Synthesize(ctx context.Context, req SynthesisRequest) (Audio, error) {
	if req.Text == "" {
		return Audio{}, fmt.Errorf("text cannot be empty")
	}

	logger.Debugf("Generating Realtime TTS (%d chars) with voice: %s", len(req.Text), p.config.Voice)

	client := openairt.NewClient(p.apiKey)
	conn, err := client.Connect(ctx, openairt.WithModel(p.config.Model))
	if err != nil {
		return Audio{}, types.ClassifyTransportError(RealtimeBackend, fmt.Errorf("realtime API connection failed: %w", err))
	}
	defer conn.Close()

	temperature := float32(0.6)
	err = conn.SendMessage(ctx, &openairt.SessionUpdateEvent{
		Session: openairt.ClientSession{
			Modalities:        []openairt.Modality{openairt.ModalityText, openairt.ModalityAudio},
			Temperature:       &temperature,
			Voice:             openairt.Voice(p.config.Voice),
			OutputAudioFormat: openairt.AudioFormatPcm16,
			Instructions:      readVerbatimInstructions(req.TargetLanguageCode),
		},
	})
	if err != nil {
		return Audio{}, types.ClassifyTransportError(RealtimeBackend, fmt.Errorf("session update failed: %w", err))
	}

	err = conn.SendMessage(ctx, &openairt.ConversationItemCreateEvent{
		Item: openairt.MessageItem{
			Type: openairt.MessageItemTypeMessage,
			Role: openairt.MessageRoleUser,
			Content: []openairt.MessageContentPart{
				{
					Type: openairt.MessageContentTypeInputText,
					Text: req.Text,
				},
			},
		},
	})
	if err != nil {
		return Audio{}, types.ClassifyTransportError(RealtimeBackend, fmt.Errorf("conversation item creation failed: %w", err))
	}

	// The API requires text alongside audio
	err = conn.SendMessage(ctx, &openairt.ResponseCreateEvent{
		Response: openairt.ResponseCreateParams{
			Modalities:        []openairt.Modality{openairt.ModalityAudio, openairt.ModalityText},
			Voice:             openairt.Voice(p.config.Voice),
			OutputAudioFormat: openairt.AudioFormatPcm16,
		},
	})
	if err != nil {
		return Audio{}, types.ClassifyTransportError(RealtimeBackend, fmt.Errorf("response creation failed: %w", err))
	}

	pcm, err := p.collectAudio(ctx, conn)
	if err != nil {
		return Audio{}, err
	}

	wavData, err := wav.ConvertPCMToWAV(pcm, realtimeChannels, realtimeSampleRate)
	if err != nil {
		return Audio{}, err
	}

	return Audio{Base64: base64.StdEncoding.EncodeToString(wavData), Format: FormatWAV}, nil
}

// collectAudio reads server events until response.done and returns the
// concatenated PCM16 deltas
func (p *RealtimeTTSProvider) collectAudio(ctx context.Context, conn *openairt.Conn) ([]byte, error) {
	var pcm bytes.Buffer

	for {
		msgCtx, cancel := context.WithTimeout(ctx, realtimeReadTimeout)
		event, err := conn.ReadMessage(msgCtx)
		cancel()
		if err != nil {
			return nil, types.ClassifyTransportError(RealtimeBackend, fmt.Errorf("message read failed: %w", err))
		}

		switch event.ServerEventType() {
		case openairt.ServerEventTypeResponseAudioDelta:
			deltaEvent := event.(openairt.ResponseAudioDeltaEvent)
			chunk, err := base64.StdEncoding.DecodeString(deltaEvent.Delta)
			if err != nil {
				logger.Error("Failed to decode audio delta", err)
				continue
			}
			pcm.Write(chunk)

		case openairt.ServerEventTypeResponseDone:
			if pcm.Len() == 0 {
				return nil, &types.ProviderError{Provider: RealtimeBackend, Err: ErrEmptyAudio}
			}
			logger.Debugf("Realtime TTS produced %d bytes of PCM", pcm.Len())
			return pcm.Bytes(), nil

		case openairt.ServerEventTypeError:
			errorEvent := event.(openairt.ErrorEvent)
			return nil, &types.ProviderError{
				Provider: RealtimeBackend,
				Err:      fmt.Errorf("%s: %s", errorEvent.Error.Type, errorEvent.Error.Message),
			}
		}
	}
}

func (p *RealtimeTTSProvider) Name() string {
	return RealtimeBackend
}

func readVerbatimInstructions(languageCode string) string {
	language := languageCode
	if l, ok := types.LookupLanguage(languageCode); ok {
		language = l.Name
	}
	return fmt.Sprintf(`You are a text-to-speech engine. Read the user's text aloud exactly as written, in %s, with a natural native accent. Do not add, answer, translate or comment on anything.`, language)
}

// classifyOpenAIError maps go-openai errors onto the provider/connectivity split
func classifyOpenAIError(provider string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &types.ProviderError{Provider: provider, Status: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &types.ProviderError{Provider: provider, Status: reqErr.HTTPStatusCode, Err: reqErr.Err}
	}
	return types.ClassifyTransportError(provider, err)
}
