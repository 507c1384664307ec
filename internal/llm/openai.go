package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/dooshek/polyvoice/internal/logger"
	"github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements Provider interface using OpenAI
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider creates new OpenAI provider instance
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	logger.Debugf("Creating OpenAI provider")

	return &OpenAIProvider{
		client: openai.NewClient(apiKey),
	}
}

// NewOpenAIProviderWithBaseURL points the client at an OpenAI-compatible endpoint
func NewOpenAIProviderWithBaseURL(apiKey, baseURL string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
	}
}

// TranscribeAudio implements audio transcription using OpenAI's Whisper model
func (p *OpenAIProvider) TranscribeAudio(ctx context.Context, filename string, reader AudioReader, opts TranscriptionOptions) (string, error) {
	if opts.Model == "" {
		opts.Model = openai.Whisper1
	}
	logger.Debugf("Transcription model: %s", opts.Model)
	req := openai.AudioRequest{
		Reader:   reader,
		FilePath: filename,
		Format:   openai.AudioResponseFormatText,
		Model:    opts.Model,
		Language: whisperLanguage(opts.Language),
	}
	resp, err := p.client.CreateTranscription(ctx, req)
	if err != nil {
		return "", fmt.Errorf("error transcribing audio with OpenAI: %w", err)
	}

	return resp.Text, nil
}

// whisperLanguage turns a BCP-47 code like "hi-IN" into the ISO-639-1 code
// Whisper expects
func whisperLanguage(code string) string {
	if code == "" || code == "auto" {
		return ""
	}
	lang, _, _ := strings.Cut(code, "-")
	return strings.ToLower(lang)
}

// Completion sends a completion request to OpenAI API
func (p *OpenAIProvider) Completion(ctx context.Context, req CompletionRequest) (string, error) {
	logger.Debugf("Sending completion request with model: %s", req.Model)

	if req.MaxTokens == 0 {
		req.MaxTokens = 2000
	}

	if req.Temperature == 0 {
		req.Temperature = 0.5
	}

	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.JSONObject {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("error creating completion with OpenAI: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned from OpenAI")
	}

	return resp.Choices[0].Message.Content, nil
}
