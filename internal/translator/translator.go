// Package translator translates transcripts into the target language.
package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/dooshek/polyvoice/internal/llm"
	"github.com/dooshek/polyvoice/internal/logger"
	"github.com/dooshek/polyvoice/internal/sarvam"
	"github.com/dooshek/polyvoice/internal/types"
)

type Translator interface {
	Translate(ctx context.Context, text, source, target, apiKey string) (string, error)
	Name() string
}

func New(cfg *types.Config, httpClient *http.Client) (Translator, error) {
	tc := cfg.Translation
	switch types.LLMProvider(tc.Provider) {
	case types.ProviderSarvam, "":
		client := sarvam.NewClient(cfg.Keys.SarvamKey, cfg.TTS.Sarvam.BaseURL, httpClient)
		return NewSarvamTranslator(client, tc.Model), nil
	default:
		provider, err := llm.NewProvider(types.LLMProvider(tc.Provider), cfg.Keys)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize LLM provider: %w", err)
		}
		return NewLLMTranslator(tc.Provider, provider, tc.Model, tc.Temperature), nil
	}
}

type SarvamTranslator struct {
	client *sarvam.Client
	model  string
}

func NewSarvamTranslator(client *sarvam.Client, model string) *SarvamTranslator {
	if model == "" {
		model = types.DefaultSarvamMTModel
	}
	return &SarvamTranslator{client: client, model: model}
}

func (t *SarvamTranslator) Translate(ctx context.Context, text, source, target, apiKey string) (string, error) {
	translated, err := t.client.Translate(ctx, sarvam.TranslateRequest{
		Input:              text,
		SourceLanguageCode: source,
		TargetLanguageCode: target,
		Model:              t.model,
	}, apiKey)
	if err != nil {
		return "", fmt.Errorf("error translating text: %w", err)
	}
	if strings.TrimSpace(translated) == "" {
		return "", &types.ProviderError{Provider: t.Name(), Err: fmt.Errorf("empty translation")}
	}
	return translated, nil
}

func (t *SarvamTranslator) Name() string {
	return "sarvam-translate"
}

// LLMTranslator asks a chat model for {"translated_text": "..."}
type LLMTranslator struct {
	name        string
	provider    llm.Provider
	model       string
	temperature float32
}

func NewLLMTranslator(name string, provider llm.Provider, model string, temperature float32) *LLMTranslator {
	return &LLMTranslator{name: name, provider: provider, model: model, temperature: temperature}
}

type llmTranslation struct {
	TranslatedText string `json:"translated_text"`
}

func (t *LLMTranslator) Translate(ctx context.Context, text, source, target, _ string) (string, error) {
	targetName := target
	if l, ok := types.LookupLanguage(target); ok {
		targetName = l.Name
	}
	if source == "" {
		source = "auto"
	}

	logger.Debugf("Translating %d chars to %s with %s/%s", len(text), target, t.name, t.model)

	content, err := t.provider.Completion(ctx, llm.CompletionRequest{
		Model: t.model,
		Messages: []llm.ChatCompletionMessage{
			{
				Role: "system",
				Content: fmt.Sprintf(`You translate speech transcripts. Translate the user's text into %s (%s). The source language is %s. Keep the meaning and tone, do not add explanations. Respond with JSON: {"translated_text": "<translation>"}`,
					targetName, target, source),
			},
			{Role: "user", Content: text},
		},
		Temperature: t.temperature,
		JSONObject:  true,
	})
	if err != nil {
		return "", fmt.Errorf("error translating text: %w", err)
	}

	var out llmTranslation
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return "", &types.ProviderError{Provider: t.name, Err: fmt.Errorf("error unmarshaling translation: %w", err)}
	}
	if strings.TrimSpace(out.TranslatedText) == "" {
		return "", &types.ProviderError{Provider: t.name, Err: fmt.Errorf("empty translation")}
	}
	return out.TranslatedText, nil
}

func (t *LLMTranslator) Name() string {
	return t.name + "-chat"
}
