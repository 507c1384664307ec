// Package sarvam talks to the Sarvam AI REST API: speech-to-text, text
// translation and text-to-speech.
package sarvam

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/dooshek/polyvoice/internal/logger"
	"github.com/dooshek/polyvoice/internal/types"
)

const (
	providerName = "sarvam"
	authHeader   = "api-subscription-key"

	// cap on error bodies copied into errors and logs
	maxErrorBody = 2048
)

// Client is a thin Sarvam API client. The key given per call overrides the
// configured one so browser callers can bring their own credentials.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(apiKey, baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = types.DefaultSarvamBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger.Debugf("Creating Sarvam client for %s", baseURL)
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// TTSRequest is the body of POST /text-to-speech
type TTSRequest struct {
	Text                string `json:"text"`
	TargetLanguageCode  string `json:"target_language_code"`
	Speaker             string `json:"speaker"`
	Model               string `json:"model"`
	EnablePreprocessing bool   `json:"enable_preprocessing"`
	SampleRate          int    `json:"sample_rate"`
}

// TextToSpeech posts a synthesis request and returns the decoded JSON object.
// The audio may sit under several field names; interpreting them is left to
// the caller.
func (c *Client) TextToSpeech(ctx context.Context, req TTSRequest, apiKey string) (map[string]json.RawMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	respBody, err := c.do(ctx, "/text-to-speech", "application/json", bytes.NewReader(body), apiKey)
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(respBody, &fields); err != nil {
		return nil, &types.ProviderError{Provider: providerName, Err: fmt.Errorf("error unmarshaling response: %w", err)}
	}
	return fields, nil
}

// Transcription is the result of POST /speech-to-text
type Transcription struct {
	Transcript   string `json:"transcript"`
	LanguageCode string `json:"language_code"`
}

// SpeechToText uploads audio as multipart form data
func (c *Client) SpeechToText(ctx context.Context, filename string, audio io.Reader, model, languageCode, apiKey string) (*Transcription, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("error creating form file: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return nil, fmt.Errorf("error copying file data: %w", err)
	}
	if err := writer.WriteField("model", model); err != nil {
		return nil, fmt.Errorf("error writing model field: %w", err)
	}
	if languageCode != "" {
		if err := writer.WriteField("language_code", languageCode); err != nil {
			return nil, fmt.Errorf("error writing language field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("error closing multipart writer: %w", err)
	}

	respBody, err := c.do(ctx, "/speech-to-text", writer.FormDataContentType(), body, apiKey)
	if err != nil {
		return nil, err
	}

	var t Transcription
	if err := json.Unmarshal(respBody, &t); err != nil {
		return nil, &types.ProviderError{Provider: providerName, Err: fmt.Errorf("error unmarshaling transcription: %w", err)}
	}
	return &t, nil
}

// TranslateRequest is the body of POST /translate
type TranslateRequest struct {
	Input              string `json:"input"`
	SourceLanguageCode string `json:"source_language_code"`
	TargetLanguageCode string `json:"target_language_code"`
	Model              string `json:"model"`
}

type translateResponse struct {
	TranslatedText     string `json:"translated_text"`
	SourceLanguageCode string `json:"source_language_code"`
}

func (c *Client) Translate(ctx context.Context, req TranslateRequest, apiKey string) (string, error) {
	if req.SourceLanguageCode == "" {
		req.SourceLanguageCode = "auto"
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("error marshaling request: %w", err)
	}

	respBody, err := c.do(ctx, "/translate", "application/json", bytes.NewReader(body), apiKey)
	if err != nil {
		return "", err
	}

	var tr translateResponse
	if err := json.Unmarshal(respBody, &tr); err != nil {
		return "", &types.ProviderError{Provider: providerName, Err: fmt.Errorf("error unmarshaling translation: %w", err)}
	}
	return tr.TranslatedText, nil
}

func (c *Client) do(ctx context.Context, path, contentType string, body io.Reader, apiKey string) ([]byte, error) {
	if apiKey == "" {
		apiKey = c.apiKey
	}
	if apiKey == "" {
		return nil, &types.ProviderError{Provider: providerName, Err: fmt.Errorf("no API key configured")}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set(authHeader, apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, types.ClassifyTransportError(providerName, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.ClassifyTransportError(providerName, fmt.Errorf("error reading response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Debugf("Sarvam %s returned %d", path, resp.StatusCode)
		return nil, &types.ProviderError{
			Provider: providerName,
			Status:   resp.StatusCode,
			Body:     truncate(string(respBody), maxErrorBody),
		}
	}

	return respBody, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
