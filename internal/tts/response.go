package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dooshek/polyvoice/internal/logger"
	"github.com/dooshek/polyvoice/internal/types"
)

var (
	// ErrNoAudioField means no known response schema matched
	ErrNoAudioField = errors.New("no recognized audio field in response")

	// ErrEmptyAudio means a schema matched but carried no audio
	ErrEmptyAudio = errors.New("audio data is empty")
)

// responseSchema is one known shape of a TTS JSON response. parse reports
// matched=false when the shape does not apply so the next schema is tried.
type responseSchema struct {
	name  string
	parse func(ctx context.Context, r *ResponseResolver, fields map[string]json.RawMessage) (payload string, matched bool, err error)
}

// responseSchemas is checked in order; the first match wins
var responseSchemas = []responseSchema{
	{name: "audios", parse: parseAudiosArray},
	{name: "audio", parse: stringField("audio")},
	{name: "audio_base64", parse: stringField("audio_base64")},
	{name: "data", parse: stringField("data")},
	{name: "audio_url", parse: parseAudioURL},
}

// ResponseResolver turns a polymorphic TTS response into one base64 payload.
// It needs an HTTP client for the audio_url schema.
type ResponseResolver struct {
	provider   string
	httpClient *http.Client
}

func NewResponseResolver(provider string, httpClient *http.Client) *ResponseResolver {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &ResponseResolver{provider: provider, httpClient: httpClient}
}

// Resolve returns the audio payload of the first matching schema
func (r *ResponseResolver) Resolve(ctx context.Context, fields map[string]json.RawMessage) (string, error) {
	for _, schema := range responseSchemas {
		payload, matched, err := schema.parse(ctx, r, fields)
		if err != nil {
			return "", err
		}
		if !matched {
			continue
		}

		logger.Debugf("Found audio data in %q field", schema.name)
		if payload == "" {
			return "", &types.ProviderError{Provider: r.provider, Err: ErrEmptyAudio}
		}
		return payload, nil
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	logger.Warnf("No recognized audio field in %s response, keys: %v", r.provider, keys)
	return "", &types.ProviderError{Provider: r.provider, Err: ErrNoAudioField}
}

func parseAudiosArray(_ context.Context, _ *ResponseResolver, fields map[string]json.RawMessage) (string, bool, error) {
	raw, ok := fields["audios"]
	if !ok {
		return "", false, nil
	}
	var audios []string
	if err := json.Unmarshal(raw, &audios); err != nil || len(audios) == 0 {
		return "", false, nil
	}
	return audios[0], true, nil
}

func stringField(name string) func(context.Context, *ResponseResolver, map[string]json.RawMessage) (string, bool, error) {
	return func(_ context.Context, _ *ResponseResolver, fields map[string]json.RawMessage) (string, bool, error) {
		s, ok := nonEmptyString(fields, name)
		return s, ok, nil
	}
}

func parseAudioURL(ctx context.Context, r *ResponseResolver, fields map[string]json.RawMessage) (string, bool, error) {
	audioURL, ok := nonEmptyString(fields, "audio_url")
	if !ok {
		return "", false, nil
	}

	logger.Debugf("Downloading audio from %s", audioURL)
	data, err := r.fetch(ctx, audioURL)
	if err != nil {
		return "", true, err
	}
	return base64.StdEncoding.EncodeToString(data), true, nil
}

func (r *ResponseResolver) fetch(ctx context.Context, audioURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return nil, &types.ProviderError{Provider: r.provider, Err: fmt.Errorf("invalid audio_url: %w", err)}
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, types.ClassifyTransportError(r.provider, fmt.Errorf("failed to download audio: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &types.ProviderError{Provider: r.provider, Status: resp.StatusCode, Err: errors.New("failed to download audio")}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.ClassifyTransportError(r.provider, fmt.Errorf("failed to read audio: %w", err))
	}
	return data, nil
}

func nonEmptyString(fields map[string]json.RawMessage, name string) (string, bool) {
	raw, ok := fields[name]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return "", false
	}
	return s, true
}
