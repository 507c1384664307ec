// Package voiceclone calls the F5 voice-cloning service.
package voiceclone

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dooshek/polyvoice/internal/logger"
	"github.com/dooshek/polyvoice/internal/types"
)

const (
	ProviderName = "f5-voice-clone"

	DefaultTimeout = 10 * time.Second

	maxErrorBody = 2048
)

// ErrMissingAudio means the service answered 2xx without audio_base64
var ErrMissingAudio = errors.New("response has no audio_base64")

// CloneRequest holds the text to speak and the reference voice. AudioWAV is
// a canonical WAV document; it is sent as a data URI.
type CloneRequest struct {
	GenText  string
	RefText  string
	AudioWAV []byte
}

type cloneBody struct {
	GenText     string `json:"gen_text"`
	RefText     string `json:"ref_text"`
	AudioBase64 string `json:"audio_base64"`
}

type cloneResponse struct {
	AudioBase64 string `json:"audio_base64"`
}

type Client struct {
	url        string
	timeout    time.Duration
	httpClient *http.Client
}

func NewClient(url string, timeout time.Duration, httpClient *http.Client) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{url: url, timeout: timeout, httpClient: httpClient}
}

// Clone makes exactly one request, bounded by the client timeout, and
// returns the synthesized audio as base64
func (c *Client) Clone(ctx context.Context, req CloneRequest) (string, error) {
	body, err := json.Marshal(cloneBody{
		GenText:     req.GenText,
		RefText:     req.RefText,
		AudioBase64: "data:audio/wav;base64," + base64.StdEncoding.EncodeToString(req.AudioWAV),
	})
	if err != nil {
		return "", fmt.Errorf("error marshaling request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	logger.Debugf("Calling voice clone service (%d chars, %d bytes reference audio)", len(req.GenText), len(req.AudioWAV))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", types.ClassifyTransportError(ProviderName, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", types.ClassifyTransportError(ProviderName, fmt.Errorf("error reading response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(respBody) > maxErrorBody {
			respBody = respBody[:maxErrorBody]
		}
		return "", &types.ProviderError{Provider: ProviderName, Status: resp.StatusCode, Body: string(respBody)}
	}

	var cr cloneResponse
	if err := json.Unmarshal(respBody, &cr); err != nil {
		return "", &types.ProviderError{Provider: ProviderName, Err: fmt.Errorf("error unmarshaling response: %w", err)}
	}
	if cr.AudioBase64 == "" {
		return "", &types.ProviderError{Provider: ProviderName, Err: ErrMissingAudio}
	}

	return cr.AudioBase64, nil
}
