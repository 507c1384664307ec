package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dooshek/polyvoice/internal/logger"
)

// Proxy relays POST bodies to the voice-clone upstream unchanged
type Proxy struct {
	upstream   string
	timeout    time.Duration
	httpClient *http.Client
}

func NewProxy(upstream string, timeout time.Duration, httpClient *http.Client) *Proxy {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Proxy{upstream: upstream, timeout: timeout, httpClient: httpClient}
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Proxy request failed", Details: err.Error()})
		return
	}

	ctx := r.Context()
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.upstream, bytes.NewReader(body))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Proxy request failed", Details: err.Error()})
		return
	}
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	req.Header.Set("Content-Type", contentType)

	logger.Debugf("Proxying %d bytes to %s", len(body), p.upstream)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		logger.Error("Proxy request failed", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Proxy request failed", Details: err.Error()})
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Proxy request failed", Details: err.Error()})
		return
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Warnf("Upstream voice clone returned %d", resp.StatusCode)
		writeJSON(w, resp.StatusCode, errorBody{
			Error:   fmt.Sprintf("F5 API failed: %d", resp.StatusCode),
			Details: string(respBody),
		})
		return
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(respBody)
}
