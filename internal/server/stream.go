package server

import (
	"context"
	"net/http"
	"slices"

	"github.com/dooshek/polyvoice/internal/logger"
	"github.com/gorilla/websocket"
)

type streamDone struct {
	Done bool `json:"done"`
}

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || slices.Contains(s.cfg.CORSOrigins, "*") {
				return true
			}
			return slices.Contains(s.cfg.CORSOrigins, origin)
		},
	}
}

// handleTTSStream reads one request and sends a message per chunk as soon as
// it is generated, followed by {"done": true}
func (s *Server) handleTTSStream(w http.ResponseWriter, r *http.Request) {
	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(s.cfg.MaxUploadBytes)

	var body ttsRequest
	if err := conn.ReadJSON(&body); err != nil {
		_ = conn.WriteJSON(errorBody{Error: "invalid json", Details: err.Error()})
		return
	}

	apiKey := r.Header.Get(apiKeyHeader)
	req, err := buildRequest(body.Text, body.RefText, body.RefAudioBase64, body.TargetLanguageCode, body.Mode, apiKey)
	if err != nil {
		_ = conn.WriteJSON(errorBody{Error: err.Error()})
		return
	}

	// a hijacked connection does not cancel r.Context, so watch the socket
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for chunk := range s.deps.Chunks.Seq(ctx, req) {
		if err := conn.WriteJSON(chunk); err != nil {
			logger.Debugf("Stream client went away after chunk %d: %v", chunk.Index, err)
			return
		}
	}

	if err := conn.WriteJSON(streamDone{Done: true}); err != nil {
		logger.Debugf("Failed to send stream end: %v", err)
		return
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
