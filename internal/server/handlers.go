package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dooshek/polyvoice/internal/chunking"
	"github.com/dooshek/polyvoice/internal/generation"
	"github.com/dooshek/polyvoice/internal/logger"
	"github.com/dooshek/polyvoice/internal/pipeline"
	"github.com/dooshek/polyvoice/internal/types"
)

// apiKeyHeader lets browser callers bring their own Sarvam key
const apiKeyHeader = "api-subscription-key"

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type generateRequest struct {
	GenText            string `json:"gen_text"`
	RefText            string `json:"ref_text"`
	AudioBase64        string `json:"audio_base64"`
	TargetLanguageCode string `json:"target_language_code"`
	Mode               string `json:"mode"`
}

type ttsRequest struct {
	Text               string `json:"text"`
	TargetLanguageCode string `json:"target_language_code"`
	Mode               string `json:"mode"`
	RefText            string `json:"ref_text"`
	RefAudioBase64     string `json:"ref_audio_base64"`
}

type ttsResponse struct {
	Chunks []chunking.ChunkResult `json:"chunks"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, types.Languages)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Stats == nil {
		writeJSON(w, http.StatusOK, map[string]any{"backends": map[string]any{}})
		return
	}
	data, err := s.deps.Stats.JSON()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "failed to read stats", Details: err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var body generateRequest
	if !s.decodeJSON(w, r, &body) {
		return
	}

	req, err := buildRequest(body.GenText, body.RefText, body.AudioBase64, body.TargetLanguageCode, body.Mode, r.Header.Get(apiKeyHeader))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	res := s.deps.Generator.GenerateAudio(r.Context(), req)
	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, res)
}

func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	var body ttsRequest
	if !s.decodeJSON(w, r, &body) {
		return
	}

	req, err := buildRequest(body.Text, body.RefText, body.RefAudioBase64, body.TargetLanguageCode, body.Mode, r.Header.Get(apiKeyHeader))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	chunks, err := s.deps.Chunks.Run(r.Context(), req)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "generation interrupted", Details: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ttsResponse{Chunks: chunks})
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid multipart form", Details: err.Error()})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "missing audio file", Details: err.Error()})
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "failed to read audio file", Details: err.Error()})
		return
	}

	res, err := s.deps.Pipeline.Process(r.Context(), pipeline.Input{
		Audio:          audio,
		Filename:       header.Filename,
		TargetLanguage: r.FormValue("target_language_code"),
		Mode:           types.ParseVoiceMode(r.FormValue("mode")),
		APIKey:         r.Header.Get(apiKeyHeader),
	})
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, pipeline.ErrUnsupportedLanguage) || errors.Is(err, pipeline.ErrNoAudio) || errors.Is(err, pipeline.ErrNoSpeech) {
			status = http.StatusBadRequest
		}
		logger.Warnf("Voice translation failed: %v", err)
		writeJSON(w, status, errorBody{Error: "voice translation failed", Details: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json", Details: err.Error()})
		return false
	}
	return true
}

// buildRequest validates the common generation fields. Reference audio is
// only required for cloning.
func buildRequest(text, refText, audioB64, language, mode, apiKey string) (generation.Request, error) {
	if strings.TrimSpace(text) == "" {
		return generation.Request{}, errors.New("text is required")
	}
	if _, ok := types.LookupLanguage(language); !ok {
		return generation.Request{}, fmt.Errorf("unsupported target language %q", language)
	}

	req := generation.Request{
		GenText:        text,
		RefText:        refText,
		TargetLanguage: language,
		Mode:           types.ParseVoiceMode(mode),
		APIKey:         apiKey,
	}

	if audioB64 != "" {
		audio, err := types.DecodeAudioPayload(audioB64)
		if err != nil {
			return generation.Request{}, fmt.Errorf("invalid reference audio: %w", err)
		}
		req.RefAudio = audio
	}
	if req.Mode == types.ModeCloning && len(req.RefAudio) == 0 {
		return generation.Request{}, errors.New("reference audio is required for voice cloning")
	}
	return req, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", err)
	}
}
