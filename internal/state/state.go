// Package state holds the per-process application state. It is built once in
// main and handed to the components that need it; nothing here is global.
package state

import (
	"github.com/dooshek/polyvoice/internal/fileops"
	"github.com/dooshek/polyvoice/internal/types"
)

type AppState struct {
	Config  *types.Config
	FileOps fileops.FileOps
}

func New(cfg *types.Config, fileOps fileops.FileOps) *AppState {
	return &AppState{
		Config:  cfg,
		FileOps: fileOps,
	}
}

func (s *AppState) GetTranscriptionProvider() types.LLMProvider {
	return types.LLMProvider(s.Config.Transcription.Provider)
}

func (s *AppState) GetTranslationProvider() types.LLMProvider {
	return types.LLMProvider(s.Config.Translation.Provider)
}

// APIKey returns the configured key for a provider, empty if none is set
func (s *AppState) APIKey(provider types.LLMProvider) string {
	switch provider {
	case types.ProviderSarvam:
		return s.Config.Keys.SarvamKey
	case types.ProviderOpenAI:
		return s.Config.Keys.OpenAIKey
	case types.ProviderGroq:
		return s.Config.Keys.GroqKey
	default:
		return ""
	}
}
