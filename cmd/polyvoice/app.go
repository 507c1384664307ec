package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dooshek/polyvoice/internal/archive"
	"github.com/dooshek/polyvoice/internal/audio"
	"github.com/dooshek/polyvoice/internal/chunking"
	"github.com/dooshek/polyvoice/internal/generation"
	"github.com/dooshek/polyvoice/internal/logger"
	"github.com/dooshek/polyvoice/internal/pipeline"
	"github.com/dooshek/polyvoice/internal/state"
	"github.com/dooshek/polyvoice/internal/stats"
	"github.com/dooshek/polyvoice/internal/transcriber"
	"github.com/dooshek/polyvoice/internal/translator"
	"github.com/dooshek/polyvoice/internal/tts"
	"github.com/dooshek/polyvoice/internal/types"
	"github.com/dooshek/polyvoice/internal/voiceclone"
)

// app holds the components shared by every command
type app struct {
	state        *state.AppState
	httpClient   *http.Client
	stats        *stats.StatsManager
	normalizer   *audio.Normalizer
	orchestrator *generation.Orchestrator
	chunks       *chunking.Runner
}

func newApp(st *state.AppState) (*app, error) {
	cfg := st.Config
	httpClient := &http.Client{}
	warnMissingKeys(st)

	chain, err := tts.NewChainFromConfig(cfg, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create TTS chain: %w", err)
	}

	statsManager := stats.NewStatsManager(st.FileOps.GetStatsPath())
	normalizer := audio.NewNormalizer(audio.NewDecoder(cfg.Audio))
	cloner := voiceclone.NewClient(cfg.VoiceClone.URL, cfg.VoiceClone.Timeout, httpClient)

	orchestrator := generation.NewOrchestrator(cloner, chain, normalizer,
		generation.WithTTSTimeout(cfg.TTS.Timeout),
		generation.WithStats(statsManager),
	)

	return &app{
		state:        st,
		httpClient:   httpClient,
		stats:        statsManager,
		normalizer:   normalizer,
		orchestrator: orchestrator,
		chunks:       chunking.NewRunner(orchestrator, cfg.Chunking),
	}, nil
}

// pipeline builds the full voice translation flow, including the archive
func (a *app) pipeline(ctx context.Context) (*pipeline.Pipeline, error) {
	cfg := a.state.Config

	tr, err := transcriber.New(cfg, a.httpClient)
	if err != nil {
		return nil, err
	}
	tl, err := translator.New(cfg, a.httpClient)
	if err != nil {
		return nil, err
	}
	store, err := archive.New(ctx, cfg.Archive, a.state.FileOps)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}

	return pipeline.New(pipeline.Deps{
		Transcriber: tr,
		Translator:  tl,
		Generator:   a.orchestrator,
		Stats:       a.stats,
		Archive:     store,
	}), nil
}

// warnMissingKeys flags providers that can only work with a per-request key
func warnMissingKeys(st *state.AppState) {
	needed := []types.LLMProvider{types.ProviderSarvam, st.GetTranscriptionProvider(), st.GetTranslationProvider()}
	seen := map[types.LLMProvider]bool{}
	for _, p := range needed {
		if seen[p] {
			continue
		}
		seen[p] = true
		if st.APIKey(p) == "" {
			logger.Warnf("No %s API key configured; requests must send their own key", p)
		}
	}
}
