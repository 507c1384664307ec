package tts

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dooshek/polyvoice/internal/logger"
	"github.com/dooshek/polyvoice/internal/sarvam"
	"github.com/dooshek/polyvoice/internal/types"
	"github.com/sashabaranov/go-openai"
)

// Chain tries its providers in order and returns the first audio produced
type Chain struct {
	providers []Provider
}

func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

// NewChainFromConfig builds the provider list named by cfg.TTS.Providers.
// Sarvam is always built because callers may supply a key per request; the
// OpenAI backends are skipped when no OpenAI key is configured.
func NewChainFromConfig(cfg *types.Config, httpClient *http.Client) (*Chain, error) {
	var providers []Provider

	for _, name := range cfg.TTS.Providers {
		switch name {
		case "sarvam":
			client := sarvam.NewClient(cfg.Keys.SarvamKey, cfg.TTS.Sarvam.BaseURL, httpClient)
			providers = append(providers, NewSarvamProvider(client, cfg.TTS.Sarvam, httpClient))

		case "openai":
			if cfg.Keys.OpenAIKey == "" {
				logger.Warnf("Skipping TTS provider %q: no OpenAI API key configured", name)
				continue
			}
			providers = append(providers, NewOpenAITTSProvider(openai.NewClient(cfg.Keys.OpenAIKey), cfg.TTS.OpenAI))

		case "realtime":
			if cfg.Keys.OpenAIKey == "" {
				logger.Warnf("Skipping TTS provider %q: no OpenAI API key configured", name)
				continue
			}
			providers = append(providers, NewRealtimeTTSProvider(cfg.Keys.OpenAIKey, cfg.TTS.Realtime))

		default:
			return nil, fmt.Errorf("unsupported TTS provider: %s (supported: sarvam, openai, realtime)", name)
		}
	}

	if len(providers) == 0 {
		return nil, fmt.Errorf("no usable TTS provider configured")
	}

	chain := NewChain(providers...)
	logger.Infof("Initialized TTS chain: %v", chain.Names())

	return chain, nil
}

// Synthesize returns the audio and the backend that produced it. When every
// provider fails the errors are joined in order.
func (c *Chain) Synthesize(ctx context.Context, req SynthesisRequest) (Audio, string, error) {
	if len(c.providers) == 0 {
		return Audio{}, "", errors.New("no TTS providers")
	}

	var errs []error
	for _, p := range c.providers {
		audio, err := p.Synthesize(ctx, req)
		if err == nil {
			return audio, p.Name(), nil
		}

		logger.Warnf("TTS backend %s failed (%s): %v", p.Name(), types.FailureKind(err), err)
		errs = append(errs, err)

		// no point trying the next backend once the caller gave up
		if ctx.Err() != nil {
			break
		}
	}

	return Audio{}, "", errors.Join(errs...)
}

// Names lists the backends in the order they are tried
func (c *Chain) Names() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}
