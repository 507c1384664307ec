// Package generation produces translated speech, trying voice cloning first
// when asked to and falling back to plain text-to-speech.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dooshek/polyvoice/internal/logger"
	"github.com/dooshek/polyvoice/internal/tts"
	"github.com/dooshek/polyvoice/internal/types"
	"github.com/dooshek/polyvoice/internal/voiceclone"
)

// Provider tags which strategy produced the audio
type Provider string

const (
	ProviderVoiceClone  Provider = "voice-clone"
	ProviderTTS         Provider = "tts"
	ProviderTTSFallback Provider = "tts-fallback"
)

const DefaultTTSTimeout = 30 * time.Second

type Request struct {
	GenText        string
	RefText        string
	RefAudio       []byte
	TargetLanguage string
	Mode           types.VoiceMode
	APIKey         string
}

// Result is the outcome of one generation. Exactly one of AudioBase64 and
// Error is set.
type Result struct {
	Success     bool          `json:"success"`
	AudioBase64 string        `json:"audio_base64,omitempty"`
	Provider    Provider      `json:"provider,omitempty"`
	Backend     string        `json:"backend,omitempty"`
	Error       string        `json:"error,omitempty"`
	Elapsed     time.Duration `json:"-"`
	ElapsedMs   int64         `json:"elapsed_ms"`
}

type Cloner interface {
	Clone(ctx context.Context, req voiceclone.CloneRequest) (string, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, req tts.SynthesisRequest) (tts.Audio, string, error)
}

type Normalizer interface {
	ToWAV(ctx context.Context, data []byte) ([]byte, error)
}

// StatsRecorder receives one entry per provider attempt
type StatsRecorder interface {
	Record(backend string, elapsed time.Duration, success bool)
}

type Orchestrator struct {
	cloner     Cloner
	tts        Synthesizer
	normalizer Normalizer
	ttsTimeout time.Duration
	stats      StatsRecorder
}

type Option func(*Orchestrator)

// WithTTSTimeout bounds the text-to-speech stage
func WithTTSTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.ttsTimeout = d }
}

func WithStats(s StatsRecorder) Option {
	return func(o *Orchestrator) { o.stats = s }
}

// NewOrchestrator wires the stages. cloner may be nil, in which case cloning
// requests go straight to the fallback.
func NewOrchestrator(cloner Cloner, synth Synthesizer, normalizer Normalizer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cloner:     cloner,
		tts:        synth,
		normalizer: normalizer,
		ttsTimeout: DefaultTTSTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// GenerateAudio never returns an error: every failure ends up in the Result.
// Cloning and fallback run strictly one after the other.
func (o *Orchestrator) GenerateAudio(ctx context.Context, req Request) (result Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Audio generation panicked: %v", fmt.Errorf("%v", r))
			result = failure(fmt.Sprintf("internal error: %v", r))
		}
		result.Elapsed = time.Since(start)
		result.ElapsedMs = result.Elapsed.Milliseconds()
	}()

	if strings.TrimSpace(req.GenText) == "" {
		return failure("text cannot be empty")
	}

	if req.Mode != types.ModeCloning {
		audio, backend, err := o.synthesize(ctx, req)
		if err != nil {
			return failure("tts failed: " + err.Error())
		}
		return success(audio, ProviderTTS, backend)
	}

	cloned, cloneErr := o.clone(ctx, req)
	if cloneErr == nil {
		return success(cloned, ProviderVoiceClone, voiceclone.ProviderName)
	}
	logFailure("Voice clone", cloneErr)

	audio, backend, ttsErr := o.synthesize(ctx, req)
	if ttsErr != nil {
		return failure(fmt.Sprintf("voice clone failed: %v; tts fallback failed: %v", cloneErr, ttsErr))
	}

	logger.Infof("Voice clone unavailable, used %s fallback", backend)
	return success(audio, ProviderTTSFallback, backend)
}

func (o *Orchestrator) clone(ctx context.Context, req Request) (string, error) {
	if o.cloner == nil {
		return "", errors.New("voice cloning is not configured")
	}

	wavData, err := o.normalizer.ToWAV(ctx, req.RefAudio)
	if err != nil {
		return "", err
	}

	start := time.Now()
	audio, err := o.cloner.Clone(ctx, voiceclone.CloneRequest{
		GenText:  req.GenText,
		RefText:  req.RefText,
		AudioWAV: wavData,
	})
	o.record(voiceclone.ProviderName, time.Since(start), err == nil)
	return audio, err
}

func (o *Orchestrator) synthesize(ctx context.Context, req Request) (string, string, error) {
	if o.ttsTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.ttsTimeout)
		defer cancel()
	}

	start := time.Now()
	audio, backend, err := o.tts.Synthesize(ctx, tts.SynthesisRequest{
		Text:               req.GenText,
		TargetLanguageCode: req.TargetLanguage,
		APIKey:             req.APIKey,
	})
	if err != nil {
		o.record("tts", time.Since(start), false)
		logFailure("TTS", err)
		return "", "", err
	}
	o.record(backend, time.Since(start), true)
	return audio.Base64, backend, nil
}

func (o *Orchestrator) record(backend string, elapsed time.Duration, ok bool) {
	if o.stats != nil {
		o.stats.Record(backend, elapsed, ok)
	}
}

func logFailure(stage string, err error) {
	switch types.FailureKind(err) {
	case "connectivity":
		logger.Warnf("%s connectivity failure: %v", stage, err)
	default:
		logger.Warnf("%s failed (%s): %v", stage, types.FailureKind(err), err)
	}
}

func success(audio string, provider Provider, backend string) Result {
	return Result{Success: true, AudioBase64: audio, Provider: provider, Backend: backend}
}

func failure(msg string) Result {
	return Result{Success: false, Error: msg}
}
