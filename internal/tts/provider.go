package tts

import (
	"context"
)

// Provider defines the interface for text-to-speech providers
type Provider interface {
	// Synthesize converts text to speech and returns base64-encoded audio
	Synthesize(ctx context.Context, req SynthesisRequest) (Audio, error)

	// Name returns the backend identifier used in results and stats
	Name() string
}

// SynthesisRequest carries the text to speak and the target language.
// APIKey, when set, overrides the provider's configured credentials.
type SynthesisRequest struct {
	Text               string
	TargetLanguageCode string
	APIKey             string
}

// Audio is synthesized speech as a single base64 payload
type Audio struct {
	Base64 string
	Format AudioFormat
}

// AudioFormat represents supported audio formats
type AudioFormat string

const (
	FormatWAV     AudioFormat = "wav"
	FormatOpus    AudioFormat = "opus"
	FormatMP3     AudioFormat = "mp3"
	FormatAAC     AudioFormat = "aac"
	FormatFLAC    AudioFormat = "flac"
	FormatPCM     AudioFormat = "pcm"
	FormatUnknown AudioFormat = ""
)
