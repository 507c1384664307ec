package types

import (
	"time"

	"github.com/sashabaranov/go-openai"
)

type LLMProvider string

const (
	ProviderSarvam LLMProvider = "sarvam"
	ProviderOpenAI LLMProvider = "openai"
	ProviderGroq   LLMProvider = "groq"
)

// VoiceMode selects between plain text-to-speech and voice cloning
type VoiceMode string

const (
	ModeStandard VoiceMode = "standard"
	ModeCloning  VoiceMode = "cloning"
)

// ParseVoiceMode maps free-form input to a VoiceMode, defaulting to standard
func ParseVoiceMode(s string) VoiceMode {
	if VoiceMode(s) == ModeCloning {
		return ModeCloning
	}
	return ModeStandard
}

type Keys struct {
	SarvamKey string `yaml:"sarvam_api_key"`
	OpenAIKey string `yaml:"openai_api_key"`
	GroqKey   string `yaml:"groq_api_key"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	CORSOrigins    []string `yaml:"cors_origins"`
	RateLimit      int      `yaml:"rate_limit_per_minute"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes"`
}

// VoiceCloneConfig points at the F5 voice-cloning service (or the local proxy)
type VoiceCloneConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// ProxyConfig holds the upstream address the /f5-proxy route forwards to
type ProxyConfig struct {
	Upstream string        `yaml:"upstream"`
	Timeout  time.Duration `yaml:"timeout"`
}

// TTSConfig holds configuration for Text-to-Speech
type TTSConfig struct {
	Providers []string          `yaml:"providers"` // tried in order: "sarvam", "openai", "realtime"
	Timeout   time.Duration     `yaml:"timeout"`   // bounds the whole fallback stage
	Sarvam    TTSSarvamConfig   `yaml:"sarvam"`
	OpenAI    TTSOpenAIConfig   `yaml:"openai"`
	Realtime  TTSRealtimeConfig `yaml:"realtime"`
}

type TTSSarvamConfig struct {
	BaseURL             string `yaml:"base_url"`
	Speaker             string `yaml:"speaker"`
	Model               string `yaml:"model"`
	EnablePreprocessing *bool  `yaml:"enable_preprocessing"`
	SampleRate          int    `yaml:"sample_rate"`
}

// TTSOpenAIConfig holds OpenAI TTS specific configuration
type TTSOpenAIConfig struct {
	Model  string  `yaml:"model"`  // "tts-1" or "tts-1-hd"
	Voice  string  `yaml:"voice"`
	Speed  float64 `yaml:"speed"`  // 0.25-4.0, default 1.0
	Format string  `yaml:"format"` // "mp3", "opus", "aac", "flac", "wav"
}

// TTSRealtimeConfig holds OpenAI Realtime API TTS specific configuration
type TTSRealtimeConfig struct {
	Model string `yaml:"model"`
	Voice string `yaml:"voice"`
}

type TranscriptionConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
}

type TranslationConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
}

type AudioConfig struct {
	DecodeSampleRate int `yaml:"decode_sample_rate"`
	DecodeChannels   int `yaml:"decode_channels"`
}

type ChunkingConfig struct {
	MaxWords    int `yaml:"max_words"`
	Concurrency int `yaml:"concurrency"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Secure    bool   `yaml:"secure"`
}

type ArchiveConfig struct {
	Backend string      `yaml:"backend"` // "none", "local", "minio"
	Minio   MinioConfig `yaml:"minio"`
}

type Config struct {
	Keys          Keys                `yaml:"keys"`
	Server        ServerConfig        `yaml:"server"`
	VoiceClone    VoiceCloneConfig    `yaml:"voice_clone"`
	Proxy         ProxyConfig         `yaml:"proxy"`
	TTS           TTSConfig           `yaml:"tts"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Translation   TranslationConfig   `yaml:"translation"`
	Audio         AudioConfig         `yaml:"audio"`
	Chunking      ChunkingConfig      `yaml:"chunking"`
	Archive       ArchiveConfig       `yaml:"archive"`
}

const (
	DefaultSarvamBaseURL  = "https://api.sarvam.ai"
	DefaultProxyUpstream  = "http://34.100.221.107:8967/f5"
	DefaultSarvamSpeaker  = "anushka"
	DefaultSarvamTTSModel = "bulbul:v2"
	DefaultSarvamSTTModel = "saarika:v2"
	DefaultSarvamMTModel  = "sarvam-translate:v1"
)

// Defaults returns a copy of the config with every unset field filled in
func (c Config) Defaults() Config {
	cfg := c

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.Server.RateLimit == 0 {
		cfg.Server.RateLimit = 60
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 25 << 20
	}

	if cfg.VoiceClone.URL == "" {
		cfg.VoiceClone.URL = DefaultProxyUpstream
	}
	if cfg.VoiceClone.Timeout == 0 {
		cfg.VoiceClone.Timeout = 10 * time.Second
	}

	if cfg.Proxy.Upstream == "" {
		cfg.Proxy.Upstream = DefaultProxyUpstream
	}
	if cfg.Proxy.Timeout == 0 {
		cfg.Proxy.Timeout = 60 * time.Second
	}

	// TTS defaults
	if len(cfg.TTS.Providers) == 0 {
		cfg.TTS.Providers = []string{"sarvam"}
	}
	if cfg.TTS.Timeout == 0 {
		cfg.TTS.Timeout = 30 * time.Second
	}
	if cfg.TTS.Sarvam.BaseURL == "" {
		cfg.TTS.Sarvam.BaseURL = DefaultSarvamBaseURL
	}
	if cfg.TTS.Sarvam.Speaker == "" {
		cfg.TTS.Sarvam.Speaker = DefaultSarvamSpeaker
	}
	if cfg.TTS.Sarvam.Model == "" {
		cfg.TTS.Sarvam.Model = DefaultSarvamTTSModel
	}
	if cfg.TTS.Sarvam.EnablePreprocessing == nil {
		enabled := true
		cfg.TTS.Sarvam.EnablePreprocessing = &enabled
	}
	if cfg.TTS.Sarvam.SampleRate == 0 {
		cfg.TTS.Sarvam.SampleRate = 22050
	}
	if cfg.TTS.OpenAI.Model == "" {
		cfg.TTS.OpenAI.Model = string(openai.TTSModel1HD)
	}
	if cfg.TTS.OpenAI.Voice == "" {
		cfg.TTS.OpenAI.Voice = string(openai.VoiceNova)
	}
	if cfg.TTS.OpenAI.Speed == 0 {
		cfg.TTS.OpenAI.Speed = 1.0
	}
	if cfg.TTS.OpenAI.Format == "" {
		cfg.TTS.OpenAI.Format = string(openai.SpeechResponseFormatMp3)
	}
	if cfg.TTS.Realtime.Model == "" {
		cfg.TTS.Realtime.Model = "gpt-4o-realtime-preview"
	}
	if cfg.TTS.Realtime.Voice == "" {
		cfg.TTS.Realtime.Voice = "alloy"
	}

	if cfg.Transcription.Provider == "" {
		cfg.Transcription.Provider = string(ProviderSarvam)
	}
	if cfg.Transcription.Model == "" {
		switch LLMProvider(cfg.Transcription.Provider) {
		case ProviderOpenAI:
			cfg.Transcription.Model = OpenAIModelWhisper1
		case ProviderGroq:
			cfg.Transcription.Model = GroqModelWhisperLargeV3Turbo
		default:
			cfg.Transcription.Model = DefaultSarvamSTTModel
		}
	}

	if cfg.Translation.Provider == "" {
		cfg.Translation.Provider = string(ProviderSarvam)
	}
	if cfg.Translation.Model == "" {
		switch LLMProvider(cfg.Translation.Provider) {
		case ProviderOpenAI:
			cfg.Translation.Model = OpenAIModelGPT4oMini
		case ProviderGroq:
			cfg.Translation.Model = GroqModelLLama3_3_70B
		default:
			cfg.Translation.Model = DefaultSarvamMTModel
		}
	}
	if cfg.Translation.Temperature == 0 {
		cfg.Translation.Temperature = 0.2
	}

	if cfg.Audio.DecodeSampleRate == 0 {
		cfg.Audio.DecodeSampleRate = 24000
	}
	if cfg.Audio.DecodeChannels == 0 {
		cfg.Audio.DecodeChannels = 1
	}

	if cfg.Chunking.MaxWords == 0 {
		cfg.Chunking.MaxWords = 15
	}
	if cfg.Chunking.Concurrency == 0 {
		cfg.Chunking.Concurrency = 1
	}

	if cfg.Archive.Backend == "" {
		cfg.Archive.Backend = "none"
	}

	return cfg
}

const (
	OpenAIModelGPT4oMini string = string(openai.GPT4oMini)
	OpenAIModelGPT4o     string = string(openai.GPT4o)
)

const (
	OpenAIModelWhisper1 string = string(openai.Whisper1)
)

// Groq LLM Models
const (
	GroqModelLLama3_3_70B string = "llama-3.3-70b-versatile"
	GroqModelLLama3_1_8B  string = "llama-3.1-8b-instant"
)

// Groq Whisper Models
const (
	GroqModelWhisperLargeV3      string = "whisper-large-v3"
	GroqModelWhisperLargeV3Turbo string = "whisper-large-v3-turbo"
)
