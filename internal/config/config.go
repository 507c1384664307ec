package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/dooshek/polyvoice/internal/fileops"
	"github.com/dooshek/polyvoice/internal/logger"
	"github.com/dooshek/polyvoice/internal/types"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configFilename = "polyvoice.yaml"
)

// Load reads polyvoice.yaml (if any), applies .env and environment overrides
// and fills defaults. A missing file is not an error.
func Load(fileOps fileops.FileOps) (*types.Config, error) {
	cfg, err := LoadConfig(fileOps)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &types.Config{}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warnf("Failed to load .env file: %v", err)
	}
	ApplyEnv(cfg, os.Getenv)

	withDefaults := cfg.Defaults()
	return &withDefaults, nil
}

// LoadConfig returns the parsed file contents, or nil if no file exists yet
func LoadConfig(fileOps fileops.FileOps) (*types.Config, error) {
	if err := fileOps.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	data, err := fileOps.LoadConfig(configFilename)
	if err != nil {
		if errors.Is(err, fileops.ErrConfigNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config types.Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// ApplyEnv overrides config values with environment variables. getenv is
// injected so tests don't depend on the process environment.
func ApplyEnv(cfg *types.Config, getenv func(string) string) {
	setString := func(dst *string, keys ...string) {
		for _, key := range keys {
			if v := getenv(key); v != "" {
				*dst = v
				return
			}
		}
	}

	setString(&cfg.Keys.SarvamKey, "POLYVOICE_SARVAM_API_KEY", "SARVAM_API_KEY")
	setString(&cfg.Keys.OpenAIKey, "POLYVOICE_OPENAI_API_KEY", "OPENAI_API_KEY")
	setString(&cfg.Keys.GroqKey, "POLYVOICE_GROQ_API_KEY", "GROQ_API_KEY")
	setString(&cfg.Server.Addr, "POLYVOICE_ADDR")
	setString(&cfg.VoiceClone.URL, "POLYVOICE_VOICE_CLONE_URL")
	setString(&cfg.Proxy.Upstream, "POLYVOICE_PROXY_UPSTREAM")

	if port := getenv("PORT"); port != "" && getenv("POLYVOICE_ADDR") == "" {
		cfg.Server.Addr = ":" + port
	}

	setString(&cfg.Archive.Backend, "POLYVOICE_ARCHIVE")
	setString(&cfg.Archive.Minio.Endpoint, "S3_ENDPOINT")
	setString(&cfg.Archive.Minio.AccessKey, "S3_ACCESS_KEY")
	setString(&cfg.Archive.Minio.SecretKey, "S3_SECRET_KEY")
	setString(&cfg.Archive.Minio.Bucket, "S3_BUCKET")
	setString(&cfg.Archive.Minio.Region, "S3_REGION")
	if v := getenv("S3_SECURE"); v != "" {
		if secure, err := strconv.ParseBool(v); err == nil {
			cfg.Archive.Minio.Secure = secure
		}
	}
}

func SaveConfig(fileOps fileops.FileOps, config *types.Config) error {
	existingConfig, err := LoadConfig(fileOps)
	if err != nil {
		logger.Warnf("Failed to load existing config: %v", err)
	} else if existingConfig != nil {
		mergeConfigs(existingConfig, config)
		config = existingConfig
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := fileOps.SaveConfig(configFilename, data); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// mergeConfigs copies the fields the wizard sets from sourceConfig into
// targetConfig, leaving everything else as it was on disk
func mergeConfigs(targetConfig, sourceConfig *types.Config) {
	if sourceConfig.Keys.SarvamKey != "" {
		targetConfig.Keys.SarvamKey = sourceConfig.Keys.SarvamKey
	}
	if sourceConfig.Keys.OpenAIKey != "" {
		targetConfig.Keys.OpenAIKey = sourceConfig.Keys.OpenAIKey
	}
	if sourceConfig.Keys.GroqKey != "" {
		targetConfig.Keys.GroqKey = sourceConfig.Keys.GroqKey
	}

	if sourceConfig.VoiceClone.URL != "" {
		targetConfig.VoiceClone.URL = sourceConfig.VoiceClone.URL
	}

	if len(sourceConfig.TTS.Providers) > 0 {
		targetConfig.TTS.Providers = sourceConfig.TTS.Providers
	}

	if sourceConfig.Transcription.Provider != "" {
		targetConfig.Transcription.Provider = sourceConfig.Transcription.Provider
		targetConfig.Transcription.Model = sourceConfig.Transcription.Model
	}
	if sourceConfig.Translation.Provider != "" {
		targetConfig.Translation.Provider = sourceConfig.Translation.Provider
		targetConfig.Translation.Model = sourceConfig.Translation.Model
	}

	if sourceConfig.Archive.Backend != "" {
		targetConfig.Archive.Backend = sourceConfig.Archive.Backend
	}
}
