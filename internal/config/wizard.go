package config

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/dooshek/polyvoice/internal/fileops"
	"github.com/dooshek/polyvoice/internal/logger"
	"github.com/dooshek/polyvoice/internal/types"
	"github.com/fatih/color"
)

// RunWizard asks for API keys and provider choices and saves them, merged
// into whatever config already exists.
func RunWizard(fileOps fileops.FileOps, in io.Reader, out io.Writer) error {
	bold := color.New(color.Bold)
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)

	bold.Fprintln(out, "\n🗣️  Welcome to polyvoice configuration wizard!")
	fmt.Fprintln(out, "Press Enter to keep the value shown in brackets.")

	existing, err := LoadConfig(fileOps)
	if err != nil {
		logger.Warnf("Failed to load existing config: %v", err)
	}
	if existing == nil {
		existing = &types.Config{}
	}
	current := existing.Defaults()

	reader := bufio.NewReader(in)
	ask := func(prompt, def string, secret bool) (string, error) {
		shown := def
		if secret && def != "" {
			shown = maskKey(def)
		}
		cyan.Fprintf(out, "\n%s [%s]: ", prompt, shown)
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return def, nil
		}
		return line, nil
	}

	cfg := &types.Config{}

	if cfg.Keys.SarvamKey, err = ask("Sarvam API key", current.Keys.SarvamKey, true); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	if cfg.Keys.OpenAIKey, err = ask("OpenAI API key (optional)", current.Keys.OpenAIKey, true); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	if cfg.Keys.GroqKey, err = ask("Groq API key (optional)", current.Keys.GroqKey, true); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	if cfg.VoiceClone.URL, err = ask("Voice cloning endpoint", current.VoiceClone.URL, false); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	providers, err := ask("TTS providers in fallback order (sarvam,openai,realtime)",
		strings.Join(current.TTS.Providers, ","), false)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	for _, p := range strings.Split(providers, ",") {
		if p = strings.TrimSpace(p); p != "" {
			cfg.TTS.Providers = append(cfg.TTS.Providers, p)
		}
	}

	if cfg.Transcription.Provider, err = ask("Transcription provider (sarvam|openai|groq)",
		current.Transcription.Provider, false); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	if cfg.Translation.Provider, err = ask("Translation provider (sarvam|openai|groq)",
		current.Translation.Provider, false); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	if cfg.Archive.Backend, err = ask("Archive generated audio (none|local|minio)",
		current.Archive.Backend, false); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	// Let Defaults pick a model matching a newly chosen provider
	if cfg.Transcription.Provider == current.Transcription.Provider {
		cfg.Transcription.Model = current.Transcription.Model
	}
	if cfg.Translation.Provider == current.Translation.Provider {
		cfg.Translation.Model = current.Translation.Model
	}
	filled := cfg.Defaults()
	cfg.Transcription.Model = filled.Transcription.Model
	cfg.Translation.Model = filled.Translation.Model

	if err := SaveConfig(fileOps, cfg); err != nil {
		return err
	}

	green.Fprintln(out, "\n✅ Configuration saved to", fileOps.GetConfigDir())
	return nil
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "…" + key[len(key)-4:]
}
