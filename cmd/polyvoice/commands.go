package main

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dooshek/polyvoice/internal/archive"
	"github.com/dooshek/polyvoice/internal/audio"
	"github.com/dooshek/polyvoice/internal/fileops"
	"github.com/dooshek/polyvoice/internal/generation"
	"github.com/dooshek/polyvoice/internal/logger"
	"github.com/dooshek/polyvoice/internal/pipeline"
	"github.com/dooshek/polyvoice/internal/server"
	"github.com/dooshek/polyvoice/internal/state"
	"github.com/dooshek/polyvoice/internal/types"
	"github.com/fatih/color"
)

const defaultLanguage = "hi-IN"

func runServe(ctx context.Context, st *state.AppState, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", st.Config.Server.Addr, "Listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	st.Config.Server.Addr = *addr

	// Check if another server is already running
	if err := st.FileOps.CheckPID(); err != nil {
		if errors.Is(err, fileops.ErrProcessAlreadyRunning) {
			return err
		}
		logger.Warnf("Failed to check PID file: %v", err)
	}
	if err := st.FileOps.SavePID(); err != nil {
		logger.Error("Failed to save PID file", err)
	}
	defer func() {
		if err := st.FileOps.CleanupPID(); err != nil {
			logger.Error("Failed to cleanup PID file", err)
		}
	}()

	a, err := newApp(st)
	if err != nil {
		return err
	}
	p, err := a.pipeline(ctx)
	if err != nil {
		return err
	}

	srv := server.New(st.Config, server.Deps{
		Generator:  a.orchestrator,
		Chunks:     a.chunks,
		Pipeline:   p,
		Stats:      a.stats,
		HTTPClient: a.httpClient,
	})
	return srv.Run(ctx)
}

func runGenerate(ctx context.Context, st *state.AppState, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	text := fs.String("text", "", "Text to speak")
	lang := fs.String("lang", defaultLanguage, "Target language code")
	mode := fs.String("mode", string(types.ModeStandard), "Voice mode (standard|cloning)")
	refAudio := fs.String("ref-audio", "", "Reference voice recording (cloning mode)")
	refText := fs.String("ref-text", "", "Transcript of the reference recording")
	out := fs.String("out", "output.wav", "Output audio file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req, err := generationRequest(*text, *lang, *mode, *refAudio, *refText)
	if err != nil {
		return err
	}

	a, err := newApp(st)
	if err != nil {
		return err
	}

	res := a.orchestrator.GenerateAudio(ctx, req)
	if !res.Success {
		return errors.New(res.Error)
	}
	if err := writeBase64(*out, res.AudioBase64); err != nil {
		return err
	}

	color.Green("✓ Audio written to %s", *out)
	fmt.Printf("  provider: %s (%s), %d ms\n", res.Provider, res.Backend, res.ElapsedMs)
	return nil
}

func runTTS(ctx context.Context, st *state.AppState, args []string) error {
	fs := flag.NewFlagSet("tts", flag.ExitOnError)
	text := fs.String("text", "", "Text to speak")
	lang := fs.String("lang", defaultLanguage, "Target language code")
	mode := fs.String("mode", string(types.ModeStandard), "Voice mode (standard|cloning)")
	refAudio := fs.String("ref-audio", "", "Reference voice recording (cloning mode)")
	refText := fs.String("ref-text", "", "Transcript of the reference recording")
	outDir := fs.String("out-dir", ".", "Directory for chunk audio files")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req, err := generationRequest(*text, *lang, *mode, *refAudio, *refText)
	if err != nil {
		return err
	}

	a, err := newApp(st)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	failed := 0
	for chunk := range a.chunks.Seq(ctx, req) {
		if !chunk.Result.Success {
			failed++
			color.Red("✗ chunk %d: %s", chunk.Index+1, chunk.Result.Error)
			continue
		}

		data, err := base64.StdEncoding.DecodeString(chunk.Result.AudioBase64)
		if err != nil {
			return fmt.Errorf("chunk %d: invalid audio payload: %w", chunk.Index+1, err)
		}
		ext, _ := archive.Sniff(data)
		path := filepath.Join(*outDir, fmt.Sprintf("chunk_%03d.%s", chunk.Index+1, ext))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		color.Green("✓ chunk %d (%s) → %s", chunk.Index+1, chunk.Result.Provider, path)
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if failed > 0 {
		return fmt.Errorf("%d chunk(s) failed", failed)
	}
	return nil
}

func runTranslate(ctx context.Context, st *state.AppState, args []string) error {
	fs := flag.NewFlagSet("translate", flag.ExitOnError)
	in := fs.String("in", "", "Input recording")
	record := fs.Duration("record", 0, "Record from the microphone for this long instead of --in")
	lang := fs.String("lang", defaultLanguage, "Target language code")
	mode := fs.String("mode", string(types.ModeStandard), "Voice mode (standard|cloning)")
	out := fs.String("out", "translated.wav", "Output audio file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		data     []byte
		filename string
		err      error
	)
	switch {
	case *record > 0:
		recCtx, cancel := context.WithTimeout(ctx, *record)
		data, err = audio.NewRecorder().Record(recCtx)
		cancel()
		filename = "recording.wav"
	case *in != "":
		data, err = os.ReadFile(*in)
		filename = filepath.Base(*in)
	default:
		return errors.New("either --in or --record is required")
	}
	if err != nil {
		return fmt.Errorf("failed to get input audio: %w", err)
	}

	a, err := newApp(st)
	if err != nil {
		return err
	}
	p, err := a.pipeline(ctx)
	if err != nil {
		return err
	}

	res, err := p.Process(ctx, pipeline.Input{
		Audio:          data,
		Filename:       filename,
		TargetLanguage: *lang,
		Mode:           types.ParseVoiceMode(*mode),
	})
	if err != nil {
		return err
	}

	color.Cyan("📝 %s", res.Transcript)
	color.Cyan("🌐 %s", res.Translation)
	if res.AudioFailed {
		color.Yellow("⚠ Audio generation failed: %s", res.Audio.Error)
		return nil
	}
	if err := writeBase64(*out, res.Audio.AudioBase64); err != nil {
		return err
	}
	color.Green("✓ Audio written to %s (%s, %d ms total)", *out, res.Audio.Provider, res.Timings.TotalMs)
	return nil
}

func runRecord(ctx context.Context, _ *state.AppState, args []string) error {
	fs := flag.NewFlagSet("record", flag.ExitOnError)
	duration := fs.Duration("duration", 5*time.Second, "Recording length")
	out := fs.String("out", "recording.wav", "Output WAV file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	recCtx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	data, err := audio.NewRecorder().Record(recCtx)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", *out, err)
	}
	color.Green("✓ Recording written to %s", *out)
	return nil
}

func runEncodeWAV(ctx context.Context, st *state.AppState, args []string) error {
	fs := flag.NewFlagSet("encode-wav", flag.ExitOnError)
	in := fs.String("in", "", "Input audio file")
	out := fs.String("out", "", "Output WAV file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *out == "" {
		return errors.New("--in and --out are required")
	}

	data, err := os.ReadFile(*in)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", *in, err)
	}

	normalizer := audio.NewNormalizer(audio.NewDecoder(st.Config.Audio))
	wavData, err := normalizer.ToWAV(ctx, data)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, wavData, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", *out, err)
	}
	color.Green("✓ %s → %s (%d bytes)", *in, *out, len(wavData))
	return nil
}

func generationRequest(text, lang, mode, refAudioPath, refText string) (generation.Request, error) {
	if text == "" {
		return generation.Request{}, errors.New("--text is required")
	}
	if _, ok := types.LookupLanguage(lang); !ok {
		return generation.Request{}, fmt.Errorf("unsupported language %q", lang)
	}

	req := generation.Request{
		GenText:        text,
		RefText:        refText,
		TargetLanguage: lang,
		Mode:           types.ParseVoiceMode(mode),
	}
	if req.Mode == types.ModeCloning {
		if refAudioPath == "" {
			return generation.Request{}, errors.New("--ref-audio is required for cloning mode")
		}
		data, err := os.ReadFile(refAudioPath)
		if err != nil {
			return generation.Request{}, fmt.Errorf("failed to read reference audio: %w", err)
		}
		req.RefAudio = data
	}
	return req, nil
}

func writeBase64(path, payload string) error {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return fmt.Errorf("invalid audio payload: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
