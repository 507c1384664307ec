package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dooshek/polyvoice/internal/archive"
	"github.com/dooshek/polyvoice/internal/generation"
	"github.com/dooshek/polyvoice/internal/transcriber"
	"github.com/dooshek/polyvoice/internal/types"
)

type fakeTranscriber struct {
	transcript transcriber.Transcript
	err        error
	calls      int
}

func (f *fakeTranscriber) Transcribe(context.Context, string, []byte, string) (transcriber.Transcript, error) {
	f.calls++
	return f.transcript, f.err
}

func (f *fakeTranscriber) Name() string { return "fake-stt" }

type fakeTranslator struct {
	out    string
	err    error
	source string
	target string
}

func (f *fakeTranslator) Translate(_ context.Context, _, source, target, _ string) (string, error) {
	f.source, f.target = source, target
	return f.out, f.err
}

func (f *fakeTranslator) Name() string { return "fake-mt" }

type fakeGenerator struct {
	res generation.Result
	req generation.Request
}

func (f *fakeGenerator) GenerateAudio(_ context.Context, req generation.Request) generation.Result {
	f.req = req
	return f.res
}

type fakeStats struct {
	mu      sync.Mutex
	entries map[string]bool
}

func (f *fakeStats) Record(backend string, _ time.Duration, success bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.entries == nil {
		f.entries = map[string]bool{}
	}
	f.entries[backend] = success
}

type fakeArchive struct {
	objects []archive.Object
	err     error
}

func (f *fakeArchive) Put(_ context.Context, obj archive.Object) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.objects = append(f.objects, obj)
	return "generated/2026/10/15/x.wav", nil
}

func (f *fakeArchive) Name() string { return "fake" }

type fixture struct {
	stt     *fakeTranscriber
	mt      *fakeTranslator
	gen     *fakeGenerator
	stats   *fakeStats
	archive *fakeArchive
	p       *Pipeline
}

func newFixture() *fixture {
	f := &fixture{
		stt: &fakeTranscriber{transcript: transcriber.Transcript{Text: " good morning ", LanguageCode: "en-IN"}},
		mt:  &fakeTranslator{out: "सुप्रभात"},
		gen: &fakeGenerator{res: generation.Result{
			Success:     true,
			AudioBase64: "UklGRiQAAABXQVZF",
			Provider:    generation.ProviderVoiceClone,
		}},
		stats:   &fakeStats{},
		archive: &fakeArchive{},
	}
	f.p = New(Deps{Transcriber: f.stt, Translator: f.mt, Generator: f.gen, Stats: f.stats, Archive: f.archive})
	return f
}

func TestProcess(t *testing.T) {
	f := newFixture()
	f.stt.transcript.Text = "good morning"

	res, err := f.p.Process(context.Background(), Input{
		Audio:          []byte("webm"),
		TargetLanguage: "hi-IN",
		Mode:           types.ModeCloning,
		APIKey:         "k",
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if res.ID == "" || res.Transcript != "good morning" || res.SourceLanguage != "en-IN" || res.Translation != "सुप्रभात" {
		t.Errorf("result = %+v", res)
	}
	if res.AudioFailed || !res.Audio.Success {
		t.Errorf("audio = %+v", res.Audio)
	}
	if f.mt.source != "en-IN" || f.mt.target != "hi-IN" {
		t.Errorf("translator got %s -> %s", f.mt.source, f.mt.target)
	}

	req := f.gen.req
	if req.GenText != "सुप्रभात" || req.RefText != "good morning" || string(req.RefAudio) != "webm" || req.Mode != types.ModeCloning || req.APIKey != "k" {
		t.Errorf("generation request = %+v", req)
	}

	if res.ArchiveKey == "" || len(f.archive.objects) != 1 {
		t.Fatalf("archive key %q, %d objects", res.ArchiveKey, len(f.archive.objects))
	}
	obj := f.archive.objects[0]
	if !strings.HasPrefix(string(obj.Data), "RIFF") {
		t.Errorf("archived data is not decoded audio: %q", obj.Data)
	}
	if obj.Metadata["pipeline-id"] != res.ID || obj.Metadata["provider"] != string(generation.ProviderVoiceClone) {
		t.Errorf("metadata = %v", obj.Metadata)
	}

	if !f.stats.entries["fake-stt"] || !f.stats.entries["fake-mt"] {
		t.Errorf("stats = %v", f.stats.entries)
	}
}

func TestProcessAudioFailureIsNotFatal(t *testing.T) {
	f := newFixture()
	f.gen.res = generation.Result{Error: "voice clone failed: x; tts fallback failed: y"}

	res, err := f.p.Process(context.Background(), Input{Audio: []byte("a"), TargetLanguage: "bn-IN"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !res.AudioFailed || res.Translation == "" {
		t.Errorf("result = %+v", res)
	}
	if len(f.archive.objects) != 0 || res.ArchiveKey != "" {
		t.Error("failed audio must not be archived")
	}
}

func TestProcessArchiveFailureIsNotFatal(t *testing.T) {
	f := newFixture()
	f.archive.err = errors.New("bucket gone")

	res, err := f.p.Process(context.Background(), Input{Audio: []byte("a"), TargetLanguage: "gu-IN"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.ArchiveKey != "" || res.AudioFailed {
		t.Errorf("result = %+v", res)
	}
}

func TestProcessErrors(t *testing.T) {
	sttErr := &types.ConnectivityError{Provider: "fake-stt", Err: context.DeadlineExceeded}
	mtErr := &types.ProviderError{Provider: "fake-mt", Status: 429}

	tests := []struct {
		name    string
		in      Input
		setup   func(*fixture)
		wantErr error
	}{
		{
			name:    "unsupported language",
			in:      Input{Audio: []byte("a"), TargetLanguage: "fr-FR"},
			wantErr: ErrUnsupportedLanguage,
		},
		{
			name:    "no audio",
			in:      Input{TargetLanguage: "hi-IN"},
			wantErr: ErrNoAudio,
		},
		{
			name:    "no speech",
			in:      Input{Audio: []byte("a"), TargetLanguage: "hi-IN"},
			setup:   func(f *fixture) { f.stt.transcript.Text = "  " },
			wantErr: ErrNoSpeech,
		},
		{
			name:    "transcription",
			in:      Input{Audio: []byte("a"), TargetLanguage: "hi-IN"},
			setup:   func(f *fixture) { f.stt.err = sttErr },
			wantErr: types.ErrConnectivity,
		},
		{
			name:    "translation",
			in:      Input{Audio: []byte("a"), TargetLanguage: "hi-IN"},
			setup:   func(f *fixture) { f.mt.err = mtErr },
			wantErr: types.ErrProvider,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			if tt.setup != nil {
				tt.setup(f)
			}
			res, err := f.p.Process(context.Background(), tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if res != nil {
				t.Errorf("result = %+v, want nil", res)
			}
		})
	}
}

func TestProcessValidatesBeforeCallingBackends(t *testing.T) {
	f := newFixture()
	_, _ = f.p.Process(context.Background(), Input{Audio: []byte("a"), TargetLanguage: "xx"})
	if f.stt.calls != 0 {
		t.Errorf("transcriber called %d times for invalid input", f.stt.calls)
	}
}

func TestProcessArchivesDataURIAudio(t *testing.T) {
	f := newFixture()
	f.gen.res.AudioBase64 = "data:audio/wav;base64,UklGRiQAAABXQVZF"

	res, err := f.p.Process(context.Background(), Input{Audio: []byte("a"), TargetLanguage: "mr-IN"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.ArchiveKey == "" || len(f.archive.objects) != 1 {
		t.Fatalf("archive key %q, %d objects", res.ArchiveKey, len(f.archive.objects))
	}
	if data := string(f.archive.objects[0].Data); !strings.HasPrefix(data, "RIFF") {
		t.Errorf("archived %q, want decoded WAV", data)
	}
}
