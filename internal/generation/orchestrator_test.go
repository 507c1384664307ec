package generation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dooshek/polyvoice/internal/tts"
	"github.com/dooshek/polyvoice/internal/types"
	"github.com/dooshek/polyvoice/internal/voiceclone"
)

type fakeCloner struct {
	calls atomic.Int32
	audio string
	err   error
	got   voiceclone.CloneRequest
}

func (f *fakeCloner) Clone(_ context.Context, req voiceclone.CloneRequest) (string, error) {
	f.calls.Add(1)
	f.got = req
	return f.audio, f.err
}

type fakeSynth struct {
	calls   atomic.Int32
	audio   string
	backend string
	err     error
	got     tts.SynthesisRequest
	block   bool
}

func (f *fakeSynth) Synthesize(ctx context.Context, req tts.SynthesisRequest) (tts.Audio, string, error) {
	f.calls.Add(1)
	f.got = req
	if f.block {
		<-ctx.Done()
		return tts.Audio{}, "", types.ClassifyTransportError("fake", ctx.Err())
	}
	if f.err != nil {
		return tts.Audio{}, "", f.err
	}
	return tts.Audio{Base64: f.audio, Format: tts.FormatWAV}, f.backend, nil
}

type fakeNormalizer struct {
	err error
}

func (f fakeNormalizer) ToWAV(_ context.Context, data []byte) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]byte("WAV:"), data...), nil
}

type recordedStat struct {
	backend string
	success bool
}

type fakeStats struct {
	mu      sync.Mutex
	entries []recordedStat
}

func (f *fakeStats) Record(backend string, _ time.Duration, success bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, recordedStat{backend, success})
}

func cloningRequest() Request {
	return Request{
		GenText:        "नमस्ते दुनिया",
		RefText:        "hello world",
		RefAudio:       []byte("webm"),
		TargetLanguage: "hi-IN",
		Mode:           types.ModeCloning,
	}
}

func TestStandardModeNeverClones(t *testing.T) {
	cloner := &fakeCloner{audio: "cloned"}
	synth := &fakeSynth{audio: "tts-audio", backend: "sarvam-bulbul"}
	o := NewOrchestrator(cloner, synth, fakeNormalizer{})

	req := cloningRequest()
	req.Mode = types.ModeStandard
	req.APIKey = "user-key"
	res := o.GenerateAudio(context.Background(), req)

	if n := cloner.calls.Load(); n != 0 {
		t.Fatalf("cloner called %d times in standard mode", n)
	}
	if !res.Success || res.Provider != ProviderTTS || res.AudioBase64 != "tts-audio" || res.Backend != "sarvam-bulbul" {
		t.Errorf("result = %+v", res)
	}
	if res.Error != "" {
		t.Errorf("success result carries error %q", res.Error)
	}
	if synth.got.Text != req.GenText || synth.got.TargetLanguageCode != "hi-IN" || synth.got.APIKey != "user-key" {
		t.Errorf("synthesis request = %+v", synth.got)
	}
}

func TestCloneSuccess(t *testing.T) {
	cloner := &fakeCloner{audio: "cloned"}
	synth := &fakeSynth{audio: "tts-audio"}
	o := NewOrchestrator(cloner, synth, fakeNormalizer{})

	res := o.GenerateAudio(context.Background(), cloningRequest())

	if !res.Success || res.Provider != ProviderVoiceClone || res.AudioBase64 != "cloned" {
		t.Fatalf("result = %+v", res)
	}
	if n := synth.calls.Load(); n != 0 {
		t.Errorf("fallback called %d times after clone success", n)
	}
	if string(cloner.got.AudioWAV) != "WAV:webm" || cloner.got.RefText != "hello world" {
		t.Errorf("clone request = %+v", cloner.got)
	}
}

func TestCloneTimeoutFallsBack(t *testing.T) {
	var cloneCalls atomic.Int32
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cloneCalls.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	cloner := voiceclone.NewClient(slow.URL, 50*time.Millisecond, slow.Client())
	synth := &fakeSynth{audio: "fallback-audio", backend: "sarvam-bulbul"}
	o := NewOrchestrator(cloner, synth, fakeNormalizer{})

	res := o.GenerateAudio(context.Background(), cloningRequest())

	if !res.Success || res.Provider != ProviderTTSFallback || res.AudioBase64 != "fallback-audio" {
		t.Fatalf("result = %+v", res)
	}
	if n := cloneCalls.Load(); n != 1 {
		t.Errorf("clone service hit %d times, want 1", n)
	}
	if res.Elapsed >= 2*time.Second {
		t.Errorf("clone attempt was not bounded: %v", res.Elapsed)
	}
}

func TestFallbackOnEveryCloneFailureKind(t *testing.T) {
	tests := []struct {
		name       string
		cloner     Cloner
		normalizer Normalizer
	}{
		{"provider error", &fakeCloner{err: &types.ProviderError{Provider: "f5", Status: 500}}, fakeNormalizer{}},
		{"connectivity error", &fakeCloner{err: &types.ConnectivityError{Provider: "f5", Err: errors.New("refused")}}, fakeNormalizer{}},
		{"conversion error", &fakeCloner{audio: "never"}, fakeNormalizer{err: types.NewConversionError("bad webm", nil)}},
		{"no cloner configured", nil, fakeNormalizer{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			synth := &fakeSynth{audio: "fallback-audio"}
			res := NewOrchestrator(tt.cloner, synth, tt.normalizer).GenerateAudio(context.Background(), cloningRequest())
			if !res.Success || res.Provider != ProviderTTSFallback {
				t.Fatalf("result = %+v", res)
			}
		})
	}
}

func TestBothFailing(t *testing.T) {
	cloner := &fakeCloner{err: &types.ProviderError{Provider: "f5-voice-clone", Status: 502, Body: "gpu down"}}
	synth := &fakeSynth{err: &types.ProviderError{Provider: "sarvam", Status: 401, Body: "invalid key"}}
	res := NewOrchestrator(cloner, synth, fakeNormalizer{}).GenerateAudio(context.Background(), cloningRequest())

	if res.Success || res.AudioBase64 != "" {
		t.Fatalf("result = %+v, want failure", res)
	}
	for _, want := range []string{"voice clone failed", "gpu down", "tts fallback failed", "invalid key"} {
		if !strings.Contains(res.Error, want) {
			t.Errorf("error %q does not mention %q", res.Error, want)
		}
	}
}

func TestStandardModeFailure(t *testing.T) {
	synth := &fakeSynth{err: errors.New("no audio")}
	res := NewOrchestrator(nil, synth, fakeNormalizer{}).GenerateAudio(context.Background(), Request{GenText: "hi", Mode: types.ModeStandard})
	if res.Success || res.Error != "tts failed: no audio" {
		t.Errorf("result = %+v", res)
	}
}

func TestTTSStageIsTimeBounded(t *testing.T) {
	synth := &fakeSynth{block: true}
	o := NewOrchestrator(nil, synth, fakeNormalizer{}, WithTTSTimeout(50*time.Millisecond))

	done := make(chan Result, 1)
	go func() { done <- o.GenerateAudio(context.Background(), Request{GenText: "hi"}) }()

	select {
	case res := <-done:
		if res.Success {
			t.Fatalf("result = %+v, want failure", res)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("TTS stage did not time out")
	}
}

func TestEmptyTextAndPanicsBecomeResults(t *testing.T) {
	o := NewOrchestrator(nil, &fakeSynth{audio: "x"}, fakeNormalizer{})
	if res := o.GenerateAudio(context.Background(), Request{GenText: "   "}); res.Success || res.Error == "" {
		t.Errorf("blank text result = %+v", res)
	}

	// nil synthesizer panics inside the TTS stage
	o = NewOrchestrator(nil, nil, fakeNormalizer{})
	res := o.GenerateAudio(context.Background(), Request{GenText: "hi"})
	if res.Success || !strings.Contains(res.Error, "internal error") {
		t.Errorf("panic result = %+v", res)
	}
}

func TestStatsRecorded(t *testing.T) {
	stats := &fakeStats{}
	cloner := &fakeCloner{err: errors.New("down")}
	synth := &fakeSynth{audio: "a", backend: "sarvam-bulbul"}

	NewOrchestrator(cloner, synth, fakeNormalizer{}, WithStats(stats)).GenerateAudio(context.Background(), cloningRequest())

	want := []recordedStat{{voiceclone.ProviderName, false}, {"sarvam-bulbul", true}}
	if len(stats.entries) != len(want) {
		t.Fatalf("entries = %+v", stats.entries)
	}
	for i := range want {
		if stats.entries[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, stats.entries[i], want[i])
		}
	}
}
