package tts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dooshek/polyvoice/internal/sarvam"
	"github.com/dooshek/polyvoice/internal/types"
)

type fakeProvider struct {
	name  string
	audio string
	err   error
	calls int
}

func (f *fakeProvider) Synthesize(context.Context, SynthesisRequest) (Audio, error) {
	f.calls++
	if f.err != nil {
		return Audio{}, f.err
	}
	return Audio{Base64: f.audio, Format: FormatWAV}, nil
}

func (f *fakeProvider) Name() string { return f.name }

func TestChainFirstSuccessWins(t *testing.T) {
	first := &fakeProvider{name: "first", err: &types.ProviderError{Provider: "first", Status: 500}}
	second := &fakeProvider{name: "second", audio: "b64"}
	third := &fakeProvider{name: "third", audio: "other"}

	audio, backend, err := NewChain(first, second, third).Synthesize(context.Background(), SynthesisRequest{Text: "hi"})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if backend != "second" || audio.Base64 != "b64" {
		t.Errorf("got %q from %q", audio.Base64, backend)
	}
	if third.calls != 0 {
		t.Errorf("third provider called %d times", third.calls)
	}
}

func TestChainJoinsErrors(t *testing.T) {
	errA := errors.New("boom A")
	errB := &types.ConnectivityError{Provider: "b", Err: errors.New("refused")}

	_, _, err := NewChain(&fakeProvider{name: "a", err: errA}, &fakeProvider{name: "b", err: errB}).
		Synthesize(context.Background(), SynthesisRequest{Text: "hi"})
	if !errors.Is(err, errA) || !errors.Is(err, types.ErrConnectivity) {
		t.Fatalf("error = %v, want both causes", err)
	}
	if !strings.Contains(err.Error(), "boom A") || !strings.Contains(err.Error(), "refused") {
		t.Errorf("message %q should name both failures", err.Error())
	}
}

func TestChainStopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	second := &fakeProvider{name: "second", audio: "x"}
	_, _, err := NewChain(&fakeProvider{name: "first", err: context.Canceled}, second).
		Synthesize(ctx, SynthesisRequest{Text: "hi"})
	if err == nil || second.calls != 0 {
		t.Fatalf("err = %v, second calls = %d", err, second.calls)
	}
}

func TestNewChainFromConfig(t *testing.T) {
	cfg := (&types.Config{TTS: types.TTSConfig{Providers: []string{"sarvam", "openai", "realtime"}}}).Defaults()

	chain, err := NewChainFromConfig(&cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := chain.Names(); len(got) != 1 || got[0] != SarvamBackend {
		t.Errorf("without OpenAI key Names() = %v", got)
	}

	cfg.Keys.OpenAIKey = "sk-test"
	chain, err = NewChainFromConfig(&cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{SarvamBackend, OpenAIBackend, RealtimeBackend}
	if got := chain.Names(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Names() = %v, want %v", got, want)
	}

	cfg.TTS.Providers = []string{"elevenlabs"}
	if _, err := NewChainFromConfig(&cfg, nil); err == nil {
		t.Error("unknown provider should fail")
	}
}

func TestSarvamProviderRequest(t *testing.T) {
	var got sarvam.TTSRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/text-to-speech" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if key := r.Header.Get("api-subscription-key"); key != "per-call" {
			t.Errorf("api key = %q, want per-call override", key)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"request_id": "r1", "audios": ["UklGRg=="]}`))
	}))
	defer srv.Close()

	cfg := (&types.Config{}).Defaults()
	p := NewSarvamProvider(sarvam.NewClient("configured", srv.URL, srv.Client()), cfg.TTS.Sarvam, srv.Client())

	audio, err := p.Synthesize(context.Background(), SynthesisRequest{
		Text:               "नमस्ते",
		TargetLanguageCode: "hi-IN",
		APIKey:             "per-call",
	})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if audio.Base64 != "UklGRg==" || audio.Format != FormatWAV {
		t.Errorf("audio = %+v", audio)
	}

	want := sarvam.TTSRequest{
		Text:                "नमस्ते",
		TargetLanguageCode:  "hi-IN",
		Speaker:             "anushka",
		Model:               "bulbul:v2",
		EnablePreprocessing: true,
		SampleRate:          22050,
	}
	if got != want {
		t.Errorf("request = %+v, want %+v", got, want)
	}
}

func TestSarvamProviderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "quota"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewSarvamProvider(sarvam.NewClient("k", srv.URL, srv.Client()), types.TTSSarvamConfig{}, srv.Client())
	_, err := p.Synthesize(context.Background(), SynthesisRequest{Text: "hi", TargetLanguageCode: "hi-IN"})

	var provErr *types.ProviderError
	if !errors.As(err, &provErr) || provErr.Status != http.StatusTooManyRequests {
		t.Fatalf("error = %v, want provider error with 429", err)
	}
}
