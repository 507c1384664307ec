package voiceclone

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dooshek/polyvoice/internal/types"
)

func TestCloneSendsDataURI(t *testing.T) {
	var body cloneBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Write([]byte(`{"audio_base64": "Y2xvbmVk"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, srv.Client())
	got, err := c.Clone(context.Background(), CloneRequest{GenText: "gen", RefText: "ref", AudioWAV: []byte("RIFF")})
	if err != nil {
		t.Fatalf("Clone() error = %v", err)
	}
	if got != "Y2xvbmVk" {
		t.Errorf("Clone() = %q", got)
	}
	if body.GenText != "gen" || body.RefText != "ref" {
		t.Errorf("body = %+v", body)
	}
	if body.AudioBase64 != "data:audio/wav;base64,UklGRg==" {
		t.Errorf("audio_base64 = %q", body.AudioBase64)
	}
}

func TestCloneFailures(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		wantClass error
	}{
		{
			name: "non-2xx",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "gpu busy", http.StatusServiceUnavailable)
			},
			wantClass: types.ErrProvider,
		},
		{
			name: "missing audio field",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"status": "ok"}`))
			},
			wantClass: types.ErrProvider,
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`<html>`))
			},
			wantClass: types.ErrProvider,
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			wantClass: types.ErrConnectivity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				tt.handler(w, r)
			}))
			defer srv.Close()

			c := NewClient(srv.URL, 100*time.Millisecond, srv.Client())
			_, err := c.Clone(context.Background(), CloneRequest{GenText: "x", AudioWAV: []byte("RIFF")})
			if !errors.Is(err, tt.wantClass) {
				t.Fatalf("error = %v, want %v", err, tt.wantClass)
			}
			if n := calls.Load(); n != 1 {
				t.Errorf("made %d calls, want exactly 1", n)
			}
		})
	}
}

func TestCloneTimeoutIsReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 50*time.Millisecond, srv.Client())
	_, err := c.Clone(context.Background(), CloneRequest{GenText: "x"})

	var connErr *types.ConnectivityError
	if !errors.As(err, &connErr) {
		t.Fatalf("error = %v, want connectivity error", err)
	}
	if !connErr.Timeout() {
		t.Errorf("Timeout() = false for %v", err)
	}
	if !strings.Contains(err.Error(), ProviderName) {
		t.Errorf("message %q should name the provider", err.Error())
	}
}
