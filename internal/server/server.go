// Package server exposes the translation, generation and proxy endpoints
// over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"time"

	"github.com/dooshek/polyvoice/internal/chunking"
	"github.com/dooshek/polyvoice/internal/generation"
	"github.com/dooshek/polyvoice/internal/logger"
	"github.com/dooshek/polyvoice/internal/pipeline"
	"github.com/dooshek/polyvoice/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

const shutdownTimeout = 10 * time.Second

type Generator interface {
	GenerateAudio(ctx context.Context, req generation.Request) generation.Result
}

type ChunkRunner interface {
	Run(ctx context.Context, req generation.Request) ([]chunking.ChunkResult, error)
	Seq(ctx context.Context, req generation.Request) iter.Seq[chunking.ChunkResult]
}

type Processor interface {
	Process(ctx context.Context, in pipeline.Input) (*pipeline.Result, error)
}

type StatsSource interface {
	JSON() ([]byte, error)
}

// Deps are the shared components every request uses
type Deps struct {
	Generator  Generator
	Chunks     ChunkRunner
	Pipeline   Processor
	Stats      StatsSource
	HTTPClient *http.Client
}

type Server struct {
	cfg  types.ServerConfig
	deps Deps
	// proxy forwards voice-clone calls for browsers that cannot reach the
	// upstream directly
	proxy *Proxy
}

func New(cfg *types.Config, deps Deps) *Server {
	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	serverCfg := cfg.Server
	if serverCfg.MaxUploadBytes <= 0 {
		serverCfg.MaxUploadBytes = 25 << 20
	}
	return &Server{
		cfg:   serverCfg,
		deps:  deps,
		proxy: NewProxy(cfg.Proxy.Upstream, cfg.Proxy.Timeout, httpClient),
	}
}

// Routes builds the router
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", apiKeyHeader},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)

	// any method reaches the proxy so it can answer 405 itself
	r.HandleFunc("/f5", s.proxy.ServeHTTP)

	r.Route("/api", func(api chi.Router) {
		if s.cfg.RateLimit > 0 {
			api.Use(httprate.LimitByIP(s.cfg.RateLimit, time.Minute))
		}

		api.HandleFunc("/f5-proxy", s.proxy.ServeHTTP)

		api.Post("/generate", s.handleGenerate)
		api.Post("/translate", s.handleTranslate)
		api.Post("/tts", s.handleTTS)
		api.Get("/tts/stream", s.handleTTSStream)

		api.Get("/languages", s.handleLanguages)
		api.Get("/stats", s.handleStats)
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("🚀 Listening at %s", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

// accessLog writes one zerolog line per request
func accessLog(next http.Handler) http.Handler {
	log := logger.Component("http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		event := log.Info()
		if status >= 500 {
			event = log.Warn()
		}
		event.
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
