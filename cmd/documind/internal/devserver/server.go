// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package devserver is a self-contained DocuMind backend for local runs
// and end-to-end tests.
//
// It implements the HTTP contract the CLI speaks (models, ingest, chat
// streaming, audio summaries, clear, health) with canned answers instead
// of retrieval and a language model. Ingesting a document replaces the
// previous one, as the real backend clears its vector store on ingest.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/documind/cmd/documind/internal/api"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"
)

const (
	serviceName = "documind-dev"

	defaultMaxUploadBytes = 32 << 20
	shutdownTimeout       = 5 * time.Second
)

// DefaultModels is what GET /api/models lists unless Config.Models is set.
// Embedding models are filtered from the response like the real backend
// does.
var DefaultModels = []string{"llama3:8b", "qwen3:0.6b", "nomic-embed-text:latest"}

// AnswerFunc produces the full answer for message. document is the active
// document name, empty when nothing has been ingested.
type AnswerFunc func(message, document string) string

// Config controls the development server.
type Config struct {
	// Models is the raw model list; names containing "embed" or "nomic"
	// are hidden from clients.
	Models []string

	// TokensPerSecond paces streamed tokens. Zero streams without delay.
	TokensPerSecond float64

	// Answer overrides the canned answer generator.
	Answer AnswerFunc

	// MaxUploadBytes bounds multipart uploads. Default: 32 MiB.
	MaxUploadBytes int64
}

// Server holds the in-memory backend state.
type Server struct {
	cfg    Config
	router *gin.Engine

	mu       sync.Mutex
	document string
	audio    map[string][]byte
}

// New builds a Server with every route registered.
func New(cfg Config) *Server {
	if cfg.Models == nil {
		cfg.Models = DefaultModels
	}
	if cfg.Answer == nil {
		cfg.Answer = CannedAnswer
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}

	s := &Server{
		cfg:   cfg,
		audio: make(map[string][]byte),
	}

	s.router = gin.New()
	s.router.MaxMultipartMemory = cfg.MaxUploadBytes
	s.router.Use(gin.Recovery())
	s.router.Use(otelgin.Middleware(serviceName))
	s.router.Use(requestLogger())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET(api.PathHealth, s.handleHealth)
	s.router.GET(api.PathModels, s.handleModels)
	s.router.POST(api.PathIngest, s.handleIngest)
	s.router.POST(api.PathIngestURL, s.handleIngestURL)
	s.router.POST(api.PathChat, s.handleChat)
	s.router.POST(api.PathAudioSummary, s.handleAudioSummary)
	s.router.DELETE(api.PathClear, s.handleClear)
	s.router.GET("/static/:name", s.handleStatic)
}

// Handler returns the HTTP handler, for httptest and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Document returns the active document name.
func (s *Server) Document() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.document
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully. It returns nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	slog.Info("development server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("development server stopped")
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// limiter returns a fresh per-request token limiter.
func (s *Server) limiter() *rate.Limiter {
	if s.cfg.TokensPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(s.cfg.TokensPerSecond), 1)
}

// visibleModels drops embedding models.
func visibleModels(models []string) []string {
	out := make([]string, 0, len(models))
	for _, m := range models {
		if strings.Contains(m, "embed") || strings.Contains(m, "nomic") {
			continue
		}
		out = append(out, m)
	}
	return out
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("request served",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
