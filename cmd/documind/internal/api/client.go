// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package api is the HTTP client for the DocuMind backend.
//
// It covers the chat stream and the side channels around it:
//
//	Client.ListModels     GET    /api/models        (cached, coalesced)
//	Client.IngestFile     POST   /api/ingest        (multipart "files")
//	Client.IngestURL      POST   /api/ingest-url
//	Client.OpenChatStream POST   /api/chat          (NDJSON body)
//	Client.AudioSummary   POST   /api/audio-summary
//	Client.Clear          DELETE /api/clear
//	Client.Health         GET    /api/health
//
// Every failure to obtain a usable response is a *TransportError. The chat
// body is handed to the caller unread; framing and interpretation live in
// pkg/stream.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// =============================================================================
// INTERFACES
// =============================================================================

// HTTPClient is the subset of *http.Client the API client needs. Tests
// substitute a mock.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// ClientConfig configures a Client. Only BaseURL is required.
type ClientConfig struct {
	// BaseURL is the backend root, e.g. "http://localhost:8000".
	BaseURL string

	// HTTPClient overrides the transport. Default: an *http.Client with an
	// otelhttp transport and no overall timeout, since chat streams are
	// open-ended.
	HTTPClient HTTPClient

	// RequestTimeout bounds side-channel requests. Chat streams are bounded
	// by the caller's context instead. Default: one minute.
	RequestTimeout time.Duration

	// ModelCacheTTL keeps the model list for this long. Zero disables the
	// cache.
	ModelCacheTTL time.Duration
}

const (
	modelsCacheKey        = "models"
	errorBodyLimit        = 512
	tracerName            = "github.com/AleutianAI/documind/api"
	defaultRequestTimeout = time.Minute
)

var validate = validator.New()

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to one DocuMind backend.
//
// # Thread Safety
//
// Safe for concurrent use. Concurrent ListModels calls share one request.
type Client struct {
	base    *url.URL
	http    HTTPClient
	timeout time.Duration
	tracer  trace.Tracer

	models *gocache.Cache
	group  singleflight.Group
}

// NewClient validates cfg and returns a ready Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: base url %q", ErrInvalidURL, cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	c := &Client{
		base:    base,
		http:    httpClient,
		timeout: timeout,
		tracer:  otel.Tracer(tracerName),
	}
	if cfg.ModelCacheTTL > 0 {
		c.models = gocache.New(cfg.ModelCacheTTL, 2*cfg.ModelCacheTTL)
	}
	return c, nil
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Resolve turns a server-relative reference, such as an audio_url of
// "/static/summary.mp3", into an absolute URL. Absolute references are
// returned unchanged.
func (c *Client) Resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, ref)
	}
	return c.base.ResolveReference(u).String(), nil
}

// =============================================================================
// MODELS
// =============================================================================

// ListModels returns the models the backend offers, in server order.
//
// Results are cached for ModelCacheTTL and concurrent callers share one
// in-flight request. An empty list is returned as-is and is not cached.
//
// The shared request is detached from the caller that started it and is
// bounded by RequestTimeout, so one caller giving up does not fail the
// others. Each caller still returns ctx.Err() as soon as its own context
// ends.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	if c.models != nil {
		if cached, ok := c.models.Get(modelsCacheKey); ok {
			return append([]string(nil), cached.([]string)...), nil
		}
	}

	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(modelsCacheKey, func() (any, error) {
		var resp ModelsResponse
		if err := c.doJSON(fetchCtx, "models", http.MethodGet, PathModels, nil, &resp); err != nil {
			return nil, err
		}
		if c.models != nil && len(resp.Models) > 0 {
			c.models.Set(modelsCacheKey, resp.Models, gocache.DefaultExpiration)
		}
		return resp.Models, nil
	})

	select {
	case <-ctx.Done():
		return nil, &TransportError{Op: "models", URL: c.endpoint(PathModels), Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		models := res.Val.([]string)
		slog.Debug("model list fetched", "count", len(models), "shared", res.Shared)
		return append([]string(nil), models...), nil
	}
}

// InvalidateModels drops the cached model list.
func (c *Client) InvalidateModels() {
	if c.models != nil {
		c.models.Delete(modelsCacheKey)
	}
}

// =============================================================================
// CHAT
// =============================================================================

// OpenChatStream posts req and returns the unread NDJSON body.
//
// # Description
//
// The request is bound to ctx for its whole life: cancelling ctx aborts
// the connection and any pending body read. The caller must close the
// returned body.
//
// # Errors
//
// Returns a *TransportError when the connection fails, the status is not
// 2xx, or the response has no body.
func (c *Client) OpenChatStream(ctx context.Context, req ChatRequest) (io.ReadCloser, error) {
	target := c.endpoint(PathChat)

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return nil, &TransportError{Op: "chat", URL: target, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", ContentTypeNDJSON)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Op: "chat", URL: target, Err: err}
	}
	if err := checkStatus("chat", target, resp); err != nil {
		return nil, err
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		if resp.Body != nil {
			resp.Body.Close()
		}
		return nil, &TransportError{Op: "chat", URL: target, Err: ErrNoBody}
	}
	return resp.Body, nil
}

// =============================================================================
// INGESTION
// =============================================================================

// IngestFile uploads one document as multipart field "files".
//
// The content is streamed from r; it is not buffered in memory.
func (c *Client) IngestFile(ctx context.Context, filename string, r io.Reader) (*IngestResponse, error) {
	ctx, span := c.tracer.Start(ctx, "api.IngestFile", trace.WithAttributes(
		attribute.String("documind.filename", filename),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		part, err := form.CreateFormFile(IngestFormField, filename)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = form.Close()
		}
		pw.CloseWithError(err)
	}()

	var resp IngestResponse
	err := c.do(ctx, "ingest", http.MethodPost, PathIngest, pr, form.FormDataContentType(), &resp)
	// Unblocks the writer goroutine if the request ended early.
	pr.CloseWithError(io.ErrClosedPipe)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ingest failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("documind.suggested_questions", len(resp.SuggestedQuestions)))
	return &resp, nil
}

// IngestURL asks the backend to fetch and ingest a web page.
//
// rawURL must be an absolute http or https URL; anything else fails with
// ErrInvalidURL before a request is made.
func (c *Client) IngestURL(ctx context.Context, rawURL string) (*IngestResponse, error) {
	body := IngestURLRequest{URL: strings.TrimSpace(rawURL)}
	if err := validate.Struct(body); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	ctx, span := c.tracer.Start(ctx, "api.IngestURL")
	defer span.End()

	var resp IngestResponse
	if err := c.doJSON(ctx, "ingest-url", http.MethodPost, PathIngestURL, body, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ingest-url failed")
		return nil, err
	}
	return &resp, nil
}

// =============================================================================
// AUDIO, CLEAR, HEALTH
// =============================================================================

// AudioSummary asks the backend to narrate the active document.
func (c *Client) AudioSummary(ctx context.Context) (*AudioResponse, error) {
	var resp AudioResponse
	if err := c.doJSON(ctx, "audio-summary", http.MethodPost, PathAudioSummary, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Download copies the resource at ref (absolute or server-relative) to w
// and returns the number of bytes written.
func (c *Client) Download(ctx context.Context, ref string, w io.Writer) (int64, error) {
	target, err := c.Resolve(ref)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, &TransportError{Op: "download", URL: target, Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, &TransportError{Op: "download", URL: target, Err: err}
	}
	defer resp.Body.Close()
	if err := checkStatus("download", target, resp); err != nil {
		return 0, err
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, &TransportError{Op: "download", URL: target, Err: err}
	}
	return n, nil
}

// Clear drops every ingested document on the backend.
func (c *Client) Clear(ctx context.Context) (*ClearResponse, error) {
	var resp ClearResponse
	if err := c.doJSON(ctx, "clear", http.MethodDelete, PathClear, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health reports backend liveness.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doJSON(ctx, "health", http.MethodGet, PathHealth, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (c *Client) endpoint(path string) string {
	return c.base.String() + path
}

// doJSON sends an optional JSON body and decodes a JSON response into out.
func (c *Client) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", op, err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.do(ctx, op, method, path, body, contentType, out)
}

// do performs one side-channel request and decodes the response into out.
func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string, out any) error {
	target := c.endpoint(path)

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return &TransportError{Op: op, URL: target, Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		slog.Warn("request failed", "op", op, "url", target, "error", err)
		return &TransportError{Op: op, URL: target, Err: err}
	}
	defer resp.Body.Close()

	if err := checkStatus(op, target, resp); err != nil {
		return err
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return &TransportError{Op: op, URL: target, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
		}
	}

	slog.Debug("request completed",
		"op", op,
		"status_code", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// checkStatus converts a non-2xx response into a *TransportError, closing
// its body. A 2xx response is left untouched.
func checkStatus(op, target string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var snippet string
	if resp.Body != nil {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		resp.Body.Close()
		snippet = strings.TrimSpace(string(data))
	}

	slog.Error("server returned error",
		"op", op,
		"url", target,
		"status_code", resp.StatusCode,
		"response_body", snippet,
	)
	return &TransportError{
		Op:         op,
		URL:        target,
		StatusCode: resp.StatusCode,
		Body:       snippet,
		Err:        fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode),
	}
}
