// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/AleutianAI/documind/cmd/documind/internal/api"
	"github.com/AleutianAI/documind/pkg/conversation"
	"golang.org/x/time/rate"
)

// =============================================================================
// Interface Definition
// =============================================================================

// NDJSONWriter writes chat stream records, one JSON object per line.
//
// # Description
//
// Every record is flushed as soon as it is written so clients see tokens
// as they are produced. Token writes wait on a rate limiter to imitate a
// model generating text.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type NDJSONWriter interface {
	// WriteToken writes {"token": text}. It blocks until the limiter
	// allows the write or ctx is done.
	WriteToken(ctx context.Context, text string) error

	// WriteSources writes {"sources": [...]}. An empty slice is written
	// as an empty array.
	WriteSources(sources []conversation.Citation) error

	// WriteRaw writes line followed by a newline, unchanged.
	WriteRaw(line string) error
}

// =============================================================================
// Implementation
// =============================================================================

type ndjsonWriter struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	limiter *rate.Limiter
	mu      sync.Mutex
}

// NewNDJSONWriter wraps w. The caller sets headers with SetNDJSONHeaders
// first. A nil limiter disables pacing.
func NewNDJSONWriter(w http.ResponseWriter, limiter *rate.Limiter) (NDJSONWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter does not support http.Flusher")
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &ndjsonWriter{
		writer:  w,
		flusher: flusher,
		limiter: limiter,
	}, nil
}

func (w *ndjsonWriter) WriteToken(ctx context.Context, text string) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("pace token: %w", err)
	}
	return w.writeRecord(api.ChatRecord{Token: &text})
}

func (w *ndjsonWriter) WriteSources(sources []conversation.Citation) error {
	if sources == nil {
		sources = []conversation.Citation{}
	}
	return w.writeRecord(api.ChatRecord{Sources: &sources})
}

func (w *ndjsonWriter) WriteRaw(line string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := fmt.Fprintf(w.writer, "%s\n", line); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	w.flusher.Flush()
	return nil
}

func (w *ndjsonWriter) writeRecord(rec api.ChatRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	return w.WriteRaw(string(data))
}

// SetNDJSONHeaders prepares w for a streamed NDJSON body. It must be
// called before the first write.
func SetNDJSONHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", api.ContentTypeNDJSON)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
}

var _ NDJSONWriter = (*ndjsonWriter)(nil)
