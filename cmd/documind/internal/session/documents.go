// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/documind/cmd/documind/internal/api"
	"github.com/AleutianAI/documind/cmd/documind/internal/telemetry"
)

const pdfExtension = ".pdf"

// IngestFile uploads the PDF at path and makes it the active document.
//
// The extension check is case-insensitive and happens before the file is
// opened. On success the suggested questions are replaced when the
// response carries them; a response without the field keeps the previous
// ones. On failure nothing changes.
func (c *Controller) IngestFile(ctx context.Context, path string) (*api.IngestResponse, error) {
	if !strings.EqualFold(filepath.Ext(path), pdfExtension) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDocument, filepath.Base(path))
	}

	ctx, span := c.tracer.Start(ctx, "session.IngestFile")
	defer span.End()

	f, err := c.cfg.OpenFile(path)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	resp, err := c.backend.IngestFile(ctx, filepath.Base(path), f)
	if err != nil {
		span.RecordError(err)
		c.metrics.RecordRequest(telemetry.EndpointIngest, telemetry.OutcomeTransport)
		c.update(func(s *State) { s.LastError = err.Error() }, nil)
		slog.Error("document ingestion failed", "path", path, "error", err)
		return nil, err
	}
	c.metrics.RecordRequest(telemetry.EndpointIngest, telemetry.OutcomeSuccess)

	c.setDocument(path, resp)
	slog.Info("document ingested", "path", path, "questions", len(resp.SuggestedQuestions))
	return resp, nil
}

// IngestURL asks the backend to fetch and ingest rawURL. Suggested
// questions are updated as in IngestFile.
func (c *Controller) IngestURL(ctx context.Context, rawURL string) (*api.IngestResponse, error) {
	rawURL = strings.TrimSpace(rawURL)

	ctx, span := c.tracer.Start(ctx, "session.IngestURL")
	defer span.End()

	resp, err := c.backend.IngestURL(ctx, rawURL)
	if err != nil {
		span.RecordError(err)
		c.metrics.RecordRequest(telemetry.EndpointIngestURL, telemetry.OutcomeTransport)
		c.update(func(s *State) { s.LastError = err.Error() }, nil)
		slog.Error("url ingestion failed", "url", rawURL, "error", err)
		return nil, err
	}
	c.metrics.RecordRequest(telemetry.EndpointIngestURL, telemetry.OutcomeSuccess)

	c.setDocument(rawURL, resp)
	slog.Info("url ingested", "url", rawURL, "questions", len(resp.SuggestedQuestions))
	return resp, nil
}

// Question returns suggested question n, counting from 1.
func (c *Controller) Question(n int) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 1 || n > len(c.state.SuggestedQuestions) {
		return "", false
	}
	return c.state.SuggestedQuestions[n-1], true
}

// Clear asks the backend to drop its session data, then resets locally.
// The local reset happens only if the backend call succeeds.
func (c *Controller) Clear(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "session.Clear")
	defer span.End()

	if c.IsBusy() {
		return ErrBusy
	}
	if _, err := c.backend.Clear(ctx); err != nil {
		span.RecordError(err)
		return err
	}
	return c.Reset()
}

// IsBusy reports whether a chat request is in flight.
func (c *Controller) IsBusy() bool {
	return c.State().IsStreaming
}

func (c *Controller) setDocument(doc string, resp *api.IngestResponse) {
	c.update(func(s *State) {
		s.ActiveDocument = doc
		// Absent questions keep the previous ones; an empty list clears them.
		if resp.SuggestedQuestions != nil {
			s.SuggestedQuestions = cloneStrings(resp.SuggestedQuestions)
		}
		s.LastError = ""
	}, nil)
}
