// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"context"
	"log/slog"

	"github.com/AleutianAI/documind/cmd/documind/internal/api"
	"github.com/AleutianAI/documind/cmd/documind/internal/telemetry"
)

// GenerateAudio requests an audio summary of the active document.
//
// IsGeneratingAudio is set for the duration of the call. A response
// without an audio_url is ErrNoAudio and leaves the previous audio in
// place. Chat streaming may run concurrently.
func (c *Controller) GenerateAudio(ctx context.Context) (*api.AudioResponse, error) {
	if !c.audioSem.TryAcquire(1) {
		return nil, ErrAudioBusy
	}
	defer c.audioSem.Release(1)

	ctx, span := c.tracer.Start(ctx, "session.GenerateAudio")
	defer span.End()

	c.update(func(s *State) { s.IsGeneratingAudio = true }, nil)

	resp, err := c.backend.AudioSummary(ctx)
	if err == nil && resp.AudioURL == "" {
		err = ErrNoAudio
	}
	if err != nil {
		span.RecordError(err)
		c.metrics.RecordRequest(telemetry.EndpointAudio, telemetry.OutcomeTransport)
		c.update(func(s *State) {
			s.IsGeneratingAudio = false
			s.LastError = err.Error()
		}, nil)
		slog.Error("audio summary failed", "error", err)
		return nil, err
	}
	c.metrics.RecordRequest(telemetry.EndpointAudio, telemetry.OutcomeSuccess)

	c.update(func(s *State) {
		s.IsGeneratingAudio = false
		s.AudioURL = resp.AudioURL
		s.AudioScript = resp.Script
	}, nil)
	slog.Info("audio summary ready", "audio_url", resp.AudioURL, "script_chars", len(resp.Script))
	return resp, nil
}
