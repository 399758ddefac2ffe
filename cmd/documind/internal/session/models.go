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
	"slices"

	"github.com/AleutianAI/documind/cmd/documind/internal/telemetry"
)

// RefreshModels fetches the model list and applies the default selection.
//
// On failure the previous list and selection are kept and the error is
// returned. An empty list replaces the previous one but keeps the
// selection.
func (c *Controller) RefreshModels(ctx context.Context) ([]string, error) {
	ctx, span := c.tracer.Start(ctx, "session.RefreshModels")
	defer span.End()

	models, err := c.backend.ListModels(ctx)
	if err != nil {
		span.RecordError(err)
		c.metrics.RecordRequest(telemetry.EndpointModels, telemetry.OutcomeTransport)
		slog.Warn("model list refresh failed", "error", err)
		c.update(func(s *State) { s.LastError = err.Error() }, nil)
		return nil, err
	}
	c.metrics.RecordRequest(telemetry.EndpointModels, telemetry.OutcomeSuccess)

	var selected string
	c.update(func(s *State) {
		s.Models = cloneStrings(models)
		s.SelectedModel = chooseModel(s.SelectedModel, c.explicitModel, models, c.cfg.PreferredModelMarker)
		selected = s.SelectedModel
	}, nil)

	slog.Debug("models refreshed", "count", len(models), "selected", selected)
	return cloneStrings(models), nil
}

// SelectModel makes name the model for subsequent chat requests.
//
// The name must appear in the last fetched list, unless no list has been
// fetched yet. The choice survives later refreshes.
func (c *Controller) SelectModel(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrUnknownModel)
	}

	c.mu.Lock()
	known := c.state.Models
	c.mu.Unlock()
	if len(known) > 0 && !slices.Contains(known, name) {
		return fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}

	c.update(func(s *State) { s.SelectedModel = name }, func() { c.explicitModel = true })
	slog.Info("model selected", "model", name)
	return nil
}
