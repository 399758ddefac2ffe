// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package api

import "github.com/AleutianAI/documind/pkg/conversation"

// Endpoint paths, relative to the configured base URL.
const (
	PathModels       = "/api/models"
	PathIngest       = "/api/ingest"
	PathIngestURL    = "/api/ingest-url"
	PathChat         = "/api/chat"
	PathAudioSummary = "/api/audio-summary"
	PathClear        = "/api/clear"
	PathHealth       = "/api/health"

	// IngestFormField is the multipart field carrying uploaded files.
	IngestFormField = "files"

	// ContentTypeNDJSON is what the chat endpoint streams.
	ContentTypeNDJSON = "application/x-ndjson"
)

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	Model     string `json:"model"`
}

// ModelsResponse is returned by GET /api/models.
type ModelsResponse struct {
	Models []string `json:"models"`
}

// IngestResponse covers both ingest endpoints.
//
// SuggestedQuestions is nil when the server sent none, and an empty slice
// when it sent an empty list.
type IngestResponse struct {
	Message            string   `json:"message,omitempty"`
	FilesCount         int      `json:"files_count,omitempty"`
	Status             string   `json:"status,omitempty"`
	Filename           string   `json:"filename,omitempty"`
	SuggestedQuestions []string `json:"suggested_questions,omitempty"`
}

// IngestURLRequest is the body of POST /api/ingest-url.
type IngestURLRequest struct {
	URL string `json:"url" validate:"required,http_url"`
}

// AudioResponse is returned by POST /api/audio-summary.
type AudioResponse struct {
	AudioURL string `json:"audio_url,omitempty"`
	Script   string `json:"script,omitempty"`
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// ClearResponse is returned by DELETE /api/clear.
type ClearResponse struct {
	Message string `json:"message"`
}

// ChatRecord is one line of the chat stream. The client decodes records
// in pkg/stream; the type is shared with the development server.
type ChatRecord struct {
	Token   *string                  `json:"token,omitempty"`
	Sources *[]conversation.Citation `json:"sources,omitempty"`
}
