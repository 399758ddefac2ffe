// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package devserver

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/documind/cmd/documind/internal/api"
	"github.com/AleutianAI/documind/pkg/conversation"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// urlRequest mirrors api.IngestURLRequest with gin binding rules.
type urlRequest struct {
	URL string `json:"url" binding:"required,url"`
}

var webQuestions = []string{
	"What is the main topic of this page?",
	"Summarize the key points.",
	"What are the conclusions?",
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{Status: "healthy", Service: serviceName})
}

func (s *Server) handleModels(c *gin.Context) {
	c.JSON(http.StatusOK, api.ModelsResponse{Models: visibleModels(s.cfg.Models)})
}

// handleIngest accepts one or more PDFs in the "files" field. Non-PDF
// parts are skipped; a request with no PDF at all is rejected.
func (s *Server) handleIngest(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "expected a multipart form"})
		return
	}

	var accepted []string
	for _, fh := range form.File[api.IngestFormField] {
		if !strings.EqualFold(filepath.Ext(fh.Filename), ".pdf") {
			slog.Debug("skipping non-PDF upload", "filename", fh.Filename)
			continue
		}
		accepted = append(accepted, filepath.Base(fh.Filename))
	}
	if len(accepted) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "no PDF files in the upload"})
		return
	}

	document := accepted[len(accepted)-1]
	s.setDocument(document)
	slog.Info("document ingested", "document", document, "files", len(accepted))

	c.JSON(http.StatusOK, api.IngestResponse{
		Message:            "Ingestion started",
		FilesCount:         len(accepted),
		SuggestedQuestions: documentQuestions(document),
	})
}

func (s *Server) handleIngestURL(c *gin.Context) {
	var req urlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "a valid url is required"})
		return
	}

	filename := req.URL
	questions := webQuestions
	if strings.HasSuffix(strings.ToLower(req.URL), ".pdf") {
		filename = "downloaded_document.pdf"
		if u, err := url.Parse(req.URL); err == nil {
			if base := path.Base(u.Path); base != "/" && base != "." {
				filename = base
			}
		}
		questions = documentQuestions(filename)
	}

	s.setDocument(filename)
	slog.Info("url ingested", "url", req.URL, "document", filename)

	c.JSON(http.StatusOK, api.IngestResponse{
		Status:             "processing",
		Filename:           filename,
		SuggestedQuestions: append([]string(nil), questions...),
	})
}

// handleChat streams the answer one word at a time, then the sources when
// a document is active.
func (s *Server) handleChat(c *gin.Context) {
	var req api.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "message is required"})
		return
	}
	if req.Model != "" && !contains(s.cfg.Models, req.Model) {
		c.JSON(http.StatusNotFound, gin.H{"detail": fmt.Sprintf("model %q not found", req.Model)})
		return
	}

	document := s.Document()
	answer := s.cfg.Answer(req.Message, document)

	SetNDJSONHeaders(c.Writer)
	c.Status(http.StatusOK)
	w, err := NewNDJSONWriter(c.Writer, s.limiter())
	if err != nil {
		slog.Error("streaming unsupported", "error", err)
		return
	}

	ctx := c.Request.Context()
	for _, tok := range Tokenize(answer) {
		if err := w.WriteToken(ctx, tok); err != nil {
			slog.Info("chat stream aborted", "session_id", req.SessionID, "error", err)
			return
		}
	}
	if document != "" {
		if err := w.WriteSources([]conversation.Citation{{Source: document, Page: 1}}); err != nil {
			slog.Info("chat stream aborted", "session_id", req.SessionID, "error", err)
		}
	}
}

func (s *Server) handleAudioSummary(c *gin.Context) {
	document := s.Document()
	if document == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "no document has been ingested"})
		return
	}

	name := fmt.Sprintf("summary_%s.wav", uuid.New().String())
	s.mu.Lock()
	s.audio[name] = silentWAV(8000, 4000)
	s.mu.Unlock()

	c.JSON(http.StatusOK, api.AudioResponse{
		AudioURL: "/static/" + name,
		Script:   fmt.Sprintf("Welcome back! Today we are looking at %s.\nHere are the key takeaways.", document),
	})
}

func (s *Server) handleStatic(c *gin.Context) {
	s.mu.Lock()
	data, ok := s.audio[c.Param("name")]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "not found"})
		return
	}
	c.Data(http.StatusOK, "audio/wav", data)
}

func (s *Server) handleClear(c *gin.Context) {
	s.setDocument("")
	c.JSON(http.StatusOK, api.ClearResponse{Message: "Vector database cleared"})
}

func (s *Server) setDocument(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.document = name
}

// CannedAnswer is the default AnswerFunc.
func CannedAnswer(message, document string) string {
	if document == "" {
		return "I don't know yet. Ingest a document and ask again."
	}
	return fmt.Sprintf("Based on %s, the short answer to %q is that it is covered on the first page.", document, strings.TrimSpace(message))
}

// Tokenize splits text into word tokens that keep their trailing spaces,
// so concatenating the tokens gives text back.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	return strings.SplitAfter(text, " ")
}

func documentQuestions(document string) []string {
	name := strings.TrimSuffix(document, filepath.Ext(document))
	return []string{
		fmt.Sprintf("What is %s about?", name),
		"Who is the intended audience?",
		"What are the key takeaways?",
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// silentWAV returns a mono 8-bit PCM WAV file of n silent samples.
func silentWAV(sampleRate, n int) []byte {
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+n))
	buf.WriteString("WAVEfmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(8))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(n))
	buf.Write(bytes.Repeat([]byte{0x80}, n))
	return buf.Bytes()
}
