// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package session owns one DocuMind chat session.
//
// The Controller drives the streaming chat request and the side channels
// around it (models, ingestion, audio), and is the only writer of the
// conversation store and of the session State.
//
//	REPL ──Submit──▶ Controller ──OpenChatStream──▶ api.Client
//	                     │
//	                     ├── stream.RecordReader ─▶ stream.Interpret
//	                     │
//	                     └── conversation.Store.ApplyDelta ─▶ observers (renderer)
//
// # Ordering
//
// One goroutine, the Submit caller, consumes a stream. Each record is
// framed, interpreted and applied before the next read, so deltas land in
// arrival order and observers see every intermediate state.
//
// # Single Flight
//
// At most one chat stream and one audio generation run at a time. Extra
// requests are rejected, never queued.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/AleutianAI/documind/cmd/documind/internal/api"
	"github.com/AleutianAI/documind/cmd/documind/internal/telemetry"
	"github.com/AleutianAI/documind/pkg/conversation"
	"github.com/AleutianAI/documind/pkg/stream"
)

// =============================================================================
// INTERFACES
// =============================================================================

// Backend is the part of api.Client the controller uses.
type Backend interface {
	OpenChatStream(ctx context.Context, req api.ChatRequest) (io.ReadCloser, error)
	ListModels(ctx context.Context) ([]string, error)
	IngestFile(ctx context.Context, filename string, r io.Reader) (*api.IngestResponse, error)
	IngestURL(ctx context.Context, rawURL string) (*api.IngestResponse, error)
	AudioSummary(ctx context.Context) (*api.AudioResponse, error)
	Clear(ctx context.Context) (*api.ClearResponse, error)
}

var _ Backend = (*api.Client)(nil)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config configures a Controller. Only SessionID is required.
type Config struct {
	// SessionID is sent with every chat request.
	SessionID string

	// PreferredModelMarker selects the default model from a fresh list.
	PreferredModelMarker string

	// Model pins the selected model. A pinned model survives refreshes.
	Model string

	// ChunkSize is the body read size. Default: stream.DefaultChunkSize.
	ChunkSize int

	// StreamIdleTimeout aborts a stream that yields no bytes for this long.
	// Zero disables it.
	StreamIdleTimeout time.Duration

	// Metrics is optional.
	Metrics *telemetry.StreamingMetrics

	// OpenFile opens documents for ingestion. Default: os.Open.
	OpenFile func(path string) (io.ReadCloser, error)
}

// Result describes a completed chat stream.
type Result struct {
	RequestID string

	// MessageIndex is the store index of the assistant message.
	MessageIndex int

	Content string
	Sources []conversation.Citation

	// Records counts framed records; Dropped counts the unrecognized ones.
	Records int
	Dropped int

	Chunks int
	Bytes  int64

	TimeToFirstToken time.Duration
	Duration         time.Duration
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller is the stream session controller.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Submit blocks for the life of
// the stream; Cancel, State and side-channel operations may be called from
// other goroutines meanwhile.
type Controller struct {
	backend Backend
	store   *conversation.Store
	cfg     Config
	tracer  trace.Tracer
	metrics *telemetry.StreamingMetrics

	chatSem  *semaphore.Weighted
	audioSem *semaphore.Weighted

	mu            sync.Mutex
	state         State
	explicitModel bool
	cancelStream  context.CancelCauseFunc
	watchers      map[int]func(State)
	nextWatcher   int

	notifyMu sync.Mutex
}

// NewController creates an idle controller writing into store.
func NewController(backend Backend, store *conversation.Store, cfg Config) (*Controller, error) {
	if backend == nil || store == nil {
		return nil, errors.New("session: backend and store are required")
	}
	if strings.TrimSpace(cfg.SessionID) == "" {
		return nil, errors.New("session: session id is required")
	}
	if cfg.OpenFile == nil {
		cfg.OpenFile = func(path string) (io.ReadCloser, error) { return os.Open(path) }
	}

	c := &Controller{
		backend:  backend,
		store:    store,
		cfg:      cfg,
		tracer:   otel.Tracer("github.com/AleutianAI/documind/session"),
		metrics:  cfg.Metrics,
		chatSem:  semaphore.NewWeighted(1),
		audioSem: semaphore.NewWeighted(1),
		watchers: make(map[int]func(State)),
		state:    State{Phase: PhaseIdle, CurrentPage: 1},
	}
	if cfg.Model != "" {
		c.state.SelectedModel = cfg.Model
		c.explicitModel = true
	}
	return c, nil
}

// Store returns the conversation the controller writes to.
func (c *Controller) Store() *conversation.Store {
	return c.store
}

// SessionID returns the identifier sent with chat requests.
func (c *Controller) SessionID() string {
	return c.cfg.SessionID
}

// State returns a copy of the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Watch registers fn for every state change and returns a function that
// removes it. fn runs on the goroutine that made the change and must not
// call back into mutating controller methods.
func (c *Controller) Watch(fn func(State)) (unwatch func()) {
	c.mu.Lock()
	id := c.nextWatcher
	c.nextWatcher++
	c.watchers[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.watchers, id)
			c.mu.Unlock()
		})
	}
}

// =============================================================================
// CHAT
// =============================================================================

// Submit sends text and consumes the streamed answer.
//
// # Description
//
// Submit blocks until the stream ends. The user message and the assistant
// placeholder are appended only once the backend has accepted the request,
// so a transport failure leaves the conversation untouched. Each record is
// applied to the placeholder as it arrives; the placeholder is finalized
// when the stream ends, whether cleanly or not.
//
// # Inputs
//
//   - ctx: bounds the whole exchange. Cancelling it behaves like Cancel.
//   - text: the question. Surrounding whitespace is trimmed.
//
// # Outputs
//
//   - *Result: the final message and stream statistics. Also returned,
//     alongside a *StreamError, when a stream ends abnormally.
//   - error: ErrEmptyMessage, ErrBusy or ErrNoModel with no state change;
//     *api.TransportError if no stream was established; *StreamError if
//     the stream broke, went idle or was cancelled.
//
// # Examples
//
//	result, err := ctrl.Submit(ctx, "What is X?")
//	var streamErr *session.StreamError
//	if errors.As(err, &streamErr) {
//	    // partial answer is in result.Content
//	}
func (c *Controller) Submit(ctx context.Context, text string) (*Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if !c.chatSem.TryAcquire(1) {
		return nil, ErrBusy
	}
	defer c.chatSem.Release(1)

	model := c.State().SelectedModel
	if model == "" {
		return nil, ErrNoModel
	}

	requestID := uuid.NewString()
	logger := slog.With("request_id", requestID, "session_id", c.cfg.SessionID)

	streamCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	streamCtx, span := c.tracer.Start(streamCtx, "session.Submit", trace.WithAttributes(
		attribute.String("documind.request_id", requestID),
		attribute.String("documind.model", model),
		attribute.Int("documind.message_chars", len(text)),
	))
	defer span.End()

	start := time.Now()
	c.update(func(s *State) {
		s.Phase = PhaseRequesting
		s.IsStreaming = true
		s.RequestID = requestID
		s.LastError = ""
	}, func() { c.cancelStream = cancel })

	logger.Info("chat request started", "model", model)

	body, err := c.backend.OpenChatStream(streamCtx, api.ChatRequest{
		Message:   text,
		SessionID: c.cfg.SessionID,
		Model:     model,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chat request failed")
		if cause := context.Cause(streamCtx); cause != nil {
			c.metrics.RecordRequest(telemetry.EndpointChat, telemetry.OutcomeCancelled)
			c.finish(PhaseIdle, cause)
			logger.Info("chat request cancelled before the stream opened")
			return nil, err
		}
		c.metrics.RecordRequest(telemetry.EndpointChat, telemetry.OutcomeTransport)
		c.finish(PhaseFailed, err)
		logger.Error("chat request failed", "error", err)
		return nil, err
	}
	defer body.Close()

	// Closing the body unblocks a pending read when the stream is cancelled.
	stopClose := context.AfterFunc(streamCtx, func() { _ = body.Close() })
	defer stopClose()

	var src io.Reader = body
	if c.cfg.StreamIdleTimeout > 0 {
		watchdog := newIdleWatchdog(body, c.cfg.StreamIdleTimeout, func() { cancel(ErrStreamIdle) })
		defer watchdog.Stop()
		src = watchdog
	}

	c.store.AppendUser(text)
	index, err := c.store.AppendAssistantPlaceholder()
	if err != nil {
		// Only reachable if something else wrote to the store.
		c.finish(PhaseFailed, err)
		return nil, fmt.Errorf("open assistant message: %w", err)
	}
	c.update(func(s *State) { s.Phase = PhaseStreaming }, nil)
	c.metrics.StreamStarted()

	result := &Result{RequestID: requestID, MessageIndex: index}
	reader := stream.NewRecordReader(src, c.cfg.ChunkSize)
	applied := 0

	readErr := reader.Read(streamCtx, func(record string) error {
		result.Records++
		interp := stream.Interpret(record)
		if !interp.Recognized() {
			result.Dropped++
			c.metrics.RecordDropped(interp.Reason)
			logger.Debug("dropping unrecognized record", "reason", interp.Reason, "record_bytes", len(record))
			return nil
		}

		c.metrics.RecordStreamRecord(recordKind(interp))
		if result.TimeToFirstToken == 0 && hasContent(interp) {
			result.TimeToFirstToken = time.Since(start)
			c.metrics.RecordTimeToFirstToken(result.TimeToFirstToken.Seconds())
		}
		if err := c.store.ApplyDelta(index, interp.Deltas...); err != nil {
			return fmt.Errorf("apply record: %w", err)
		}
		applied++
		return nil
	})

	if err := c.store.Finalize(index); err != nil {
		logger.Warn("finalize assistant message failed", "error", err)
	}

	snap := c.store.Snapshot()
	if index < len(snap.Messages) {
		result.Content = snap.Messages[index].Content
		result.Sources = snap.Messages[index].Sources
	}
	result.Chunks = reader.Chunks()
	result.Bytes = reader.BytesRead()
	result.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Int("documind.records", result.Records),
		attribute.Int("documind.dropped", result.Dropped),
		attribute.Int64("documind.bytes", result.Bytes),
	)

	if readErr == nil {
		c.metrics.RecordRequest(telemetry.EndpointChat, telemetry.OutcomeSuccess)
		c.metrics.StreamEnded(telemetry.OutcomeSuccess, result.Duration.Seconds(), result.Bytes)
		c.finish(PhaseIdle, nil)
		logger.Info("chat stream completed",
			"records", result.Records,
			"dropped", result.Dropped,
			"content_chars", len(result.Content),
			"sources", len(result.Sources),
			"duration_ms", result.Duration.Milliseconds(),
		)
		return result, nil
	}

	cause := readErr
	if ctxCause := context.Cause(streamCtx); ctxCause != nil {
		cause = ctxCause
	}
	streamErr := &StreamError{RequestID: requestID, Applied: applied, Err: cause}
	span.RecordError(streamErr)

	if errors.Is(cause, context.Canceled) {
		c.metrics.RecordRequest(telemetry.EndpointChat, telemetry.OutcomeCancelled)
		c.metrics.StreamEnded(telemetry.OutcomeCancelled, result.Duration.Seconds(), result.Bytes)
		c.finish(PhaseIdle, streamErr)
		logger.Info("chat stream cancelled", "applied", applied)
		return result, streamErr
	}

	span.SetStatus(codes.Error, "stream interrupted")
	c.metrics.RecordRequest(telemetry.EndpointChat, telemetry.OutcomeStream)
	c.metrics.StreamEnded(telemetry.OutcomeStream, result.Duration.Seconds(), result.Bytes)
	c.finish(PhaseFailed, streamErr)
	logger.Error("chat stream interrupted", "applied", applied, "error", cause)
	return result, streamErr
}

// Cancel stops the in-flight chat request or stream.
//
// Partial content stays in the conversation and is finalized. Submit
// returns once the controller is back to Idle. Returns false when nothing
// was in flight.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	cancel := c.cancelStream
	c.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel(nil)
	return true
}

// Reset clears the conversation, the active document, suggested
// questions, audio and the current page. The selected model and model
// list are kept. Rejected with ErrBusy while a stream is in flight.
func (c *Controller) Reset() error {
	if !c.chatSem.TryAcquire(1) {
		return ErrBusy
	}
	defer c.chatSem.Release(1)

	c.store.Reset()
	c.update(func(s *State) {
		s.ActiveDocument = ""
		s.SuggestedQuestions = nil
		s.AudioURL = ""
		s.AudioScript = ""
		s.CurrentPage = 1
		s.LastError = ""
	}, nil)
	slog.Info("session reset", "session_id", c.cfg.SessionID)
	return nil
}

// SetCurrentPage records the page being viewed.
func (c *Controller) SetCurrentPage(page int) error {
	if page < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidPage, page)
	}
	c.update(func(s *State) { s.CurrentPage = page }, nil)
	return nil
}

// =============================================================================
// INTERNAL
// =============================================================================

// update mutates state under the lock, runs locked (if any) while still
// holding it, and notifies watchers in order.
func (c *Controller) update(mutate func(*State), locked func()) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	mutate(&c.state)
	if locked != nil {
		locked()
	}
	snap := c.state.clone()
	watchers := c.sortedWatchersLocked()
	c.mu.Unlock()

	for _, fn := range watchers {
		fn(snap)
	}
}

// finish ends a chat request. A failure passes through PhaseFailed so
// watchers can observe it before the controller settles on Idle.
func (c *Controller) finish(phase Phase, err error) {
	if phase == PhaseFailed {
		c.update(func(s *State) {
			s.Phase = PhaseFailed
			s.IsStreaming = false
			s.LastError = err.Error()
		}, func() { c.cancelStream = nil })
	}
	c.update(func(s *State) {
		s.Phase = PhaseIdle
		s.IsStreaming = false
	}, func() { c.cancelStream = nil })
}

func (c *Controller) sortedWatchersLocked() []func(State) {
	if len(c.watchers) == 0 {
		return nil
	}
	out := make([]func(State), 0, len(c.watchers))
	for id := 0; id < c.nextWatcher; id++ {
		if fn, ok := c.watchers[id]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func recordKind(interp stream.Interpretation) telemetry.RecordKind {
	var content, sources bool
	for _, d := range interp.Deltas {
		switch d.(type) {
		case conversation.ContentDelta:
			content = true
		case conversation.CitationSet:
			sources = true
		}
	}
	switch {
	case content && sources:
		return telemetry.RecordBoth
	case sources:
		return telemetry.RecordSources
	default:
		return telemetry.RecordToken
	}
}

func hasContent(interp stream.Interpretation) bool {
	for _, d := range interp.Deltas {
		if _, ok := d.(conversation.ContentDelta); ok {
			return true
		}
	}
	return false
}

// =============================================================================
// IDLE WATCHDOG
// =============================================================================

// idleWatchdog fires onIdle when no Read returns within timeout.
type idleWatchdog struct {
	r       io.Reader
	timeout time.Duration
	timer   *time.Timer
}

func newIdleWatchdog(r io.Reader, timeout time.Duration, onIdle func()) *idleWatchdog {
	return &idleWatchdog{
		r:       r,
		timeout: timeout,
		timer:   time.AfterFunc(timeout, onIdle),
	}
}

func (w *idleWatchdog) Read(p []byte) (int, error) {
	n, err := w.r.Read(p)
	if n > 0 {
		w.timer.Reset(w.timeout)
	}
	return n, err
}

// Stop disarms the watchdog.
func (w *idleWatchdog) Stop() {
	w.timer.Stop()
}
