// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package conversation holds the ordered chat history shown to the user.
//
// # Description
//
// The Store is the single source of truth for the transcript. Messages are
// appended in pairs (a user message, then an assistant placeholder) and the
// placeholder is grown by deltas while a response streams in. Only the last
// message may change, and only while it is an assistant message that has
// not been finalized.
//
// Observers receive deep-copied snapshots, so a renderer can read the
// transcript at any instant, including mid-stream, without locking.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Observer callbacks run
// synchronously on the mutating goroutine, after the store lock is
// released, in mutation order.
package conversation

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrInvalidState is returned when an operation does not fit the
	// current shape of the history.
	ErrInvalidState = errors.New("invalid conversation state")

	// ErrOutOfRange is returned when a delta targets any message other
	// than the last one.
	ErrOutOfRange = errors.New("message index out of range")
)

// =============================================================================
// Data Model
// =============================================================================

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Citation points at the document location that backs an answer.
type Citation struct {
	Source string `json:"source"`
	Page   int    `json:"page"`
}

// Message is one entry of the transcript.
//
// Content only grows while the message streams. Sources is replaced as a
// whole whenever a citation set arrives. Final messages never change.
type Message struct {
	Role    Role       `json:"role"`
	Content string     `json:"content"`
	Sources []Citation `json:"sources,omitempty"`
	Final   bool       `json:"final"`
}

// Snapshot is an immutable copy of the history.
//
// Version increases by one for every mutation, which lets renderers skip
// work when nothing changed.
type Snapshot struct {
	Version  uint64
	Messages []Message
}

// Last returns the final message of the snapshot, if any.
func (s Snapshot) Last() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// Observer is called with a snapshot after every mutation. Observers must
// not mutate the store they are subscribed to, and must treat the snapshot
// as read-only since it is shared between observers.
type Observer func(Snapshot)

// =============================================================================
// Deltas
// =============================================================================

// Delta is an incremental change to the in-progress assistant message.
//
// The set of deltas is closed: ContentDelta and CitationSet.
type Delta interface {
	apply(m *Message)
}

// ContentDelta appends Text to the message content.
type ContentDelta struct {
	Text string
}

func (d ContentDelta) apply(m *Message) {
	m.Content += d.Text
}

// CitationSet replaces the message sources wholesale. An empty set clears
// them.
type CitationSet struct {
	Citations []Citation
}

func (d CitationSet) apply(m *Message) {
	m.Sources = cloneCitations(d.Citations)
	if m.Sources == nil {
		m.Sources = []Citation{}
	}
}

// =============================================================================
// Store
// =============================================================================

// Store is the ordered conversation history.
type Store struct {
	mu        sync.Mutex
	messages  []Message
	version   uint64
	observers map[int]Observer
	nextID    int

	// notifyMu serializes observer delivery so snapshots arrive in
	// mutation order even when writers race.
	notifyMu sync.Mutex
}

// NewStore returns an empty history.
func NewStore() *Store {
	return &Store{observers: make(map[int]Observer)}
}

// AppendUser appends a finalized user message and returns its index.
func (s *Store) AppendUser(text string) int {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.messages = append(s.messages, Message{Role: RoleUser, Content: text, Final: true})
	index := len(s.messages) - 1
	snap, observers := s.commitLocked()
	s.mu.Unlock()

	notify(observers, snap)
	return index
}

// AppendAssistantPlaceholder appends an empty, open assistant message.
//
// The previous message must be a user message; the history always
// alternates user then assistant.
func (s *Store) AppendAssistantPlaceholder() (int, error) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	n := len(s.messages)
	if n == 0 || s.messages[n-1].Role != RoleUser {
		s.mu.Unlock()
		return -1, fmt.Errorf("%w: assistant placeholder must follow a user message", ErrInvalidState)
	}
	s.messages = append(s.messages, Message{Role: RoleAssistant})
	snap, observers := s.commitLocked()
	s.mu.Unlock()

	notify(observers, snap)
	return n, nil
}

// ApplyDelta applies deltas, in order, to the message at index as one
// mutation. Observers see a single snapshot containing all of them.
//
// # Errors
//
//   - ErrOutOfRange if index is not the last message.
//   - ErrInvalidState if the last message is a user message or final.
func (s *Store) ApplyDelta(index int, deltas ...Delta) error {
	if len(deltas) == 0 {
		return nil
	}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	msg, err := s.openLocked(index)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	for _, delta := range deltas {
		delta.apply(msg)
	}
	snap, observers := s.commitLocked()
	s.mu.Unlock()

	notify(observers, snap)
	return nil
}

// Finalize marks the message at index as complete. Finalizing a message
// that is already final is a no-op.
func (s *Store) Finalize(index int) error {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if index < 0 || index != len(s.messages)-1 {
		s.mu.Unlock()
		return fmt.Errorf("%w: finalize index %d with %d messages", ErrOutOfRange, index, len(s.messages))
	}
	if s.messages[index].Final {
		s.mu.Unlock()
		return nil
	}
	s.messages[index].Final = true
	snap, observers := s.commitLocked()
	s.mu.Unlock()

	notify(observers, snap)
	return nil
}

// Reset removes every message.
func (s *Store) Reset() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.messages = nil
	snap, observers := s.commitLocked()
	s.mu.Unlock()

	notify(observers, snap)
}

// Len returns the number of messages.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Snapshot returns a deep copy of the history.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn for every subsequent mutation and returns a
// function that removes it.
func (s *Store) Subscribe(fn Observer) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

// openLocked returns the last message if it can accept deltas.
func (s *Store) openLocked(index int) (*Message, error) {
	if index < 0 || index != len(s.messages)-1 {
		return nil, fmt.Errorf("%w: delta for index %d with %d messages", ErrOutOfRange, index, len(s.messages))
	}
	msg := &s.messages[index]
	if msg.Role != RoleAssistant {
		return nil, fmt.Errorf("%w: message %d is a %s message", ErrInvalidState, index, msg.Role)
	}
	if msg.Final {
		return nil, fmt.Errorf("%w: message %d is final", ErrInvalidState, index)
	}
	return msg, nil
}

// commitLocked bumps the version and captures what observers need.
func (s *Store) commitLocked() (Snapshot, []Observer) {
	s.version++
	if len(s.observers) == 0 {
		return Snapshot{}, nil
	}

	ids := make([]int, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	observers := make([]Observer, 0, len(ids))
	for _, id := range ids {
		observers = append(observers, s.observers[id])
	}
	return s.snapshotLocked(), observers
}

func (s *Store) snapshotLocked() Snapshot {
	messages := make([]Message, len(s.messages))
	for i, m := range s.messages {
		m.Sources = cloneCitations(m.Sources)
		messages[i] = m
	}
	return Snapshot{Version: s.version, Messages: messages}
}

func notify(observers []Observer, snap Snapshot) {
	for _, fn := range observers {
		fn(snap)
	}
}

func cloneCitations(in []Citation) []Citation {
	if in == nil {
		return nil
	}
	out := make([]Citation, len(in))
	copy(out, in)
	return out
}
