// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is the parent of every rejection caused by the
	// session not being able to accept an operation right now.
	ErrInvalidState = errors.New("invalid session state")

	// ErrBusy rejects a submission or reset while a stream is in flight.
	ErrBusy = fmt.Errorf("%w: a response is already streaming", ErrInvalidState)

	// ErrEmptyMessage rejects a message that is empty after trimming.
	ErrEmptyMessage = fmt.Errorf("%w: message is empty", ErrInvalidState)

	// ErrNoModel rejects a submission before any model is selected.
	ErrNoModel = fmt.Errorf("%w: no model selected", ErrInvalidState)

	// ErrAudioBusy rejects audio generation while one is running.
	ErrAudioBusy = fmt.Errorf("%w: audio generation already in progress", ErrInvalidState)

	// ErrUnknownModel rejects selecting a model the backend did not list.
	ErrUnknownModel = errors.New("unknown model")

	// ErrUnsupportedDocument rejects a non-PDF upload before any request.
	ErrUnsupportedDocument = errors.New("only PDF documents can be ingested")

	// ErrNoAudio reports a successful audio response without an audio_url.
	ErrNoAudio = errors.New("backend returned no audio")

	// ErrStreamIdle is the cause recorded when a stream produces no bytes
	// for longer than the configured idle timeout.
	ErrStreamIdle = errors.New("stream idle timeout")

	// ErrInvalidPage rejects a page number below 1.
	ErrInvalidPage = errors.New("page must be 1 or greater")
)

// StreamError reports a chat stream that was established and then ended
// abnormally: the body failed mid-read, the stream went idle, or it was
// cancelled. Content received before the failure is kept in the
// conversation.
type StreamError struct {
	RequestID string

	// Applied is the number of records applied before the stream ended.
	Applied int

	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream %s interrupted after %d records: %v", e.RequestID, e.Applied, e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

var _ error = (*StreamError)(nil)
