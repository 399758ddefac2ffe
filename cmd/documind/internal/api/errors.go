// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package api

import (
	"errors"
	"fmt"
)

var (
	// ErrUnexpectedStatus marks a response outside the 2xx range.
	ErrUnexpectedStatus = errors.New("unexpected status")

	// ErrNoBody marks a successful chat response without a body to stream.
	ErrNoBody = errors.New("response has no body")

	// ErrInvalidURL is returned before any request when an ingest URL is
	// not an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid url")
)

// TransportError reports a request that did not produce a usable response:
// the connection failed, the status was not 2xx, or the body was missing
// or undecodable.
//
// # Fields
//
//   - Op: the client operation, e.g. "chat", "ingest", "models"
//   - URL: the request URL
//   - StatusCode: the HTTP status, zero when no response arrived
//   - Body: the first bytes of an error response body, if any
//   - Err: the underlying cause
type TransportError struct {
	Op         string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		if e.Body != "" {
			return fmt.Sprintf("%s %s: server error (%d): %s", e.Op, e.URL, e.StatusCode, e.Body)
		}
		return fmt.Sprintf("%s %s: server error (%d)", e.Op, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err wraps a *TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

var _ error = (*TransportError)(nil)
