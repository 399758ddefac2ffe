// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stream

import (
	"context"
	"errors"
	"io"
)

// DefaultChunkSize is the read size used when none is configured.
const DefaultChunkSize = 4096

// RecordCallback receives each framed record. Returning an error stops
// reading and the error is returned from Read.
type RecordCallback func(record string) error

// =============================================================================
// Record Reader
// =============================================================================

// RecordReader pulls chunks from an io.Reader and yields framed records.
//
// # Description
//
// Each RecordReader wraps exactly one response body and produces a finite
// sequence of records. The sequence ends with io.EOF after the last record,
// or with the read error that interrupted the body. Records already framed
// before a read error are still returned first.
//
// # Thread Safety
//
// Not safe for concurrent use. One goroutine owns the reader, which keeps
// records in arrival order.
//
// # Examples
//
//	rr := stream.NewRecordReader(resp.Body, 0)
//	for {
//	    record, err := rr.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    handle(record)
//	}
type RecordReader struct {
	src     io.Reader
	decoder *FrameDecoder
	chunk   []byte
	queue   []string
	err     error
	chunks  int
	bytes   int64
}

// NewRecordReader creates a reader over r. A chunkSize <= 0 uses
// DefaultChunkSize.
func NewRecordReader(r io.Reader, chunkSize int) *RecordReader {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &RecordReader{
		src:     r,
		decoder: NewFrameDecoder(),
		chunk:   make([]byte, chunkSize),
	}
}

// Next returns the next complete record.
//
// Returns io.EOF once the body is exhausted and every record has been
// returned. Any other error is the read failure of the underlying body.
func (rr *RecordReader) Next() (string, error) {
	for len(rr.queue) == 0 {
		if rr.err != nil {
			return "", rr.err
		}
		rr.fill()
	}

	record := rr.queue[0]
	rr.queue = rr.queue[1:]
	return record, nil
}

// Read drives Next until the body ends, invoking callback for each record.
//
// Returns nil when the body ended cleanly, ctx.Err() if the context was
// cancelled between records, the callback's error, or the read error.
func (rr *RecordReader) Read(ctx context.Context, callback RecordCallback) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		record, err := rr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := callback(record); err != nil {
			return err
		}
	}
}

// Chunks returns how many non-empty reads were made from the body.
func (rr *RecordReader) Chunks() int { return rr.chunks }

// BytesRead returns the total body bytes consumed.
func (rr *RecordReader) BytesRead() int64 { return rr.bytes }

// fill performs one read and queues the records it completed.
func (rr *RecordReader) fill() {
	n, err := rr.src.Read(rr.chunk)
	if n > 0 {
		rr.chunks++
		rr.bytes += int64(n)
		rr.queue = append(rr.queue, rr.decoder.Feed(rr.chunk[:n])...)
	}

	switch {
	case errors.Is(err, io.EOF):
		rr.queue = append(rr.queue, rr.decoder.Flush()...)
		rr.err = io.EOF
	case err != nil:
		// The unterminated tail is incomplete and is not emitted.
		rr.err = err
	}
}
