// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package stream turns a chat response body into conversation deltas.
//
// The package is split the same way the CLI pipeline is:
//
//	HTTP Response Body → FrameDecoder → RecordReader → Interpret → conversation.Delta
//
// FrameDecoder only frames. It converts arbitrarily split byte chunks into
// complete newline-delimited records. RecordReader does the I/O around it,
// and Interpret converts one record into zero or more deltas.
//
// # Framing
//
// Transport chunk boundaries carry no meaning. A record may be split across
// any number of chunks, including in the middle of a multi-byte UTF-8
// character, and one chunk may carry several records. The decoder keeps a
// carry-over buffer of text after the last newline and a stateful UTF-8
// decoder that holds back incomplete byte sequences until the next chunk.
//
// # Thread Safety
//
// FrameDecoder and RecordReader hold per-stream state and must be used by a
// single goroutine. Interpret is stateless.
package stream

import (
	"errors"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// =============================================================================
// Frame Decoder
// =============================================================================

// decodeBufferSize is the scratch size for one Transform call.
const decodeBufferSize = 4096

// FrameDecoder converts a sequence of byte chunks into newline-terminated
// text records.
//
// # Description
//
// Feed accepts the next chunk and returns every record completed by it.
// Flush marks the end of input and returns the trailing record, if any.
// Records are returned without their terminating "\n" and are otherwise
// byte-identical to the decoded text; a "\r" before the newline is kept.
//
// # Invariants
//
//   - Concatenating all records (each followed by "\n", the last possibly
//     not) reproduces the decoded input exactly.
//   - No record is emitted before its terminating newline arrives, except
//     the final one on Flush.
//   - Invalid byte sequences decode to U+FFFD; framing never fails.
//
// # Examples
//
//	dec := stream.NewFrameDecoder()
//	dec.Feed([]byte(`{"tok`))          // nil
//	dec.Feed([]byte("en\":\"a\"}\n"))  // [`{"token":"a"}`]
//	dec.Flush()                         // nil
type FrameDecoder struct {
	decoder *encoding.Decoder
	pending []byte
	scratch []byte
	carry   strings.Builder
}

// NewFrameDecoder creates a decoder with an empty carry-over buffer.
func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{
		decoder: unicode.UTF8.NewDecoder(),
		scratch: make([]byte, decodeBufferSize),
	}
}

// Feed decodes chunk and returns the records it completed, in order.
//
// An empty or nil chunk returns nil. The returned slice is owned by the
// caller.
func (d *FrameDecoder) Feed(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}
	d.carry.WriteString(d.decode(chunk, false))
	return d.split()
}

// Flush ends the input.
//
// Bytes of an incomplete trailing UTF-8 sequence are emitted as U+FFFD and
// a non-empty carry-over is returned as the final record. After Flush the
// decoder is reset and may be reused for a new stream.
func (d *FrameDecoder) Flush() []string {
	d.carry.WriteString(d.decode(nil, true))
	records := d.split()
	if d.carry.Len() > 0 {
		records = append(records, d.carry.String())
		d.carry.Reset()
	}
	d.pending = d.pending[:0]
	d.decoder.Reset()
	return records
}

// Buffered reports the number of decoded characters held after the last
// newline plus any undecoded bytes. Used by diagnostics only.
func (d *FrameDecoder) Buffered() int {
	return d.carry.Len() + len(d.pending)
}

// decode runs the stateful decoder over pending bytes plus src.
//
// Bytes that end in an incomplete sequence stay in pending until more
// input arrives or atEOF is set.
func (d *FrameDecoder) decode(src []byte, atEOF bool) string {
	d.pending = append(d.pending, src...)

	var out strings.Builder
	for {
		nDst, nSrc, err := d.decoder.Transform(d.scratch, d.pending, atEOF)
		out.Write(d.scratch[:nDst])
		d.pending = d.pending[nSrc:]
		if errors.Is(err, transform.ErrShortDst) && (nDst > 0 || nSrc > 0) {
			continue
		}
		// nil or ErrShortSrc: the remainder waits for the next chunk.
		break
	}

	// Keep the backing array from growing without bound.
	if len(d.pending) == 0 {
		d.pending = nil
	}
	return out.String()
}

// split moves every complete line out of the carry-over buffer.
func (d *FrameDecoder) split() []string {
	text := d.carry.String()
	last := strings.LastIndexByte(text, '\n')
	if last < 0 {
		return nil
	}

	records := strings.Split(text[:last], "\n")
	d.carry.Reset()
	d.carry.WriteString(text[last+1:])
	return records
}
