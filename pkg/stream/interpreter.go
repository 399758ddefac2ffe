// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stream

import (
	"encoding/json"
	"strings"

	"github.com/AleutianAI/documind/pkg/conversation"
)

// =============================================================================
// Event Interpreter
// =============================================================================

// Interpretation is the result of interpreting one record.
//
// A record with no usable field yields an Interpretation with no deltas and
// Recognized() == false. Such records are dropped by the caller.
type Interpretation struct {
	// Deltas are applied in order as a single store mutation. When a
	// record carries both a token and sources, the content delta comes
	// first.
	Deltas []conversation.Delta

	// Reason explains why a record was not recognized. Empty otherwise.
	Reason string
}

// Recognized reports whether the record produced any delta.
func (i Interpretation) Recognized() bool {
	return len(i.Deltas) > 0
}

// Reasons reported for dropped records.
const (
	ReasonBlank     = "blank"
	ReasonMalformed = "malformed"
	ReasonNoFields  = "no_fields"
)

// wireRecord mirrors the chat body record. Pointers distinguish an absent
// field from an empty one.
type wireRecord struct {
	Token   *string                  `json:"token"`
	Sources *[]conversation.Citation `json:"sources"`
}

// Interpret converts one framed record into deltas.
//
// # Description
//
// Rules, applied to a single record:
//
//   - blank or whitespace-only → unrecognized
//   - not a JSON object → unrecognized
//   - "token" present and non-empty → ContentDelta
//   - "sources" present, including [] → CitationSet
//   - neither usable → unrecognized
//
// A "sources": null value counts as absent. Unknown fields are ignored.
// Citation pages are kept as sent; backends report 0 for chunks without
// page metadata, such as ingested web pages.
//
// # Examples
//
//	Interpret(`{"token":"Hi"}`)                       // ContentDelta{"Hi"}
//	Interpret(`{"sources":[{"source":"a.pdf","page":3}]}`) // CitationSet
//	Interpret(`{"tok`)                                // unrecognized
func Interpret(record string) Interpretation {
	if strings.TrimSpace(record) == "" {
		return Interpretation{Reason: ReasonBlank}
	}

	var raw wireRecord
	if err := json.Unmarshal([]byte(record), &raw); err != nil {
		return Interpretation{Reason: ReasonMalformed}
	}

	var deltas []conversation.Delta
	if raw.Token != nil && *raw.Token != "" {
		deltas = append(deltas, conversation.ContentDelta{Text: *raw.Token})
	}
	if raw.Sources != nil {
		deltas = append(deltas, conversation.CitationSet{Citations: *raw.Sources})
	}

	if len(deltas) == 0 {
		return Interpretation{Reason: ReasonNoFields}
	}
	return Interpretation{Deltas: deltas}
}
