// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/documind/pkg/conversation"
)

func TestInterpret(t *testing.T) {
	testCases := []struct {
		name   string
		record string
		want   []conversation.Delta
		reason string
	}{
		{
			name:   "token",
			record: `{"token":"Hello"}`,
			want:   []conversation.Delta{conversation.ContentDelta{Text: "Hello"}},
		},
		{
			name:   "token with trailing carriage return",
			record: "{\"token\":\" world\"}\r",
			want:   []conversation.Delta{conversation.ContentDelta{Text: " world"}},
		},
		{
			name:   "sources",
			record: `{"sources":[{"source":"a.pdf","page":3}]}`,
			want: []conversation.Delta{conversation.CitationSet{
				Citations: []conversation.Citation{{Source: "a.pdf", Page: 3}},
			}},
		},
		{
			name:   "empty sources clears",
			record: `{"sources":[]}`,
			want:   []conversation.Delta{conversation.CitationSet{Citations: []conversation.Citation{}}},
		},
		{
			name:   "both fields content first",
			record: `{"sources":[{"source":"b.pdf","page":1}],"token":"x"}`,
			want: []conversation.Delta{
				conversation.ContentDelta{Text: "x"},
				conversation.CitationSet{Citations: []conversation.Citation{{Source: "b.pdf", Page: 1}}},
			},
		},
		{
			name:   "page without metadata kept as sent",
			record: `{"sources":[{"source":"https://example.com/post","page":0}]}`,
			want: []conversation.Delta{conversation.CitationSet{
				Citations: []conversation.Citation{{Source: "https://example.com/post", Page: 0}},
			}},
		},
		{
			name:   "unknown fields ignored",
			record: `{"token":"t","debug":true}`,
			want:   []conversation.Delta{conversation.ContentDelta{Text: "t"}},
		},
		{name: "empty record", record: "", reason: ReasonBlank},
		{name: "whitespace record", record: " \t\r", reason: ReasonBlank},
		{name: "truncated json", record: `{"tok`, reason: ReasonMalformed},
		{name: "plain text", record: "hello", reason: ReasonMalformed},
		{name: "json array", record: `[{"token":"a"}]`, reason: ReasonMalformed},
		{name: "json string", record: `"token"`, reason: ReasonMalformed},
		{name: "token wrong type", record: `{"token":5}`, reason: ReasonMalformed},
		{name: "empty token", record: `{"token":""}`, reason: ReasonNoFields},
		{name: "null sources", record: `{"sources":null}`, reason: ReasonNoFields},
		{name: "empty object", record: `{}`, reason: ReasonNoFields},
		{name: "json null", record: `null`, reason: ReasonNoFields},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Interpret(tc.record)
			if tc.reason != "" {
				assert.False(t, got.Recognized())
				assert.Equal(t, tc.reason, got.Reason)
				assert.Empty(t, got.Deltas)
				return
			}
			require.True(t, got.Recognized())
			assert.Empty(t, got.Reason)
			assert.Equal(t, tc.want, got.Deltas)
		})
	}
}

func TestInterpret_EmptyTokenWithSourcesKeepsCitations(t *testing.T) {
	got := Interpret(`{"token":"","sources":[{"source":"c.pdf","page":2}]}`)
	require.Len(t, got.Deltas, 1)
	assert.IsType(t, conversation.CitationSet{}, got.Deltas[0])
}
