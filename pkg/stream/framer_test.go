// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stream

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// feedAll runs chunks through a fresh decoder and returns every record,
// including the ones produced by Flush.
func feedAll(chunks ...[]byte) []string {
	dec := NewFrameDecoder()
	var records []string
	for _, c := range chunks {
		records = append(records, dec.Feed(c)...)
	}
	return append(records, dec.Flush()...)
}

// splitAt cuts data at the given byte offsets.
func splitAt(data []byte, offsets ...int) [][]byte {
	var chunks [][]byte
	prev := 0
	for _, off := range offsets {
		chunks = append(chunks, data[prev:off])
		prev = off
	}
	return append(chunks, data[prev:])
}

func TestFrameDecoder_SingleChunk(t *testing.T) {
	records := feedAll([]byte("{\"token\":\"a\"}\n{\"token\":\"b\"}\n"))
	assert.Equal(t, []string{`{"token":"a"}`, `{"token":"b"}`}, records)
}

func TestFrameDecoder_RecordSplitAcrossChunks(t *testing.T) {
	dec := NewFrameDecoder()

	assert.Empty(t, dec.Feed([]byte(`{"tok`)))
	assert.Equal(t, 5, dec.Buffered())
	assert.Equal(t, []string{`{"token":"a"}`}, dec.Feed([]byte("en\":\"a\"}\n")))
	assert.Empty(t, dec.Flush())
}

func TestFrameDecoder_TailWithoutNewlineEmittedOnFlush(t *testing.T) {
	dec := NewFrameDecoder()

	assert.Equal(t, []string{`{"token":"a"}`}, dec.Feed([]byte("{\"token\":\"a\"}\n{\"token\":\"b\"}")))
	assert.Equal(t, []string{`{"token":"b"}`}, dec.Flush())
}

func TestFrameDecoder_EmptyInput(t *testing.T) {
	dec := NewFrameDecoder()
	assert.Nil(t, dec.Feed(nil))
	assert.Nil(t, dec.Feed([]byte{}))
	assert.Empty(t, dec.Flush())
}

func TestFrameDecoder_KeepsCarriageReturnAndBlankRecords(t *testing.T) {
	records := feedAll([]byte("{\"token\":\"a\"}\r\n\n{\"token\":\"b\"}\n"))
	assert.Equal(t, []string{"{\"token\":\"a\"}\r", "", `{"token":"b"}`}, records)
}

func TestFrameDecoder_MultiByteCharacterSplit(t *testing.T) {
	// "é" is 0xC3 0xA9 and "€" is 0xE2 0x82 0xAC.
	input := []byte("{\"token\":\"café €\"}\n")
	want := []string{`{"token":"café €"}`}

	for cut := 1; cut < len(input); cut++ {
		records := feedAll(splitAt(input, cut)...)
		require.Equal(t, want, records, "cut at byte %d", cut)
	}
}

func TestFrameDecoder_EveryByteSeparately(t *testing.T) {
	input := []byte("{\"token\":\"日本\"}\n{\"sources\":[]}\n")
	var chunks [][]byte
	for i := range input {
		chunks = append(chunks, input[i:i+1])
	}

	records := feedAll(chunks...)
	assert.Equal(t, []string{`{"token":"日本"}`, `{"sources":[]}`}, records)
}

func TestFrameDecoder_ChunkingIsInvisible(t *testing.T) {
	input := []byte(strings.Repeat("{\"token\":\"ü→x\"}\n", 20) + "{\"sources\":[{\"source\":\"a.pdf\",\"page\":1}]}")
	want := feedAll(input)
	require.Len(t, want, 21)

	testCases := []struct {
		name    string
		offsets []int
	}{
		{"two halves", []int{len(input) / 2}},
		{"three pieces", []int{7, 130}},
		{"many small", []int{1, 2, 3, 11, 12, 13, 14, 50, 51, 200, 201, 202}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, want, feedAll(splitAt(input, tc.offsets...)...))
		})
	}
}

func TestFrameDecoder_InvalidBytesBecomeReplacement(t *testing.T) {
	records := feedAll([]byte("{\"token\":\"a\xffb\"}\n"))
	require.Len(t, records, 1)
	assert.Equal(t, "{\"token\":\"a�b\"}", records[0])
}

func TestFrameDecoder_TruncatedSequenceAtEOF(t *testing.T) {
	dec := NewFrameDecoder()
	assert.Empty(t, dec.Feed([]byte{'x', 0xE2, 0x82}))

	records := dec.Flush()
	require.Len(t, records, 1)
	assert.True(t, strings.HasPrefix(records[0], "x"))
	assert.Contains(t, records[0], "�")
}

func TestFrameDecoder_ReusableAfterFlush(t *testing.T) {
	dec := NewFrameDecoder()
	dec.Feed([]byte("partial"))
	assert.Equal(t, []string{"partial"}, dec.Flush())

	assert.Equal(t, []string{"next"}, dec.Feed([]byte("next\n")))
	assert.Zero(t, dec.Buffered())
}

func TestFrameDecoder_LargeChunkExceedsScratch(t *testing.T) {
	token := strings.Repeat("ж", decodeBufferSize)
	records := feedAll([]byte("{\"token\":\"" + token + "\"}\n"))
	require.Len(t, records, 1)
	assert.Equal(t, "{\"token\":\""+token+"\"}", records[0])
}
