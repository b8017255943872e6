// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package stream

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeAll(t *testing.T, input string) ([]Event, *Decoder) {
	t.Helper()
	dec := NewDecoder(strings.NewReader(input))
	var out []Event
	for {
		ev, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return out, dec
		}
		require.NoError(t, err)
		out = append(out, ev)
	}
}

func TestDecoder_Frames(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Event
	}{
		{
			name:  "typed event",
			input: "event: task\ndata: {\"id\":\"abc\"}\n\n",
			want:  []Event{{Type: "task", Data: `{"id":"abc"}`}},
		},
		{
			name:  "default type is message",
			input: "data: hello\n\n",
			want:  []Event{{Type: EventMessage, Data: "hello"}},
		},
		{
			name:  "multi-line data joined with newline",
			input: "event: progress\ndata: line one\ndata: line two\n\n",
			want:  []Event{{Type: "progress", Data: "line one\nline two"}},
		},
		{
			name:  "crlf line endings",
			input: "event: title\r\ndata: {\"title\":\"T\"}\r\n\r\n",
			want:  []Event{{Type: "title", Data: `{"title":"T"}`}},
		},
		{
			name:  "lone cr line endings",
			input: "event: heartbeat\rdata: x\r\r",
			want:  []Event{{Type: "heartbeat", Data: "x"}},
		},
		{
			name:  "comments are skipped",
			input: ": keepalive\n\nevent: heartbeat\n: inline\ndata:\n\n",
			want:  []Event{{Type: "heartbeat", Data: ""}},
		},
		{
			name:  "event without data still dispatches",
			input: "event: done\n\n",
			want:  []Event{{Type: "done"}},
		},
		{
			name:  "value without leading space",
			input: "event:main\ndata:{\"url\":\"u\"}\n\n",
			want:  []Event{{Type: "main", Data: `{"url":"u"}`}},
		},
		{
			name:  "only first space stripped",
			input: "data:  padded\n\n",
			want:  []Event{{Type: EventMessage, Data: " padded"}},
		},
		{
			name:  "unknown fields ignored",
			input: "foo: bar\nevent: x\n\n",
			want:  []Event{{Type: "x"}},
		},
		{
			name:  "id is carried",
			input: "id: 7\nevent: progress\ndata: a\n\nevent: progress\ndata: b\n\n",
			want: []Event{
				{Type: "progress", Data: "a", ID: "7"},
				{Type: "progress", Data: "b", ID: "7"},
			},
		},
		{
			name:  "partial trailing frame discarded",
			input: "event: progress\ndata: a\n\nevent: main\ndata: {\"url\":\"u\"}",
			want:  []Event{{Type: "progress", Data: "a"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := decodeAll(t, tt.input)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("events mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecoder_Retry(t *testing.T) {
	_, dec := decodeAll(t, "retry: 2500\n\nretry: nope\n\n")
	assert.Equal(t, 2500*time.Millisecond, dec.Retry())
}

func TestDecoder_LastEventID(t *testing.T) {
	_, dec := decodeAll(t, "id: 1\nevent: a\n\nid: 2\nevent: b\n\n")
	assert.Equal(t, "2", dec.LastEventID())
}

func TestDecoder_LineTooLong(t *testing.T) {
	dec := NewDecoder(strings.NewReader("data: " + strings.Repeat("x", maxLineBytes+1) + "\n\n"))
	_, err := dec.Next()
	assert.ErrorIs(t, err, ErrLineTooLong)
}
