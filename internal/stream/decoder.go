// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package stream

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"
)

const maxLineBytes = 1 << 20

// ErrLineTooLong is returned when a single SSE line exceeds the decoder limit.
var ErrLineTooLong = errors.New("stream: line too long")

// Decoder reads text/event-stream frames.
type Decoder struct {
	r     *bufio.Reader
	last  string
	retry time.Duration
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(r, 64*1024)}
}

// LastEventID is the most recent id field seen.
func (d *Decoder) LastEventID() string { return d.last }

// Retry is the most recent reconnection hint, zero if none was sent.
func (d *Decoder) Retry() time.Duration { return d.retry }

// Next returns the next dispatched event. A frame is dispatched at a blank
// line when it carried an event type or data. io.EOF is returned when the
// body ends; a partial trailing frame is discarded.
func (d *Decoder) Next() (Event, error) {
	var (
		typ     string
		data    strings.Builder
		hasData bool
	)
	for {
		line, err := d.readLine()
		if err != nil {
			return Event{}, err
		}

		if line == "" {
			if typ == "" && !hasData {
				continue
			}
			if typ == "" {
				typ = EventMessage
			}
			return Event{Type: typ, Data: data.String(), ID: d.last}, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, found := strings.Cut(line, ":")
		if found {
			value = strings.TrimPrefix(value, " ")
		}
		switch field {
		case "event":
			typ = value
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		case "id":
			if !strings.ContainsRune(value, 0) {
				d.last = value
			}
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
				d.retry = time.Duration(ms) * time.Millisecond
			}
		}
	}
}

// readLine returns one line without its terminator. CRLF, LF and lone CR are
// all accepted.
func (d *Decoder) readLine() (string, error) {
	var sb strings.Builder
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) && sb.Len() > 0 {
				// unterminated last line can never complete a frame
				return "", io.EOF
			}
			return "", err
		}
		switch b {
		case '\n':
			return sb.String(), nil
		case '\r':
			if next, err := d.r.Peek(1); err == nil && next[0] == '\n' {
				_, _ = d.r.ReadByte()
			}
			return sb.String(), nil
		}
		if sb.Len() >= maxLineBytes {
			return "", ErrLineTooLong
		}
		sb.WriteByte(b)
	}
}
