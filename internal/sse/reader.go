// Package sse reads server-sent-event frames produced by the strivebot
// chat endpoints.
package sse

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"strivebot/internal/models"
)

const dataPrefix = "data: "

// Reader parses `data: <json>` frames from an event-stream body into
// StreamEvents. Frames that fail to parse are logged and skipped; they
// never abort the rest of the stream.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader wraps an event-stream body.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &Reader{scanner: scanner}
}

// Next returns the next event. It returns io.EOF when the body ends; the
// caller should also stop once an event with Done arrives.
func (r *Reader) Next() (models.StreamEvent, error) {
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}

		var event models.StreamEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, dataPrefix)), &event); err != nil {
			slog.Warn("skipping malformed stream frame", "err", err)
			continue
		}
		return event, nil
	}

	if err := r.scanner.Err(); err != nil {
		return models.StreamEvent{}, fmt.Errorf("read event stream: %w", err)
	}
	return models.StreamEvent{}, io.EOF
}
