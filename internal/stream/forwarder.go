package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"strivebot/internal/models"
)

// defaultFlushDelay paces emission for smoother client-side rendering.
const defaultFlushDelay = 10 * time.Millisecond

// TokenSource yields content deltas one at a time. Recv returns io.EOF
// when the sequence is exhausted. *openai.Stream satisfies this.
type TokenSource interface {
	Recv() (string, error)
}

// Forwarder drains a token source into an open client connection, one
// server-sent-event frame per flush, terminated by a single done frame.
// A Forwarder serves exactly one request and is not reused.
type Forwarder struct {
	w       io.Writer
	flusher http.Flusher
	policy  Policy
	delay   time.Duration

	buffer      string
	lastFlushed string
	title       string
	terminated  bool
}

// Option configures a Forwarder.
type Option func(*Forwarder)

// WithFlusher makes the forwarder flush the underlying connection after
// every frame.
func WithFlusher(flusher http.Flusher) Option {
	return func(f *Forwarder) { f.flusher = flusher }
}

// WithDelay overrides the pacing delay between flushes.
func WithDelay(d time.Duration) Option {
	return func(f *Forwarder) { f.delay = d }
}

// NewForwarder builds a forwarder writing frames to w under the given
// buffering policy.
func NewForwarder(w io.Writer, policy Policy, opts ...Option) *Forwarder {
	f := &Forwarder{
		w:      w,
		policy: policy,
		delay:  defaultFlushDelay,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// AnnounceTitle records the conversation title and emits it immediately as
// a title-only frame. Every subsequent frame, including the terminal one,
// carries the same title. Must be called before Run.
func (f *Forwarder) AnnounceTitle(title string) error {
	f.title = title
	return f.writeEvent(models.StreamEvent{Title: title})
}

// Run consumes src until exhaustion, flushing per policy, then drains the
// remainder and writes the terminal frame. On a mid-stream source error it
// stops producing content but still attempts to terminate the connection
// cleanly, returning the source error.
func (f *Forwarder) Run(ctx context.Context, src TokenSource) error {
	var streamErr error

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		token, err := src.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			streamErr = err
			break
		}
		if token == "" {
			continue
		}

		f.buffer += token
		if !f.policy.ShouldFlush(f.buffer, token) {
			continue
		}
		if f.policy.Deduplicate() && f.buffer == f.lastFlushed {
			continue
		}

		if err := f.flushBuffer(); err != nil {
			return err
		}
		if err := f.pause(ctx); err != nil {
			return err
		}
	}

	if streamErr == nil && f.buffer != "" {
		if !f.policy.Deduplicate() || f.buffer != f.lastFlushed {
			if err := f.flushBuffer(); err != nil {
				return err
			}
		}
	}

	if err := f.terminate(); err != nil && streamErr == nil {
		return err
	}
	return streamErr
}

func (f *Forwarder) flushBuffer() error {
	event := models.StreamEvent{
		Content: f.policy.Render(f.buffer),
		Title:   f.title,
	}
	// Deduplication compares raw buffers, not rendered output.
	f.lastFlushed = f.buffer
	f.buffer = ""
	return f.writeEvent(event)
}

func (f *Forwarder) terminate() error {
	if f.terminated {
		return nil
	}
	f.terminated = true
	return f.writeEvent(models.StreamEvent{Done: true, Title: f.title})
}

func (f *Forwarder) writeEvent(event models.StreamEvent) error {
	if f.terminated && !event.Done {
		return errors.New("write after terminal event")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal SSE payload: %w", err)
	}
	if _, err := fmt.Fprintf(f.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write SSE data: %w", err)
	}
	if f.flusher != nil {
		f.flusher.Flush()
	}
	return nil
}

// pause yields between flushes without stalling other requests; it returns
// early if the client goes away.
func (f *Forwarder) pause(ctx context.Context) error {
	if f.delay <= 0 {
		return nil
	}

	timer := time.NewTimer(f.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
