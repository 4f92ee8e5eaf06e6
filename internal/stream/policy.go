// Package stream re-chunks a token-by-token completion stream into
// presentation-sized server-sent events.
package stream

import (
	"regexp"
	"strings"
)

// Policy decides when the accumulation buffer is flushed and how flushed
// text is rendered. Implementations are stateless; the Forwarder owns all
// per-request state.
type Policy interface {
	// ShouldFlush reports whether the buffer is ready to emit, given the
	// token that was just appended to it.
	ShouldFlush(buffer, token string) bool
	// Render produces the outbound text for a flush of buffer.
	Render(buffer string) string
	// Deduplicate reports whether a flush whose buffer equals the
	// previously flushed buffer must be suppressed.
	Deduplicate() bool
}

var sentenceEnd = regexp.MustCompile(`[.!?]\s*$`)

// SentencePolicy buffers until a full sentence or paragraph accumulates.
// Flushed text is normalized and duplicate flushes are suppressed. Used by
// the assistant endpoint.
type SentencePolicy struct{}

func (SentencePolicy) ShouldFlush(buffer, _ string) bool {
	return len(buffer) >= 50 || sentenceEnd.MatchString(buffer)
}

func (SentencePolicy) Render(buffer string) string {
	return Normalize(buffer)
}

func (SentencePolicy) Deduplicate() bool { return true }

// WordPolicy flushes on every few characters or on punctuation in the
// incoming token, emitting the buffer verbatim. Used by the chatbot
// endpoint.
type WordPolicy struct{}

func (WordPolicy) ShouldFlush(buffer, token string) bool {
	return len(buffer) >= 5 || strings.ContainsAny(token, ".,!?")
}

func (WordPolicy) Render(buffer string) string { return buffer }

func (WordPolicy) Deduplicate() bool { return false }
