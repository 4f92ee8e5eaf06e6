package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strivebot/internal/models"
)

// sliceSource yields a fixed token sequence, then err (or io.EOF).
type sliceSource struct {
	tokens []string
	err    error
	next   int
}

func (s *sliceSource) Recv() (string, error) {
	if s.next < len(s.tokens) {
		token := s.tokens[s.next]
		s.next++
		return token, nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func parseFrames(t *testing.T, raw string) []models.StreamEvent {
	t.Helper()

	var events []models.StreamEvent
	for _, frame := range strings.Split(raw, "\n\n") {
		if frame == "" {
			continue
		}
		require.True(t, strings.HasPrefix(frame, "data: "), "frame %q must carry the data prefix", frame)

		var event models.StreamEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &event))
		events = append(events, event)
	}
	return events
}

func runForwarder(t *testing.T, policy Policy, src TokenSource, opts ...Option) ([]models.StreamEvent, error) {
	t.Helper()

	var buf bytes.Buffer
	fwd := NewForwarder(&buf, policy, append([]Option{WithDelay(0)}, opts...)...)
	err := fwd.Run(context.Background(), src)
	return parseFrames(t, buf.String()), err
}

func TestWordPolicyFlushAfterFiveChars(t *testing.T) {
	events, err := runForwarder(t, WordPolicy{}, &sliceSource{tokens: []string{"a", "b", "c", "d", "e"}})
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, "abcde", events[0].Content)
	assert.True(t, events[1].Done)
	assert.Empty(t, events[1].Content)
}

func TestWordPolicyPunctuationFlush(t *testing.T) {
	events, err := runForwarder(t, WordPolicy{}, &sliceSource{tokens: []string{"Hi", "!", " there"}})
	require.NoError(t, err)

	require.Len(t, events, 3)
	assert.Equal(t, "Hi!", events[0].Content)
	assert.Equal(t, " there", events[1].Content, "remainder flushed on drain regardless of size")
	assert.True(t, events[2].Done)
}

func TestWordPolicyConcatenationIsExact(t *testing.T) {
	tokens := []string{"Fo", "cus", " on", " one", " task. ", "Then", " take", " a", " break", "!"}

	events, err := runForwarder(t, WordPolicy{}, &sliceSource{tokens: tokens})
	require.NoError(t, err)

	var got strings.Builder
	for _, event := range events {
		assert.False(t, event.Done && event.Content != "", "terminal event carries no content")
		got.WriteString(event.Content)
	}
	assert.Equal(t, strings.Join(tokens, ""), got.String())
}

func TestEmptyTokensAreNoOps(t *testing.T) {
	events, err := runForwarder(t, WordPolicy{}, &sliceSource{tokens: []string{"", "abc", "", "de", ""}})
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, "abcde", events[0].Content)
	assert.True(t, events[1].Done)
}

func TestExactlyOneTerminalEvent(t *testing.T) {
	events, err := runForwarder(t, WordPolicy{}, &sliceSource{tokens: []string{"hello", " world", "!"}})
	require.NoError(t, err)

	var doneCount int
	for i, event := range events {
		if event.Done {
			doneCount++
			assert.Equal(t, len(events)-1, i, "terminal event must be last")
		}
	}
	assert.Equal(t, 1, doneCount)
}

func TestSentencePolicyNormalizesFlushes(t *testing.T) {
	events, err := runForwarder(t, SentencePolicy{}, &sliceSource{tokens: []string{"Plan", " ahead", ".", "Then  rest", "."}})
	require.NoError(t, err)

	require.Len(t, events, 3)
	assert.Equal(t, "Plan ahead.", events[0].Content)
	assert.Equal(t, "Then rest.", events[1].Content)
	assert.True(t, events[2].Done)
	assert.Empty(t, events[2].Title)
}

func TestSentencePolicySuppressesDuplicateFlush(t *testing.T) {
	// The second token refills the buffer with exactly the last flushed
	// value, which must not be emitted again, not even on drain.
	events, err := runForwarder(t, SentencePolicy{}, &sliceSource{tokens: []string{"Same sentence. ", "Same sentence. "}})
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, "Same sentence.", events[0].Content)
	assert.True(t, events[1].Done)
}

func TestSentencePolicyFlushesLongBufferWithoutPunctuation(t *testing.T) {
	token := strings.Repeat("word ", 11) // 55 chars, no sentence end

	events, err := runForwarder(t, SentencePolicy{}, &sliceSource{tokens: []string{token}})
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, strings.TrimSpace(strings.Repeat("word ", 11)), events[0].Content)
	assert.True(t, events[1].Done)
}

func TestAnnounceTitle(t *testing.T) {
	var buf bytes.Buffer
	fwd := NewForwarder(&buf, WordPolicy{}, WithDelay(0))

	require.NoError(t, fwd.AnnounceTitle("Focus Tips"))
	require.NoError(t, fwd.Run(context.Background(), &sliceSource{tokens: []string{"Sure!", " Start small."}}))

	events := parseFrames(t, buf.String())
	require.NotEmpty(t, events)

	assert.Equal(t, "Focus Tips", events[0].Title)
	assert.Empty(t, events[0].Content, "title arrives as its own event")

	for _, event := range events[1:] {
		assert.Equal(t, "Focus Tips", event.Title, "title is stable once set")
	}
	assert.True(t, events[len(events)-1].Done)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	fwd := NewForwarder(&buf, WordPolicy{}, WithDelay(0))

	err := fwd.Run(ctx, &sliceSource{tokens: []string{"never", " sent"}})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, buf.String(), "no frames after the client went away")
}

func TestRunTerminatesAfterMidStreamError(t *testing.T) {
	srcErr := errors.New("upstream connection reset")
	src := &sliceSource{tokens: []string{"partial"}, err: srcErr}

	events, err := runForwarder(t, WordPolicy{}, src)
	require.ErrorIs(t, err, srcErr)

	// Best-effort terminate: the connection still gets a done frame.
	require.NotEmpty(t, events)
	assert.True(t, events[len(events)-1].Done)
}
