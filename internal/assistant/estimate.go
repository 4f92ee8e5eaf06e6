package assistant

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"strivebot/internal/models"
)

var (
	codec     tokenizer.Codec
	codecOnce sync.Once
	codecErr  error
)

// cl100k_base is a reasonable approximation for the chat models we target.
func getCodec() (tokenizer.Codec, error) {
	codecOnce.Do(func() {
		codec, codecErr = tokenizer.Get(tokenizer.Cl100kBase)
	})
	return codec, codecErr
}

// estimateTokens returns an approximate token count for text, 0 on error.
func estimateTokens(text string) int {
	c, err := getCodec()
	if err != nil {
		return 0
	}

	ids, _, err := c.Encode(text)
	if err != nil {
		return 0
	}
	return len(ids)
}

// perTurnOverhead accounts for the role and message framing tokens the
// chat format adds around each turn.
const perTurnOverhead = 4

// trimToBudget drops the oldest turns until the conversation, together
// with the system prompt, fits within budget tokens. The most recent turn
// is always kept so the model sees the current question.
func trimToBudget(systemPrompt string, turns []models.ConversationTurn, budget int) []models.ConversationTurn {
	if len(turns) <= 1 {
		return turns
	}

	counts := make([]int, len(turns))
	for i, turn := range turns {
		counts[i] = estimateTokens(turn.Content) + perTurnOverhead
	}

	// Walk backwards from the newest turn, keeping as many as fit.
	total := estimateTokens(systemPrompt) + perTurnOverhead
	start := len(turns)
	for i := len(turns) - 1; i >= 0; i-- {
		if start < len(turns) && total+counts[i] > budget {
			break
		}
		total += counts[i]
		start = i
	}

	return turns[start:]
}
