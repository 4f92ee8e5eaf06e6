// Package assistant turns a conversation into an upstream completion
// stream, handling persona prompts, history budgeting, and one-time title
// generation for new conversations.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"strivebot/internal/models"
	"strivebot/internal/openai"
)

const titleTimeout = 15 * time.Second

// Options tune the completion requests issued on behalf of clients.
type Options struct {
	Model          string
	MaxTokens      int
	TitleMaxTokens int
	Temperature    float64
	PromptBudget   int
}

// Source produces completion streams for the two chat endpoints.
type Source struct {
	client *openai.Client
	opts   Options
}

// New constructs a Source backed by the given upstream client.
func New(client *openai.Client, opts Options) *Source {
	return &Source{
		client: client,
		opts:   opts,
	}
}

// Assistant opens a completion stream for the single-purpose assistant
// endpoint.
func (s *Source) Assistant(ctx context.Context, turns []models.ConversationTurn) (*openai.Stream, error) {
	return s.open(ctx, assistantSystemPrompt, turns)
}

// Chatbot opens a completion stream for the multi-turn chatbot endpoint.
// For a new, non-empty conversation it first issues one blocking title
// request built from the first turn only; the title call fully completes
// before the main stream opens.
func (s *Source) Chatbot(ctx context.Context, turns []models.ConversationTurn, newConversation bool) (string, *openai.Stream, error) {
	var title string
	if newConversation && len(turns) > 0 {
		generated, err := s.generateTitle(ctx, turns[0])
		if err != nil {
			return "", nil, fmt.Errorf("generate conversation title: %w", err)
		}
		title = generated
	}

	stream, err := s.open(ctx, chatbotSystemPrompt, turns)
	if err != nil {
		return "", nil, err
	}
	return title, stream, nil
}

func (s *Source) open(ctx context.Context, systemPrompt string, turns []models.ConversationTurn) (*openai.Stream, error) {
	kept := trimToBudget(systemPrompt, turns, s.opts.PromptBudget)
	if dropped := len(turns) - len(kept); dropped > 0 {
		slog.Debug("trimmed conversation history", "dropped_turns", dropped, "kept_turns", len(kept))
	}

	messages := make([]models.ConversationTurn, 0, len(kept)+1)
	messages = append(messages, models.ConversationTurn{
		Role:    models.RoleSystem,
		Content: systemPrompt,
	})
	messages = append(messages, kept...)

	return s.client.Stream(ctx, openai.Request{
		Model:       s.opts.Model,
		Messages:    messages,
		MaxTokens:   s.opts.MaxTokens,
		Temperature: s.opts.Temperature,
	})
}

func (s *Source) generateTitle(ctx context.Context, first models.ConversationTurn) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, titleTimeout)
	defer cancel()

	content, err := s.client.Complete(ctx, openai.Request{
		Model: s.opts.Model,
		Messages: []models.ConversationTurn{
			{Role: models.RoleSystem, Content: titleSystemPrompt},
			{Role: models.RoleUser, Content: first.Content},
		},
		MaxTokens:   s.opts.TitleMaxTokens,
		Temperature: s.opts.Temperature,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}
