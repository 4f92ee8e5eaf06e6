package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/chzyer/readline"
	flag "github.com/spf13/pflag"

	"strivebot/internal/models"
	"strivebot/internal/sse"
)

const chatUsage = `Usage:
  strivebot chat [--url <base-url>] [--plain]

Flags:
  --url   string   Base URL of a running strivebot server (default http://localhost:3000)
  --plain          Print fragments as they stream instead of rendering markdown`

func chat(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, chatUsage)
	}

	var baseURL string
	var plain bool
	fs.StringVar(&baseURL, "url", "http://localhost:3000", "base URL of the server")
	fs.BoolVar(&plain, "plain", false, "print raw streamed fragments")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse chat flags: %w", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "you> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("initialise readline: %w", err)
	}
	defer rl.Close()

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return fmt.Errorf("create markdown renderer: %w", err)
	}

	fmt.Println("strivebot chat — type /quit to exit")

	var turns []models.ConversationTurn
	newConversation := true

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt || err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return nil
		}

		turns = append(turns, models.ConversationTurn{Role: models.RoleUser, Content: line})

		reply, title, err := sendChatbot(ctx, baseURL, turns, newConversation, plain)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			turns = turns[:len(turns)-1]
			continue
		}

		if title != "" && newConversation {
			fmt.Printf("conversation: %s\n", title)
		}
		newConversation = false

		if plain {
			fmt.Println()
		} else {
			out, err := renderer.Render(reply)
			if err != nil {
				fmt.Println(reply)
			} else {
				fmt.Print(out)
			}
		}

		turns = append(turns, models.ConversationTurn{Role: models.RoleAssistant, Content: reply})
	}
}

// sendChatbot posts the conversation to /api/chatbot and drains the event
// stream, returning the full reply and the conversation title, if any.
func sendChatbot(ctx context.Context, baseURL string, turns []models.ConversationTurn, newConversation, echoFragments bool) (string, string, error) {
	payload, err := json.Marshal(map[string]any{
		"messages":          turns,
		"isNewConversation": newConversation,
	})
	if err != nil {
		return "", "", fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(baseURL, "/") + "/api/chatbot"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", "", fmt.Errorf("construct request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return "", "", fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var reply strings.Builder
	var title string

	reader := sse.NewReader(resp.Body)
	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return reply.String(), title, err
		}

		if event.Title != "" {
			title = event.Title
		}
		if event.Content != "" {
			reply.WriteString(event.Content)
			if echoFragments {
				fmt.Print(event.Content)
			}
		}
		if event.Done {
			break
		}
	}

	return reply.String(), title, nil
}
