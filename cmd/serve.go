package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"strivebot/internal/assistant"
	"strivebot/internal/config"
	"strivebot/internal/openai"
	"strivebot/internal/server"
)

const serveUsage = `Usage:
  strivebot serve [--config <path>] [--port <port>]

Flags:
  --config string   Path to YAML configuration file (optional; env vars
                    and .env cover the common case)
  --port   int      Override server port from configuration`

func serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, serveUsage)
	}

	var cfgPath string
	var overridePort int
	fs.StringVar(&cfgPath, "config", "", "path to configuration file")
	fs.IntVar(&overridePort, "port", 0, "override server port")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse serve flags: %w", err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	if overridePort != 0 {
		if overridePort <= 0 || overridePort > 65535 {
			return fmt.Errorf("port override %d must be a valid TCP port", overridePort)
		}
		cfg.Server.Port = overridePort
	}

	client, err := openai.NewClient(openai.Config{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Headers: cfg.OpenAI.Headers,
	}, openai.NewHTTPClient())
	if err != nil {
		return fmt.Errorf("initialise openai client: %w", err)
	}

	source := assistant.New(client, assistant.Options{
		Model:          cfg.Chat.Model,
		MaxTokens:      cfg.Chat.MaxTokens,
		TitleMaxTokens: cfg.Chat.TitleMaxTokens,
		Temperature:    cfg.Chat.Temperature,
		PromptBudget:   cfg.Chat.PromptBudget,
	})

	srv, err := server.New(cfg, source)
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}
