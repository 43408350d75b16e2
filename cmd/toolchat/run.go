package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/martinemde/toolchat/agentloop"
	"github.com/martinemde/toolchat/console"
	"github.com/martinemde/toolchat/settings"
	"github.com/martinemde/toolchat/unifiedllm"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func run(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if err := initLogger(s.Log); err != nil {
		return err
	}

	if s.APIKey == "" {
		envName := settings.APIKeyEnv(s.Provider)
		if !console.IsTerminal(os.Stdin) {
			return errors.Errorf("%s is not set", envName)
		}
		s.APIKey, err = console.PromptAPIKey(os.Stdin, os.Stdout, envName)
		if err != nil {
			return err
		}
	}

	env, err := agentloop.NewLocalEnvironment(s.WorkingDir)
	if err != nil {
		return err
	}
	registry, err := agentloop.NewToolRegistry(agentloop.CoreTools(env)...)
	if err != nil {
		return err
	}

	client, err := buildClient(s)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("closing client")
		}
	}()

	styles := console.StylesFor(os.Stdout)
	display := console.NewTerminalDisplay(os.Stdout, styles)
	input := console.NewTerminalInput(os.Stdin, os.Stdout, styles)

	session := agentloop.NewSession(
		agentloop.NewLLMGateway(client, registry, agentloop.GatewayConfig{
			Provider:     s.Provider,
			Model:        s.Model,
			MaxTokens:    s.MaxTokens,
			Temperature:  s.TemperatureOverride(),
			SystemPrompt: s.SystemPrompt,
		}),
		agentloop.NewToolExecutor(registry, display, agentloop.WithMaxOutputChars(s.MaxToolOutput)),
		input,
		display,
		agentloop.WithLoopWindow(s.LoopWindow),
	)
	log.Info().
		Str("session_id", session.ID()).
		Str("provider", s.Provider).
		Str("model", s.Model).
		Str("working_dir", env.WorkingDirectory()).
		Msg("starting session")

	if console.IsTerminal(os.Stdout) {
		console.PrintBanner(os.Stdout, styles)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		// a second interrupt gets the default behaviour and kills the process
		<-ctx.Done()
		stop()
	}()

	return session.Run(ctx)
}

func buildClient(s *settings.Settings) (*unifiedllm.Client, error) {
	var adapter unifiedllm.ProviderAdapter
	switch s.Provider {
	case settings.ProviderAnthropic:
		a, err := unifiedllm.NewAnthropicAdapter(s.APIKey,
			unifiedllm.WithAnthropicBaseURL(s.BaseURL),
			unifiedllm.WithAnthropicVersion(s.APIVersion),
			unifiedllm.WithAnthropicModel(s.Model),
			unifiedllm.WithAnthropicMaxTokens(s.MaxTokens),
			unifiedllm.WithAnthropicTimeout(s.RequestTimeout),
		)
		if err != nil {
			return nil, err
		}
		adapter = a
	case settings.ProviderOpenAI:
		opts := []unifiedllm.GollmAdapterOption{
			unifiedllm.WithModel(s.Model),
			unifiedllm.WithMaxTokens(s.MaxTokens),
		}
		if t := s.TemperatureOverride(); t != nil {
			opts = append(opts, unifiedllm.WithTemperature(*t))
		}
		a, err := unifiedllm.NewGollmAdapter(s.Provider, s.APIKey, opts...)
		if err != nil {
			return nil, err
		}
		adapter = a
	default:
		return nil, errors.Errorf("unknown provider %q", s.Provider)
	}

	policy := unifiedllm.DefaultRetryPolicy()
	policy.MaxRetries = s.MaxRetries
	return unifiedllm.NewClient(adapter,
		unifiedllm.RetryMiddleware(policy),
		unifiedllm.LoggingMiddleware(log.Logger),
	), nil
}
