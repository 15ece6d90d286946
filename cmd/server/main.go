// supportbot server: serves the chat UI and API, bridging the LLM endpoint
// with the MCP tool server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"supportbot/agent"
	"supportbot/config"
	"supportbot/httpserver"
	"supportbot/logger"
	"supportbot/mcpclient"
)

var rootCmd = &cobra.Command{
	Use:   "supportbot",
	Short: "Customer support bot bridging an LLM with an MCP tool server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.Flags().Int("port", 0, "HTTP listen port (overrides PORT)")
	rootCmd.Flags().String("log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	rootCmd.Flags().String("log-format", "", "Log format: text or json (overrides LOG_FORMAT)")

	_ = viper.BindPFlag("flag.port", rootCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("flag.log-level", rootCmd.Flags().Lookup("log-level"))
	_ = viper.BindPFlag("flag.log-format", rootCmd.Flags().Lookup("log-format"))
}

func run() error {
	cfg := config.Load()
	if port := viper.GetInt("flag.port"); port != 0 {
		cfg.Port = port
	}
	if level := viper.GetString("flag.log-level"); level != "" {
		cfg.LogLevel = level
	}
	if format := viper.GetString("flag.log-format"); format != "" {
		cfg.LogFormat = format
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: "stdout",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Close() }()

	llmClient := openai.NewClient(
		option.WithBaseURL(cfg.OpenRouterBaseURL),
		option.WithAPIKey(cfg.OpenRouterAPIKey),
	)

	sessionCfg := mcpclient.Config{
		ServerURL:      cfg.MCPServerURL,
		ConnectTimeout: cfg.ConnectTimeout,
		ReadTimeout:    cfg.ReadTimeout,
	}
	opener := func(ctx context.Context) (agent.ToolSession, error) {
		return mcpclient.Open(ctx, sessionCfg, log)
	}

	bot := agent.New(opener, agent.OpenAICompleter{Client: llmClient}, cfg.ModelName,
		agent.WithLogger(log))
	verifier := agent.NewVerifier(opener, log)

	server := httpserver.NewServer(httpserver.Config{
		Port:           cfg.Port,
		OverallTimeout: cfg.OverallTimeout,
		StaticDir:      cfg.StaticDir,
		Runner:         bot,
		Auth:           verifier,
		Store:          agent.NewMemoryStore(),
		Logger:         log,
	})

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Support bot starting",
			logger.Int("port", cfg.Port),
			logger.String("model", cfg.ModelName),
			logger.String("mcp_server", cfg.MCPServerURL))
		serveErr <- server.ListenAndServe()
	}()

	select {
	case sig := <-shutdown:
		log.Info("Shutting down", logger.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		return nil
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
