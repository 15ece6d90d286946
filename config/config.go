// Package config loads and validates the process configuration from the
// environment (optionally seeded from a .env file).
package config

import (
	"errors"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds everything the server needs to run.
type Config struct {
	// OpenRouterAPIKey authenticates completion calls.
	OpenRouterAPIKey string
	// OpenRouterBaseURL is the OpenAI-compatible endpoint.
	OpenRouterBaseURL string
	// ModelName is the model identifier sent with every completion.
	ModelName string

	// MCPServerURL is the SSE endpoint of the tool server.
	MCPServerURL string

	// ConnectTimeout bounds the MCP connect + initialize handshake.
	// The server takes ~15s to send its first ping, so this is generous.
	ConnectTimeout time.Duration
	// ReadTimeout bounds a single SSE read (tool call result).
	ReadTimeout time.Duration
	// OverallTimeout bounds one whole chat run end to end.
	OverallTimeout time.Duration

	Port      int
	LogLevel  string
	LogFormat string
	StaticDir string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first if present; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1")
	v.SetDefault("MODEL_NAME", "openai/gpt-4o-mini")
	v.SetDefault("CONNECT_TIMEOUT", "30s")
	v.SetDefault("READ_TIMEOUT", "300s")
	v.SetDefault("OVERALL_TIMEOUT", "90s")
	v.SetDefault("PORT", 8000)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("STATIC_DIR", "static")
	v.AutomaticEnv()

	return Config{
		OpenRouterAPIKey:  v.GetString("OPENROUTER_API_KEY"),
		OpenRouterBaseURL: v.GetString("OPENROUTER_BASE_URL"),
		ModelName:         v.GetString("MODEL_NAME"),
		MCPServerURL:      v.GetString("MCP_SERVER_URL"),
		ConnectTimeout:    v.GetDuration("CONNECT_TIMEOUT"),
		ReadTimeout:       v.GetDuration("READ_TIMEOUT"),
		OverallTimeout:    v.GetDuration("OVERALL_TIMEOUT"),
		Port:              v.GetInt("PORT"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		LogFormat:         v.GetString("LOG_FORMAT"),
		StaticDir:         v.GetString("STATIC_DIR"),
	}
}

// Validate checks that the required settings are present.
func (c Config) Validate() error {
	if c.OpenRouterAPIKey == "" {
		return errors.New("missing OPENROUTER_API_KEY in environment")
	}
	if c.MCPServerURL == "" {
		return errors.New("missing MCP_SERVER_URL in environment")
	}
	return nil
}
