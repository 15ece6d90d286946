package mcpclient

import (
	"context"
	"fmt"

	"supportbot/logger"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
)

// SSEManager builds and starts SSE-backed MCP clients.
type SSEManager struct {
	url     string
	headers map[string]string
	logger  logger.Logger
}

// NewSSEManager creates a new SSE manager for the given endpoint. The tool
// server requires an explicit Accept header before it will open the stream,
// so one is always set unless the caller overrides it.
func NewSSEManager(url string, headers map[string]string, log logger.Logger) *SSEManager {
	merged := map[string]string{"Accept": "text/event-stream"}
	for k, v := range headers {
		merged[k] = v
	}
	return &SSEManager{
		url:     url,
		headers: merged,
		logger:  log,
	}
}

// CreateClient creates a new SSE client without starting it.
func (s *SSEManager) CreateClient() (*client.Client, error) {
	options := []transport.ClientOption{
		transport.WithHeaders(s.headers),
		transport.WithSSELogger(logger.ToUtilLogger(s.logger)),
	}

	sseTransport, err := transport.NewSSE(s.url, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SSE transport: %w", err)
	}

	return client.NewClient(sseTransport), nil
}

// Connect creates and starts an SSE client.
func (s *SSEManager) Connect(ctx context.Context) (*client.Client, error) {
	c, err := s.CreateClient()
	if err != nil {
		return nil, err
	}

	// The SSE stream must outlive the caller's per-call contexts, otherwise
	// a finished request would tear down the stream mid-session. Session
	// shutdown happens explicitly through Close.
	if err := c.Start(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to start SSE client: %w", err)
	}

	return c, nil
}
