package mcpclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"supportbot/logger"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

const protocolVersion = "2024-11-05"

// Config describes how to reach the tool server for one session.
type Config struct {
	// ServerURL is the SSE endpoint of the tool server.
	ServerURL string
	// Headers are extra HTTP headers sent when opening the stream.
	Headers map[string]string
	// ConnectTimeout bounds connect plus the initialize handshake.
	ConnectTimeout time.Duration
	// ReadTimeout bounds each individual ListTools/CallTool round trip.
	ReadTimeout time.Duration
}

// DefaultConfig returns session timeouts matching the tool server's observed
// behavior (first ping can take ~15s, long-running tools up to minutes).
func DefaultConfig(serverURL string) Config {
	return Config{
		ServerURL:      serverURL,
		ConnectTimeout: 30 * time.Second,
		ReadTimeout:    300 * time.Second,
	}
}

// Session is one live connection to the tool server. Sessions are opened per
// orchestration run and never pooled or shared: strict isolation costs a
// handshake per run but rules out stale catalogs and cross-run leakage.
type Session struct {
	cfg        Config
	logger     logger.Logger
	mcpClient  *client.Client
	serverInfo *mcp.Implementation

	mu          sync.Mutex
	initialized bool
	knownTools  map[string]struct{}

	closeOnce sync.Once
	closeErr  error
}

// Open establishes the SSE connection. The returned session must still be
// initialized before tools can be listed or called, and must be closed on
// every exit path.
func Open(ctx context.Context, cfg Config, log logger.Logger) (*Session, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	mcpClient, err := NewSSEManager(cfg.ServerURL, cfg.Headers, log).Connect(connectCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || connectCtx.Err() != nil {
			return nil, fmt.Errorf("%w: connecting to %s: %v", ErrTimeout, cfg.ServerURL, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	log.Debug("Connected to MCP server", logger.String("url", cfg.ServerURL))

	return &Session{
		cfg:       cfg,
		logger:    log,
		mcpClient: mcpClient,
	}, nil
}

// Initialize performs the MCP handshake. It must complete before ListTools
// or CallTool are issued.
func (s *Session) Initialize(ctx context.Context) error {
	initCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	result, err := s.mcpClient.Initialize(initCtx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: protocolVersion,
			Capabilities:    mcp.ClientCapabilities{},
			ClientInfo: mcp.Implementation{
				Name:    "supportbot",
				Version: "1.0.0",
			},
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || initCtx.Err() != nil {
			return fmt.Errorf("%w: initialize handshake: %v", ErrTimeout, err)
		}
		return fmt.Errorf("%w: initialize handshake: %v", ErrConnection, err)
	}

	s.mu.Lock()
	s.serverInfo = &result.ServerInfo
	s.initialized = true
	s.mu.Unlock()

	s.logger.Debug("MCP session initialized",
		logger.String("server_name", result.ServerInfo.Name),
		logger.String("server_version", result.ServerInfo.Version))
	return nil
}

// ServerInfo returns the implementation info reported during the handshake,
// or nil before Initialize.
func (s *Session) ServerInfo() *mcp.Implementation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverInfo
}

// ListTools returns the tools the server currently exposes and records their
// names for the unknown-tool guard in CallTool.
func (s *Session) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	if err := s.requireInitialized(); err != nil {
		return nil, err
	}

	listCtx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
	defer cancel()

	result, err := s.mcpClient.ListTools(listCtx, mcp.ListToolsRequest{})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || listCtx.Err() != nil {
			return nil, fmt.Errorf("%w: listing tools: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: listing tools: %v", ErrProtocol, err)
	}
	if result == nil {
		return nil, fmt.Errorf("%w: list tools returned no result", ErrProtocol)
	}

	known := make(map[string]struct{}, len(result.Tools))
	for _, tool := range result.Tools {
		known[tool.Name] = struct{}{}
	}
	s.mu.Lock()
	s.knownTools = known
	s.mu.Unlock()

	s.logger.Debug("Listed tools", logger.Int("tool_count", len(result.Tools)))
	return result.Tools, nil
}

// CallTool invokes a named tool. The name must be among the last-listed
// descriptors; the server would likely reject an unknown name anyway, but
// failing locally keeps the error classifiable.
func (s *Session) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	if err := s.requireInitialized(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	_, ok := s.knownTools[name]
	listed := s.knownTools != nil
	s.mu.Unlock()
	if listed && !ok {
		return nil, fmt.Errorf("%w: %q is not among the listed tools", ErrUnknownTool, name)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.mcpClient.CallTool(callCtx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: arguments,
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() != nil {
			return nil, fmt.Errorf("%w: calling tool %s: %v", ErrTimeout, name, err)
		}
		if IsBrokenPipeError(err) {
			return nil, fmt.Errorf("%w: calling tool %s: %v", ErrConnection, name, err)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrToolExecution, name, err)
	}

	s.logger.Debug("Tool call completed",
		logger.String("tool", name),
		logger.String("duration", time.Since(start).String()))
	return result, nil
}

// Close tears down the connection. Safe to call more than once and from
// deferred cleanup on error paths.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.mcpClient != nil {
			s.closeErr = s.mcpClient.Close()
		}
	})
	return s.closeErr
}

func (s *Session) requireInitialized() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	return nil
}
