package mcpclient

import (
	"errors"
	"strings"
)

// Error kinds for tool-server interactions. Callers match with errors.Is;
// every error returned by this package wraps exactly one of these.
var (
	// ErrConnection covers network and handshake failures while opening a session.
	ErrConnection = errors.New("mcp: connection failed")

	// ErrTimeout covers connect, read, and whole-run deadline expiry.
	ErrTimeout = errors.New("mcp: timed out")

	// ErrNotInitialized is returned when a call is issued before the handshake.
	ErrNotInitialized = errors.New("mcp: session not initialized")

	// ErrProtocol covers malformed server payloads.
	ErrProtocol = errors.New("mcp: protocol error")

	// ErrUnknownTool is returned when a call names a tool absent from the
	// last-listed catalog.
	ErrUnknownTool = errors.New("mcp: unknown tool")

	// ErrMalformedArguments is returned when tool-call arguments fail to parse.
	ErrMalformedArguments = errors.New("mcp: malformed tool arguments")

	// ErrToolExecution wraps a failure reported by the server for one call.
	ErrToolExecution = errors.New("mcp: tool execution failed")

	// ErrAuthService is returned when the identity-check tool is unreachable.
	ErrAuthService = errors.New("mcp: auth service unavailable")
)

// IsBrokenPipeError checks if an error indicates a lost connection that
// requires escalating the run rather than retrying the individual call.
func IsBrokenPipeError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Broken pipe") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "EOF") ||
		strings.Contains(msg, "connection reset")
}
