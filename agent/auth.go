package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"supportbot/logger"
	"supportbot/mcpclient"
)

// verifyCustomerTool is the identity-check tool exposed by the tool server.
const verifyCustomerTool = "verify_customer"

// AuthResult is the outcome of an identity verification attempt. A failed
// verification is an expected, user-facing outcome, never an error: every
// failure mode folds into Success=false with a displayable message.
type AuthResult struct {
	Success bool   `json:"success"`
	UserID  string `json:"user_id,omitempty"`
	Email   string `json:"email,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Verifier exchanges credentials for an opaque customer id via the tool
// server. It opens its own session per attempt, independent of any chat run:
// verification can happen mid-conversation and must not tie up a chat
// session's connection.
type Verifier struct {
	opener SessionOpener
	logger logger.Logger
}

// NewVerifier creates a Verifier.
func NewVerifier(opener SessionOpener, log logger.Logger) *Verifier {
	return &Verifier{
		opener: opener,
		logger: log,
	}
}

// Verify checks the email/PIN pair against the tool server.
func (v *Verifier) Verify(ctx context.Context, email, pin string) AuthResult {
	v.logger.Info("Authentication attempt", logger.String("email", email))

	result, err := v.callVerifyTool(ctx, email, pin)
	if err != nil {
		v.logger.Error("Authentication service failure", err, logger.String("email", email))
		return AuthResult{Success: false, Error: "Authentication service unavailable"}
	}

	if !result.Success {
		v.logger.Warn("Authentication failed", logger.String("email", email))
		return AuthResult{Success: false, Error: "Invalid email or PIN"}
	}

	v.logger.Info("Authentication successful",
		logger.String("email", email),
		logger.String("user_id", result.UserID))
	return AuthResult{Success: true, UserID: result.UserID, Email: email}
}

// verifyPayload is the tool's JSON response shape.
type verifyPayload struct {
	Success bool   `json:"success"`
	UserID  string `json:"user_id"`
}

func (v *Verifier) callVerifyTool(ctx context.Context, email, pin string) (verifyPayload, error) {
	var payload verifyPayload

	session, err := v.opener(ctx)
	if err != nil {
		return payload, fmt.Errorf("%w: opening session: %v", mcpclient.ErrAuthService, err)
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			v.logger.Warn("Failed to close auth session", logger.Err(closeErr))
		}
	}()

	if err := session.Initialize(ctx); err != nil {
		return payload, fmt.Errorf("%w: initialize: %v", mcpclient.ErrAuthService, err)
	}

	// Listed defensively so a missing verify tool shows up in the logs as a
	// catalog problem rather than an opaque call failure.
	tools, err := session.ListTools(ctx)
	if err != nil {
		return payload, fmt.Errorf("%w: listing tools: %v", mcpclient.ErrAuthService, err)
	}
	v.logger.Debug("Auth session tools listed", logger.Int("tool_count", len(tools)))

	result, err := session.CallTool(ctx, verifyCustomerTool, map[string]interface{}{
		"email": email,
		"pin":   pin,
	})
	if err != nil {
		return payload, fmt.Errorf("%w: %s: %v", mcpclient.ErrAuthService, verifyCustomerTool, err)
	}

	text := mcpclient.TextOnly(result)
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return payload, fmt.Errorf("%w: unparseable verification result: %v", mcpclient.ErrAuthService, err)
	}
	return payload, nil
}
