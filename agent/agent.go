// Package agent drives the tool-calling dialogue: it discovers the tool
// server's catalog, lets the model request tool invocations, executes them
// against a live session, and produces the final response.
package agent

import (
	"context"
	"errors"
	"fmt"

	"supportbot/agent/prompt"
	"supportbot/logger"
	"supportbot/mcpclient"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/openai/openai-go/v3"
)

// maxToolRounds bounds how many completion rounds may offer tools. The
// follow-up completion after tool execution is answer-only, so every user
// turn costs at most maxToolRounds+1 completion calls and the loop cannot
// cycle on tool requests.
const maxToolRounds = 1

// ToolSession is the slice of the tool-server session the loop needs. It is
// satisfied by *mcpclient.Session; tests substitute scripted fakes.
type ToolSession interface {
	Initialize(ctx context.Context) error
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	CallTool(ctx context.Context, name string, arguments map[string]interface{}) (*mcp.CallToolResult, error)
	Close() error
}

// SessionOpener opens a fresh tool session. The loop opens one per run and
// closes it on every exit path; sessions are never reused across runs.
type SessionOpener func(ctx context.Context) (ToolSession, error)

// Completer issues one chat completion call.
type Completer interface {
	Complete(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// OpenAICompleter adapts an openai client to the Completer interface.
type OpenAICompleter struct {
	Client openai.Client
}

func (c OpenAICompleter) Complete(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return c.Client.Chat.Completions.New(ctx, params)
}

// Agent runs the orchestration loop for one conversation turn at a time.
// It holds no per-conversation state; everything mutable is per-run.
type Agent struct {
	opener    SessionOpener
	completer Completer
	model     string
	logger    logger.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger sets the logger used for run events.
func WithLogger(log logger.Logger) Option {
	return func(a *Agent) {
		a.logger = log
	}
}

// New creates an Agent. The opener is invoked once per Run; the completer is
// shared across runs (the underlying HTTP client is stateless).
func New(opener SessionOpener, completer Completer, model string, options ...Option) *Agent {
	a := &Agent{
		opener:    opener,
		completer: completer,
		model:     model,
		logger:    logger.NewNoop(),
	}
	for _, option := range options {
		option(a)
	}
	return a
}

// Run executes one user utterance against the conversation history and
// returns the newly produced assistant Turn. The caller's history slice is
// treated as a read-only snapshot. The caller bounds the whole run with its
// context deadline; a lapsed deadline surfaces as mcpclient.ErrTimeout and
// the session is still released.
func (a *Agent) Run(ctx context.Context, userText string, history []Turn, identityHint string) (Turn, error) {
	runID := uuid.New().String()[:8]
	log := a.logger.With(logger.String("run_id", runID))

	log.Info("Starting chat run", logger.Int("history_turns", len(history)))

	session, err := a.opener(ctx)
	if err != nil {
		return Turn{}, a.classify(ctx, fmt.Errorf("opening tool session: %w", err))
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			log.Warn("Failed to close tool session", logger.Err(closeErr))
		}
	}()

	if err := session.Initialize(ctx); err != nil {
		return Turn{}, a.classify(ctx, fmt.Errorf("initializing tool session: %w", err))
	}

	tools, err := session.ListTools(ctx)
	if err != nil {
		return Turn{}, a.classify(ctx, fmt.Errorf("listing tools: %w", err))
	}
	specs := mcpclient.ToolsAsFunctions(tools)
	log.Debug("Discovered tools", logger.Int("tool_count", len(tools)))

	working := buildWorkingTurns(history, userText, identityHint)

	for round := 0; ; round++ {
		params := openai.ChatCompletionNewParams{
			Model:    a.model,
			Messages: turnsAsMessages(working),
		}
		// Tools are offered only in the first round; the follow-up call after
		// tool execution is answer-only.
		withTools := round < maxToolRounds
		if withTools {
			params.Tools = specs
		}

		completion, err := a.completer.Complete(ctx, params)
		if err != nil {
			return Turn{}, a.classify(ctx, fmt.Errorf("completion call failed: %w", err))
		}
		if len(completion.Choices) == 0 {
			return Turn{}, fmt.Errorf("%w: completion returned no choices", mcpclient.ErrProtocol)
		}

		assistant := turnFromCompletion(completion.Choices[0].Message)
		if len(assistant.ToolCalls) == 0 || !withTools {
			log.Info("Chat run finished",
				logger.Int("rounds", round+1),
				logger.Int("response_chars", len(assistant.Content)))
			return AssistantTurn(assistant.Content), nil
		}

		// Keep the model's raw response, including its requested call list,
		// so the follow-up completion stays coherent.
		working = append(working, assistant)

		log.Info("Model requested tools", logger.Int("call_count", len(assistant.ToolCalls)))
		toolTurns, err := a.executeToolCalls(ctx, log, session, assistant.ToolCalls)
		if err != nil {
			return Turn{}, err
		}
		working = append(working, toolTurns...)
		working = append(working, SystemTurn(prompt.Reinforcement()))
	}
}

// executeToolCalls runs the model's requested calls in the order they were
// emitted. A failure in one call becomes an error-bearing tool Turn so the
// model can react; only a lost connection or a lapsed deadline aborts the run.
func (a *Agent) executeToolCalls(ctx context.Context, log logger.Logger, session ToolSession, calls []ToolCall) ([]Turn, error) {
	turns := make([]Turn, 0, len(calls))
	for _, call := range calls {
		args, err := mcpclient.ParseToolArguments(call.Arguments)
		if err != nil {
			log.Warn("Malformed tool arguments",
				logger.String("tool", call.Name),
				logger.Err(err))
			turns = append(turns, ToolTurn(fmt.Sprintf("Error: arguments for %s could not be parsed: %v", call.Name, err), call.ID, call.Name))
			continue
		}

		log.Info("Executing tool call",
			logger.String("tool", call.Name),
			logger.String("call_id", call.ID))

		result, err := session.CallTool(ctx, call.Name, args)
		if err != nil {
			if errors.Is(err, mcpclient.ErrConnection) || ctx.Err() != nil {
				return nil, a.classify(ctx, fmt.Errorf("tool call %s: %w", call.Name, err))
			}
			log.Warn("Tool call failed",
				logger.String("tool", call.Name),
				logger.Err(err))
			turns = append(turns, ToolTurn(fmt.Sprintf("Error: %v", err), call.ID, call.Name))
			continue
		}

		turns = append(turns, ToolTurn(mcpclient.ToolResultAsString(result), call.ID, call.Name))
	}
	return turns, nil
}

// buildWorkingTurns assembles the message list for the first completion:
// exactly one leading system Turn, then the history snapshot, then the new
// user Turn. If the snapshot already starts with a system Turn it is replaced
// rather than duplicated.
func buildWorkingTurns(history []Turn, userText, identityHint string) []Turn {
	system := SystemTurn(prompt.Compose(prompt.OrderFlow, identityHint))

	working := make([]Turn, 0, len(history)+2)
	working = append(working, system)
	if len(history) > 0 && history[0].Role == RoleSystem {
		history = history[1:]
	}
	working = append(working, history...)
	working = append(working, UserTurn(userText))
	return working
}

// classify maps a failure to the run-level error kind, preferring the
// deadline over whatever the wrapped call reported.
func (a *Agent) classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		if !errors.Is(err, mcpclient.ErrTimeout) {
			return fmt.Errorf("%w: %v", mcpclient.ErrTimeout, err)
		}
	}
	return err
}
