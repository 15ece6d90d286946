package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/openai/openai-go/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportbot/mcpclient"
)

// fakeSession is a scripted ToolSession that counts lifecycle calls.
type fakeSession struct {
	tools       []mcp.Tool
	results     map[string]string
	callErr     map[string]error
	blockOnCall bool

	initCalls  int
	listCalls  int
	closeCalls int
	toolCalls  []string
}

func (f *fakeSession) Initialize(ctx context.Context) error {
	f.initCalls++
	return nil
}

func (f *fakeSession) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	f.listCalls++
	return f.tools, nil
}

func (f *fakeSession) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	f.toolCalls = append(f.toolCalls, name)
	if f.blockOnCall {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: calling tool %s: %v", mcpclient.ErrTimeout, name, ctx.Err())
	}
	if err := f.callErr[name]; err != nil {
		return nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Type: "text", Text: f.results[name]}},
	}, nil
}

func (f *fakeSession) Close() error {
	f.closeCalls++
	return nil
}

// fakeCompleter replays scripted completions and records request params.
type fakeCompleter struct {
	responses []*openai.ChatCompletion
	requests  []openai.ChatCompletionNewParams
	err       error
}

func (f *fakeCompleter) Complete(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	f.requests = append(f.requests, params)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.requests) > len(f.responses) {
		return nil, errors.New("no scripted response left")
	}
	return f.responses[len(f.requests)-1], nil
}

func textCompletion(content string) *openai.ChatCompletion {
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func toolCallCompletion(calls ...ToolCall) *openai.ChatCompletion {
	msg := openai.ChatCompletionMessage{}
	for _, call := range calls {
		msg.ToolCalls = append(msg.ToolCalls, openai.ChatCompletionMessageToolCallUnion{
			ID: call.ID,
			Function: openai.ChatCompletionMessageFunctionToolCallFunction{
				Name:      call.Name,
				Arguments: call.Arguments,
			},
		})
	}
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{{Message: msg}},
	}
}

func catalogTools(names ...string) []mcp.Tool {
	tools := make([]mcp.Tool, len(names))
	for i, name := range names {
		tools[i] = mcp.Tool{
			Name:        name,
			Description: name,
			InputSchema: mcp.ToolInputSchema{Type: "object"},
		}
	}
	return tools
}

func newTestAgent(session *fakeSession, completer *fakeCompleter) (*Agent, *int) {
	opens := 0
	opener := func(ctx context.Context) (ToolSession, error) {
		opens++
		return session, nil
	}
	return New(opener, completer, "openai/gpt-4o-mini"), &opens
}

func TestRunNoToolCalls(t *testing.T) {
	session := &fakeSession{tools: catalogTools("list_products", "create_order")}
	completer := &fakeCompleter{responses: []*openai.ChatCompletion{textCompletion("Hello!")}}
	bot, opens := newTestAgent(session, completer)

	turn, err := bot.Run(context.Background(), "hi", nil, "")
	require.NoError(t, err)
	assert.Equal(t, RoleAssistant, turn.Role)
	assert.Equal(t, "Hello!", turn.Content)

	// Exactly one completion, and the session still cycled once.
	assert.Len(t, completer.requests, 1)
	assert.Equal(t, 1, *opens)
	assert.Equal(t, 1, session.initCalls)
	assert.Equal(t, 1, session.listCalls)
	assert.Equal(t, 1, session.closeCalls)
	assert.Empty(t, session.toolCalls)
}

func TestRunSingleToolRound(t *testing.T) {
	session := &fakeSession{
		tools:   catalogTools("list_products", "create_order"),
		results: map[string]string{"list_products": `{"products":[]}`},
	}
	completer := &fakeCompleter{responses: []*openai.ChatCompletion{
		toolCallCompletion(ToolCall{ID: "call_1", Name: "list_products", Arguments: `{}`}),
		textCompletion(`{"type":"product_list","products":[]}`),
	}}
	bot, opens := newTestAgent(session, completer)

	turn, err := bot.Run(context.Background(), "show me products", nil, "")
	require.NoError(t, err)
	assert.Equal(t, `{"type":"product_list","products":[]}`, turn.Content)

	require.Len(t, completer.requests, 2)
	assert.NotEmpty(t, completer.requests[0].Tools, "first call offers the catalog")
	assert.Empty(t, completer.requests[1].Tools, "follow-up call is answer-only")
	assert.Equal(t, []string{"list_products"}, session.toolCalls)
	assert.Equal(t, 1, *opens)
	assert.Equal(t, 1, session.closeCalls)
}

func TestRunAppendsOneToolTurnPerCall(t *testing.T) {
	session := &fakeSession{
		tools: catalogTools("list_products", "get_order_history"),
		results: map[string]string{
			"list_products":     "products here",
			"get_order_history": "orders here",
		},
	}
	completer := &fakeCompleter{responses: []*openai.ChatCompletion{
		toolCallCompletion(
			ToolCall{ID: "call_1", Name: "list_products", Arguments: `{}`},
			ToolCall{ID: "call_2", Name: "get_order_history", Arguments: `{"customer_id":"c1"}`},
		),
		textCompletion("done"),
	}}
	bot, _ := newTestAgent(session, completer)

	_, err := bot.Run(context.Background(), "products and my orders", nil, "")
	require.NoError(t, err)

	// Calls run in the order the model emitted them.
	assert.Equal(t, []string{"list_products", "get_order_history"}, session.toolCalls)

	// The follow-up request carries one tool message per call, correlated by id.
	second := completer.requests[1].Messages
	var toolIDs []string
	for _, msg := range second {
		if msg.OfTool != nil {
			toolIDs = append(toolIDs, msg.OfTool.ToolCallID)
		}
	}
	assert.Equal(t, []string{"call_1", "call_2"}, toolIDs)
}

func TestRunToolFailureBecomesErrorTurn(t *testing.T) {
	session := &fakeSession{
		tools: catalogTools("list_products"),
		callErr: map[string]error{
			"list_products": fmt.Errorf("%w: %q is not among the listed tools", mcpclient.ErrUnknownTool, "list_products"),
		},
	}
	completer := &fakeCompleter{responses: []*openai.ChatCompletion{
		toolCallCompletion(ToolCall{ID: "call_1", Name: "list_products", Arguments: `{}`}),
		textCompletion("sorry, something went wrong"),
	}}
	bot, _ := newTestAgent(session, completer)

	turn, err := bot.Run(context.Background(), "products", nil, "")
	require.NoError(t, err, "a failed tool call must not fail the run")
	assert.Equal(t, "sorry, something went wrong", turn.Content)

	second := completer.requests[1].Messages
	found := false
	for _, msg := range second {
		if msg.OfTool != nil && msg.OfTool.ToolCallID == "call_1" {
			found = true
			assert.Contains(t, msg.OfTool.Content.OfString.String(), "Error:")
		}
	}
	assert.True(t, found, "error-bearing tool turn should be present")
	assert.Equal(t, 1, session.closeCalls)
}

func TestRunMalformedArgumentsBecomeErrorTurn(t *testing.T) {
	session := &fakeSession{tools: catalogTools("create_order")}
	completer := &fakeCompleter{responses: []*openai.ChatCompletion{
		toolCallCompletion(ToolCall{ID: "call_1", Name: "create_order", Arguments: `{not json`}),
		textCompletion("could not place the order"),
	}}
	bot, _ := newTestAgent(session, completer)

	_, err := bot.Run(context.Background(), "order it", nil, "")
	require.NoError(t, err)

	// The bad call never reached the session.
	assert.Empty(t, session.toolCalls)

	second := completer.requests[1].Messages
	var errContent string
	for _, msg := range second {
		if msg.OfTool != nil {
			errContent = msg.OfTool.Content.OfString.String()
		}
	}
	assert.Contains(t, errContent, "could not be parsed")
}

func TestRunDoesNotMutateHistory(t *testing.T) {
	history := []Turn{
		UserTurn("earlier question"),
		AssistantTurn("earlier answer"),
	}
	snapshot := make([]Turn, len(history))
	copy(snapshot, history)

	session := &fakeSession{tools: catalogTools("list_products")}
	completer := &fakeCompleter{responses: []*openai.ChatCompletion{textCompletion("ok")}}
	bot, _ := newTestAgent(session, completer)

	_, err := bot.Run(context.Background(), "next question", history, "")
	require.NoError(t, err)
	assert.Equal(t, snapshot, history)
}

func TestRunReplacesLeadingSystemTurn(t *testing.T) {
	history := []Turn{
		SystemTurn("stale instructions"),
		UserTurn("hi"),
		AssistantTurn("hello"),
	}

	session := &fakeSession{tools: catalogTools("list_products")}
	completer := &fakeCompleter{responses: []*openai.ChatCompletion{textCompletion("ok")}}
	bot, _ := newTestAgent(session, completer)

	_, err := bot.Run(context.Background(), "products?", history, "")
	require.NoError(t, err)

	messages := completer.requests[0].Messages
	systemCount := 0
	for _, msg := range messages {
		if msg.OfSystem != nil {
			systemCount++
			assert.NotEqual(t, "stale instructions", msg.OfSystem.Content.OfString.String())
		}
	}
	assert.Equal(t, 1, systemCount, "exactly one system turn, freshly composed")
	require.NotEmpty(t, messages)
	assert.NotNil(t, messages[0].OfSystem, "system turn leads the working list")
}

func TestRunTimeoutReleasesSession(t *testing.T) {
	session := &fakeSession{
		tools:       catalogTools("list_products"),
		blockOnCall: true,
	}
	completer := &fakeCompleter{responses: []*openai.ChatCompletion{
		toolCallCompletion(ToolCall{ID: "call_1", Name: "list_products", Arguments: `{}`}),
	}}
	bot, opens := newTestAgent(session, completer)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := bot.Run(ctx, "products", nil, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, mcpclient.ErrTimeout)
	assert.Equal(t, *opens, session.closeCalls, "every opened session is closed")
}

func TestRunCompletionFailureClosesSession(t *testing.T) {
	session := &fakeSession{tools: catalogTools("list_products")}
	completer := &fakeCompleter{err: errors.New("upstream 500")}
	bot, _ := newTestAgent(session, completer)

	_, err := bot.Run(context.Background(), "hi", nil, "")
	require.Error(t, err)
	assert.Equal(t, 1, session.closeCalls)
}

func TestRunSessionOpenFailure(t *testing.T) {
	opener := func(ctx context.Context) (ToolSession, error) {
		return nil, fmt.Errorf("%w: dial tcp: connection refused", mcpclient.ErrConnection)
	}
	bot := New(opener, &fakeCompleter{}, "openai/gpt-4o-mini")

	_, err := bot.Run(context.Background(), "hi", nil, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, mcpclient.ErrConnection)
}

func TestRunIdentityHintReachesSystemTurn(t *testing.T) {
	session := &fakeSession{tools: catalogTools("list_products")}
	completer := &fakeCompleter{responses: []*openai.ChatCompletion{textCompletion("ok")}}
	bot, _ := newTestAgent(session, completer)

	_, err := bot.Run(context.Background(), "buy it", nil, "cust_42")
	require.NoError(t, err)

	first := completer.requests[0].Messages[0]
	require.NotNil(t, first.OfSystem)
	assert.Contains(t, first.OfSystem.Content.OfString.String(), "cust_42")
}
