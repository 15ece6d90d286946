package agent

import (
	"github.com/openai/openai-go/v3"
)

// Role tags a Turn with its originating party.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is one function call requested by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON-encoded
}

// Turn is one message in the dialogue history. Turns are append-only: the
// loop builds its own working list and never mutates a caller's history.
// Only tool turns carry a correlation id and tool name; only assistant turns
// carry requested tool calls.
type Turn struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// SystemTurn creates a system Turn.
func SystemTurn(content string) Turn {
	return Turn{Role: RoleSystem, Content: content}
}

// UserTurn creates a user Turn.
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// AssistantTurn creates a plain assistant Turn.
func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

// ToolTurn creates a tool-result Turn correlated to the originating call.
func ToolTurn(content, toolCallID, toolName string) Turn {
	return Turn{Role: RoleTool, Content: content, ToolCallID: toolCallID, ToolName: toolName}
}

// asMessageParam converts a Turn into the completion API's message union.
func (t Turn) asMessageParam() openai.ChatCompletionMessageParamUnion {
	switch t.Role {
	case RoleSystem:
		return openai.SystemMessage(t.Content)
	case RoleAssistant:
		msg := openai.AssistantMessage(t.Content)
		if len(t.ToolCalls) > 0 {
			calls := make([]openai.ChatCompletionMessageToolCallUnionParam, len(t.ToolCalls))
			for i, call := range t.ToolCalls {
				calls[i] = openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: call.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      call.Name,
							Arguments: call.Arguments,
						},
					},
				}
			}
			msg.OfAssistant.ToolCalls = calls
		}
		return msg
	case RoleTool:
		return openai.ToolMessage(t.Content, t.ToolCallID)
	default:
		return openai.UserMessage(t.Content)
	}
}

// turnsAsMessages converts a working Turn list for a completion call.
func turnsAsMessages(turns []Turn) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, len(turns))
	for i, t := range turns {
		messages[i] = t.asMessageParam()
	}
	return messages
}

// turnFromCompletion converts the model's raw response message into an
// assistant Turn, preserving any requested tool calls so the follow-up
// completion stays coherent.
func turnFromCompletion(msg openai.ChatCompletionMessage) Turn {
	turn := Turn{Role: RoleAssistant, Content: msg.Content}
	for _, call := range msg.ToolCalls {
		turn.ToolCalls = append(turn.ToolCalls, ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return turn
}
