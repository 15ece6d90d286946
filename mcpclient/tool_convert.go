package mcpclient

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/openai/openai-go/v3"
)

// ToolsAsFunctions converts MCP tool descriptors into the function-calling
// specs the completion API expects. Name and description pass through
// unchanged and the input schema becomes the function's parameter schema
// as-is: schema correctness is the server's responsibility, and a malformed
// descriptor surfaces later as a tool-invocation error rather than here.
func ToolsAsFunctions(mcpTools []mcp.Tool) []openai.ChatCompletionToolUnionParam {
	specs := make([]openai.ChatCompletionToolUnionParam, len(mcpTools))
	for i, tool := range mcpTools {
		specs[i] = openai.ChatCompletionToolUnionParam{
			OfFunction: &openai.ChatCompletionFunctionToolParam{
				Function: openai.FunctionDefinitionParam{
					Name:        tool.Name,
					Description: openai.String(tool.Description),
					Parameters:  schemaAsParameters(tool.InputSchema),
				},
			},
		}
	}
	return specs
}

func schemaAsParameters(schema mcp.ToolInputSchema) openai.FunctionParameters {
	params := openai.FunctionParameters{
		"type": schema.Type,
	}
	if len(schema.Properties) > 0 {
		params["properties"] = schema.Properties
	}
	if len(schema.Required) > 0 {
		params["required"] = schema.Required
	}
	return params
}

// ToolResultAsString flattens a tool result's content parts into the single
// text blob that gets re-injected into the dialogue. Text parts are
// concatenated verbatim; images and other kinds become placeholder markers.
func ToolResultAsString(result *mcp.CallToolResult) string {
	if result == nil {
		return "Tool execution completed but no result returned"
	}

	var parts []string
	for _, content := range result.Content {
		switch c := content.(type) {
		case *mcp.TextContent:
			parts = append(parts, c.Text)
		case *mcp.ImageContent:
			parts = append(parts, "[Image Content]")
		default:
			if jsonBytes, err := json.Marshal(content); err == nil {
				parts = append(parts, string(jsonBytes))
			} else {
				parts = append(parts, fmt.Sprintf("[Unknown content type: %T]", content))
			}
		}
	}

	joined := strings.Join(parts, "")

	if result.IsError {
		if joined == "" {
			return "Tool call failed with error: (no error details available)"
		}
		return fmt.Sprintf("Tool call failed with error: %s", joined)
	}

	return joined
}

// TextOnly concatenates just the text parts of a result, skipping images and
// other kinds entirely. The identity-verification flow uses this because its
// result must parse as JSON and placeholders would corrupt it.
func TextOnly(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	var b strings.Builder
	for _, content := range result.Content {
		if c, ok := content.(*mcp.TextContent); ok {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}

// ParseToolArguments parses the JSON-encoded arguments of a model-requested
// tool call into the mapping the MCP call expects.
func ParseToolArguments(argsJSON string) (map[string]interface{}, error) {
	if strings.TrimSpace(argsJSON) == "" {
		return make(map[string]interface{}), nil
	}

	var args map[string]interface{}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArguments, err)
	}
	return args, nil
}
