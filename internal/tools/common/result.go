package common

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/inboxchat/internal/gateway"
)

// GatewayErrorResult turns a gateway failure into a tool error result that
// tells the agent what to do next.
func GatewayErrorResult(action string, err error) *mcp.CallToolResult {
	var gerr *gateway.Error
	if !errors.As(err, &gerr) {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to %s: %v", action, err))
	}

	switch gerr.Kind {
	case gateway.KindAuth:
		return mcp.NewToolResultError("Not signed in to the email assistant. Use assistant_login to sign in, then try again.")
	case gateway.KindNetwork:
		return mcp.NewToolResultError(fmt.Sprintf("Could not reach the email assistant backend to %s. Check that it is running and try again.", action))
	case gateway.KindValidation:
		return mcp.NewToolResultError(gerr.Detail)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("Failed to %s: %s", action, gerr.Detail))
	}
}

// JSONResult renders v as indented JSON text.
func JSONResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// StringArg returns the string argument name, or "".
func StringArg(args map[string]any, name string) string {
	if v, ok := args[name].(string); ok {
		return v
	}
	return ""
}

// IntArg returns the numeric argument name, or def when absent. JSON numbers
// arrive as float64.
func IntArg(args map[string]any, name string, def int) int {
	switch v := args[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

// BoolArg returns the boolean argument name, or false.
func BoolArg(args map[string]any, name string) bool {
	v, _ := args[name].(bool)
	return v
}
