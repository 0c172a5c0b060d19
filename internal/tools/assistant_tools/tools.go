package assistant_tools

import (
	"fmt"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxchat/internal/server"
)

const notSignedIn = "Not signed in to the email assistant. Use assistant_login to sign in, then try again."

// RegisterAssistantTools registers all assistant tools with the MCP server
func RegisterAssistantTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	if err := RegisterSessionTools(s, sc); err != nil {
		return fmt.Errorf("failed to register session tools: %w", err)
	}

	if err := RegisterChatTools(s, sc); err != nil {
		return fmt.Errorf("failed to register chat tools: %w", err)
	}

	// Write operations require !readOnly
	if err := RegisterMailTools(s, sc, readOnly); err != nil {
		return fmt.Errorf("failed to register mail tools: %w", err)
	}

	return nil
}
