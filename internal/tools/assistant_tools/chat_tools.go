package assistant_tools

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxchat/internal/conversation"
	"github.com/teemow/inboxchat/internal/gateway"
	"github.com/teemow/inboxchat/internal/server"
	"github.com/teemow/inboxchat/internal/tools/common"
)

const defaultHistoryLimit = 20

// historyResult is the assistant_history payload.
type historyResult struct {
	Total    int                    `json:"total"`
	Busy     bool                   `json:"busy"`
	Error    string                 `json:"error,omitempty"`
	Messages []conversation.Message `json:"messages"`
}

// RegisterChatTools registers the conversation tools
func RegisterChatTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	chatTool := mcp.NewTool("assistant_chat",
		mcp.WithDescription("Send a message to the email assistant and return its reply. The assistant can read, summarize, draft replies to and discard emails on the user's behalf."),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("What to ask the assistant, e.g. 'Show me my last 5 emails'"),
		),
	)
	s.AddTool(chatTool, common.InstrumentedToolHandler("assistant_chat", true, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleChat(ctx, request, sc)
		}))

	historyTool := mcp.NewTool("assistant_history",
		mcp.WithDescription("Show the most recent messages of the conversation with the email assistant"),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of messages to return (default: 20, 0 for all)"),
		),
	)
	s.AddTool(historyTool, common.InstrumentedToolHandler("assistant_history", true, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleHistory(ctx, request, sc)
		}))

	resetTool := mcp.NewTool("assistant_reset",
		mcp.WithDescription("Start a new conversation with the email assistant"),
	)
	s.AddTool(resetTool, common.InstrumentedToolHandler("assistant_reset", true, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleReset(ctx, request, sc)
		}))

	return nil
}

func handleChat(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	message := common.StringArg(args, "message")

	if st := ensureSession(ctx, sc); !sc.Session().Authenticated() {
		if st.Error != "" {
			return mcp.NewToolResultError(st.Error + " Use assistant_login to sign in."), nil
		}
		return mcp.NewToolResultError(notSignedIn), nil
	}

	conv := sc.Conversation()
	conv.Initialize(ctx)

	if err := conv.SendTurn(ctx, message); err != nil {
		switch {
		case errors.Is(err, conversation.ErrBusy):
			return mcp.NewToolResultError("The assistant is still answering the previous message. Try again shortly."), nil
		case errors.Is(err, conversation.ErrNotAuthenticated):
			return mcp.NewToolResultError(notSignedIn), nil
		default:
			return common.GatewayErrorResult("send message", err), nil
		}
	}

	reply, ok := lastReply(conv.Messages())
	if !ok {
		return mcp.NewToolResultError("The assistant did not reply."), nil
	}

	if reply.ActionType == gateway.ActionError {
		detail := conv.Error()
		conv.ClearError()
		if !sc.Session().Authenticated() {
			return mcp.NewToolResultError(notSignedIn), nil
		}
		if detail != "" {
			return mcp.NewToolResultError(reply.Content + "\n\nDetails: " + detail), nil
		}
		return mcp.NewToolResultError(reply.Content), nil
	}

	return common.JSONResult(reply)
}

// lastReply returns the newest settled assistant message.
func lastReply(messages []conversation.Message) (conversation.Message, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.Role == conversation.RoleAssistant && !m.Placeholder {
			return m, true
		}
	}
	return conversation.Message{}, false
}

func handleHistory(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	limit := common.IntArg(args, "limit", defaultHistoryLimit)
	if limit < 0 {
		return mcp.NewToolResultError("limit must not be negative"), nil
	}

	snap := sc.Conversation().Snapshot()
	messages := snap.Messages
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	return common.JSONResult(historyResult{
		Total:    len(snap.Messages),
		Busy:     snap.Busy,
		Error:    snap.Error,
		Messages: messages,
	})
}

func handleReset(ctx context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	conv := sc.Conversation()
	conv.Reset(ctx)

	text := "Started a new conversation."
	if messages := conv.Messages(); len(messages) > 0 {
		text += "\n\n" + messages[0].Content
	}
	return mcp.NewToolResultText(text), nil
}
