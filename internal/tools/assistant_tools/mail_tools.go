package assistant_tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxchat/internal/gateway"
	"github.com/teemow/inboxchat/internal/server"
	"github.com/teemow/inboxchat/internal/tools/batch"
	"github.com/teemow/inboxchat/internal/tools/common"
)

const defaultMailCount = 10

// RegisterMailTools registers the mailbox tools. Tools that send or discard
// mail are skipped when readOnly is set.
func RegisterMailTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	listTool := mcp.NewTool("mail_list",
		mcp.WithDescription("List recent emails with the assistant's summary of each"),
		mcp.WithNumber("count",
			mcp.Description("Number of emails to return (default: 10)"),
		),
		mcp.WithString("query",
			mcp.Description("Mailbox search query (e.g., 'from:alice@example.com', 'is:unread')"),
		),
	)
	s.AddTool(listTool, common.InstrumentedToolHandler("mail_list", true, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleMailList(ctx, request, sc)
		}))

	draftsTool := mcp.NewTool("mail_draft_replies",
		mcp.WithDescription("Draft replies to recent emails, or to a single email when email_id is set"),
		mcp.WithString("email_id",
			mcp.Description("Draft a reply to this email only"),
		),
		mcp.WithNumber("count",
			mcp.Description("Number of recent emails to draft replies for (default: 10)"),
		),
		mcp.WithString("tone",
			mcp.Description("Tone of the drafts (e.g., 'professional', 'friendly'; default: professional)"),
		),
	)
	s.AddTool(draftsTool, common.InstrumentedToolHandler("mail_draft_replies", true, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleDraftReplies(ctx, request, sc)
		}))

	categorizeTool := mcp.NewTool("mail_categorize",
		mcp.WithDescription("Group recent emails into categories"),
		mcp.WithNumber("count",
			mcp.Description("Number of emails to categorize (default: 10)"),
		),
	)
	s.AddTool(categorizeTool, common.InstrumentedToolHandler("mail_categorize", true, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCategorize(ctx, request, sc)
		}))

	digestTool := mcp.NewTool("mail_digest",
		mcp.WithDescription("Summarize recent emails as a daily digest"),
		mcp.WithNumber("count",
			mcp.Description("Number of emails to include (default: 10)"),
		),
	)
	s.AddTool(digestTool, common.InstrumentedToolHandler("mail_digest", true, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleDigest(ctx, request, sc)
		}))

	if readOnly {
		return nil
	}

	sendReplyTool := mcp.NewTool("mail_send_reply",
		mcp.WithDescription("Send a reply to an email"),
		mcp.WithString("email_id",
			mcp.Required(),
			mcp.Description("ID of the email to reply to"),
		),
		mcp.WithString("reply_content",
			mcp.Required(),
			mcp.Description("Body of the reply"),
		),
		mcp.WithString("thread_id",
			mcp.Description("Thread to reply in (default: the email's thread)"),
		),
	)
	s.AddTool(sendReplyTool, common.InstrumentedToolHandler("mail_send_reply", false, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSendReply(ctx, request, sc)
		}))

	discardTool := mcp.NewTool("mail_discard",
		mcp.WithDescription("Move one or more emails to the trash"),
		mcp.WithString("email_ids",
			mcp.Required(),
			mcp.Description("Email ID (string) or array of email IDs to discard"),
		),
		mcp.WithBoolean("confirm",
			mcp.Required(),
			mcp.Description("Must be true; the backend refuses unconfirmed deletes"),
		),
	)
	s.AddTool(discardTool, common.InstrumentedToolHandler("mail_discard", false, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleDiscard(ctx, request, sc)
		}))

	return nil
}

func handleMailList(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	count := common.IntArg(args, "count", defaultMailCount)
	query := common.StringArg(args, "query")

	items, err := sc.Gateway().ListMailItems(ctx, count, query)
	if err != nil {
		return common.GatewayErrorResult("list emails", err), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("No emails found."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d emails:\n", len(items))
	for i, item := range items {
		e := item.Email
		unread := ""
		if e.IsUnread {
			unread = " [unread]"
		}
		fmt.Fprintf(&b, "%d. %s%s\n   ID: %s (thread %s)\n   From: %s <%s>\n   Date: %s\n",
			i+1, e.Subject, unread, e.ID, e.ThreadID, e.Sender, e.SenderEmail, e.Date)
		if item.Category != "" {
			fmt.Fprintf(&b, "   Category: %s\n", item.Category)
		}
		if item.Summary != "" {
			fmt.Fprintf(&b, "   Summary: %s\n", item.Summary)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

func handleDraftReplies(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	tone := common.StringArg(args, "tone")

	if emailID := common.StringArg(args, "email_id"); emailID != "" {
		draft, err := sc.Gateway().DraftReply(ctx, emailID, tone)
		if err != nil {
			return common.GatewayErrorResult("draft reply", err), nil
		}
		return common.JSONResult(draft)
	}

	drafts, err := sc.Gateway().DraftReplies(ctx, common.IntArg(args, "count", defaultMailCount), tone)
	if err != nil {
		return common.GatewayErrorResult("draft replies", err), nil
	}
	return common.JSONResult(drafts)
}

func handleCategorize(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	categories, err := sc.Gateway().Categorize(ctx, common.IntArg(args, "count", defaultMailCount))
	if err != nil {
		return common.GatewayErrorResult("categorize emails", err), nil
	}
	return common.JSONResult(categories)
}

func handleDigest(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	digest, err := sc.Gateway().Digest(ctx, common.IntArg(args, "count", defaultMailCount))
	if err != nil {
		return common.GatewayErrorResult("build digest", err), nil
	}
	return common.JSONResult(digest)
}

func handleSendReply(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	res, err := sc.Gateway().SendReply(ctx, gateway.SendReplyRequest{
		EmailID:      common.StringArg(args, "email_id"),
		ReplyContent: common.StringArg(args, "reply_content"),
		ThreadID:     common.StringArg(args, "thread_id"),
	})
	if err != nil {
		return common.GatewayErrorResult("send reply", err), nil
	}
	if !res.Success {
		return mcp.NewToolResultError(fmt.Sprintf("Reply was not sent: %s", res.Message)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Reply sent.\n%s", res.Message)), nil
}

func handleDiscard(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	ids, err := batch.ParseIDs(args["email_ids"], "email_ids")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !common.BoolArg(args, "confirm") {
		return mcp.NewToolResultError("Set confirm to true to discard emails."), nil
	}

	report := batch.Run(ctx, ids, func(ctx context.Context, id string) (string, error) {
		res, err := sc.Gateway().DiscardItem(ctx, id, true)
		if err != nil {
			return "", err
		}
		if !res.Success {
			return "", fmt.Errorf("backend refused: %s", res.Message)
		}
		return res.Message, nil
	})

	if report.Done == 0 {
		return mcp.NewToolResultError(report.String()), nil
	}
	return mcp.NewToolResultText(report.String()), nil
}
