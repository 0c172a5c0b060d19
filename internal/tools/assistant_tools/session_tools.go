package assistant_tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxchat/internal/logging"
	"github.com/teemow/inboxchat/internal/server"
	"github.com/teemow/inboxchat/internal/session"
	"github.com/teemow/inboxchat/internal/tools/common"
)

// statusResult is the assistant_status payload.
type statusResult struct {
	Status        session.Status `json:"status"`
	Email         string         `json:"email,omitempty"`
	Name          string         `json:"name,omitempty"`
	Error         string         `json:"error,omitempty"`
	HasCredential bool           `json:"has_credential"`
	Messages      int            `json:"messages"`
	Busy          bool           `json:"busy"`
}

// RegisterSessionTools registers the sign-in tools
func RegisterSessionTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	statusTool := mcp.NewTool("assistant_status",
		mcp.WithDescription("Show whether the email assistant is signed in, and as whom"),
	)
	s.AddTool(statusTool, common.InstrumentedToolHandler("assistant_status", true, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleStatus(ctx, request, sc)
		}))

	loginTool := mcp.NewTool("assistant_login",
		mcp.WithDescription("Sign in to the email assistant. Without a token this returns a URL the user must open in a browser; with a token (from the login redirect) it completes the sign-in directly."),
		mcp.WithString("token",
			mcp.Description("Token from the login redirect. Omit to start a browser login."),
		),
	)
	s.AddTool(loginTool, common.InstrumentedToolHandler("assistant_login", true, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleLogin(ctx, request, sc)
		}))

	logoutTool := mcp.NewTool("assistant_logout",
		mcp.WithDescription("Sign out of the email assistant and forget the stored credential"),
	)
	s.AddTool(logoutTool, common.InstrumentedToolHandler("assistant_logout", true, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleLogout(ctx, request, sc)
		}))

	return nil
}

// ensureSession restores the session from the stored credential the first
// time any tool needs it.
func ensureSession(ctx context.Context, sc *server.ServerContext) session.State {
	st := sc.Session().State()
	if st.Status == session.StatusUninitialized {
		st = sc.Session().Initialize(ctx)
	}
	return st
}

func handleStatus(ctx context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	st := ensureSession(ctx, sc)
	snap := sc.Conversation().Snapshot()

	result := statusResult{
		Status:        st.Status,
		Error:         st.Error,
		HasCredential: sc.Gateway().HasCredential(),
		Messages:      len(snap.Messages),
		Busy:          snap.Busy,
	}
	if st.Profile != nil {
		result.Email = st.Profile.Email
		result.Name = st.Profile.Name
	}
	return common.JSONResult(result)
}

func handleLogin(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sess := sc.Session()

	if token := strings.TrimSpace(common.StringArg(args, "token")); token != "" {
		if err := sess.CompleteHandshake(ctx, session.Callback{Token: token}); err != nil {
			if errors.Is(err, session.ErrSuperseded) {
				return mcp.NewToolResultError("Another sign-in or sign-out happened at the same time. Check assistant_status."), nil
			}
			msg := sess.State().Error
			if msg == "" {
				msg = err.Error()
			}
			return mcp.NewToolResultError(msg), nil
		}
		return mcp.NewToolResultText(signedInText(sess.State())), nil
	}

	if st := ensureSession(ctx, sc); st.Status == session.StatusAuthenticated {
		return mcp.NewToolResultText(signedInText(st)), nil
	}

	hs, err := sess.BeginHandshake(ctx)
	if err != nil {
		return common.GatewayErrorResult("start login", err), nil
	}

	receiverURL, err := sc.ListenForLogin()
	if err != nil {
		sc.Logger().Warn("login receiver unavailable", logging.Err(err))
		return mcp.NewToolResultText(fmt.Sprintf(`To sign in to the email assistant:

1. Open this URL in your browser:
   %s

2. Sign in and grant mailbox access
3. Copy the token from the page you are redirected to
4. Call assistant_login again with token set to that value`, hs.RedirectURL)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(`To sign in to the email assistant:

1. Open this URL in your browser:
   %s

2. Sign in and grant mailbox access

The redirect is received at %s and completes the sign-in automatically.
Call assistant_status afterwards to confirm.`, hs.RedirectURL, receiverURL)), nil
}

func handleLogout(ctx context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	sc.Session().Logout(ctx)
	return mcp.NewToolResultText("Signed out of the email assistant."), nil
}

func signedInText(st session.State) string {
	if st.Profile == nil {
		return "Signed in to the email assistant."
	}
	if st.Profile.Name != "" {
		return fmt.Sprintf("Signed in as %s <%s>.", st.Profile.Name, st.Profile.Email)
	}
	return fmt.Sprintf("Signed in as %s.", st.Profile.Email)
}
