package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxchat/internal/conversation"
	"github.com/teemow/inboxchat/internal/gateway"
	"github.com/teemow/inboxchat/internal/server"
	"github.com/teemow/inboxchat/internal/session"
)

const (
	ProfileURI      = "user://profile"
	TranscriptURI   = "conversation://transcript"
	LatestEmailsURI = "conversation://latest-emails"
)

// RegisterResources registers the session and conversation resources.
func RegisterResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	profileResource := mcp.NewResource(
		ProfileURI,
		"Current User Profile",
		mcp.WithResourceDescription("The account signed in to the email assistant and the session status"),
		mcp.WithMIMEType("application/json"),
	)
	s.AddResource(profileResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleProfile(request, sc)
	})

	transcriptResource := mcp.NewResource(
		TranscriptURI,
		"Conversation Transcript",
		mcp.WithResourceDescription("All messages of the current conversation with the email assistant, oldest first"),
		mcp.WithMIMEType("application/json"),
	)
	s.AddResource(transcriptResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleTranscript(request, sc)
	})

	latestResource := mcp.NewResource(
		LatestEmailsURI,
		"Latest Emails",
		mcp.WithResourceDescription("Emails from the most recent assistant answer that listed any"),
		mcp.WithMIMEType("application/json"),
	)
	s.AddResource(latestResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleLatestEmails(request, sc)
	})

	return nil
}

type profileData struct {
	Status session.Status `json:"status"`
	Email  string         `json:"email,omitempty"`
	Name   string         `json:"name,omitempty"`
	ID     string         `json:"id,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// handleProfile reports the session as it is; it never contacts the backend.
func handleProfile(request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	st := sc.Session().State()
	data := profileData{Status: st.Status, Error: st.Error}
	if st.Profile != nil {
		data.Email = st.Profile.Email
		data.Name = st.Profile.Name
		data.ID = st.Profile.ID
	}
	return jsonContents(request.Params.URI, data)
}

type transcriptData struct {
	Busy     bool                   `json:"busy"`
	Error    string                 `json:"error,omitempty"`
	Messages []conversation.Message `json:"messages"`
}

func handleTranscript(request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	snap := sc.Conversation().Snapshot()
	messages := snap.Messages
	if messages == nil {
		messages = []conversation.Message{}
	}
	return jsonContents(request.Params.URI, transcriptData{
		Busy:     snap.Busy,
		Error:    snap.Error,
		Messages: messages,
	})
}

func handleLatestEmails(request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	emails := sc.Conversation().LatestEmails()
	if emails == nil {
		emails = []gateway.EmailSummary{}
	}
	return jsonContents(request.Params.URI, emails)
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource %s: %w", uri, err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}
