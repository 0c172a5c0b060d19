package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strings"
	"text/template"

	"github.com/spf13/cobra"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxchat/internal/conversation"
	"github.com/teemow/inboxchat/internal/credstore"
	"github.com/teemow/inboxchat/internal/gateway"
	"github.com/teemow/inboxchat/internal/logging"
	"github.com/teemow/inboxchat/internal/server"
	"github.com/teemow/inboxchat/internal/session"
)

func newGenerateDocsCmd() *cobra.Command {
	var (
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "generate-docs",
		Short: "Generate MCP tool documentation",
		Long: `Generate markdown documentation for all available MCP tools.
This command introspects the registered tools and outputs their documentation
in markdown format, ensuring the documentation is always accurate and in sync
with the actual tool implementations.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerateDocs(cmd.Context(), outputFile, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

// listTools registers every tool on a throwaway server and returns them.
// No request reaches the backend, so a placeholder URL and an empty
// in-memory credential are enough.
func listTools(ctx context.Context, readOnly bool) ([]mcp.Tool, error) {
	logger := logging.Discard()

	gw, err := gateway.New(ctx, gateway.Options{
		BaseURL: "http://localhost",
		Store:   credstore.NewMemoryStore(""),
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	sess := session.New(gw, session.Options{Logger: logger})
	defer sess.Close()

	serverContext, err := server.NewServerContext(ctx, server.Options{
		Gateway:      gw,
		Session:      sess,
		Conversation: conversation.New(gw, conversation.Options{Gate: sess, Logger: logger}),
		Logger:       logger,
		AllowWrite:   !readOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		_ = serverContext.Shutdown()
	}()

	mcpSrv := mcpserver.NewMCPServer("inboxchat", version,
		mcpserver.WithToolCapabilities(true),
	)
	if err := registerAllTools(mcpSrv, serverContext, readOnly); err != nil {
		return nil, err
	}

	serverTools := mcpSrv.ListTools()
	tools := make([]mcp.Tool, 0, len(serverTools))
	for _, serverTool := range serverTools {
		tools = append(tools, serverTool.Tool)
	}
	return tools, nil
}

func runGenerateDocs(ctx context.Context, outputFile string, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	tools, err := listTools(ctx, false)
	if err != nil {
		return err
	}
	readOnlyTools, err := listTools(ctx, true)
	if err != nil {
		return err
	}

	// Tools missing from the read-only registration need --yolo.
	writeTools := make(map[string]bool, len(tools))
	for _, tool := range tools {
		writeTools[tool.Name] = true
	}
	for _, tool := range readOnlyTools {
		delete(writeTools, tool.Name)
	}

	markdown, err := generateToolsMarkdown(tools, writeTools)
	if err != nil {
		return err
	}

	if outputFile == "" {
		_, err := io.WriteString(stdout, markdown)
		return err
	}
	if err := os.WriteFile(outputFile, []byte(markdown), 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	fmt.Fprintf(stderr, "Documentation written to: %s\n", outputFile)
	return nil
}

type toolArg struct {
	Name        string
	Requirement string // required, optional
	Description string
}

type toolDoc struct {
	Name        string
	Write       bool
	Description string
	Args        []toolArg
}

type toolCategory struct {
	Name   string
	Anchor string
	Tools  []toolDoc
}

var docsTemplate = template.Must(template.New("tools").
	Funcs(template.FuncMap{"code": func(s string) string { return "`" + s + "`" }}).
	Parse(`{{define "tool"}}### {{.Name}}{{if .Write}} (write){{end}}

{{with .Description}}{{.}}

{{end}}{{with .Args}}**Arguments:**
{{range .}}- {{code .Name}} ({{.Requirement}}): {{.Description}}
{{end}}
{{end}}{{end}}# MCP Tools Reference

This document provides a complete reference of all tools available when running inboxchat as an MCP server.

**Note:** This documentation is automatically generated from the tool definitions.

## Table of Contents

{{range .}}- [{{.Name}}](#{{.Anchor}})
{{end}}
## Safety Mode

The server starts in read-only mode. Tools marked **write** are only registered when {{code "inboxchat serve"}} runs with {{code "--yolo"}}.

{{range .}}## {{.Name}}

{{range .Tools}}{{template "tool" .}}
{{end}}{{end}}`))

func generateToolsMarkdown(tools []mcp.Tool, writeTools map[string]bool) (string, error) {
	byCategory := make(map[string][]toolDoc)
	for _, tool := range tools {
		category := getCategoryFromToolName(tool.Name)
		byCategory[category] = append(byCategory[category], newToolDoc(tool, writeTools[tool.Name]))
	}

	categories := make([]toolCategory, 0, len(byCategory))
	for name, docs := range byCategory {
		sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
		categories = append(categories, toolCategory{
			Name:   name,
			Anchor: strings.ToLower(strings.ReplaceAll(name, " ", "-")),
			Tools:  docs,
		})
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })

	var sb strings.Builder
	if err := docsTemplate.Execute(&sb, categories); err != nil {
		return "", fmt.Errorf("failed to render tool docs: %w", err)
	}
	return sb.String(), nil
}

func getCategoryFromToolName(name string) string {
	prefix, _, _ := strings.Cut(name, "_")
	switch prefix {
	case "assistant":
		return "Assistant Tools"
	case "mail":
		return "Mailbox Tools"
	default:
		return "Other"
	}
}

func newToolDoc(tool mcp.Tool, write bool) toolDoc {
	doc := toolDoc{Name: tool.Name, Write: write, Description: tool.Description}

	names := make([]string, 0, len(tool.InputSchema.Properties))
	for name := range tool.InputSchema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		prop, ok := tool.InputSchema.Properties[name].(map[string]any)
		if !ok {
			continue
		}
		arg := toolArg{Name: name, Requirement: "optional"}
		if slices.Contains(tool.InputSchema.Required, name) {
			arg.Requirement = "required"
		}
		if desc, ok := prop["description"].(string); ok {
			arg.Description = desc
		} else {
			arg.Description = getPropertyType(prop) + " parameter"
		}
		doc.Args = append(doc.Args, arg)
	}
	return doc
}

func generateToolMarkdown(tool mcp.Tool, write bool) string {
	var sb strings.Builder
	_ = docsTemplate.ExecuteTemplate(&sb, "tool", newToolDoc(tool, write))
	return sb.String()
}

func getPropertyType(prop map[string]any) string {
	if t, ok := prop["type"].(string); ok {
		return t
	}
	return "any"
}
