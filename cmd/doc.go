// Package cmd implements the command-line interface for inboxchat.
//
// This package provides the following commands:
//   - chat: Talk to the email assistant in an interactive session
//   - login / logout / status: Manage the backend sign-in
//   - mail: Run single mailbox operations (list, reply, discard, drafts, categorize, digest)
//   - serve: Start the MCP server to provide tools for AI assistants
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for all MCP tools
//
// The chat command is the default command when no subcommand is specified.
package cmd
