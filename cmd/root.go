package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// version will be set by main
var version = "dev"

// SetVersion sets the version reported by the CLI and the MCP server.
func SetVersion(v string) {
	version = v
}

// newRootCmd builds the command tree. Each call returns an independent tree,
// so tests can run commands without sharing flag state.
func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "inboxchat",
		Short: "Chat with your email assistant from the terminal",
		Long: `inboxchat is a client for a conversational email assistant. Sign in once
through the browser, then ask the assistant to read, summarize, draft replies to
or clean up your mail.

It can run as:
  - An interactive chat in the terminal (inboxchat chat)
  - One-shot mailbox commands (inboxchat mail ...)
  - An MCP (Model Context Protocol) server for AI assistants (inboxchat serve)`,
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate(`{{printf "inboxchat version %s\n" .Version}}`)

	opts.bindFlags(rootCmd)

	rootCmd.AddCommand(newLoginCmd(opts))
	rootCmd.AddCommand(newLogoutCmd(opts))
	rootCmd.AddCommand(newStatusCmd(opts))
	rootCmd.AddCommand(newChatCmd(opts))
	rootCmd.AddCommand(newMailCmd(opts))
	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())

	return rootCmd
}

// Execute is the main entry point for the CLI application
func Execute() {
	// Without a subcommand, start the chat.
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "chat")
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of inboxchat",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("inboxchat version %s\n", version)
		},
	}
}
