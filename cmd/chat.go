package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxchat/internal/conversation"
	"github.com/teemow/inboxchat/internal/gateway"
	"github.com/teemow/inboxchat/internal/session"
)

const chatHelp = `Commands:
  /emails  show the emails from the latest answer that listed any
  /reset   start a new conversation
  /help    show this help
  /quit    leave the chat`

func newChatCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat with the email assistant",
		Long: `Start an interactive conversation with the email assistant.

Ask in plain language, for example "Show me my last 5 emails" or "Draft a
friendly reply to the email from Alice". Type /help for the chat commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, opts)
		},
	}
}

func runChat(cmd *cobra.Command, opts *globalOptions) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := opts.openApp(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	st, err := a.requireSession(ctx)
	if err != nil {
		if st.Error != "" {
			return fmt.Errorf("%s: %w", st.Error, err)
		}
		return err
	}

	r := &repl{
		conv:    a.conversation,
		session: a.session,
		in:      bufio.NewScanner(cmd.InOrStdin()),
		out:     cmd.OutOrStdout(),
	}
	return r.run(ctx)
}

// repl reads one line at a time and runs it as a chat turn or a command.
type repl struct {
	conv    *conversation.Store
	session *session.Store
	in      *bufio.Scanner
	out     io.Writer
}

func (r *repl) run(ctx context.Context) error {
	r.conv.Initialize(ctx)
	for _, m := range r.conv.Messages() {
		r.printMessage(m)
	}
	fmt.Fprintln(r.out, "Type /help for commands.")

	unsubscribe := r.conv.Subscribe(func(snap conversation.Snapshot) {
		if n := len(snap.Messages); n > 0 && snap.Messages[n-1].Placeholder {
			fmt.Fprintln(r.out, "assistant is thinking...")
		}
	})
	defer unsubscribe()

	for {
		fmt.Fprint(r.out, "> ")
		if !r.in.Scan() {
			fmt.Fprintln(r.out)
			return r.in.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(r.in.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/help":
			fmt.Fprintln(r.out, chatHelp)
			continue
		case "/reset":
			r.conv.Reset(ctx)
			for _, m := range r.conv.Messages() {
				r.printMessage(m)
			}
			continue
		case "/emails":
			r.printLatestEmails()
			continue
		}
		if strings.HasPrefix(line, "/") {
			fmt.Fprintf(r.out, "Unknown command %s. Type /help for commands.\n", line)
			continue
		}

		if err := r.turn(ctx, line); err != nil {
			return err
		}
	}
}

// turn sends one message and prints the reply. It returns an error only when
// the chat cannot continue.
func (r *repl) turn(ctx context.Context, text string) error {
	err := r.conv.SendTurn(ctx, text)
	switch {
	case errors.Is(err, conversation.ErrBusy):
		fmt.Fprintln(r.out, "Still waiting for the previous answer.")
		return nil
	case errors.Is(err, conversation.ErrNotAuthenticated):
		return errNotSignedIn
	case errors.Is(err, gateway.ErrValidation):
		fmt.Fprintln(r.out, "Please type a message.")
		return nil
	case err != nil:
		return err
	}

	messages := r.conv.Messages()
	if len(messages) > 0 {
		r.printMessage(messages[len(messages)-1])
	}

	if detail := r.conv.Error(); detail != "" {
		fmt.Fprintf(r.out, "  (%s)\n", detail)
		r.conv.ClearError()
	}
	if !r.session.Authenticated() {
		fmt.Fprintln(r.out, "Your session has ended.")
		return errNotSignedIn
	}
	return nil
}

func (r *repl) printMessage(m conversation.Message) {
	if m.Placeholder {
		return
	}
	if m.Role == conversation.RoleUser {
		return
	}

	fmt.Fprintf(r.out, "assistant: %s\n", m.Content)
	printEmails(r.out, m.Emails)
	for _, d := range m.SuggestedReplies {
		fmt.Fprintf(r.out, "  Suggested reply to %q (%s):\n", d.OriginalSubject, d.EmailID)
		for _, line := range strings.Split(strings.TrimSpace(d.SuggestedReply), "\n") {
			fmt.Fprintf(r.out, "    %s\n", line)
		}
	}
}

func (r *repl) printLatestEmails() {
	emails := r.conv.LatestEmails()
	if len(emails) == 0 {
		fmt.Fprintln(r.out, "No emails yet. Ask the assistant to show some.")
		return
	}
	printEmails(r.out, emails)
}

// printEmails renders summaries as a numbered list.
func printEmails(out io.Writer, emails []gateway.EmailSummary) {
	for i, item := range emails {
		e := item.Email
		marker := ""
		if e.IsUnread {
			marker = " *"
		}
		fmt.Fprintf(out, "  %d. %s%s\n     from %s <%s>, %s [%s]\n", i+1, e.Subject, marker, e.Sender, e.SenderEmail, e.Date, e.ID)
		if item.Summary != "" {
			fmt.Fprintf(out, "     %s\n", item.Summary)
		}
	}
}
