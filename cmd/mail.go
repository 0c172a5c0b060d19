package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxchat/internal/gateway"
	"github.com/teemow/inboxchat/internal/tools/batch"
)

const defaultMailCount = 10

// mailOptions are shared by the mail subcommands.
type mailOptions struct {
	*globalOptions
	jsonOutput bool
}

func newMailCmd(opts *globalOptions) *cobra.Command {
	mo := &mailOptions{globalOptions: opts}

	cmd := &cobra.Command{
		Use:   "mail",
		Short: "Work with the mailbox directly, without the chat",
	}
	cmd.PersistentFlags().BoolVar(&mo.jsonOutput, "json", false, "Print results as JSON")

	cmd.AddCommand(newMailListCmd(mo))
	cmd.AddCommand(newMailReplyCmd(mo))
	cmd.AddCommand(newMailDiscardCmd(mo))
	cmd.AddCommand(newMailDraftsCmd(mo))
	cmd.AddCommand(newMailCategorizeCmd(mo))
	cmd.AddCommand(newMailDigestCmd(mo))

	return cmd
}

// withGateway opens the app, requires a signed-in session and runs fn.
func (mo *mailOptions) withGateway(cmd *cobra.Command, fn func(ctx context.Context, gw *gateway.Client) error) error {
	ctx := cmd.Context()

	a, err := mo.openApp(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if _, err := a.requireSession(ctx); err != nil {
		return err
	}
	return fn(ctx, a.gateway)
}

func (mo *mailOptions) printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newMailListCmd(mo *mailOptions) *cobra.Command {
	var (
		count int
		query string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent emails with summaries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return mo.withGateway(cmd, func(ctx context.Context, gw *gateway.Client) error {
				items, err := gw.ListMailItems(ctx, count, query)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if mo.jsonOutput {
					return mo.printJSON(out, items)
				}
				if len(items) == 0 {
					fmt.Fprintln(out, "No emails found.")
					return nil
				}
				printEmails(out, items)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", defaultMailCount, "Number of emails")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Mailbox search query (e.g. 'is:unread')")
	return cmd
}

func newMailReplyCmd(mo *mailOptions) *cobra.Command {
	var threadID string

	cmd := &cobra.Command{
		Use:   "reply EMAIL_ID TEXT...",
		Short: "Send a reply to an email",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mo.withGateway(cmd, func(ctx context.Context, gw *gateway.Client) error {
				res, err := gw.SendReply(ctx, gateway.SendReplyRequest{
					EmailID:      args[0],
					ReplyContent: strings.Join(args[1:], " "),
					ThreadID:     threadID,
				})
				if err != nil {
					return err
				}
				if mo.jsonOutput {
					return mo.printJSON(cmd.OutOrStdout(), res)
				}
				if !res.Success {
					return fmt.Errorf("reply was not sent: %s", res.Message)
				}
				fmt.Fprintln(cmd.OutOrStdout(), res.Message)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&threadID, "thread", "", "Thread to reply in (default: the email's thread)")
	return cmd
}

func newMailDiscardCmd(mo *mailOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "discard EMAIL_ID...",
		Short: "Move emails to the trash",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := batch.ParseIDs(args, "EMAIL_ID")
			if err != nil {
				return err
			}
			if !yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Discard %d email(s)?", len(ids))) {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing discarded.")
				return nil
			}

			return mo.withGateway(cmd, func(ctx context.Context, gw *gateway.Client) error {
				report := batch.Run(ctx, ids, func(ctx context.Context, id string) (string, error) {
					res, err := gw.DiscardItem(ctx, id, true)
					if err != nil {
						return "", err
					}
					if !res.Success {
						return "", fmt.Errorf("backend refused: %s", res.Message)
					}
					return res.Message, nil
				})

				out := cmd.OutOrStdout()
				if mo.jsonOutput {
					if err := mo.printJSON(out, report); err != nil {
						return err
					}
				} else {
					for _, o := range report.Outcomes {
						if o.Status == batch.StatusDone {
							fmt.Fprintf(out, "%s: %s\n", o.ID, o.Message)
						} else {
							fmt.Fprintf(out, "%s: %s (%s)\n", o.ID, o.Status, o.Error)
						}
					}
				}
				if report.Failed > 0 || report.Skipped > 0 {
					return fmt.Errorf("%d of %d emails were not discarded", report.Failed+report.Skipped, report.Total)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

// confirm asks a yes/no question on out and reads the answer from in.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N] ", question)
	answer, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func newMailDraftsCmd(mo *mailOptions) *cobra.Command {
	var (
		count int
		tone  string
	)

	cmd := &cobra.Command{
		Use:   "drafts [EMAIL_ID]",
		Short: "Draft replies to recent emails, or to one email",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mo.withGateway(cmd, func(ctx context.Context, gw *gateway.Client) error {
				var drafts []gateway.ReplyDraft
				if len(args) == 1 {
					draft, err := gw.DraftReply(ctx, args[0], tone)
					if err != nil {
						return err
					}
					drafts = []gateway.ReplyDraft{*draft}
				} else {
					var err error
					if drafts, err = gw.DraftReplies(ctx, count, tone); err != nil {
						return err
					}
				}

				out := cmd.OutOrStdout()
				if mo.jsonOutput {
					return mo.printJSON(out, drafts)
				}
				for _, d := range drafts {
					fmt.Fprintf(out, "Re: %s (%s, from %s)\n%s\n\n", d.OriginalSubject, d.EmailID, d.OriginalSender, strings.TrimSpace(d.SuggestedReply))
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", defaultMailCount, "Number of recent emails to draft replies for")
	cmd.Flags().StringVar(&tone, "tone", "", "Tone of the drafts (e.g. professional, friendly)")
	return cmd
}

func newMailCategorizeCmd(mo *mailOptions) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "categorize",
		Short: "Group recent emails into categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return mo.withGateway(cmd, func(ctx context.Context, gw *gateway.Client) error {
				categories, err := gw.Categorize(ctx, count)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if mo.jsonOutput {
					return mo.printJSON(out, categories)
				}
				for _, c := range categories {
					fmt.Fprintf(out, "%s (%d)\n", c.Name, c.Count)
					printEmails(out, c.Emails)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", defaultMailCount, "Number of emails")
	return cmd
}

func newMailDigestCmd(mo *mailOptions) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Summarize recent emails as a daily digest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return mo.withGateway(cmd, func(ctx context.Context, gw *gateway.Client) error {
				digest, err := gw.Digest(ctx, count)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if mo.jsonOutput {
					return mo.printJSON(out, digest)
				}
				fmt.Fprintf(out, "Digest for %s (%d emails)\n\n%s\n", digest.Date, digest.TotalEmails, digest.Summary)
				if len(digest.ActionItems) > 0 {
					fmt.Fprintln(out, "\nAction items:")
					for _, item := range digest.ActionItems {
						fmt.Fprintf(out, "  - %s\n", item)
					}
				}
				if len(digest.UrgentEmails) > 0 {
					fmt.Fprintln(out, "\nUrgent:")
					printEmails(out, digest.UrgentEmails)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", defaultMailCount, "Number of emails")
	return cmd
}
