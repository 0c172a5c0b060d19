package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxchat/internal/callback"
	"github.com/teemow/inboxchat/internal/session"
)

func newLoginCmd(opts *globalOptions) *cobra.Command {
	var (
		token        string
		force        bool
		callbackAddr string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the email assistant",
		Long: `Sign in to the email assistant through the browser.

inboxchat prints a URL to open, then waits for the backend to redirect back to a
local receiver (callback.addr, default 127.0.0.1:3000) with the session token.

If the redirect cannot reach this machine, copy the token from the redirect URL
and pass it with --token.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, opts, token, force, callbackAddr)
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Complete the login with this token instead of waiting for the redirect")
	cmd.Flags().BoolVar(&force, "force", false, "Sign in again even if already signed in")
	cmd.Flags().StringVar(&callbackAddr, "callback-addr", "", "Address for the local redirect receiver. Can also use INBOXCHAT_CALLBACK_ADDR env var.")

	return cmd
}

func runLogin(cmd *cobra.Command, opts *globalOptions, token string, force bool, callbackAddr string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := opts.openApp(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	out := cmd.OutOrStdout()

	if token != "" {
		if err := a.session.CompleteHandshake(ctx, session.Callback{Token: token}); err != nil {
			return loginError(a.session.State(), err)
		}
		printSignedIn(out, a.session.State())
		return nil
	}

	if !force {
		if st := a.session.Initialize(ctx); st.Status == session.StatusAuthenticated {
			printSignedIn(out, st)
			fmt.Fprintln(out, "Use --force to sign in again.")
			return nil
		}
	}

	hs, err := a.session.BeginHandshake(ctx)
	if err != nil {
		return loginError(a.session.State(), err)
	}

	if callbackAddr == "" {
		callbackAddr = a.cfg.Callback.Addr
	}
	recv, err := callback.New(callback.Config{
		Addr:      callbackAddr,
		Completer: a.session,
		Logger:    a.logger,
	})
	if err != nil {
		return err
	}
	if err := recv.Start(); err != nil {
		return fmt.Errorf("%w (use --token to sign in without the local receiver)", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = recv.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(out, "Open this URL in your browser to sign in:\n\n  %s\n\n", hs.RedirectURL)
	fmt.Fprintf(out, "Waiting for the login redirect on %s ...\n", recv.URL())

	if err := recv.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return errors.New("login cancelled")
		}
		return loginError(a.session.State(), err)
	}

	// Let the browser finish loading the confirmation page before the
	// receiver goes away.
	select {
	case <-time.After(a.cfg.ConfirmDelay()):
	case <-ctx.Done():
	}

	printSignedIn(out, a.session.State())
	return nil
}

// loginError prefers the user facing message the session recorded.
func loginError(st session.State, err error) error {
	if st.Error != "" {
		return errors.New(st.Error)
	}
	return err
}

func printSignedIn(out io.Writer, st session.State) {
	switch {
	case st.Profile == nil:
		fmt.Fprintln(out, "Signed in.")
	case st.Profile.Name != "":
		fmt.Fprintf(out, "Signed in as %s <%s>.\n", st.Profile.Name, st.Profile.Email)
	default:
		fmt.Fprintf(out, "Signed in as %s.\n", st.Profile.Email)
	}
}

func newLogoutCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			a.session.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}
