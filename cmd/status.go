package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxchat/internal/session"
)

type statusOutput struct {
	Status        session.Status `json:"status"`
	Email         string         `json:"email,omitempty"`
	Name          string         `json:"name,omitempty"`
	Error         string         `json:"error,omitempty"`
	Backend       string         `json:"backend"`
	HasCredential bool           `json:"has_credential"`
}

func newStatusCmd(opts *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether you are signed in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			st := a.session.Initialize(cmd.Context())
			result := statusOutput{
				Status:        st.Status,
				Error:         st.Error,
				Backend:       a.cfg.BaseURL,
				HasCredential: a.gateway.HasCredential(),
			}
			if st.Profile != nil {
				result.Email = st.Profile.Email
				result.Name = st.Profile.Name
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			fmt.Fprintf(out, "Backend: %s\n", result.Backend)
			if st.Status == session.StatusAuthenticated {
				printSignedIn(out, st)
			} else {
				fmt.Fprintln(out, "Not signed in. Run `inboxchat login` to sign in.")
			}
			if result.Error != "" {
				fmt.Fprintf(out, "Last error: %s\n", result.Error)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the status as JSON")
	return cmd
}
