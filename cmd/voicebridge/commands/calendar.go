package commands

import (
	"github.com/spf13/cobra"

	"github.com/solutionstwo/voicebridge/pkg/cli"
)

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Manage calendar accounts",
}

var calendarAddAccountCmd = &cobra.Command{
	Use:   "add-account",
	Short: "Register a Google Calendar account",
	Long: `Register a Google Calendar account on a running server.

The request file holds the account and its OAuth credentials:

  id: front-desk
  email: desk@example.com
  credentials:
    type: authorized_user
    client_id: ...
    client_secret: ...
    refresh_token: ...
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")

		var req map[string]any
		if err := cli.LoadRequest(file, &req); err != nil {
			return err
		}

		result, err := postAPI("/calendar/accounts", req)
		if err != nil {
			return err
		}
		return printResult(result)
	},
}

func init() {
	calendarAddAccountCmd.Flags().StringP("file", "f", "", "request file (yaml or json)")
	calendarAddAccountCmd.MarkFlagRequired("file")

	calendarCmd.AddCommand(calendarAddAccountCmd)
	rootCmd.AddCommand(calendarCmd)
}
