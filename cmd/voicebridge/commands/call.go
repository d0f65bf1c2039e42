package commands

import (
	"github.com/spf13/cobra"
)

var callCmd = &cobra.Command{
	Use:   "call",
	Short: "Place outbound calls",
}

var callPlaceCmd = &cobra.Command{
	Use:   "place",
	Short: "Place an outbound call to a phone number",
	RunE: func(cmd *cobra.Command, args []string) error {
		to, _ := cmd.Flags().GetString("to")

		result, err := postAPI("/outgoing-call", map[string]string{"to": to})
		if err != nil {
			return err
		}
		return printResult(result)
	},
}

func init() {
	callPlaceCmd.Flags().String("to", "", "destination phone number in E.164 form")
	callPlaceCmd.MarkFlagRequired("to")

	callCmd.AddCommand(callPlaceCmd)
	rootCmd.AddCommand(callCmd)
}
