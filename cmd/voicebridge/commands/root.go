package commands

import (
	"github.com/spf13/cobra"
)

var (
	flagConfig  string
	flagVerbose bool

	// flagServer is the API address the client commands talk to.
	flagServer string

	// flagOutput is the client command output format.
	flagOutput string
)

var rootCmd = &cobra.Command{
	Use:   "voicebridge",
	Short: "Telephony voice assistant bridging Twilio and OpenAI Realtime",
	Long: `voicebridge relays phone call audio between Twilio Media Streams and
the OpenAI Realtime API, with barge-in handling, knowledge base
retrieval and appointment scheduling.

Run the server:
  voicebridge serve -c voicebridge.yaml

Manage it over its HTTP API:
  voicebridge documents add -f services.yaml
  voicebridge calendar add-account -f account.yaml
  voicebridge call place --to +15550001111`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&flagServer, "server", "s", "http://localhost:5050", "voicebridge server address")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "yaml", "output format (yaml, json, raw)")
}
