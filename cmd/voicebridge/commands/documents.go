package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solutionstwo/voicebridge/pkg/cli"
)

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Manage knowledge base documents",
}

var documentsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add documents to a knowledge category",
	Long: `Add documents to a knowledge category on a running server.

The request file holds the category and the documents to index:

  category: services
  documents:
    - name: Haircut
      description: Classic cut and style
      price: "$40"
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")

		var req struct {
			Category  string           `json:"category" yaml:"category"`
			Documents []map[string]any `json:"documents" yaml:"documents"`
		}
		if err := cli.LoadRequest(file, &req); err != nil {
			return err
		}
		if len(req.Documents) == 0 {
			return fmt.Errorf("request file has no documents")
		}

		result, err := postAPI("/documents/add", req)
		if err != nil {
			return err
		}
		return printResult(result)
	},
}

func init() {
	documentsAddCmd.Flags().StringP("file", "f", "", "request file (yaml or json)")
	documentsAddCmd.MarkFlagRequired("file")

	documentsCmd.AddCommand(documentsAddCmd)
	rootCmd.AddCommand(documentsCmd)
}
