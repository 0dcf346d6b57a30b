package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/pkg/catalog"
)

var applyFile string

var applyCmd = &cobra.Command{
	Use:   "apply -f <file.yaml>",
	Short: "Declare and write resources",
	Long: `Apply one or more resource documents from a YAML file.

The file may hold multiple documents separated by "---"; each document
needs a 'kind' and the fields its schema requires. Use "-" to read
from stdin.

Examples:
  parley apply -f setup.yaml
  cat creds.yaml | parley apply -f -`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if applyFile == "" {
			return fmt.Errorf("apply: -f <file> is required")
		}
		docs, err := catalog.ParseDocumentsFromFile(applyFile)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			return fmt.Errorf("apply: no documents in %s", applyFile)
		}

		c, cleanup, err := openCatalog(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		results, err := c.Apply(cmd.Context(), docs)
		if err != nil {
			return err
		}
		if structuredOutput() {
			return printResult(results)
		}
		for _, r := range results {
			fmt.Printf("%s/%s %s\n", r.Kind, r.Name, r.Status)
		}
		return nil
	},
}

func init() {
	applyCmd.Flags().StringVarP(&applyFile, "file", "f", "", "YAML file with resource documents ('-' for stdin)")

	rootCmd.AddCommand(applyCmd)
}
