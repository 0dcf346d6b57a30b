package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <full_name>",
	Short: "Delete a resource by full name",
	Long: `Delete a single resource by its full name.

Examples:
  parley delete creds/openai/main
  parley delete preset/coder`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, cleanup, err := openCatalog(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		if err := c.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		if structuredOutput() {
			return printResult(map[string]any{"name": args[0], "status": "deleted"})
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
