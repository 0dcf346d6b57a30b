package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <full_name>",
	Short: "Get a resource by full name",
	Long: `Get a single resource by its full name.

Examples:
  parley get creds/openai/main
  parley get preset/coder`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, cleanup, err := openCatalog(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		doc, err := c.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if structuredOutput() {
			return printResult(doc)
		}

		fmt.Printf("Kind: %s\n", doc.Kind)
		keys := make([]string, 0, len(doc.Fields))
		for k := range doc.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			val := fmt.Sprintf("%v", doc.Fields[k])
			if isSecretField(k) && len(val) > 8 {
				val = val[:4] + "..." + val[len(val)-4:]
			}
			fmt.Printf("  %s: %s\n", k, val)
		}
		return nil
	},
}

func isSecretField(key string) bool {
	switch key {
	case "api_key", "secret_access_key", "credentials_json":
		return true
	}
	return false
}

func init() {
	rootCmd.AddCommand(getCmd)
}
