package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/pkg/catalog"
)

var (
	listLimit int
	listFrom  string
	listAll   bool
)

var listCmd = &cobra.Command{
	Use:   "list <prefix*>",
	Short: "List resources by prefix",
	Long: `List resources matching a prefix pattern. Pattern must end with *.

Examples:
  parley list preset/*
  parley list creds/openai/*
  parley list model/* --limit=20
  parley list creds/* --all`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, cleanup, err := openCatalog(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		docs, err := c.List(cmd.Context(), args[0], catalog.ListOpts{
			Limit: listLimit,
			From:  listFrom,
			All:   listAll,
		})
		if err != nil {
			return err
		}

		if structuredOutput() {
			return printResult(docs)
		}

		if len(docs) == 0 {
			fmt.Println("No resources found.")
			return nil
		}

		w := newTabWriter()
		fmt.Fprintln(w, "KIND\tNAME\tDETAILS")
		for _, doc := range docs {
			fmt.Fprintf(w, "%s\t%s\t%s\n", doc.Kind, doc.Name(), summarizeDoc(doc))
		}
		w.Flush()
		fmt.Printf("(%d items)\n", len(docs))
		return nil
	},
}

func summarizeDoc(doc catalog.Document) string {
	switch {
	case doc.GetString("provider") != "" && doc.GetString("model") != "":
		return doc.GetString("provider") + "/" + doc.GetString("model")
	case doc.GetString("model") != "":
		return "model=" + doc.GetString("model")
	case doc.GetString("plugin") != "":
		return "plugin=" + doc.GetString("plugin")
	case doc.GetString("base_url") != "":
		return "base_url=" + doc.GetString("base_url")
	case doc.GetString("api_key") != "":
		k := doc.GetString("api_key")
		if len(k) > 8 {
			return "api_key=" + k[:4] + "..."
		}
		return "api_key=***"
	default:
		return ""
	}
}

func init() {
	listCmd.Flags().IntVar(&listLimit, "limit", 10, "max items to return")
	listCmd.Flags().StringVar(&listFrom, "from", "", "start listing after this key")
	listCmd.Flags().BoolVar(&listAll, "all", false, "list all items (ignore limit)")

	rootCmd.AddCommand(listCmd)
}
