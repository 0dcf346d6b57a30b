package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	indexModel string
	indexTopK  int
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Retrieval index maintenance",
	Long: `Maintain the profile's retrieval index: add files, query, remove
sources. Embeddings come from a stored model document with provider
openai or google.

Examples:
  parley index add notes.md --model embedder
  parley index query "how does the cache work?" --model embedder
  parley index remove notes.md`,
}

var indexAddCmd = &cobra.Command{
	Use:   "add <file>...",
	Short: "Chunk, embed and store files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, cleanup, err := openCatalog(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		ix, closeIndex, err := openIndexer(cmd, c, indexModel)
		if err != nil {
			return err
		}
		defer closeIndex()

		type added struct {
			File   string `json:"file"`
			Chunks int    `json:"chunks"`
		}
		var results []added
		for _, path := range args {
			n, err := ix.IndexFile(cmd.Context(), path)
			if err != nil {
				return err
			}
			results = append(results, added{File: path, Chunks: n})
		}
		if structuredOutput() {
			return printResult(results)
		}
		for _, r := range results {
			fmt.Printf("Indexed %s (%d chunks)\n", r.File, r.Chunks)
		}
		return nil
	},
}

var indexQueryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Search the index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, cleanup, err := openCatalog(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		ix, closeIndex, err := openIndexer(cmd, c, indexModel)
		if err != nil {
			return err
		}
		defer closeIndex()

		matches, err := ix.Query(cmd.Context(), args[0], indexTopK)
		if err != nil {
			return err
		}
		if structuredOutput() {
			return printResult(matches)
		}
		if len(matches) == 0 {
			fmt.Println("No matches.")
			return nil
		}
		for _, m := range matches {
			fmt.Printf("[%s] (%.3f)\n%s\n\n", m.Source, m.Score, m.Chunk)
		}
		return nil
	},
}

var indexRemoveCmd = &cobra.Command{
	Use:   "remove <source>",
	Short: "Remove a source from the index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, cleanup, err := openCatalog(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		ix, closeIndex, err := openIndexer(cmd, c, indexModel)
		if err != nil {
			return err
		}
		defer closeIndex()

		if err := ix.Remove(cmd.Context(), args[0]); err != nil {
			return err
		}
		if structuredOutput() {
			return printResult(map[string]any{"source": args[0], "status": "removed"})
		}
		fmt.Printf("Removed %s from the index.\n", args[0])
		return nil
	},
}

func init() {
	indexCmd.PersistentFlags().StringVar(&indexModel, "model", "", "embedding model doc")
	indexQueryCmd.Flags().IntVar(&indexTopK, "topk", 5, "matches to return")

	indexCmd.AddCommand(indexAddCmd)
	indexCmd.AddCommand(indexQueryCmd)
	indexCmd.AddCommand(indexRemoveCmd)

	rootCmd.AddCommand(indexCmd)
}
