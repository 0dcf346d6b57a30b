package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/pkg/catalog"
	"github.com/parleyhq/parley/pkg/cli"
)

var runFile string

var runCommand = &cobra.Command{
	Use:   "run -f <request.yaml>",
	Short: "Execute a request document",
	Long: `Run one or more request documents through their handlers.

Request kinds: ` + strings.Join(catalog.RunKinds(), ", ") + `

Examples:
  parley run -f chat-request.yaml
  parley run -f tts-request.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if runFile == "" {
			return fmt.Errorf("run: -f <file> is required")
		}
		docs, err := catalog.ParseDocumentsFromFile(runFile)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			return fmt.Errorf("run: no documents in %s", runFile)
		}

		c, cleanup, err := openCatalog(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		plugins, err := buildPlugins(cmd.Context(), c)
		if err != nil {
			return err
		}
		c.SetPlugins(plugins)
		if !structuredOutput() {
			c.SetStreamWriter(os.Stdout)
		}

		for _, doc := range docs {
			printVerbose("running %s", doc.Kind)
			result, err := c.Run(cmd.Context(), doc)
			if err != nil {
				return err
			}
			if structuredOutput() {
				if err := printResult(result); err != nil {
					return err
				}
				continue
			}
			printRunResult(result)
		}
		return nil
	},
}

func printRunResult(r *catalog.RunResult) {
	switch {
	case r.Kind == "chat-stream":
		// Text already streamed; terminate the line.
		fmt.Println()
	case r.Text != "":
		fmt.Println(r.Text)
	case r.OutputFile != "":
		fmt.Printf("Wrote %s (%s)\n", r.OutputFile, cli.FormatBytesInt(r.AudioSize))
	default:
		printResult(r)
	}
	if verbose && r.Usage != "" {
		fmt.Fprintf(os.Stderr, "usage: %s\n", r.Usage)
	}
}

func init() {
	runCommand.Flags().StringVarP(&runFile, "file", "f", "", "YAML file with request documents ('-' for stdin)")

	rootCmd.AddCommand(runCommand)
}
