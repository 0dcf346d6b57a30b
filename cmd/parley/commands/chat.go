package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/pkg/catalog"
	"github.com/parleyhq/parley/pkg/cli"
	"github.com/parleyhq/parley/pkg/convo"
	"github.com/parleyhq/parley/pkg/index"
	"github.com/parleyhq/parley/pkg/jsonx"
)

var (
	chatPreset     string
	chatModel      string
	chatStream     bool
	chatFile       string
	chatAttach     []string
	chatUseIndex   bool
	chatIndexModel string
	chatTopK       int
	chatThread     string
	chatHistory    int
)

// chatRequest is the request-file form of the chat flags.
type chatRequest struct {
	Text    string         `yaml:"text" json:"text"`
	Preset  string         `yaml:"preset,omitempty" json:"preset,omitempty"`
	Model   string         `yaml:"model,omitempty" json:"model,omitempty"`
	Stream  bool           `yaml:"stream,omitempty" json:"stream,omitempty"`
	Timeout jsonx.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "One-shot or streamed chat",
	Long: `Send a message to a preset or model and print the reply. The
conversation is recorded per thread; by default every invocation opens
a new thread, --thread continues an existing one.

Examples:
  parley chat "hello" --preset coder
  parley chat "summarize this" --model gpt4 --attach notes.txt
  parley chat "what did we decide?" --preset coder --thread 7f3a...
  parley chat "how does the cache work?" --preset coder --index --index-model embedder
  parley chat -f request.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var message string
		if len(args) > 0 {
			message = args[0]
		}
		if chatFile != "" {
			var req chatRequest
			if err := cli.LoadRequest(chatFile, &req); err != nil {
				return err
			}
			if message == "" {
				message = req.Text
			}
			if chatPreset == "" {
				chatPreset = req.Preset
			}
			if chatModel == "" {
				chatModel = req.Model
			}
			if req.Stream {
				chatStream = true
			}
			if timeout := req.Timeout.Duration(); timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
		}
		if message == "" {
			return fmt.Errorf("chat: a message argument or a request file with 'text' is required")
		}

		c, cleanup, err := openCatalog(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		plugins, err := buildPlugins(ctx, c)
		if err != nil {
			return err
		}
		c.SetPlugins(plugins)

		store, closeHistory, err := openThread(ctx)
		if err != nil {
			return err
		}
		defer closeHistory()

		fields := map[string]any{}
		if chatPreset != "" {
			fields["preset"] = chatPreset
		}
		if chatModel != "" {
			fields["model"] = chatModel
		}

		if chatUseIndex {
			snippets, err := queryIndex(cmd, c, message)
			if err != nil {
				return err
			}
			if snippets != "" {
				fields["system"] = "Use the following context when relevant:\n\n" + snippets
			}
		}

		userContent := message
		var attachments []string
		for _, path := range chatAttach {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("attach %s: %w", path, err)
			}
			userContent += fmt.Sprintf("\n\n--- %s ---\n%s", filepath.Base(path), data)
			attachments = append(attachments, path)
		}

		messages, err := historyMessages(cmd, store)
		if err != nil {
			return err
		}
		messages = append(messages, map[string]any{"role": "user", "text": userContent})
		fields["messages"] = messages

		kind := "chat"
		if chatStream {
			kind = "chat-stream"
			c.SetStreamWriter(os.Stdout)
		}
		started := time.Now()
		result, err := c.Run(ctx, catalog.Document{Kind: kind, Fields: fields})
		if err != nil {
			return err
		}
		elapsed := time.Since(started)

		userMsg := convo.Message{Role: convo.RoleUser, Content: message}
		if len(attachments) > 0 {
			userMsg.Meta = &convo.Meta{Attachments: attachments}
		}
		if err := store.Append(ctx, userMsg); err != nil {
			return err
		}
		if err := store.Append(ctx, convo.Message{
			Role:    convo.RoleAssistant,
			Content: result.Text,
		}); err != nil {
			return err
		}

		if structuredOutput() {
			return printResult(map[string]any{
				"thread": store.ThreadID(),
				"text":   result.Text,
				"usage":  result.Usage,
			})
		}
		if chatStream {
			fmt.Println()
		} else {
			fmt.Println(result.Text)
		}
		printVerbose("thread=%s usage=%s took=%s", store.ThreadID(), result.Usage, cli.FormatDuration(elapsed))
		return nil
	},
}

// openThread opens the conversation store for this invocation: the
// named thread, or a fresh one.
func openThread(ctx context.Context) (*convo.Store, func(), error) {
	profiles, err := openProfiles()
	if err != nil {
		return nil, nil, err
	}
	historyKV, err := profiles.OpenHistoryKV(profileName())
	if err != nil {
		return nil, nil, err
	}
	threads := convo.NewThreads(historyKV)

	var store *convo.Store
	if chatThread != "" {
		store, err = threads.Open(ctx, chatThread)
	} else {
		store, err = threads.New(ctx, "")
	}
	if err != nil {
		historyKV.Close()
		return nil, nil, err
	}
	return store, func() { historyKV.Close() }, nil
}

// openIndexer opens the profile's retrieval index with an embedder
// built from the named model document.
func openIndexer(cmd *cobra.Command, c *catalog.Catalog, modelName string) (*index.Indexer, func(), error) {
	embedder, err := c.BuildEmbedder(cmd.Context(), modelName)
	if err != nil {
		return nil, nil, err
	}
	profiles, err := openProfiles()
	if err != nil {
		return nil, nil, err
	}
	indexKV, err := profiles.OpenIndexKV(profileName())
	if err != nil {
		return nil, nil, err
	}
	vix, err := index.OpenVectorIndex(cmd.Context(), indexKV, "default")
	if err != nil {
		indexKV.Close()
		return nil, nil, err
	}
	ix := index.NewIndexer(index.IndexerConfig{Embedder: embedder, Index: vix})
	return ix, func() { indexKV.Close() }, nil
}

func init() {
	chatCmd.Flags().StringVar(&chatPreset, "preset", "", "preset to chat against")
	chatCmd.Flags().StringVar(&chatModel, "model", "", "model to chat against (overrides the preset's)")
	chatCmd.Flags().BoolVar(&chatStream, "stream", false, "stream the reply as it generates")
	chatCmd.Flags().StringVarP(&chatFile, "file", "f", "", "YAML/JSON request file (flags override its fields)")
	chatCmd.Flags().StringSliceVar(&chatAttach, "attach", nil, "attach a text file to the message (repeatable)")
	chatCmd.Flags().BoolVar(&chatUseIndex, "index", false, "inject retrieval-index context")
	chatCmd.Flags().StringVar(&chatIndexModel, "index-model", "", "embedding model doc for --index")
	chatCmd.Flags().IntVar(&chatTopK, "topk", 5, "snippets to inject with --index")
	chatCmd.Flags().StringVar(&chatThread, "thread", "", "continue an existing thread by ID")
	chatCmd.Flags().IntVar(&chatHistory, "history", 20, "prior messages to send as context")

	rootCmd.AddCommand(chatCmd)
}

func queryIndex(cmd *cobra.Command, c *catalog.Catalog, question string) (string, error) {
	if chatIndexModel == "" {
		return "", fmt.Errorf("--index requires --index-model")
	}
	ix, closeIndex, err := openIndexer(cmd, c, chatIndexModel)
	if err != nil {
		return "", err
	}
	defer closeIndex()

	matches, err := ix.Query(cmd.Context(), question, chatTopK)
	if err != nil {
		return "", err
	}
	return index.Context(matches), nil
}

func historyMessages(cmd *cobra.Command, store *convo.Store) ([]map[string]any, error) {
	recent, err := store.Recent(cmd.Context(), chatHistory)
	if err != nil {
		return nil, err
	}
	var messages []map[string]any
	for _, m := range recent {
		switch m.Role {
		case convo.RoleUser, convo.RoleAssistant:
			if strings.TrimSpace(m.Content) == "" {
				continue
			}
			role := "user"
			if m.Role == convo.RoleAssistant {
				role = "model"
			}
			messages = append(messages, map[string]any{"role": role, "text": m.Content})
		}
	}
	return messages, nil
}
