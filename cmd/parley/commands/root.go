package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/pkg/catalog"
	"github.com/parleyhq/parley/pkg/cli"
	"github.com/parleyhq/parley/pkg/kv"
	"github.com/parleyhq/parley/pkg/plugin"
	"github.com/parleyhq/parley/pkg/storage"
)

var (
	verbose      bool
	formatOutput string
	profileFlag  string
	configDir    string
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Headless AI chat engine",
	Long: `parley — a headless AI chat engine.

Commands:
  profile   Profile management (per-profile stores and workdir)
  apply     Declare and write resources (creds, models, presets, voices)
  list      List resources by prefix
  get       Get a resource by full name
  delete    Delete a resource by full name
  run       Execute a request document (chat, tts, transcribe, embed)
  chat      One-shot or streamed chat against a preset or model
  talk      Realtime voice/text session
  index     Retrieval index maintenance
  version   Version information

Resource kinds:
  creds/openai, creds/anthropic, creds/google, creds/elevenlabs,
  creds/xai, creds/ollama, creds/aws
  model, preset, voice, realtime, plugin

Examples:
  parley profile add dev && parley profile use dev
  parley apply -f setup.yaml
  parley list preset/*
  parley get creds/openai/main
  parley chat "hello" --preset coder
  parley run -f request.yaml`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cli.SetupLogging(verbose)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&formatOutput, "output", "text", "output format: text, json, yaml")
	rootCmd.PersistentFlags().StringVar(&profileFlag, "profile", "", "profile to use (default: the active profile)")
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "config directory (default: user config dir)")
}

// testKVOverride is set during tests to share a KV instance across commands.
var testKVOverride kv.Store

func openProfiles() (*catalog.Profiles, error) {
	if configDir != "" {
		return catalog.OpenProfilesAt(configDir)
	}
	if dir := os.Getenv("PARLEY_CONFIG_DIR"); dir != "" {
		return catalog.OpenProfilesAt(dir)
	}
	return catalog.OpenProfiles()
}

// profileName resolves the profile: flag, then environment, then the
// active profile file ("" lets the store pick it).
func profileName() string {
	if profileFlag != "" {
		return profileFlag
	}
	return os.Getenv("PARLEY_PROFILE")
}

// openCatalog opens the document store for the selected profile and
// seeds credentials from the environment. The returned cleanup closes
// the store.
func openCatalog(ctx context.Context) (*catalog.Catalog, func(), error) {
	store := testKVOverride
	if store == nil {
		profiles, err := openProfiles()
		if err != nil {
			return nil, nil, err
		}
		store, err = profiles.OpenKV(profileName())
		if err != nil {
			return nil, nil, err
		}
	}

	c, err := catalog.New("", catalog.WithKV(store))
	if err != nil {
		if testKVOverride == nil {
			store.Close()
		}
		return nil, nil, err
	}
	cleanup := func() {
		c.Close()
		if testKVOverride == nil {
			store.Close()
		}
	}

	env, err := catalog.LoadEnv()
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if err := env.SeedCreds(ctx, c); err != nil {
		cleanup()
		return nil, nil, err
	}
	return c, cleanup, nil
}

// buildPlugins assembles the plugin registry for a session: the
// built-in plugins sandboxed to the profile workdir, configured by any
// stored plugin documents.
func buildPlugins(ctx context.Context, c *catalog.Catalog) (*plugin.Registry, error) {
	profiles, err := openProfiles()
	if err != nil {
		return nil, err
	}
	name := profileName()
	if name == "" {
		name, err = profiles.Current()
		if err != nil {
			return nil, err
		}
	}
	workdir, err := profiles.Workdir(name)
	if err != nil {
		return nil, err
	}
	files, err := storage.NewLocal(workdir)
	if err != nil {
		return nil, err
	}

	reg := plugin.NewRegistry()
	for _, p := range []plugin.Plugin{
		plugin.NewFiles(files),
		plugin.NewWeb(http.DefaultClient),
		plugin.NewCode(workdir),
		plugin.NewHTTP(http.DefaultClient),
	} {
		if err := reg.Register(p); err != nil {
			return nil, err
		}
	}

	docs, err := c.List(ctx, "plugin/*", catalog.ListOpts{All: true})
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		if enabled, ok := doc.Fields["enabled"].(bool); ok && !enabled {
			continue
		}
		p, ok := reg.Get(doc.GetString("plugin"))
		if !ok {
			return nil, fmt.Errorf("plugin doc %q: unknown plugin %q", doc.Name(), doc.GetString("plugin"))
		}
		if opts := doc.GetMap("options"); opts != nil {
			if err := p.Configure(opts); err != nil {
				return nil, fmt.Errorf("plugin doc %q: %w", doc.Name(), err)
			}
		}
	}
	return reg, nil
}

// structuredOutput reports whether --output asks for a machine format.
func structuredOutput() bool {
	return formatOutput == "json" || formatOutput == "yaml"
}

func printResult(v any) error {
	format := cli.OutputFormat(formatOutput)
	if !structuredOutput() {
		// Plain-text commands fall back to YAML for structured values.
		format = cli.FormatYAML
	}
	return cli.Output(v, cli.OutputOptions{Format: format})
}

func printVerbose(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

func newTabWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
}
