package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/pkg/cli"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Profile management",
	Long: `Manage profiles and their storage backend bindings.

A profile is a named set of stores (documents, conversation history,
retrieval index) plus a working directory used as the plugin sandbox.
Switching profiles switches the entire stack.

Examples:
  parley profile add dev
  parley profile use dev
  parley profile set kv badger:///data/dev
  parley profile list`,
}

var profileAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a new profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openProfiles()
		if err != nil {
			return err
		}
		if err := s.Add(args[0]); err != nil {
			return err
		}
		if structuredOutput() {
			return printResult(map[string]any{"name": args[0], "status": "created"})
		}
		cli.Successf("Profile %q created.", args[0])
		return nil
	},
}

var profileRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openProfiles()
		if err != nil {
			return err
		}
		if err := s.Remove(args[0]); err != nil {
			return err
		}
		if structuredOutput() {
			return printResult(map[string]any{"name": args[0], "status": "removed"})
		}
		cli.Successf("Profile %q removed.", args[0])
		return nil
	},
}

var profileUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Switch the active profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openProfiles()
		if err != nil {
			return err
		}
		if err := s.Use(args[0]); err != nil {
			return err
		}
		if structuredOutput() {
			return printResult(map[string]any{"name": args[0], "status": "active"})
		}
		cli.Successf("Switched to profile %q.", args[0])
		return nil
	},
}

var profileCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the active profile name",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openProfiles()
		if err != nil {
			return err
		}
		name, err := s.Current()
		if err != nil {
			return err
		}
		if structuredOutput() {
			return printResult(map[string]any{"current": name})
		}
		fmt.Println(name)
		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openProfiles()
		if err != nil {
			return err
		}
		infos, err := s.List()
		if err != nil {
			return err
		}
		if structuredOutput() {
			return printResult(infos)
		}
		if len(infos) == 0 {
			fmt.Println("No profiles configured.")
			fmt.Println("Create one with: parley profile add <name>")
			return nil
		}
		for _, info := range infos {
			marker := "  "
			if info.Current {
				marker = "* "
			}
			fmt.Printf("%s%s\n", marker, info.Name)
		}
		return nil
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show profile details",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openProfiles()
		if err != nil {
			return err
		}
		name := ""
		if len(args) > 0 {
			name = args[0]
		}
		profName, cfg, err := s.Show(name)
		if err != nil {
			return err
		}
		if structuredOutput() {
			return printResult(map[string]any{
				"name":    profName,
				"kv":      cfg.KV,
				"storage": cfg.Storage,
				"history": cfg.History,
				"index":   cfg.Index,
			})
		}
		fmt.Printf("Profile: %s\n", profName)
		fmt.Printf("  kv:      %s\n", valueOrEmpty(cfg.KV))
		fmt.Printf("  storage: %s\n", valueOrEmpty(cfg.Storage))
		fmt.Printf("  history: %s\n", valueOrEmpty(cfg.History))
		fmt.Printf("  index:   %s\n", valueOrEmpty(cfg.Index))
		return nil
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config key on the active profile",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openProfiles()
		if err != nil {
			return err
		}
		if err := s.ConfigSet(args[0], args[1]); err != nil {
			return err
		}
		if structuredOutput() {
			return printResult(map[string]any{"key": args[0], "value": args[1], "status": "set"})
		}
		cli.Successf("Set %s = %s", args[0], args[1])
		return nil
	},
}

var profileKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List supported config keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openProfiles()
		if err != nil {
			return err
		}
		keys := s.ConfigKeys()
		if structuredOutput() {
			return printResult(keys)
		}
		w := newTabWriter()
		for _, k := range keys {
			fmt.Fprintf(w, "%s\t%s\n", k.Key, k.Description)
		}
		w.Flush()
		return nil
	},
}

func init() {
	profileCmd.AddCommand(profileAddCmd)
	profileCmd.AddCommand(profileRemoveCmd)
	profileCmd.AddCommand(profileUseCmd)
	profileCmd.AddCommand(profileCurrentCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSetCmd)
	profileCmd.AddCommand(profileKeysCmd)

	rootCmd.AddCommand(profileCmd)
}

func valueOrEmpty(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
