package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/parleyhq/parley/pkg/kv"
)

// Profiles manages named profiles on disk: each profile has its own kv
// database, workdir and backend bindings. Pure file operations; methods
// are safe for concurrent use from multiple processes (independent
// files with 0600 writes).
type Profiles struct {
	dir string
}

// OpenProfiles opens the default profile directory.
//
// Layout:
//
//	~/.config/parley/              (Linux)
//	~/Library/Application Support/parley/  (macOS)
//	%AppData%/parley/              (Windows)
func OpenProfiles() (*Profiles, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("catalog: cannot determine config directory: %w", err)
	}
	return OpenProfilesAt(filepath.Join(base, "parley"))
}

// OpenProfilesAt opens a profile directory at the given path. The
// directory is created if it does not exist.
func OpenProfilesAt(dir string) (*Profiles, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("catalog: create profile dir: %w", err)
	}
	return &Profiles{dir: dir}, nil
}

// Dir returns the root profile directory path.
func (s *Profiles) Dir() string { return s.dir }

// ProfileConfig holds the storage backend bindings of a profile.
type ProfileConfig struct {
	KV      string `yaml:"kv,omitempty" json:"kv,omitempty"`
	Storage string `yaml:"storage,omitempty" json:"storage,omitempty"`
	History string `yaml:"history,omitempty" json:"history,omitempty"`
	Index   string `yaml:"index,omitempty" json:"index,omitempty"`
}

// ProfileInfo describes a profile in list output.
type ProfileInfo struct {
	Name    string
	Current bool
}

var validProfileConfigKeys = map[string]string{
	"kv":      "Document store (badger/memory URL)",
	"storage": "Attachment store (local dir or s3 URL)",
	"history": "Conversation store (badger/memory URL)",
	"index":   "Retrieval index store (badger/memory URL)",
}

// ConfigKeyInfo describes a supported profile config key.
type ConfigKeyInfo struct {
	Key         string
	Description string
}

func (s *Profiles) profileDir(name string) string {
	return filepath.Join(s.dir, "profiles", name)
}

func (s *Profiles) profileConfigPath(name string) string {
	return filepath.Join(s.profileDir(name), "profile.yaml")
}

func (s *Profiles) currentPath() string {
	return filepath.Join(s.dir, "current")
}

// Add creates a new empty profile.
func (s *Profiles) Add(name string) error {
	if err := validateProfileName(name); err != nil {
		return fmt.Errorf("profile add: %w", err)
	}
	dir := s.profileDir(name)
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("profile add: profile %q already exists", name)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("profile add: %w", err)
	}
	return nil
}

// Remove deletes a profile. It refuses to delete the active one.
func (s *Profiles) Remove(name string) error {
	if err := validateProfileName(name); err != nil {
		return fmt.Errorf("profile remove: %w", err)
	}
	cur, _ := s.Current()
	if cur == name {
		return fmt.Errorf("profile remove: cannot remove active profile %q; switch first with 'profile use'", name)
	}
	dir := s.profileDir(name)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("profile remove: profile %q not found", name)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("profile remove: %w", err)
	}
	return nil
}

// Use switches the active profile.
func (s *Profiles) Use(name string) error {
	if err := validateProfileName(name); err != nil {
		return fmt.Errorf("profile use: %w", err)
	}
	dir := s.profileDir(name)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("profile use: profile %q not found", name)
	}
	return writeProfileFile(s.currentPath(), []byte(name+"\n"))
}

// Current returns the name of the active profile.
func (s *Profiles) Current() (string, error) {
	data, err := os.ReadFile(s.currentPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("no active profile; use 'profile use <name>'")
		}
		return "", fmt.Errorf("profile current: %w", err)
	}
	name := strings.TrimSpace(string(data))
	if name == "" {
		return "", fmt.Errorf("no active profile; use 'profile use <name>'")
	}
	return name, nil
}

// List returns all profile names, sorted alphabetically.
func (s *Profiles) List() ([]ProfileInfo, error) {
	profilesDir := filepath.Join(s.dir, "profiles")
	entries, err := os.ReadDir(profilesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("profile list: %w", err)
	}
	cur, _ := s.Current()
	var infos []ProfileInfo
	for _, e := range entries {
		if e.IsDir() {
			infos = append(infos, ProfileInfo{
				Name:    e.Name(),
				Current: e.Name() == cur,
			})
		}
	}
	return infos, nil
}

// Show returns the configuration of a profile. If name is empty, the
// active profile is used.
func (s *Profiles) Show(name string) (string, *ProfileConfig, error) {
	if name == "" {
		var err error
		name, err = s.Current()
		if err != nil {
			return "", nil, err
		}
	}
	path := s.profileConfigPath(name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return name, &ProfileConfig{}, nil
		}
		return "", nil, fmt.Errorf("profile show: %w", err)
	}
	var cfg ProfileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", nil, fmt.Errorf("profile show: parse %s: %w", path, err)
	}
	return name, &cfg, nil
}

// ConfigSet sets a config key on the active profile.
func (s *Profiles) ConfigSet(key, value string) error {
	if _, ok := validProfileConfigKeys[key]; !ok {
		return fmt.Errorf("profile set: unknown key %q; valid keys: %s", key, profileConfigKeyNames())
	}
	name, err := s.Current()
	if err != nil {
		return err
	}
	_, cfg, err := s.Show(name)
	if err != nil {
		return err
	}
	switch key {
	case "kv":
		cfg.KV = value
	case "storage":
		cfg.Storage = value
	case "history":
		cfg.History = value
	case "index":
		cfg.Index = value
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("profile set: marshal: %w", err)
	}
	return writeProfileFile(s.profileConfigPath(name), data)
}

// ConfigKeys returns all supported config keys with descriptions.
func (s *Profiles) ConfigKeys() []ConfigKeyInfo {
	keys := make([]ConfigKeyInfo, 0, len(validProfileConfigKeys))
	for k, desc := range validProfileConfigKeys {
		keys = append(keys, ConfigKeyInfo{Key: k, Description: desc})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Key < keys[j].Key })
	return keys
}

// Workdir returns the profile's working directory (the plugin sandbox
// and attachment root), creating it if needed.
func (s *Profiles) Workdir(name string) (string, error) {
	if err := validateProfileName(name); err != nil {
		return "", err
	}
	dir := filepath.Join(s.profileDir(name), "workdir")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("profile workdir: %w", err)
	}
	return dir, nil
}

// OpenKV opens the given profile's document store: the configured kv
// URL, or the default badger database under the profile directory.
func (s *Profiles) OpenKV(name string) (kv.Store, error) {
	name, cfg, err := s.Show(name)
	if err != nil {
		return nil, err
	}
	url := cfg.KV
	if url == "" {
		url = "badger://" + filepath.Join(s.profileDir(name), "catalog.db")
	}
	store, err := kv.Open(url)
	if err != nil {
		return nil, fmt.Errorf("profile %q: open kv: %w", name, err)
	}
	return store, nil
}

// OpenHistoryKV opens the profile's conversation store. It falls back
// to a badger database beside the document store.
func (s *Profiles) OpenHistoryKV(name string) (kv.Store, error) {
	name, cfg, err := s.Show(name)
	if err != nil {
		return nil, err
	}
	url := cfg.History
	if url == "" {
		url = "badger://" + filepath.Join(s.profileDir(name), "history.db")
	}
	store, err := kv.Open(url)
	if err != nil {
		return nil, fmt.Errorf("profile %q: open history: %w", name, err)
	}
	return store, nil
}

// OpenIndexKV opens the profile's retrieval index store.
func (s *Profiles) OpenIndexKV(name string) (kv.Store, error) {
	name, cfg, err := s.Show(name)
	if err != nil {
		return nil, err
	}
	url := cfg.Index
	if url == "" {
		url = "badger://" + filepath.Join(s.profileDir(name), "index.db")
	}
	store, err := kv.Open(url)
	if err != nil {
		return nil, fmt.Errorf("profile %q: open index: %w", name, err)
	}
	return store, nil
}

func validateProfileName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("name %q must not contain path separators", name)
	}
	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("name %q must not start with '.'", name)
	}
	return nil
}

func writeProfileFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func profileConfigKeyNames() string {
	keys := make([]string, 0, len(validProfileConfigKeys))
	for k := range validProfileConfigKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}
