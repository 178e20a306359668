// internal/config/config.go
//
// This package handles configuration and the .formloom directory structure.
// Every workspace that uses formloom gets a .formloom/ folder created in its
// root.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"formloom/internal/form"
)

const (
	// WorkspaceDir is the name of the directory we create in each workspace
	WorkspaceDir = ".formloom"

	defaultMode              = "collab"
	defaultMaxTurns          = 20
	defaultMaxPatchesPerTurn = 8
	defaultMaxIssuesPerTurn  = 8
)

const defaultWorkspaceConfigYAML = `# formloom workspace configuration
version: 1

# Harness limits applied when a document's frontmatter does not set its own.
limits:
  max_turns: 20
  max_patches_per_turn: 8
  max_issues_per_turn: 8

# Who answers which role. Use kind: interactive for a human at the terminal
# or kind: command with a program that reads issues on stdin and writes a
# patch batch on stdout.
actors:
  - role: user
    kind: interactive
  - role: agent
    kind: interactive
    # Example command actor:
    # kind: command
    # command: ./scripts/answer-agent.sh

documents:
  default: FORM.md
`

// ActorRef assigns a role to an answering actor inside .formloom/config.yaml.
type ActorRef struct {
	Role    string `yaml:"role"`
	Kind    string `yaml:"kind"`
	Command string `yaml:"command,omitempty"`
}

// DocumentConfig captures document preferences.
type DocumentConfig struct {
	Default string   `yaml:"default"`
	Known   []string `yaml:"known,omitempty"`
}

// WorkspaceConfig models .formloom/config.yaml.
type WorkspaceConfig struct {
	Version   int            `yaml:"version"`
	Mode      string         `yaml:"mode,omitempty"`
	Limits    form.Limits    `yaml:"limits"`
	Actors    []ActorRef     `yaml:"actors"`
	Documents DocumentConfig `yaml:"documents"`
}

// Config holds the runtime configuration for formloom.
type Config struct {
	// WorkspaceRoot is the directory where the user ran `formloom` from
	WorkspaceRoot string

	// ConfigDir is WorkspaceRoot/.formloom
	ConfigDir string

	Workspace WorkspaceConfig
}

// InitWorkspace creates the .formloom directory structure in the given
// workspace directory and writes a commented default config if none exists.
//
// Structure created:
// .formloom/
// ├── logs/      <- Session logbooks
// ├── sessions/  <- Turn transcripts from `formloom run`
// └── exports/   <- Rendered projections
func InitWorkspace(root string) error {
	configDir := filepath.Join(root, WorkspaceDir)

	dirs := []string{
		filepath.Join(configDir, "logs"),
		filepath.Join(configDir, "sessions"),
		filepath.Join(configDir, "exports"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return ensureWorkspaceConfig(filepath.Join(configDir, "config.yaml"))
}

// NewConfig creates a Config populated from the workspace's config.yaml,
// falling back to defaults when the file is absent.
func NewConfig(root string) (*Config, error) {
	cfg := &Config{
		WorkspaceRoot: root,
		ConfigDir:     filepath.Join(root, WorkspaceDir),
		Workspace:     defaultWorkspaceConfig(),
	}
	if err := cfg.loadWorkspaceConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.ConfigDir, "logs")
}

// SessionsDir returns the path where session transcripts are written
func (c *Config) SessionsDir() string {
	return filepath.Join(c.ConfigDir, "sessions")
}

// ExportsDir returns the path where rendered projections are written
func (c *Config) ExportsDir() string {
	return filepath.Join(c.ConfigDir, "exports")
}

// ConfigPath returns the on-disk location for the workspace config file.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.ConfigDir, "config.yaml")
}

// Limits resolves effective harness limits for a document: the document's
// own frontmatter wins per field, the workspace config fills the gaps.
func (c *Config) Limits(meta form.Metadata) form.Limits {
	out := c.Workspace.Limits
	if meta.Limits.MaxTurns > 0 {
		out.MaxTurns = meta.Limits.MaxTurns
	}
	if meta.Limits.MaxPatchesPerTurn > 0 {
		out.MaxPatchesPerTurn = meta.Limits.MaxPatchesPerTurn
	}
	if meta.Limits.MaxIssuesPerTurn > 0 {
		out.MaxIssuesPerTurn = meta.Limits.MaxIssuesPerTurn
	}
	return out
}

// Actor returns the configured actor for a role.
func (c *Config) Actor(role form.Role) (ActorRef, bool) {
	for _, a := range c.Workspace.Actors {
		if a.Role == string(role) {
			return a, true
		}
	}
	return ActorRef{}, false
}

// DefaultDocument returns the configured default document path, resolved
// against the workspace root.
func (c *Config) DefaultDocument() string {
	return resolvePath(c.WorkspaceRoot, c.Workspace.Documents.Default)
}

// SetDefaultDocument updates the default document and persists the value
// back to .formloom/config.yaml. The path is also appended to the known
// list so tooling can offer it on future launches.
func (c *Config) SetDefaultDocument(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("config: document path is required")
	}
	c.Workspace.Documents.Default = path
	if !contains(c.Workspace.Documents.Known, path) {
		c.Workspace.Documents.Known = append(c.Workspace.Documents.Known, path)
	}
	return c.saveWorkspaceConfig()
}

func (c *Config) loadWorkspaceConfig() error {
	path := c.ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed WorkspaceConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Workspace = parsed
	return nil
}

func defaultWorkspaceConfig() WorkspaceConfig {
	return WorkspaceConfig{
		Version: 1,
		Mode:    defaultMode,
		Limits: form.Limits{
			MaxTurns:          defaultMaxTurns,
			MaxPatchesPerTurn: defaultMaxPatchesPerTurn,
			MaxIssuesPerTurn:  defaultMaxIssuesPerTurn,
		},
		Documents: DocumentConfig{Default: "FORM.md"},
	}
}

func (wc *WorkspaceConfig) applyDefaults() {
	if wc.Version == 0 {
		wc.Version = 1
	}
	if wc.Limits.MaxTurns == 0 {
		wc.Limits.MaxTurns = defaultMaxTurns
	}
	if wc.Limits.MaxPatchesPerTurn == 0 {
		wc.Limits.MaxPatchesPerTurn = defaultMaxPatchesPerTurn
	}
	if wc.Limits.MaxIssuesPerTurn == 0 {
		wc.Limits.MaxIssuesPerTurn = defaultMaxIssuesPerTurn
	}
	if wc.Documents.Default == "" {
		wc.Documents.Default = "FORM.md"
	}
}

func (wc *WorkspaceConfig) normalize() {
	wc.Mode = strings.TrimSpace(wc.Mode)
	for i := range wc.Actors {
		wc.Actors[i].normalize()
	}
	wc.Documents.Default = strings.TrimSpace(wc.Documents.Default)
	if len(wc.Documents.Known) > 0 && !contains(wc.Documents.Known, wc.Documents.Default) {
		wc.Documents.Known = append(wc.Documents.Known, wc.Documents.Default)
	}
}

func (wc *WorkspaceConfig) validate() error {
	if wc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if wc.Limits.MaxTurns < 0 || wc.Limits.MaxPatchesPerTurn < 0 || wc.Limits.MaxIssuesPerTurn < 0 {
		return fmt.Errorf("limits must not be negative")
	}
	seen := map[string]bool{}
	for i, a := range wc.Actors {
		if err := a.validate(); err != nil {
			return fmt.Errorf("actors[%d]: %w", i, err)
		}
		if seen[a.Role] {
			return fmt.Errorf("actors[%d]: role %q assigned twice", i, a.Role)
		}
		seen[a.Role] = true
	}
	if strings.TrimSpace(wc.Documents.Default) == "" {
		return fmt.Errorf("documents.default is required")
	}
	return nil
}

func (a *ActorRef) normalize() {
	a.Role = strings.TrimSpace(a.Role)
	a.Kind = strings.ToLower(strings.TrimSpace(a.Kind))
	a.Command = strings.TrimSpace(a.Command)
}

func (a ActorRef) validate() error {
	if a.Role == "" {
		return fmt.Errorf("role is required")
	}
	switch a.Kind {
	case "", "interactive":
		return nil
	case "command":
		if a.Command == "" {
			return fmt.Errorf("command is required for command actors")
		}
		return nil
	default:
		return fmt.Errorf("kind must be 'interactive' or 'command'")
	}
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), target) {
			return true
		}
	}
	return false
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func ensureWorkspaceConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultWorkspaceConfigYAML), 0644)
}

func (c *Config) saveWorkspaceConfig() error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	c.Workspace.applyDefaults()
	c.Workspace.normalize()
	if err := c.Workspace.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(c.ConfigDir, 0o755); err != nil {
		return fmt.Errorf("config: ensure workspace dir: %w", err)
	}
	data, err := yaml.Marshal(c.Workspace)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(c.ConfigPath(), data, 0644); err != nil {
		return fmt.Errorf("config: write workspace config: %w", err)
	}
	return nil
}
