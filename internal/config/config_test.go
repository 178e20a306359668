package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"formloom/internal/form"
)

func TestLoadWorkspaceConfigDefaultsWhenMissing(t *testing.T) {
	root := t.TempDir()
	configDir := filepath.Join(root, ".formloom")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatal(err)
	}
	c := &Config{WorkspaceRoot: root, ConfigDir: configDir, Workspace: defaultWorkspaceConfig()}
	if err := c.loadWorkspaceConfig(); err != nil {
		t.Fatalf("loadWorkspaceConfig returned error: %v", err)
	}
	if c.Workspace.Version != 1 {
		t.Fatalf("expected default version == 1, got %d", c.Workspace.Version)
	}
	if c.Workspace.Limits.MaxTurns != defaultMaxTurns {
		t.Fatalf("expected default max turns %d, got %d", defaultMaxTurns, c.Workspace.Limits.MaxTurns)
	}
	if filepath.Base(c.DefaultDocument()) != "FORM.md" {
		t.Fatalf("expected default document FORM.md, got %s", c.DefaultDocument())
	}
}

func TestLoadWorkspaceConfigParsesYaml(t *testing.T) {
	root := t.TempDir()
	configDir := filepath.Join(root, ".formloom")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatal(err)
	}
	configYAML := strings.TrimSpace(`
version: 1
limits:
  max_turns: 5
  max_patches_per_turn: 2
actors:
  - role: user
    kind: interactive
  - role: agent
    kind: command
    command: ./answer.sh
documents:
  default: forms/intake.md
`)
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(configYAML), 0644); err != nil {
		t.Fatal(err)
	}
	c := &Config{WorkspaceRoot: root, ConfigDir: configDir, Workspace: defaultWorkspaceConfig()}
	if err := c.loadWorkspaceConfig(); err != nil {
		t.Fatalf("loadWorkspaceConfig returned error: %v", err)
	}
	if c.Workspace.Limits.MaxTurns != 5 {
		t.Fatalf("expected max_turns 5, got %d", c.Workspace.Limits.MaxTurns)
	}
	if c.Workspace.Limits.MaxIssuesPerTurn != defaultMaxIssuesPerTurn {
		t.Fatalf("unset limit should fall back to default, got %d", c.Workspace.Limits.MaxIssuesPerTurn)
	}
	agent, ok := c.Actor(form.Role("agent"))
	if !ok {
		t.Fatalf("expected an agent actor")
	}
	if agent.Kind != "command" || agent.Command != "./answer.sh" {
		t.Fatalf("wrong agent actor: %+v", agent)
	}
	if !strings.HasPrefix(c.DefaultDocument(), root) {
		t.Fatalf("expected document path to be resolved, got %s", c.DefaultDocument())
	}
}

func TestLoadWorkspaceConfigValidation(t *testing.T) {
	root := t.TempDir()
	configDir := filepath.Join(root, ".formloom")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatal(err)
	}
	configYAML := strings.TrimSpace(`
version: 1
actors:
  - role: agent
    kind: command
`)
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(configYAML), 0644); err != nil {
		t.Fatal(err)
	}
	c := &Config{WorkspaceRoot: root, ConfigDir: configDir, Workspace: defaultWorkspaceConfig()}
	if err := c.loadWorkspaceConfig(); err == nil {
		t.Fatalf("expected validation error but got none")
	}
}

func TestDocumentLimitsOverrideWorkspace(t *testing.T) {
	c := &Config{Workspace: defaultWorkspaceConfig()}
	meta := form.Metadata{Limits: form.Limits{MaxTurns: 3}}
	limits := c.Limits(meta)
	if limits.MaxTurns != 3 {
		t.Fatalf("document limit should win, got %d", limits.MaxTurns)
	}
	if limits.MaxPatchesPerTurn != defaultMaxPatchesPerTurn {
		t.Fatalf("unset document limit should keep workspace value, got %d", limits.MaxPatchesPerTurn)
	}
}

func TestInitWorkspaceWritesDefaultConfig(t *testing.T) {
	root := t.TempDir()
	if err := InitWorkspace(root); err != nil {
		t.Fatalf("InitWorkspace returned error: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(root, ".formloom", "config.yaml"))
	if err != nil {
		t.Fatalf("expected default config to be written: %v", err)
	}
	if !strings.Contains(string(data), "max_turns") {
		t.Fatalf("default config missing limits:\n%s", data)
	}
	for _, sub := range []string{"logs", "sessions", "exports"} {
		if _, err := os.Stat(filepath.Join(root, ".formloom", sub)); err != nil {
			t.Fatalf("expected %s directory: %v", sub, err)
		}
	}
}
