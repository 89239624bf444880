package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFromPathDefaults(t *testing.T) {
	cfg, err := LoadFromPath(writeConfigFile(t, "{}\n"))
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Defaults.Mode != "compete" {
		t.Errorf("mode = %s, want compete", cfg.Defaults.Mode)
	}
	if cfg.Defaults.StageTimeout != 5*time.Minute {
		t.Errorf("stage timeout = %s, want 5m", cfg.Defaults.StageTimeout)
	}
	if cfg.TUI.RefreshRate != 500*time.Millisecond {
		t.Errorf("refresh rate = %s, want 500ms", cfg.TUI.RefreshRate)
	}
	if _, ok := cfg.Providers["claude"]; !ok {
		t.Error("built-in claude provider missing")
	}
	if !cfg.History.Enabled {
		t.Error("history should default to enabled")
	}
}

func TestLoadFromPathOverrides(t *testing.T) {
	cfg, err := LoadFromPath(writeConfigFile(t, `
defaults:
  mode: merge
  chairman: gemini
  stage_timeout: 90s
providers:
  local:
    command: ["ollama", "run", "{model}"]
    prompt_via_stdin: true
    models:
      standard: llama3
`))
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Defaults.Mode != "merge" {
		t.Errorf("mode = %s, want merge", cfg.Defaults.Mode)
	}
	if cfg.Defaults.Chairman != "gemini" {
		t.Errorf("chairman = %s, want gemini", cfg.Defaults.Chairman)
	}
	if cfg.Defaults.StageTimeout != 90*time.Second {
		t.Errorf("stage timeout = %s, want 90s", cfg.Defaults.StageTimeout)
	}

	local, ok := cfg.Providers["local"]
	if !ok {
		t.Fatal("custom provider missing")
	}
	if !local.PromptViaStdin || local.Models["standard"] != "llama3" {
		t.Errorf("local provider = %+v", local)
	}
	// Built-ins survive alongside custom providers.
	if _, ok := cfg.Providers["codex"]; !ok {
		t.Error("built-in codex provider dropped by override")
	}
}

func TestReloadReturnsFreshObject(t *testing.T) {
	a, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	b, err := Reload()
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if a == b {
		t.Error("Reload returned the same object instead of a fresh one")
	}

	a.Defaults.Mode = "mutated"
	if b.Defaults.Mode == "mutated" {
		t.Error("configs share state")
	}
}

func TestAgentForSubstitutesModel(t *testing.T) {
	cfg, err := LoadFromPath(writeConfigFile(t, "{}\n"))
	if err != nil {
		t.Fatal(err)
	}
	f := NewFactory(cfg)

	agent, err := f.AgentFor("claude", "standard")
	if err != nil {
		t.Fatalf("AgentFor failed: %v", err)
	}
	if agent.Name != "claude" {
		t.Errorf("name = %s, want claude", agent.Name)
	}
	if !agent.PromptViaStdin {
		t.Error("claude should take the prompt on stdin")
	}
	for _, arg := range agent.Command {
		if arg == "{model}" {
			t.Error("model placeholder not substituted")
		}
	}
	found := false
	for _, arg := range agent.Command {
		if arg == "sonnet" {
			found = true
		}
	}
	if !found {
		t.Errorf("command %v missing the standard-tier model", agent.Command)
	}
}

func TestAgentForUnknownProviderOrTier(t *testing.T) {
	cfg, err := LoadFromPath(writeConfigFile(t, "{}\n"))
	if err != nil {
		t.Fatal(err)
	}
	f := NewFactory(cfg)

	if _, err := f.AgentFor("nonexistent", "standard"); err == nil {
		t.Error("unknown provider should fail")
	}
	if _, err := f.AgentFor("claude", "imaginary"); err == nil {
		t.Error("unknown tier should fail")
	}
}

func TestLowerTierStepsWithFloor(t *testing.T) {
	f := NewFactory(&Config{})

	cases := []struct{ in, want string }{
		{"premium", "standard"},
		{"standard", "fast"},
		{"fast", "fast"},
		{"unknown", "unknown"},
	}
	for _, c := range cases {
		if got := f.LowerTier(c.in); got != c.want {
			t.Errorf("LowerTier(%s) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestStepDownBuildsLowerTierAgent(t *testing.T) {
	cfg, err := LoadFromPath(writeConfigFile(t, "{}\n"))
	if err != nil {
		t.Fatal(err)
	}
	f := NewFactory(cfg)

	chairman, err := f.AgentFor("claude", "standard")
	if err != nil {
		t.Fatal(err)
	}

	detail := f.StepDown(chairman)
	if detail.Name != "claude-fast" {
		t.Errorf("detail name = %s, want claude-fast", detail.Name)
	}
	found := false
	for _, arg := range detail.Command {
		if arg == "haiku" {
			found = true
		}
	}
	if !found {
		t.Errorf("detail command %v missing fast-tier model", detail.Command)
	}

	// At the floor the agent comes back unchanged.
	floor, err := f.AgentFor("gemini", "fast")
	if err != nil {
		t.Fatal(err)
	}
	if got := f.StepDown(floor); got.Name != floor.Name {
		t.Errorf("floor step-down changed agent to %s", got.Name)
	}

	// Unknown agents pass through.
	stranger := chairman
	stranger.Name = "someone-else"
	if got := f.StepDown(stranger); got.Name != "someone-else" {
		t.Errorf("unknown agent changed to %s", got.Name)
	}
}

func TestPresetsRoundTripAndValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.yaml")

	presets := Presets{
		"full-council": {
			Agents: []PresetAgent{
				{Provider: "claude"},
				{Provider: "gemini"},
				{Provider: "codex", Tier: "fast"},
			},
			Chairman: PresetAgent{Provider: "claude", Tier: "premium"},
			Fallback: &PresetAgent{Provider: "gemini"},
			Mode:     "compete",
			TwoPass:  true,
		},
	}
	if err := SavePresets(path, presets); err != nil {
		t.Fatalf("SavePresets failed: %v", err)
	}

	loaded, err := LoadPresets(path)
	if err != nil {
		t.Fatalf("LoadPresets failed: %v", err)
	}
	p, ok := loaded["full-council"]
	if !ok {
		t.Fatal("preset missing after round trip")
	}
	if len(p.Agents) != 3 || p.Agents[2].Tier != "fast" {
		t.Errorf("agents = %+v", p.Agents)
	}
	if p.Chairman.Provider != "claude" || p.Chairman.Tier != "premium" {
		t.Errorf("chairman = %+v", p.Chairman)
	}
	if p.Fallback == nil || p.Fallback.Provider != "gemini" {
		t.Errorf("fallback = %+v", p.Fallback)
	}
	if !p.TwoPass {
		t.Error("two_pass lost in round trip")
	}
}

func TestLoadPresetsMissingFileIsEmpty(t *testing.T) {
	presets, err := LoadPresets(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadPresets failed: %v", err)
	}
	if len(presets) != 0 {
		t.Errorf("got %d presets, want 0", len(presets))
	}
}

func TestLoadPresetsRejectsInvalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"no agents", "empty:\n  chairman:\n    provider: claude\n"},
		{"no chairman", "headless:\n  agents:\n    - provider: claude\n"},
		{"bad mode", "weird:\n  agents:\n    - provider: claude\n  chairman:\n    provider: claude\n  mode: race\n"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "presets.yaml")
			if err := os.WriteFile(path, []byte(c.content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadPresets(path); err == nil {
				t.Error("invalid preset accepted")
			}
		})
	}
}
