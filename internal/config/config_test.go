package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("AUTONOMYD_ROBOT_TOKEN", "")

	cfg, err := Parse([]byte("robot:\n  ws_url: ws://127.0.0.1:8765/robot\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	tests := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"external hold", cfg.Intervals.ExternalHold(), 500 * time.Millisecond},
		{"agent hold", cfg.Intervals.AgentHold(), time.Second},
		{"animation check", cfg.Intervals.AnimationCheck(), 2 * time.Second},
		{"reconnect", cfg.Intervals.Reconnect(), 10 * time.Second},
		{"await question", cfg.Intervals.AwaitQuestion(), 25 * time.Second},
		{"reset subroutine", cfg.Intervals.ResetSubroutine(), 5 * time.Minute},
		{"high autonomy", cfg.Intervals.HighAutonomy(), 5 * time.Minute},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}

	if cfg.Storage.StateDir != "/var/lib/autonomyd" {
		t.Errorf("StateDir = %q", cfg.Storage.StateDir)
	}
	if cfg.Storage.JournalMax != 10000 {
		t.Errorf("JournalMax = %d", cfg.Storage.JournalMax)
	}
	if cfg.Calendar.Timezone != "Local" {
		t.Errorf("Timezone = %q", cfg.Calendar.Timezone)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("AUTONOMYD_ROBOT_TOKEN", "from-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
robot:
  ws_url: ws://vector.local:8765/robot
  token: from-file
calendar:
  timezone: Europe/Amsterdam
  supervision_days:
    - "2022-01-01"
    - "2022-04-27"
intervals:
  external_hold_ms: 250
  reset_subroutine_ms: 60000
metrics:
  listen: 127.0.0.1:9464
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Robot.Token != "from-env" {
		t.Errorf("Token = %q, want env override", cfg.Robot.Token)
	}
	if len(cfg.Calendar.SupervisionDays) != 2 {
		t.Errorf("SupervisionDays = %v", cfg.Calendar.SupervisionDays)
	}
	if cfg.Intervals.ExternalHold() != 250*time.Millisecond {
		t.Errorf("ExternalHold = %v", cfg.Intervals.ExternalHold())
	}
	if cfg.Intervals.ResetSubroutine() != time.Minute {
		t.Errorf("ResetSubroutine = %v", cfg.Intervals.ResetSubroutine())
	}
	if cfg.Intervals.AgentHold() != time.Second {
		t.Errorf("AgentHold default lost: %v", cfg.Intervals.AgentHold())
	}
	if cfg.Metrics.Listen != "127.0.0.1:9464" {
		t.Errorf("Metrics.Listen = %q", cfg.Metrics.Listen)
	}
	loc, err := cfg.Calendar.Location()
	if err != nil {
		t.Fatalf("Location: %v", err)
	}
	if loc.String() != "Europe/Amsterdam" {
		t.Errorf("Location = %s", loc)
	}
}

func TestParseKeepsExplicitZero(t *testing.T) {
	cfg, err := Parse([]byte("intervals:\n  agent_hold_ms: 0\n  external_hold_ms: 0\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := cfg.Intervals.AgentHold(); got != 0 {
		t.Errorf("AgentHold = %v, want 0", got)
	}
	if got := cfg.Intervals.ExternalHold(); got != 0 {
		t.Errorf("ExternalHold = %v, want 0", got)
	}
	if got := cfg.Intervals.AnimationCheck(); got != 2*time.Second {
		t.Errorf("AnimationCheck = %v, want default", got)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	cfg, err := Parse([]byte(`
calendar:
  timezone: Mars/Olympus_Mons
intervals:
  agent_hold_ms: -1
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"robot.ws_url", "calendar.timezone", "agent_hold_ms"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestParseInvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("robot: [unterminated")); err == nil {
		t.Fatal("expected YAML error")
	}
}
