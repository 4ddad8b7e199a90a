package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validYAML = `
discord:
  token: "abc123"
logging:
  level: debug
  console: true
storage:
  path: ./data/optinbot.db
  busy_timeout: 5s
reminders:
  schedule: "@every 1m"
  dry_run: true
  send_gap: 2s
`

func TestLoadYAML(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.yaml", validYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Discord.Token != "abc123" {
		t.Fatalf("unexpected token: %q", cfg.Discord.Token)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
	if !cfg.Reminders.DryRun || cfg.Reminders.Schedule != "@every 1m" {
		t.Fatalf("unexpected reminders config: %+v", cfg.Reminders)
	}
	d, err := ParseDuration("reminders.send_gap", cfg.Reminders.SendGap)
	if err != nil || d != 2*time.Second {
		t.Fatalf("send_gap: %v %v", d, err)
	}
}

func TestLoadJSON(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.json",
		`{"discord":{"token":"tok"},"logging":{"level":"info","console":true,"file":{"enabled":false,"path":""}},"storage":{"path":"./x.db"},"reminders":{}}`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Discord.Token != "tok" || cfg.Storage.Path != "./x.db" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, "config.yaml", validYAML+"\nsurprise: true\n"))
	if err == nil {
		t.Fatalf("expected unknown key to be rejected")
	}
}

func TestLoadRequiresToken(t *testing.T) {
	_, err := Load(writeConfig(t, "config.yaml", strings.Replace(validYAML, `token: "abc123"`, `token: ""`, 1)))
	if err == nil || !strings.Contains(err.Error(), "discord.token") {
		t.Fatalf("expected token error, got %v", err)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	_, err := Load(writeConfig(t, "config.yaml", strings.Replace(validYAML, "send_gap: 2s", "send_gap: soon", 1)))
	if err == nil || !strings.Contains(err.Error(), "send_gap") {
		t.Fatalf("expected duration error, got %v", err)
	}
}

func TestParseDuration(t *testing.T) {
	cases := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"500ms", 500 * time.Millisecond, false},
		{" 1m ", time.Minute, false},
		{"-1s", 0, true},
		{"banana", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseDuration("field", tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error", tc.raw)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("%q: got %v, %v", tc.raw, got, err)
		}
	}
}
