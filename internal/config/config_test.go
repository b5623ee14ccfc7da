package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"
)

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.DefaultSession = "work"
	cfg.TextTimer = Duration(90 * time.Second)
	cfg.AutoDelete = true
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultSession != "work" {
		t.Errorf("DefaultSession = %q, want %q", loaded.DefaultSession, "work")
	}
	if loaded.TextTimer.Std() != 90*time.Second {
		t.Errorf("TextTimer = %v, want 1m30s", loaded.TextTimer.Std())
	}
	if !loaded.AutoDelete {
		t.Error("AutoDelete = false, want true")
	}
}

func TestLoadDurationsAndTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
transport = "loopback"
image_timer = "1m"
seen_interval = "2s"
inbound_capacity = 16

[auto_replies]
ping = "pong"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Transport != TransportLoopback {
		t.Errorf("Transport = %q, want loopback", cfg.Transport)
	}
	if cfg.ImageTimer.Std() != time.Minute {
		t.Errorf("ImageTimer = %v, want 1m", cfg.ImageTimer.Std())
	}
	if cfg.SeenInterval.Std() != 2*time.Second {
		t.Errorf("SeenInterval = %v, want 2s", cfg.SeenInterval.Std())
	}
	if cfg.ExpiryInterval.Std() != time.Second {
		t.Errorf("ExpiryInterval = %v, want default 1s", cfg.ExpiryInterval.Std())
	}
	if cfg.InboundCapacity != 16 {
		t.Errorf("InboundCapacity = %d, want 16", cfg.InboundCapacity)
	}
	if cfg.AutoReplies["ping"] != "pong" {
		t.Errorf("AutoReplies[ping] = %q, want pong", cfg.AutoReplies["ping"])
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoadBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`text_timer = "soon"`), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for unparsable duration")
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load("/nonexistent/config.toml"); err == nil {
		t.Error("Load() expected error for missing file")
	}
	cfg, err := LoadOrDefault("/nonexistent/config.toml")
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.Transport != TransportWhatsApp {
		t.Errorf("Transport = %q, want default", cfg.Transport)
	}
	if len(cfg.AutoReplies) != 5 {
		t.Errorf("AutoReplies = %d entries, want 5 defaults", len(cfg.AutoReplies))
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"unknown transport", func(c *Config) { c.Transport = "sms" }, true},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"negative timer", func(c *Config) { c.ImageTimer = Duration(-time.Second) }, true},
		{"zero sweep", func(c *Config) { c.ExpiryInterval = 0 }, true},
		{"negative capacity", func(c *Config) { c.InboundCapacity = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "debug"
	lvl, err := cfg.Level()
	if err != nil || lvl != zapcore.DebugLevel {
		t.Errorf("Level() = %v, %v; want debug", lvl, err)
	}
}

func TestSavePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
