package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	strduration "github.com/xhit/go-str2duration/v2"
	"go.uber.org/zap/zapcore"
)

const (
	TransportWhatsApp = "whatsapp"
	TransportLoopback = "loopback"
)

// Duration is a time.Duration written in the config as a string such as
// "30s", "2m" or "1d".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := strduration.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(strduration.String(time.Duration(d))), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config represents the global ~/.wppcli/config.toml.
type Config struct {
	DefaultSession  string            `toml:"default_session"`
	Transport       string            `toml:"transport"`
	LogLevel        string            `toml:"log_level"`
	MediaDir        string            `toml:"media_dir"`
	ImageTimer      Duration          `toml:"image_timer"`
	TextTimer       Duration          `toml:"text_timer"`
	AutoDelete      bool              `toml:"auto_delete"`
	ExpiryInterval  Duration          `toml:"expiry_interval"`
	SeenInterval    Duration          `toml:"seen_interval"`
	RefreshInterval Duration          `toml:"refresh_interval"`
	InboundCapacity int               `toml:"inbound_capacity"`
	MetricsAddr     string            `toml:"metrics_addr"`
	ImageViewer     string            `toml:"image_viewer"`
	AutoReplies     map[string]string `toml:"auto_replies"`
}

// DefaultAutoReplies answers a few greetings out of the box.
func DefaultAutoReplies() map[string]string {
	return map[string]string{
		"hi":          "Hello! 👋",
		"hello":       "Hi there!",
		"how are you": "I'm doing great, thanks for asking! How about you?",
		"bye":         "Goodbye! 👋",
		"thanks":      "You're welcome! 😊",
	}
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Transport:       TransportWhatsApp,
		LogLevel:        "info",
		ExpiryInterval:  Duration(time.Second),
		SeenInterval:    Duration(10 * time.Second),
		RefreshInterval: Duration(500 * time.Millisecond),
		AutoReplies:     DefaultAutoReplies(),
	}
}

// Load reads config from path on top of the defaults. Returns an error if the
// file is missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but treats a missing file as empty.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportWhatsApp, TransportLoopback:
	default:
		return fmt.Errorf("transport: unknown value %q (want %s or %s)", c.Transport, TransportWhatsApp, TransportLoopback)
	}
	if _, err := c.Level(); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.ImageTimer < 0 || c.TextTimer < 0 {
		return errors.New("image_timer and text_timer must not be negative")
	}
	for name, d := range map[string]Duration{
		"expiry_interval":  c.ExpiryInterval,
		"seen_interval":    c.SeenInterval,
		"refresh_interval": c.RefreshInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.InboundCapacity < 0 {
		return errors.New("inbound_capacity must not be negative")
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (zapcore.Level, error) {
	if c.LogLevel == "" {
		return zapcore.InfoLevel, nil
	}
	return zapcore.ParseLevel(c.LogLevel)
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
