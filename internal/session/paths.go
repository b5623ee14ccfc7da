package session

import (
	"os"
	"path/filepath"
)

// Paths locates the files of one named session under a root directory
// (normally ~/.wppcli).
type Paths struct {
	Root string
	Name string
}

// DefaultRoot returns ~/.wppcli.
func DefaultRoot() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".wppcli")
}

// ConfigPath returns the global config file path under the default root.
func ConfigPath() string {
	return filepath.Join(DefaultRoot(), "config.toml")
}

// For returns the paths of session name under the default root.
func For(name string) Paths {
	return Paths{Root: DefaultRoot(), Name: name}
}

// Dir is the session directory.
func (p Paths) Dir() string {
	return filepath.Join(p.Root, "sessions", p.Name)
}

// LockPath is the single-instance lock file.
func (p Paths) LockPath() string {
	return filepath.Join(p.Dir(), "LOCK")
}

// DevicePath is the sqlite database holding the provider device keys.
func (p Paths) DevicePath() string {
	return filepath.Join(p.Dir(), "device.db")
}

// LogDir is the directory holding rotated log files.
func (p Paths) LogDir() string {
	return filepath.Join(p.Dir(), "logs")
}

// LogPath is the active log file.
func (p Paths) LogPath() string {
	return filepath.Join(p.LogDir(), "wppcli.log")
}

// MediaDir is where received and downloaded images are stored unless the
// config overrides it.
func (p Paths) MediaDir() string {
	return filepath.Join(p.Dir(), "media")
}

// Ensure creates the session directory tree.
func (p Paths) Ensure() error {
	for _, d := range []string{p.Dir(), p.LogDir(), p.MediaDir()} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
