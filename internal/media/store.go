// Package media stores received images on disk.
package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/matheus3301/wppcli/internal/chat"
)

// Store writes images under a single directory.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. The directory is created lazily.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the storage directory.
func (s *Store) Dir() string { return s.dir }

// Saved describes a stored image.
type Saved struct {
	Filename string
	Path     string
}

// FileName returns the deterministic name of an image received in chatID at t.
func FileName(chatID chat.ID, t time.Time, ext string) string {
	if ext == "" {
		ext = ".jpg"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("image_%s_%d%s", sanitize(string(chatID)), t.Unix(), ext)
}

// ExtensionFor maps an image mimetype to a file extension.
func ExtensionFor(mimetype string) string {
	switch strings.ToLower(mimetype) {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}

// Save writes data and returns where it went. When two images of the same
// chat arrive within one second the later one gets a numeric suffix.
func (s *Store) Save(chatID chat.ID, receivedAt time.Time, ext string, data []byte) (Saved, error) {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return Saved{}, fmt.Errorf("create media dir: %w", err)
	}
	name := FileName(chatID, receivedAt, ext)
	base, extension := strings.TrimSuffix(name, filepath.Ext(name)), filepath.Ext(name)

	for n := 1; ; n++ {
		path := filepath.Join(s.dir, name)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
		if os.IsExist(err) {
			name = fmt.Sprintf("%s_%d%s", base, n, extension)
			continue
		}
		if err != nil {
			return Saved{}, fmt.Errorf("create %s: %w", name, err)
		}
		_, werr := f.Write(data)
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			_ = os.Remove(path)
			return Saved{}, fmt.Errorf("write %s: %w", name, werr)
		}
		return Saved{Filename: name, Path: path}, nil
	}
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '_'
		}
	}, s)
}
