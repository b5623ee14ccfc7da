package notify

import (
	"errors"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// ErrNoViewer is returned when no image viewer is configured.
var ErrNoViewer = errors.New("no image viewer configured")

// Viewer opens received images with an external program. The command line
// may contain $path; otherwise the path is appended as the last argument.
type Viewer struct {
	argv []string
	log  *zap.Logger

	// start launches the process without waiting for it.
	start func(name string, args ...string) error
}

// NewViewer returns a viewer for the given command line. An empty command
// yields a viewer that always reports ErrNoViewer.
func NewViewer(command string, log *zap.Logger) *Viewer {
	return &Viewer{
		argv:  strings.Fields(command),
		log:   log,
		start: startDetached,
	}
}

func startDetached(name string, args ...string) error {
	c := exec.Command(name, args...)
	c.Stdin, c.Stdout, c.Stderr = nil, nil, nil
	if err := c.Start(); err != nil {
		return err
	}
	go func() { _ = c.Wait() }()
	return nil
}

// Open launches the viewer on path.
func (v *Viewer) Open(path string) error {
	if v == nil || len(v.argv) == 0 {
		return ErrNoViewer
	}
	args := make([]string, 0, len(v.argv))
	substituted := false
	for _, a := range v.argv[1:] {
		if strings.Contains(a, "$path") {
			a = strings.ReplaceAll(a, "$path", path)
			substituted = true
		}
		args = append(args, a)
	}
	if !substituted {
		args = append(args, path)
	}
	if err := v.start(v.argv[0], args...); err != nil {
		v.log.Warn("image viewer failed", zap.String("viewer", v.argv[0]), zap.Error(err))
		return err
	}
	return nil
}
