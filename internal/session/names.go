package session

import (
	"errors"
	"fmt"
	"regexp"
)

// DefaultSessionName is used when neither the flag nor the config picks one.
const DefaultSessionName = "main"

// ErrInvalidName is wrapped by ValidateName. Session names become directory
// names, so only lowercase letters, digits, '-' and '_' are accepted.
var ErrInvalidName = errors.New("invalid session name")

var validName = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// Resolve picks the active session name: the --session flag first, then the
// configured default, then DefaultSessionName.
func Resolve(flagOverride, configured string) string {
	switch {
	case flagOverride != "":
		return flagOverride
	case configured != "":
		return configured
	default:
		return DefaultSessionName
	}
}

// ValidateName reports whether name can be used as a session directory.
func ValidateName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("%w %q: use 1-64 of a-z, 0-9, '-' or '_'", ErrInvalidName, name)
	}
	return nil
}
