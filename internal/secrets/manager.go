// Package secrets provides OS-backed storage for "secret-bearing"
// environment variables: `export --secret NAME` keeps a variable's
// value out of the in-memory extra_env slice (and therefore out of
// history and out of any traced .esrc source) while still exposing it
// to children's environments at exec time, reading it back from the
// secret store on demand.
package secrets

import (
	"regexp"
	"runtime"
)

// Manager stores and retrieves secret-bearing shell variables.
type Manager interface {
	Set(name, value string) error
	Get(name string) (string, error)
	Delete(name string) error
	Exists(name string) (bool, error)
	List() ([]string, error)
}

// Backend is the platform-specific storage implementation.
type Backend interface {
	Set(key, value string) error
	Get(key string) (string, error)
	Delete(key string) error
	Exists(key string) (bool, error)
	List() ([]string, error)
}

// DefaultManager implements Manager using a platform-specific Backend.
type DefaultManager struct {
	backend Backend
}

// Option configures a DefaultManager.
type Option func(*DefaultManager)

var validNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// NewManager creates a secrets manager with the backend appropriate for
// the current platform.
func NewManager(opts ...Option) (Manager, error) {
	backend, err := detectBackend()
	if err != nil {
		return nil, err
	}

	mgr := &DefaultManager{backend: backend}
	for _, opt := range opts {
		opt(mgr)
	}
	return mgr, nil
}

// WithFallback forces the encrypted-file fallback backend (used by the
// shell and by tests). NewManager does not check whether an OS secret
// store is reachable and never switches to the fallback on its own.
func WithFallback() Option {
	return func(m *DefaultManager) {
		m.backend = NewFallbackBackend()
	}
}

func detectBackend() (Backend, error) {
	switch runtime.GOOS {
	case "darwin":
		return NewKeychainBackend()
	case "windows":
		return NewCredentialBackend()
	case "linux":
		return NewSecretServiceBackend()
	default:
		return NewFallbackBackend(), nil
	}
}

func (m *DefaultManager) Set(name, value string) error {
	if err := validateName(name); err != nil {
		return NewSecretError("set", name, err)
	}
	if err := m.backend.Set(name, value); err != nil {
		return NewSecretError("set", name, err)
	}
	return nil
}

func (m *DefaultManager) Get(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", NewSecretError("get", name, err)
	}
	value, err := m.backend.Get(name)
	if err != nil {
		return "", NewSecretError("get", name, err)
	}
	return value, nil
}

func (m *DefaultManager) Delete(name string) error {
	if err := validateName(name); err != nil {
		return NewSecretError("delete", name, err)
	}
	if err := m.backend.Delete(name); err != nil {
		return NewSecretError("delete", name, err)
	}
	return nil
}

func (m *DefaultManager) Exists(name string) (bool, error) {
	if err := validateName(name); err != nil {
		return false, NewSecretError("exists", name, err)
	}
	exists, err := m.backend.Exists(name)
	if err != nil {
		return false, NewSecretError("exists", name, err)
	}
	return exists, nil
}

func (m *DefaultManager) List() ([]string, error) {
	keys, err := m.backend.List()
	if err != nil {
		return nil, NewSecretError("list", "", err)
	}
	return keys, nil
}

func validateName(name string) error {
	if name == "" {
		return ErrInvalidKey
	}
	if !validNamePattern.MatchString(name) {
		return ErrInvalidKey
	}
	return nil
}

// ClearString best-effort-clears a string's backing bytes from memory
// once a secret value is no longer needed.
func ClearString(s *string) {
	if s == nil {
		return
	}
	b := []byte(*s)
	for i := range b {
		b[i] = 0
	}
	*s = ""
}
