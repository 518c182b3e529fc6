package shellctx

import (
	"os"
	"strings"
	"sync"
)

// Environment wraps process environment mutation so that PATH changes
// can be observed by the PATH-lookup cache without the executor and the
// cache needing to know about each other.
type Environment struct {
	mu        sync.Mutex
	listeners []func()
}

// NewEnvironment returns an Environment wrapping the current process
// environment.
func NewEnvironment() *Environment {
	return &Environment{}
}

// OnPathChanged registers a callback invoked whenever Set or Apply
// mutates the PATH variable.
func (e *Environment) OnPathChanged(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Set assigns name=value in the process environment.
func (e *Environment) Set(name, value string) error {
	if err := os.Setenv(name, value); err != nil {
		return err
	}
	if name == "PATH" {
		e.notifyPathChanged()
	}
	return nil
}

// Apply applies a sequence of "NAME=VALUE" strings, as produced by a
// command's extra_env, to the process environment.
func (e *Environment) Apply(assignments []string) error {
	for _, a := range assignments {
		name, value, ok := strings.Cut(a, "=")
		if !ok {
			continue
		}
		if err := e.Set(name, value); err != nil {
			return err
		}
	}
	return nil
}

// Get reads a variable, returning "" if unset.
func (e *Environment) Get(name string) string {
	return os.Getenv(name)
}

func (e *Environment) notifyPathChanged() {
	e.mu.Lock()
	listeners := append([]func(){}, e.listeners...)
	e.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}
