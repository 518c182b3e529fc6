// Package pathcache memoizes PATH searches for argv[0] lookups shared by
// the executor (command dispatch) and the line editor (command-name
// autocompletion).
package pathcache

import (
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

type key struct {
	path string
	name string
}

// Cache memoizes (PATH value, program name) -> resolved absolute path.
type Cache struct {
	lru *lru.Cache[key, string]
}

// New builds a Cache holding up to size entries.
func New(size int) *Cache {
	c, _ := lru.New[key, string](size)
	return &Cache{lru: c}
}

// Invalidate drops every cached entry; called whenever PATH is
// reassigned.
func (c *Cache) Invalidate() {
	c.lru.Purge()
}

// Lookup searches PATH (as currently exported) for an executable named
// name, using the cache when possible.
func (c *Cache) Lookup(name string) (string, bool) {
	if strings.Contains(name, "/") {
		if isExecutable(name) {
			return name, true
		}
		return "", false
	}

	pathEnv := os.Getenv("PATH")
	k := key{path: pathEnv, name: name}
	if resolved, ok := c.lru.Get(k); ok {
		return resolved, true
	}

	for _, dir := range filepath.SplitList(pathEnv) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		if isExecutable(candidate) {
			c.lru.Add(k, candidate)
			return candidate, true
		}
	}
	return "", false
}

// Dirs returns the directories currently in PATH, for autocompletion
// scanning.
func Dirs() []string {
	return filepath.SplitList(os.Getenv("PATH"))
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0111 != 0
}
