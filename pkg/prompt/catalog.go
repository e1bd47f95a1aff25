// Package prompt implements the named, parametrised template catalog of
// spec.md §4.1 (C2): getPrompt/formatPrompt semantics modeled on the
// teacher's stateless pkg/agent/prompt.Builder (named Build* methods,
// string-in/string-out, no internal mutable state beyond a load cache).
package prompt

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Catalog resolves prompt templates by name, preferring an on-disk override
// directory and falling back to the built-in catalog. Templates are cached
// after first load.
type Catalog struct {
	dir string

	mu    sync.RWMutex
	cache map[string]string
}

// NewCatalog returns a Catalog that looks for "<dir>/<name>.tmpl" overrides
// before falling back to builtinTemplates. dir may be empty, in which case
// only the built-in catalog is consulted.
func NewCatalog(dir string) *Catalog {
	return &Catalog{dir: dir, cache: make(map[string]string)}
}

// Get returns the named template's raw text.
func (c *Catalog) Get(name string) (string, error) {
	c.mu.RLock()
	if t, ok := c.cache[name]; ok {
		c.mu.RUnlock()
		return t, nil
	}
	c.mu.RUnlock()

	text, err := c.load(name)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.cache[name] = text
	c.mu.Unlock()
	return text, nil
}

func (c *Catalog) load(name string) (string, error) {
	if c.dir != "" {
		path := filepath.Join(c.dir, name+".tmpl")
		if b, err := os.ReadFile(path); err == nil {
			return string(b), nil
		} else if !os.IsNotExist(err) {
			slog.Warn("prompt: failed reading on-disk override", "name", name, "path", path, "error", err)
		}
	}
	text, ok := builtinTemplates[name]
	if !ok {
		return "", ErrTemplateNotFound(name)
	}
	return text, nil
}

// Format loads the named template and substitutes placeholders from data.
func (c *Catalog) Format(name string, data map[string]any) (string, error) {
	text, err := c.Get(name)
	if err != nil {
		return "", err
	}
	return substitute(text, data), nil
}
