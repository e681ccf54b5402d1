/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package registry

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/suparena/persistkit/errors"
)

// macroPattern matches {prop} placeholders inside index map templates.
var macroPattern = regexp.MustCompile(`\{([^{}]*)\}`)

// IndexMaps associates kinds with extra attributes, e.g. GSI keys, derived from
// templates such as "EMAIL#{Email}".
type IndexMaps struct {
	mu   sync.RWMutex
	maps map[string]map[string]string
}

// NewIndexMaps returns an empty IndexMaps.
func NewIndexMaps() *IndexMaps {
	return &IndexMaps{maps: make(map[string]map[string]string)}
}

// Register associates kind with idxMap, replacing any previous map.
func (m *IndexMaps) Register(kind string, idxMap map[string]string) error {
	if err := ValidateIndexMap(idxMap); err != nil {
		return fmt.Errorf("index map for %s: %w", kind, err)
	}
	cp := make(map[string]string, len(idxMap))
	for k, v := range idxMap {
		cp[k] = v
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maps[kind] = cp
	return nil
}

// Get retrieves the index map for kind, if any.
func (m *IndexMaps) Get(kind string) (map[string]string, bool) {
	if m == nil {
		return nil, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.maps[kind]
	return idx, ok
}

// Kinds returns the kinds with an index map, sorted.
func (m *IndexMaps) Kinds() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	kinds := make([]string, 0, len(m.maps))
	for k := range m.maps {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// LoadIndexMaps reads a YAML document of the form
//
//	User:
//	  GSI1PK: "EMAIL#{Email}"
//	  GSI1SK: "USER"
func LoadIndexMaps(r io.Reader) (*IndexMaps, error) {
	var doc map[string]map[string]string
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, errors.NewInvalidArgumentError("indexmap", err.Error())
	}
	maps := NewIndexMaps()
	for kind, idx := range doc {
		if err := maps.Register(kind, idx); err != nil {
			return nil, err
		}
	}
	return maps, nil
}

// LoadIndexMapFile opens path and calls LoadIndexMaps.
func LoadIndexMapFile(path string) (*IndexMaps, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index map file: %w", err)
	}
	defer f.Close()
	return LoadIndexMaps(f)
}

// ValidateIndexMap rejects empty attribute names and malformed placeholders.
func ValidateIndexMap(idxMap map[string]string) error {
	for attr, tmpl := range idxMap {
		if attr == "" {
			return errors.NewInvalidArgumentError("attribute", "empty attribute name")
		}
		for _, m := range macroPattern.FindAllStringSubmatch(tmpl, -1) {
			if m[1] == "" {
				return errors.NewInvalidArgumentError(attr, "empty placeholder in "+tmpl)
			}
		}
		rest := macroPattern.ReplaceAllString(tmpl, "")
		for _, c := range rest {
			if c == '{' || c == '}' {
				return errors.NewInvalidArgumentError(attr, "unbalanced braces in "+tmpl)
			}
		}
	}
	return nil
}

// Placeholders lists the property names referenced by tmpl, in order.
func Placeholders(tmpl string) []string {
	var names []string
	for _, m := range macroPattern.FindAllStringSubmatch(tmpl, -1) {
		names = append(names, m[1])
	}
	return names
}

// Expand substitutes each {prop} in tmpl using lookup. It returns false when a
// referenced property is missing.
func Expand(tmpl string, lookup func(name string) (string, bool)) (string, bool) {
	ok := true
	out := macroPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		v, found := lookup(match[1 : len(match)-1])
		if !found {
			ok = false
		}
		return v
	})
	return out, ok
}
