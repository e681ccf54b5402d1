/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/suparena/persistkit/entity"
	"github.com/suparena/persistkit/errors"
)

// Factory returns a fresh, empty entity of one kind.
type Factory func() entity.Entity

// Registry maps kind tags to factories. Populate it at startup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register associates kind with fn.
// If a factory is already registered for kind, it panics to prevent accidental overrides.
func (r *Registry) Register(kind string, fn Factory) {
	if kind == "" {
		panic("registry: empty kind")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[kind]; exists {
		panic(fmt.Sprintf("registry: kind %q already registered", kind))
	}
	r.factories[kind] = fn
}

// Register is a typed helper: Register[*User](reg, "User").
func Register[T entity.Entity](r *Registry, kind string, fn func() T) {
	r.Register(kind, func() entity.Entity { return fn() })
}

// New returns an empty entity of kind.
func (r *Registry) New(kind string) (entity.Entity, error) {
	r.mu.RLock()
	fn, ok := r.factories[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.NewInvalidArgumentError("kind", fmt.Sprintf("no factory registered for kind %q", kind))
	}
	return fn(), nil
}

// Has reports whether kind is registered.
func (r *Registry) Has(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[kind]
	return ok
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
