/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package entity

import (
	"bytes"
	"context"

	"github.com/goccy/go-json"
)

// Loader fetches an entity by key.
type Loader interface {
	Load(ctx context.Context, key *Key) (Entity, error)
}

// Ref is an explicit handle to a related entity. It knows the target key as soon
// as the target is identified and loads the target only on Resolve.
type Ref struct {
	key    *Key
	target Entity
}

// RefTo returns a handle to an in-memory entity, identified or not.
func RefTo(target Entity) *Ref {
	return &Ref{target: target}
}

// RefKey returns a handle to a stored entity by key.
func RefKey(key *Key) *Ref {
	return &Ref{key: key}
}

// Key returns the target key, following the attached entity when present.
func (r *Ref) Key() *Key {
	if r == nil {
		return nil
	}
	if r.target != nil {
		return r.target.EntityIdentity().Key()
	}
	return r.key
}

// Target returns the attached entity, nil until set or resolved.
func (r *Ref) Target() Entity {
	if r == nil {
		return nil
	}
	return r.target
}

// Identified reports whether the handle points at a complete key.
func (r *Ref) Identified() bool {
	return !r.Key().Incomplete()
}

// Resolve loads the target through loader unless it is already attached.
func (r *Ref) Resolve(ctx context.Context, loader Loader) (Entity, error) {
	if r.target != nil {
		return r.target, nil
	}
	target, err := loader.Load(ctx, r.key)
	if err != nil {
		return nil, err
	}
	r.target = target
	return target, nil
}

// MarshalJSON writes the encoded target key, or null while unidentified.
func (r *Ref) MarshalJSON() ([]byte, error) {
	k := r.Key()
	if k.Incomplete() {
		return []byte("null"), nil
	}
	return json.Marshal(k.Encode())
}

func (r *Ref) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		r.key, r.target = nil, nil
		return nil
	}
	var encoded string
	if err := json.Unmarshal(data, &encoded); err != nil {
		return err
	}
	k, err := DecodeKey(encoded)
	if err != nil {
		return err
	}
	r.key, r.target = k, nil
	return nil
}

// Edge is a named outgoing reference of an entity.
type Edge struct {
	Name string
	Ref  *Ref
}

// Referrer is implemented by entities that reference other entities.
type Referrer interface {
	References() []Edge
}
