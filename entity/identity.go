/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package entity

// Identity carries the addressing and versioning state of a persisted entity.
// Embed it with a `json:"-"` tag so it stays out of the property map.
type Identity struct {
	key     *Key
	version int64
}

// Entity is anything addressable by an Identity.
type Entity interface {
	EntityIdentity() *Identity
}

// NewIdentity returns an unidentified identity; the backend assigns an id on first put.
func NewIdentity(kind string, parent *Key) Identity {
	return Identity{key: NewIncompleteKey(kind, parent)}
}

// NamedIdentity returns an identity addressed by a caller-chosen name.
func NamedIdentity(kind, name string, parent *Key) Identity {
	return Identity{key: NewNameKey(kind, name, parent)}
}

// EntityIdentity implements Entity for any struct embedding Identity.
func (i *Identity) EntityIdentity() *Identity {
	return i
}

// Key returns the current key. It is incomplete until the first put.
func (i *Identity) Key() *Key {
	return i.key
}

func (i *Identity) Kind() string {
	if i.key == nil {
		return ""
	}
	return i.key.Kind
}

func (i *Identity) Name() string {
	if i.key == nil {
		return ""
	}
	return i.key.Name
}

func (i *Identity) ID() int64 {
	if i.key == nil {
		return 0
	}
	return i.key.ID
}

func (i *Identity) Parent() *Key {
	if i.key == nil {
		return nil
	}
	return i.key.Parent
}

func (i *Identity) Version() int64 {
	return i.version
}

// Identified reports whether the entity has a complete key.
func (i *Identity) Identified() bool {
	return !i.key.Incomplete()
}

// Bind records the outcome of a successful write. Only storage code calls it.
func (i *Identity) Bind(key *Key, version int64) {
	i.key = key
	i.version = version
}
