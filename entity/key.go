/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package entity

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/suparena/persistkit/errors"
)

// Key addresses one record. Exactly one of Name and ID is set on a complete key.
type Key struct {
	Kind   string
	Name   string
	ID     int64
	Parent *Key
}

// NewNameKey returns a key identified by a string name.
func NewNameKey(kind, name string, parent *Key) *Key {
	return &Key{Kind: kind, Name: name, Parent: parent}
}

// NewIDKey returns a key identified by a numeric id.
func NewIDKey(kind string, id int64, parent *Key) *Key {
	return &Key{Kind: kind, ID: id, Parent: parent}
}

// NewIncompleteKey returns a key whose id is assigned by the backend on first put.
func NewIncompleteKey(kind string, parent *Key) *Key {
	return &Key{Kind: kind, Parent: parent}
}

// Incomplete reports whether the key has neither a name nor an id.
func (k *Key) Incomplete() bool {
	return k == nil || (k.Name == "" && k.ID == 0)
}

// Equal compares kind, identity and the full parent chain.
func (k *Key) Equal(o *Key) bool {
	if k == nil || o == nil {
		return k == o
	}
	if k.Kind != o.Kind || k.Name != o.Name || k.ID != o.ID {
		return false
	}
	return k.Parent.Equal(o.Parent)
}

// Encode renders the key as a stable string, ancestors first:
//
//	Customer:n:acme/Order:i:42
func (k *Key) Encode() string {
	if k == nil {
		return ""
	}
	var b strings.Builder
	k.encode(&b)
	return b.String()
}

func (k *Key) encode(b *strings.Builder) {
	if k.Parent != nil {
		k.Parent.encode(b)
		b.WriteByte('/')
	}
	b.WriteString(url.QueryEscape(k.Kind))
	if k.Name != "" {
		b.WriteString(":n:")
		b.WriteString(url.QueryEscape(k.Name))
		return
	}
	b.WriteString(":i:")
	b.WriteString(strconv.FormatInt(k.ID, 10))
}

func (k *Key) String() string {
	return k.Encode()
}

// DecodeKey parses the output of Encode.
func DecodeKey(s string) (*Key, error) {
	if s == "" {
		return nil, errors.NewInvalidArgumentError("key", "empty encoded key")
	}
	var parent *Key
	for _, elem := range strings.Split(s, "/") {
		parts := strings.SplitN(elem, ":", 3)
		if len(parts) != 3 {
			return nil, errors.NewInvalidArgumentError("key", "malformed key element "+strconv.Quote(elem))
		}
		kind, err := url.QueryUnescape(parts[0])
		if err != nil || kind == "" {
			return nil, errors.NewInvalidArgumentError("key", "malformed kind in "+strconv.Quote(elem))
		}
		k := &Key{Kind: kind, Parent: parent}
		switch parts[1] {
		case "n":
			name, err := url.QueryUnescape(parts[2])
			if err != nil {
				return nil, errors.NewInvalidArgumentError("key", "malformed name in "+strconv.Quote(elem))
			}
			k.Name = name
		case "i":
			id, err := strconv.ParseInt(parts[2], 10, 64)
			if err != nil {
				return nil, errors.NewInvalidArgumentError("key", "malformed id in "+strconv.Quote(elem))
			}
			k.ID = id
		default:
			return nil, errors.NewInvalidArgumentError("key", "unknown identity marker in "+strconv.Quote(elem))
		}
		parent = k
	}
	return parent, nil
}
