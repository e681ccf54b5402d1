/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package datastore

import (
	"context"

	"github.com/suparena/persistkit/entity"
	"github.com/suparena/persistkit/errors"
)

// Record is the stored form of one entity.
type Record struct {
	Key        *entity.Key
	Version    int64
	Properties entity.Properties
}

// Ops are the single-record operations every backend and transaction supports.
type Ops interface {
	// Get returns a NotFound error when no record exists under key.
	Get(ctx context.Context, key *entity.Key) (*Record, error)

	// Put stores rec and returns its complete key, assigning an id when rec.Key is incomplete.
	Put(ctx context.Context, rec *Record) (*entity.Key, error)

	// Delete removes the record; deleting a missing record is not an error.
	Delete(ctx context.Context, key *entity.Key) error
}

// Backend is a key-based store with an atomic transaction primitive.
type Backend interface {
	Ops

	// Transact runs fn atomically. Errors from fn or the commit are returned unmodified.
	Transact(ctx context.Context, fn func(ctx context.Context, tx Ops) error) error
}

// Querier runs backend-native queries of type Q.
type Querier[Q any] interface {
	// Run returns matching records in query order. With keysOnly set, records
	// carry only Key and Version.
	Run(ctx context.Context, q Q, keysOnly bool) ([]Record, error)

	Count(ctx context.Context, q Q) (int, error)
}

// Store is a Backend that also answers queries of type Q.
type Store[Q any] interface {
	Backend
	Querier[Q]
}

// ToRecord captures the current state of e. The version is left as stored on e.
func ToRecord(e entity.Entity) (*Record, error) {
	id := e.EntityIdentity()
	if id.Kind() == "" {
		return nil, errors.NewInvalidArgumentError("kind", "entity has no kind")
	}
	props, err := entity.ToProperties(e)
	if err != nil {
		return nil, err
	}
	return &Record{Key: id.Key(), Version: id.Version(), Properties: props}, nil
}

// Hydrate fills e from rec and binds its identity.
func Hydrate(rec *Record, e entity.Entity) error {
	if err := entity.FromProperties(rec.Properties, e); err != nil {
		return err
	}
	e.EntityIdentity().Bind(rec.Key, rec.Version)
	return nil
}

// Clone returns a deep copy for backends that keep records in memory.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := &Record{Key: r.Key, Version: r.Version}
	if r.Properties != nil {
		out.Properties = entity.Properties(cloneValue(map[string]any(r.Properties)).(map[string]any))
	}
	return out
}

func cloneValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(tv))
		for k, inner := range tv {
			m[k] = cloneValue(inner)
		}
		return m
	case []any:
		s := make([]any, len(tv))
		for i, inner := range tv {
			s[i] = cloneValue(inner)
		}
		return s
	default:
		return v
	}
}

// KeysOnly strips properties.
func (r Record) KeysOnly() Record {
	return Record{Key: r.Key, Version: r.Version}
}
