/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package hashcode

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/suparena/persistkit/datastore"
	"github.com/suparena/persistkit/entity"
	"github.com/suparena/persistkit/errors"
	"github.com/suparena/persistkit/metrics"
)

const (
	// Kind is the kind of the detached hash record.
	Kind = "_PropertiesHashCode"

	// DefaultSlot is used when no slot is named.
	DefaultSlot = "default"

	recordName = "hash"
)

// Type tags of the hash input. Strings and names are length prefixed, so no
// value can imitate the encoding of another.
const (
	tagNull   = 'n'
	tagString = 's'
	tagInt    = 'i'
	tagFloat  = 'f'
	tagBool   = 'b'
	tagOther  = 'x'
	listOpen  = '['
	listClose = ']'
	mapOpen   = '{'
	mapClose  = '}'
)

// Hasher computes and persists property hashes per named slot.
type Hasher struct {
	store   datastore.Backend
	slots   map[string][]string
	logger  *zap.Logger
	metrics *metrics.Recorder
}

// Option configures a Hasher.
type Option func(*Hasher)

// WithDefault sets the properties hashed by the default slot. Without it the
// default slot covers every property in name order.
func WithDefault(props ...string) Option {
	return WithSlot(DefaultSlot, props...)
}

// WithSlot adds a named slot over props, hashed in the given order.
func WithSlot(name string, props ...string) Option {
	return func(h *Hasher) {
		h.slots[name] = append([]string(nil), props...)
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(h *Hasher) {
		h.logger = logger
	}
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(h *Hasher) {
		h.metrics = m
	}
}

// New returns a Hasher storing its records in store.
func New(store datastore.Backend, opts ...Option) *Hasher {
	h := &Hasher{
		store:  store,
		slots:  map[string][]string{DefaultSlot: nil},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Compute returns the current hash of e's slot properties. It does no I/O.
func (h *Hasher) Compute(e entity.Entity, slot ...string) (string, error) {
	_, props, err := h.resolve(slot)
	if err != nil {
		return "", err
	}
	values, err := entity.ToProperties(e)
	if err != nil {
		return "", err
	}
	return Sum(values, props), nil
}

// HashCode returns the stored hash of the slot. ok is false before the first Snapshot.
func (h *Hasher) HashCode(ctx context.Context, e entity.Entity, slot ...string) (hash string, ok bool, err error) {
	name, _, err := h.resolve(slot)
	if err != nil {
		return "", false, err
	}
	key, err := recordKey(e)
	if err != nil {
		return "", false, err
	}
	rec, err := h.store.Get(ctx, key)
	if errors.IsNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	hash, ok = rec.Properties[name].(string)
	return hash, ok, nil
}

// Changed reports whether the slot hash differs from the stored one without
// writing anything. A slot that was never snapshotted counts as changed.
func (h *Hasher) Changed(ctx context.Context, e entity.Entity, slot ...string) (bool, error) {
	current, err := h.Compute(e, slot...)
	if err != nil {
		return false, err
	}
	stored, ok, err := h.HashCode(ctx, e, slot...)
	if err != nil {
		return false, err
	}
	return !ok || stored != current, nil
}

// Snapshot stores the current slot hash and reports whether it changed. Other
// slots of the same record are left as they are.
func (h *Hasher) Snapshot(ctx context.Context, e entity.Entity, slot ...string) (bool, error) {
	name, _, err := h.resolve(slot)
	if err != nil {
		return false, err
	}
	key, err := recordKey(e)
	if err != nil {
		return false, err
	}
	current, err := h.Compute(e, slot...)
	if err != nil {
		return false, err
	}

	var changed bool
	err = h.store.Transact(ctx, func(ctx context.Context, tx datastore.Ops) error {
		rec, err := tx.Get(ctx, key)
		switch {
		case errors.IsNotFound(err):
			rec = &datastore.Record{Key: key, Properties: entity.Properties{}}
		case err != nil:
			return err
		}
		stored, ok := rec.Properties[name].(string)
		changed = !ok || stored != current
		if !changed {
			return nil
		}
		if rec.Properties == nil {
			rec.Properties = entity.Properties{}
		}
		rec.Properties[name] = current
		rec.Version++
		_, err = tx.Put(ctx, rec)
		return err
	})
	if err != nil {
		return false, err
	}

	if changed {
		h.metrics.HashChanged(name)
		h.logger.Debug("properties hash changed",
			zap.String("owner", key.Parent.Encode()),
			zap.String("slot", name),
			zap.String("hash", current))
	}
	return changed, nil
}

// Delete removes the stored hashes of every slot of e.
func (h *Hasher) Delete(ctx context.Context, e entity.Entity) error {
	key, err := recordKey(e)
	if err != nil {
		return err
	}
	return h.store.Transact(ctx, func(ctx context.Context, tx datastore.Ops) error {
		return tx.Delete(ctx, key)
	})
}

func (h *Hasher) resolve(slot []string) (string, []string, error) {
	if len(slot) > 1 {
		return "", nil, errors.NewInvalidArgumentError("slot", fmt.Sprintf("at most one slot, got %d", len(slot)))
	}
	name := DefaultSlot
	if len(slot) == 1 {
		name = slot[0]
	}
	props, ok := h.slots[name]
	if !ok {
		return "", nil, errors.NewInvalidArgumentError("slot", fmt.Sprintf("unsupported hash slot %q", name))
	}
	return name, props, nil
}

func recordKey(e entity.Entity) (*entity.Key, error) {
	if e == nil || !e.EntityIdentity().Identified() {
		return nil, errors.NewInvalidArgumentError("owner", "hash owner has no identity")
	}
	return RecordKey(e.EntityIdentity().Key()), nil
}

// RecordKey is the key of the hash record stored under owner.
func RecordKey(owner *entity.Key) *entity.Key {
	return entity.NewNameKey(Kind, recordName, owner)
}

// Sum hashes the named properties of values in order. An empty names list
// hashes every property in sorted name order. Null properties contribute nothing.
func Sum(values entity.Properties, names []string) string {
	if len(names) == 0 {
		names = make([]string, 0, len(values))
		for k := range values {
			names = append(names, k)
		}
		sort.Strings(names)
	}

	d := xxhash.New()
	buf := make([]byte, 0, 64)
	for _, name := range names {
		v := values[name]
		if v == nil {
			continue
		}
		buf = appendString(buf[:0], name)
		buf = appendValue(buf, v)
		_, _ = d.Write(buf)
	}
	return fmt.Sprintf("%016x", d.Sum64())
}

func appendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

func appendValue(buf []byte, v any) []byte {
	switch tv := v.(type) {
	case nil:
		return append(buf, tagNull)
	case string:
		return appendString(append(buf, tagString), tv)
	case int64:
		return binary.BigEndian.AppendUint64(append(buf, tagInt), uint64(tv))
	case float64:
		return binary.BigEndian.AppendUint64(append(buf, tagFloat), math.Float64bits(tv))
	case bool:
		if tv {
			return append(buf, tagBool, 1)
		}
		return append(buf, tagBool, 0)
	case []any:
		buf = append(buf, listOpen)
		for _, elem := range tv {
			buf = appendValue(buf, elem)
		}
		return append(buf, listClose)
	case map[string]any:
		keys := make([]string, 0, len(tv))
		for k := range tv {
			if tv[k] != nil {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		buf = append(buf, mapOpen)
		for _, k := range keys {
			buf = appendString(buf, k)
			buf = appendValue(buf, tv[k])
		}
		return append(buf, mapClose)
	default:
		return appendString(append(buf, tagOther), fmt.Sprint(tv))
	}
}
