/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package timestamp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
	"go.uber.org/zap"

	"github.com/suparena/persistkit/datastore"
	"github.com/suparena/persistkit/entity"
	"github.com/suparena/persistkit/errors"
	"github.com/suparena/persistkit/metrics"
)

const (
	// Kind is the kind of stored timestamp records.
	Kind = "_Timestamp"

	// Separator joins the type and unique key parts.
	Separator = "::"

	// sentinel keeps a never-stored timestamp strictly older than its incoming time.
	sentinel = time.Millisecond
)

// State classifies a timestamp against its incoming modification time.
type State int

const (
	// Fresh has never been persisted.
	Fresh State = iota
	// Obsolete is stored with a time at or after the incoming one.
	Obsolete
	// Current is stored with a time before the incoming one.
	Current
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Obsolete:
		return "obsolete"
	case Current:
		return "current"
	default:
		return "unknown"
	}
}

// Key joins typ and parts into the stored record name, e.g. Order::A::B::C.
func Key(typ string, parts ...string) (string, error) {
	if typ == "" {
		return "", errors.NewInvalidArgumentError("type", "timestamp type is empty")
	}
	if len(parts) == 0 {
		return "", errors.NewInvalidArgumentError("uniqueKey", "timestamp unique key is empty")
	}
	return typ + Separator + strings.Join(parts, Separator), nil
}

// Tracker looks up and persists timestamps.
type Tracker struct {
	store   datastore.Backend
	clock   func() time.Time
	logger  *zap.Logger
	metrics *metrics.Recorder
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces time.Now as the default incoming time.
func WithClock(clock func() time.Time) Option {
	return func(t *Tracker) {
		t.clock = clock
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(t *Tracker) {
		t.metrics = m
	}
}

// NewTracker returns a Tracker over store.
func NewTracker(store datastore.Backend, opts ...Option) *Tracker {
	t := &Tracker{store: store, clock: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Of loads the timestamp for typ and uniqueKey and sets its incoming time.
// A nil incoming means now. Times are kept at millisecond precision in UTC.
func (t *Tracker) Of(ctx context.Context, typ string, uniqueKey []string, incoming *time.Time) (*Timestamp, error) {
	name, err := Key(typ, uniqueKey...)
	if err != nil {
		return nil, err
	}
	in := t.clock()
	if incoming != nil {
		in = *incoming
	}
	in = normalize(in)

	ts := &Timestamp{
		tracker:   t,
		name:      name,
		typ:       typ,
		uniqueKey: append([]string(nil), uniqueKey...),
		incoming:  in,
	}

	rec, err := t.store.Get(ctx, recordKey(name))
	switch {
	case errors.IsNotFound(err):
		ts.last = in.Add(-sentinel)
		return ts, nil
	case err != nil:
		return nil, err
	}

	last, err := parseLast(rec)
	if err != nil {
		return nil, err
	}
	ts.last = last
	ts.persisted = true
	if ts.IsObsolete() {
		t.metrics.TimestampObsolete(typ)
		t.logger.Debug("obsolete update",
			zap.String("key", name),
			zap.Time("last", ts.last),
			zap.Time("incoming", ts.incoming))
	}
	return ts, nil
}

// Timestamp is the last trusted modification time of one resource together
// with the modification time of the update being evaluated.
type Timestamp struct {
	tracker   *Tracker
	name      string
	typ       string
	uniqueKey []string
	last      time.Time
	incoming  time.Time
	persisted bool
}

// Key returns the composite key.
func (ts *Timestamp) Key() string {
	return ts.name
}

func (ts *Timestamp) Type() string {
	return ts.typ
}

func (ts *Timestamp) UniqueKey() []string {
	return append([]string(nil), ts.uniqueKey...)
}

// LastModification is the trusted time. It is never persisted before Done.
func (ts *Timestamp) LastModification() time.Time {
	return ts.last
}

// Incoming is the time of the update being evaluated. It is never persisted.
func (ts *Timestamp) Incoming() time.Time {
	return ts.incoming
}

// IsObsolete reports whether the incoming update is not strictly newer than
// the trusted time. Equal times are obsolete.
func (ts *Timestamp) IsObsolete() bool {
	return !ts.last.Before(ts.incoming)
}

func (ts *Timestamp) State() State {
	switch {
	case !ts.persisted:
		return Fresh
	case ts.IsObsolete():
		return Obsolete
	default:
		return Current
	}
}

// Done advances the trusted time to the incoming one when it is newer and
// persists the timestamp in a transaction either way.
func (ts *Timestamp) Done(ctx context.Context) error {
	last := ts.last
	if last.Before(ts.incoming) {
		last = ts.incoming
	}
	key := recordKey(ts.name)
	props := entity.Properties{
		"type":             ts.typ,
		"uniqueKey":        toAny(ts.uniqueKey),
		"lastModification": strfmt.DateTime(last).String(),
	}

	err := ts.tracker.store.Transact(ctx, func(ctx context.Context, tx datastore.Ops) error {
		var version int64
		rec, err := tx.Get(ctx, key)
		switch {
		case err == nil:
			version = rec.Version
		case !errors.IsNotFound(err):
			return err
		}
		_, err = tx.Put(ctx, &datastore.Record{Key: key, Version: version + 1, Properties: props})
		return err
	})
	if err != nil {
		return err
	}
	ts.last = last
	ts.persisted = true
	return nil
}

// Delete removes the stored timestamp in a transaction.
func (ts *Timestamp) Delete(ctx context.Context) error {
	err := ts.tracker.store.Transact(ctx, func(ctx context.Context, tx datastore.Ops) error {
		return tx.Delete(ctx, recordKey(ts.name))
	})
	if err != nil {
		return err
	}
	ts.persisted = false
	return nil
}

func recordKey(name string) *entity.Key {
	return entity.NewNameKey(Kind, name, nil)
}

func normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

func parseLast(rec *datastore.Record) (time.Time, error) {
	raw, ok := rec.Properties["lastModification"].(string)
	if !ok {
		return time.Time{}, errors.NewConversionError(rec.Properties["lastModification"], "DateTime", fmt.Errorf("field is not a string"))
	}
	dt, err := strfmt.ParseDateTime(raw)
	if err != nil {
		return time.Time{}, errors.NewConversionError(raw, "DateTime", err)
	}
	return normalize(time.Time(dt)), nil
}

func toAny(parts []string) []any {
	out := make([]any, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return out
}
