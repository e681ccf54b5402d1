/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package cascade

import (
	"context"

	"go.uber.org/zap"

	"github.com/suparena/persistkit/datastore"
	"github.com/suparena/persistkit/entity"
	"github.com/suparena/persistkit/errors"
	"github.com/suparena/persistkit/metrics"
)

// Engine persists entity graphs in dependency order.
type Engine struct {
	store   datastore.Backend
	logger  *zap.Logger
	metrics *metrics.Recorder
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics records each put.
func WithMetrics(m *metrics.Recorder) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New returns an Engine writing to store.
func New(store datastore.Backend, opts ...Option) *Engine {
	e := &Engine{store: store, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SaveOption adjusts a single Save call.
type SaveOption func(*rules)

// rules are the per-call traversal rules. They never outlive the call.
type rules struct {
	ignore map[string]struct{}
}

// Ignore skips edges with the given names at every depth. Their targets are
// neither traversed nor persisted.
func Ignore(names ...string) SaveOption {
	return func(r *rules) {
		for _, n := range names {
			r.ignore[n] = struct{}{}
		}
	}
}

func (r *rules) pending(e entity.Entity) []entity.Edge {
	ref, ok := e.(entity.Referrer)
	if !ok {
		return nil
	}
	var out []entity.Edge
	for _, edge := range ref.References() {
		if _, skip := r.ignore[edge.Name]; skip {
			continue
		}
		target := edge.Ref.Target()
		if target == nil || target.EntityIdentity().Identified() {
			continue
		}
		out = append(out, edge)
	}
	return out
}

// Save persists root and every unidentified entity reachable from it through
// non-ignored edges.
//
// An unidentified root with pending edges is put once on its own first, so it
// has a key its targets can refer back to. That write commits even if the rest
// of the save fails. Every other put of the traversal runs in one Transact:
// targets before the entities that reference them, and an unidentified
// intermediate entity with pending edges put once before its targets and once
// after. Identities are bound as the transaction goes and restored if it does
// not commit. Transaction errors are returned unmodified.
func (e *Engine) Save(ctx context.Context, root entity.Entity, opts ...SaveOption) error {
	if root == nil {
		return errors.NewInvalidArgumentError("root", "nil entity")
	}
	r := &rules{ignore: map[string]struct{}{}}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.checkCycles(root); err != nil {
		return err
	}

	id := root.EntityIdentity()
	if len(r.pending(root)) > 0 && !id.Identified() {
		key, version, err := put(ctx, e.store, root)
		if err != nil {
			return err
		}
		id.Bind(key, version)
		e.saved(write{key: key, version: version, pass: metrics.PassInitial})
	}

	var p *pass
	err := e.store.Transact(ctx, func(ctx context.Context, tx datastore.Ops) error {
		// A retried transaction starts again from the identities it found.
		p.rollback()
		p = &pass{tx: tx, rules: r}
		return p.save(ctx, root)
	})
	if err != nil {
		p.rollback()
		return err
	}
	for _, w := range p.writes {
		e.saved(w)
	}
	return nil
}

func (e *Engine) saved(w write) {
	e.metrics.Save(w.key.Kind, w.pass)
	e.logger.Debug("entity saved",
		zap.String("key", w.key.Encode()),
		zap.Int64("version", w.version),
		zap.String("pass", w.pass))
}

type write struct {
	key     *entity.Key
	version int64
	pass    string
}

// binding is an identity as it was before the transaction bound it.
type binding struct {
	id      *entity.Identity
	key     *entity.Key
	version int64
}

// pass is one attempt at the transactional part of a save.
type pass struct {
	tx     datastore.Ops
	rules  *rules
	undo   []binding
	writes []write
}

func (p *pass) save(ctx context.Context, node entity.Entity) error {
	id := node.EntityIdentity()
	edges := p.rules.pending(node)

	if len(edges) > 0 && !id.Identified() {
		if err := p.put(ctx, node, metrics.PassInitial); err != nil {
			return err
		}
	}
	for _, edge := range edges {
		target := edge.Ref.Target()
		// Reached earlier through another path.
		if target.EntityIdentity().Identified() {
			continue
		}
		if err := p.save(ctx, target); err != nil {
			return err
		}
	}
	return p.put(ctx, node, metrics.PassFinal)
}

func (p *pass) put(ctx context.Context, node entity.Entity, passName string) error {
	key, version, err := put(ctx, p.tx, node)
	if err != nil {
		return err
	}
	id := node.EntityIdentity()
	p.undo = append(p.undo, binding{id: id, key: id.Key(), version: id.Version()})
	id.Bind(key, version)
	p.writes = append(p.writes, write{key: key, version: version, pass: passName})
	return nil
}

// rollback restores every identity bound by the pass, latest first.
func (p *pass) rollback() {
	if p == nil {
		return
	}
	for i := len(p.undo) - 1; i >= 0; i-- {
		b := p.undo[i]
		b.id.Bind(b.key, b.version)
	}
	p.undo = nil
}

// put writes node at its next version without touching its identity.
func put(ctx context.Context, ops datastore.Ops, node entity.Entity) (*entity.Key, int64, error) {
	rec, err := datastore.ToRecord(node)
	if err != nil {
		return nil, 0, err
	}
	rec.Version++
	key, err := ops.Put(ctx, rec)
	if err != nil {
		return nil, 0, err
	}
	return key, rec.Version, nil
}
