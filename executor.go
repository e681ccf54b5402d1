/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package persistkit

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/suparena/persistkit/criteria"
	"github.com/suparena/persistkit/datastore"
	"github.com/suparena/persistkit/entity"
	"github.com/suparena/persistkit/errors"
	"github.com/suparena/persistkit/metrics"
	"github.com/suparena/persistkit/registry"
)

// Executor runs criteria against a store whose native query type is Q.
type Executor[Q any] struct {
	store    datastore.Store[Q]
	builder  criteria.Builder[Q]
	registry *registry.Registry
	logger   *zap.Logger
	metrics  *metrics.Recorder
}

type settings struct {
	logger  *zap.Logger
	metrics *metrics.Recorder
}

// Option configures an Executor.
type Option func(*settings)

func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(s *settings) {
		s.metrics = m
	}
}

// NewExecutor returns an Executor that lowers criteria with builder, runs them
// on store and hydrates results through reg.
func NewExecutor[Q any](store datastore.Store[Q], builder criteria.Builder[Q], reg *registry.Registry, opts ...Option) *Executor[Q] {
	s := settings{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&s)
	}
	return &Executor[Q]{
		store:    store,
		builder:  builder,
		registry: reg,
		logger:   s.logger,
		metrics:  s.metrics,
	}
}

// Store returns the underlying store.
func (x *Executor[Q]) Store() datastore.Store[Q] {
	return x.store
}

// Load implements entity.Loader, so a Ref can be resolved through the executor.
func (x *Executor[Q]) Load(ctx context.Context, key *entity.Key) (entity.Entity, error) {
	if key.Incomplete() {
		return nil, errors.NewInvalidArgumentError("key", "cannot load an incomplete key")
	}
	rec, err := x.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return x.hydrate(rec)
}

func (x *Executor[Q]) hydrate(rec *datastore.Record) (entity.Entity, error) {
	if x.registry == nil {
		return nil, errors.NewInvalidArgumentError("registry", "executor has no kind registry")
	}
	e, err := x.registry.New(rec.Key.Kind)
	if err != nil {
		return nil, err
	}
	if err := datastore.Hydrate(rec, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (x *Executor[Q]) run(ctx context.Context, spec criteria.Spec, keysOnly bool, mode string) ([]datastore.Record, error) {
	q, err := x.builder.Build(spec)
	if err != nil {
		return nil, err
	}
	records, err := x.store.Run(ctx, q, keysOnly)
	if err != nil {
		return nil, err
	}
	x.metrics.Query(spec.Kind, mode)
	x.logger.Debug("query executed",
		zap.String("kind", spec.Kind),
		zap.String("mode", mode),
		zap.Int("results", len(records)))
	return records, nil
}

func specOf[T entity.Entity](c *criteria.Criteria[T]) (criteria.Spec, error) {
	if c == nil {
		return criteria.Spec{}, errors.NewInvalidArgumentError("criteria", "must not be nil")
	}
	return c.Spec(), nil
}

func hydrateAs[T entity.Entity, Q any](x *Executor[Q], rec *datastore.Record) (T, error) {
	var zero T
	e, err := x.hydrate(rec)
	if err != nil {
		return zero, err
	}
	typed, ok := e.(T)
	if !ok {
		return zero, errors.NewInvalidArgumentError("kind",
			fmt.Sprintf("factory for %s returns %T, not %T", rec.Key.Kind, e, zero))
	}
	return typed, nil
}

// List returns every entity matching c, hydrated.
func List[T entity.Entity, Q any](ctx context.Context, x *Executor[Q], c *criteria.Criteria[T]) ([]T, error) {
	spec, err := specOf(c)
	if err != nil {
		return nil, err
	}
	records, err := x.run(ctx, spec, false, metrics.ModeList)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(records))
	for i := range records {
		e, err := hydrateAs[T](x, &records[i])
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// First returns the first entity matching c. ok is false when nothing matches.
func First[T entity.Entity, Q any](ctx context.Context, x *Executor[Q], c *criteria.Criteria[T]) (result T, ok bool, err error) {
	spec, err := specOf(c)
	if err != nil {
		return result, false, err
	}
	spec.Limit = 1
	records, err := x.run(ctx, spec, false, metrics.ModeList)
	if err != nil || len(records) == 0 {
		return result, false, err
	}
	result, err = hydrateAs[T](x, &records[0])
	if err != nil {
		return result, false, err
	}
	return result, true, nil
}

// Count returns the number of entities List would return for c.
func Count[T entity.Entity, Q any](ctx context.Context, x *Executor[Q], c *criteria.Criteria[T]) (int, error) {
	spec, err := specOf(c)
	if err != nil {
		return 0, err
	}
	q, err := x.builder.Build(spec)
	if err != nil {
		return 0, err
	}
	n, err := x.store.Count(ctx, q)
	if err != nil {
		return 0, err
	}
	x.metrics.Query(spec.Kind, metrics.ModeCount)
	return n, nil
}

// FetchKeys runs c keys-only and returns the matching keys in List order.
func FetchKeys[T entity.Entity, Q any](ctx context.Context, x *Executor[Q], c *criteria.Criteria[T]) ([]*entity.Key, error) {
	spec, err := specOf(c)
	if err != nil {
		return nil, err
	}
	records, err := x.run(ctx, spec, true, metrics.ModeKeys)
	if err != nil {
		return nil, err
	}
	keys := make([]*entity.Key, len(records))
	for i := range records {
		keys[i] = records[i].Key
	}
	return keys, nil
}

// FetchIDs returns the numeric ids of the matching records in List order
// without hydrating them. Name-keyed records yield 0.
func FetchIDs[T entity.Entity, Q any](ctx context.Context, x *Executor[Q], c *criteria.Criteria[T]) ([]int64, error) {
	keys, err := FetchKeys(ctx, x, c)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(keys))
	for i, k := range keys {
		ids[i] = k.ID
	}
	return ids, nil
}

// FetchNames returns the names of the matching records in List order without
// hydrating them. Id-keyed records yield "".
func FetchNames[T entity.Entity, Q any](ctx context.Context, x *Executor[Q], c *criteria.Criteria[T]) ([]string, error) {
	keys, err := FetchKeys(ctx, x, c)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.Name
	}
	return names, nil
}

// Get loads the entity stored under key.
func Get[T entity.Entity, Q any](ctx context.Context, x *Executor[Q], key *entity.Key) (T, error) {
	var zero T
	if key.Incomplete() {
		return zero, errors.NewInvalidArgumentError("key", "cannot load an incomplete key")
	}
	rec, err := x.store.Get(ctx, key)
	if err != nil {
		return zero, err
	}
	return hydrateAs[T](x, rec)
}
