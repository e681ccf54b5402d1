/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package cached decorates a datastore.Store with a read-through record cache.
package cached

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/suparena/persistkit/cache"
	"github.com/suparena/persistkit/datastore"
	"github.com/suparena/persistkit/entity"
)

const keyPrefix = "record::"

// Store caches Get results of the wrapped store. Writes invalidate the
// affected keys; queries and reads inside transactions always go to the store.
type Store[Q any] struct {
	inner  datastore.Store[Q]
	cache  cache.Service[*datastore.Record]
	logger *zap.Logger
}

// Option configures a Store.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New wraps inner with svc.
func New[Q any](inner datastore.Store[Q], svc cache.Service[*datastore.Record], opts ...Option) *Store[Q] {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[Q]{inner: inner, cache: svc, logger: o.logger}
}

// Unwrap returns the decorated store.
func (s *Store[Q]) Unwrap() datastore.Store[Q] {
	return s.inner
}

func (s *Store[Q]) Get(ctx context.Context, key *entity.Key) (*datastore.Record, error) {
	rec, err := s.cache.GetOrFetch(ctx, cacheKey(key), func(ctx context.Context) (*datastore.Record, error) {
		return s.inner.Get(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

func (s *Store[Q]) Put(ctx context.Context, rec *datastore.Record) (*entity.Key, error) {
	key, err := s.inner.Put(ctx, rec)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, key)
	return key, nil
}

func (s *Store[Q]) Delete(ctx context.Context, key *entity.Key) error {
	if err := s.inner.Delete(ctx, key); err != nil {
		return err
	}
	s.invalidate(ctx, key)
	return nil
}

// Transact runs fn on the wrapped store and invalidates every key it wrote,
// whether or not the commit succeeded.
func (s *Store[Q]) Transact(ctx context.Context, fn func(ctx context.Context, tx datastore.Ops) error) error {
	var touched touchedKeys
	err := s.inner.Transact(ctx, func(ctx context.Context, tx datastore.Ops) error {
		// Retried transactions start over.
		touched.reset()
		return fn(ctx, &trackingOps{Ops: tx, touched: &touched})
	})
	for _, key := range touched.list() {
		s.invalidate(ctx, key)
	}
	return err
}

func (s *Store[Q]) Run(ctx context.Context, q Q, keysOnly bool) ([]datastore.Record, error) {
	return s.inner.Run(ctx, q, keysOnly)
}

func (s *Store[Q]) Count(ctx context.Context, q Q) (int, error) {
	return s.inner.Count(ctx, q)
}

func (s *Store[Q]) invalidate(ctx context.Context, key *entity.Key) {
	s.cache.Delete(ctx, cacheKey(key))
	s.logger.Debug("cache entry invalidated", zap.String("key", key.Encode()))
}

func cacheKey(key *entity.Key) string {
	return keyPrefix + key.Encode()
}

type touchedKeys struct {
	mu   sync.Mutex
	keys []*entity.Key
}

func (t *touchedKeys) add(key *entity.Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.keys = append(t.keys, key)
}

func (t *touchedKeys) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.keys = nil
}

func (t *touchedKeys) list() []*entity.Key {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.keys
}

// trackingOps records the keys a transaction writes. Its reads bypass the cache.
type trackingOps struct {
	datastore.Ops
	touched *touchedKeys
}

func (t *trackingOps) Put(ctx context.Context, rec *datastore.Record) (*entity.Key, error) {
	key, err := t.Ops.Put(ctx, rec)
	if err == nil {
		t.touched.add(key)
	}
	return key, err
}

func (t *trackingOps) Delete(ctx context.Context, key *entity.Key) error {
	err := t.Ops.Delete(ctx, key)
	if err == nil {
		t.touched.add(key)
	}
	return err
}
