/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package cache

import (
	"context"
	"fmt"

	"github.com/viccon/sturdyc"
	"go.uber.org/zap"

	"github.com/suparena/persistkit/errors"
)

// FetchFn loads a value from the source of truth.
type FetchFn[T any] func(ctx context.Context) (T, error)

// Service is a read-through cache. Errors returned by fetch are never cached.
type Service[T any] interface {
	GetOrFetch(ctx context.Context, key string, fetch FetchFn[T]) (T, error)
	Delete(ctx context.Context, key string)
}

// New builds the sturdyc cache for cfg. When the cache cannot be built it logs a
// warning and returns the no-op cache, so callers always get a working Service.
func New[T any](cfg Config, logger *zap.Logger) Service[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		return Noop[T]{}
	}
	svc, err := NewSturdyc[T](cfg)
	if err != nil {
		logger.Warn("cache unavailable, falling back to no-op cache", zap.Error(err))
		return Noop[T]{}
	}
	return svc
}

// NewSturdyc builds a sturdyc-backed Service. Failures are errors.ErrStorageFailure.
func NewSturdyc[T any](cfg Config) (svc Service[T], err error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.NewStorageError("cache construction", err)
	}
	defer func() {
		if r := recover(); r != nil {
			svc, err = nil, errors.NewStorageError("cache construction", fmt.Errorf("sturdyc: %v", r))
		}
	}()
	client := sturdyc.New[T](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.sturdycOptions()...,
	)
	return &sturdycService[T]{client: client}, nil
}

type sturdycService[T any] struct {
	client *sturdyc.Client[T]
}

func (s *sturdycService[T]) GetOrFetch(ctx context.Context, key string, fetch FetchFn[T]) (T, error) {
	return s.client.GetOrFetch(ctx, key, func(ctx context.Context) (T, error) {
		return fetch(ctx)
	})
}

func (s *sturdycService[T]) Delete(_ context.Context, key string) {
	s.client.Delete(key)
}

// Noop caches nothing and always fetches.
type Noop[T any] struct{}

func (Noop[T]) GetOrFetch(ctx context.Context, _ string, fetch FetchFn[T]) (T, error) {
	return fetch(ctx)
}

func (Noop[T]) Delete(context.Context, string) {}
