/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package property

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/suparena/persistkit/datastore"
	"github.com/suparena/persistkit/entity"
	"github.com/suparena/persistkit/errors"
)

// Kind is the kind of stored property records.
const Kind = "_Property"

const valueField = "value"

// Service reads and writes properties in a backend.
type Service struct {
	store  datastore.Backend
	logger *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store datastore.Backend, opts ...Option) *Service {
	s := &Service{store: store, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the raw value. ok is false when the property is not set.
func (s *Service) Get(ctx context.Context, name string) (value string, ok bool, err error) {
	key, err := propertyKey(name)
	if err != nil {
		return "", false, err
	}
	rec, err := s.store.Get(ctx, key)
	if errors.IsNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	value, ok = rec.Properties[valueField].(string)
	return value, ok, nil
}

// Set stores value in its string form.
func (s *Service) Set(ctx context.Context, name string, value any) error {
	key, err := propertyKey(name)
	if err != nil {
		return err
	}
	str, err := FromValue(value)
	if err != nil {
		return err
	}
	return s.store.Transact(ctx, func(ctx context.Context, tx datastore.Ops) error {
		var version int64
		prev, err := tx.Get(ctx, key)
		switch {
		case err == nil:
			version = prev.Version
		case !errors.IsNotFound(err):
			return err
		}
		_, err = tx.Put(ctx, &datastore.Record{
			Key:        key,
			Version:    version + 1,
			Properties: entity.Properties{valueField: str},
		})
		return err
	})
}

// Delete removes the property. Removing an unset property is not an error.
func (s *Service) Delete(ctx context.Context, name string) error {
	key, err := propertyKey(name)
	if err != nil {
		return err
	}
	return s.store.Delete(ctx, key)
}

// The typed getters return nil when the property is unset or cannot be
// converted. Only storage errors are returned.

func (s *Service) GetInt(ctx context.Context, name string) (*int64, error) {
	return typed(ctx, s, name, ToInt)
}

func (s *Service) GetFloat(ctx context.Context, name string) (*float64, error) {
	return typed(ctx, s, name, ToFloat)
}

func (s *Service) GetBool(ctx context.Context, name string) (*bool, error) {
	return typed(ctx, s, name, ToBool)
}

func (s *Service) GetDuration(ctx context.Context, name string) (*time.Duration, error) {
	return typed(ctx, s, name, ToDuration)
}

func (s *Service) GetTime(ctx context.Context, name string) (*time.Time, error) {
	return typed(ctx, s, name, ToTime)
}

func typed[T any](ctx context.Context, s *Service, name string, convert func(string) (T, error)) (*T, error) {
	raw, ok, err := s.Get(ctx, name)
	if err != nil || !ok {
		return nil, err
	}
	v, err := convert(raw)
	if err != nil {
		s.logger.Debug("property conversion failed",
			zap.String("name", name),
			zap.String("value", raw),
			zap.Error(err))
		return nil, nil
	}
	return &v, nil
}

func propertyKey(name string) (*entity.Key, error) {
	if name == "" {
		return nil, errors.NewInvalidArgumentError("name", "property name is empty")
	}
	return entity.NewNameKey(Kind, name, nil), nil
}
