/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package persistkit

import (
	"context"

	"go.uber.org/zap"

	"github.com/suparena/persistkit/datastore"
	"github.com/suparena/persistkit/entity"
	"github.com/suparena/persistkit/errors"
)

// DynamicPropertiesKind is the kind of the per-owner dynamic property record.
const DynamicPropertiesKind = "_DynamicProperties"

const dynamicPropertiesName = "props"

// SaveProperties replaces the dynamic properties of owner with props. Keys
// absent from props are removed. The owner record must exist.
func (x *Executor[Q]) SaveProperties(ctx context.Context, owner entity.Entity, props map[string]any) error {
	ownerKey, err := storedOwnerKey(owner)
	if err != nil {
		return err
	}
	normalized, err := entity.NormalizeProperties(props)
	if err != nil {
		return err
	}
	key := dynamicPropertiesKey(ownerKey)

	err = x.store.Transact(ctx, func(ctx context.Context, tx datastore.Ops) error {
		if _, err := tx.Get(ctx, ownerKey); err != nil {
			return err
		}
		var version int64
		prev, err := tx.Get(ctx, key)
		switch {
		case err == nil:
			version = prev.Version
		case !errors.IsNotFound(err):
			return err
		}
		_, err = tx.Put(ctx, &datastore.Record{Key: key, Version: version + 1, Properties: normalized})
		return err
	})
	if err != nil {
		return err
	}
	x.logger.Debug("dynamic properties saved",
		zap.String("owner", ownerKey.Encode()),
		zap.Int("count", len(normalized)))
	return nil
}

// LoadProperties returns the dynamic properties of owner, empty when none were
// saved. The owner record must exist.
func (x *Executor[Q]) LoadProperties(ctx context.Context, owner entity.Entity) (entity.Properties, error) {
	ownerKey, err := storedOwnerKey(owner)
	if err != nil {
		return nil, err
	}
	if _, err := x.store.Get(ctx, ownerKey); err != nil {
		return nil, err
	}
	rec, err := x.store.Get(ctx, dynamicPropertiesKey(ownerKey))
	if errors.IsNotFound(err) {
		return entity.Properties{}, nil
	}
	if err != nil {
		return nil, err
	}
	if rec.Properties == nil {
		return entity.Properties{}, nil
	}
	return rec.Properties, nil
}

// storedOwnerKey rejects owners that cannot have been stored yet.
func storedOwnerKey(owner entity.Entity) (*entity.Key, error) {
	if owner == nil {
		return nil, errors.NewInvalidArgumentError("owner", "must not be nil")
	}
	id := owner.EntityIdentity()
	if !id.Identified() {
		return nil, errors.NewNotFoundError(id.Kind(), "")
	}
	return id.Key(), nil
}

func dynamicPropertiesKey(owner *entity.Key) *entity.Key {
	return entity.NewNameKey(DynamicPropertiesKind, dynamicPropertiesName, owner)
}
