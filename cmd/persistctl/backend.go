/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/suparena/persistkit/cache"
	"github.com/suparena/persistkit/config"
	"github.com/suparena/persistkit/datastore"
	"github.com/suparena/persistkit/datastore/badgerkv"
	"github.com/suparena/persistkit/datastore/cached"
	"github.com/suparena/persistkit/datastore/ddb"
	"github.com/suparena/persistkit/datastore/memquery"
	"github.com/suparena/persistkit/datastore/mock"
	"github.com/suparena/persistkit/datastore/mongodb"
	"github.com/suparena/persistkit/registry"
)

func noClose() error { return nil }

// openBackend opens the backend named in cfg, wrapped in the read-through
// cache when enabled.
func openBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (datastore.Backend, func() error, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return withCache[*memquery.Query](mock.New(), cfg, logger), noClose, nil

	case config.BackendBadger:
		s, err := badgerkv.Open(cfg.Badger, badgerkv.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return withCache[*memquery.Query](s, cfg, logger), s.Close, nil

	case config.BackendDynamoDB:
		opts := []ddb.Option{ddb.WithLogger(logger)}
		if cfg.IndexMapFile != "" {
			maps, err := registry.LoadIndexMapFile(cfg.IndexMapFile)
			if err != nil {
				return nil, nil, err
			}
			opts = append(opts, ddb.WithIndexMaps(maps))
		}
		s, err := ddb.Open(ctx, cfg.DynamoDB, opts...)
		if err != nil {
			return nil, nil, err
		}
		return withCache[*ddb.Query](s, cfg, logger), noClose, nil

	case config.BackendMongo:
		s, err := mongodb.Open(cfg.Mongo, mongodb.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return withCache[*mongodb.Query](s, cfg, logger), func() error { return s.Close(context.Background()) }, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

func withCache[Q any](s datastore.Store[Q], cfg *config.Config, logger *zap.Logger) datastore.Store[Q] {
	if !cfg.Cache.Enabled {
		return s
	}
	svc := cache.New[*datastore.Record](cfg.Cache, logger)
	return cached.New[Q](s, svc, cached.WithLogger(logger))
}
