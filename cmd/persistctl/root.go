/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/suparena/persistkit/config"
	"github.com/suparena/persistkit/datastore"
	"github.com/suparena/persistkit/logging"
)

// opener connects to the configured backend and returns a function releasing it.
type opener func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (datastore.Backend, func() error, error)

type app struct {
	configPath string
	cfg        *config.Config
	logger     *zap.Logger
	open       opener
}

func newApp() *app {
	return &app{logger: zap.NewNop(), open: openBackend}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "persistctl",
		Short:         "Inspect persistkit stores",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (YAML)")

	root.AddCommand(
		newVersionCmd(),
		newIndexMapCmd(),
		newTimestampCmd(a),
		newHashCmd(a),
	)
	return root
}

// load reads the configuration and builds the logger once per invocation.
func (a *app) load() error {
	if a.cfg != nil {
		return nil
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logging.New("persistctl", cfg.Log)
	return nil
}

// withBackend runs fn against the configured backend.
func (a *app) withBackend(cmd *cobra.Command, fn func(ctx context.Context, store datastore.Backend) error) error {
	if err := a.load(); err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	store, closeFn, err := a.open(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeFn(); err != nil {
			a.logger.Warn("failed to close backend", zap.Error(err))
		}
	}()
	return fn(ctx, store)
}
