/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/suparena/persistkit/datastore"
	"github.com/suparena/persistkit/property"
	"github.com/suparena/persistkit/timestamp"
)

func newTimestampCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timestamp",
		Short: "Inspect tracked modification times",
	}

	var at string
	show := &cobra.Command{
		Use:   "show TYPE KEY...",
		Short: "Show the stored time and whether an update at --at would be obsolete",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var incoming *time.Time
			if at != "" {
				t, err := property.ToTime(at)
				if err != nil {
					return err
				}
				incoming = &t
			}
			return a.withBackend(cmd, func(ctx context.Context, store datastore.Backend) error {
				ts, err := timestamp.NewTracker(store, timestamp.WithLogger(a.logger)).Of(ctx, args[0], args[1:], incoming)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "key:      %s\n", ts.Key())
				fmt.Fprintf(out, "state:    %s\n", ts.State())
				if ts.State() != timestamp.Fresh {
					fmt.Fprintf(out, "last:     %s\n", ts.LastModification().Format(time.RFC3339Nano))
				}
				fmt.Fprintf(out, "incoming: %s\n", ts.Incoming().Format(time.RFC3339Nano))
				return nil
			})
		},
	}
	show.Flags().StringVar(&at, "at", "", "incoming modification time (RFC3339), default now")

	del := &cobra.Command{
		Use:   "delete TYPE KEY...",
		Short: "Forget the stored time",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBackend(cmd, func(ctx context.Context, store datastore.Backend) error {
				ts, err := timestamp.NewTracker(store, timestamp.WithLogger(a.logger)).Of(ctx, args[0], args[1:], nil)
				if err != nil {
					return err
				}
				if err := ts.Delete(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", ts.Key())
				return nil
			})
		},
	}

	cmd.AddCommand(show, del)
	return cmd
}
