/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/suparena/persistkit/datastore"
	"github.com/suparena/persistkit/entity"
	"github.com/suparena/persistkit/errors"
	"github.com/suparena/persistkit/hashcode"
)

func newHashCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Inspect stored property hashes",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show ENCODED_KEY",
		Short: "Print the stored hash of every slot of an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := entity.DecodeKey(args[0])
			if err != nil {
				return errors.NewInvalidArgumentError("key", err.Error())
			}
			return a.withBackend(cmd, func(ctx context.Context, store datastore.Backend) error {
				rec, err := store.Get(ctx, hashcode.RecordKey(owner))
				if errors.IsNotFound(err) {
					fmt.Fprintf(cmd.OutOrStdout(), "no hashes stored for %s\n", owner)
					return nil
				}
				if err != nil {
					return err
				}
				slots := make([]string, 0, len(rec.Properties))
				for slot := range rec.Properties {
					slots = append(slots, slot)
				}
				sort.Strings(slots)
				for _, slot := range slots {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%v\n", slot, rec.Properties[slot])
				}
				return nil
			})
		},
	})
	return cmd
}
