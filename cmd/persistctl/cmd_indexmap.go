/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/suparena/persistkit/registry"
)

func newIndexMapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "indexmap",
		Short: "Work with index map files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate FILE",
		Short: "Check an index map file and list its attributes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			maps, err := registry.LoadIndexMapFile(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			kinds := maps.Kinds()
			for _, kind := range kinds {
				idx, _ := maps.Get(kind)
				attrs := make([]string, 0, len(idx))
				for attr := range idx {
					attrs = append(attrs, attr)
				}
				sort.Strings(attrs)

				fmt.Fprintln(out, kind)
				for _, attr := range attrs {
					fmt.Fprintf(out, "  %s = %s  [%s]\n", attr, idx[attr], strings.Join(registry.Placeholders(idx[attr]), ", "))
				}
			}
			fmt.Fprintf(out, "%d kinds OK\n", len(kinds))
			return nil
		},
	})
	return cmd
}
