/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package cascade

import (
	"fmt"

	"github.com/suparena/persistkit/entity"
	"github.com/suparena/persistkit/errors"
)

type color int

const (
	white color = iota
	gray
	black
)

// checkCycles walks the pending edges depth first and fails on the first back
// edge. No ordering exists in which either end of such a cycle could be put
// with a resolved reference to the other.
func (r *rules) checkCycles(root entity.Entity) error {
	marks := map[*entity.Identity]color{}
	var path []string

	var visit func(n entity.Entity, label string) error
	visit = func(n entity.Entity, label string) error {
		id := n.EntityIdentity()
		switch marks[id] {
		case gray:
			start := 0
			for i, p := range path {
				if p == label {
					start = i
					break
				}
			}
			cycle := append(append([]string{}, path[start:]...), label)
			return errors.NewCycleError(cycle)
		case black:
			return nil
		}

		marks[id] = gray
		path = append(path, label)
		for _, edge := range r.pending(n) {
			target := edge.Ref.Target()
			if err := visit(target, nodeLabel(target)); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		marks[id] = black
		return nil
	}
	return visit(root, nodeLabel(root))
}

func nodeLabel(e entity.Entity) string {
	id := e.EntityIdentity()
	if id.Identified() {
		return id.Key().Encode()
	}
	return fmt.Sprintf("%s(%p)", id.Kind(), id)
}
