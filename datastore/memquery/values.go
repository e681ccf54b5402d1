/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package memquery

import (
	"cmp"
	"reflect"
	"strings"

	"github.com/suparena/persistkit/datastore"
)

// lookup resolves a property name, following dots into nested maps.
func lookup(props map[string]any, property string) any {
	if props == nil {
		return nil
	}
	if v, ok := props[property]; ok {
		return v
	}
	head, rest, found := strings.Cut(property, ".")
	if !found {
		return nil
	}
	nested, ok := props[head].(map[string]any)
	if !ok {
		return nil
	}
	return lookup(nested, rest)
}

func present(rec *datastore.Record, property string) (any, bool) {
	v := lookup(rec.Properties, property)
	return v, v != nil
}

// compare orders two normalized scalars of the same family.
func compare(a, b any) (int, bool) {
	switch av := a.(type) {
	case int64:
		switch bv := b.(type) {
		case int64:
			return cmp.Compare(av, bv), true
		case float64:
			return cmp.Compare(float64(av), bv), true
		}
	case float64:
		switch bv := b.(type) {
		case int64:
			return cmp.Compare(av, float64(bv)), true
		case float64:
			return cmp.Compare(av, bv), true
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv), true
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0, true
			case !av:
				return -1, true
			default:
				return 1, true
			}
		}
	}
	return 0, false
}

func equal(a, b any) bool {
	if c, ok := compare(a, b); ok {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

// rank groups values of different families for sorting: nil < bool < number < string < other.
func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int64, float64:
		return 2
	case string:
		return 3
	}
	return 4
}

// order is a total order used for sorting; nil sorts first.
func order(a, b any) int {
	if c, ok := compare(a, b); ok {
		return c
	}
	return cmp.Compare(rank(a), rank(b))
}
