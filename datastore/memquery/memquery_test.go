/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package memquery

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suparena/persistkit/criteria"
	"github.com/suparena/persistkit/datastore"
	"github.com/suparena/persistkit/entity"
	"github.com/suparena/persistkit/errors"
)

func rec(id int64, props map[string]any) datastore.Record {
	p, err := entity.NormalizeProperties(props)
	if err != nil {
		panic(err)
	}
	return datastore.Record{Key: entity.NewIDKey("Item", id, nil), Version: 1, Properties: p}
}

func build(t *testing.T, spec criteria.Spec) *Query {
	t.Helper()
	q, err := Builder{}.Build(spec)
	require.NoError(t, err)
	return q
}

func ids(records []datastore.Record) []int64 {
	out := make([]int64, 0, len(records))
	for _, r := range records {
		out = append(out, r.Key.ID)
	}
	return out
}

func TestBetweenTruthTable(t *testing.T) {
	bounds := []criteria.Bound{criteria.Soft, criteria.Hard}
	values := []int{9, 10, 15, 20, 21}

	for _, lb := range bounds {
		for _, hb := range bounds {
			q := build(t, criteria.Spec{
				Kind:        "Item",
				Expressions: []criteria.Expression{criteria.Between("v", 10, 20, lb, hb)},
			})
			for _, v := range values {
				name := fmt.Sprintf("low=%d/high=%d/v=%d", lb, hb, v)
				r := rec(1, map[string]any{"v": v})

				wantLow := v >= 10
				if lb == criteria.Hard {
					wantLow = v > 10
				}
				wantHigh := v <= 20
				if hb == criteria.Hard {
					wantHigh = v < 20
				}
				assert.Equal(t, wantLow && wantHigh, q.Matches(&r), name)
			}
		}
	}
}

func TestBetweenMixedNumbers(t *testing.T) {
	q := build(t, criteria.Spec{
		Kind:        "Item",
		Expressions: []criteria.Expression{criteria.Between("v", 1.5, 3, criteria.Hard, criteria.Soft)},
	})
	r := rec(1, map[string]any{"v": 3})
	assert.True(t, q.Matches(&r))
	r = rec(2, map[string]any{"v": 1.5})
	assert.False(t, q.Matches(&r))
}

func TestExpressions(t *testing.T) {
	records := []datastore.Record{
		rec(1, map[string]any{"name": "apple", "n": 1, "tags": []string{"a"}, "owner": "Customer:i:9"}),
		rec(2, map[string]any{"name": "apricot", "n": 2, "nested": map[string]any{"x": "y"}}),
		rec(3, map[string]any{"name": "banana", "n": 3, "gone": nil}),
		{Key: entity.NewNameKey("Item", "named", nil), Properties: entity.Properties{"name": "cherry", "n": int64(4)}},
	}

	tests := []struct {
		name string
		expr criteria.Expression
		want []int64
	}{
		{"eq", criteria.Eq("name", "apple"), []int64{1}},
		{"ne", criteria.Ne("n", 1), []int64{2, 3, 0}},
		{"lt", criteria.Lt("n", 2), []int64{1}},
		{"le", criteria.Le("n", 2), []int64{1, 2}},
		{"gt", criteria.Gt("n", 3), []int64{0}},
		{"ge float", criteria.Ge("n", 2.5), []int64{3, 0}},
		{"in", criteria.In("name", "apple", "banana"), []int64{1, 3}},
		{"not in", criteria.NotIn("name", "apple", "banana"), []int64{2, 0}},
		{"id in", criteria.IDIn(2, 3, 99), []int64{2, 3}},
		{"name in", criteria.NameIn("named"), []int64{0}},
		{"like prefix", criteria.Like("name", "ap%"), []int64{1, 2}},
		{"like single", criteria.Like("name", "_pple"), []int64{1}},
		{"like literal dot", criteria.Like("name", "a.%"), nil},
		{"null", criteria.IsNull("nested"), []int64{1, 3, 0}},
		{"null value", criteria.IsNull("gone"), []int64{1, 2, 3, 0}},
		{"not null", criteria.IsNotNull("nested"), []int64{2}},
		{"nested path", criteria.Eq("nested.x", "y"), []int64{2}},
		{"or", criteria.AnyOf(criteria.Eq("n", 1), criteria.Eq("n", 3)), []int64{1, 3}},
		{"and", criteria.AllOf(criteria.Gt("n", 1), criteria.Like("name", "%a%")), []int64{2, 3}},
		{"reference id", criteria.ReferenceID("owner", "Customer", 9), []int64{1}},
		{"reference name", criteria.ReferenceName("owner", "Customer", "x"), nil},
		{"type mismatch", criteria.Gt("name", 1), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := build(t, criteria.Spec{Kind: "Item", Expressions: []criteria.Expression{tt.expr}})
			got := ids(q.Apply(records))
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestOrderingAndWindow(t *testing.T) {
	records := []datastore.Record{
		rec(1, map[string]any{"g": "b", "n": 1}),
		rec(2, map[string]any{"g": "a", "n": 5}),
		rec(3, map[string]any{"g": "b", "n": 3}),
		rec(4, map[string]any{"n": 2}),
	}

	q := build(t, criteria.Spec{
		Kind:   "Item",
		Orders: []criteria.OrderRule{{Property: "g", Direction: criteria.Asc}, {Property: "n", Direction: criteria.Desc}},
	})
	assert.Equal(t, []int64{4, 2, 3, 1}, ids(q.Apply(records)))

	q = build(t, criteria.Spec{
		Kind:   "Item",
		Orders: []criteria.OrderRule{{Property: "n", Direction: criteria.Asc}},
		Offset: 1,
		Limit:  2,
	})
	assert.Equal(t, []int64{4, 3}, ids(q.Apply(records)))

	q = build(t, criteria.Spec{Kind: "Item"})
	assert.Equal(t, []int64{1, 2, 3, 4}, ids(q.Apply(records)))
}

func TestKindAndParentScope(t *testing.T) {
	parent := entity.NewNameKey("Customer", "acme", nil)
	records := []datastore.Record{
		{Key: entity.NewIDKey("Item", 1, parent)},
		{Key: entity.NewIDKey("Item", 2, nil)},
		{Key: entity.NewIDKey("Other", 3, parent)},
	}

	q := build(t, criteria.Spec{Kind: "Item", Parent: parent})
	assert.Equal(t, []int64{1}, ids(q.Apply(records)))
}

func TestBuildErrors(t *testing.T) {
	_, err := Builder{}.Build(criteria.Spec{})
	assert.True(t, errors.IsInvalidArgument(err))

	_, err = Builder{}.Build(criteria.Spec{Kind: "Item", Expressions: []criteria.Expression{criteria.AnyOf()}})
	assert.True(t, errors.IsInvalidArgument(err))
}
