/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suparena/persistkit/criteria"
	"github.com/suparena/persistkit/entity"
	"github.com/suparena/persistkit/errors"
)

func filterOf(t *testing.T, exprs ...criteria.Expression) *Query {
	t.Helper()
	q, err := Builder{}.Build(criteria.Spec{Kind: "Item", Expressions: exprs})
	require.NoError(t, err)
	return q
}

func TestBetweenBounds(t *testing.T) {
	tests := []struct {
		low, high criteria.Bound
		want      string
	}{
		{criteria.Soft, criteria.Soft, "(#n0.#n1 >= :v0 AND #n0.#n1 <= :v1)"},
		{criteria.Hard, criteria.Soft, "(#n0.#n1 > :v0 AND #n0.#n1 <= :v1)"},
		{criteria.Soft, criteria.Hard, "(#n0.#n1 >= :v0 AND #n0.#n1 < :v1)"},
		{criteria.Hard, criteria.Hard, "(#n0.#n1 > :v0 AND #n0.#n1 < :v1)"},
	}
	for _, tt := range tests {
		q := filterOf(t, criteria.Between("n", 1, 5, tt.low, tt.high))
		assert.Equal(t, tt.want, q.Filter)
		assert.Equal(t, map[string]string{"#n0": "Props", "#n1": "n"}, q.Names)
		assert.Equal(t, &types.AttributeValueMemberN{Value: "1"}, q.Values[":v0"])
		assert.Equal(t, &types.AttributeValueMemberN{Value: "5"}, q.Values[":v1"])
	}
}

func TestSimpleExpressions(t *testing.T) {
	q := filterOf(t, criteria.Eq("name", "x"), criteria.Ne("name", "y"))
	assert.Equal(t, "#n0.#n1 = :v0 AND (attribute_exists(#n0.#n1) AND #n0.#n1 <> :v1)", q.Filter)
	assert.Len(t, q.Names, 2, "placeholders are reused per attribute")

	q = filterOf(t, criteria.Eq("address.city", "Oakville"))
	assert.Equal(t, "#n0.#n1.#n2 = :v0", q.Filter)
	assert.Equal(t, "city", q.Names["#n2"])

	q = filterOf(t, criteria.Eq("gone", nil))
	assert.Equal(t, "(attribute_not_exists(#n0.#n1) OR attribute_type(#n0.#n1, :v0))", q.Filter)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "NULL"}, q.Values[":v0"])
}

func TestInExpressions(t *testing.T) {
	q := filterOf(t, criteria.In("n", 1, 2))
	assert.Equal(t, "#n0.#n1 IN (:v0, :v1)", q.Filter)

	q = filterOf(t, criteria.NotIn("n", 1))
	assert.Equal(t, "(attribute_exists(#n0.#n1) AND NOT (#n0.#n1 IN (:v0)))", q.Filter)

	q = filterOf(t, criteria.IDIn(7, 8))
	assert.Equal(t, "#n0 IN (:v0, :v1)", q.Filter)
	assert.Equal(t, "KeyID", q.Names["#n0"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "8"}, q.Values[":v1"])

	q = filterOf(t, criteria.NameIn("a"))
	assert.Equal(t, "KeyName", q.Names["#n0"])

	for _, e := range []criteria.Expression{criteria.In("n"), criteria.IDIn(), criteria.NameIn()} {
		_, err := Builder{}.Build(criteria.Spec{Kind: "Item", Expressions: []criteria.Expression{e}})
		assert.True(t, errors.IsInvalidArgument(err), "%T", e)
	}
}

func TestLikePatterns(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{"abc", "#n0.#n1 = :v0"},
		{"abc%", "begins_with(#n0.#n1, :v0)"},
		{"%abc%", "contains(#n0.#n1, :v0)"},
		{"%", "attribute_type(#n0.#n1, :v0)"},
	}
	for _, tt := range tests {
		q := filterOf(t, criteria.Like("s", tt.pattern))
		assert.Equal(t, tt.want, q.Filter, tt.pattern)
	}

	for _, bad := range []string{"%abc", "a_c", "a%c"} {
		_, err := Builder{}.Build(criteria.Spec{Kind: "Item", Expressions: []criteria.Expression{criteria.Like("s", bad)}})
		assert.True(t, errors.IsInvalidArgument(err), bad)
	}
}

func TestLogicalAndReferences(t *testing.T) {
	q := filterOf(t, criteria.AnyOf(criteria.Eq("a", 1), criteria.IsNotNull("b")))
	assert.Equal(t, "(#n0.#n1 = :v0 OR (attribute_exists(#n0.#n2) AND NOT attribute_type(#n0.#n2, :v1)))", q.Filter)

	q = filterOf(t, criteria.ReferenceName("owner", "User", "bob"))
	assert.Equal(t, "#n0.#n1 = :v0", q.Filter)
	assert.Equal(t, &types.AttributeValueMemberS{Value: entity.NewNameKey("User", "bob", nil).Encode()}, q.Values[":v0"])

	_, err := Builder{}.Build(criteria.Spec{Kind: "Item", Expressions: []criteria.Expression{criteria.AllOf()}})
	assert.True(t, errors.IsInvalidArgument(err))
}

func TestParentScopeAndWindow(t *testing.T) {
	parent := entity.NewNameKey("Customer", "acme", nil)
	q, err := Builder{}.Build(criteria.New[*item]("Item").Parent(parent).OrderBy("n", criteria.Asc).Limit(2).Offset(1).Spec())
	require.NoError(t, err)
	assert.Equal(t, "#n0 = :v0", q.Filter)
	assert.Equal(t, "ParentKey", q.Names["#n0"])
	assert.Equal(t, 2, q.Limit)
	assert.Equal(t, 1, q.Offset)
	assert.Len(t, q.Orders, 1)

	q, err = Builder{}.Build(criteria.New[*item]("Item").Spec())
	require.NoError(t, err)
	assert.Empty(t, q.Filter)
	assert.Nil(t, q.Names)

	_, err = Builder{}.Build(criteria.Spec{})
	assert.True(t, errors.IsInvalidArgument(err))
}
