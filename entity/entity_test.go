/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package entity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suparena/persistkit/errors"
)

type customer struct {
	Identity `json:"-"`
	Name     string `json:"name"`
}

type order struct {
	Identity `json:"-"`
	Customer *Ref          `json:"customer"`
	Total    float64       `json:"total"`
	Lines    []string      `json:"lines,omitempty"`
	Meta     map[string]int `json:"meta,omitempty"`
}

type staticLoader map[string]Entity

func (l staticLoader) Load(_ context.Context, key *Key) (Entity, error) {
	if e, ok := l[key.Encode()]; ok {
		return e, nil
	}
	return nil, errors.NewNotFoundError(key.Kind, key.Encode())
}

func TestKeyEncodeDecode(t *testing.T) {
	parent := NewNameKey("Customer", "acme/west", nil)
	tests := []struct {
		name    string
		key     *Key
		encoded string
	}{
		{"id key", NewIDKey("Order", 42, nil), "Order:i:42"},
		{"name key", NewNameKey("Order", "a b", nil), "Order:n:a+b"},
		{"child key", NewIDKey("Order", 7, parent), "Customer:n:acme%2Fwest/Order:i:7"},
		{"kind with colon", NewNameKey("ns:Order", "x", nil), "ns%3AOrder:n:x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.encoded, tt.key.Encode())

			decoded, err := DecodeKey(tt.encoded)
			require.NoError(t, err)
			assert.True(t, decoded.Equal(tt.key), "decoded %v != %v", decoded, tt.key)
		})
	}
}

func TestDecodeKeyRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "Order", "Order:x:1", "Order:i:abc", ":n:a"} {
		_, err := DecodeKey(in)
		assert.True(t, errors.IsInvalidArgument(err), "input %q", in)
	}
}

func TestIdentity(t *testing.T) {
	id := NewIdentity("Order", nil)
	assert.False(t, id.Identified())
	assert.Equal(t, "Order", id.Kind())
	assert.Equal(t, int64(0), id.Version())

	id.Bind(NewIDKey("Order", 3, nil), 1)
	assert.True(t, id.Identified())
	assert.Equal(t, int64(3), id.ID())
	assert.Equal(t, "", id.Name())
	assert.Equal(t, int64(1), id.Version())

	named := NamedIdentity("Order", "first", NewIDKey("Customer", 1, nil))
	assert.True(t, named.Identified())
	assert.Equal(t, "Customer:i:1", named.Parent().Encode())

	var zero Identity
	assert.False(t, zero.Identified())
	assert.Equal(t, "", zero.Kind())
}

func TestRefFollowsTarget(t *testing.T) {
	c := &customer{Identity: NewIdentity("Customer", nil), Name: "acme"}
	ref := RefTo(c)

	assert.False(t, ref.Identified())
	data, err := ref.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))

	c.Bind(NewIDKey("Customer", 9, nil), 1)
	assert.True(t, ref.Identified())
	data, err = ref.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"Customer:i:9"`, string(data))
}

func TestRefResolve(t *testing.T) {
	c := &customer{Identity: NamedIdentity("Customer", "acme", nil)}
	loader := staticLoader{"Customer:n:acme": c}

	ref := RefKey(NewNameKey("Customer", "acme", nil))
	assert.Nil(t, ref.Target())

	got, err := ref.Resolve(context.Background(), loader)
	require.NoError(t, err)
	assert.Same(t, c, got)
	assert.Same(t, c, ref.Target())

	_, err = RefKey(NewNameKey("Customer", "missing", nil)).Resolve(context.Background(), loader)
	assert.True(t, errors.IsNotFound(err))
}

func TestPropertiesRoundTrip(t *testing.T) {
	c := &customer{Identity: NamedIdentity("Customer", "acme", nil)}
	o := &order{
		Identity: NewIdentity("Order", nil),
		Customer: RefTo(c),
		Total:    12,
		Lines:    []string{"b", "a"},
		Meta:     map[string]int{"n": 2},
	}

	props, err := ToProperties(o)
	require.NoError(t, err)
	assert.Equal(t, "Customer:n:acme", props["customer"])
	assert.Equal(t, int64(12), props["total"])
	assert.Equal(t, []any{"b", "a"}, props["lines"])
	assert.Equal(t, map[string]any{"n": int64(2)}, props["meta"])

	var back order
	back.Identity = NewIdentity("Order", nil)
	require.NoError(t, FromProperties(props, &back))
	assert.Equal(t, "Customer:n:acme", back.Customer.Key().Encode())
	assert.Equal(t, 12.0, back.Total)
	assert.Equal(t, []string{"b", "a"}, back.Lines)
}

func TestNormalizeValue(t *testing.T) {
	v, err := NormalizeValue(int32(5))
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)

	v, err = NormalizeValue(2.5)
	require.NoError(t, err)
	assert.Equal(t, 2.5, v)

	v, err = NormalizeValue(nil)
	require.NoError(t, err)
	assert.Nil(t, v)
}
