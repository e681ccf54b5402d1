/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package entity

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/suparena/persistkit/errors"
)

// Properties is the stored form of an entity: JSON-compatible values where
// integers are int64, other numbers float64, objects map[string]any and arrays []any.
type Properties map[string]any

// ToProperties serializes the exported fields of e through its JSON form.
func ToProperties(e Entity) (Properties, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", e.EntityIdentity().Kind(), err)
	}
	return decodeProperties(data)
}

// FromProperties fills e from a property map. Identity is left untouched.
func FromProperties(p Properties, e Entity) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal properties: %w", err)
	}
	if err := json.Unmarshal(data, e); err != nil {
		return fmt.Errorf("failed to unmarshal properties into %T: %w", e, err)
	}
	return nil
}

// NormalizeProperties round-trips p through JSON so values compare and hash the
// same way regardless of which backend produced them.
func NormalizeProperties(p map[string]any) (Properties, error) {
	if p == nil {
		return Properties{}, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal properties: %w", err)
	}
	return decodeProperties(data)
}

// NormalizeValue applies the property normalization to a single value.
func NormalizeValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.NewInvalidArgumentError("value", err.Error())
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, errors.NewInvalidArgumentError("value", err.Error())
	}
	return normalize(out), nil
}

func decodeProperties(data []byte) (Properties, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode properties: %w", err)
	}
	props := make(Properties, len(raw))
	for k, v := range raw {
		props[k] = normalize(v)
	}
	return props, nil
}

func normalize(v any) any {
	switch tv := v.(type) {
	case json.Number:
		if i, err := tv.Int64(); err == nil {
			return i
		}
		if f, err := tv.Float64(); err == nil {
			return f
		}
		return tv.String()
	case map[string]any:
		for k, inner := range tv {
			tv[k] = normalize(inner)
		}
		return tv
	case []any:
		for i, inner := range tv {
			tv[i] = normalize(inner)
		}
		return tv
	default:
		return v
	}
}
