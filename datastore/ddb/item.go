/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/spf13/cast"

	"github.com/suparena/persistkit/datastore"
	"github.com/suparena/persistkit/entity"
	"github.com/suparena/persistkit/registry"
)

// Item attribute names.
const (
	attrPK         = "PK"
	attrSK         = "SK"
	attrEntityType = "EntityType"
	attrKeyID      = "KeyID"
	attrKeyName    = "KeyName"
	attrParentKey  = "ParentKey"
	attrVersion    = "Version"
	attrProps      = "Props"
)

// itemHeader is the fixed part of every stored item.
type itemHeader struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	KeyID      int64  `dynamodbav:"KeyID,omitempty"`
	KeyName    string `dynamodbav:"KeyName,omitempty"`
	ParentKey  string `dynamodbav:"ParentKey,omitempty"`
	Version    int64  `dynamodbav:"Version"`
}

func primaryKey(key *entity.Key) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: key.Encode()},
		attrSK: &types.AttributeValueMemberS{Value: key.Kind},
	}
}

// toItem encodes rec under a complete key. Index-map attributes whose macros
// cannot all be resolved are left out.
func toItem(key *entity.Key, rec *datastore.Record, idxMap map[string]string) (map[string]types.AttributeValue, error) {
	h := itemHeader{
		PK:         key.Encode(),
		SK:         key.Kind,
		EntityType: key.Kind,
		KeyID:      key.ID,
		KeyName:    key.Name,
		Version:    rec.Version,
	}
	if key.Parent != nil {
		h.ParentKey = key.Parent.Encode()
	}
	item, err := attributevalue.MarshalMap(h)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal item header: %w", err)
	}

	props, err := entity.NormalizeProperties(rec.Properties)
	if err != nil {
		return nil, err
	}
	av, err := attributevalue.Marshal(map[string]any(props))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal properties of %s: %w", key.Encode(), err)
	}
	item[attrProps] = av

	for attr, tmpl := range expandIndexMap(idxMap, key, props) {
		if _, reserved := item[attr]; reserved {
			continue
		}
		item[attr] = &types.AttributeValueMemberS{Value: tmpl}
	}
	return item, nil
}

// expandIndexMap resolves {prop} macros against the record. {ID}, {Name} and
// {Kind} refer to the key when no property of that name exists.
func expandIndexMap(idxMap map[string]string, key *entity.Key, props entity.Properties) map[string]string {
	if len(idxMap) == 0 {
		return nil
	}
	lookup := func(name string) (string, bool) {
		if v, ok := props[name]; ok && v != nil {
			s, err := cast.ToStringE(v)
			return s, err == nil
		}
		switch name {
		case "ID":
			return strconv.FormatInt(key.ID, 10), key.ID != 0
		case "Name":
			return key.Name, key.Name != ""
		case "Kind":
			return key.Kind, true
		}
		return "", false
	}

	out := make(map[string]string, len(idxMap))
	attrs := make([]string, 0, len(idxMap))
	for attr := range idxMap {
		attrs = append(attrs, attr)
	}
	sort.Strings(attrs)
	for _, attr := range attrs {
		if v, ok := registry.Expand(idxMap[attr], lookup); ok {
			out[attr] = v
		}
	}
	return out
}

// fromItem decodes a stored item. With headerOnly set the Props attribute is
// ignored, which suits keys-only projections.
func fromItem(item map[string]types.AttributeValue, headerOnly bool) (*datastore.Record, error) {
	var h itemHeader
	if err := attributevalue.UnmarshalMap(item, &h); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item header: %w", err)
	}
	key, err := entity.DecodeKey(h.PK)
	if err != nil {
		return nil, fmt.Errorf("corrupt item key %q: %w", h.PK, err)
	}
	rec := &datastore.Record{Key: key, Version: h.Version}
	if headerOnly {
		return rec, nil
	}

	rec.Properties = entity.Properties{}
	if m, ok := item[attrProps].(*types.AttributeValueMemberM); ok {
		for k, v := range m.Value {
			val, err := fromAttributeValue(v)
			if err != nil {
				return nil, fmt.Errorf("property %s of %s: %w", k, h.PK, err)
			}
			rec.Properties[k] = val
		}
	}
	return rec, nil
}

// fromAttributeValue maps DynamoDB values onto normalized property values:
// integral numbers become int64, other numbers float64.
func fromAttributeValue(av types.AttributeValue) (any, error) {
	switch tv := av.(type) {
	case *types.AttributeValueMemberS:
		return tv.Value, nil
	case *types.AttributeValueMemberN:
		return parseNumber(tv.Value)
	case *types.AttributeValueMemberBOOL:
		return tv.Value, nil
	case *types.AttributeValueMemberNULL:
		return nil, nil
	case *types.AttributeValueMemberL:
		out := make([]any, len(tv.Value))
		for i, inner := range tv.Value {
			v, err := fromAttributeValue(inner)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case *types.AttributeValueMemberM:
		out := make(map[string]any, len(tv.Value))
		for k, inner := range tv.Value {
			v, err := fromAttributeValue(inner)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	case *types.AttributeValueMemberSS:
		out := make([]any, len(tv.Value))
		for i, s := range tv.Value {
			out[i] = s
		}
		return out, nil
	case *types.AttributeValueMemberNS:
		out := make([]any, len(tv.Value))
		for i, s := range tv.Value {
			n, err := parseNumber(s)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported attribute value %T", av)
}

func parseNumber(s string) (any, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return f, nil
}

// toAttributeValue encodes one normalized value for use in expressions.
func toAttributeValue(v any) (types.AttributeValue, error) {
	nv, err := entity.NormalizeValue(v)
	if err != nil {
		return nil, err
	}
	return attributevalue.Marshal(nv)
}
