/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package mongodb

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/suparena/persistkit/criteria"
	"github.com/suparena/persistkit/datastore/memquery"
	"github.com/suparena/persistkit/entity"
	"github.com/suparena/persistkit/errors"
)

// Query is a compiled criteria.Spec.
type Query struct {
	Kind   string
	Filter bson.D
	// Sort always ends with _id so ties come back in key order.
	Sort   bson.D
	Limit  int
	Offset int
}

// Builder implements criteria.Builder[*Query].
type Builder struct{}

func (Builder) Build(spec criteria.Spec) (*Query, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	filter := bson.D{{Key: fieldKind, Value: spec.Kind}}
	if spec.Parent != nil {
		filter = append(filter, bson.E{Key: fieldParent, Value: spec.Parent.Encode()})
	}
	if len(spec.Expressions) > 0 {
		docs, err := criteria.AcceptAll[bson.D](spec.Expressions, compiler{})
		if err != nil {
			return nil, err
		}
		filter = append(filter, bson.E{Key: "$and", Value: toArray(docs)})
	}

	sort := make(bson.D, 0, len(spec.Orders)+1)
	for _, o := range spec.Orders {
		dir := 1
		if o.Direction == criteria.Desc {
			dir = -1
		}
		sort = append(sort, bson.E{Key: propPath(o.Property), Value: dir})
	}
	sort = append(sort, bson.E{Key: fieldID, Value: 1})

	return &Query{
		Kind:   spec.Kind,
		Filter: filter,
		Sort:   sort,
		Limit:  spec.Limit,
		Offset: spec.Offset,
	}, nil
}

func propPath(property string) string {
	return fieldProps + "." + property
}

func toArray(docs []bson.D) bson.A {
	out := make(bson.A, len(docs))
	for i, d := range docs {
		out[i] = d
	}
	return out
}

func normalized(v any) (any, error) {
	return entity.NormalizeValue(v)
}

// compiler translates expressions into filter documents. Absent properties
// only match null checks, so negative operators also require $exists.
type compiler struct{}

var operators = map[criteria.Operator]string{
	criteria.OpEq: "$eq",
	criteria.OpNe: "$ne",
	criteria.OpLt: "$lt",
	criteria.OpLe: "$lte",
	criteria.OpGt: "$gt",
	criteria.OpGe: "$gte",
}

func (c compiler) Simple(e *criteria.SimpleExpr) (bson.D, error) {
	if e.Value == nil {
		switch e.Op {
		case criteria.OpEq:
			return c.Null(&criteria.NullExpr{Property: e.Property, IsNull: true})
		case criteria.OpNe:
			return c.Null(&criteria.NullExpr{Property: e.Property, IsNull: false})
		}
		return nil, errors.NewInvalidArgumentError("value", fmt.Sprintf("cannot compare %s with nil", e.Op))
	}
	op, ok := operators[e.Op]
	if !ok {
		return nil, errors.NewInvalidArgumentError("operator", e.Op.String())
	}
	v, err := normalized(e.Value)
	if err != nil {
		return nil, err
	}
	cond := bson.D{{Key: op, Value: v}}
	if e.Op == criteria.OpNe {
		cond = bson.D{{Key: "$exists", Value: true}, {Key: "$ne", Value: v}}
	}
	return bson.D{{Key: propPath(e.Property), Value: cond}}, nil
}

func (compiler) Between(e *criteria.BetweenExpr) (bson.D, error) {
	lo, err := normalized(e.Low)
	if err != nil {
		return nil, err
	}
	hi, err := normalized(e.High)
	if err != nil {
		return nil, err
	}
	lowOp, highOp := "$gte", "$lte"
	if e.LowBound == criteria.Hard {
		lowOp = "$gt"
	}
	if e.HighBound == criteria.Hard {
		highOp = "$lt"
	}
	return bson.D{{Key: propPath(e.Property), Value: bson.D{{Key: lowOp, Value: lo}, {Key: highOp, Value: hi}}}}, nil
}

func (compiler) In(e *criteria.InExpr) (bson.D, error) {
	values := make(bson.A, 0, len(e.Values))
	for _, v := range e.Values {
		nv, err := normalized(v)
		if err != nil {
			return nil, err
		}
		values = append(values, nv)
	}
	if e.Negated {
		return bson.D{{Key: propPath(e.Property), Value: bson.D{{Key: "$exists", Value: true}, {Key: "$nin", Value: values}}}}, nil
	}
	return bson.D{{Key: propPath(e.Property), Value: bson.D{{Key: "$in", Value: values}}}}, nil
}

func (compiler) IDIn(e *criteria.IDInExpr) (bson.D, error) {
	ids := make(bson.A, len(e.IDs))
	for i, id := range e.IDs {
		ids[i] = id
	}
	return bson.D{{Key: fieldKeyID, Value: bson.D{{Key: "$in", Value: ids}}}}, nil
}

func (compiler) NameIn(e *criteria.NameInExpr) (bson.D, error) {
	names := make(bson.A, len(e.Names))
	for i, n := range e.Names {
		names[i] = n
	}
	return bson.D{{Key: fieldKeyName, Value: bson.D{{Key: "$in", Value: names}}}}, nil
}

func (compiler) Like(e *criteria.LikeExpr) (bson.D, error) {
	re, err := memquery.LikePattern(e.Pattern)
	if err != nil {
		return nil, err
	}
	return bson.D{{Key: propPath(e.Property), Value: bson.D{{Key: "$regex", Value: re.String()}}}}, nil
}

func (compiler) Null(e *criteria.NullExpr) (bson.D, error) {
	if e.IsNull {
		return bson.D{{Key: propPath(e.Property), Value: nil}}, nil
	}
	return bson.D{{Key: propPath(e.Property), Value: bson.D{{Key: "$ne", Value: nil}}}}, nil
}

func (c compiler) Logical(e *criteria.LogicalExpr) (bson.D, error) {
	docs, err := criteria.AcceptAll[bson.D](e.Children, c)
	if err != nil {
		return nil, err
	}
	op := "$and"
	if e.Op == criteria.Or {
		op = "$or"
	}
	return bson.D{{Key: op, Value: toArray(docs)}}, nil
}

func (compiler) ReferenceID(e *criteria.ReferenceIDExpr) (bson.D, error) {
	return bson.D{{Key: propPath(e.Property), Value: e.Key().Encode()}}, nil
}

func (compiler) ReferenceName(e *criteria.ReferenceNameExpr) (bson.D, error) {
	return bson.D{{Key: propPath(e.Property), Value: e.Key().Encode()}}, nil
}
