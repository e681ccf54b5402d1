/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package criteria

import (
	"fmt"

	"github.com/suparena/persistkit/entity"
)

// Expression is one immutable predicate node. The set of variants is closed;
// backends translate them through ExpressionBuilder and Accept.
type Expression interface {
	// PropertyValue returns the primary comparison value, or nil when the
	// variant has none.
	PropertyValue() any
	isExpression()
}

// Operator is a binary comparison of a SimpleExpr.
type Operator int

// Comparison operators.
const (
	OpEq Operator = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

// String returns the SQL-style symbol of the operator.
func (o Operator) String() string {
	switch o {
	case OpEq:
		return "="
	case OpNe:
		return "<>"
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

// Bound selects inclusive (Soft) or exclusive (Hard) comparison at one edge of a range.
type Bound int

const (
	// Soft includes the bound value.
	Soft Bound = iota
	// Hard excludes the bound value.
	Hard
)

// LogicalOp combines child expressions.
type LogicalOp int

const (
	And LogicalOp = iota
	Or
)

// String returns AND or OR.
func (o LogicalOp) String() string {
	if o == Or {
		return "OR"
	}
	return "AND"
}

// SimpleExpr compares a property with a single value. A nil value with OpEq
// or OpNe is a null check.
type SimpleExpr struct {
	Property string
	Op       Operator
	Value    any
}

// BetweenExpr matches values between Low and High. Each edge is inclusive
// when Soft and exclusive when Hard.
type BetweenExpr struct {
	Property  string
	Low       any
	High      any
	LowBound  Bound
	HighBound Bound
}

// InExpr matches a property equal to any of Values, or to none of them when
// Negated. Absent properties never match NotIn.
type InExpr struct {
	Property string
	Values   []any
	Negated  bool
}

// IDInExpr matches entities whose numeric key id is one of IDs.
type IDInExpr struct {
	IDs []int64
}

// NameInExpr matches entities whose key name is one of Names.
type NameInExpr struct {
	Names []string
}

// LikeExpr matches a string property against a pattern where % matches any run
// of characters and _ matches exactly one.
type LikeExpr struct {
	Property string
	Pattern  string
}

// NullExpr matches a property that is null or absent, or the opposite when
// IsNull is false.
type NullExpr struct {
	Property string
	IsNull   bool
}

// LogicalExpr combines Children with AND or OR. It needs at least one child.
type LogicalExpr struct {
	Op       LogicalOp
	Children []Expression
}

// ReferenceIDExpr matches a reference property pointing at kind/id.
type ReferenceIDExpr struct {
	Property string
	Kind     string
	ID       int64
}

// ReferenceNameExpr matches a reference property pointing at kind/name.
type ReferenceNameExpr struct {
	Property string
	Kind     string
	Name     string
}

func (e *SimpleExpr) PropertyValue() any        { return e.Value }
func (e *BetweenExpr) PropertyValue() any       { return e.Low }
func (e *InExpr) PropertyValue() any            { return nil }
func (e *IDInExpr) PropertyValue() any          { return nil }
func (e *NameInExpr) PropertyValue() any        { return nil }
func (e *LikeExpr) PropertyValue() any          { return e.Pattern }
func (e *NullExpr) PropertyValue() any          { return nil }
func (e *LogicalExpr) PropertyValue() any       { return nil }
func (e *ReferenceIDExpr) PropertyValue() any   { return e.Key().Encode() }
func (e *ReferenceNameExpr) PropertyValue() any { return e.Key().Encode() }

func (*SimpleExpr) isExpression()        {}
func (*BetweenExpr) isExpression()       {}
func (*InExpr) isExpression()            {}
func (*IDInExpr) isExpression()          {}
func (*NameInExpr) isExpression()        {}
func (*LikeExpr) isExpression()          {}
func (*NullExpr) isExpression()          {}
func (*LogicalExpr) isExpression()       {}
func (*ReferenceIDExpr) isExpression()   {}
func (*ReferenceNameExpr) isExpression() {}

// Key returns the referenced key.
func (e *ReferenceIDExpr) Key() *entity.Key {
	return entity.NewIDKey(e.Kind, e.ID, nil)
}

// Key returns the referenced key.
func (e *ReferenceNameExpr) Key() *entity.Key {
	return entity.NewNameKey(e.Kind, e.Name, nil)
}

// Eq matches property == value.
func Eq(property string, value any) Expression { return &SimpleExpr{property, OpEq, value} }

// Ne matches property != value. Absent properties do not match.
func Ne(property string, value any) Expression { return &SimpleExpr{property, OpNe, value} }

// Lt matches property < value.
func Lt(property string, value any) Expression { return &SimpleExpr{property, OpLt, value} }

// Le matches property <= value.
func Le(property string, value any) Expression { return &SimpleExpr{property, OpLe, value} }

// Gt matches property > value.
func Gt(property string, value any) Expression { return &SimpleExpr{property, OpGt, value} }

// Ge matches property >= value.
func Ge(property string, value any) Expression { return &SimpleExpr{property, OpGe, value} }

// Between matches low..high with independent inclusive/exclusive edges.
func Between(property string, low, high any, lowBound, highBound Bound) Expression {
	return &BetweenExpr{Property: property, Low: low, High: high, LowBound: lowBound, HighBound: highBound}
}

// In matches a property equal to one of values.
func In(property string, values ...any) Expression {
	return &InExpr{Property: property, Values: values}
}

// NotIn matches a present property equal to none of values.
func NotIn(property string, values ...any) Expression {
	return &InExpr{Property: property, Values: values, Negated: true}
}

// IDIn matches entities by numeric key id.
func IDIn(ids ...int64) Expression {
	return &IDInExpr{IDs: ids}
}

// NameIn matches entities by key name.
func NameIn(names ...string) Expression {
	return &NameInExpr{Names: names}
}

// Like matches a string property against a pattern; see LikeExpr.
func Like(property, pattern string) Expression {
	return &LikeExpr{Property: property, Pattern: pattern}
}

// IsNull matches a null or absent property.
func IsNull(property string) Expression {
	return &NullExpr{Property: property, IsNull: true}
}

// IsNotNull matches a property holding a non-null value.
func IsNotNull(property string) Expression {
	return &NullExpr{Property: property, IsNull: false}
}

// AllOf matches when every child matches.
func AllOf(children ...Expression) Expression {
	return &LogicalExpr{Op: And, Children: children}
}

// AnyOf matches when at least one child matches.
func AnyOf(children ...Expression) Expression {
	return &LogicalExpr{Op: Or, Children: children}
}

// ReferenceID matches a reference property pointing at the entity kind/id.
func ReferenceID(property, kind string, id int64) Expression {
	return &ReferenceIDExpr{Property: property, Kind: kind, ID: id}
}

// ReferenceName matches a reference property pointing at the entity kind/name.
func ReferenceName(property, kind, name string) Expression {
	return &ReferenceNameExpr{Property: property, Kind: kind, Name: name}
}
