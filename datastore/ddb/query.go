/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/suparena/persistkit/criteria"
	"github.com/suparena/persistkit/entity"
	"github.com/suparena/persistkit/errors"
)

// Query is a compiled criteria.Spec. The key condition on the kind index is
// added by the store; Filter holds everything else.
type Query struct {
	Kind   string
	Parent *entity.Key

	// Filter is empty when every item of the kind matches.
	Filter string
	Names  map[string]string
	Values map[string]types.AttributeValue

	// Orders, Limit and Offset are applied client-side after the scan.
	Orders []criteria.OrderRule
	Limit  int
	Offset int
}

// Builder implements criteria.Builder[*Query].
type Builder struct{}

func (Builder) Build(spec criteria.Spec) (*Query, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	c := newFilterCompiler()

	parts, err := criteria.AcceptAll[string](spec.Expressions, c)
	if err != nil {
		return nil, err
	}
	if spec.Parent != nil {
		parts = append(parts, c.name(attrParentKey)+" = "+c.bind(&types.AttributeValueMemberS{Value: spec.Parent.Encode()}))
	}

	q := &Query{
		Kind:   spec.Kind,
		Parent: spec.Parent,
		Orders: spec.Orders,
		Limit:  spec.Limit,
		Offset: spec.Offset,
	}
	if len(parts) > 0 {
		q.Filter = strings.Join(parts, " AND ")
		q.Names = c.names
		q.Values = c.values
	}
	return q, nil
}

// filterCompiler allocates #n / :v placeholders while translating expressions
// into a FilterExpression.
type filterCompiler struct {
	names    map[string]string
	values   map[string]types.AttributeValue
	byName   map[string]string
	nextName int
}

func newFilterCompiler() *filterCompiler {
	return &filterCompiler{
		names:  make(map[string]string),
		values: make(map[string]types.AttributeValue),
		byName: make(map[string]string),
	}
}

func (c *filterCompiler) name(attr string) string {
	if ph, ok := c.byName[attr]; ok {
		return ph
	}
	ph := fmt.Sprintf("#n%d", c.nextName)
	c.nextName++
	c.byName[attr] = ph
	c.names[ph] = attr
	return ph
}

func (c *filterCompiler) bind(av types.AttributeValue) string {
	ph := fmt.Sprintf(":v%d", len(c.values))
	c.values[ph] = av
	return ph
}

func (c *filterCompiler) value(v any) (string, error) {
	av, err := toAttributeValue(v)
	if err != nil {
		return "", err
	}
	return c.bind(av), nil
}

// path addresses a property inside the Props map; dots descend into nested maps.
func (c *filterCompiler) path(property string) (string, error) {
	if property == "" {
		return "", errors.NewInvalidArgumentError("property", "must not be empty")
	}
	segments := strings.Split(property, ".")
	out := make([]string, 0, len(segments)+1)
	out = append(out, c.name(attrProps))
	for _, s := range segments {
		if s == "" {
			return "", errors.NewInvalidArgumentError("property", fmt.Sprintf("invalid path %q", property))
		}
		out = append(out, c.name(s))
	}
	return strings.Join(out, "."), nil
}

// present guards comparisons so absent properties never match.
func present(path, cond string) string {
	return "(attribute_exists(" + path + ") AND " + cond + ")"
}

func (c *filterCompiler) Simple(e *criteria.SimpleExpr) (string, error) {
	p, err := c.path(e.Property)
	if err != nil {
		return "", err
	}
	if e.Value == nil {
		switch e.Op {
		case criteria.OpEq:
			return c.Null(&criteria.NullExpr{Property: e.Property, IsNull: true})
		case criteria.OpNe:
			return c.Null(&criteria.NullExpr{Property: e.Property, IsNull: false})
		}
		return "", errors.NewInvalidArgumentError("value", fmt.Sprintf("cannot compare %s with nil", e.Op))
	}
	v, err := c.value(e.Value)
	if err != nil {
		return "", err
	}
	if e.Op == criteria.OpNe {
		return present(p, p+" <> "+v), nil
	}
	return p + " " + e.Op.String() + " " + v, nil
}

func (c *filterCompiler) Between(e *criteria.BetweenExpr) (string, error) {
	p, err := c.path(e.Property)
	if err != nil {
		return "", err
	}
	lo, err := c.value(e.Low)
	if err != nil {
		return "", err
	}
	hi, err := c.value(e.High)
	if err != nil {
		return "", err
	}
	lowOp, highOp := ">=", "<="
	if e.LowBound == criteria.Hard {
		lowOp = ">"
	}
	if e.HighBound == criteria.Hard {
		highOp = "<"
	}
	return "(" + p + " " + lowOp + " " + lo + " AND " + p + " " + highOp + " " + hi + ")", nil
}

func (c *filterCompiler) In(e *criteria.InExpr) (string, error) {
	if len(e.Values) == 0 {
		return "", errors.NewInvalidArgumentError("values", "IN list must not be empty")
	}
	p, err := c.path(e.Property)
	if err != nil {
		return "", err
	}
	phs := make([]string, 0, len(e.Values))
	for _, v := range e.Values {
		ph, err := c.value(v)
		if err != nil {
			return "", err
		}
		phs = append(phs, ph)
	}
	in := p + " IN (" + strings.Join(phs, ", ") + ")"
	if e.Negated {
		return present(p, "NOT ("+in+")"), nil
	}
	return in, nil
}

func (c *filterCompiler) IDIn(e *criteria.IDInExpr) (string, error) {
	if len(e.IDs) == 0 {
		return "", errors.NewInvalidArgumentError("ids", "IN list must not be empty")
	}
	phs := make([]string, 0, len(e.IDs))
	for _, id := range e.IDs {
		phs = append(phs, c.bind(&types.AttributeValueMemberN{Value: fmt.Sprint(id)}))
	}
	return c.name(attrKeyID) + " IN (" + strings.Join(phs, ", ") + ")", nil
}

func (c *filterCompiler) NameIn(e *criteria.NameInExpr) (string, error) {
	if len(e.Names) == 0 {
		return "", errors.NewInvalidArgumentError("names", "IN list must not be empty")
	}
	phs := make([]string, 0, len(e.Names))
	for _, n := range e.Names {
		phs = append(phs, c.bind(&types.AttributeValueMemberS{Value: n}))
	}
	return c.name(attrKeyName) + " IN (" + strings.Join(phs, ", ") + ")", nil
}

// Like supports the patterns DynamoDB can express: an exact value, a prefix
// (abc%) and a substring (%abc%).
func (c *filterCompiler) Like(e *criteria.LikeExpr) (string, error) {
	p, err := c.path(e.Property)
	if err != nil {
		return "", err
	}
	pat := e.Pattern
	if strings.Contains(pat, "_") {
		return "", errors.NewInvalidArgumentError("pattern", fmt.Sprintf("%q: single-character wildcard not supported", pat))
	}
	inner := strings.Trim(pat, "%")
	if strings.Contains(inner, "%") {
		return "", errors.NewInvalidArgumentError("pattern", fmt.Sprintf("%q: inner wildcard not supported", pat))
	}
	lead, trail := strings.HasPrefix(pat, "%"), strings.HasSuffix(pat, "%")
	if inner == "" && (lead || trail) {
		return "attribute_type(" + p + ", " + c.bind(&types.AttributeValueMemberS{Value: "S"}) + ")", nil
	}
	v := c.bind(&types.AttributeValueMemberS{Value: inner})
	switch {
	case !lead && !trail:
		return p + " = " + v, nil
	case !lead && trail:
		return "begins_with(" + p + ", " + v + ")", nil
	case lead && trail:
		return "contains(" + p + ", " + v + ")", nil
	}
	return "", errors.NewInvalidArgumentError("pattern", fmt.Sprintf("%q: suffix match not supported", pat))
}

func (c *filterCompiler) Null(e *criteria.NullExpr) (string, error) {
	p, err := c.path(e.Property)
	if err != nil {
		return "", err
	}
	nullType := c.bind(&types.AttributeValueMemberS{Value: "NULL"})
	if e.IsNull {
		return "(attribute_not_exists(" + p + ") OR attribute_type(" + p + ", " + nullType + "))", nil
	}
	return "(attribute_exists(" + p + ") AND NOT attribute_type(" + p + ", " + nullType + "))", nil
}

func (c *filterCompiler) Logical(e *criteria.LogicalExpr) (string, error) {
	parts, err := criteria.AcceptAll[string](e.Children, c)
	if err != nil {
		return "", err
	}
	return "(" + strings.Join(parts, " "+e.Op.String()+" ") + ")", nil
}

func (c *filterCompiler) ReferenceID(e *criteria.ReferenceIDExpr) (string, error) {
	return c.reference(e.Property, e.Key())
}

func (c *filterCompiler) ReferenceName(e *criteria.ReferenceNameExpr) (string, error) {
	return c.reference(e.Property, e.Key())
}

func (c *filterCompiler) reference(property string, key *entity.Key) (string, error) {
	p, err := c.path(property)
	if err != nil {
		return "", err
	}
	return p + " = " + c.bind(&types.AttributeValueMemberS{Value: key.Encode()}), nil
}
