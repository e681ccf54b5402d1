/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package criteria

import (
	"fmt"

	"github.com/suparena/persistkit/entity"
	"github.com/suparena/persistkit/errors"
)

// Direction orders results ascending or descending.
type Direction int

const (
	Asc Direction = iota
	Desc
)

func (d Direction) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

// OrderRule sorts by one property; rules apply in listed order, primary first.
type OrderRule struct {
	Property  string
	Direction Direction
}

// Spec is the untyped description of a query handed to a Builder.
type Spec struct {
	Kind        string
	Expressions []Expression
	Orders      []OrderRule
	Parent      *entity.Key
	// Limit of zero means unlimited.
	Limit  int
	Offset int
}

// Validate checks the parts every backend relies on.
func (s Spec) Validate() error {
	if s.Kind == "" {
		return errors.NewInvalidArgumentError("kind", "must not be empty")
	}
	if s.Limit < 0 {
		return errors.NewInvalidArgumentError("limit", "must not be negative")
	}
	if s.Offset < 0 {
		return errors.NewInvalidArgumentError("offset", "must not be negative")
	}
	for i, o := range s.Orders {
		if o.Property == "" {
			return errors.NewInvalidArgumentError(fmt.Sprintf("orders[%d]", i), "property must not be empty")
		}
	}
	for i, e := range s.Expressions {
		if e == nil {
			return errors.NewInvalidArgumentError(fmt.Sprintf("expressions[%d]", i), "must not be nil")
		}
	}
	return nil
}

// Criteria describes a query over entities of type T stored under one kind.
type Criteria[T entity.Entity] struct {
	spec Spec
}

// New starts a criteria for kind.
func New[T entity.Entity](kind string) *Criteria[T] {
	return &Criteria[T]{spec: Spec{Kind: kind}}
}

// Where appends expressions; top-level expressions are AND-ed.
func (c *Criteria[T]) Where(exprs ...Expression) *Criteria[T] {
	c.spec.Expressions = append(c.spec.Expressions, exprs...)
	return c
}

// OrderBy appends a sort rule.
func (c *Criteria[T]) OrderBy(property string, dir Direction) *Criteria[T] {
	c.spec.Orders = append(c.spec.Orders, OrderRule{Property: property, Direction: dir})
	return c
}

// Parent restricts results to direct children of parent.
func (c *Criteria[T]) Parent(parent *entity.Key) *Criteria[T] {
	c.spec.Parent = parent
	return c
}

func (c *Criteria[T]) Limit(n int) *Criteria[T] {
	c.spec.Limit = n
	return c
}

func (c *Criteria[T]) Offset(n int) *Criteria[T] {
	c.spec.Offset = n
	return c
}

func (c *Criteria[T]) Kind() string {
	return c.spec.Kind
}

// Spec returns a copy that later builder calls cannot alter.
func (c *Criteria[T]) Spec() Spec {
	s := c.spec
	s.Expressions = append([]Expression(nil), c.spec.Expressions...)
	s.Orders = append([]OrderRule(nil), c.spec.Orders...)
	return s
}

// Builder lowers a Spec into a backend-native query. Build must not perform I/O.
type Builder[Q any] interface {
	Build(spec Spec) (Q, error)
}

// ExpressionBuilder translates each expression variant into a backend fragment F.
type ExpressionBuilder[F any] interface {
	Simple(e *SimpleExpr) (F, error)
	Between(e *BetweenExpr) (F, error)
	In(e *InExpr) (F, error)
	IDIn(e *IDInExpr) (F, error)
	NameIn(e *NameInExpr) (F, error)
	Like(e *LikeExpr) (F, error)
	Null(e *NullExpr) (F, error)
	Logical(e *LogicalExpr) (F, error)
	ReferenceID(e *ReferenceIDExpr) (F, error)
	ReferenceName(e *ReferenceNameExpr) (F, error)
}

// Accept dispatches e to the matching ExpressionBuilder method.
func Accept[F any](e Expression, b ExpressionBuilder[F]) (F, error) {
	switch v := e.(type) {
	case *SimpleExpr:
		return b.Simple(v)
	case *BetweenExpr:
		return b.Between(v)
	case *InExpr:
		return b.In(v)
	case *IDInExpr:
		return b.IDIn(v)
	case *NameInExpr:
		return b.NameIn(v)
	case *LikeExpr:
		return b.Like(v)
	case *NullExpr:
		return b.Null(v)
	case *LogicalExpr:
		if len(v.Children) == 0 {
			var zero F
			return zero, errors.NewInvalidArgumentError("logical", v.Op.String()+" without children")
		}
		return b.Logical(v)
	case *ReferenceIDExpr:
		return b.ReferenceID(v)
	case *ReferenceNameExpr:
		return b.ReferenceName(v)
	}
	var zero F
	return zero, errors.NewInvalidArgumentError("expression", fmt.Sprintf("unsupported expression %T", e))
}

// AcceptAll translates each expression in order.
func AcceptAll[F any](exprs []Expression, b ExpressionBuilder[F]) ([]F, error) {
	out := make([]F, 0, len(exprs))
	for _, e := range exprs {
		f, err := Accept(e, b)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// Window applies offset and limit to n results and returns the slice bounds.
func (s Spec) Window(n int) (lo, hi int) {
	lo = s.Offset
	if lo > n {
		lo = n
	}
	hi = n
	if s.Limit > 0 && lo+s.Limit < hi {
		hi = lo + s.Limit
	}
	return lo, hi
}
