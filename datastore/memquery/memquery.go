/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package memquery evaluates criteria in process. Backends without a native
// query language (the mock and badger stores) scan records and filter them here.
package memquery

import (
	"regexp"
	"sort"
	"strings"

	"github.com/suparena/persistkit/criteria"
	"github.com/suparena/persistkit/datastore"
	"github.com/suparena/persistkit/entity"
	"github.com/suparena/persistkit/errors"
)

// Predicate reports whether a record matches.
type Predicate func(rec *datastore.Record) bool

// Query is the compiled, backend-native form of a criteria.Spec.
type Query struct {
	Kind   string
	Parent *entity.Key
	// Match is nil when every record of the kind matches.
	Match  Predicate
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
	q := &Query{
		Kind:   spec.Kind,
		Parent: spec.Parent,
		Orders: spec.Orders,
		Limit:  spec.Limit,
		Offset: spec.Offset,
	}
	if len(spec.Expressions) > 0 {
		preds, err := criteria.AcceptAll[Predicate](spec.Expressions, compiler{})
		if err != nil {
			return nil, err
		}
		q.Match = all(preds)
	}
	return q, nil
}

// Matches applies kind, parent scope and predicate to one record.
func (q *Query) Matches(rec *datastore.Record) bool {
	if rec.Key == nil || rec.Key.Kind != q.Kind {
		return false
	}
	if q.Parent != nil && !rec.Key.Parent.Equal(q.Parent) {
		return false
	}
	return q.Match == nil || q.Match(rec)
}

// Unordered reports whether results come back in key order without sorting.
func (q *Query) Unordered() bool {
	return len(q.Orders) == 0
}

// Apply filters, sorts and windows records. The input slice is not modified.
func (q *Query) Apply(records []datastore.Record) []datastore.Record {
	out := make([]datastore.Record, 0, len(records))
	for i := range records {
		if q.Matches(&records[i]) {
			out = append(out, records[i])
		}
	}
	q.Sort(out)
	lo, hi := criteria.Spec{Limit: q.Limit, Offset: q.Offset}.Window(len(out))
	return out[lo:hi]
}

// Sort orders records by the order rules, then by encoded key.
func (q *Query) Sort(records []datastore.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := &records[i], &records[j]
		for _, o := range q.Orders {
			c := order(lookup(a.Properties, o.Property), lookup(b.Properties, o.Property))
			if c == 0 {
				continue
			}
			if o.Direction == criteria.Desc {
				return c > 0
			}
			return c < 0
		}
		return a.Key.Encode() < b.Key.Encode()
	})
}

func all(preds []Predicate) Predicate {
	return func(rec *datastore.Record) bool {
		for _, p := range preds {
			if !p(rec) {
				return false
			}
		}
		return true
	}
}

func anyOf(preds []Predicate) Predicate {
	return func(rec *datastore.Record) bool {
		for _, p := range preds {
			if p(rec) {
				return true
			}
		}
		return false
	}
}

// compiler turns expressions into predicates. Absent properties only match NullExpr.
type compiler struct{}

func (compiler) Simple(e *criteria.SimpleExpr) (Predicate, error) {
	want, err := entity.NormalizeValue(e.Value)
	if err != nil {
		return nil, err
	}
	return func(rec *datastore.Record) bool {
		got, ok := present(rec, e.Property)
		if !ok {
			return want == nil && e.Op == criteria.OpEq
		}
		switch e.Op {
		case criteria.OpEq:
			return equal(got, want)
		case criteria.OpNe:
			return !equal(got, want)
		}
		c, ok := compare(got, want)
		if !ok {
			return false
		}
		switch e.Op {
		case criteria.OpLt:
			return c < 0
		case criteria.OpLe:
			return c <= 0
		case criteria.OpGt:
			return c > 0
		case criteria.OpGe:
			return c >= 0
		}
		return false
	}, nil
}

func (compiler) Between(e *criteria.BetweenExpr) (Predicate, error) {
	low, err := entity.NormalizeValue(e.Low)
	if err != nil {
		return nil, err
	}
	high, err := entity.NormalizeValue(e.High)
	if err != nil {
		return nil, err
	}
	return func(rec *datastore.Record) bool {
		got, ok := present(rec, e.Property)
		if !ok {
			return false
		}
		cl, okl := compare(got, low)
		ch, okh := compare(got, high)
		if !okl || !okh {
			return false
		}
		return lowOK(cl, e.LowBound) && highOK(ch, e.HighBound)
	}, nil
}

func lowOK(c int, b criteria.Bound) bool {
	if b == criteria.Hard {
		return c > 0
	}
	return c >= 0
}

func highOK(c int, b criteria.Bound) bool {
	if b == criteria.Hard {
		return c < 0
	}
	return c <= 0
}

func (compiler) In(e *criteria.InExpr) (Predicate, error) {
	values := make([]any, 0, len(e.Values))
	for _, v := range e.Values {
		nv, err := entity.NormalizeValue(v)
		if err != nil {
			return nil, err
		}
		values = append(values, nv)
	}
	return func(rec *datastore.Record) bool {
		got, ok := present(rec, e.Property)
		if !ok {
			return false
		}
		found := false
		for _, v := range values {
			if equal(got, v) {
				found = true
				break
			}
		}
		return found != e.Negated
	}, nil
}

func (compiler) IDIn(e *criteria.IDInExpr) (Predicate, error) {
	ids := make(map[int64]struct{}, len(e.IDs))
	for _, id := range e.IDs {
		ids[id] = struct{}{}
	}
	return func(rec *datastore.Record) bool {
		if rec.Key.Name != "" {
			return false
		}
		_, ok := ids[rec.Key.ID]
		return ok
	}, nil
}

func (compiler) NameIn(e *criteria.NameInExpr) (Predicate, error) {
	names := make(map[string]struct{}, len(e.Names))
	for _, n := range e.Names {
		names[n] = struct{}{}
	}
	return func(rec *datastore.Record) bool {
		if rec.Key.Name == "" {
			return false
		}
		_, ok := names[rec.Key.Name]
		return ok
	}, nil
}

func (compiler) Like(e *criteria.LikeExpr) (Predicate, error) {
	re, err := LikePattern(e.Pattern)
	if err != nil {
		return nil, err
	}
	return func(rec *datastore.Record) bool {
		got, ok := present(rec, e.Property)
		if !ok {
			return false
		}
		s, ok := got.(string)
		return ok && re.MatchString(s)
	}, nil
}

func (compiler) Null(e *criteria.NullExpr) (Predicate, error) {
	return func(rec *datastore.Record) bool {
		_, ok := present(rec, e.Property)
		return ok != e.IsNull
	}, nil
}

func (c compiler) Logical(e *criteria.LogicalExpr) (Predicate, error) {
	preds, err := criteria.AcceptAll[Predicate](e.Children, c)
	if err != nil {
		return nil, err
	}
	if e.Op == criteria.Or {
		return anyOf(preds), nil
	}
	return all(preds), nil
}

func (compiler) ReferenceID(e *criteria.ReferenceIDExpr) (Predicate, error) {
	return referenceTo(e.Property, e.Key()), nil
}

func (compiler) ReferenceName(e *criteria.ReferenceNameExpr) (Predicate, error) {
	return referenceTo(e.Property, e.Key()), nil
}

func referenceTo(property string, key *entity.Key) Predicate {
	want := key.Encode()
	return func(rec *datastore.Record) bool {
		got, ok := present(rec, property)
		return ok && got == want
	}
}

// LikePattern compiles a % / _ pattern into an anchored regular expression.
func LikePattern(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString(`(?s)^`)
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(`.*`)
		case '_':
			b.WriteString(`.`)
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString(`$`)
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, errors.NewInvalidArgumentError("pattern", err.Error())
	}
	return re, nil
}
