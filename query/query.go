// Package query implements the small expression language the inspector
// uses to filter entities by state type, e.g.
//
//	IS(Counter)
//	IN(Counter, Label) & !IS(Hidden)
//	ALL()
//
// Expressions combine with & and |, negate with !, and group with
// parentheses.
package query

import (
	"sort"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/rotisserie/eris"

	"github.com/loomui/loom/state"
	"github.com/loomui/loom/types"
)

var ErrEmptyQuery = eris.New("query must not be empty")

type operator int

const (
	opAnd operator = iota
	opOr
)

var operatorMap = map[string]operator{"&": opAnd, "|": opOr}

// Capture tells the parser how to turn an operator token into the
// operator type.
func (o *operator) Capture(s []string) error {
	if len(s) == 0 {
		return eris.New("invalid operator")
	}
	op, ok := operatorMap[s[0]]
	if !ok {
		return eris.New("invalid operator")
	}
	*o = op
	return nil
}

type typeName struct {
	Name string `parser:"@Ident"`
}

type allExpr struct{}

func (a *allExpr) Capture(values []string) error {
	if values[0] == "ALL" && values[1] == "(" && values[2] == ")" {
		*a = allExpr{}
	}
	return nil
}

type notExpr struct {
	Sub *value `parser:"\"!\" @@"`
}

type isExpr struct {
	Type *typeName `parser:"\"IS\" \"(\" @@ \")\""`
}

type inExpr struct {
	Types []*typeName `parser:"\"IN\" \"(\" (@@ \",\")* @@ \")\""`
}

type value struct {
	All   *allExpr `parser:"@(\"ALL\" \"(\" \")\")"`
	Is    *isExpr  `parser:"| @@"`
	In    *inExpr  `parser:"| @@"`
	Not   *notExpr `parser:"| @@"`
	Group *term    `parser:"| \"(\" @@ \")\""`
}

type factor struct {
	Base *value `parser:"@@"`
}

type opFactor struct {
	Operator operator `parser:"@(\"&\" | \"|\")"`
	Factor   *factor  `parser:"@@"`
}

type term struct {
	Left  *factor     `parser:"@@"`
	Right []*opFactor `parser:"@@*"`
}

var parser = participle.MustBuild[term]()

// Predicate decides whether an entity with the given state type name
// matches the query.
type Predicate func(typeName string) bool

// Parse compiles q into a predicate over entity type names.
func Parse(q string) (Predicate, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, ErrEmptyQuery
	}
	ast, err := parser.ParseString("", q)
	if err != nil {
		return nil, eris.Wrap(err, "failed to parse query")
	}
	return termToPredicate(ast)
}

func valueToPredicate(v *value) (Predicate, error) {
	switch {
	case v.Not != nil:
		sub, err := valueToPredicate(v.Not.Sub)
		if err != nil {
			return nil, err
		}
		return func(name string) bool { return !sub(name) }, nil
	case v.Is != nil:
		want := v.Is.Type.Name
		return func(name string) bool { return name == want }, nil
	case v.In != nil:
		if len(v.In.Types) == 0 {
			return nil, eris.New("IN cannot have zero parameters")
		}
		set := make(map[string]struct{}, len(v.In.Types))
		for _, t := range v.In.Types {
			set[t.Name] = struct{}{}
		}
		return func(name string) bool {
			_, ok := set[name]
			return ok
		}, nil
	case v.All != nil:
		return func(string) bool { return true }, nil
	case v.Group != nil:
		return termToPredicate(v.Group)
	default:
		return nil, eris.New("unknown query expression")
	}
}

func termToPredicate(t *term) (Predicate, error) {
	acc, err := valueToPredicate(t.Left.Base)
	if err != nil {
		return nil, err
	}
	for _, r := range t.Right {
		rhs, err := valueToPredicate(r.Factor.Base)
		if err != nil {
			return nil, err
		}
		lhs := acc
		switch r.Operator {
		case opAnd:
			acc = func(name string) bool { return lhs(name) && rhs(name) }
		case opOr:
			acc = func(name string) bool { return lhs(name) || rhs(name) }
		}
	}
	return acc, nil
}

// Eval runs q against the store and returns the matching entity ids in
// ascending order.
func Eval(q string, store *state.Store) ([]types.EntityID, error) {
	pred, err := Parse(q)
	if err != nil {
		return nil, err
	}
	var out []types.EntityID
	store.Each(func(id types.EntityID, name string, _ any) {
		if pred(name) {
			out = append(out, id)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
