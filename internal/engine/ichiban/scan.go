package ichiban

import (
	"fmt"
	"sort"
	"strconv"

	pengine "github.com/ichiban/prolog/engine"

	"prologns/internal/term"
)

// scannedTerm receives one variable binding from Solutions.Scan. It
// implements the interpreter's Scanner hook so the raw term and its
// environment are kept until the whole row can be converted together.
type scannedTerm struct {
	raw pengine.Term
	env *pengine.Env
}

// Scan implements prolog.Scanner.
func (s *scannedTerm) Scan(_ *pengine.VM, t pengine.Term, env *pengine.Env) error {
	s.raw, s.env = t, env
	return nil
}

const (
	listFunctor = "."
	emptyList   = "[]"
	anonymous   = "_"
)

// convertRow turns one scanned row into a solution. Bindings are converted in
// variable-name order so unbound variables are numbered the same way on every
// run; the anonymous variable is dropped.
func convertRow(row map[string]scannedTerm) term.Solution {
	names := make([]string, 0, len(row))
	for name := range row {
		if name == anonymous {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	c := converter{fresh: make(map[pengine.Variable]string)}
	sol := make(term.Solution, len(names))
	for _, name := range names {
		v := row[name]
		if v.raw == nil {
			continue
		}
		sol[name] = c.convert(v.raw, v.env)
	}
	return sol
}

// converter maps interpreter terms onto the term variant. Proper lists become
// sequences; everything without structure becomes Atomic. Unbound variables
// are named _G1, _G2, ... by order of first appearance within one row.
type converter struct {
	fresh map[pengine.Variable]string
}

func (c *converter) convert(t pengine.Term, env *pengine.Env) term.Term {
	switch v := env.Resolve(t).(type) {
	case pengine.Variable:
		name, ok := c.fresh[v]
		if !ok {
			name = "_G" + strconv.Itoa(len(c.fresh)+1)
			c.fresh[v] = name
		}
		return term.Atomic(name)
	case pengine.Atom:
		if v.String() == emptyList {
			return term.Sequence{}
		}
		return term.Atomic(v.String())
	case pengine.Integer:
		return term.Atomic(strconv.FormatInt(int64(v), 10))
	case pengine.Compound:
		if items, ok := c.listItems(v, env); ok {
			return items
		}
		args := make([]term.Term, v.Arity())
		for i := range args {
			args[i] = c.convert(v.Arg(i), env)
		}
		return term.Compound{Name: v.Functor().String(), Args: args}
	default:
		return term.Atomic(fmt.Sprint(v))
	}
}

func (c *converter) listItems(l pengine.Compound, env *pengine.Env) (term.Sequence, bool) {
	var items term.Sequence
	var cur pengine.Term = l
	for {
		switch v := env.Resolve(cur).(type) {
		case pengine.Atom:
			if v.String() != emptyList {
				return nil, false
			}
			if items == nil {
				items = term.Sequence{}
			}
			return items, true
		case pengine.Compound:
			if v.Functor().String() != listFunctor || v.Arity() != 2 {
				return nil, false
			}
			items = append(items, c.convert(v.Arg(0), env))
			cur = v.Arg(1)
		default:
			return nil, false
		}
	}
}
