// Package term defines the host-side representation of engine results.
//
// A Term is a closed variant. The Kind method is the discriminator, so callers
// switch on Kind (or on the concrete type) instead of probing for behaviour.
package term

import (
	"sort"
	"strings"
)

// Kind discriminates the Term variants.
type Kind uint8

const (
	KindAtomic Kind = iota + 1
	KindCompound
	KindMapping
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindAtomic:
		return "atomic"
	case KindCompound:
		return "compound"
	case KindMapping:
		return "mapping"
	case KindSequence:
		return "sequence"
	default:
		return "unknown"
	}
}

// Term is implemented only by the types in this package.
type Term interface {
	Kind() Kind
	sealed()
}

// Atomic is an atom, number, string or any other constant rendered as text.
type Atomic string

// Compound is a functor applied to ordered arguments.
type Compound struct {
	Name string
	Args []Term
}

// Mapping binds names to terms. A query solution is a Mapping keyed by
// variable name.
type Mapping map[string]Term

// Sequence is an ordered list of terms.
type Sequence []Term

// Solution is one set of variable bindings satisfying a goal.
type Solution = Mapping

func (Atomic) Kind() Kind   { return KindAtomic }
func (Compound) Kind() Kind { return KindCompound }
func (Mapping) Kind() Kind  { return KindMapping }
func (Sequence) Kind() Kind { return KindSequence }

func (Atomic) sealed()   {}
func (Compound) sealed() {}
func (Mapping) sealed()  {}
func (Sequence) sealed() {}

// Keys returns the mapping keys in sorted order.
func (m Mapping) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String renders a term the way it appears inside a normalized compound:
// atomics verbatim, compounds as name(a, b), sequences as [a, b] and
// mappings as {K: v} with sorted keys.
func String(t Term) string {
	var sb strings.Builder
	writeTerm(&sb, t)
	return sb.String()
}

func writeTerm(sb *strings.Builder, t Term) {
	switch v := t.(type) {
	case nil:
		return
	case Atomic:
		sb.WriteString(string(v))
	case Compound:
		sb.WriteString(v.Name)
		if len(v.Args) == 0 {
			return
		}
		sb.WriteByte('(')
		for i, arg := range v.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeTerm(sb, arg)
		}
		sb.WriteByte(')')
	case Sequence:
		sb.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeTerm(sb, item)
		}
		sb.WriteByte(']')
	case Mapping:
		sb.WriteByte('{')
		for i, k := range v.Keys() {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(k)
			sb.WriteString(": ")
			writeTerm(sb, v[k])
		}
		sb.WriteByte('}')
	}
}

// Native projects a term onto plain Go values: string, map[string]any and
// []any. It is the shape handed to encoders.
func Native(t Term) any {
	switch v := t.(type) {
	case nil:
		return nil
	case Atomic:
		return string(v)
	case Compound:
		return String(v)
	case Mapping:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = Native(val)
		}
		return out
	case Sequence:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Native(item)
		}
		return out
	default:
		return nil
	}
}
