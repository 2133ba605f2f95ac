package term

// Normalize converts a raw engine term into its canonical host value.
//
//   - Atomic values pass through.
//   - A compound with arguments becomes the Atomic "name(a1, a2)" where each
//     argument is normalized and then stringified. A compound without
//     arguments becomes the Atomic "name".
//   - Mappings and sequences keep their shape with every element normalized.
//
// The result never contains a Compound, so Normalize(Normalize(t)) equals
// Normalize(t).
func Normalize(t Term) Term {
	switch v := t.(type) {
	case nil:
		return nil
	case Atomic:
		return v
	case Compound:
		if len(v.Args) == 0 {
			return Atomic(v.Name)
		}
		args := make([]Term, len(v.Args))
		for i, arg := range v.Args {
			args[i] = Atomic(String(Normalize(arg)))
		}
		return Atomic(String(Compound{Name: v.Name, Args: args}))
	case Mapping:
		out := make(Mapping, len(v))
		for k, val := range v {
			out[k] = Normalize(val)
		}
		return out
	case Sequence:
		out := make(Sequence, len(v))
		for i, item := range v {
			out[i] = Normalize(item)
		}
		return out
	default:
		return t
	}
}

// NormalizeSolution is Normalize specialised to solutions.
func NormalizeSolution(s Solution) Solution {
	if s == nil {
		return Solution{}
	}
	return Normalize(s).(Mapping)
}
