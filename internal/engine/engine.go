// Package engine describes the logic engine this module drives.
//
// The engine is a process-wide resource. One value is constructed at startup
// and passed to every session, executor and loader; nothing in this module
// reaches for it through a global.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"prologns/internal/term"
)

// Namespacer creates (or attaches to) an isolated namespace.
type Namespacer interface {
	// NewNamespace registers name. Registering an existing name is not an
	// error; the caller attaches to the existing namespace.
	NewNamespace(name string) error
}

// Engine is the collaborator contract: namespaces plus goal execution.
// Loading a knowledge base is itself a goal (consult/1) executed through
// ExecuteGoal, so there is no separate load method.
type Engine interface {
	Namespacer

	// ExecuteGoal submits namespace-qualified goal text ("ns:(goal)") and
	// returns a cursor over its solutions. Resolution happens lazily as the
	// cursor is advanced.
	ExecuteGoal(ctx context.Context, goal string) (Cursor, error)
}

// Dropper is implemented by engines that can forget a namespace and release
// everything loaded into it.
type Dropper interface {
	DropNamespace(name string) error
}

// Cursor enumerates the solutions of one goal. It follows the database/sql
// Rows convention: call Next until it returns false, then check Err. Close
// releases engine-side enumeration state and may be called at any point.
type Cursor interface {
	Next() bool
	// Solution returns the raw bindings of the current solution keyed by
	// variable name.
	Solution() term.Solution
	Err() error
	Close() error
}

// ErrUnknownNamespace is returned for goals qualified with a namespace the
// engine has never registered.
var ErrUnknownNamespace = errors.New("unknown namespace")

// ExecutionError reports that the engine failed while resolving a goal.
type ExecutionError struct {
	Goal string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("engine execution of %q failed: %v", e.Goal, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// IsExecutionError reports whether err carries an ExecutionError.
func IsExecutionError(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee)
}

// Qualify renders goal inside namespace. A trailing full stop is dropped and
// the goal is parenthesised so conjunctions stay inside the namespace. A goal
// ending in a line comment gets a newline before the closing parenthesis.
func Qualify(namespace, goal string) string {
	body := strings.TrimSpace(goal)
	body = strings.TrimSpace(strings.TrimSuffix(body, "."))
	if endsInLineComment(body) {
		body += "\n"
	}
	return namespace + ":(" + body + ")"
}

// SplitQualified is the inverse of Qualify. It returns the namespace and the
// unwrapped goal body. ok is false when goal carries no namespace prefix.
func SplitQualified(goal string) (namespace, body string, ok bool) {
	goal = strings.TrimSpace(goal)
	idx := strings.IndexByte(goal, ':')
	if idx <= 0 || !IsIdentifier(goal[:idx]) {
		return "", goal, false
	}
	if strings.HasPrefix(goal[idx:], ":-") {
		return "", goal, false
	}
	namespace = goal[:idx]
	body = strings.TrimSpace(goal[idx+1:])
	body = strings.TrimSpace(strings.TrimSuffix(body, "."))
	return namespace, Unwrap(body), true
}

// Terminate appends the full stop most engines require at the end of a goal.
func Terminate(goal string) string {
	goal = strings.TrimSpace(goal)
	if strings.HasSuffix(goal, ".") {
		return goal
	}
	if endsInLineComment(goal) {
		return goal + "\n."
	}
	return goal + "."
}

// endsInLineComment reports whether the last line of s holds a % comment
// outside any quoted text.
func endsInLineComment(s string) bool {
	line := s[strings.LastIndexByte(s, '\n')+1:]
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		if quote != 0 {
			switch {
			case c == '\\':
				i++
			case c == quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			quote = c
		case '%':
			return true
		}
	}
	return false
}

// IsIdentifier reports whether s is a plain lower-case engine atom:
// [a-z][a-zA-Z0-9_]*.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	if c := s[0]; c < 'a' || c > 'z' {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_') {
			return false
		}
	}
	return true
}

// Unwrap strips one pair of parentheses when they enclose the whole body.
// Quoted atoms and strings are skipped while matching.
func Unwrap(body string) string {
	body = strings.TrimSpace(body)
	if len(body) < 2 || body[0] != '(' || body[len(body)-1] != ')' {
		return body
	}
	depth := 0
	var quote byte
	for i := 0; i < len(body); i++ {
		c := body[i]
		if quote != 0 {
			switch {
			case c == '\\':
				i++
			case c == quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			quote = c
		case '%':
			nl := strings.IndexByte(body[i:], '\n')
			if nl < 0 {
				return body
			}
			i += nl
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(body)-1 {
				return body
			}
		}
	}
	return strings.TrimSpace(body[1 : len(body)-1])
}
