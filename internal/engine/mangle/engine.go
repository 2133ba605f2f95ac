// Package mangle provides a Datalog engine backed by Google Mangle.
//
// It implements the same contract as the Prolog backend for the subset of
// goals Datalog can express: atom queries, consult/1 and assertz/1. Each
// namespace owns its program text, analysis and fact store.
package mangle

import (
	"context"
	"fmt"
	"math"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"

	"prologns/internal/engine"
	"prologns/internal/logging"
	"prologns/internal/term"
)

// Config holds Mangle engine configuration.
type Config struct {
	// FactLimit caps the number of facts derived by one evaluation.
	FactLimit int `yaml:"fact_limit"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{FactLimit: 500000}
}

// Engine implements engine.Engine on Mangle.
type Engine struct {
	config Config

	mu         sync.RWMutex
	namespaces map[string]*namespace
}

type namespace struct {
	name string

	mu        sync.Mutex
	fragments []string
	store     factstore.FactStore
}

var (
	_ engine.Engine  = (*Engine)(nil)
	_ engine.Dropper = (*Engine)(nil)
)

// New creates the shared engine.
func New(cfg Config) *Engine {
	return &Engine{
		config:     cfg,
		namespaces: make(map[string]*namespace),
	}
}

// NewNamespace registers name, attaching to it when it already exists.
func (e *Engine) NewNamespace(name string) error {
	if !engine.IsIdentifier(name) {
		return fmt.Errorf("namespace %q is not a plain identifier", name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.namespaces[name]; !ok {
		e.namespaces[name] = &namespace{name: name, store: factstore.NewSimpleInMemoryStore()}
		logging.EngineDebug("mangle namespace %s created", name)
	}
	return nil
}

// DropNamespace forgets name together with its program and fact store.
func (e *Engine) DropNamespace(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.namespaces[name]; !ok {
		return fmt.Errorf("%w: %s", engine.ErrUnknownNamespace, name)
	}
	delete(e.namespaces, name)
	logging.EngineDebug("mangle namespace %s dropped", name)
	return nil
}

// Namespaces lists the registered namespaces in sorted order.
func (e *Engine) Namespaces() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.namespaces))
	for name := range e.namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var (
	consultGoal = regexp.MustCompile(`^consult\(\s*'((?:[^']|'')*)'\s*\)$`)
	assertGoal  = regexp.MustCompile(`^assert[az]?\((?s)(.*)\)$`)
)

// ExecuteGoal runs goal inside its namespace. Solutions are computed when the
// goal is submitted and handed out one per Next.
func (e *Engine) ExecuteGoal(ctx context.Context, goal string) (engine.Cursor, error) {
	ns, body, ok := engine.SplitQualified(goal)
	if !ok {
		return nil, &engine.ExecutionError{Goal: goal, Err: fmt.Errorf("goal must be namespace qualified")}
	}

	e.mu.RLock()
	n, found := e.namespaces[ns]
	e.mu.RUnlock()
	if !found {
		return nil, &engine.ExecutionError{Goal: goal, Err: fmt.Errorf("%w: %s", engine.ErrUnknownNamespace, ns)}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		sols []term.Solution
		err  error
	)
	switch {
	case body == "true":
		sols = []term.Solution{{}}
	case consultGoal.MatchString(body):
		path := strings.ReplaceAll(consultGoal.FindStringSubmatch(body)[1], "''", "'")
		err = e.consult(n, path)
		sols = []term.Solution{{}}
	case assertGoal.MatchString(body):
		clause := strings.TrimSpace(assertGoal.FindStringSubmatch(body)[1])
		err = e.load(n, engine.Terminate(engine.Unwrap(clause)))
		sols = []term.Solution{{}}
	default:
		sols, err = n.query(body)
	}
	if err != nil {
		return nil, &engine.ExecutionError{Goal: goal, Err: err}
	}
	return &cursor{sols: sols}, nil
}

func (e *Engine) consult(n *namespace, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return e.load(n, string(data))
}

// load appends source to the namespace program and evaluates it to fixpoint.
// The namespace is left untouched when the new program does not parse,
// analyze or evaluate.
func (e *Engine) load(n *namespace, source string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	fragments := append(append([]string(nil), n.fragments...), source)
	program := strings.Join(fragments, "\n")

	unit, err := parse.Unit(strings.NewReader(program))
	if err != nil {
		return fmt.Errorf("failed to parse program: %w", err)
	}
	programInfo, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return fmt.Errorf("failed to analyze program: %w", err)
	}

	store := factstore.NewSimpleInMemoryStore()
	if e.config.FactLimit > 0 {
		_, err = mengine.EvalProgramWithStats(programInfo, store, mengine.WithCreatedFactLimit(e.config.FactLimit))
	} else {
		_, err = mengine.EvalProgramWithStats(programInfo, store)
	}
	if err != nil {
		return fmt.Errorf("failed to evaluate program: %w", err)
	}

	n.fragments = fragments
	n.store = store
	logging.EngineDebug("mangle namespace %s loaded %d clauses", n.name, len(unit.Clauses))
	return nil
}

// query matches a single atom against the namespace store.
func (n *namespace) query(body string) ([]term.Solution, error) {
	atom, err := parse.Atom(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse query %q: %w", body, err)
	}

	n.mu.Lock()
	store := n.store
	n.mu.Unlock()

	var sols []term.Solution
	err = store.GetFacts(atom, func(fact ast.Atom) error {
		if sol, ok := bind(atom, fact); ok {
			sols = append(sols, sol)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sols, nil
}

// bind unifies the query pattern with a ground fact.
func bind(pattern, fact ast.Atom) (term.Solution, bool) {
	if len(pattern.Args) != len(fact.Args) {
		return nil, false
	}
	bound := make(map[string]ast.BaseTerm)
	sol := make(term.Solution)
	for i, arg := range pattern.Args {
		val := fact.Args[i]
		switch a := arg.(type) {
		case ast.Variable:
			if a.Symbol == "_" {
				continue
			}
			if prev, ok := bound[a.Symbol]; ok {
				if prev.String() != val.String() {
					return nil, false
				}
				continue
			}
			bound[a.Symbol] = val
			sol[a.Symbol] = convert(val)
		default:
			if arg.String() != val.String() {
				return nil, false
			}
		}
	}
	return sol, true
}

func convert(t ast.BaseTerm) term.Term {
	c, ok := t.(ast.Constant)
	if !ok {
		return term.Atomic(t.String())
	}
	switch c.Type {
	case ast.NameType, ast.StringType, ast.BytesType:
		return term.Atomic(c.Symbol)
	case ast.NumberType:
		return term.Atomic(strconv.FormatInt(c.NumValue, 10))
	case ast.Float64Type:
		return term.Atomic(strconv.FormatFloat(math.Float64frombits(uint64(c.NumValue)), 'g', -1, 64))
	default:
		return term.Atomic(c.String())
	}
}

// cursor hands out precomputed solutions.
type cursor struct {
	sols   []term.Solution
	cur    term.Solution
	closed bool
}

func (c *cursor) Next() bool {
	if c.closed || len(c.sols) == 0 {
		return false
	}
	c.cur, c.sols = c.sols[0], c.sols[1:]
	return true
}

func (c *cursor) Solution() term.Solution { return c.cur }
func (c *cursor) Err() error              { return nil }

func (c *cursor) Close() error {
	c.closed = true
	c.sols = nil
	return nil
}
