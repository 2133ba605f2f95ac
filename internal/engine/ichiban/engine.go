// Package ichiban provides the Prolog engine backed by github.com/ichiban/prolog.
//
// One Engine value stands for the single shared engine process. Each
// namespace maps to its own interpreter inside it, so clauses consulted or
// asserted into one namespace are invisible to every other namespace.
package ichiban

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/ichiban/prolog"

	"prologns/internal/engine"
	"prologns/internal/logging"
	"prologns/internal/term"
)

// DefaultNamespace receives goals that carry no namespace qualifier.
const DefaultNamespace = "user"

// Config holds engine configuration.
type Config struct {
	// UserInput and UserOutput back the interpreters' standard streams.
	// Nil means empty input and discarded output.
	UserInput  io.Reader
	UserOutput io.Writer
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{UserOutput: io.Discard}
}

// Engine implements engine.Engine.
type Engine struct {
	config Config

	mu      sync.RWMutex
	modules map[string]*module
}

// module is one namespace. The interpreter is not safe for concurrent use,
// so every call into it holds mu.
type module struct {
	name   string
	mu     sync.Mutex
	interp *prolog.Interpreter
}

var (
	_ engine.Engine  = (*Engine)(nil)
	_ engine.Dropper = (*Engine)(nil)
)

// New creates the shared engine.
func New(cfg Config) *Engine {
	if cfg.UserInput == nil {
		cfg.UserInput = strings.NewReader("")
	}
	if cfg.UserOutput == nil {
		cfg.UserOutput = io.Discard
	}
	return &Engine{
		config:  cfg,
		modules: make(map[string]*module),
	}
}

// NewNamespace registers name, attaching to it when it already exists.
func (e *Engine) NewNamespace(name string) error {
	if !engine.IsIdentifier(name) {
		return fmt.Errorf("namespace %q is not a plain atom", name)
	}
	e.moduleFor(name)
	return nil
}

// Namespaces lists the registered namespaces in sorted order.
func (e *Engine) Namespaces() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.modules))
	for name := range e.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *Engine) moduleFor(name string) *module {
	e.mu.RLock()
	m, ok := e.modules[name]
	e.mu.RUnlock()
	if ok {
		return m
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if m, ok := e.modules[name]; ok {
		return m
	}
	m = &module{
		name:   name,
		interp: prolog.New(e.config.UserInput, e.config.UserOutput),
	}
	e.modules[name] = m
	logging.EngineDebug("namespace %s created (%d total)", name, len(e.modules))
	return m
}

func (e *Engine) lookup(name string) (*module, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	m, ok := e.modules[name]
	return m, ok
}

// ExecuteGoal runs goal inside the namespace it is qualified with.
func (e *Engine) ExecuteGoal(ctx context.Context, goal string) (engine.Cursor, error) {
	ns, body, ok := engine.SplitQualified(goal)
	var m *module
	if ok {
		var found bool
		if m, found = e.lookup(ns); !found {
			return nil, &engine.ExecutionError{Goal: goal, Err: fmt.Errorf("%w: %s", engine.ErrUnknownNamespace, ns)}
		}
	} else {
		m = e.moduleFor(DefaultNamespace)
	}

	m.mu.Lock()
	sols, err := m.interp.QueryContext(ctx, engine.Terminate(body))
	m.mu.Unlock()
	if err != nil {
		return nil, &engine.ExecutionError{Goal: goal, Err: err}
	}

	logging.EngineDebug("goal opened in %s: %s", m.name, body)
	return &cursor{goal: goal, mod: m, sols: sols}, nil
}

// DropNamespace forgets name and its interpreter. Cursors already open on it
// keep working; new goals qualified with it fail with ErrUnknownNamespace.
func (e *Engine) DropNamespace(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.modules[name]; !ok {
		return fmt.Errorf("%w: %s", engine.ErrUnknownNamespace, name)
	}
	delete(e.modules, name)
	logging.EngineDebug("namespace %s dropped (%d left)", name, len(e.modules))
	return nil
}

// cursor wraps *prolog.Solutions.
type cursor struct {
	goal   string
	mod    *module
	sols   *prolog.Solutions
	cur    term.Solution
	err    error
	closed bool
	// done is set once the interpreter reports no more solutions. Advancing
	// Solutions past that point blocks.
	done bool
}

func (c *cursor) Next() bool {
	if c.closed || c.done || c.err != nil {
		return false
	}

	c.mod.mu.Lock()
	defer c.mod.mu.Unlock()

	if !c.sols.Next() {
		c.done = true
		if err := c.sols.Err(); err != nil {
			c.err = &engine.ExecutionError{Goal: c.goal, Err: err}
		}
		return false
	}

	row := make(map[string]scannedTerm)
	if err := c.sols.Scan(row); err != nil {
		c.err = &engine.ExecutionError{Goal: c.goal, Err: fmt.Errorf("scan solution: %w", err)}
		return false
	}

	c.cur = convertRow(row)
	return true
}

func (c *cursor) Solution() term.Solution { return c.cur }

func (c *cursor) Err() error { return c.err }

func (c *cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	c.mod.mu.Lock()
	defer c.mod.mu.Unlock()
	if err := c.sols.Close(); err != nil {
		return fmt.Errorf("close solutions for %q: %w", c.goal, err)
	}
	return nil
}
