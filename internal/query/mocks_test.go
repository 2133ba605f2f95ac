package query

import (
	"context"
	"sync"

	"prologns/internal/engine"
	"prologns/internal/term"
)

// script is the canned behaviour of one goal.
type script struct {
	sols    []term.Solution
	openErr error // returned by ExecuteGoal
	iterErr error // reported by the cursor after sols are drained
}

// mockEngine replays scripts keyed by the qualified goal.
type mockEngine struct {
	mu         sync.Mutex
	scripts    map[string]script
	submitted  []string
	namespaces []string
	cursors    []*mockCursor
}

func newMockEngine() *mockEngine {
	return &mockEngine{scripts: make(map[string]script)}
}

func (m *mockEngine) on(goal string, s script) *mockEngine {
	m.scripts[goal] = s
	return m
}

func (m *mockEngine) NewNamespace(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.namespaces = append(m.namespaces, name)
	return nil
}

func (m *mockEngine) ExecuteGoal(ctx context.Context, goal string) (engine.Cursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitted = append(m.submitted, goal)
	s := m.scripts[goal]
	if s.openErr != nil {
		return nil, s.openErr
	}
	c := &mockCursor{ctx: ctx, sols: s.sols, iterErr: s.iterErr}
	m.cursors = append(m.cursors, c)
	return c, nil
}

func (m *mockEngine) goals() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.submitted...)
}

type mockCursor struct {
	ctx     context.Context
	sols    []term.Solution
	iterErr error
	cur     term.Solution
	err     error
	pulled  int
	closed  int
}

func (c *mockCursor) Next() bool {
	if c.closed > 0 || c.err != nil {
		return false
	}
	if err := c.ctx.Err(); err != nil {
		c.err = &engine.ExecutionError{Goal: "mock", Err: err}
		return false
	}
	if c.pulled == len(c.sols) {
		c.err = c.iterErr
		return false
	}
	c.cur = c.sols[c.pulled]
	c.pulled++
	return true
}

func (c *mockCursor) Solution() term.Solution { return c.cur }
func (c *mockCursor) Err() error              { return c.err }

func (c *mockCursor) Close() error {
	c.closed++
	return nil
}
