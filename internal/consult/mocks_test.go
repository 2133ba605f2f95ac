package consult

import (
	"context"
	"os"
	"regexp"
	"strings"
	"sync"

	"prologns/internal/engine"
	"prologns/internal/term"
)

var consultPattern = regexp.MustCompile(`^consult\('((?:[^']|'')*)'\)$`)

// mockEngine answers consult goals by reading the staged file while it still
// exists, the way a real engine would.
type mockEngine struct {
	mu      sync.Mutex
	loadErr error
	goals   []string
	paths   []string
	loaded  []string
}

func (m *mockEngine) NewNamespace(string) error { return nil }

func (m *mockEngine) ExecuteGoal(_ context.Context, goal string) (engine.Cursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.goals = append(m.goals, goal)

	_, body, _ := engine.SplitQualified(goal)
	match := consultPattern.FindStringSubmatch(body)
	if match == nil {
		return &mockCursor{sols: []term.Solution{{}}}, nil
	}
	path := strings.ReplaceAll(match[1], "''", "'")
	m.paths = append(m.paths, path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &engine.ExecutionError{Goal: goal, Err: err}
	}
	m.loaded = append(m.loaded, string(data))
	if m.loadErr != nil {
		return nil, &engine.ExecutionError{Goal: goal, Err: m.loadErr}
	}
	return &mockCursor{sols: []term.Solution{{}}}, nil
}

type mockCursor struct {
	sols []term.Solution
	cur  term.Solution
}

func (c *mockCursor) Next() bool {
	if len(c.sols) == 0 {
		return false
	}
	c.cur, c.sols = c.sols[0], c.sols[1:]
	return true
}

func (c *mockCursor) Solution() term.Solution { return c.cur }
func (c *mockCursor) Err() error              { return nil }
func (c *mockCursor) Close() error            { return nil }
