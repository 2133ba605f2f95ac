package isolated

import (
	"context"
	"sync"

	"prologns/internal/term"
)

// recordingEngine records goals and answers every one with a single empty
// solution.
type recordingEngine struct {
	mu    sync.Mutex
	goals []string
}

func (r *recordingEngine) NewNamespace(string) error { return nil }

func (r *recordingEngine) ExecuteGoal(_ context.Context, goal string) (Cursor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.goals = append(r.goals, goal)
	return &onceCursor{}, nil
}

type onceCursor struct{ done bool }

func (c *onceCursor) Next() bool {
	if c.done {
		return false
	}
	c.done = true
	return true
}

func (c *onceCursor) Solution() term.Solution { return term.Solution{} }
func (c *onceCursor) Err() error              { return nil }
func (c *onceCursor) Close() error            { return nil }
