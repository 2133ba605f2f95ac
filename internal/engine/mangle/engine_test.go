package mangle

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prologns/internal/engine"
	"prologns/internal/term"
)

func run(t *testing.T, e *Engine, goal string) ([]term.Solution, error) {
	t.Helper()
	cur, err := e.ExecuteGoal(context.Background(), goal)
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	var sols []term.Solution
	for cur.Next() {
		sols = append(sols, cur.Solution())
	}
	return sols, cur.Err()
}

func TestConsultAndDerive(t *testing.T) {
	e := New(DefaultConfig())
	require.NoError(t, e.NewNamespace("m"))

	path := filepath.Join(t.TempDir(), "birds.mg")
	require.NoError(t, os.WriteFile(path, []byte("bird(/tweety).\nflies(X) :- bird(X).\n"), 0o644))

	sols, err := run(t, e, "m:(consult('"+path+"'))")
	require.NoError(t, err)
	assert.Equal(t, []term.Solution{{}}, sols)

	sols, err = run(t, e, "m:(flies(X))")
	require.NoError(t, err)
	assert.Equal(t, []term.Solution{{"X": term.Atomic("/tweety")}}, sols)

	sols, err = run(t, e, "m:(bird(/tweety))")
	require.NoError(t, err)
	assert.Equal(t, []term.Solution{{}}, sols)

	sols, err = run(t, e, "m:(bird(/opus))")
	require.NoError(t, err)
	assert.Empty(t, sols)
}

func TestAssertIsolatedPerNamespace(t *testing.T) {
	e := New(DefaultConfig())
	require.NoError(t, e.NewNamespace("ma"))
	require.NoError(t, e.NewNamespace("mb"))

	_, err := run(t, e, "ma:(assertz((father(/michael, /john))))")
	require.NoError(t, err)
	_, err = run(t, e, "ma:(assertz((father(/michael, /gina))))")
	require.NoError(t, err)

	sols, err := run(t, e, "ma:(father(/michael, X))")
	require.NoError(t, err)
	assert.ElementsMatch(t, []term.Solution{
		{"X": term.Atomic("/john")},
		{"X": term.Atomic("/gina")},
	}, sols)

	sols, err = run(t, e, "mb:(father(/michael, X))")
	require.NoError(t, err)
	assert.Empty(t, sols)
	assert.Equal(t, []string{"ma", "mb"}, e.Namespaces())
}

func TestRepeatedVariableMustAgree(t *testing.T) {
	e := New(DefaultConfig())
	require.NoError(t, e.NewNamespace("m"))
	_, err := run(t, e, `m:(assertz((pair(1, 1))))`)
	require.NoError(t, err)
	_, err = run(t, e, `m:(assertz((pair(1, 2))))`)
	require.NoError(t, err)

	sols, err := run(t, e, "m:(pair(X, X))")
	require.NoError(t, err)
	assert.Equal(t, []term.Solution{{"X": term.Atomic("1")}}, sols)
}

func TestBadProgramLeavesNamespaceIntact(t *testing.T) {
	e := New(DefaultConfig())
	require.NoError(t, e.NewNamespace("m"))
	_, err := run(t, e, "m:(assertz((ok(/yes))))")
	require.NoError(t, err)

	_, err = run(t, e, "m:(assertz((this is not datalog)))")
	assert.True(t, engine.IsExecutionError(err))

	sols, err := run(t, e, "m:(ok(X))")
	require.NoError(t, err)
	assert.Equal(t, []term.Solution{{"X": term.Atomic("/yes")}}, sols)
}

func TestGoalErrors(t *testing.T) {
	e := New(DefaultConfig())
	require.NoError(t, e.NewNamespace("m"))

	_, err := e.ExecuteGoal(context.Background(), "unqualified(X)")
	assert.True(t, engine.IsExecutionError(err))

	_, err = e.ExecuteGoal(context.Background(), "other:(p(X))")
	assert.ErrorIs(t, err, engine.ErrUnknownNamespace)

	_, err = e.ExecuteGoal(context.Background(), "m:(consult('/does/not/exist.mg'))")
	assert.True(t, engine.IsExecutionError(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.ExecuteGoal(ctx, "m:(true)")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, engine.IsExecutionError(err))

	assert.Error(t, e.NewNamespace("Not Valid"))
}

func TestTrueYieldsOneEmptySolution(t *testing.T) {
	e := New(DefaultConfig())
	require.NoError(t, e.NewNamespace("m"))
	sols, err := run(t, e, "m:(true)")
	require.NoError(t, err)
	assert.Equal(t, []term.Solution{{}}, sols)
}

func TestAnonymousVariableIsOmitted(t *testing.T) {
	e := New(DefaultConfig())
	require.NoError(t, e.NewNamespace("m"))
	_, err := run(t, e, "m:(assertz((edge(/a, /b))))")
	require.NoError(t, err)

	sols, err := run(t, e, "m:(edge(X, _))")
	require.NoError(t, err)
	assert.Equal(t, []term.Solution{{"X": term.Atomic("/a")}}, sols)
}

func TestDropNamespace(t *testing.T) {
	e := New(DefaultConfig())
	require.NoError(t, e.NewNamespace("keep"))
	require.NoError(t, e.NewNamespace("gone"))

	require.NoError(t, e.DropNamespace("gone"))
	assert.Equal(t, []string{"keep"}, e.Namespaces())

	_, err := run(t, e, "gone:(true)")
	assert.ErrorIs(t, err, engine.ErrUnknownNamespace)
	assert.ErrorIs(t, e.DropNamespace("gone"), engine.ErrUnknownNamespace)
}
