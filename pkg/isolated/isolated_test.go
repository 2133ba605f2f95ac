package isolated

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newProlog(t *testing.T, eng Engine, opts ...Option) *Prolog {
	t.Helper()
	p, err := New(eng, opts...)
	require.NoError(t, err)
	return p
}

func TestFatherScenario(t *testing.T) {
	ctx := context.Background()
	p := newProlog(t, NewPrologEngine())

	require.NoError(t, p.Assertz(ctx, "father(michael,john)"))
	require.NoError(t, p.Assertz(ctx, "father(michael,gina)."))

	sols, err := p.Query(ctx, "father(michael,X)").Collect()
	require.NoError(t, err)
	assert.ElementsMatch(t, []Solution{{"X": Atomic("gina")}, {"X": Atomic("john")}}, sols)

	sols, err = p.Query(ctx, "father(michael,X)", MaxResults(1)).Collect()
	require.NoError(t, err)
	assert.Len(t, sols, 1)
}

func TestConsultTextScenario(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := newProlog(t, NewPrologEngine(), WithTempDir(dir))

	require.NoError(t, p.ConsultText(ctx, "bird(tweety)."))

	sols, err := p.Query(ctx, "bird(tweety)").Collect()
	require.NoError(t, err)
	assert.Equal(t, []Solution{{}}, sols)

	sols, err = p.Query(ctx, "bird(opus)").Collect()
	require.NoError(t, err)
	assert.Empty(t, sols)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestConsultFile(t *testing.T) {
	ctx := context.Background()
	p := newProlog(t, NewPrologEngine())

	src := filepath.Join(t.TempDir(), "family.pl")
	require.NoError(t, os.WriteFile(src, []byte("parent(tom, bob).\nparent(bob, ann).\ngrandparent(X, Z) :- parent(X, Y), parent(Y, Z).\n"), 0o644))
	require.NoError(t, p.Consult(ctx, src, TempDir(t.TempDir())))

	sols, err := p.Query(ctx, "grandparent(tom, Who)").Collect()
	require.NoError(t, err)
	assert.Equal(t, []Solution{{"Who": Atomic("ann")}}, sols)

	err = p.Consult(ctx, filepath.Join(t.TempDir(), "missing.pl"))
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestSessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	eng := NewPrologEngine()
	a := newProlog(t, eng)
	b := newProlog(t, eng)
	require.NotEqual(t, a.Module(), b.Module())

	require.NoError(t, a.Assertz(ctx, "secret(a)"))
	require.NoError(t, b.Assertz(ctx, "secret(b)"))

	sols, err := a.Query(ctx, "secret(X)").Collect()
	require.NoError(t, err)
	assert.Equal(t, []Solution{{"X": Atomic("a")}}, sols)

	sols, err = b.Query(ctx, "secret(X)").Collect()
	require.NoError(t, err)
	assert.Equal(t, []Solution{{"X": Atomic("b")}}, sols)
}

func TestConcurrentSessions(t *testing.T) {
	ctx := context.Background()
	eng := NewPrologEngine()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := New(eng)
			if err != nil {
				errs <- err
				return
			}
			if err := p.Assertz(ctx, "owner('"+p.Module()+"')"); err != nil {
				errs <- err
				return
			}
			sols, err := p.Query(ctx, "owner(X)").Collect()
			if err != nil {
				errs <- err
				return
			}
			if len(sols) != 1 || sols[0]["X"] != Atomic(p.Module()) {
				errs <- assert.AnError
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestAttachToExistingModule(t *testing.T) {
	ctx := context.Background()
	eng := NewPrologEngine()
	first := newProlog(t, eng, WithModule("shared"))
	require.NoError(t, first.Assertz(ctx, "color(red)"))

	second := newProlog(t, eng, WithModule("shared"))
	sols, err := second.Query(ctx, "color(X)").Collect()
	require.NoError(t, err)
	assert.Equal(t, []Solution{{"X": Atomic("red")}}, sols)
}

func TestInvalidModule(t *testing.T) {
	_, err := New(NewPrologEngine(), WithModule("user"))
	assert.ErrorIs(t, err, ErrReservedNamespace)

	_, err = New(NewPrologEngine(), WithModule("Upper"))
	assert.ErrorIs(t, err, ErrInvalidNamespace)
}

func TestMutationErrorPolicy(t *testing.T) {
	ctx := context.Background()
	p := newProlog(t, NewPrologEngine())

	require.NoError(t, p.Assertz(ctx, "item(1)"))
	require.NoError(t, p.Asserta(ctx, "item(0)"))

	sols, err := p.Query(ctx, "item(X)").Collect()
	require.NoError(t, err)
	assert.Equal(t, []Solution{{"X": Atomic("0")}, {"X": Atomic("1")}}, sols)

	require.NoError(t, p.Retract(ctx, "item(0)"))
	err = p.Retract(ctx, "item(0)")
	assert.ErrorIs(t, err, ErrNoSolution)
	assert.NoError(t, p.Retract(ctx, "item(0)", CatchErrors(true)))

	err = p.Assertz(ctx, "foo(")
	assert.True(t, IsExecutionError(err), "got %v", err)
	assert.NoError(t, p.Assertz(ctx, "foo(", CatchErrors(true)))
}

func TestRawResults(t *testing.T) {
	ctx := context.Background()
	p := newProlog(t, NewPrologEngine())

	sols, err := p.Query(ctx, "X = father(michael, [john, gina])", Normalize(false)).Collect()
	require.NoError(t, err)
	require.Len(t, sols, 1)
	assert.Equal(t, Compound{Name: "father", Args: []Term{
		Atomic("michael"),
		Sequence{Atomic("john"), Atomic("gina")},
	}}, sols[0]["X"])

	assert.Equal(t, Atomic("father(michael, [john, gina])"), NormalizeTerm(sols[0]["X"]))
}

func TestMutationGoalText(t *testing.T) {
	ctx := context.Background()
	eng := &recordingEngine{}
	p := newProlog(t, eng, WithModule("m1"))

	require.NoError(t, p.Dynamic(ctx, "counter/1"))
	require.NoError(t, p.Retractall(ctx, "counter(_)."))
	require.NoError(t, p.Assertz(ctx, "counter(X) :- X = 1, true"))

	assert.Equal(t, []string{
		"m1:(dynamic((counter/1)))",
		"m1:(retractall((counter(_))))",
		"m1:(assertz((counter(X) :- X = 1, true)))",
	}, eng.goals)
}

func TestDatalogEngine(t *testing.T) {
	ctx := context.Background()
	p := newProlog(t, NewDatalogEngine())

	require.NoError(t, p.ConsultText(ctx, "edge(/a, /b).\nedge(/b, /c).\nreach(X, Y) :- edge(X, Y).\nreach(X, Z) :- edge(X, Y), reach(Y, Z).\n", TempDir(t.TempDir())))

	sols, err := p.Query(ctx, "reach(/a, X)").Collect()
	require.NoError(t, err)
	assert.ElementsMatch(t, []Solution{{"X": Atomic("/b")}, {"X": Atomic("/c")}}, sols)
}

func TestUnboundVariablesAreStable(t *testing.T) {
	ctx := context.Background()
	eng := NewPrologEngine()
	want := []Solution{{"X": Atomic("f(_G1)"), "Y": Atomic("_G1")}}

	for i := 0; i < 2; i++ {
		p := newProlog(t, eng)
		sols, err := p.Query(ctx, "X = f(Y)").Collect()
		require.NoError(t, err)
		assert.Equal(t, want, sols)
	}
}

func TestUnderscoreVariablesAreKept(t *testing.T) {
	ctx := context.Background()
	p := newProlog(t, NewPrologEngine())

	sols, err := p.Query(ctx, "_Helper = a, Y = b, _ = c").Collect()
	require.NoError(t, err)
	assert.Equal(t, []Solution{{"_Helper": Atomic("a"), "Y": Atomic("b")}}, sols)
}

func TestQueryEndingInLineComment(t *testing.T) {
	ctx := context.Background()
	p := newProlog(t, NewPrologEngine())

	sols, err := p.Query(ctx, "X = a % trailing note", CatchErrors(false)).Collect()
	require.NoError(t, err)
	assert.Equal(t, []Solution{{"X": Atomic("a")}}, sols)
}

func TestRelease(t *testing.T) {
	ctx := context.Background()
	eng := NewPrologEngine()
	p := newProlog(t, eng, WithModule("scratch"))
	require.NoError(t, p.Assertz(ctx, "bird(tweety)"))

	require.NoError(t, p.Release())
	_, err := p.Query(ctx, "bird(X)", CatchErrors(false)).Collect()
	assert.ErrorIs(t, err, ErrUnknownNamespace)

	fresh := newProlog(t, eng, WithModule("scratch"))
	sols, err := fresh.Query(ctx, "bird(X)").Collect()
	require.NoError(t, err)
	assert.Empty(t, sols)

	assert.ErrorIs(t, newProlog(t, &recordingEngine{}).Release(), ErrReleaseUnsupported)
}
