package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQualify(t *testing.T) {
	assert.Equal(t, "m1:(father(X, Y))", Qualify("m1", "father(X, Y)"))
	assert.Equal(t, "m1:(a, b)", Qualify("m1", " a, b. "))
	assert.Equal(t, "m1:(X = a % note\n)", Qualify("m1", "X = a % note"))
	assert.Equal(t, "m1:(X = '%')", Qualify("m1", "X = '%'"))
}

func TestSplitQualified(t *testing.T) {
	tests := []struct {
		goal   string
		ns     string
		body   string
		wantOK bool
	}{
		{goal: "m1:(father(X, Y))", ns: "m1", body: "father(X, Y)", wantOK: true},
		{goal: "m1:father(X)", ns: "m1", body: "father(X)", wantOK: true},
		{goal: "m1:(a(X)), (b(X)).", ns: "m1", body: "(a(X)), (b(X))", wantOK: true},
		{goal: "m1:(consult('c:/tmp/x.pl'))", ns: "m1", body: "consult('c:/tmp/x.pl')", wantOK: true},
		{goal: "m1:(X = ')')", ns: "m1", body: "X = ')'", wantOK: true},
		{goal: "father(X)", ns: "", body: "father(X)", wantOK: false},
		{goal: "Foo:bar", ns: "", body: "Foo:bar", wantOK: false},
		{goal: "a:- b", ns: "", body: "a:- b", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.goal, func(t *testing.T) {
			ns, body, ok := SplitQualified(tt.goal)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.ns, ns)
			assert.Equal(t, tt.body, body)
		})
	}
}

func TestQualifyRoundTrip(t *testing.T) {
	for _, goal := range []string{"p", "p(X), q(X)", "X = \"a:b\"", "(p ; q)", "p(X) % why (not)"} {
		ns, body, ok := SplitQualified(Qualify("mabc", goal))
		assert.True(t, ok)
		assert.Equal(t, "mabc", ns)
		assert.Equal(t, goal, body)
	}
}

func TestTerminate(t *testing.T) {
	assert.Equal(t, "p(x).", Terminate("p(x)"))
	assert.Equal(t, "p(x).", Terminate(" p(x). "))
	assert.Equal(t, "p(x) % note\n.", Terminate("p(x) % note"))
	assert.Equal(t, "p('100%').", Terminate("p('100%')"))
}

func TestIsIdentifier(t *testing.T) {
	assert.True(t, IsIdentifier("m0af"))
	assert.True(t, IsIdentifier("my_Mod9"))
	assert.False(t, IsIdentifier(""))
	assert.False(t, IsIdentifier("Mod"))
	assert.False(t, IsIdentifier("_m"))
	assert.False(t, IsIdentifier("m-1"))
}

func TestExecutionError(t *testing.T) {
	cause := errors.New("existence_error")
	err := fmt.Errorf("wrapped: %w", &ExecutionError{Goal: "m:(p)", Err: cause})

	assert.True(t, IsExecutionError(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), `"m:(p)"`)
	assert.False(t, IsExecutionError(cause))
}
