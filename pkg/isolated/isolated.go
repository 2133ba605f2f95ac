// Package isolated is the public entry point for running isolated sessions on
// a shared logic engine. It re-exports the types callers need from the
// internal packages and wraps them in a single Prolog handle per session.
//
//	eng := isolated.NewPrologEngine()
//	p, err := isolated.New(eng)
//	if err != nil { ... }
//	_ = p.Assertz(ctx, "father(michael, john)")
//	sols, err := p.Query(ctx, "father(michael, X)").Collect()
package isolated

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"prologns/internal/consult"
	"prologns/internal/engine"
	"prologns/internal/engine/ichiban"
	"prologns/internal/engine/mangle"
	"prologns/internal/logging"
	"prologns/internal/query"
	"prologns/internal/session"
	"prologns/internal/term"
)

// Re-exported types.
type (
	Engine         = engine.Engine
	Cursor         = engine.Cursor
	Term           = term.Term
	Atomic         = term.Atomic
	Compound       = term.Compound
	Mapping        = term.Mapping
	Sequence       = term.Sequence
	Solution       = term.Solution
	Results        = query.Results
	ExecutionError = engine.ExecutionError
	ResourceError  = consult.ResourceError
)

// Re-exported errors.
var (
	ErrSourceNotFound    = consult.ErrSourceNotFound
	ErrInvalidNamespace  = session.ErrInvalidNamespace
	ErrReservedNamespace = session.ErrReservedNamespace
	ErrUnknownNamespace  = engine.ErrUnknownNamespace
	IsExecutionError     = engine.IsExecutionError
)

// ErrNoSolution is returned by the mutation helpers when their goal has no
// solution and errors are not being caught.
var ErrNoSolution = errors.New("goal has no solution")

// ErrReleaseUnsupported is returned by Release when the engine cannot drop
// namespaces.
var ErrReleaseUnsupported = errors.New("engine cannot release namespaces")

// Re-exported term helpers.
var (
	NormalizeTerm = term.Normalize
	FormatTerm    = term.String
	NativeTerm    = term.Native
)

// NewPrologEngine returns a Prolog engine with default settings.
func NewPrologEngine() Engine { return ichiban.New(ichiban.DefaultConfig()) }

// NewDatalogEngine returns a Mangle Datalog engine with default settings.
func NewDatalogEngine() Engine { return mangle.New(mangle.DefaultConfig()) }

// Prolog is one isolated session on a shared engine. Values are cheap; any
// number may share an engine without observing each other's clauses.
type Prolog struct {
	eng     Engine
	sess    *session.Session
	exec    *query.Executor
	loader  *consult.Loader
	tempDir string
}

type settings struct {
	module  string
	tempDir string
}

// Option configures New.
type Option func(*settings)

// WithModule binds the session to namespace instead of a generated one. An
// existing namespace is attached to.
func WithModule(namespace string) Option {
	return func(s *settings) { s.module = namespace }
}

// WithTempDir sets the directory consult stages knowledge bases in.
func WithTempDir(dir string) Option {
	return func(s *settings) { s.tempDir = dir }
}

// New creates a session on eng.
func New(eng Engine, opts ...Option) (*Prolog, error) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	sess, err := session.New(eng, s.module)
	if err != nil {
		return nil, err
	}
	exec := query.NewExecutor(eng)
	return &Prolog{
		eng:     eng,
		sess:    sess,
		exec:    exec,
		loader:  consult.NewLoader(exec),
		tempDir: s.tempDir,
	}, nil
}

// Module returns the session's namespace.
func (p *Prolog) Module() string { return p.sess.Namespace() }

func (p *Prolog) String() string { return p.sess.String() }

// Release drops the session's namespace from the engine, freeing everything
// loaded into it. Other sessions attached to the same namespace lose it too.
// Engines that cannot drop namespaces return ErrReleaseUnsupported.
func (p *Prolog) Release() error {
	d, ok := p.eng.(engine.Dropper)
	if !ok {
		return fmt.Errorf("%w: %T", ErrReleaseUnsupported, p.eng)
	}
	if err := d.DropNamespace(p.Module()); err != nil {
		return fmt.Errorf("release %s: %w", p.Module(), err)
	}
	logging.Session("Released namespace %s", p.Module())
	return nil
}

// Query runs goal in the session. By default results are unlimited, engine
// errors are caught and solutions are normalized.
func (p *Prolog) Query(ctx context.Context, goal string, opts ...CallOption) *Results {
	c := newCall(true, opts)
	return p.exec.Query(ctx, p.sess, goal, c.queryOptions())
}

// Consult loads the knowledge base at path. Engine errors are not caught by
// default.
func (p *Prolog) Consult(ctx context.Context, path string, opts ...CallOption) error {
	return p.consult(ctx, path, true, opts)
}

// ConsultText loads knowledge-base text. Engine errors are not caught by
// default.
func (p *Prolog) ConsultText(ctx context.Context, text string, opts ...CallOption) error {
	return p.consult(ctx, text, false, opts)
}

func (p *Prolog) consult(ctx context.Context, source string, isPath bool, opts []CallOption) error {
	c := newCall(false, opts)
	dir := p.tempDir
	if c.tempDir != "" {
		dir = c.tempDir
	}
	return p.loader.Consult(ctx, p.sess, source, consult.Options{
		IsPath:      isPath,
		CatchErrors: c.catchErrors,
		TempDir:     dir,
	})
}

// Asserta adds clause before the existing clauses of its predicate.
func (p *Prolog) Asserta(ctx context.Context, clause string, opts ...CallOption) error {
	return p.mutate(ctx, "asserta", clause, opts)
}

// Assertz adds clause after the existing clauses of its predicate.
func (p *Prolog) Assertz(ctx context.Context, clause string, opts ...CallOption) error {
	return p.mutate(ctx, "assertz", clause, opts)
}

// Dynamic declares indicator (name/arity) dynamic.
func (p *Prolog) Dynamic(ctx context.Context, indicator string, opts ...CallOption) error {
	return p.mutate(ctx, "dynamic", indicator, opts)
}

// Retract removes the first clause unifying with clause.
func (p *Prolog) Retract(ctx context.Context, clause string, opts ...CallOption) error {
	return p.mutate(ctx, "retract", clause, opts)
}

// Retractall removes every clause whose head unifies with head.
func (p *Prolog) Retractall(ctx context.Context, head string, opts ...CallOption) error {
	return p.mutate(ctx, "retractall", head, opts)
}

func (p *Prolog) mutate(ctx context.Context, pred, text string, opts []CallOption) error {
	c := newCall(false, opts)
	text = strings.TrimSuffix(strings.TrimSpace(text), ".")
	goal := pred + "((" + text + "))"

	qo := c.queryOptions()
	qo.MaxResults = 1
	sols, err := p.exec.Query(ctx, p.sess, goal, qo).Collect()

	event := logging.AuditEvent{
		EventType: logging.AuditMutation,
		Target:    goal,
		Success:   err == nil && len(sols) > 0,
	}
	if err != nil {
		event.Error = err.Error()
	}
	logging.AuditFor(p.Module()).Log(event)

	if err != nil {
		return err
	}
	if len(sols) == 0 && !c.catchErrors {
		return fmt.Errorf("%w: %s", ErrNoSolution, p.sess.Qualify(goal))
	}
	return nil
}
