// Package query runs goals inside a session's namespace and exposes their
// solutions as a lazy, pull-based sequence.
package query

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"prologns/internal/engine"
	"prologns/internal/logging"
	"prologns/internal/session"
	"prologns/internal/term"
)

// Unlimited disables the result cap.
const Unlimited = -1

// slowQueryThreshold is the duration above which a finished query is logged
// as a warning.
const slowQueryThreshold = 2 * time.Second

// Options controls one query.
type Options struct {
	// MaxResults caps the number of solutions. Negative means unlimited;
	// zero yields nothing.
	MaxResults int
	// CatchErrors swallows engine execution errors, ending the sequence
	// early without surfacing them.
	CatchErrors bool
	// Normalize projects every solution through term.NormalizeSolution.
	Normalize bool
}

// DefaultOptions returns unlimited results with errors caught and solutions
// normalized.
func DefaultOptions() Options {
	return Options{
		MaxResults:  Unlimited,
		CatchErrors: true,
		Normalize:   true,
	}
}

// Executor submits session goals to the shared engine.
type Executor struct {
	eng engine.Engine
}

// NewExecutor returns an executor bound to eng.
func NewExecutor(eng engine.Engine) *Executor {
	return &Executor{eng: eng}
}

// Query qualifies goal with the session namespace and returns its solutions.
// Nothing is sent to the engine until the first call to Next.
func (x *Executor) Query(ctx context.Context, sess *session.Session, goal string, opts Options) *Results {
	return &Results{
		ctx:       ctx,
		eng:       x.eng,
		namespace: sess.Namespace(),
		goal:      sess.Qualify(goal),
		opts:      opts,
	}
}

// Results is the solution sequence of one goal. It follows the database/sql
// Rows convention and is not safe for concurrent use.
//
//	res := x.Query(ctx, sess, "father(michael, X)", query.DefaultOptions())
//	defer res.Close()
//	for res.Next() {
//		sol := res.Solution()
//		...
//	}
//	if err := res.Err(); err != nil { ... }
type Results struct {
	ctx       context.Context
	eng       engine.Engine
	namespace string
	goal      string
	opts      Options

	cur     engine.Cursor
	started time.Time
	sol     term.Solution
	count   int
	err     error
	done    bool
}

// Goal returns the namespace-qualified goal text.
func (r *Results) Goal() string { return r.goal }

// Next advances to the next solution. It returns false when the sequence is
// exhausted, capped, failed or closed.
func (r *Results) Next() bool {
	if r.done {
		return false
	}
	if r.opts.MaxResults >= 0 && r.count >= r.opts.MaxResults {
		r.finish(nil)
		return false
	}
	if err := r.ctx.Err(); err != nil {
		r.finish(err)
		return false
	}

	if r.cur == nil {
		r.started = time.Now()
		logging.QueryDebug("query start: %s", r.goal)
		logging.AuditFor(r.namespace).Log(logging.AuditEvent{
			EventType: logging.AuditQueryStart,
			Target:    r.goal,
			Success:   true,
		})

		cur, err := r.eng.ExecuteGoal(r.ctx, r.goal)
		if err != nil {
			r.finish(err)
			return false
		}
		r.cur = cur
	}

	if !r.cur.Next() {
		r.finish(r.cur.Err())
		return false
	}

	sol := r.cur.Solution()
	if r.opts.Normalize {
		sol = term.NormalizeSolution(sol)
	} else if sol == nil {
		sol = term.Solution{}
	}
	r.sol = sol
	r.count++
	return true
}

// Solution returns the current solution.
func (r *Results) Solution() term.Solution { return r.sol }

// Err returns the error that ended the sequence, if it was not swallowed.
func (r *Results) Err() error { return r.err }

// Count returns the number of solutions yielded so far.
func (r *Results) Count() int { return r.count }

// Close releases the engine cursor. It is safe to call more than once and
// before the sequence is exhausted.
func (r *Results) Close() error {
	if r.done {
		return nil
	}
	return r.finish(nil)
}

// All returns the remaining solutions as an iterator. Breaking out of the
// loop closes the results. A surfaced error is yielded last with a nil
// solution.
func (r *Results) All() iter.Seq2[term.Solution, error] {
	return func(yield func(term.Solution, error) bool) {
		defer r.Close()
		for r.Next() {
			if !yield(r.Solution(), nil) {
				return
			}
		}
		if err := r.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// Collect drains the remaining solutions.
func (r *Results) Collect() ([]term.Solution, error) {
	var sols []term.Solution
	for sol, err := range r.All() {
		if err != nil {
			return sols, err
		}
		sols = append(sols, sol)
	}
	return sols, nil
}

// finish ends the sequence, closes the cursor and applies the error policy.
func (r *Results) finish(cause error) error {
	r.done = true
	r.sol = nil

	var closeErr error
	if r.cur != nil {
		if err := r.cur.Close(); err != nil {
			closeErr = fmt.Errorf("failed to release cursor: %w", err)
			logging.Get(logging.CategoryQuery).Warn("%s: %v", r.goal, err)
		}
	}

	r.err = r.policy(cause)

	if !r.started.IsZero() {
		elapsed := time.Since(r.started)
		if elapsed > slowQueryThreshold {
			logging.Get(logging.CategoryQuery).Warn("slow query %s took %v", r.goal, elapsed)
		}
		event := logging.AuditEvent{
			EventType: logging.AuditQueryEnd,
			Target:    r.goal,
			Success:   r.err == nil,
			Duration:  elapsed,
			Count:     r.count,
		}
		if r.err != nil {
			event.Error = r.err.Error()
		}
		logging.AuditFor(r.namespace).Log(event)
	}
	return closeErr
}

// policy decides whether cause is surfaced. Cancellation is always surfaced;
// engine execution errors are dropped when CatchErrors is set; anything else
// passes through.
func (r *Results) policy(cause error) error {
	if cause == nil {
		return nil
	}
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		return cause
	}
	if r.opts.CatchErrors && engine.IsExecutionError(cause) {
		logging.QueryDebug("suppressed engine error after %d solutions: %v", r.count, cause)
		return nil
	}
	return cause
}
