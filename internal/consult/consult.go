// Package consult loads knowledge-base text into a session.
//
// The engine only consults named files and does not reliably reconsult a path
// it has already loaded, so every call stages the text in a fresh file and
// deletes it once the engine is done with it.
package consult

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"prologns/internal/logging"
	"prologns/internal/query"
	"prologns/internal/session"
)

// ErrSourceNotFound is returned when a knowledge-base path does not exist.
// The returned error also matches fs.ErrNotExist.
var ErrSourceNotFound = errors.New("knowledge base source not found")

// ResourceError reports a failure to create, write or delete a staged file.
// It is never suppressed by the error policy.
type ResourceError struct {
	Op   string
	Path string
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("failed to %s staged file %s: %v", e.Op, e.Path, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// Options controls one consult call.
type Options struct {
	// IsPath makes the source argument a file path instead of the text.
	IsPath bool
	// CatchErrors absorbs engine failures while loading.
	CatchErrors bool
	// TempDir is where staged files are written. Empty means os.TempDir().
	TempDir string
}

// Querier runs session goals. *query.Executor implements it.
type Querier interface {
	Query(ctx context.Context, sess *session.Session, goal string, opts query.Options) *query.Results
}

// Loader stages knowledge bases and consults them into sessions.
type Loader struct {
	q      Querier
	stager stager
}

// NewLoader returns a loader issuing its consult goals through q.
func NewLoader(q Querier) *Loader {
	return &Loader{q: q, stager: defaultStager()}
}

// Consult loads source into sess. Load failures inside the engine are
// reported through the CatchErrors policy; missing sources and staging
// failures are always returned.
func (l *Loader) Consult(ctx context.Context, sess *session.Session, source string, opts Options) error {
	timer := logging.StartTimer(logging.CategoryConsult, "consult")
	defer timer.Stop()

	target := "<text>"
	text := source
	if opts.IsPath {
		target = source
		data, err := os.ReadFile(source)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("%w: %s: %w", ErrSourceNotFound, source, err)
			}
			return &ResourceError{Op: "read", Path: source, Err: err}
		}
		text = string(data)
	}

	start := time.Now()
	err := l.stager.stage(opts.TempDir, text, func(path string) error {
		goal := "consult(" + QuoteAtom(EnginePath(path)) + ")"
		logging.ConsultDebug("consulting %s into %s (%d bytes)", target, sess.Namespace(), len(text))

		res := l.q.Query(ctx, sess, goal, query.Options{
			MaxResults:  1,
			CatchErrors: opts.CatchErrors,
			Normalize:   true,
		})
		_, err := res.Collect()
		return err
	})

	event := logging.AuditEvent{
		EventType: logging.AuditConsult,
		Target:    target,
		Success:   err == nil,
		Duration:  time.Since(start),
	}
	if err != nil {
		event.Error = err.Error()
		logging.Get(logging.CategoryConsult).Warn("consult of %s into %s failed: %v", target, sess.Namespace(), err)
	}
	logging.AuditFor(sess.Namespace()).Log(event)
	return err
}

// EnginePath renders path with forward slashes whatever the host separator.
func EnginePath(path string) string {
	return strings.ReplaceAll(filepath.ToSlash(path), `\`, "/")
}

// QuoteAtom renders s as a single-quoted atom.
func QuoteAtom(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
