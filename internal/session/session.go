// Package session allocates isolated namespaces inside the shared engine.
//
// A Session owns nothing but its namespace key. Facts and rules live in the
// engine; every goal issued for the session is qualified with the key so the
// engine resolves it inside that namespace only.
package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"prologns/internal/engine"
	"prologns/internal/logging"
)

var (
	// ErrInvalidNamespace is returned for names that cannot be spliced into
	// goal text as a plain atom.
	ErrInvalidNamespace = errors.New("invalid namespace")
	// ErrReservedNamespace is returned for names the engine uses itself.
	ErrReservedNamespace = errors.New("reserved namespace")
)

// reserved holds the engine's own module names.
var reserved = map[string]struct{}{
	"user":   {},
	"system": {},
	"prolog": {},
}

// Session is one logical instance of the engine.
type Session struct {
	namespace string
}

// New registers namespace with eng and returns a session bound to it. An
// empty namespace gets a random one. Passing the namespace of an existing
// session attaches to it.
func New(eng engine.Namespacer, namespace string) (*Session, error) {
	if namespace == "" {
		namespace = Generate()
	}
	if err := Validate(namespace); err != nil {
		return nil, err
	}
	if err := eng.NewNamespace(namespace); err != nil {
		return nil, fmt.Errorf("failed to create namespace %s: %w", namespace, err)
	}

	logging.SessionDebug("session created: namespace=%s", namespace)
	logging.AuditFor(namespace).Log(logging.AuditEvent{
		EventType: logging.AuditSessionCreate,
		Target:    namespace,
		Success:   true,
	})
	return &Session{namespace: namespace}, nil
}

// Generate returns a fresh namespace: "m" followed by a random 128-bit id in
// hex.
func Generate() string {
	return "m" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Validate checks that namespace is usable.
func Validate(namespace string) error {
	if namespace == "" {
		return fmt.Errorf("%w: empty", ErrInvalidNamespace)
	}
	if !engine.IsIdentifier(namespace) {
		return fmt.Errorf("%w: %q must match [a-z][a-zA-Z0-9_]*", ErrInvalidNamespace, namespace)
	}
	if _, ok := reserved[namespace]; ok {
		return fmt.Errorf("%w: %q", ErrReservedNamespace, namespace)
	}
	return nil
}

// Namespace returns the session's namespace key.
func (s *Session) Namespace() string { return s.namespace }

// Qualify rewrites goal to run inside the session's namespace.
func (s *Session) Qualify(goal string) string {
	return engine.Qualify(s.namespace, goal)
}

func (s *Session) String() string { return "session(" + s.namespace + ")" }
