package logging

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// AuditEventType names an audited operation. Each event also carries a
// pre-formatted fact so audit logs can be consulted back into an engine.
type AuditEventType string

const (
	AuditSessionCreate AuditEventType = "session_create"
	AuditConsult       AuditEventType = "consult"
	AuditQueryStart    AuditEventType = "query_start"
	AuditQueryEnd      AuditEventType = "query_end"
	AuditMutation      AuditEventType = "mutation"
)

// AuditEvent is one structured audit entry.
// Fact format: audit_event(Ts, Event, Namespace, Target, Success).
type AuditEvent struct {
	Timestamp time.Time
	EventType AuditEventType
	Namespace string
	Target    string
	Success   bool
	Duration  time.Duration
	Count     int
	Error     string
}

// Fact renders the event as a ground fact.
func (e AuditEvent) Fact() string {
	return fmt.Sprintf("audit_event(%d, %s, %s, %s, %t).",
		e.Timestamp.UnixMilli(), e.EventType, quoteAtom(e.Namespace), quoteAtom(e.Target), e.Success)
}

// AuditLogger writes audit events scoped to one namespace.
type AuditLogger struct {
	namespace string
}

// AuditFor returns an audit logger scoped to namespace.
func AuditFor(namespace string) *AuditLogger {
	return &AuditLogger{namespace: namespace}
}

// Log writes event. Timestamp and Namespace are filled when empty.
func (a *AuditLogger) Log(event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Namespace == "" {
		event.Namespace = a.namespace
	}

	fields := []zap.Field{
		zap.String("event", string(event.EventType)),
		zap.String("namespace", event.Namespace),
		zap.String("target", event.Target),
		zap.Bool("success", event.Success),
		zap.String("fact", event.Fact()),
	}
	if event.Duration > 0 {
		fields = append(fields, zap.Duration("duration", event.Duration))
	}
	if event.Count > 0 {
		fields = append(fields, zap.Int("count", event.Count))
	}
	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
	}
	Get(CategoryAudit).Zap().Info("audit", fields...)
}

func quoteAtom(s string) string {
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s) + "'"
}
