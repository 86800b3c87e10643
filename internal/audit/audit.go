// Package audit records authentication-relevant events to append-only sinks.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/appmint/authgate/internal/domain"
	"github.com/appmint/authgate/internal/store"
)

// Sink receives audit events. Implementations must never fail the calling
// request: recording errors are swallowed after logging.
type Sink interface {
	Record(ctx context.Context, event *domain.AuditEvent)
}

// Entry is the caller-facing shape of one audit record.
type Entry struct {
	Actor     string // user id, "anonymous", or "system"
	Action    string // LOGIN, FAILED, DELETE
	Target    string
	Metadata  map[string]string
	IPAddress string
	UserAgent string
}

// NewEvent materializes an Entry into a persistable event.
func NewEvent(e Entry) *domain.AuditEvent {
	actor := e.Actor
	if actor == "" {
		actor = domain.AuditActorAnonymous
	}
	return &domain.AuditEvent{
		ID:        uuid.New().String(),
		Actor:     actor,
		Action:    e.Action,
		Target:    e.Target,
		Metadata:  e.Metadata,
		IPAddress: e.IPAddress,
		UserAgent: e.UserAgent,
		CreatedAt: time.Now().UTC(),
	}
}

// LogSink writes audit events to structured logs.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a log-backed sink.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "audit")}
}

func (s *LogSink) Record(ctx context.Context, event *domain.AuditEvent) {
	attrs := []any{
		"audit_id", event.ID,
		"actor", event.Actor,
		"action", event.Action,
		"target", event.Target,
		"ip", event.IPAddress,
		"user_agent", event.UserAgent,
	}
	for k, v := range event.Metadata {
		attrs = append(attrs, "meta_"+k, v)
	}
	s.logger.Info("audit", attrs...)
}

// StoreSink appends audit events to the audit repository.
type StoreSink struct {
	repo   store.AuditRepository
	logger *slog.Logger
}

// NewStoreSink creates a store-backed sink.
func NewStoreSink(repo store.AuditRepository, logger *slog.Logger) *StoreSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreSink{repo: repo, logger: logger}
}

func (s *StoreSink) Record(ctx context.Context, event *domain.AuditEvent) {
	if err := s.repo.Append(ctx, event); err != nil {
		s.logger.Error("audit append failed", "error", err, "action", event.Action)
	}
}

// MultiSink fans one event out to several sinks.
type MultiSink []Sink

func (m MultiSink) Record(ctx context.Context, event *domain.AuditEvent) {
	for _, s := range m {
		s.Record(ctx, event)
	}
}

// Recorder is the convenience wrapper services hold.
type Recorder struct {
	sink Sink
}

// NewRecorder creates a Recorder over a sink.
func NewRecorder(sink Sink) *Recorder {
	return &Recorder{sink: sink}
}

// Record builds and emits one event.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	if r == nil || r.sink == nil {
		return
	}
	r.sink.Record(ctx, NewEvent(e))
}
