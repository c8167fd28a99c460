// Package audit records security-relevant events: impersonation
// transitions and directory mutations.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Actions recorded by the authorization core.
const (
	ActionImpersonationStart = "impersonation.start"
	ActionImpersonationEnd   = "impersonation.end"
	ActionEntityCreate       = "entity.create"
	ActionEntityUpdate       = "entity.update"
	ActionEntityDelete       = "entity.delete"
)

// TaskTypeRecord is the asynq task type for asynchronous audit writes.
const TaskTypeRecord = "audit:record"

// Event is one audit record.
type Event struct {
	ActorID  string         `json:"actor_id"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Meta     map[string]any `json:"meta,omitempty"`
	At       time.Time      `json:"at"`
}

// Recorder persists audit events.
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// PGWriter writes events into the audit_logs table.
type PGWriter struct {
	pool *pgxpool.Pool
}

// NewPGWriter returns a PGWriter.
func NewPGWriter(pool *pgxpool.Pool) *PGWriter {
	return &PGWriter{pool: pool}
}

// Record persists the event.
func (w *PGWriter) Record(ctx context.Context, event Event) error {
	if w == nil || w.pool == nil {
		return errors.New("audit: writer not initialised")
	}
	if event.Action == "" || event.Entity == "" || event.EntityID == "" {
		return errors.New("audit: event requires action/entity/entity_id")
	}
	meta, err := json.Marshal(event.Meta)
	if err != nil {
		return err
	}
	_, err = w.pool.Exec(ctx, `
		INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE(NULLIF($6, '0001-01-01T00:00:00Z'::timestamptz), NOW()))`,
		event.ActorID, event.Action, event.Entity, event.EntityID, meta, event.At)
	return err
}

var _ Recorder = (*PGWriter)(nil)

// Dispatcher enqueues events for background persistence so request paths
// never block on the audit write. Falls back to the synchronous writer when
// no queue client is configured.
type Dispatcher struct {
	client   *asynq.Client
	fallback Recorder
	logger   *slog.Logger
}

// NewDispatcher returns a Dispatcher.
func NewDispatcher(client *asynq.Client, fallback Recorder, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{client: client, fallback: fallback, logger: logger}
}

// Record enqueues the event, or writes it inline when no client is set.
func (d *Dispatcher) Record(ctx context.Context, event Event) error {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	if d.client == nil {
		if d.fallback != nil {
			return d.fallback.Record(ctx, event)
		}
		return errors.New("audit: no recorder configured")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := d.client.EnqueueContext(ctx, asynq.NewTask(TaskTypeRecord, payload)); err != nil {
		if d.logger != nil {
			d.logger.Warn("audit enqueue, writing inline", slog.Any("error", err))
		}
		if d.fallback != nil {
			return d.fallback.Record(ctx, event)
		}
		return err
	}
	return nil
}

var _ Recorder = (*Dispatcher)(nil)

// HandleRecordTask returns the asynq handler that persists enqueued events.
func HandleRecordTask(writer Recorder) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var event Event
		if err := json.Unmarshal(t.Payload(), &event); err != nil {
			return asynq.SkipRetry
		}
		return writer.Record(ctx, event)
	}
}
