package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/nimbus-hr/nimbus/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSessionPurge is the task type for purging expired login
	// sessions from the registry.
	TaskTypeSessionPurge = "sessions:purge"
)

// NewSessionPurgeTask constructs the purge task. It carries no payload.
func NewSessionPurgeTask() *asynq.Task {
	return asynq.NewTask(TaskTypeSessionPurge, nil)
}

// NewSessionPurgeHandler returns the handler that removes expired session
// records. The Redis copy expires on its own TTL; this keeps the Postgres
// registry from growing without bound.
func NewSessionPurgeHandler(pool *pgxpool.Pool, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("sessions_purge")
		tag, err := pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < NOW()`)
		if err != nil {
			return tracker.End(err)
		}
		if logger != nil && tag.RowsAffected() > 0 {
			logger.Info("purged expired sessions", slog.Int64("count", tag.RowsAffected()))
		}
		return tracker.End(nil)
	}
}
