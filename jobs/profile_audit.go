package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/vet360/vet360/internal/jobs"
	"github.com/vet360/vet360/internal/shared"
)

// AuditRecorder persists audit log entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ProfileAuditJob writes profile:audit tasks to the audit log.
type ProfileAuditJob struct {
	Audit   AuditRecorder
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewProfileAuditJob wires dependencies for the audit handler.
func NewProfileAuditJob(audit AuditRecorder, logger *slog.Logger, metrics *jobmetrics.Metrics) *ProfileAuditJob {
	return &ProfileAuditJob{Audit: audit, Logger: logger, Metrics: metrics}
}

// Handle processes profile audit tasks. Malformed payloads are not retried.
func (j *ProfileAuditJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Audit == nil {
		return errors.New("profile audit: handler not configured")
	}
	tracker := j.Metrics.Track(TaskProfileAudit)
	var payload ProfileAuditPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.UID == "" {
		j.logger().Warn("drop malformed profile audit", slog.Int("payload_bytes", len(t.Payload())))
		return tracker.Drop(asynq.SkipRetry)
	}
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	err := j.Audit.Record(ctx, shared.AuditLog{
		ActorID:  payload.ActorUID,
		Action:   "profile.updated",
		Entity:   "user_profile",
		EntityID: payload.UID,
		Meta:     map[string]any{"changes": payload.Update},
		At:       payload.At,
	})
	if err != nil {
		j.logger().Error("record profile audit", slog.String("uid", payload.UID), slog.Any("error", err))
		return err
	}
	return nil
}

func (j *ProfileAuditJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
