package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/vet360/vet360/internal/authz"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskProfileAudit records a stored profile change in audit_logs.
	TaskProfileAudit = "profile:audit"
)

// ProfileAuditPayload describes one stored profile change.
type ProfileAuditPayload struct {
	ActorUID string              `json:"actor_uid,omitempty"`
	UID      string              `json:"uid"`
	Update   authz.ProfileUpdate `json:"update"`
	At       time.Time           `json:"at"`
}

// NewProfileAuditTask constructs an Asynq task.
func NewProfileAuditTask(payload ProfileAuditPayload) (*asynq.Task, error) {
	if payload.UID == "" {
		return nil, fmt.Errorf("jobs: profile audit: uid required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskProfileAudit, data, asynq.MaxRetry(5)), nil
}
