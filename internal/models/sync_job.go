package models

import (
	"encoding/json"
	"time"
)

// SyncJob is one unit of background work tracked by the orchestrator.
// Payload holds the kind-specific parameters, validated at enqueue time.
type SyncJob struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	Status      string          `json:"status"`
	Payload     json.RawMessage `json:"payload"`
	Progress    int             `json:"progress"`
	Message     string          `json:"message,omitempty"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   time.Time       `json:"started_at,omitempty"`
	FinishedAt  time.Time       `json:"finished_at,omitempty"`
}

// Finished reports whether the job reached a terminal status.
func (j *SyncJob) Finished() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
