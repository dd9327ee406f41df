package jobs

import (
	"encoding/json"
	"time"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusCompleted Status = "completed"
	// StatusDead marks a job that exhausted its attempts; it stays in the
	// table for operator visibility and is never picked up again.
	StatusDead Status = "dead"
)

// Job is a durably enqueued unit of background work executed after RunAt.
// Enqueueing is fire-and-forget: the request that schedules the job returns
// before the job runs.
type Job struct {
	ID        int64           `db:"id"`
	Kind      string          `db:"kind"`
	Payload   json.RawMessage `db:"payload"`
	RunAt     time.Time       `db:"run_at"`
	Attempts  int             `db:"attempts"`
	Status    Status          `db:"status"`
	LastError *string         `db:"last_error"`
	CreatedAt time.Time       `db:"created_at"`
}

func NewJob(kind string, payload any, delay time.Duration) (*Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Job{
		Kind:    kind,
		Payload: raw,
		RunAt:   time.Now().UTC().Add(delay),
		Status:  StatusQueued,
	}, nil
}
