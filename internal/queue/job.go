package queue

import (
	"encoding/json"
	"time"
)

// Options control retry and retention of one job. Zero fields take the
// queue defaults.
type Options struct {
	Attempts         int
	Backoff          time.Duration
	RemoveOnComplete *bool
	RemoveOnFail     int
}

func (o Options) merge(def Options) Options {
	if o.Attempts <= 0 {
		o.Attempts = def.Attempts
	}
	if o.Attempts <= 0 {
		o.Attempts = 1
	}
	if o.Backoff <= 0 {
		o.Backoff = def.Backoff
	}
	if o.RemoveOnComplete == nil {
		o.RemoveOnComplete = def.RemoveOnComplete
	}
	if o.RemoveOnFail <= 0 {
		o.RemoveOnFail = def.RemoveOnFail
	}
	return o
}

type Job struct {
	ID               string          `json:"id"`
	Payload          json.RawMessage `json:"payload"`
	AttemptsMade     int             `json:"attemptsMade"`
	MaxAttempts      int             `json:"maxAttempts"`
	Backoff          time.Duration   `json:"backoff"`
	RemoveOnComplete bool            `json:"removeOnComplete"`
	RemoveOnFail     int             `json:"removeOnFail"`
	CreatedAt        time.Time       `json:"createdAt"`
	LastError        string          `json:"lastError,omitempty"`
	FinishedAt       *time.Time      `json:"finishedAt,omitempty"`
}

// Decode unmarshals the job payload into dst.
func (j Job) Decode(dst any) error {
	if len(j.Payload) == 0 {
		return ErrPayload
	}
	return json.Unmarshal(j.Payload, dst)
}

type Stats struct {
	Waiting   int64 `json:"waiting"`
	Delayed   int64 `json:"delayed"`
	Active    int64 `json:"active"`
	Failed    int64 `json:"failed"`
	Completed int64 `json:"completed"`
}

// completedKeep bounds the completed list when jobs are retained.
const completedKeep = 1000
