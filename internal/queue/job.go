package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobType selects the handler of a job.
type JobType string

const (
	JobCalendarSync   JobType = "calendar_sync"
	JobCalendarUpdate JobType = "calendar_update"
	JobCalendarDelete JobType = "calendar_delete"
	JobCalendarWatch  JobType = "calendar_watch"
	JobGmail          JobType = "gmail"
	JobGitHub         JobType = "github"
	JobNotion         JobType = "notion"
	JobAsana          JobType = "asana"
	JobSlack          JobType = "slack"
)

func (t JobType) Valid() bool {
	switch t {
	case JobCalendarSync, JobCalendarUpdate, JobCalendarDelete, JobCalendarWatch,
		JobGmail, JobGitHub, JobNotion, JobAsana, JobSlack:
		return true
	}
	return false
}

// Provider is the external API a job type talks to.
type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderSlack  Provider = "slack"
	ProviderNotion Provider = "notion"
	ProviderGitHub Provider = "github"
	ProviderAsana  Provider = "asana"
)

func (t JobType) Provider() Provider {
	switch t {
	case JobCalendarSync, JobCalendarUpdate, JobCalendarDelete, JobCalendarWatch, JobGmail:
		return ProviderGoogle
	case JobSlack:
		return ProviderSlack
	case JobNotion:
		return ProviderNotion
	case JobGitHub:
		return ProviderGitHub
	default:
		return ProviderAsana
	}
}

// Job is a unit of queued work. Higher Priority runs first; Seq breaks ties
// in insertion order and is assigned by the store.
type Job struct {
	ID           string          `json:"id"`
	Type         JobType         `json:"type"`
	UserID       uint            `json:"userId"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Priority     float64         `json:"priority"`
	Retries      int             `json:"retries"`
	MaxRetries   *int            `json:"maxRetries,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	ScheduledFor time.Time       `json:"scheduledFor"`
	LastError    string          `json:"lastError,omitempty"`
	Seq          int64           `json:"seq"`
}

// NewJob builds a job with an encoded payload. MaxRetries is filled from the
// provider policy on enqueue when left nil.
func NewJob(jobType JobType, userID uint, payload any, priority float64) (Job, error) {
	if !jobType.Valid() {
		return Job{}, fmt.Errorf("unknown job type %q", jobType)
	}
	job := Job{
		ID:       uuid.NewString(),
		Type:     jobType,
		UserID:   userID,
		Priority: priority,
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Job{}, fmt.Errorf("encode %s payload: %w", jobType, err)
		}
		job.Payload = raw
	}
	return job, nil
}

// WithMaxRetries overrides the provider policy's retry bound. Zero means the
// first failure drops the job.
func (j Job) WithMaxRetries(n int) Job {
	if n < 0 {
		n = 0
	}
	j.MaxRetries = &n
	return j
}

// Decode unmarshals the payload into v.
func (j *Job) Decode(v any) error {
	if len(j.Payload) == 0 {
		return fmt.Errorf("job %s has no payload", j.ID)
	}
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", j.Type, err)
	}
	return nil
}

// Due reports whether the job may run at now.
func (j *Job) Due(now time.Time) bool {
	return !j.ScheduledFor.After(now)
}

// before orders jobs by descending priority, then insertion.
func before(a, b *Job) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.Seq < b.Seq
}
