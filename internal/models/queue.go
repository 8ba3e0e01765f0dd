package models

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the state of a queued background job.
type JobStatus string

const (
	JobPending JobStatus = "Pending"
	JobSuccess JobStatus = "Success"
	JobFailed  JobStatus = "Failed"
)

// ParseJobStatus accepts any casing of a known status.
func ParseJobStatus(s string) (JobStatus, error) {
	for _, status := range []JobStatus{JobPending, JobSuccess, JobFailed} {
		if strings.EqualFold(s, string(status)) {
			return status, nil
		}
	}
	return "", fmt.Errorf("unrecognized job status %q", s)
}

// QueueJob is an entry of the admin job queue.
type QueueJob struct {
	ID           uuid.UUID       `json:"id"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	ScheduledAt  *time.Time      `json:"scheduled_at"`
	FailureCount int             `json:"failure_count"`
	Status       JobStatus       `json:"status"`
	Job          json.RawMessage `json:"job"`
	ErrorMessage json.RawMessage `json:"error_message"`
	ParentID     *uuid.UUID      `json:"parent_id"`
	ChildID      *uuid.UUID      `json:"child_id"`
}

type jobTag struct {
	Version string `json:"version"`
	Type    string `json:"type"`
}

func (j *QueueJob) tag() jobTag {
	var tag jobTag
	_ = json.Unmarshal(j.Job, &tag)
	return tag
}

// Version is the job payload version, e.g. V1.
func (j *QueueJob) Version() string {
	return j.tag().Version
}

// Type is the job kind within its version, e.g. SendInvitationEmail.
func (j *QueueJob) Type() string {
	return j.tag().Type
}

// Error renders the job's error payload as text. The server stores errors
// as JSON values, so strings are unquoted and other shapes are compacted.
func (j *QueueJob) Error() string {
	if len(j.ErrorMessage) == 0 || string(j.ErrorMessage) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(j.ErrorMessage, &s); err == nil {
		return s
	}
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(j.ErrorMessage, &tagged); err == nil && len(tagged) == 1 {
		for kind, value := range tagged {
			var inner string
			if err := json.Unmarshal(value, &inner); err == nil {
				return kind + ": " + inner
			}
		}
	}
	return string(j.ErrorMessage)
}

// QueueQuery filters the queue listing.
type QueueQuery struct {
	Status *JobStatus
}

// Encode renders the query string, without a leading '?'.
func (q QueueQuery) Encode() string {
	values := url.Values{}
	if q.Status != nil {
		values.Set("status", strings.ToLower(string(*q.Status)))
	}
	return values.Encode()
}
