package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/divviup/divviup-console/internal/validation"
)

const (
	MinBatchSizeFloor       = 100
	MinTimePrecisionSeconds = 60
	MaxTimePrecisionSeconds = 2592000
)

// QueryType is derived from a task's batch configuration.
type QueryType string

const (
	QueryTypeTimeInterval QueryType = "time-interval"
	QueryTypeFixedSize    QueryType = "fixed-size"
)

// ExpirationState describes whether a task still accepts reports.
type ExpirationState string

const (
	ExpirationEnabled  ExpirationState = "enabled"
	ExpirationDisabled ExpirationState = "disabled"
)

// ReportCounters count the fate of uploaded reports. Server owned.
type ReportCounters struct {
	ReportCounterIntervalCollected  uint64 `json:"report_counter_interval_collected"`
	ReportCounterDecodeFailure      uint64 `json:"report_counter_decode_failure"`
	ReportCounterDecryptFailure     uint64 `json:"report_counter_decrypt_failure"`
	ReportCounterExpired            uint64 `json:"report_counter_expired"`
	ReportCounterOutdatedKey        uint64 `json:"report_counter_outdated_key"`
	ReportCounterSuccess            uint64 `json:"report_counter_success"`
	ReportCounterTooEarly           uint64 `json:"report_counter_too_early"`
	ReportCounterTaskExpired        uint64 `json:"report_counter_task_expired"`
	ReportCounterDuplicateExtension uint64 `json:"report_counter_duplicate_extension"`
}

// AggregationJobCounters count aggregation job outcomes. Server owned.
type AggregationJobCounters struct {
	AggregationJobCounterSuccess                   uint64 `json:"aggregation_job_counter_success"`
	AggregationJobCounterHelperBatchCollected      uint64 `json:"aggregation_job_counter_helper_batch_collected"`
	AggregationJobCounterHelperReportReplayed      uint64 `json:"aggregation_job_counter_helper_report_replayed"`
	AggregationJobCounterHelperReportDropped       uint64 `json:"aggregation_job_counter_helper_report_dropped"`
	AggregationJobCounterHelperHpkeUnknownConfigID uint64 `json:"aggregation_job_counter_helper_hpke_unknown_config_id"`
	AggregationJobCounterHelperHpkeDecryptFailure  uint64 `json:"aggregation_job_counter_helper_hpke_decrypt_failure"`
	AggregationJobCounterHelperVdafPrepError       uint64 `json:"aggregation_job_counter_helper_vdaf_prep_error"`
	AggregationJobCounterHelperTaskExpired         uint64 `json:"aggregation_job_counter_helper_task_expired"`
	AggregationJobCounterHelperInvalidMessage      uint64 `json:"aggregation_job_counter_helper_invalid_message"`
	AggregationJobCounterHelperReportTooEarly      uint64 `json:"aggregation_job_counter_helper_report_too_early"`
	AggregationJobCounterHelperBatchMismatch       uint64 `json:"aggregation_job_counter_helper_batch_mismatch"`
}

// Task is a DAP measurement task. The task id is opaque.
type Task struct {
	ID                         string     `json:"id"`
	AccountID                  uuid.UUID  `json:"account_id"`
	Name                       string     `json:"name"`
	Vdaf                       Vdaf       `json:"vdaf"`
	MinBatchSize               uint64     `json:"min_batch_size"`
	MaxBatchSize               *uint64    `json:"max_batch_size"`
	BatchTimeWindowSizeSeconds *uint64    `json:"batch_time_window_size_seconds"`
	TimePrecisionSeconds       uint64     `json:"time_precision_seconds"`
	CreatedAt                  time.Time  `json:"created_at"`
	UpdatedAt                  time.Time  `json:"updated_at"`
	DeletedAt                  *time.Time `json:"deleted_at"`
	Expiration                 *time.Time `json:"expiration"`
	LeaderAggregatorID         uuid.UUID  `json:"leader_aggregator_id"`
	HelperAggregatorID         uuid.UUID  `json:"helper_aggregator_id"`
	CollectorCredentialID      uuid.UUID  `json:"collector_credential_id"`

	ReportCounters
	AggregationJobCounters
}

func (t *Task) QueryType() QueryType {
	if t.MaxBatchSize != nil {
		return QueryTypeFixedSize
	}
	return QueryTypeTimeInterval
}

// ExpirationState is enabled while the task has no expiration or expires
// after now.
func (t *Task) ExpirationState(now time.Time) ExpirationState {
	if t.Expiration == nil || t.Expiration.After(now) {
		return ExpirationEnabled
	}
	return ExpirationDisabled
}

func (t *Task) IsDeleted() bool {
	return t.DeletedAt != nil
}

// NewTask is the body of a task creation.
type NewTask struct {
	Name                       string    `json:"name"`
	LeaderAggregatorID         uuid.UUID `json:"leader_aggregator_id"`
	HelperAggregatorID         uuid.UUID `json:"helper_aggregator_id"`
	Vdaf                       *Vdaf     `json:"vdaf"`
	MinBatchSize               uint64    `json:"min_batch_size"`
	MaxBatchSize               *uint64   `json:"max_batch_size,omitempty"`
	BatchTimeWindowSizeSeconds *uint64   `json:"batch_time_window_size_seconds,omitempty"`
	TimePrecisionSeconds       uint64    `json:"time_precision_seconds"`
	CollectorCredentialID      uuid.UUID `json:"collector_credential_id"`
}

// Validate returns the violations the server would report for t, in the
// same tree shape.
func (t NewTask) Validate() validation.Node {
	errs := validation.Node{}

	if strings.TrimSpace(t.Name) == "" {
		errs.Add("name", validation.NewViolation("required"))
	}

	if t.LeaderAggregatorID == uuid.Nil {
		errs.Add("leader_aggregator_id", validation.NewViolation("required"))
	}
	if t.HelperAggregatorID == uuid.Nil {
		errs.Add("helper_aggregator_id", validation.NewViolation("required"))
	} else if t.HelperAggregatorID == t.LeaderAggregatorID {
		errs.Add("leader_aggregator_id", validation.NewViolation("same"))
		errs.Add("helper_aggregator_id", validation.NewViolation("same"))
	}

	if t.Vdaf == nil {
		errs.Add("vdaf", validation.NewViolation("required"))
	} else if vdaf := t.Vdaf.Validate(); !vdaf.Empty() {
		errs["vdaf"] = vdaf
	}

	if t.MinBatchSize < MinBatchSizeFloor {
		errs.Add("min_batch_size", validation.NewViolation("range", "min", MinBatchSizeFloor))
	}
	if t.MaxBatchSize != nil && *t.MaxBatchSize < t.MinBatchSize {
		errs.Add("max_batch_size", validation.NewViolation("range", "min", t.MinBatchSize))
	}
	if t.BatchTimeWindowSizeSeconds != nil {
		switch {
		case t.MaxBatchSize == nil:
			errs.Add("batch_time_window_size_seconds", validation.NewViolation("missing-max-batch-size").
				WithMessage("requires a max batch size"))
		case *t.BatchTimeWindowSizeSeconds < t.TimePrecisionSeconds:
			errs.Add("batch_time_window_size_seconds", validation.NewViolation("range", "min", t.TimePrecisionSeconds))
		}
	}

	if t.TimePrecisionSeconds < MinTimePrecisionSeconds || t.TimePrecisionSeconds > MaxTimePrecisionSeconds {
		errs.Add("time_precision_seconds", validation.NewViolation("range",
			"min", MinTimePrecisionSeconds, "max", MaxTimePrecisionSeconds).
			WithMessage("must be between 1 minute and 4 weeks"))
	}

	if t.CollectorCredentialID == uuid.Nil {
		errs.Add("collector_credential_id", validation.NewViolation("required"))
	}

	return errs
}

// Expiration is the tri-state expiration of an UpdateTask. A nil
// *Expiration leaves the expiration alone, a zero Expiration clears it so
// the task never expires, and a set At expires the task at that time.
type Expiration struct {
	At *time.Time
}

// NeverExpire re-enables a task indefinitely.
func NeverExpire() *Expiration {
	return &Expiration{}
}

// ExpireAt disables a task at t. A past or current t disables it now.
func ExpireAt(t time.Time) *Expiration {
	t = t.UTC()
	return &Expiration{At: &t}
}

// UpdateTask is a partial task update.
type UpdateTask struct {
	Name       *string
	Expiration *Expiration
}

func (u UpdateTask) MarshalJSON() ([]byte, error) {
	body := make(map[string]any, 2)
	if u.Name != nil {
		body["name"] = *u.Name
	}
	if u.Expiration != nil {
		if u.Expiration.At == nil {
			body["expiration"] = nil
		} else {
			body["expiration"] = u.Expiration.At.UTC().Format(time.RFC3339)
		}
	}
	return json.Marshal(body)
}

func (u *UpdateTask) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*u = UpdateTask{}
	if name, ok := raw["name"]; ok && !bytes.Equal(bytes.TrimSpace(name), []byte("null")) {
		var s string
		if err := json.Unmarshal(name, &s); err != nil {
			return fmt.Errorf("name: %w", err)
		}
		u.Name = &s
	}
	if exp, ok := raw["expiration"]; ok {
		var at *time.Time
		if err := json.Unmarshal(exp, &at); err != nil {
			return fmt.Errorf("expiration: %w", err)
		}
		u.Expiration = &Expiration{At: at}
	}
	return nil
}

func (u UpdateTask) Validate() validation.Node {
	errs := validation.Node{}
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		errs.Add("name", validation.NewViolation("name-too-short"))
	}
	return errs
}

// CollectorAuthToken authenticates a collector to the leader.
type CollectorAuthToken struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// Header renders the token as an Authorization header value.
func (c CollectorAuthToken) Header() string {
	return c.Type + " " + c.Token
}
