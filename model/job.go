package model

import (
	"encoding/json"
	"time"
)

// JobStatus is the job state machine's status column.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether the status never transitions out.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// JobKind distinguishes the two structurally identical job tables.
type JobKind string

const (
	JobKindReceipt JobKind = "receipt"
	JobKindRedeem  JobKind = "redeem"
)

// Job is the row shape shared by the receipt_jobs and redeem_jobs tables.
// The two tables are structurally identical (see jobproc.Worker), so one Go
// type models both; Kind and ReferenceID disambiguate which table a given
// value came from.
type Job struct {
	JobID         string          `json:"job_id" db:"job_id"`
	Kind          JobKind         `json:"-" db:"-"`
	Tenant        string          `json:"tenant" db:"tenant"`
	ReferenceID   string          `json:"reference_id" db:"reference_id"`
	Status        JobStatus       `json:"status" db:"status"`
	Attempts      int             `json:"attempts" db:"attempts"`
	LastError     string          `json:"last_error,omitempty" db:"last_error"`
	ResultSummary json.RawMessage `json:"result_summary,omitempty" db:"result_summary"`
	AvailableAt   time.Time       `json:"available_at" db:"available_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}
