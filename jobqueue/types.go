// Package jobqueue implements the Job Scheduler (C7): a bounded-concurrency
// worker pool backed by a durable Redis queue and a persistent Postgres job
// table, with cooperative cancellation and LISTEN/NOTIFY progress fan-out.
package jobqueue

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Job mirrors the persistent job table row.
type Job struct {
	ID                      string
	UserID                  string
	CollectionID            string
	Type                    string
	Status                  Status
	InputData               string // JSON
	ProcessingOptions       string // JSON
	ResultData              string // JSON, empty until the job completes
	ProgressPercent         int
	CurrentStep             string
	TotalSteps              *int
	ErrorMessage            string
	DocumentsProcessed      int
	ChunksCreated           int
	EstimatedDurationSecond int
	CreatedAt               time.Time
	StartedAt               *time.Time
	CompletedAt             *time.Time
	ProcessingTimeSeconds   *float64
}

// SubmitInput is the caller-facing request to enqueue a job.
type SubmitInput struct {
	UserID                  string
	CollectionID            string
	Type                    string
	InputData               string
	ProcessingOptions       string
	EstimatedDurationSecond int
}

func (j *Job) IsTerminal() bool {
	switch j.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}
