package dispatch

import "time"

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job is a queued dispatch. Its ID is the AI request id it resolves.
type Job struct {
	ID string `gorm:"primaryKey;size:26" json:"id"` // ULID length

	RoomID string `gorm:"size:26;index;not null" json:"roomId"`
	UserID string `gorm:"size:128;index:uniq_job_user_idempo,unique,priority:1;not null" json:"userId"`

	Kind  string `gorm:"type:varchar(16);not null" json:"kind"`
	Input string `gorm:"type:text" json:"input"`

	IdempotencyKey *string `gorm:"type:varchar(128);index:uniq_job_user_idempo,unique,priority:2" json:"idempotencyKey,omitempty"`

	Status JobStatus `gorm:"type:varchar(16);index;not null" json:"status"`

	// Filled when succeeded
	Result *string `gorm:"type:text" json:"result,omitempty"`

	// Filled when failed
	Error *string `gorm:"type:text" json:"error,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Job) TableName() string { return "ai_jobs" }

func Models() []any {
	return []any{&Job{}}
}
