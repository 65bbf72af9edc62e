package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/suPer8Hu/collabnote/internal/ai"
	"github.com/suPer8Hu/collabnote/internal/common"
)

var (
	ErrMalformedJob = errors.New("dispatch: malformed job message")
	// ErrJobInterrupted means the job was not run to a stored outcome and the
	// delivery should be retried.
	ErrJobInterrupted = errors.New("dispatch: job interrupted")
)

// JobMessage is the queue payload of an asynchronous dispatch.
type JobMessage struct {
	JobID        string          `json:"job_id"`
	RoomID       string          `json:"room_id"`
	Kind         string          `json:"kind"`
	Input        string          `json:"input"`
	DocumentData json.RawMessage `json:"document_data,omitempty"`
}

func (m JobMessage) Request() (Request, error) {
	if m.JobID == "" || m.RoomID == "" {
		return Request{}, ErrMalformedJob
	}
	kind, err := ai.ParseKind(m.Kind)
	if err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrMalformedJob, err)
	}
	return Request{RoomID: m.RoomID, RequestID: m.JobID, Kind: kind, Input: m.Input, Document: m.DocumentData}, nil
}

type Enqueuer interface {
	PublishJob(ctx context.Context, msg JobMessage) error
}

type SubmitInput struct {
	RoomID         string
	UserID         string
	Kind           ai.Kind
	Input          string
	Document       json.RawMessage
	IdempotencyKey string
}

// Jobs accepts asynchronous dispatches and runs them from the queue.
type Jobs struct {
	repo       *JobRepo
	dispatcher *Dispatcher
	queue      Enqueuer
	log        zerolog.Logger
}

func NewJobs(repo *JobRepo, dispatcher *Dispatcher, queue Enqueuer, log zerolog.Logger) *Jobs {
	return &Jobs{repo: repo, dispatcher: dispatcher, queue: queue, log: log.With().Str("component", "dispatch.jobs").Logger()}
}

// Submit creates the job, marks its AI request pending and enqueues it. A
// repeated idempotency key returns the existing job with created=false and
// enqueues nothing.
func (j *Jobs) Submit(ctx context.Context, in SubmitInput) (*Job, bool, error) {
	id, err := common.NewULID()
	if err != nil {
		return nil, false, err
	}
	job := &Job{
		ID:     id,
		RoomID: in.RoomID,
		UserID: in.UserID,
		Kind:   string(in.Kind),
		Input:  in.Input,
		Status: JobQueued,
	}
	if in.IdempotencyKey != "" {
		key := in.IdempotencyKey
		job.IdempotencyKey = &key
	}

	job, created, err := j.repo.CreateJobOrGetExisting(ctx, job)
	if err != nil || !created {
		return job, created, err
	}

	req := Request{RoomID: in.RoomID, RequestID: job.ID, Kind: in.Kind, Input: in.Input, Document: in.Document}
	if _, err := j.dispatcher.MarkPending(ctx, req); err != nil {
		j.log.Warn().Err(err).Str("job_id", job.ID).Msg("could not record pending ai request")
	}

	msg := JobMessage{JobID: job.ID, RoomID: in.RoomID, Kind: string(in.Kind), Input: in.Input, DocumentData: in.Document}
	if err := j.queue.PublishJob(ctx, msg); err != nil {
		_ = j.repo.MarkFailed(ctx, job.ID, "enqueue failed")
		return nil, false, fmt.Errorf("enqueue job: %w", err)
	}
	return job, true, nil
}

func (j *Jobs) Get(ctx context.Context, id string) (*Job, error) {
	return j.repo.GetJob(ctx, id)
}

// Handle runs one queue delivery. A dispatch failure is stored on the job
// and the delivery counts as handled. ErrMalformedJob means the message can
// never succeed; ErrJobInterrupted means the context ended or the outcome
// could not be stored, and the message should be redelivered.
func (j *Jobs) Handle(ctx context.Context, body []byte) error {
	var msg JobMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedJob, err)
	}
	req, err := msg.Request()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrJobInterrupted, err)
	}

	start := time.Now()
	if err := j.repo.MarkRunning(ctx, req.RequestID); err != nil {
		j.log.Warn().Err(err).Str("job_id", req.RequestID).Msg("mark job running")
	}

	out := j.dispatcher.Run(ctx, req)
	if err := ctx.Err(); err != nil {
		// the failure came from shutdown, not from the provider
		return fmt.Errorf("%w: %v", ErrJobInterrupted, err)
	}

	if err := j.repo.Finish(ctx, out); err != nil {
		j.log.Error().Err(err).Str("job_id", req.RequestID).Msg("store job outcome")
		return fmt.Errorf("%w: store outcome: %v", ErrJobInterrupted, err)
	}

	if cost := time.Since(start); cost > 2*time.Second {
		j.log.Info().Str("job_id", req.RequestID).Dur("total", cost).Msg("slow job")
	}
	return nil
}
