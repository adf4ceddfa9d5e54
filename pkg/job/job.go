package job

import (
	"context"
	"fmt"
	"log/slog"
)

// New builds a Job bound to parentCtx. A missing ID is generated, and a
// positive Timeout bounds the job's lifetime.
func New(parentCtx context.Context, cfg Config) (*Job, error) {
	if cfg.RoomName == "" {
		return nil, fmt.Errorf("room name is required")
	}

	id := cfg.ID
	if id == "" {
		id = generateJobID()
	}

	ctx := parentCtx
	var cancel context.CancelFunc
	if cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(parentCtx, cfg.Timeout)
	}

	j := &Job{
		ID:       id,
		RoomName: cfg.RoomName,
		Context:  NewJobContext(ctx),
	}
	if cancel != nil {
		j.Context.OnShutdown(func(string) { cancel() })
	}

	slog.Info("Created new job",
		slog.String("job_id", id),
		slog.String("room_name", cfg.RoomName),
		slog.Duration("timeout", cfg.Timeout))
	return j, nil
}

// Shutdown ends the job, running registered shutdown hooks with the reason.
func (j *Job) Shutdown(reason string) {
	slog.Info("Shutting down job",
		slog.String("job_id", j.ID),
		slog.String("reason", reason))
	j.Context.Shutdown(reason)
}

// Wait blocks until the job ends and returns context.Canceled or
// context.DeadlineExceeded.
func (j *Job) Wait() error {
	<-j.Context.Done()
	return j.Context.Err()
}

func (j *Job) IsActive() bool {
	return !j.Context.IsShutdown()
}

func (j *Job) String() string {
	status := "active"
	if j.Context.IsShutdown() {
		status = "shutdown"
	}
	return fmt.Sprintf("Job{ID: %s, Room: %s, Status: %s}", j.ID, j.RoomName, status)
}
