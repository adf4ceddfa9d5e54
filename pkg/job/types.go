package job

import (
	"context"
	"sync"
	"time"
)

const (
	// AssignmentTimeout is how long the worker waits to accept a job
	// assignment before the server reassigns it.
	AssignmentTimeout = 7500 * time.Millisecond

	// DefaultJobTimeout bounds job execution when no timeout is configured.
	DefaultJobTimeout = 5 * time.Minute
)

// Job is a single agent assignment to a room.
type Job struct {
	ID       string
	RoomName string

	// Context coordinates lifecycle and shutdown for everything the job
	// spawns.
	Context *JobContext
}

// JobContext carries the job's context and runs registered hooks on
// shutdown.
type JobContext struct {
	// Ctx is cancelled when the job ends.
	Ctx context.Context

	cancel        context.CancelFunc
	shutdownHooks []func(string)
	shutdownOnce  bool
	shutdownMu    sync.Mutex
}

// ShutdownInfo records why a job ended.
type ShutdownInfo struct {
	Reason    string
	Timestamp time.Time
	Graceful  bool
}

// Config describes a job to create.
type Config struct {
	// ID for the job. Generated when empty.
	ID string

	// RoomName is the LiveKit room to join.
	RoomName string

	// Timeout bounds the whole job execution. Zero means no timeout.
	Timeout time.Duration
}
