package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ShutdownHookTimeout bounds how long Shutdown waits for hooks.
const ShutdownHookTimeout = 5 * time.Second

// NewJobContext wraps the parent context for a job. The derived context is
// cancelled by Shutdown.
func NewJobContext(parent context.Context) *JobContext {
	ctx, cancel := context.WithCancel(parent)
	return &JobContext{
		Ctx:           ctx,
		cancel:        cancel,
		shutdownHooks: make([]func(string), 0),
	}
}

// Shutdown runs all registered hooks concurrently, waits up to
// ShutdownHookTimeout, then cancels the context. Idempotent; hooks run
// exactly once.
func (jc *JobContext) Shutdown(reason string) {
	jc.shutdownMu.Lock()
	defer jc.shutdownMu.Unlock()

	if jc.shutdownOnce {
		return
	}
	jc.shutdownOnce = true

	slog.Info("Job shutdown initiated", slog.String("reason", reason))

	var wg sync.WaitGroup
	for _, hook := range jc.shutdownHooks {
		wg.Add(1)
		go func(h func(string)) {
			defer wg.Done()
			runHook(h, reason)
		}(hook)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Debug("All shutdown hooks completed")
	case <-time.After(ShutdownHookTimeout):
		slog.Warn("Shutdown hooks timed out", slog.Duration("timeout", ShutdownHookTimeout))
	}

	jc.cancel()
}

// OnShutdown registers a callback for Shutdown. Callbacks run concurrently.
// Registering after shutdown runs the callback immediately on its own
// goroutine.
func (jc *JobContext) OnShutdown(callback func(reason string)) {
	jc.shutdownMu.Lock()
	defer jc.shutdownMu.Unlock()

	if jc.shutdownOnce {
		go runHook(callback, "job already shut down")
		return
	}
	jc.shutdownHooks = append(jc.shutdownHooks, callback)
}

// runHook isolates hook panics so one bad hook cannot take down shutdown.
func runHook(hook func(string), reason string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Shutdown hook panicked", slog.Any("panic", r))
		}
	}()
	hook(reason)
}

// IsShutdown reports whether the job context has been cancelled.
func (jc *JobContext) IsShutdown() bool {
	select {
	case <-jc.Ctx.Done():
		return true
	default:
		return false
	}
}

// Done is shorthand for jc.Ctx.Done().
func (jc *JobContext) Done() <-chan struct{} {
	return jc.Ctx.Done()
}

// Err is shorthand for jc.Ctx.Err().
func (jc *JobContext) Err() error {
	return jc.Ctx.Err()
}

func generateJobID() string {
	return "job_" + uuid.NewString()
}
