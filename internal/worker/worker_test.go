package worker

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/matryer/is"
)

func newTestWorker(onJob JobHandler) *Worker {
	return New(Config{
		URL:   "wss://example.com",
		Token: "test-token",
		OnJob: onJob,
	}, slog.Default())
}

func TestWorker_New(t *testing.T) {
	is := is.New(t)

	worker := newTestWorker(nil)

	is.Equal(worker.url, "wss://example.com") // worker URL should match config
	is.Equal(worker.token, "test-token")      // worker token should match config
	is.True(worker.in != nil)                 // in channel should be initialized
	is.True(worker.out != nil)                // out channel should be initialized
}

func TestWorker_ConnectedState(t *testing.T) {
	is := is.New(t)

	worker := newTestWorker(nil)
	is.True(!worker.IsConnected()) // worker should start disconnected

	worker.setConnected(true)
	is.True(worker.IsConnected()) // connected after setConnected(true)

	worker.setConnected(false)
	is.True(!worker.IsConnected()) // disconnected after setConnected(false)
}

func TestWorker_ConnectResetsBackoff(t *testing.T) {
	is := is.New(t)

	worker := newTestWorker(nil)
	worker.mu.Lock()
	worker.backoffAttempt = 4
	worker.mu.Unlock()

	worker.setConnected(true)

	worker.mu.RLock()
	defer worker.mu.RUnlock()
	is.Equal(worker.backoffAttempt, 0) // successful connection resets backoff
}

func TestWorker_PingProducesPong(t *testing.T) {
	worker := newTestWorker(nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	worker.handleSignal(ctx, &Signal{
		Type: SignalTypePing,
		Data: map[string]any{"id": "test-ping"},
	})

	select {
	case cmd := <-worker.out:
		if cmd.Type != SignalTypePong {
			t.Errorf("expected pong response, got %s", cmd.Type)
		}
		if cmd.Data["id"] != "test-ping" {
			t.Errorf("expected pong to echo ping data, got %v", cmd.Data)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("expected pong response within 100ms")
	}
}

func TestWorker_StartJobInvokesHandler(t *testing.T) {
	jobRooms := make(chan string, 1)
	worker := newTestWorker(func(ctx context.Context, roomName string) error {
		jobRooms <- roomName
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	worker.handleSignal(ctx, &Signal{
		Type: SignalTypeStartJob,
		Data: map[string]any{"room": "standup"},
	})

	select {
	case room := <-jobRooms:
		if room != "standup" {
			t.Errorf("expected job for room standup, got %s", room)
		}
	case <-time.After(time.Second):
		t.Error("job handler was not invoked")
	}
}

func TestWorker_StartJobWithoutRoomIsDropped(t *testing.T) {
	invoked := false
	worker := newTestWorker(func(ctx context.Context, roomName string) error {
		invoked = true
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	worker.handleSignal(ctx, &Signal{Type: SignalTypeStartJob})
	worker.jobs.Wait()

	if invoked {
		t.Error("job handler must not run without a room name")
	}
}

func TestWorker_UnknownSignalIsIgnored(t *testing.T) {
	worker := newTestWorker(nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	worker.handleSignal(ctx, &Signal{
		Type: "unknownType",
		Data: map[string]any{"foo": "bar"},
	})

	select {
	case <-worker.out:
		t.Error("no response expected for unknown signal type")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBackoffFor(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{10, 10 * time.Second},
	}

	for _, tt := range tests {
		if got := backoffFor(tt.attempt); got != tt.want {
			t.Errorf("backoffFor(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestWorker_BackoffDelayHonorsContext(t *testing.T) {
	worker := newTestWorker(nil)

	// Cancel well before the delay elapses; the point is that the timer
	// was armed and the call returned the context error.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := worker.backoffDelay(ctx)
	elapsed := time.Since(start)

	if err != context.DeadlineExceeded {
		t.Errorf("expected context deadline exceeded, got %v", err)
	}
	if elapsed < 40*time.Millisecond {
		t.Errorf("backoff should have waited at least 40ms, waited %v", elapsed)
	}
}
