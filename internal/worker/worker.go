package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	SignalTypePing     = "ping"
	SignalTypePong     = "pong"
	SignalTypeStartJob = "startJob"
	SignalTypeShutdown = "shutdown"
)

const (
	signalBufferSize = 100
	maxBackoff       = 10 * time.Second
	jobDrainTimeout  = 10 * time.Second
)

// JobHandler runs one assigned job. It is invoked on its own goroutine with
// the room name carried by the startJob signal.
type JobHandler func(ctx context.Context, roomName string) error

// Worker maintains a WebSocket registration with the LiveKit server,
// answering pings and dispatching job assignments. Run reconnects with
// exponential backoff until its context is cancelled.
type Worker struct {
	url      string
	token    string
	wsClient *WebSocketClient
	logger   *slog.Logger
	onJob    JobHandler

	jobs sync.WaitGroup
	in   chan *Signal
	out  chan *Command

	mu             sync.RWMutex
	connected      bool
	backoffAttempt int
}

type Config struct {
	URL   string
	Token string

	// OnJob handles startJob signals. When nil, jobs are logged and dropped.
	OnJob JobHandler
}

func New(config Config, logger *slog.Logger) *Worker {
	return &Worker{
		url:      config.URL,
		token:    config.Token,
		logger:   logger,
		onJob:    config.OnJob,
		in:       make(chan *Signal, signalBufferSize),
		out:      make(chan *Command, signalBufferSize),
		wsClient: NewWebSocketClient(config.URL, config.Token, logger),
	}
}

// Run connects and serves signals until ctx is cancelled, reconnecting on
// any connection failure.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Starting worker", slog.String("url", w.url))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Worker shutting down")
			return w.shutdown()
		default:
		}

		if err := w.connectAndRun(ctx); err != nil {
			w.logger.Error("Worker connection failed", slog.String("error", err.Error()))
			if err := w.backoffDelay(ctx); err != nil {
				return err
			}
		}
	}
}

// connectAndRun holds one connection: a reader pumping signals into in, a
// writer draining out, and a processor dispatching signals. Returns when the
// connection breaks or ctx is cancelled.
func (w *Worker) connectAndRun(ctx context.Context) error {
	w.logger.Info("Connecting to LiveKit server")

	if err := w.wsClient.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer func() {
		if err := w.wsClient.Close(); err != nil {
			w.logger.Error("Error closing WebSocket during cleanup", slog.String("error", err.Error()))
		}
	}()

	w.setConnected(true)
	defer w.setConnected(false)

	connCtx, connCancel := context.WithCancel(ctx)
	defer connCancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	spawn := func(fn func(context.Context) error, what string) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(connCtx); err != nil {
				errCh <- fmt.Errorf("%s: %w", what, err)
			}
		}()
	}
	spawn(w.readSignals, "read signals")
	spawn(w.writeCommands, "write commands")

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.processSignals(connCtx)
	}()

	var runErr error
	select {
	case runErr = <-errCh:
	case <-ctx.Done():
	}
	connCancel()
	wg.Wait()
	return runErr
}

func (w *Worker) readSignals(ctx context.Context) error {
	for ctx.Err() == nil {
		signal, err := w.wsClient.ReadSignal(ctx)
		if err != nil {
			return err
		}
		select {
		case w.in <- signal:
		case <-ctx.Done():
		}
	}
	return nil
}

func (w *Worker) writeCommands(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-w.out:
			if err := w.wsClient.WriteCommand(ctx, cmd); err != nil {
				return err
			}
		}
	}
}

func (w *Worker) processSignals(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case signal := <-w.in:
			w.handleSignal(ctx, signal)
		}
	}
}

func (w *Worker) handleSignal(ctx context.Context, signal *Signal) {
	w.logger.Debug("Processing signal", slog.String("type", signal.Type))

	switch signal.Type {
	case SignalTypePing:
		w.sendCommand(ctx, &Command{Type: SignalTypePong, Data: signal.Data})
	case SignalTypeStartJob:
		w.startJob(ctx, signal)
	case SignalTypeShutdown:
		w.logger.Info("Received shutdown signal")
	default:
		w.logger.Warn("Unknown signal type", slog.String("type", signal.Type))
	}
}

func (w *Worker) startJob(ctx context.Context, signal *Signal) {
	roomName, _ := signal.Data["room"].(string)
	if roomName == "" {
		w.logger.Warn("Start job signal without room name")
		return
	}
	if w.onJob == nil {
		w.logger.Warn("No job handler configured, dropping job",
			slog.String("room", roomName))
		return
	}

	w.logger.Info("Starting job", slog.String("room", roomName))
	w.jobs.Add(1)
	go func() {
		defer w.jobs.Done()
		if err := w.onJob(ctx, roomName); err != nil {
			w.logger.Error("Job failed",
				slog.String("room", roomName),
				slog.String("error", err.Error()))
		}
	}()
}

// sendCommand enqueues a command without blocking the signal processor. A
// full out buffer drops the command.
func (w *Worker) sendCommand(ctx context.Context, cmd *Command) {
	select {
	case w.out <- cmd:
	case <-ctx.Done():
	default:
	}
}

// backoffFor doubles from 1s per attempt, capped at maxBackoff.
func backoffFor(attempt int) time.Duration {
	delay := time.Second
	for i := 1; i < attempt && delay < maxBackoff; i++ {
		delay *= 2
	}
	return min(delay, maxBackoff)
}

func (w *Worker) backoffDelay(ctx context.Context) error {
	w.mu.Lock()
	w.backoffAttempt++
	attempt := w.backoffAttempt
	w.mu.Unlock()

	delay := backoffFor(attempt)
	w.logger.Info("Reconnecting with backoff",
		slog.Int("attempt", attempt),
		slog.Duration("delay", delay))

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) setConnected(connected bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if connected && !w.connected {
		w.backoffAttempt = 0
		w.logger.Info("Worker connected successfully")
	}
	w.connected = connected
}

func (w *Worker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

func (w *Worker) shutdown() error {
	w.logger.Info("Shutting down worker")

	jobsDone := make(chan struct{})
	go func() {
		w.jobs.Wait()
		close(jobsDone)
	}()
	select {
	case <-jobsDone:
	case <-time.After(jobDrainTimeout):
		w.logger.Warn("Timed out waiting for active jobs")
	}

	// Writers stopped with the connection context, so closing out here is
	// safe. in stays open for the garbage collector.
	close(w.out)

	if err := w.wsClient.Close(); err != nil {
		w.logger.Error("Error closing WebSocket", slog.String("error", err.Error()))
		return err
	}

	w.logger.Info("Worker shutdown complete")
	return nil
}
