// Package egress ensures every audio track published in a room is submitted
// to the recording service exactly once. Discovery is dual-path: a push path
// driven by track-published callbacks and a pull path that rescans the room's
// current publications, so tracks published before the listener was attached
// are still picked up.
package egress

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lksdk "github.com/livekit/server-sdk-go"
)

const (
	// DefaultRescanInterval is the delay between periodic rescans.
	DefaultRescanInterval = 6 * time.Second

	// DefaultRescanCount bounds the number of periodic rescans. Together with
	// the interval this gives a two minute grace window, after which the push
	// path is assumed to have been reliable.
	DefaultRescanCount = 20
)

// Publication is the minimal view of a published track the activator needs.
// Both local and remote LiveKit track publications satisfy it.
type Publication interface {
	SID() string
	Kind() lksdk.TrackKind
}

// Participant identifies the owner of a publication.
type Participant interface {
	Identity() string
}

// PublishedTrack pairs a publication with its owning participant.
type PublishedTrack struct {
	Publication Publication
	Participant Participant
}

// Scanner enumerates the room's current publications (local and remote).
// Implementations return a snapshot; the activator never mutates it.
type Scanner interface {
	PublishedTracks() []PublishedTrack
}

// Service submits a single track to the recording backend. Implementations
// must be safe for concurrent use.
type Service interface {
	StartTrackEgress(ctx context.Context, trackSID, participantIdentity string) error
}

// Config contains configuration for creating an Activator.
type Config struct {
	Scanner Scanner
	Service Service

	// RescanInterval between periodic rescans. Zero means DefaultRescanInterval.
	RescanInterval time.Duration

	// RescanCount is the number of periodic rescans before the pull path
	// stops for good. Zero disables the periodic rescan; negative means
	// DefaultRescanCount.
	RescanCount int

	Logger *slog.Logger
}

// Activator tracks which audio tracks already have a recording request in
// flight and submits a request for each newly discovered one. It is scoped
// to a single room session; create a fresh Activator per session.
//
// The activated set only grows. A failed submission stays in the set: the
// recording path is best-effort and a permanent failure is not retried.
type Activator struct {
	scanner  Scanner
	service  Service
	interval time.Duration
	rescans  int
	logger   *slog.Logger

	mu        sync.Mutex
	activated map[string]struct{}

	// In-flight push-path submissions, joined (or abandoned) on Wait.
	inflight sync.WaitGroup
}

// New creates an Activator for one room session.
func New(cfg Config) (*Activator, error) {
	if cfg.Scanner == nil {
		return nil, fmt.Errorf("scanner is required")
	}
	if cfg.Service == nil {
		return nil, fmt.Errorf("service is required")
	}

	interval := cfg.RescanInterval
	if interval <= 0 {
		interval = DefaultRescanInterval
	}
	rescans := cfg.RescanCount
	if rescans < 0 {
		rescans = DefaultRescanCount
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Activator{
		scanner:   cfg.Scanner,
		service:   cfg.Service,
		interval:  interval,
		rescans:   rescans,
		logger:    logger,
		activated: make(map[string]struct{}),
	}, nil
}

// OnTrackPublished is the push discovery path. Register it with the room so
// it fires for every publication, local or remote. Non-audio tracks are
// ignored. The submission runs asynchronously; the caller is never blocked.
func (a *Activator) OnTrackPublished(pub Publication, participant Participant) {
	sid := pub.SID()
	identity := participant.Identity()

	a.logger.Info("track published",
		slog.String("participant", identity),
		slog.String("track_sid", sid),
		slog.String("kind", string(pub.Kind())))

	if pub.Kind() != lksdk.TrackKindAudio {
		return
	}
	if !a.claim(sid) {
		return
	}

	a.inflight.Add(1)
	go func() {
		defer a.inflight.Done()
		a.submit(context.Background(), sid, identity)
	}()
}

// ScanAndActivate is the pull discovery path. It enumerates every current
// publication and submits a request for each audio track not yet activated.
// Submissions are sequential and awaited to bound concurrent load on the
// recording service. Call it once right after joining the room, before
// relying on the push path.
func (a *Activator) ScanAndActivate(ctx context.Context) {
	for _, t := range a.scanner.PublishedTracks() {
		if t.Publication.Kind() != lksdk.TrackKindAudio {
			continue
		}
		sid := t.Publication.SID()
		if !a.claim(sid) {
			continue
		}
		a.logger.Info("found unrecorded audio track",
			slog.String("participant", t.Participant.Identity()),
			slog.String("track_sid", sid))
		a.submit(ctx, sid, t.Participant.Identity())
	}
}

// RunPeriodicRescan runs ScanAndActivate every interval for the configured
// number of iterations, then returns. It also returns early when ctx is
// cancelled. Run it in its own goroutine and cancel ctx on session teardown.
func (a *Activator) RunPeriodicRescan(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for i := 0; i < a.rescans; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.ScanAndActivate(ctx)
		}
	}

	a.logger.Debug("periodic rescan window elapsed",
		slog.Int("rescans", a.rescans),
		slog.Duration("interval", a.interval))
}

// Wait blocks until all push-path submissions still in flight have finished,
// or ctx is cancelled (in which case they are abandoned). Call it from a
// shutdown hook.
func (a *Activator) Wait(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		a.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Warn("abandoning in-flight egress submissions")
	}
}

// ActivatedCount returns the number of tracks claimed so far.
func (a *Activator) ActivatedCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.activated)
}

// claim inserts sid into the activated set. The check and the insert happen
// under one lock acquisition, so concurrent discovery paths cannot both
// claim the same track.
func (a *Activator) claim(sid string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.activated[sid]; ok {
		return false
	}
	a.activated[sid] = struct{}{}
	return true
}

// submit calls the recording service. Failures are logged with identifying
// context and swallowed: a failed request neither terminates the session nor
// releases the track for a retry.
func (a *Activator) submit(ctx context.Context, sid, identity string) {
	a.logger.Info("starting egress",
		slog.String("participant", identity),
		slog.String("track_sid", sid))

	if err := a.service.StartTrackEgress(ctx, sid, identity); err != nil {
		a.logger.Error("failed to start track egress",
			slog.String("participant", identity),
			slog.String("track_sid", sid),
			slog.String("error", err.Error()))
	}
}
