package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"

	"github.com/chriscow/meetbot/pkg/rtc"
)

// Room wraps a LiveKit room connection. SDK callbacks are translated into
// Events for channel-based consumers, and explicit handlers can be attached
// for track publications.
type Room struct {
	// Events delivers room activity to consumers. Closed by Disconnect.
	Events chan *Event

	room   *lksdk.Room
	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.RWMutex
	connected    bool
	eventsClosed bool
	participants map[string]*livekit.ParticipantInfo

	// Track publication handlers run at most once per publication SID,
	// even when the server re-delivers the callback.
	trackPublishedHandlers []func(*lksdk.RemoteTrackPublication, *lksdk.RemoteParticipant)
	seenPublications       map[string]bool

	audioTrackHandlers []AudioTrackHandler
}

// AudioTrackHandler receives each newly subscribed remote audio track. It is
// invoked on its own goroutine and may block reading the track for its
// lifetime.
type AudioTrackHandler func(track *webrtc.TrackRemote, publication *lksdk.RemoteTrackPublication, participant *lksdk.RemoteParticipant)

// RoomConfig configures a room connection.
type RoomConfig struct {
	URL             string
	Token           string
	RoomName        string
	EventBufferSize int // defaults to 100
}

// NewRoom validates the config and prepares a disconnected Room.
func NewRoom(ctx context.Context, config RoomConfig) (*Room, error) {
	switch {
	case config.URL == "":
		return nil, fmt.Errorf("URL is required")
	case config.Token == "":
		return nil, fmt.Errorf("token is required")
	case config.RoomName == "":
		return nil, fmt.Errorf("room name is required")
	}

	bufferSize := config.EventBufferSize
	if bufferSize == 0 {
		bufferSize = 100
	}

	roomCtx, cancel := context.WithCancel(ctx)
	return &Room{
		Events:           make(chan *Event, bufferSize),
		ctx:              roomCtx,
		cancel:           cancel,
		participants:     make(map[string]*livekit.ParticipantInfo),
		seenPublications: make(map[string]bool),
	}, nil
}

// Connect dials the LiveKit server and wires the SDK callbacks.
func (r *Room) Connect(config RoomConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.connected {
		return fmt.Errorf("room is already connected")
	}

	callback := &lksdk.RoomCallback{
		OnParticipantConnected:    r.onParticipantConnected,
		OnParticipantDisconnected: r.onParticipantDisconnected,
		OnRoomMetadataChanged:     r.onRoomMetadataChanged,
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackSubscribed:   r.onTrackSubscribed,
			OnTrackUnsubscribed: r.onTrackUnsubscribed,
			OnTrackPublished:    r.onTrackPublished,
			OnTrackUnpublished:  r.onTrackUnpublished,
			OnDataReceived:      r.onDataReceived,
		},
	}

	room, err := lksdk.ConnectToRoomWithToken(config.URL, config.Token, callback)
	if err != nil {
		return fmt.Errorf("failed to connect to room: %w", err)
	}

	r.room = room
	r.connected = true
	slog.Info("Connected to LiveKit room",
		slog.String("room_name", config.RoomName),
		slog.String("url", config.URL))
	return nil
}

// Disconnect tears down the connection and closes Events. Idempotent.
func (r *Room) Disconnect() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancel()

	if r.connected {
		r.connected = false
		if r.room != nil {
			r.room.Disconnect()
		}
		slog.Info("Disconnected from LiveKit room")
	}

	if !r.eventsClosed {
		close(r.Events)
		r.eventsClosed = true
	}
	return nil
}

func (r *Room) IsConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connected
}

// LocalParticipant returns nil before Connect.
func (r *Room) LocalParticipant() *lksdk.LocalParticipant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.room == nil {
		return nil
	}
	return r.room.LocalParticipant
}

// RemoteParticipants reads the SDK's current participant list. Returns nil
// before Connect.
func (r *Room) RemoteParticipants() []*lksdk.RemoteParticipant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.room == nil {
		return nil
	}
	return r.room.GetParticipants()
}

// OnTrackPublished attaches a handler for future remote track publications.
// Each publication SID is dispatched at most once across all handlers.
func (r *Room) OnTrackPublished(handler func(*lksdk.RemoteTrackPublication, *lksdk.RemoteParticipant)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trackPublishedHandlers = append(r.trackPublishedHandlers, handler)
}

// OnAudioTrack attaches a handler for future remote audio track
// subscriptions. Video tracks are not dispatched.
func (r *Room) OnAudioTrack(handler AudioTrackHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audioTrackHandlers = append(r.audioTrackHandlers, handler)
}

// PublishAudioTrack publishes a local Opus track under the given name and
// returns a writer that encodes PCM frames onto it.
func (r *Room) PublishAudioTrack(name string) (*rtc.TrackWriter, error) {
	r.mu.RLock()
	room := r.room
	r.mu.RUnlock()
	if room == nil {
		return nil, fmt.Errorf("room is not connected")
	}

	track, err := lksdk.NewLocalSampleTrack(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeOpus,
		ClockRate: rtc.OpusSampleRate,
		Channels:  1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create local audio track: %w", err)
	}

	publication, err := room.LocalParticipant.PublishTrack(track, &lksdk.TrackPublicationOptions{
		Name:   name,
		Source: livekit.TrackSource_MICROPHONE,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to publish audio track: %w", err)
	}

	slog.Info("Published audio track",
		slog.String("name", name),
		slog.String("track_sid", publication.SID()))

	return rtc.NewTrackWriter(func(sample media.Sample) error {
		return track.WriteSample(sample, nil)
	})
}

// GetParticipants returns a snapshot of the tracked participants keyed by
// identity.
func (r *Room) GetParticipants() map[string]*livekit.ParticipantInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make(map[string]*livekit.ParticipantInfo, len(r.participants))
	for identity, info := range r.participants {
		snapshot[identity] = info
	}
	return snapshot
}

func participantInfo(p *lksdk.RemoteParticipant, state livekit.ParticipantInfo_State) *livekit.ParticipantInfo {
	return &livekit.ParticipantInfo{
		Sid:      p.SID(),
		Identity: p.Identity(),
		State:    state,
	}
}

func trackInfo(pub *lksdk.RemoteTrackPublication) *livekit.TrackInfo {
	return &livekit.TrackInfo{
		Sid:  pub.SID(),
		Name: pub.Name(),
		Type: pub.Kind().ProtoType(),
	}
}

func (r *Room) onParticipantConnected(participant *lksdk.RemoteParticipant) {
	info := participantInfo(participant, livekit.ParticipantInfo_ACTIVE)

	r.mu.Lock()
	r.participants[participant.Identity()] = info
	r.mu.Unlock()

	r.sendEvent(NewEvent(EventParticipantConnected).WithParticipant(info))
	slog.Info("Participant connected",
		slog.String("identity", participant.Identity()),
		slog.String("sid", participant.SID()))
}

func (r *Room) onParticipantDisconnected(participant *lksdk.RemoteParticipant) {
	r.mu.Lock()
	delete(r.participants, participant.Identity())
	r.mu.Unlock()

	info := participantInfo(participant, livekit.ParticipantInfo_DISCONNECTED)
	r.sendEvent(NewEvent(EventParticipantDisconnected).WithParticipant(info))
	slog.Info("Participant disconnected",
		slog.String("identity", participant.Identity()),
		slog.String("sid", participant.SID()))
}

func (r *Room) onTrackSubscribed(track *webrtc.TrackRemote, publication *lksdk.RemoteTrackPublication, participant *lksdk.RemoteParticipant) {
	r.sendEvent(NewEvent(EventTrackSubscribed).
		WithParticipant(participantInfo(participant, livekit.ParticipantInfo_ACTIVE)).
		WithTrack(trackInfo(publication)))

	slog.Info("Track subscribed",
		slog.String("participant", participant.Identity()),
		slog.String("track_sid", publication.SID()),
		slog.String("track_type", publication.Kind().String()))

	if track.Kind() != webrtc.RTPCodecTypeAudio {
		return
	}

	r.mu.RLock()
	handlers := append([]AudioTrackHandler(nil), r.audioTrackHandlers...)
	r.mu.RUnlock()

	for _, handler := range handlers {
		go handler(track, publication, participant)
	}
}

func (r *Room) onTrackUnsubscribed(track *webrtc.TrackRemote, publication *lksdk.RemoteTrackPublication, participant *lksdk.RemoteParticipant) {
	r.sendEvent(NewEvent(EventTrackUnsubscribed).
		WithParticipant(participantInfo(participant, livekit.ParticipantInfo_ACTIVE)).
		WithTrack(trackInfo(publication)))
}

func (r *Room) onTrackPublished(publication *lksdk.RemoteTrackPublication, participant *lksdk.RemoteParticipant) {
	r.sendEvent(NewEvent(EventTrackPublished).
		WithParticipant(participantInfo(participant, livekit.ParticipantInfo_ACTIVE)).
		WithTrack(trackInfo(publication)))

	r.mu.Lock()
	seen := r.seenPublications[publication.SID()]
	r.seenPublications[publication.SID()] = true
	handlers := append([]func(*lksdk.RemoteTrackPublication, *lksdk.RemoteParticipant)(nil), r.trackPublishedHandlers...)
	r.mu.Unlock()

	if seen {
		return
	}
	for _, handler := range handlers {
		handler(publication, participant)
	}
}

func (r *Room) onTrackUnpublished(publication *lksdk.RemoteTrackPublication, participant *lksdk.RemoteParticipant) {
	r.sendEvent(NewEvent(EventTrackUnpublished).
		WithParticipant(participantInfo(participant, livekit.ParticipantInfo_ACTIVE)).
		WithTrack(trackInfo(publication)))
}

func (r *Room) onDataReceived(data []byte, participant *lksdk.RemoteParticipant) {
	r.sendEvent(NewEvent(EventDataReceived).
		WithParticipant(participantInfo(participant, livekit.ParticipantInfo_ACTIVE)).
		WithData(data))
}

func (r *Room) onRoomMetadataChanged(metadata string) {
	r.sendEvent(NewEvent(EventRoomMetadataChanged).WithMetadata(metadata))
}

// sendEvent delivers to Events without blocking an SDK callback. When the
// buffer is full the event is dropped with a warning.
func (r *Room) sendEvent(event *Event) {
	r.mu.RLock()
	closed := r.eventsClosed
	r.mu.RUnlock()
	if closed {
		return
	}

	select {
	case r.Events <- event:
	case <-r.ctx.Done():
	default:
		slog.Warn("Events channel is full, dropping event",
			slog.String("event_type", string(event.Type)))
	}
}
