package job

import (
	"time"

	"github.com/livekit/protocol/livekit"
)

// EventType names a room event delivered on Room.Events.
type EventType string

const (
	EventParticipantConnected    EventType = "participant_connected"
	EventParticipantDisconnected EventType = "participant_disconnected"
	EventTrackSubscribed         EventType = "track_subscribed"
	EventTrackUnsubscribed       EventType = "track_unsubscribed"
	EventTrackPublished          EventType = "track_published"
	EventTrackUnpublished        EventType = "track_unpublished"
	EventDataReceived            EventType = "data_received"
	EventRoomMetadataChanged     EventType = "room_metadata_changed"
)

// Event carries a room event and whatever context applies to its type:
// the participant and track for track events, the payload for data events,
// and the new metadata for metadata changes.
type Event struct {
	Type        EventType
	Timestamp   time.Time
	Participant *livekit.ParticipantInfo
	Track       *livekit.TrackInfo
	Data        []byte
	Metadata    string
}

// NewEvent stamps a new event with the current time. Context fields are
// attached with the With* builders.
func NewEvent(eventType EventType) *Event {
	return &Event{Type: eventType, Timestamp: time.Now()}
}

func (e *Event) WithParticipant(participant *livekit.ParticipantInfo) *Event {
	e.Participant = participant
	return e
}

func (e *Event) WithTrack(track *livekit.TrackInfo) *Event {
	e.Track = track
	return e
}

func (e *Event) WithData(data []byte) *Event {
	e.Data = data
	return e
}

func (e *Event) WithMetadata(metadata string) *Event {
	e.Metadata = metadata
	return e
}
