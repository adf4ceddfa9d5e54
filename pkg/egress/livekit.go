package egress

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go"
)

// S3Target describes where recorded tracks are uploaded.
type S3Target struct {
	Bucket    string
	Region    string
	AccessKey string
	Secret    string
}

// LiveKitService submits track egress requests to the LiveKit Egress API,
// writing each track into the configured S3 bucket as
// <room>/<participant-identity>-<track-sid>.ogg.
type LiveKitService struct {
	client   *lksdk.EgressClient
	roomName string
	s3       S3Target
	logger   *slog.Logger
}

// NewLiveKitService creates an egress Service backed by the LiveKit API at url.
func NewLiveKitService(url, apiKey, apiSecret, roomName string, s3 S3Target, logger *slog.Logger) *LiveKitService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LiveKitService{
		client:   lksdk.NewEgressClient(url, apiKey, apiSecret),
		roomName: roomName,
		s3:       s3,
		logger:   logger,
	}
}

// StartTrackEgress requests recording of a single track.
func (s *LiveKitService) StartTrackEgress(ctx context.Context, trackSID, participantIdentity string) error {
	req := &livekit.TrackEgressRequest{
		RoomName: s.roomName,
		TrackId:  trackSID,
		Output: &livekit.TrackEgressRequest_File{
			File: &livekit.DirectFileOutput{
				Filepath: ObjectPath(s.roomName, participantIdentity, trackSID),
				Output: &livekit.DirectFileOutput_S3{
					S3: &livekit.S3Upload{
						Bucket:         s.s3.Bucket,
						Region:         s.s3.Region,
						AccessKey:      s.s3.AccessKey,
						Secret:         s.s3.Secret,
						ForcePathStyle: true,
					},
				},
			},
		},
	}

	info, err := s.client.StartTrackEgress(ctx, req)
	if err != nil {
		return fmt.Errorf("start track egress: %w", err)
	}

	s.logger.Info("track egress started",
		slog.String("egress_id", info.EgressId),
		slog.String("participant", participantIdentity),
		slog.String("track_sid", trackSID))

	return nil
}

// ObjectPath returns the destination object key for a recorded track.
func ObjectPath(roomName, participantIdentity, trackSID string) string {
	return fmt.Sprintf("%s/%s-%s.ogg", roomName, participantIdentity, trackSID)
}

// roomView is the slice of the room wrapper the scanner needs.
type roomView interface {
	LocalParticipant() *lksdk.LocalParticipant
	RemoteParticipants() []*lksdk.RemoteParticipant
}

// RoomScanner snapshots the current publications of a connected room.
type RoomScanner struct {
	room roomView
}

// NewRoomScanner creates a Scanner over a connected room.
func NewRoomScanner(room roomView) *RoomScanner {
	return &RoomScanner{room: room}
}

// PublishedTracks returns every current publication, the local participant's
// first, then each remote participant's.
func (s *RoomScanner) PublishedTracks() []PublishedTrack {
	var tracks []PublishedTrack

	if lp := s.room.LocalParticipant(); lp != nil {
		for _, pub := range lp.Tracks() {
			tracks = append(tracks, PublishedTrack{Publication: pub, Participant: lp})
		}
	}

	for _, rp := range s.room.RemoteParticipants() {
		for _, pub := range rp.Tracks() {
			tracks = append(tracks, PublishedTrack{Publication: pub, Participant: rp})
		}
	}

	return tracks
}
