package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chriscow/meetbot/pkg/agent"
	"github.com/chriscow/meetbot/pkg/ai/llm"
	"github.com/chriscow/meetbot/pkg/ai/stt"
	"github.com/chriscow/meetbot/pkg/ai/tts"
	"github.com/chriscow/meetbot/pkg/ai/vad"
	"github.com/chriscow/meetbot/pkg/config"
	"github.com/chriscow/meetbot/pkg/egress"
	"github.com/chriscow/meetbot/pkg/job"
	"github.com/chriscow/meetbot/pkg/metrics"
	"github.com/chriscow/meetbot/pkg/plugin"
	"github.com/chriscow/meetbot/pkg/rtc"
	"github.com/chriscow/meetbot/pkg/tools"
	"github.com/chriscow/meetbot/pkg/turn"
	lksdk "github.com/livekit/server-sdk-go"
	"github.com/pion/webrtc/v3"
)

const (
	assistantIdentity = "meetbot-assistant"
	greeting          = "Hi there! I'm your meeting assistant. How can I help you today?"
)

// runSession joins a room, activates recording for every audio track, and
// runs the voice assistant until the context is cancelled or the agent stops.
func runSession(ctx context.Context, cfg config.Config, roomName string, inst *metrics.Instruments, logger *slog.Logger) error {
	usage := metrics.NewUsageCollector(inst)
	if inst != nil {
		inst.ActiveSessions.Inc()
		defer inst.ActiveSessions.Dec()
	}

	jobInstance, err := job.New(ctx, job.Config{RoomName: roomName})
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}

	jobInstance.Context.OnShutdown(func(reason string) {
		logger.Info("Session usage",
			slog.String("room", roomName),
			slog.String("reason", reason),
			slog.String("summary", usage.Summary()))
	})

	token, err := joinToken(cfg.LiveKitAPIKey, cfg.LiveKitAPISecret, roomName, assistantIdentity, 6*time.Hour)
	if err != nil {
		return fmt.Errorf("build join token: %w", err)
	}

	roomConfig := job.RoomConfig{
		URL:      cfg.LiveKitURL,
		Token:    token,
		RoomName: roomName,
	}

	room, err := job.NewRoom(ctx, roomConfig)
	if err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	defer room.Disconnect()

	voiceAgent, micIn, ttsOut, err := buildAgent(cfg, usage, logger)
	if err != nil {
		return fmt.Errorf("build agent: %w", err)
	}
	defer voiceAgent.Close()

	// Participant audio feeds the agent's microphone input. The assistant's
	// own track is skipped so it never transcribes itself.
	room.OnAudioTrack(func(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, participant *lksdk.RemoteParticipant) {
		if participant.Identity() == assistantIdentity {
			return
		}
		feedMicrophone(ctx, track, participant, micIn, logger)
	})

	if err := room.Connect(roomConfig); err != nil {
		return fmt.Errorf("connect to room: %w", err)
	}

	go drainRoomEvents(room, logger)

	speaker, err := room.PublishAudioTrack("assistant-voice")
	if err != nil {
		return fmt.Errorf("publish assistant track: %w", err)
	}
	go speakLoop(ctx, ttsOut, speaker, logger)

	// Recording activation: push path via the publication callback, pull
	// path via an initial scan plus a bounded periodic rescan.
	service := egress.NewLiveKitService(cfg.LiveKitURL, cfg.LiveKitAPIKey, cfg.LiveKitAPISecret, roomName, egress.S3Target{
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		AccessKey: cfg.S3AccessKeyID,
		Secret:    cfg.S3SecretAccessKey,
	}, logger)

	activator, err := egress.New(egress.Config{
		Scanner:        egress.NewRoomScanner(room),
		Service:        &meteredEgress{service: service, usage: usage},
		RescanInterval: cfg.RescanInterval,
		RescanCount:    cfg.RescanCount,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("create egress activator: %w", err)
	}

	room.OnTrackPublished(func(pub *lksdk.RemoteTrackPublication, participant *lksdk.RemoteParticipant) {
		activator.OnTrackPublished(pub, participant)
	})

	activator.ScanAndActivate(ctx)

	rescanCtx, stopRescan := context.WithCancel(ctx)
	defer stopRescan()
	go activator.RunPeriodicRescan(rescanCtx)

	jobInstance.Context.OnShutdown(func(reason string) {
		waitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		activator.Wait(waitCtx)
	})

	agentDone := make(chan error, 1)
	go func() {
		agentDone <- voiceAgent.Start(ctx, jobInstance)
	}()

	greetCtx, cancelGreet := context.WithTimeout(ctx, 30*time.Second)
	if err := voiceAgent.Say(greetCtx, greeting); err != nil {
		logger.Warn("Greeting failed", slog.String("error", err.Error()))
	}
	cancelGreet()

	select {
	case err = <-agentDone:
		if err != nil {
			logger.Error("Agent failed", slog.String("error", err.Error()))
		}
		jobInstance.Shutdown("agent stopped")
	case <-ctx.Done():
		jobInstance.Shutdown("interrupted")
		select {
		case err = <-agentDone:
		case <-time.After(5 * time.Second):
			logger.Warn("Agent shutdown timeout")
		}
	}

	return err
}

// buildAgent assembles the voice pipeline from registered plugins. Returns
// the agent, its microphone input, and the synthesized-audio output the
// caller must wire to the room.
func buildAgent(cfg config.Config, usage *metrics.UsageCollector, logger *slog.Logger) (*agent.Agent, chan rtc.AudioFrame, chan rtc.AudioFrame, error) {
	sttProvider, err := createProvider[stt.STT]("stt", "assemblyai", map[string]any{
		"api_key": cfg.AssemblyAIAPIKey,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	ttsProvider, err := createProvider[tts.TTS]("tts", "elevenlabs", map[string]any{
		"api_key":  cfg.ElevenLabsAPIKey,
		"voice_id": cfg.ElevenLabsVoiceID,
		"model_id": cfg.ElevenLabsModelID,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	llmProvider, err := createProvider[llm.LLM]("llm", "openai", map[string]any{
		"api_key": cfg.OpenAIAPIKey,
		"model":   cfg.LLMModel,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	vadProvider, err := createProvider[vad.VAD]("vad", "energy", map[string]any{})
	if err != nil {
		return nil, nil, nil, err
	}

	turnDetector, err := turn.NewDefaultDetector()
	if err != nil {
		logger.Warn("Turn detector unavailable, every final transcript ends the turn",
			slog.String("error", err.Error()))
		turnDetector = nil
	}

	micIn := make(chan rtc.AudioFrame, 100)
	ttsOut := make(chan rtc.AudioFrame, 100)

	voiceAgent, err := agent.New(agent.Config{
		STT:          sttProvider,
		TTS:          ttsProvider,
		LLM:          llmProvider,
		VAD:          vadProvider,
		TurnDetector: turnDetector,
		Tools:        tools.NewRegistry(tools.NewWeatherClient("")),
		Usage:        usage,
		MicIn:        micIn,
		TTSOut:       ttsOut,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	return voiceAgent, micIn, ttsOut, nil
}

// createProvider looks up a registered plugin factory and asserts the
// provider type it produces.
func createProvider[T any](kind, name string, cfg map[string]any) (T, error) {
	var zero T

	factory, ok := plugin.Get(kind, name)
	if !ok {
		return zero, fmt.Errorf("plugin %s/%s is not registered", kind, name)
	}

	instance, err := factory(cfg)
	if err != nil {
		return zero, fmt.Errorf("create %s/%s: %w", kind, name, err)
	}

	provider, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("plugin %s/%s returned %T", kind, name, instance)
	}
	return provider, nil
}

// meteredEgress counts submission outcomes around the real service.
type meteredEgress struct {
	service egress.Service
	usage   *metrics.UsageCollector
}

func (m *meteredEgress) StartTrackEgress(ctx context.Context, trackSID, participantIdentity string) error {
	err := m.service.StartTrackEgress(ctx, trackSID, participantIdentity)
	if err != nil {
		m.usage.AddEgressRequest("error")
		return err
	}
	m.usage.AddEgressRequest("ok")
	return nil
}

// drainRoomEvents keeps the room event buffer from filling.
func drainRoomEvents(room *job.Room, logger *slog.Logger) {
	for event := range room.Events {
		logger.Debug("Room event",
			slog.String("event_type", string(event.Type)),
			slog.Time("timestamp", event.Timestamp))
	}
}

// feedMicrophone decodes one participant's audio track into the agent's
// microphone input. Blocks until the track ends or ctx is cancelled.
func feedMicrophone(ctx context.Context, track *webrtc.TrackRemote, participant *lksdk.RemoteParticipant, micIn chan<- rtc.AudioFrame, logger *slog.Logger) {
	reader, err := rtc.NewTrackReader(micIn)
	if err != nil {
		logger.Error("Failed to create audio track reader",
			slog.String("participant", participant.Identity()),
			slog.String("error", err.Error()))
		return
	}

	logger.Info("Feeding participant audio to the agent",
		slog.String("participant", participant.Identity()))

	if err := reader.ReadLoop(ctx, track); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("Audio track read ended",
			slog.String("participant", participant.Identity()),
			slog.String("error", err.Error()))
	}
}

// speakLoop encodes synthesized frames onto the published assistant track.
func speakLoop(ctx context.Context, ttsOut <-chan rtc.AudioFrame, writer *rtc.TrackWriter, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-ttsOut:
			if !ok {
				return
			}
			if err := writer.WriteFrame(frame); err != nil {
				logger.Warn("Failed to write synthesized audio",
					slog.String("error", err.Error()))
			}
		}
	}
}
