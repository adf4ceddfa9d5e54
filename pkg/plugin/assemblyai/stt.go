// Package assemblyai provides streaming speech-to-text over the AssemblyAI
// realtime WebSocket API.
package assemblyai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chriscow/meetbot/pkg/ai/stt"
	"github.com/chriscow/meetbot/pkg/plugin"
	"github.com/chriscow/meetbot/pkg/rtc"
)

const defaultBaseURL = "wss://api.assemblyai.com/v2/realtime/ws"

// Config holds settings for the AssemblyAI STT provider.
type Config struct {
	APIKey  string
	BaseURL string // overridable for tests
}

// AssemblyAISTT implements the STT interface using AssemblyAI realtime
// transcription.
type AssemblyAISTT struct {
	cfg Config
}

func NewSTT(cfg Config) (*AssemblyAISTT, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("AssemblyAI API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &AssemblyAISTT{cfg: cfg}, nil
}

// Capabilities returns the provider's capabilities.
func (a *AssemblyAISTT) Capabilities() stt.STTCapabilities {
	return stt.STTCapabilities{
		Streaming:          true,
		InterimResults:     true,
		SupportedLanguages: []string{"en"},
		SampleRates:        []int{16000},
	}
}

// NewStream opens a realtime session. Audio pushed to the stream is base64
// encoded and sent as JSON messages; transcripts come back on Events().
func (a *AssemblyAISTT) NewStream(ctx context.Context, cfg stt.StreamConfig) (stt.STTStream, error) {
	sampleRate := cfg.SampleRate
	if sampleRate == 0 {
		sampleRate = 16000
	}

	url := fmt.Sprintf("%s?sample_rate=%d", a.cfg.BaseURL, sampleRate)
	header := http.Header{}
	header.Set("Authorization", a.cfg.APIKey)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial realtime session (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial realtime session: %w", err)
	}

	s := &stream{
		conn:   conn,
		events: make(chan stt.SpeechEvent, 16),
	}
	go s.readLoop(ctx)
	return s, nil
}

type stream struct {
	conn   *websocket.Conn
	events chan stt.SpeechEvent

	writeMu sync.Mutex
	closed  bool
}

type audioMessage struct {
	AudioData string `json:"audio_data"`
}

type terminateMessage struct {
	TerminateSession bool `json:"terminate_session"`
}

type serverMessage struct {
	MessageType string `json:"message_type"`
	Text        string `json:"text"`
	Error       string `json:"error"`
}

// Push sends one audio frame. Frames must match the sample rate the stream
// was opened with.
func (s *stream) Push(frame rtc.AudioFrame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return fmt.Errorf("stream closed: %w", stt.ErrFatal)
	}

	msg := audioMessage{AudioData: base64.StdEncoding.EncodeToString(frame.Data)}
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send audio: %w", err)
	}
	return nil
}

// CloseSend asks the server to finalize the session. The events channel
// closes once the server acknowledges or the connection drops.
func (s *stream) CloseSend() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.conn.WriteJSON(terminateMessage{TerminateSession: true}); err != nil {
		return fmt.Errorf("terminate session: %w", err)
	}
	return nil
}

func (s *stream) Events() <-chan stt.SpeechEvent {
	return s.events
}

func (s *stream) readLoop(ctx context.Context) {
	defer close(s.events)
	defer s.conn.Close()

	for {
		var msg serverMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			s.writeMu.Lock()
			closed := s.closed
			s.writeMu.Unlock()
			if closed || ctx.Err() != nil {
				return
			}
			s.emit(ctx, stt.SpeechEvent{
				Type:  stt.SpeechEventError,
				Error: fmt.Errorf("read transcript: %w", err),
			})
			return
		}

		switch msg.MessageType {
		case "PartialTranscript":
			if msg.Text == "" {
				continue
			}
			s.emit(ctx, stt.SpeechEvent{
				Type:      stt.SpeechEventInterim,
				Text:      msg.Text,
				Language:  "en",
				Timestamp: time.Now().UnixMilli(),
			})
		case "FinalTranscript":
			if msg.Text == "" {
				continue
			}
			s.emit(ctx, stt.SpeechEvent{
				Type:      stt.SpeechEventFinal,
				Text:      msg.Text,
				IsFinal:   true,
				Language:  "en",
				Timestamp: time.Now().UnixMilli(),
			})
		case "SessionTerminated":
			return
		case "SessionBegins":
			slog.Debug("realtime transcription session started")
		default:
			if msg.Error != "" {
				s.emit(ctx, stt.SpeechEvent{
					Type:  stt.SpeechEventError,
					Error: fmt.Errorf("server error: %s", msg.Error),
				})
			}
		}
	}
}

func (s *stream) emit(ctx context.Context, ev stt.SpeechEvent) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

func newAssemblyAISTT(cfg map[string]any) (any, error) {
	c := Config{}
	if key, ok := cfg["api_key"].(string); ok {
		c.APIKey = key
	} else {
		c.APIKey = os.Getenv("ASSEMBLYAI_API_KEY")
	}
	if base, ok := cfg["base_url"].(string); ok {
		c.BaseURL = base
	}
	return NewSTT(c)
}

func init() {
	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        "stt",
		Name:        "assemblyai",
		Factory:     newAssemblyAISTT,
		Description: "AssemblyAI realtime speech-to-text service",
		Version:     "1.0.0",
		Config: map[string]any{
			"api_key": "AssemblyAI API key (or set ASSEMBLYAI_API_KEY env var)",
		},
	})
}
