// Package elevenlabs provides streaming text-to-speech over the ElevenLabs
// stream-input WebSocket API.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chriscow/meetbot/pkg/plugin"
	"github.com/chriscow/meetbot/pkg/rtc"
	"github.com/chriscow/meetbot/pkg/ai/tts"
)

const (
	defaultBaseURL = "wss://api.elevenlabs.io"
	defaultVoiceID = "EXAVITQu4vr4xnSDxMaL"
	defaultModelID = "eleven_multilingual_v2"

	// pcm_16000 keeps frame conversion trivial.
	outputFormat = "pcm_16000"
	sampleRate   = 16000
)

// Config holds settings for the ElevenLabs TTS provider.
type Config struct {
	APIKey  string
	VoiceID string
	ModelID string
	BaseURL string // overridable for tests
}

// ElevenLabsTTS implements the TTS interface using the stream-input
// WebSocket endpoint, one connection per synthesis request.
type ElevenLabsTTS struct {
	cfg Config
}

func NewTTS(cfg Config) (*ElevenLabsTTS, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ElevenLabs API key is required")
	}
	if cfg.VoiceID == "" {
		cfg.VoiceID = defaultVoiceID
	}
	if cfg.ModelID == "" {
		cfg.ModelID = defaultModelID
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &ElevenLabsTTS{cfg: cfg}, nil
}

type serverMessage struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Error   string `json:"error"`
}

// Synthesize opens a stream-input session, sends the full text and streams
// decoded PCM back as 10 ms frames.
func (e *ElevenLabsTTS) Synthesize(ctx context.Context, req tts.SynthesizeRequest) (<-chan rtc.AudioFrame, error) {
	voice := e.cfg.VoiceID
	if req.Voice != "" {
		voice = req.Voice
	}

	u, err := url.Parse(strings.TrimRight(e.cfg.BaseURL, "/") + "/v1/text-to-speech/" + url.PathEscape(voice) + "/stream-input")
	if err != nil {
		return nil, fmt.Errorf("build synthesis url: %w", err)
	}
	q := u.Query()
	q.Set("model_id", e.cfg.ModelID)
	q.Set("output_format", outputFormat)
	u.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("xi-api-key", e.cfg.APIKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		return nil, fmt.Errorf("dial synthesis websocket: %w", err)
	}

	// Prime the stream, then send the text and the end-of-input marker.
	prime := map[string]any{
		"text": " ",
		"voice_settings": map[string]any{
			"stability":        0.5,
			"similarity_boost": 0.8,
		},
	}
	if err := conn.WriteJSON(prime); err != nil {
		conn.Close()
		return nil, fmt.Errorf("prime synthesis stream: %w", err)
	}
	if err := conn.WriteJSON(map[string]any{"text": req.Text + " "}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send synthesis text: %w", err)
	}
	if err := conn.WriteJSON(map[string]any{"text": ""}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("close synthesis input: %w", err)
	}

	frames := make(chan rtc.AudioFrame, 64)
	go readFrames(ctx, conn, frames)
	return frames, nil
}

// readFrames decodes base64 PCM chunks into fixed 10 ms frames. A trailing
// partial frame is zero-padded.
func readFrames(ctx context.Context, conn *websocket.Conn, frames chan<- rtc.AudioFrame) {
	defer close(frames)
	defer conn.Close()

	const frameBytes = sampleRate / 100 * 2
	var pending []byte
	start := time.Now()

	flush := func(pad bool) bool {
		for len(pending) >= frameBytes || (pad && len(pending) > 0) {
			chunk := pending
			if len(chunk) >= frameBytes {
				chunk = pending[:frameBytes]
				pending = pending[frameBytes:]
			} else {
				padded := make([]byte, frameBytes)
				copy(padded, chunk)
				chunk = padded
				pending = nil
			}
			frame := rtc.AudioFrame{
				Data:              append([]byte(nil), chunk...),
				SampleRate:        sampleRate,
				SamplesPerChannel: sampleRate / 100,
				NumChannels:       1,
				Timestamp:         time.Since(start),
			}
			select {
			case frames <- frame:
			case <-ctx.Done():
				return false
			}
		}
		return true
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			flush(true)
			return
		}
		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Audio != "" {
			pcm, err := base64.StdEncoding.DecodeString(msg.Audio)
			if err != nil {
				continue
			}
			pending = append(pending, pcm...)
			if !flush(false) {
				return
			}
		}
		if msg.IsFinal {
			flush(true)
			return
		}
	}
}

// Capabilities returns the ElevenLabs provider's capabilities.
func (e *ElevenLabsTTS) Capabilities() tts.TTSCapabilities {
	return tts.TTSCapabilities{
		Streaming:            true,
		SupportedLanguages:   []string{"en", "es", "fr", "de", "it", "pt", "pl", "hi", "ja", "ko", "zh"},
		SupportedVoices:      []string{defaultVoiceID},
		SampleRates:          []int{sampleRate},
		SupportsSSML:         false,
		SupportsSpeedControl: false,
		SupportsPitchControl: false,
	}
}

func newElevenLabsTTS(cfg map[string]any) (any, error) {
	c := Config{}
	if key, ok := cfg["api_key"].(string); ok {
		c.APIKey = key
	} else {
		c.APIKey = os.Getenv("ELEVENLABS_API_KEY")
	}
	if voice, ok := cfg["voice_id"].(string); ok {
		c.VoiceID = voice
	}
	if model, ok := cfg["model_id"].(string); ok {
		c.ModelID = model
	}
	if base, ok := cfg["base_url"].(string); ok {
		c.BaseURL = base
	}
	return NewTTS(c)
}

func init() {
	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        "tts",
		Name:        "elevenlabs",
		Factory:     newElevenLabsTTS,
		Description: "ElevenLabs streaming text-to-speech service",
		Version:     "1.0.0",
		Config: map[string]any{
			"api_key":  "ElevenLabs API key (or set ELEVENLABS_API_KEY env var)",
			"voice_id": defaultVoiceID,
			"model_id": defaultModelID,
		},
	})
}
