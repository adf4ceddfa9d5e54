// Package openai provides OpenAI-backed providers: Whisper speech-to-text,
// GPT chat completion, and text-to-speech.
package openai

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chriscow/meetbot/pkg/ai/stt"
	"github.com/chriscow/meetbot/pkg/rtc"
	openai "github.com/sashabaranov/go-openai"
)

// batchWindow is how often buffered audio is flushed to the transcription
// API. Whisper is a batch API, so streaming is emulated by periodic flushes.
const batchWindow = 3 * time.Second

// minSegment is the shortest clip the API accepts.
const minSegment = 100 * time.Millisecond

// WhisperSTT transcribes audio through the OpenAI Whisper API.
type WhisperSTT struct {
	client   *openai.Client
	model    string
	language string
}

// Config holds configuration for OpenAI providers.
type Config struct {
	APIKey   string `json:"api_key"`
	Model    string `json:"model"`    // Default: whisper-1
	Language string `json:"language"` // Default: auto-detect (empty)
}

// NewWhisperSTT creates a Whisper STT provider.
func NewWhisperSTT(cfg Config) (*WhisperSTT, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}

	return &WhisperSTT{
		client:   openai.NewClient(cfg.APIKey),
		model:    model,
		language: cfg.Language,
	}, nil
}

// NewStream starts a pseudo-streaming session that batches pushed audio and
// transcribes it on a fixed cadence.
func (w *WhisperSTT) NewStream(ctx context.Context, cfg stt.StreamConfig) (stt.STTStream, error) {
	s := &whisperStream{
		provider: w,
		ctx:      ctx,
		config:   cfg,
		events:   make(chan stt.SpeechEvent, 10),
	}
	go s.flushLoop()
	return s, nil
}

// Capabilities describes what the Whisper provider supports.
func (w *WhisperSTT) Capabilities() stt.STTCapabilities {
	return stt.STTCapabilities{
		Streaming:      true, // emulated by batching
		InterimResults: false,
		SupportedLanguages: []string{
			"en", "zh", "de", "es", "ru", "ko", "fr", "ja", "pt", "tr", "pl", "ca", "nl",
			"ar", "sv", "it", "id", "hi", "fi", "vi", "he", "uk", "el", "ms", "cs", "ro",
			"da", "hu", "ta", "no", "th", "ur", "hr", "bg", "lt", "la", "mi", "ml", "cy",
			"sk", "te", "fa", "lv", "bn", "sr", "az", "sl", "kn", "et", "mk", "br", "eu",
			"is", "hy", "ne", "mn", "bs", "kk", "sq", "sw", "gl", "mr", "pa", "si", "km",
			"sn", "yo", "so", "af", "oc", "ka", "be", "tg", "sd", "gu", "am", "yi", "lo",
			"uz", "fo", "ht", "ps", "tk", "nn", "mt", "sa", "lb", "my", "bo", "tl", "mg",
			"as", "tt", "haw", "ln", "ha", "ba", "jw", "su",
		},
		SampleRates: []int{16000, 22050, 44100, 48000},
	}
}

type whisperStream struct {
	provider *WhisperSTT
	ctx      context.Context
	config   stt.StreamConfig
	events   chan stt.SpeechEvent

	mu     sync.Mutex
	buffer []rtc.AudioFrame
	closed bool
}

// Push buffers an audio frame for the next flush.
func (s *whisperStream) Push(frame rtc.AudioFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("stream is closed")
	}
	s.buffer = append(s.buffer, frame)
	return nil
}

func (s *whisperStream) Events() <-chan stt.SpeechEvent {
	return s.events
}

// CloseSend signals that no more audio will arrive. The remaining buffer is
// flushed by the background loop.
func (s *whisperStream) CloseSend() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("stream already closed")
	}
	s.closed = true
	return nil
}

func (s *whisperStream) flushLoop() {
	defer close(s.events)

	ticker := time.NewTicker(batchWindow)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.flush(false)
		}

		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			s.flush(true)
			return
		}
	}
}

// flush drains the buffer and transcribes it. A couple of trailing frames
// are retained between flushes so words spanning the boundary survive.
func (s *whisperStream) flush(final bool) {
	s.mu.Lock()
	if len(s.buffer) == 0 {
		s.mu.Unlock()
		if final {
			s.emit(stt.SpeechEvent{
				Type:      stt.SpeechEventFinal,
				IsFinal:   true,
				Timestamp: time.Now().UnixMilli(),
			})
		}
		return
	}

	frames := make([]rtc.AudioFrame, len(s.buffer))
	copy(frames, s.buffer)
	if final {
		s.buffer = nil
	} else if len(s.buffer) > 2 {
		s.buffer = s.buffer[len(s.buffer)-2:]
	}
	s.mu.Unlock()

	var pcm []byte
	var duration time.Duration
	for _, frame := range frames {
		pcm = append(pcm, frame.Data...)
		duration += frame.Timestamp
	}

	if duration < minSegment {
		if final {
			s.emit(stt.SpeechEvent{
				Type:      stt.SpeechEventFinal,
				IsFinal:   true,
				Timestamp: time.Now().UnixMilli(),
			})
		}
		return
	}

	wav := encodeWAV(pcm, frames[0].SampleRate, frames[0].NumChannels)

	text, language, err := s.transcribe(wav)
	if err != nil {
		slog.Error("Whisper transcription failed", slog.String("error", err.Error()))
		s.emit(stt.SpeechEvent{
			Type:      stt.SpeechEventError,
			Error:     err,
			Timestamp: time.Now().UnixMilli(),
		})
		return
	}

	if final || text != "" {
		s.emit(stt.SpeechEvent{
			Type:      stt.SpeechEventFinal,
			Text:      text,
			IsFinal:   true,
			Language:  language,
			Timestamp: time.Now().UnixMilli(),
		})
	}
}

func (s *whisperStream) transcribe(wav []byte) (string, string, error) {
	resp, err := s.provider.client.CreateTranscription(s.ctx, openai.AudioRequest{
		Model:    s.provider.model,
		Language: s.provider.language,
		Format:   openai.AudioResponseFormatJSON,
		Reader:   bytes.NewReader(wav),
		FilePath: "audio.wav",
	})
	if err != nil {
		return "", "", fmt.Errorf("transcription failed: %w", err)
	}

	slog.Debug("Whisper transcription result", slog.String("text", resp.Text))
	return resp.Text, resp.Language, nil
}

func (s *whisperStream) emit(ev stt.SpeechEvent) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

// encodeWAV wraps 16-bit little-endian PCM in a RIFF/WAVE container.
func encodeWAV(pcm []byte, sampleRate, channels int) []byte {
	const bitsPerSample = 16

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*channels*bitsPerSample/8))
	binary.Write(&buf, binary.LittleEndian, uint16(channels*bitsPerSample/8))
	binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}
