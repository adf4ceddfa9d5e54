// Package stt defines the speech-to-text provider contract: streaming
// sessions that accept audio frames and emit transcript events, interim or
// final, until the caller closes the send side.
package stt

import (
	"context"

	"github.com/chriscow/meetbot/pkg/ai"
	"github.com/chriscow/meetbot/pkg/rtc"
)

// Re-exported so provider code can classify failures without importing ai.
var (
	// ErrRecoverable marks temporary failures worth retrying, such as
	// network timeouts or rate limiting.
	ErrRecoverable = ai.ErrRecoverable

	// ErrFatal marks permanent failures, such as bad audio formats or
	// authentication errors.
	ErrFatal = ai.ErrFatal
)

// STT creates streaming recognition sessions.
type STT interface {
	NewStream(ctx context.Context, cfg StreamConfig) (STTStream, error)
	Capabilities() STTCapabilities
}

// STTStream is one active recognition session. Push feeds audio in, Events
// carries transcripts out, CloseSend flushes whatever is buffered and ends
// the session.
type STTStream interface {
	Push(frame rtc.AudioFrame) error
	Events() <-chan SpeechEvent
	CloseSend() error
}

// StreamConfig contains configuration for STT streams.
type StreamConfig struct {
	SampleRate  int
	NumChannels int
	Lang        string
	MaxRetry    int
}

type SpeechEventType int

const (
	// SpeechEventInterim is a partial transcript that may still change.
	SpeechEventInterim SpeechEventType = iota
	// SpeechEventFinal is a settled transcript.
	SpeechEventFinal
	// SpeechEventError reports a recognition failure.
	SpeechEventError
)

// SpeechEvent is one recognition result or error.
type SpeechEvent struct {
	Type      SpeechEventType
	Text      string // empty for error events
	IsFinal   bool
	Language  string // detected or configured language code
	Timestamp int64  // milliseconds since epoch
	Error     error  // set only for error events
}

// STTCapabilities describes what an STT provider supports.
type STTCapabilities struct {
	Streaming          bool
	InterimResults     bool
	SupportedLanguages []string
	SampleRates        []int
}
