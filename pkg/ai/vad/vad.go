// Package vad defines the voice activity detection contract: a frame stream
// in, speech start and end events out.
package vad

import (
	"context"
	"time"

	"github.com/chriscow/meetbot/pkg/ai"
	"github.com/chriscow/meetbot/pkg/rtc"
)

// Re-exported so provider code can classify failures without importing ai.
var (
	ErrRecoverable = ai.ErrRecoverable
	ErrFatal       = ai.ErrFatal
)

// VAD detects voice activity in an audio stream. The returned event channel
// is closed when the input channel closes or the context is cancelled.
type VAD interface {
	Detect(ctx context.Context, frames <-chan rtc.AudioFrame) (<-chan VADEvent, error)
	Capabilities() VADCapabilities
}

type VADEventType int

const (
	VADEventSpeechStart VADEventType = iota
	VADEventSpeechEnd
	VADEventError
)

// VADEvent marks a speech boundary or a detection failure.
type VADEvent struct {
	Type      VADEventType
	Timestamp time.Time
	Error     error
}

// VADCapabilities describes what a VAD provider supports.
type VADCapabilities struct {
	SampleRates        []int
	MinSpeechDuration  time.Duration
	MinSilenceDuration time.Duration
	Sensitivity        float32 // 0.0 to 1.0
}
