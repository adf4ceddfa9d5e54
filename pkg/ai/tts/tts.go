// Package tts defines the text-to-speech provider contract.
package tts

import (
	"context"

	"github.com/chriscow/meetbot/pkg/ai"
	"github.com/chriscow/meetbot/pkg/rtc"
)

// Re-exported so provider code can classify failures without importing ai.
var (
	ErrRecoverable = ai.ErrRecoverable
	ErrFatal       = ai.ErrFatal
)

// TTS converts text to audio. Synthesize returns a channel that carries the
// audio frames and closes when synthesis finishes or the context is
// cancelled.
type TTS interface {
	Synthesize(ctx context.Context, req SynthesizeRequest) (<-chan rtc.AudioFrame, error)
	Capabilities() TTSCapabilities
}

// SynthesizeRequest contains parameters for one synthesis.
type SynthesizeRequest struct {
	Text     string
	Voice    string
	Language string
	Speed    float32
	Pitch    float32
}

// TTSCapabilities describes what a TTS provider supports.
type TTSCapabilities struct {
	Streaming            bool
	SupportedLanguages   []string
	SupportedVoices      []string
	SampleRates          []int
	SupportsSSML         bool
	SupportsSpeedControl bool
	SupportsPitchControl bool
}
