// Package voice holds small helpers shared by the voice pipeline.
package voice

import "sync/atomic"

// AudioGate decides whether microphone frames should be dropped. While the
// assistant's synthesized speech is playing, feeding the microphone to STT
// would transcribe the assistant's own voice.
type AudioGate interface {
	SetTTSPlaying(playing bool)
	ShouldDiscardAudio() bool
}

// NewAudioGate returns a gate that starts open, passing audio through.
func NewAudioGate() AudioGate {
	return &atomicGate{}
}

type atomicGate struct {
	ttsPlaying atomic.Bool
}

func (g *atomicGate) SetTTSPlaying(playing bool) {
	g.ttsPlaying.Store(playing)
}

func (g *atomicGate) ShouldDiscardAudio() bool {
	return g.ttsPlaying.Load()
}
