// Package fake provides a deterministic VAD for tests. Speech activity is
// drawn from a seeded random source, so the same seed and frame sequence
// always produce the same events.
package fake

import (
	"context"
	"math/rand"
	"time"

	"github.com/chriscow/meetbot/pkg/ai/vad"
	"github.com/chriscow/meetbot/pkg/rtc"
)

const (
	// DefaultSpeechProbability is the per-frame chance of detecting speech.
	DefaultSpeechProbability = 0.3
	// HysteresisFrames spaces out speech-start transitions to avoid flapping.
	HysteresisFrames = 5
	// MinSpeechDuration is the shortest speech segment the detector reports.
	MinSpeechDuration = 200 * time.Millisecond
	// DefaultSeed keeps event sequences reproducible across runs.
	DefaultSeed = 42
)

// FakeVAD flags frames as speech at a configurable probability.
type FakeVAD struct {
	speechProbability float32
	rng               *rand.Rand
}

// NewFakeVAD builds a detector seeded with DefaultSeed. speechProbability is
// clamped to DefaultSpeechProbability when zero or negative.
func NewFakeVAD(speechProbability float32) *FakeVAD {
	return NewFakeVADWithSeed(speechProbability, DefaultSeed)
}

// NewFakeVADWithSeed builds a detector with a caller-chosen seed, for tests
// that need distinct random sequences.
func NewFakeVADWithSeed(speechProbability float32, seed int64) *FakeVAD {
	if speechProbability <= 0 {
		speechProbability = DefaultSpeechProbability
	}
	return &FakeVAD{
		speechProbability: speechProbability,
		rng:               rand.New(rand.NewSource(seed)),
	}
}

// Detect consumes frames and emits speech-start and speech-end events until
// the input channel closes or the context is cancelled. A speech segment in
// progress when the input closes is ended with a final event.
func (f *FakeVAD) Detect(ctx context.Context, frames <-chan rtc.AudioFrame) (<-chan vad.VADEvent, error) {
	events := make(chan vad.VADEvent, 10)

	go func() {
		defer close(events)

		emit := func(t vad.VADEventType) bool {
			select {
			case events <- vad.VADEvent{Type: t, Timestamp: time.Now()}:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var speaking bool
		var speechStart time.Time
		var frameCount int

		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-frames:
				if !ok {
					if speaking {
						emit(vad.VADEventSpeechEnd)
					}
					return
				}
				frameCount++

				active := f.rng.Float32() < f.speechProbability
				switch {
				case !speaking && active && frameCount%HysteresisFrames == 0:
					speaking = true
					speechStart = time.Now()
					if !emit(vad.VADEventSpeechStart) {
						return
					}
				case speaking && !active && time.Since(speechStart) > MinSpeechDuration:
					speaking = false
					if !emit(vad.VADEventSpeechEnd) {
						return
					}
				}
			}
		}
	}()

	return events, nil
}

func (f *FakeVAD) Capabilities() vad.VADCapabilities {
	return vad.VADCapabilities{
		SampleRates:        []int{16000, 48000},
		MinSpeechDuration:  100 * time.Millisecond,
		MinSilenceDuration: 200 * time.Millisecond,
		Sensitivity:        f.speechProbability,
	}
}
