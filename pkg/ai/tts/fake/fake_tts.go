// Package fake provides a TTS that synthesizes a 440 Hz tone instead of
// speech. Frame pacing matches real-time playback so pipeline tests observe
// realistic timing.
package fake

import (
	"context"
	"encoding/binary"
	"math"
	"time"

	"github.com/chriscow/meetbot/pkg/ai/tts"
	"github.com/chriscow/meetbot/pkg/rtc"
)

const (
	toneHz        = 440.0
	toneAmplitude = 0.3
	sampleRate    = 48000
	frameInterval = 10 * time.Millisecond
	// Synthesized length scales with text length, 100ms per character.
	perCharDuration = 100 * time.Millisecond
)

// FakeTTS emits sine-wave audio frames for any input text.
type FakeTTS struct{}

func NewFakeTTS() *FakeTTS {
	return &FakeTTS{}
}

// Synthesize streams 10ms mono PCM frames of a steady tone. The stream ends
// when the synthesized duration is reached or the context is cancelled.
func (f *FakeTTS) Synthesize(ctx context.Context, req tts.SynthesizeRequest) (<-chan rtc.AudioFrame, error) {
	out := make(chan rtc.AudioFrame, 10)

	go func() {
		defer close(out)

		frames := int(time.Duration(len(req.Text)) * perCharDuration / frameInterval)
		samplesPerFrame := sampleRate / 100

		for i := 0; i < frames; i++ {
			select {
			case out <- toneFrame(i, samplesPerFrame):
			case <-ctx.Done():
				return
			}
			time.Sleep(frameInterval)
		}
	}()

	return out, nil
}

func toneFrame(index, samplesPerFrame int) rtc.AudioFrame {
	data := make([]byte, samplesPerFrame*2)
	for j := 0; j < samplesPerFrame; j++ {
		n := index*samplesPerFrame + j
		sample := toneAmplitude * math.Sin(2*math.Pi*toneHz*float64(n)/float64(sampleRate))
		binary.LittleEndian.PutUint16(data[j*2:], uint16(int16(sample*32767)))
	}
	return rtc.AudioFrame{
		Data:              data,
		SampleRate:        sampleRate,
		SamplesPerChannel: samplesPerFrame,
		NumChannels:       1,
		Timestamp:         time.Duration(index) * frameInterval,
	}
}

func (f *FakeTTS) Capabilities() tts.TTSCapabilities {
	return tts.TTSCapabilities{
		Streaming:            true,
		SupportedLanguages:   []string{"en-US", "en-GB", "es-ES"},
		SupportedVoices:      []string{"fake-voice-1", "fake-voice-2"},
		SampleRates:          []int{16000, 48000},
		SupportsSpeedControl: true,
		SupportsPitchControl: true,
	}
}
