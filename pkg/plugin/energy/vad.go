// Package energy provides a lightweight energy-based voice activity
// detector. It needs no model files, which makes it the default VAD for
// rooms where the ONNX runtime is unavailable.
package energy

import (
	"context"
	"math"
	"time"

	"github.com/chriscow/meetbot/pkg/ai/vad"
	"github.com/chriscow/meetbot/pkg/plugin"
	"github.com/chriscow/meetbot/pkg/rtc"
)

// Options configures the detector.
type Options struct {
	MinSpeechDuration  time.Duration
	MinSilenceDuration time.Duration
	// InitialThreshold is the mean-square energy above which a frame counts
	// as speech before enough history exists for the dynamic threshold.
	InitialThreshold float64
}

func DefaultOptions() Options {
	return Options{
		MinSpeechDuration:  50 * time.Millisecond,
		MinSilenceDuration: 550 * time.Millisecond,
		InitialThreshold:   1000.0,
	}
}

// EnergyVAD implements the VAD interface using frame energy with a dynamic
// threshold of twice the recent average.
type EnergyVAD struct {
	opts Options
}

func New(opts Options) *EnergyVAD {
	if opts.MinSpeechDuration <= 0 {
		opts.MinSpeechDuration = DefaultOptions().MinSpeechDuration
	}
	if opts.MinSilenceDuration <= 0 {
		opts.MinSilenceDuration = DefaultOptions().MinSilenceDuration
	}
	if opts.InitialThreshold <= 0 {
		opts.InitialThreshold = DefaultOptions().InitialThreshold
	}
	return &EnergyVAD{opts: opts}
}

// Capabilities returns the detector's capabilities.
func (v *EnergyVAD) Capabilities() vad.VADCapabilities {
	return vad.VADCapabilities{
		SampleRates:        []int{16000, 48000},
		MinSpeechDuration:  v.opts.MinSpeechDuration,
		MinSilenceDuration: v.opts.MinSilenceDuration,
		Sensitivity:        0.5,
	}
}

// Detect consumes frames and emits speech start/end events. The returned
// channel closes when the input closes or the context is cancelled.
func (v *EnergyVAD) Detect(ctx context.Context, frames <-chan rtc.AudioFrame) (<-chan vad.VADEvent, error) {
	events := make(chan vad.VADEvent, 8)

	go func() {
		defer close(events)

		d := &detector{opts: v.opts, threshold: v.opts.InitialThreshold}
		for {
			select {
			case frame, ok := <-frames:
				if !ok {
					return
				}
				if ev, fire := d.process(frame); fire {
					select {
					case events <- ev:
					case <-ctx.Done():
						return
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}

type detector struct {
	opts      Options
	threshold float64
	history   []float64

	speaking      bool
	speechAccum   time.Duration
	silenceAccum  time.Duration
}

// process returns at most one state-transition event per frame.
func (d *detector) process(frame rtc.AudioFrame) (vad.VADEvent, bool) {
	energy := meanSquareEnergy(frame.Data)
	d.updateThreshold(energy)

	frameDur := frame.Duration()
	if energy > d.threshold {
		d.speechAccum += frameDur
		d.silenceAccum = 0
		if !d.speaking && d.speechAccum >= d.opts.MinSpeechDuration {
			d.speaking = true
			return vad.VADEvent{Type: vad.VADEventSpeechStart, Timestamp: time.Now()}, true
		}
	} else {
		d.silenceAccum += frameDur
		d.speechAccum = 0
		if d.speaking && d.silenceAccum >= d.opts.MinSilenceDuration {
			d.speaking = false
			return vad.VADEvent{Type: vad.VADEventSpeechEnd, Timestamp: time.Now()}, true
		}
	}
	return vad.VADEvent{}, false
}

// updateThreshold tracks the last 50 frame energies and sets the threshold
// to twice their average once enough history exists.
func (d *detector) updateThreshold(energy float64) {
	d.history = append(d.history, energy)
	if len(d.history) > 50 {
		d.history = d.history[1:]
	}
	if len(d.history) >= 10 {
		var sum float64
		for _, e := range d.history {
			sum += e
		}
		d.threshold = math.Max(sum/float64(len(d.history))*2.0, 1.0)
	}
}

func meanSquareEnergy(data []byte) float64 {
	n := len(data) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(uint16(data[i*2]) | uint16(data[i*2+1])<<8))
		sum += s * s
	}
	return sum / float64(n)
}

func newEnergyVAD(cfg map[string]any) (any, error) {
	opts := DefaultOptions()
	if ms, ok := cfg["min_speech_ms"].(int); ok {
		opts.MinSpeechDuration = time.Duration(ms) * time.Millisecond
	}
	if ms, ok := cfg["min_silence_ms"].(int); ok {
		opts.MinSilenceDuration = time.Duration(ms) * time.Millisecond
	}
	return New(opts), nil
}

func init() {
	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        "vad",
		Name:        "energy",
		Factory:     newEnergyVAD,
		Description: "Energy-based voice activity detection (no model files)",
		Version:     "1.0.0",
		Config: map[string]any{
			"min_speech_ms":  50,
			"min_silence_ms": 550,
		},
	})
}
