package fake

import (
	"context"
	"testing"
	"time"

	"github.com/chriscow/meetbot/pkg/ai/vad"
	"github.com/chriscow/meetbot/pkg/rtc"
)

func sendFrames(n int) chan rtc.AudioFrame {
	frames := make(chan rtc.AudioFrame, n)
	for i := 0; i < n; i++ {
		frames <- rtc.AudioFrame{
			Data:              make([]byte, 320),
			SampleRate:        16000,
			SamplesPerChannel: 160,
			NumChannels:       1,
		}
	}
	close(frames)
	return frames
}

func collect(events <-chan vad.VADEvent) []vad.VADEvent {
	var out []vad.VADEvent
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestFakeVAD_Capabilities(t *testing.T) {
	caps := NewFakeVAD(0.5).Capabilities()

	if len(caps.SampleRates) == 0 {
		t.Error("sample rates should be populated")
	}
	if caps.MinSpeechDuration <= 0 || caps.MinSilenceDuration <= 0 {
		t.Error("speech and silence durations should be positive")
	}
	if caps.Sensitivity != 0.5 {
		t.Errorf("Sensitivity = %v, want the configured probability", caps.Sensitivity)
	}
}

func TestFakeVAD_SameSeedSameEvents(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	run := func() []vad.VADEvent {
		events, err := NewFakeVADWithSeed(0.8, 123).Detect(ctx, sendFrames(20))
		if err != nil {
			t.Fatalf("Detect failed: %v", err)
		}
		return collect(events)
	}

	first := run()
	second := run()

	if len(first) != len(second) {
		t.Fatalf("event counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Type != second[i].Type {
			t.Errorf("event %d: %v vs %v", i, first[i].Type, second[i].Type)
		}
	}
}

func TestFakeVAD_AlwaysSpeechStartsPromptly(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	events, err := NewFakeVADWithSeed(1.0, 42).Detect(ctx, sendFrames(50))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	for ev := range events {
		if ev.Type != vad.VADEventSpeechStart {
			continue
		}
		if d := ev.Timestamp.Sub(start); d < 0 || d > 100*time.Millisecond {
			t.Errorf("speech start reported %v after feeding frames", d)
		}
		return
	}
	t.Fatal("expected a speech start event at full probability")
}

func TestFakeVAD_EndsOpenSegmentOnInputClose(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	events, err := NewFakeVADWithSeed(1.0, 42).Detect(ctx, sendFrames(50))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	all := collect(events)
	if len(all) == 0 {
		t.Fatal("expected events at full probability")
	}
	if last := all[len(all)-1]; last.Type != vad.VADEventSpeechEnd {
		t.Errorf("last event = %v, want speech end when input closes mid-segment", last.Type)
	}
}

func TestFakeVAD_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	frames := make(chan rtc.AudioFrame)
	events, err := NewFakeVAD(0.5).Detect(ctx, frames)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	cancel()
	close(frames)

	deadline := time.After(100 * time.Millisecond)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("event channel not closed after cancellation")
		}
	}
}
