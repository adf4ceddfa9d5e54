package energy

import (
	"context"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/chriscow/meetbot/pkg/ai/vad"
	"github.com/chriscow/meetbot/pkg/rtc"
)

func pcmFrame(amplitude int16) rtc.AudioFrame {
	const samples = 160 // 10ms at 16kHz
	data := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		data[i*2] = byte(uint16(amplitude) & 0xff)
		data[i*2+1] = byte(uint16(amplitude) >> 8)
	}
	return rtc.AudioFrame{Data: data, SampleRate: 16000, SamplesPerChannel: samples, NumChannels: 1}
}

func collectEvents(t *testing.T, events <-chan vad.VADEvent) []vad.VADEvent {
	t.Helper()
	var got []vad.VADEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-timeout:
			t.Fatal("timed out waiting for events channel to close")
		}
	}
}

func TestDetect_SpeechStartAndEnd(t *testing.T) {
	is := is.New(t)
	v := New(Options{
		MinSpeechDuration:  20 * time.Millisecond,
		MinSilenceDuration: 50 * time.Millisecond,
		InitialThreshold:   1000,
	})

	frames := make(chan rtc.AudioFrame, 128)
	events, err := v.Detect(context.Background(), frames)
	is.NoErr(err)

	// Loud frames long enough to cross the speech threshold, then sustained
	// silence to end the segment.
	for i := 0; i < 5; i++ {
		frames <- pcmFrame(8000)
	}
	for i := 0; i < 10; i++ {
		frames <- pcmFrame(0)
	}
	close(frames)

	got := collectEvents(t, events)
	is.Equal(len(got), 2)
	is.Equal(got[0].Type, vad.VADEventSpeechStart)
	is.Equal(got[1].Type, vad.VADEventSpeechEnd)
}

func TestDetect_SilenceOnlyEmitsNothing(t *testing.T) {
	is := is.New(t)
	v := New(DefaultOptions())

	frames := make(chan rtc.AudioFrame, 32)
	events, err := v.Detect(context.Background(), frames)
	is.NoErr(err)

	for i := 0; i < 20; i++ {
		frames <- pcmFrame(0)
	}
	close(frames)

	is.Equal(len(collectEvents(t, events)), 0)
}

func TestDetect_ShortBurstIgnored(t *testing.T) {
	is := is.New(t)
	v := New(Options{
		MinSpeechDuration:  100 * time.Millisecond,
		MinSilenceDuration: 50 * time.Millisecond,
		InitialThreshold:   1000,
	})

	frames := make(chan rtc.AudioFrame, 32)
	events, err := v.Detect(context.Background(), frames)
	is.NoErr(err)

	// 30ms of speech is under the 100ms minimum.
	for i := 0; i < 3; i++ {
		frames <- pcmFrame(8000)
	}
	for i := 0; i < 10; i++ {
		frames <- pcmFrame(0)
	}
	close(frames)

	is.Equal(len(collectEvents(t, events)), 0)
}

func TestDetect_ContextCancelClosesEvents(t *testing.T) {
	is := is.New(t)
	v := New(DefaultOptions())

	ctx, cancel := context.WithCancel(context.Background())
	frames := make(chan rtc.AudioFrame)
	events, err := v.Detect(ctx, frames)
	is.NoErr(err)

	cancel()
	select {
	case _, ok := <-events:
		is.True(!ok)
	case <-time.After(time.Second):
		t.Fatal("events channel did not close on cancellation")
	}
}
