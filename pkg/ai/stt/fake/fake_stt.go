// Package fake provides an in-memory STT provider that transcribes every
// utterance to a fixed string. It exists so pipeline and agent tests can run
// without network access or API keys.
package fake

import (
	"context"
	"fmt"
	"time"

	"github.com/chriscow/meetbot/pkg/ai/stt"
	"github.com/chriscow/meetbot/pkg/rtc"
)

// DefaultTranscript is emitted when the provider is built without one.
const DefaultTranscript = "This is a fake transcript from the fake STT provider."

// interimEvery is the number of pushed frames between interim events.
const interimEvery = 10

// FakeSTT returns the same transcript for any audio it is fed.
type FakeSTT struct {
	transcript string
}

func NewFakeSTT(transcript string) *FakeSTT {
	if transcript == "" {
		transcript = DefaultTranscript
	}
	return &FakeSTT{transcript: transcript}
}

func (f *FakeSTT) NewStream(ctx context.Context, cfg stt.StreamConfig) (stt.STTStream, error) {
	return &fakeStream{
		ctx:        ctx,
		transcript: f.transcript,
		events:     make(chan stt.SpeechEvent, 10),
	}, nil
}

func (f *FakeSTT) Capabilities() stt.STTCapabilities {
	return stt.STTCapabilities{
		Streaming:          true,
		InterimResults:     true,
		SupportedLanguages: []string{"en-US", "en-GB", "es-ES"},
		SampleRates:        []int{16000, 48000},
	}
}

type fakeStream struct {
	ctx        context.Context
	transcript string
	events     chan stt.SpeechEvent
	frames     int
	closed     bool
}

// Push counts frames and emits a growing interim transcript every
// interimEvery frames, imitating a provider that refines its hypothesis as
// audio arrives.
func (s *fakeStream) Push(frame rtc.AudioFrame) error {
	if s.closed {
		return fmt.Errorf("stream is closed")
	}

	s.frames++
	if s.frames%interimEvery != 0 {
		return nil
	}

	partial := s.transcript
	if shown := s.frames / 2; shown < len(partial) {
		partial = partial[:shown]
	}
	return s.emit(stt.SpeechEvent{
		Type:      stt.SpeechEventInterim,
		Text:      partial,
		Language:  "en-US",
		Timestamp: time.Now().UnixMilli(),
	})
}

func (s *fakeStream) Events() <-chan stt.SpeechEvent {
	return s.events
}

// CloseSend emits the full transcript as a final event and closes the
// events channel. Safe to call more than once.
func (s *fakeStream) CloseSend() error {
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.emit(stt.SpeechEvent{
		Type:      stt.SpeechEventFinal,
		Text:      s.transcript,
		IsFinal:   true,
		Language:  "en-US",
		Timestamp: time.Now().UnixMilli(),
	})
	close(s.events)
	return err
}

func (s *fakeStream) emit(ev stt.SpeechEvent) error {
	select {
	case s.events <- ev:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}
