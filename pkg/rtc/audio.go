package rtc

import (
	"fmt"
	"time"
)

// AudioFrame holds 10 ms of 16-bit little-endian PCM.
// len(Data) == SamplesPerChannel * NumChannels * 2.
// A zero Timestamp means live audio; otherwise it is an offset into the
// stream the frame came from.
type AudioFrame struct {
	Data              []byte
	SampleRate        int // 48000 or 16000
	SamplesPerChannel int // SampleRate / 100
	NumChannels       int // 1 or 2
	Timestamp         time.Duration
}

// NewAudioFrame wraps data as a 10 ms frame, rejecting buffers whose length
// does not match the sample rate and channel count.
func NewAudioFrame(data []byte, sampleRate, numChannels int, timestamp time.Duration) (*AudioFrame, error) {
	samplesPerChannel := sampleRate / 100
	if want := samplesPerChannel * numChannels * 2; len(data) != want {
		return nil, fmt.Errorf("audio frame length mismatch: got %d bytes, want %d for %dHz %d-channel 10ms audio",
			len(data), want, sampleRate, numChannels)
	}
	return &AudioFrame{
		Data:              data,
		SampleRate:        sampleRate,
		SamplesPerChannel: samplesPerChannel,
		NumChannels:       numChannels,
		Timestamp:         timestamp,
	}, nil
}

// Clone returns a copy whose Data does not alias the original.
func (f *AudioFrame) Clone() *AudioFrame {
	clone := *f
	clone.Data = append([]byte(nil), f.Data...)
	return &clone
}

// Duration is fixed at 10ms per frame.
func (f *AudioFrame) Duration() time.Duration {
	return 10 * time.Millisecond
}
