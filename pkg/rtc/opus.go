package rtc

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
	opus "gopkg.in/hraban/opus.v2"
)

const (
	// OpusSampleRate is the WebRTC Opus clock rate. Remote tracks decode to
	// it and published tracks encode from it.
	OpusSampleRate = 48000

	// maxDecodedSamples bounds one decoded Opus packet: 120ms at 48kHz mono.
	maxDecodedSamples = 5760

	// encodeFrameSamples is 20ms at 48kHz mono.
	encodeFrameSamples = 960

	// maxOpusPacketBytes is the largest packet libopus may emit.
	maxOpusPacketBytes = 1275
)

// TrackReader decodes a remote Opus track into 10ms PCM frames.
type TrackReader struct {
	decoder *opus.Decoder
	chunker *frameChunker
	pcm     []int16
	out     chan<- AudioFrame
	dropped int
}

// NewTrackReader prepares a decoder that emits 48kHz mono frames on out.
func NewTrackReader(out chan<- AudioFrame) (*TrackReader, error) {
	decoder, err := opus.NewDecoder(OpusSampleRate, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}
	return &TrackReader{
		decoder: decoder,
		chunker: newFrameChunker(OpusSampleRate),
		pcm:     make([]int16, maxDecodedSamples),
		out:     out,
	}, nil
}

// ReadLoop pulls RTP packets from the track until it ends or ctx is
// cancelled. Frames that would block a full out channel are dropped so the
// RTP reader never backs up.
func (r *TrackReader) ReadLoop(ctx context.Context, track *webrtc.TrackRemote) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		packet, _, err := track.ReadRTP()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read RTP packet: %w", err)
		}
		if len(packet.Payload) == 0 {
			continue
		}

		n, err := r.decoder.Decode(packet.Payload, r.pcm)
		if err != nil {
			slog.Warn("Failed to decode opus packet, skipping",
				slog.String("error", err.Error()))
			continue
		}
		if n == 0 {
			continue
		}

		for _, frame := range r.chunker.write(r.pcm[:n]) {
			select {
			case r.out <- frame:
			case <-ctx.Done():
				return ctx.Err()
			default:
				r.dropped++
				if r.dropped%100 == 1 {
					slog.Warn("Audio consumer is behind, dropping frames",
						slog.Int("dropped", r.dropped))
				}
			}
		}
	}
}

// frameChunker buffers decoded samples and cuts them into 10ms frames.
type frameChunker struct {
	sampleRate int
	pending    []int16
}

func newFrameChunker(sampleRate int) *frameChunker {
	return &frameChunker{sampleRate: sampleRate}
}

func (c *frameChunker) write(samples []int16) []AudioFrame {
	c.pending = append(c.pending, samples...)

	perFrame := c.sampleRate / 100
	var frames []AudioFrame
	for len(c.pending) >= perFrame {
		data := make([]byte, perFrame*2)
		for i, s := range c.pending[:perFrame] {
			binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
		}
		c.pending = c.pending[perFrame:]
		frames = append(frames, AudioFrame{
			Data:              data,
			SampleRate:        c.sampleRate,
			SamplesPerChannel: perFrame,
			NumChannels:       1,
		})
	}
	return frames
}

// SampleWriter delivers one encoded Opus packet to a published track.
type SampleWriter func(sample media.Sample) error

// TrackWriter encodes PCM frames into Opus packets for a published track.
// Input frames may arrive at any rate and channel count; they are downmixed
// to mono and resampled to 48kHz before encoding.
type TrackWriter struct {
	encoder *opus.Encoder
	write   SampleWriter
	pending []int16
	packet  []byte
}

// NewTrackWriter prepares an encoder that hands 20ms packets to write.
func NewTrackWriter(write SampleWriter) (*TrackWriter, error) {
	encoder, err := opus.NewEncoder(OpusSampleRate, 1, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}
	return &TrackWriter{
		encoder: encoder,
		write:   write,
		packet:  make([]byte, maxOpusPacketBytes),
	}, nil
}

// WriteFrame accumulates the frame's samples and flushes every complete
// 20ms of audio as one encoded packet.
func (w *TrackWriter) WriteFrame(frame AudioFrame) error {
	pcm := framePCM(frame)
	if frame.SampleRate != OpusSampleRate {
		pcm = Resample(pcm, frame.SampleRate, OpusSampleRate)
	}
	w.pending = append(w.pending, pcm...)

	for len(w.pending) >= encodeFrameSamples {
		n, err := w.encoder.Encode(w.pending[:encodeFrameSamples], w.packet)
		if err != nil {
			return fmt.Errorf("failed to encode opus packet: %w", err)
		}
		w.pending = w.pending[encodeFrameSamples:]

		sample := media.Sample{
			Data:     append([]byte(nil), w.packet[:n]...),
			Duration: 20 * time.Millisecond,
		}
		if err := w.write(sample); err != nil {
			return fmt.Errorf("failed to write sample: %w", err)
		}
	}
	return nil
}

// framePCM decodes the frame's little-endian bytes to mono samples,
// averaging channel pairs when the frame is stereo.
func framePCM(frame AudioFrame) []int16 {
	samples := make([]int16, len(frame.Data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(frame.Data[i*2:]))
	}
	if frame.NumChannels != 2 {
		return samples
	}

	mono := make([]int16, len(samples)/2)
	for i := range mono {
		mono[i] = int16((int32(samples[i*2]) + int32(samples[i*2+1])) / 2)
	}
	return mono
}

// Resample converts mono PCM between rates by linear interpolation.
func Resample(pcm []int16, from, to int) []int16 {
	if from == to || len(pcm) == 0 {
		return pcm
	}

	n := len(pcm) * to / from
	out := make([]int16, n)
	for i := range out {
		pos := float64(i) * float64(from) / float64(to)
		j := int(pos)
		if j >= len(pcm)-1 {
			out[i] = pcm[len(pcm)-1]
			continue
		}
		frac := pos - float64(j)
		out[i] = int16(float64(pcm[j])*(1-frac) + float64(pcm[j+1])*frac)
	}
	return out
}
