package openai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chriscow/meetbot/pkg/ai/tts"
	"github.com/chriscow/meetbot/pkg/rtc"
)

// speechSampleRate is what the speech API produces.
const speechSampleRate = 24000

// SpeechTTS synthesizes audio through the OpenAI speech API.
type SpeechTTS struct {
	client *openai.Client
	model  string
	voice  string
}

func newSpeechPlugin(cfg map[string]any) (any, error) {
	key, err := apiKey(cfg)
	if err != nil {
		return nil, err
	}
	return &SpeechTTS{
		client: openai.NewClient(key),
		model:  stringOption(cfg, "model", "tts-1"),
		voice:  stringOption(cfg, "voice", "alloy"),
	}, nil
}

// Synthesize requests speech for the text and chunks the response body into
// audio frames. The request voice overrides the configured default.
func (o *SpeechTTS) Synthesize(ctx context.Context, req tts.SynthesizeRequest) (<-chan rtc.AudioFrame, error) {
	voice := req.Voice
	if voice == "" {
		voice = o.voice
	}

	start := time.Now()
	slog.Debug("starting speech synthesis",
		slog.String("model", o.model),
		slog.String("voice", voice))

	frames := make(chan rtc.AudioFrame, 10)
	go func() {
		defer close(frames)

		speechReq := openai.CreateSpeechRequest{
			Model: openai.SpeechModel(o.model),
			Input: req.Text,
			Voice: openai.SpeechVoice(voice),
		}
		if req.Speed > 0 {
			speechReq.Speed = float64(req.Speed)
		}

		resp, err := o.client.CreateSpeech(ctx, speechReq)
		if err != nil {
			slog.Error("speech synthesis failed", slog.String("error", err.Error()))
			return
		}
		defer resp.Close()

		if err := o.streamResponse(ctx, resp, frames, start); err != nil {
			slog.Error("error reading synthesis response", slog.String("error", err.Error()))
			return
		}
		slog.Debug("speech synthesis completed", slog.Duration("duration", time.Since(start)))
	}()

	return frames, nil
}

// streamResponse reads the response body in fixed chunks and forwards each as
// a frame. Downstream handles decoding of the compressed payload.
func (o *SpeechTTS) streamResponse(ctx context.Context, body io.Reader, frames chan<- rtc.AudioFrame, start time.Time) error {
	buffer := make([]byte, 2048)
	for {
		n, err := body.Read(buffer)
		if n > 0 {
			frame := rtc.AudioFrame{
				Data:              append([]byte(nil), buffer[:n]...),
				SampleRate:        speechSampleRate,
				SamplesPerChannel: n / 2,
				NumChannels:       1,
				Timestamp:         time.Since(start),
			}
			select {
			case frames <- frame:
			case <-ctx.Done():
				return nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func (o *SpeechTTS) Capabilities() tts.TTSCapabilities {
	return tts.TTSCapabilities{
		Streaming:            false,
		SupportedLanguages:   []string{"en", "es", "fr", "de", "it", "pt", "ru", "ja", "ko", "zh"},
		SupportedVoices:      []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"},
		SampleRates:          []int{speechSampleRate, 22050},
		SupportsSSML:         false,
		SupportsSpeedControl: true,
		SupportsPitchControl: false,
	}
}
