// Package fake registers the in-memory fake providers under the "fake" name
// for every provider kind. Importing it for side effects gives tests and
// offline demos a full pipeline without external services.
package fake

import (
	llmfake "github.com/chriscow/meetbot/pkg/ai/llm/fake"
	sttfake "github.com/chriscow/meetbot/pkg/ai/stt/fake"
	ttsfake "github.com/chriscow/meetbot/pkg/ai/tts/fake"
	vadfake "github.com/chriscow/meetbot/pkg/ai/vad/fake"
	"github.com/chriscow/meetbot/pkg/plugin"
)

func init() {
	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        "stt",
		Name:        "fake",
		Factory:     newFakeSTT,
		Description: "Fake STT provider for testing and development",
		Version:     "1.0.0",
		Config:      map[string]any{"transcript": "Customizable transcript text"},
	})
	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        "tts",
		Name:        "fake",
		Factory:     newFakeTTS,
		Description: "Fake TTS provider for testing and development",
		Version:     "1.0.0",
		Config:      map[string]any{},
	})
	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        "llm",
		Name:        "fake",
		Factory:     newFakeLLM,
		Description: "Fake LLM provider for testing and development",
		Version:     "1.0.0",
		Config:      map[string]any{"responses": []string{"List of predefined responses"}},
	})
	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        "vad",
		Name:        "fake",
		Factory:     newFakeVAD,
		Description: "Fake VAD provider for testing and development",
		Version:     "1.0.0",
		Config:      map[string]any{"threshold": 0.5},
	})
}

func newFakeSTT(cfg map[string]any) (any, error) {
	transcript, _ := cfg["transcript"].(string)
	if transcript == "" {
		transcript = "Hello, this is a fake STT transcript"
	}
	return sttfake.NewFakeSTT(transcript), nil
}

func newFakeTTS(cfg map[string]any) (any, error) {
	return ttsfake.NewFakeTTS(), nil
}

func newFakeLLM(cfg map[string]any) (any, error) {
	if responses, ok := cfg["responses"].([]string); ok {
		return llmfake.NewFakeLLM(responses...), nil
	}
	return llmfake.NewFakeLLM(
		"This is a fake LLM response",
		"I'm a test AI assistant",
		"How can I help you today?",
	), nil
}

func newFakeVAD(cfg map[string]any) (any, error) {
	threshold := float32(0.5)
	switch t := cfg["threshold"].(type) {
	case float32:
		threshold = t
	case float64:
		threshold = float32(t)
	}
	return vadfake.NewFakeVAD(threshold), nil
}
