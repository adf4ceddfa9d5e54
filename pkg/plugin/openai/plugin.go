package openai

import (
	"fmt"
	"os"

	"github.com/chriscow/meetbot/pkg/plugin"
)

// apiKey pulls the key from plugin config, falling back to the environment.
func apiKey(cfg map[string]any) (string, error) {
	if key, ok := cfg["api_key"].(string); ok && key != "" {
		return key, nil
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return key, nil
	}
	return "", fmt.Errorf("OpenAI API key is required (set OPENAI_API_KEY environment variable or provide api_key in config)")
}

func stringOption(cfg map[string]any, key, fallback string) string {
	if v, ok := cfg[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func newWhisperPlugin(cfg map[string]any) (any, error) {
	key, err := apiKey(cfg)
	if err != nil {
		return nil, err
	}
	return NewWhisperSTT(Config{
		APIKey:   key,
		Model:    stringOption(cfg, "model", ""),
		Language: stringOption(cfg, "language", ""),
	})
}

func init() {
	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        "stt",
		Name:        "openai",
		Factory:     newWhisperPlugin,
		Description: "OpenAI Whisper speech-to-text service",
		Version:     "1.0.0",
		Config: map[string]any{
			"api_key":  "OpenAI API key (or set OPENAI_API_KEY env var)",
			"model":    "whisper-1",
			"language": "auto-detect (leave empty) or specify language code",
		},
	})

	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        "llm",
		Name:        "openai",
		Factory:     newChatPlugin,
		Description: "OpenAI GPT chat completion service",
		Version:     "1.0.0",
		Config: map[string]any{
			"api_key": "OpenAI API key (or set OPENAI_API_KEY env var)",
			"model":   "gpt-4.1-mini",
		},
	})

	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        "tts",
		Name:        "openai",
		Factory:     newSpeechPlugin,
		Description: "OpenAI text-to-speech service",
		Version:     "1.0.0",
		Config: map[string]any{
			"api_key": "OpenAI API key (or set OPENAI_API_KEY env var)",
			"model":   "tts-1",
			"voice":   "alloy",
		},
	})
}
