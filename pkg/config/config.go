// Package config loads runtime settings from the environment, with an
// optional .env.local file for development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries all runtime settings for the meeting assistant.
type Config struct {
	// LiveKit server connection.
	LiveKitURL       string
	LiveKitAPIKey    string
	LiveKitAPISecret string

	// S3 destination for track recordings.
	S3Bucket          string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string

	// Provider credentials.
	OpenAIAPIKey     string
	AssemblyAIAPIKey string
	ElevenLabsAPIKey string

	// ElevenLabs synthesis settings.
	ElevenLabsVoiceID string
	ElevenLabsModelID string

	// OpenAI model for the assistant brain.
	LLMModel string

	// Recording activation rescan schedule.
	RescanInterval time.Duration
	RescanCount    int

	// Address for the Prometheus metrics endpoint; empty disables it.
	MetricsAddr string
}

// Load reads .env.local (if present) and the environment, applying defaults.
// Only the LiveKit settings are required; provider keys are validated by the
// components that need them.
func Load() (Config, error) {
	// Missing file is fine; env vars alone are enough in production.
	_ = godotenv.Load(".env.local")

	cfg := Config{
		LiveKitURL:        os.Getenv("LIVEKIT_URL"),
		LiveKitAPIKey:     os.Getenv("LIVEKIT_API_KEY"),
		LiveKitAPISecret:  os.Getenv("LIVEKIT_API_SECRET"),
		S3Bucket:          os.Getenv("AWS_S3_BUCKET"),
		S3Region:          envOrDefault("AWS_REGION", "us-east-1"),
		S3AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		S3SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		AssemblyAIAPIKey:  os.Getenv("ASSEMBLYAI_API_KEY"),
		ElevenLabsAPIKey:  os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsVoiceID: envOrDefault("ELEVENLABS_VOICE_ID", "EXAVITQu4vr4xnSDxMaL"),
		ElevenLabsModelID: envOrDefault("ELEVENLABS_MODEL_ID", "eleven_multilingual_v2"),
		LLMModel:          envOrDefault("LLM_MODEL", "gpt-4.1-mini"),
		RescanInterval:    6 * time.Second,
		RescanCount:       20,
		MetricsAddr:       os.Getenv("METRICS_ADDR"),
	}

	var err error
	cfg.RescanInterval, err = durationFromEnv("EGRESS_RESCAN_INTERVAL", cfg.RescanInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.RescanCount, err = intFromEnv("EGRESS_RESCAN_COUNT", cfg.RescanCount)
	if err != nil {
		return Config{}, err
	}

	if cfg.LiveKitURL == "" {
		return Config{}, fmt.Errorf("LIVEKIT_URL is required")
	}
	if cfg.LiveKitAPIKey == "" || cfg.LiveKitAPISecret == "" {
		return Config{}, fmt.Errorf("LIVEKIT_API_KEY and LIVEKIT_API_SECRET are required")
	}
	if cfg.RescanInterval <= 0 {
		return Config{}, fmt.Errorf("EGRESS_RESCAN_INTERVAL must be positive")
	}
	if cfg.RescanCount < 0 {
		return Config{}, fmt.Errorf("EGRESS_RESCAN_COUNT must be >= 0")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
