package config

import (
	"testing"
	"time"

	"github.com/matryer/is"
)

func setRequired(t *testing.T) {
	t.Setenv("LIVEKIT_URL", "wss://example.livekit.cloud")
	t.Setenv("LIVEKIT_API_KEY", "key")
	t.Setenv("LIVEKIT_API_SECRET", "secret")
}

func TestLoad_Defaults(t *testing.T) {
	is := is.New(t)
	setRequired(t)

	cfg, err := Load()
	is.NoErr(err)
	is.Equal(cfg.RescanInterval, 6*time.Second)
	is.Equal(cfg.RescanCount, 20)
	is.Equal(cfg.S3Region, "us-east-1")
	is.Equal(cfg.ElevenLabsModelID, "eleven_multilingual_v2")
	is.Equal(cfg.LLMModel, "gpt-4.1-mini")
}

func TestLoad_MissingLiveKitURL(t *testing.T) {
	is := is.New(t)
	t.Setenv("LIVEKIT_URL", "")
	t.Setenv("LIVEKIT_API_KEY", "key")
	t.Setenv("LIVEKIT_API_SECRET", "secret")

	_, err := Load()
	is.True(err != nil)
}

func TestLoad_RescanOverrides(t *testing.T) {
	is := is.New(t)
	setRequired(t)
	t.Setenv("EGRESS_RESCAN_INTERVAL", "2s")
	t.Setenv("EGRESS_RESCAN_COUNT", "5")

	cfg, err := Load()
	is.NoErr(err)
	is.Equal(cfg.RescanInterval, 2*time.Second)
	is.Equal(cfg.RescanCount, 5)
}

func TestLoad_BadDuration(t *testing.T) {
	is := is.New(t)
	setRequired(t)
	t.Setenv("EGRESS_RESCAN_INTERVAL", "often")

	_, err := Load()
	is.True(err != nil)
}

func TestLoad_NegativeInterval(t *testing.T) {
	is := is.New(t)
	setRequired(t)
	t.Setenv("EGRESS_RESCAN_INTERVAL", "-1s")

	_, err := Load()
	is.True(err != nil)
}
