package main

import (
	"net/url"
	"strings"
	"testing"

	"github.com/chriscow/meetbot/pkg/ai/stt"
	"github.com/chriscow/meetbot/pkg/ai/vad"
)

func TestMeetLink(t *testing.T) {
	link := meetLink("wss://example.livekit.cloud", "tok123")

	if !strings.HasPrefix(link, "https://meet.livekit.io/custom?") {
		t.Errorf("unexpected link prefix: %s", link)
	}

	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("link does not parse: %v", err)
	}
	q := u.Query()
	if got := q.Get("liveKitUrl"); got != "wss://example.livekit.cloud" {
		t.Errorf("liveKitUrl = %q", got)
	}
	if got := q.Get("token"); got != "tok123" {
		t.Errorf("token = %q", got)
	}
}

func TestJoinToken_ContainsThreeJWTParts(t *testing.T) {
	token, err := joinToken("api-key", "api-secret-at-least-32-characters!!", "standup", "human-user", 0)
	if err != nil {
		t.Fatalf("joinToken failed: %v", err)
	}
	if parts := strings.Split(token, "."); len(parts) != 3 {
		t.Errorf("expected a JWT with 3 segments, got %d", len(parts))
	}
}

func TestCreateProvider_UnknownPlugin(t *testing.T) {
	_, err := createProvider[stt.STT]("stt", "no-such-provider", nil)
	if err == nil {
		t.Fatal("expected error for unregistered plugin")
	}
}

func TestCreateProvider_WrongType(t *testing.T) {
	// The energy plugin produces a vad.VAD, not an stt.STT.
	_, err := createProvider[stt.STT]("vad", "energy", map[string]any{})
	if err == nil {
		t.Fatal("expected type assertion error")
	}
}

func TestCreateProvider_EnergyVAD(t *testing.T) {
	provider, err := createProvider[vad.VAD]("vad", "energy", map[string]any{})
	if err != nil {
		t.Fatalf("createProvider failed: %v", err)
	}
	if provider == nil {
		t.Fatal("expected a VAD instance")
	}
}
