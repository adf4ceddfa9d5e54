package plugin_test

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/chriscow/meetbot/pkg/ai/llm"
	"github.com/chriscow/meetbot/pkg/ai/stt"
	"github.com/chriscow/meetbot/pkg/ai/tts"
	"github.com/chriscow/meetbot/pkg/ai/vad"
	"github.com/chriscow/meetbot/pkg/plugin"
	_ "github.com/chriscow/meetbot/pkg/plugin/assemblyai" // Register AssemblyAI plugin
	_ "github.com/chriscow/meetbot/pkg/plugin/elevenlabs" // Register ElevenLabs plugin
	_ "github.com/chriscow/meetbot/pkg/plugin/energy"     // Register energy VAD plugin
	_ "github.com/chriscow/meetbot/pkg/plugin/fake"       // Register fake plugins
	_ "github.com/chriscow/meetbot/pkg/plugin/openai"     // Register OpenAI plugin
)

// build resolves a registered plugin and instantiates it, failing the test on
// any step.
func build(t *testing.T, kind, name string, cfg map[string]any) any {
	t.Helper()

	factory, exists := plugin.Get(kind, name)
	if !exists {
		t.Fatalf("%s/%s plugin not registered", kind, name)
	}
	instance, err := factory(cfg)
	if err != nil {
		t.Fatalf("creating %s/%s instance: %v", kind, name, err)
	}
	return instance
}

func TestRegisteredSTTProviders(t *testing.T) {
	t.Run("fake", func(t *testing.T) {
		instance, ok := build(t, "stt", "fake", map[string]any{
			"transcript": "Integration test transcript",
		}).(stt.STT)
		if !ok {
			t.Fatal("fake STT plugin does not implement stt.STT")
		}

		if !instance.Capabilities().Streaming {
			t.Error("fake STT should support streaming")
		}

		stream, err := instance.NewStream(context.Background(), stt.StreamConfig{
			SampleRate:  16000,
			NumChannels: 1,
			Lang:        "en-US",
			MaxRetry:    3,
		})
		if err != nil {
			t.Fatalf("creating STT stream: %v", err)
		}
		if stream == nil {
			t.Error("STT stream should not be nil")
		}
	})

	t.Run("assemblyai", func(t *testing.T) {
		instance, ok := build(t, "stt", "assemblyai", map[string]any{
			"api_key": "test-key",
		}).(stt.STT)
		if !ok {
			t.Fatal("assemblyai plugin does not implement stt.STT")
		}

		caps := instance.Capabilities()
		if !caps.Streaming {
			t.Error("AssemblyAI STT should support streaming")
		}
		if !caps.InterimResults {
			t.Error("AssemblyAI STT should support interim results")
		}
	})

	t.Run("openai", func(t *testing.T) {
		instance, ok := build(t, "stt", "openai", map[string]any{
			"api_key": "test-key",
			"model":   "whisper-1",
		}).(stt.STT)
		if !ok {
			t.Fatal("openai plugin does not implement stt.STT")
		}

		caps := instance.Capabilities()
		if !caps.Streaming {
			t.Error("OpenAI STT should support streaming")
		}
		if caps.InterimResults {
			t.Error("OpenAI STT buffers full utterances and should not report interim results")
		}
		if len(caps.SupportedLanguages) == 0 {
			t.Error("OpenAI STT should declare supported languages")
		}
	})
}

func TestRegisteredTTSProviders(t *testing.T) {
	t.Run("fake", func(t *testing.T) {
		instance, ok := build(t, "tts", "fake", map[string]any{}).(tts.TTS)
		if !ok {
			t.Fatal("fake TTS plugin does not implement tts.TTS")
		}
		if len(instance.Capabilities().SupportedLanguages) == 0 {
			t.Error("fake TTS should declare supported languages")
		}
	})

	t.Run("elevenlabs", func(t *testing.T) {
		instance, ok := build(t, "tts", "elevenlabs", map[string]any{
			"api_key": "test-key",
		}).(tts.TTS)
		if !ok {
			t.Fatal("elevenlabs plugin does not implement tts.TTS")
		}
		if !instance.Capabilities().Streaming {
			t.Error("ElevenLabs TTS should support streaming")
		}
	})
}

func TestRegisteredLLMProviders(t *testing.T) {
	instance, ok := build(t, "llm", "fake", map[string]any{
		"responses": []string{"Test response 1", "Test response 2"},
	}).(llm.LLM)
	if !ok {
		t.Fatal("fake LLM plugin does not implement llm.LLM")
	}

	caps := instance.Capabilities()
	if caps.SupportsStreaming {
		t.Error("fake LLM should not claim streaming support")
	}
	if !caps.SupportsFunctions {
		t.Error("fake LLM should support functions")
	}
}

func TestRegisteredVADProviders(t *testing.T) {
	t.Run("fake", func(t *testing.T) {
		instance, ok := build(t, "vad", "fake", map[string]any{
			"threshold": 0.7,
		}).(vad.VAD)
		if !ok {
			t.Fatal("fake VAD plugin does not implement vad.VAD")
		}
		if got := instance.Capabilities().Sensitivity; got != 0.7 {
			t.Errorf("expected sensitivity 0.7, got %f", got)
		}
	})

	t.Run("energy", func(t *testing.T) {
		instance, ok := build(t, "vad", "energy", map[string]any{}).(vad.VAD)
		if !ok {
			t.Fatal("energy plugin does not implement vad.VAD")
		}
		if len(instance.Capabilities().SampleRates) == 0 {
			t.Error("energy VAD should declare supported sample rates")
		}
	})
}

func TestOpenAISTTRequiresAPIKey(t *testing.T) {
	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		t.Skip("OPENAI_API_KEY is set in the environment")
	}

	factory, _ := plugin.Get("stt", "openai")
	_, err := factory(map[string]any{})
	if err == nil {
		t.Fatal("expected error when creating OpenAI STT without API key")
	}
	if !strings.Contains(err.Error(), "OpenAI API key is required") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestPluginListing(t *testing.T) {
	allPlugins := plugin.List("")
	if len(allPlugins) < 8 {
		t.Errorf("expected at least 8 plugins across fake and real providers, got %d", len(allPlugins))
	}

	vadNames := make(map[string]bool)
	for _, p := range plugin.List("vad") {
		vadNames[p.Name] = true
	}
	for _, name := range []string{"fake", "energy"} {
		if !vadNames[name] {
			t.Errorf("expected %s VAD plugin to be registered", name)
		}
	}
	if len(vadNames) != 2 {
		t.Errorf("expected 2 VAD plugins, got %d", len(vadNames))
	}

	if got := plugin.List("nonexistent"); len(got) != 0 {
		t.Errorf("expected 0 plugins for unknown kind, got %d", len(got))
	}
}
