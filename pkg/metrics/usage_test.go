package metrics

import (
	"sync"
	"testing"

	"github.com/matryer/is"
)

func TestUsageCollector_Tally(t *testing.T) {
	is := is.New(t)
	c := NewUsageCollector(nil)

	c.AddLLMTokens(120, 45)
	c.AddLLMTokens(30, 10)
	c.AddSTTAudio(2.5)
	c.AddTTSCharacters(340)
	c.AddEgressRequest("ok")
	c.AddEgressRequest("error")

	u := c.Snapshot()
	is.Equal(u.LLMPromptTokens, int64(150))
	is.Equal(u.LLMCompletionTokens, int64(55))
	is.Equal(u.STTAudioSeconds, 2.5)
	is.Equal(u.TTSCharacters, int64(340))
	is.Equal(u.EgressRequests, int64(2))
}

func TestUsageCollector_Summary(t *testing.T) {
	is := is.New(t)
	c := NewUsageCollector(nil)
	c.AddLLMTokens(10, 5)
	c.AddSTTAudio(1)
	c.AddTTSCharacters(42)

	is.Equal(c.Summary(), "llm_tokens=10/5 stt_audio=1.0s tts_chars=42 egress_requests=0")
}

func TestUsageCollector_Concurrent(t *testing.T) {
	c := NewUsageCollector(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.AddLLMTokens(1, 1)
			c.AddTTSCharacters(2)
		}()
	}
	wg.Wait()

	u := c.Snapshot()
	if u.LLMPromptTokens != 50 || u.TTSCharacters != 100 {
		t.Errorf("lost updates: %+v", u)
	}
}
