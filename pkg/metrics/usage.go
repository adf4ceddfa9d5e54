// Package metrics accumulates per-session provider usage and exposes it
// as Prometheus instruments.
package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Usage is a snapshot of accumulated provider usage for one session.
type Usage struct {
	LLMPromptTokens     int64
	LLMCompletionTokens int64
	STTAudioSeconds     float64
	TTSCharacters       int64
	EgressRequests      int64
}

// Instruments groups the Prometheus collectors shared by all sessions.
type Instruments struct {
	LLMTokens      *prometheus.CounterVec
	STTAudio       prometheus.Counter
	TTSCharacters  prometheus.Counter
	EgressRequests *prometheus.CounterVec
	ActiveSessions prometheus.Gauge
}

// NewInstruments registers the collectors on the default registry. Call it
// once per process.
func NewInstruments(namespace string) *Instruments {
	return &Instruments{
		LLMTokens: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "LLM tokens consumed, by kind.",
		}, []string{"kind"}),
		STTAudio: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stt_audio_seconds_total",
			Help:      "Seconds of audio sent for transcription.",
		}),
		TTSCharacters: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tts_characters_total",
			Help:      "Characters sent for speech synthesis.",
		}),
		EgressRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "egress_requests_total",
			Help:      "Track egress submissions, by outcome.",
		}, []string{"outcome"}),
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of rooms with a live assistant session.",
		}),
	}
}

// UsageCollector tallies usage for a single session. Safe for concurrent use.
// The Prometheus instruments are optional; a nil Instruments only keeps the
// in-memory tally.
type UsageCollector struct {
	mu    sync.Mutex
	usage Usage
	inst  *Instruments
}

func NewUsageCollector(inst *Instruments) *UsageCollector {
	return &UsageCollector{inst: inst}
}

func (c *UsageCollector) AddLLMTokens(prompt, completion int64) {
	c.mu.Lock()
	c.usage.LLMPromptTokens += prompt
	c.usage.LLMCompletionTokens += completion
	c.mu.Unlock()
	if c.inst != nil {
		c.inst.LLMTokens.WithLabelValues("prompt").Add(float64(prompt))
		c.inst.LLMTokens.WithLabelValues("completion").Add(float64(completion))
	}
}

func (c *UsageCollector) AddSTTAudio(seconds float64) {
	c.mu.Lock()
	c.usage.STTAudioSeconds += seconds
	c.mu.Unlock()
	if c.inst != nil {
		c.inst.STTAudio.Add(seconds)
	}
}

func (c *UsageCollector) AddTTSCharacters(n int64) {
	c.mu.Lock()
	c.usage.TTSCharacters += n
	c.mu.Unlock()
	if c.inst != nil {
		c.inst.TTSCharacters.Add(float64(n))
	}
}

// AddEgressRequest records one submission attempt. outcome is "ok" or "error".
func (c *UsageCollector) AddEgressRequest(outcome string) {
	c.mu.Lock()
	c.usage.EgressRequests++
	c.mu.Unlock()
	if c.inst != nil {
		c.inst.EgressRequests.WithLabelValues(outcome).Inc()
	}
}

// Snapshot returns a copy of the current tally.
func (c *UsageCollector) Snapshot() Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}

// Summary formats the tally for the end-of-session log line.
func (c *UsageCollector) Summary() string {
	u := c.Snapshot()
	return fmt.Sprintf("llm_tokens=%d/%d stt_audio=%.1fs tts_chars=%d egress_requests=%d",
		u.LLMPromptTokens, u.LLMCompletionTokens, u.STTAudioSeconds, u.TTSCharacters, u.EgressRequests)
}

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
