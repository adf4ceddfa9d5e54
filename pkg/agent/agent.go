// Package agent implements the voice assistant: a finite state machine that
// moves through Idle, Listening, Thinking and Speaking as conversation
// events arrive.
package agent

import (
	"context"
	"expvar"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chriscow/meetbot/pkg/ai/llm"
	"github.com/chriscow/meetbot/pkg/ai/stt"
	"github.com/chriscow/meetbot/pkg/ai/tts"
	"github.com/chriscow/meetbot/pkg/ai/vad"
	"github.com/chriscow/meetbot/pkg/job"
	"github.com/chriscow/meetbot/pkg/metrics"
	"github.com/chriscow/meetbot/pkg/rtc"
	"github.com/chriscow/meetbot/pkg/tools"
	"github.com/chriscow/meetbot/pkg/turn"
	"github.com/chriscow/meetbot/pkg/voice"
)

// DefaultInstructions is the system prompt used when none is configured.
const DefaultInstructions = `You are a helpful voice AI assistant. The user is interacting with you via voice, even if you perceive the conversation as text.
You eagerly assist users with their questions by providing information from your extensive knowledge.
Your responses are concise, to the point, and without any complex formatting or punctuation including emojis, asterisks, or other symbols.
You are curious, friendly, and have a sense of humor.`

// maxToolRounds bounds repeated function calls within a single user turn.
const maxToolRounds = 3

type AgentState int32

const (
	StateIdle AgentState = iota
	StateListening
	StateThinking
	StateSpeaking
)

func (s AgentState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateListening:
		return "Listening"
	case StateThinking:
		return "Thinking"
	case StateSpeaking:
		return "Speaking"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// Agent coordinates the STT, TTS, LLM and VAD providers, keeps the
// conversation history, and dispatches LLM tool calls.
type Agent struct {
	stt stt.STT
	tts tts.TTS
	llm llm.LLM
	vad vad.VAD

	turnDetector turn.Detector
	tools        *tools.Registry
	usage        *metrics.UsageCollector

	instructions string
	language     string

	// gate drops microphone frames while synthesized audio is playing so
	// the assistant does not transcribe its own voice.
	gate voice.AudioGate

	state atomic.Int32

	// Conversation history, guarded by historyMu. Always starts with the
	// system instructions.
	historyMu sync.Mutex
	history   []llm.Message

	micIn  <-chan rtc.AudioFrame
	ttsOut chan<- rtc.AudioFrame

	vadEvents    <-chan vad.VADEvent
	sttEvents    <-chan stt.SpeechEvent
	interrupts   chan struct{}
	shutdown     chan struct{}
	shutdownOnce sync.Once

	// Active recognition session and the goroutine feeding it audio.
	streamMu  sync.Mutex
	sttStream stt.STTStream
	feederMu  sync.Mutex
	feeder    *feeder

	// Nanoseconds of audio pushed to recognition since the last final
	// transcript. Drained into usage when the transcript arrives.
	sttAudioNanos atomic.Int64

	sessionStart      time.Time
	firstWordTimeOnce sync.Once
	firstWordTime     time.Time
	metrics           *AgentMetrics
}

// feeder is the goroutine pushing microphone audio into the STT stream.
type feeder struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// AgentMetrics holds performance metrics for the agent.
type AgentMetrics struct {
	FirstWordLatency *expvar.Float
	SessionDuration  *expvar.Float
	StateTransitions *expvar.Map
}

func newAgentMetrics() *AgentMetrics {
	// Not registered globally so every agent instance gets fresh counters.
	transitions := &expvar.Map{}
	transitions.Init()
	return &AgentMetrics{
		FirstWordLatency: &expvar.Float{},
		SessionDuration:  &expvar.Float{},
		StateTransitions: transitions,
	}
}

// Config holds configuration for creating an Agent.
type Config struct {
	STT stt.STT
	TTS tts.TTS
	LLM llm.LLM
	VAD vad.VAD

	// TurnDetector gates the transition from listening to thinking; when
	// nil, every final transcript ends the turn.
	TurnDetector turn.Detector

	// Tools are advertised to the LLM and dispatched on function calls.
	Tools *tools.Registry

	// Usage accumulates provider usage for the session summary.
	Usage *metrics.UsageCollector

	// Instructions override the default system prompt.
	Instructions string

	// Language hint for STT and turn detection. Defaults to "en-US".
	Language string

	MicIn  <-chan rtc.AudioFrame
	TTSOut chan<- rtc.AudioFrame
}

func (cfg Config) validate() error {
	required := []struct {
		name string
		ok   bool
	}{
		{"STT", cfg.STT != nil},
		{"TTS", cfg.TTS != nil},
		{"LLM", cfg.LLM != nil},
		{"VAD", cfg.VAD != nil},
		{"MicIn channel", cfg.MicIn != nil},
		{"TTSOut channel", cfg.TTSOut != nil},
	}
	for _, r := range required {
		if !r.ok {
			return fmt.Errorf("%s is required", r.name)
		}
	}
	return nil
}

// New creates an Agent in the Idle state.
func New(cfg Config) (*Agent, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	instructions := cfg.Instructions
	if instructions == "" {
		instructions = DefaultInstructions
	}
	language := cfg.Language
	if language == "" {
		language = "en-US"
	}

	a := &Agent{
		stt:          cfg.STT,
		tts:          cfg.TTS,
		llm:          cfg.LLM,
		vad:          cfg.VAD,
		turnDetector: cfg.TurnDetector,
		tools:        cfg.Tools,
		usage:        cfg.Usage,
		instructions: instructions,
		language:     language,
		gate:         voice.NewAudioGate(),
		history:      []llm.Message{{Role: llm.RoleSystem, Content: instructions}},
		micIn:        cfg.MicIn,
		ttsOut:       cfg.TTSOut,
		interrupts:   make(chan struct{}, 1),
		shutdown:     make(chan struct{}),
		metrics:      newAgentMetrics(),
	}
	a.setState(StateIdle)
	return a, nil
}

// Start runs the agent until ctx or the job's context is cancelled, or an
// unrecoverable error occurs.
func (a *Agent) Start(ctx context.Context, j *job.Job) error {
	if j == nil {
		return fmt.Errorf("job is required")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(j.Context.Ctx, cancel)
	defer stop()

	a.sessionStart = time.Now()
	defer a.updateSessionDuration()

	vadEvents, err := a.vad.Detect(ctx, a.micIn)
	if err != nil {
		return fmt.Errorf("failed to start VAD: %w", err)
	}
	a.vadEvents = vadEvents

	return a.run(ctx)
}

// Say synthesizes and plays a line directly, bypassing the conversation
// loop. Used for the initial greeting. The line is added to the history as
// an assistant message.
func (a *Agent) Say(ctx context.Context, text string) error {
	a.appendHistory(llm.Message{Role: llm.RoleAssistant, Content: text})
	a.setState(StateSpeaking)
	return a.startSpeaking(ctx, text)
}

// Interrupt asks the agent to abandon the current turn and listen again.
// Non-blocking; redundant interrupts coalesce.
func (a *Agent) Interrupt() {
	select {
	case a.interrupts <- struct{}{}:
	default:
	}
}

// Close shuts down the agent. Idempotent.
func (a *Agent) Close() error {
	a.shutdownOnce.Do(func() {
		close(a.shutdown)
	})

	a.streamMu.Lock()
	defer a.streamMu.Unlock()
	if a.sttStream != nil {
		a.sttStream.CloseSend()
		a.sttStream = nil
	}
	return nil
}

func (a *Agent) GetState() AgentState {
	return AgentState(a.state.Load())
}

// History returns a copy of the conversation so far.
func (a *Agent) History() []llm.Message {
	a.historyMu.Lock()
	defer a.historyMu.Unlock()
	return append([]llm.Message(nil), a.history...)
}

func (a *Agent) appendHistory(msg llm.Message) {
	a.historyMu.Lock()
	a.history = append(a.history, msg)
	a.historyMu.Unlock()
}

// setState swaps the state and counts the transition.
func (a *Agent) setState(newState AgentState) {
	oldState := AgentState(a.state.Swap(int32(newState)))
	a.metrics.StateTransitions.Add(fmt.Sprintf("%s_to_%s", oldState, newState), 1)
}

func (a *Agent) updateSessionDuration() {
	a.metrics.SessionDuration.Set(float64(time.Since(a.sessionStart).Milliseconds()))
}
