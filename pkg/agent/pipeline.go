package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chriscow/meetbot/pkg/ai/llm"
	"github.com/chriscow/meetbot/pkg/ai/stt"
	"github.com/chriscow/meetbot/pkg/ai/tts"
	"github.com/chriscow/meetbot/pkg/ai/vad"
	"github.com/chriscow/meetbot/pkg/turn"
)

// feederStopWait bounds how long startThinking waits for the audio feeder to
// exit before closing the recognition stream underneath it.
const feederStopWait = 100 * time.Millisecond

// run dispatches interrupt, VAD and STT events until shutdown.
func (a *Agent) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.shutdown:
			return nil
		case <-a.interrupts:
			if err := a.handleInterrupt(ctx); err != nil {
				return fmt.Errorf("interrupt handling failed: %w", err)
			}
		case vadEvent := <-a.vadEvents:
			if err := a.handleVADEvent(ctx, vadEvent); err != nil {
				return fmt.Errorf("VAD event handling failed: %w", err)
			}
		case sttEvent := <-a.sttEvents:
			if err := a.handleSTTEvent(ctx, sttEvent); err != nil {
				return fmt.Errorf("STT event handling failed: %w", err)
			}
		}
	}
}

// handleInterrupt abandons in-flight synthesis or inference and resumes
// listening. Idle and Listening need no action.
func (a *Agent) handleInterrupt(ctx context.Context) error {
	switch a.GetState() {
	case StateSpeaking, StateThinking:
		a.setState(StateListening)
		return a.startListening(ctx)
	}
	return nil
}

func (a *Agent) handleVADEvent(ctx context.Context, event vad.VADEvent) error {
	state := a.GetState()

	switch event.Type {
	case vad.VADEventSpeechStart:
		switch state {
		case StateIdle:
			a.setState(StateListening)
			return a.startListening(ctx)
		case StateSpeaking:
			// Barge-in: the user talks over the assistant.
			return a.handleInterrupt(ctx)
		}
	case vad.VADEventSpeechEnd:
		if state == StateListening {
			a.setState(StateThinking)
			return a.startThinking(ctx)
		}
	}
	return nil
}

func (a *Agent) handleSTTEvent(ctx context.Context, event stt.SpeechEvent) error {
	if event.Type != stt.SpeechEventFinal || a.GetState() != StateThinking {
		return nil
	}

	if heard := time.Duration(a.sttAudioNanos.Swap(0)); heard > 0 && a.usage != nil {
		a.usage.AddSTTAudio(heard.Seconds())
	}

	if !a.turnComplete(ctx, event.Text) {
		// The user likely has more to say. Resume listening and let the
		// next speech segment extend the turn.
		a.setState(StateListening)
		return a.startListening(ctx)
	}

	return a.processLLMResponse(ctx, event.Text)
}

// turnComplete consults the turn detector with the conversation so far plus
// the new transcript. Detector failures end the turn rather than stall it.
func (a *Agent) turnComplete(ctx context.Context, transcript string) bool {
	if a.turnDetector == nil {
		return true
	}

	prob, err := a.turnDetector.PredictEndOfTurn(ctx, turn.ChatContext{
		Messages: append(a.History(), llm.Message{Role: llm.RoleUser, Content: transcript}),
		Language: a.language,
	})
	if err != nil {
		slog.Debug("turn prediction failed, ending turn", slog.String("error", err.Error()))
		return true
	}

	threshold, err := a.turnDetector.UnlikelyThreshold(a.language)
	if err != nil {
		return true
	}
	return prob >= threshold
}

// startListening opens a fresh recognition stream and spawns a feeder that
// pushes gated microphone audio into it.
func (a *Agent) startListening(ctx context.Context) error {
	a.streamMu.Lock()
	defer a.streamMu.Unlock()

	a.stopFeeder(0)
	if a.sttStream != nil {
		a.sttStream.CloseSend()
	}

	stream, err := a.stt.NewStream(ctx, stt.StreamConfig{
		SampleRate:  48000,
		NumChannels: 1,
		Lang:        a.language,
		MaxRetry:    3,
	})
	if err != nil {
		return fmt.Errorf("failed to create STT stream: %w", err)
	}
	a.sttStream = stream
	a.sttEvents = stream.Events()

	feederCtx, cancel := context.WithCancel(ctx)
	f := &feeder{cancel: cancel, done: make(chan struct{})}

	a.feederMu.Lock()
	a.feeder = f
	a.feederMu.Unlock()

	go func() {
		defer close(f.done)
		defer cancel()
		for {
			select {
			case <-feederCtx.Done():
				return
			case frame, ok := <-a.micIn:
				if !ok {
					return
				}
				if a.gate.ShouldDiscardAudio() {
					continue
				}
				if err := stream.Push(frame); err != nil {
					// Stream closed under us, the next listening pass
					// starts a new one.
					return
				}
				a.sttAudioNanos.Add(int64(frame.Duration()))
			}
		}
	}()
	return nil
}

// stopFeeder cancels the active feeder, waiting up to maxWait for it to
// exit. Callers that only need the feeder signalled pass zero.
func (a *Agent) stopFeeder(maxWait time.Duration) {
	a.feederMu.Lock()
	f := a.feeder
	a.feeder = nil
	a.feederMu.Unlock()

	if f == nil {
		return
	}
	f.cancel()
	if maxWait <= 0 {
		return
	}
	select {
	case <-f.done:
	case <-time.After(maxWait):
	}
}

// startThinking stops the feeder and flushes the recognition stream so the
// final transcript can arrive.
func (a *Agent) startThinking(ctx context.Context) error {
	a.stopFeeder(feederStopWait)

	a.streamMu.Lock()
	defer a.streamMu.Unlock()
	if a.sttStream != nil {
		if err := a.sttStream.CloseSend(); err != nil {
			return fmt.Errorf("failed to close STT stream: %w", err)
		}
	}
	return nil
}

// processLLMResponse feeds the transcript into the conversation, resolves
// any tool calls, and speaks the final reply.
func (a *Agent) processLLMResponse(ctx context.Context, transcript string) error {
	a.appendHistory(llm.Message{Role: llm.RoleUser, Content: transcript})

	var functions []llm.FunctionDefinition
	if a.tools != nil {
		functions = a.tools.Definitions()
	}

	for round := 0; ; round++ {
		response, err := a.llm.Chat(ctx, llm.ChatRequest{
			Messages:  a.History(),
			Functions: functions,
		})
		if err != nil {
			return fmt.Errorf("LLM chat failed: %w", err)
		}
		a.recordLLMUsage(response)

		if response.FunctionCall == nil || a.tools == nil || round >= maxToolRounds {
			a.appendHistory(response.Message)
			a.setState(StateSpeaking)
			return a.startSpeaking(ctx, response.Message.Content)
		}

		result, err := a.tools.Dispatch(ctx, *response.FunctionCall)
		if err != nil {
			slog.Warn("tool call failed",
				slog.String("tool", response.FunctionCall.Name),
				slog.String("error", err.Error()))
			result = fmt.Sprintf("tool error: %v", err)
		}
		a.appendHistory(llm.Message{
			Role:    llm.RoleFunction,
			Name:    response.FunctionCall.Name,
			Content: result,
		})
	}
}

func (a *Agent) recordLLMUsage(resp llm.ChatResponse) {
	if a.usage == nil {
		return
	}
	prompt := int64(resp.PromptTokens)
	completion := int64(resp.CompletionTokens)
	if prompt == 0 && completion == 0 {
		completion = int64(resp.TokensUsed)
	}
	a.usage.AddLLMTokens(prompt, completion)
}

// startSpeaking synthesizes the text and streams the frames out while the
// gate holds back microphone audio.
func (a *Agent) startSpeaking(ctx context.Context, text string) error {
	a.firstWordTimeOnce.Do(func() {
		a.firstWordTime = time.Now()
		a.metrics.FirstWordLatency.Set(float64(a.firstWordTime.Sub(a.sessionStart).Milliseconds()))
	})

	if a.usage != nil {
		a.usage.AddTTSCharacters(int64(len(text)))
	}

	audioFrames, err := a.tts.Synthesize(ctx, tts.SynthesizeRequest{
		Text:     text,
		Language: a.language,
	})
	if err != nil {
		return fmt.Errorf("TTS synthesis failed: %w", err)
	}

	a.gate.SetTTSPlaying(true)
	go func() {
		defer func() {
			a.gate.SetTTSPlaying(false)
			a.setState(StateIdle)
		}()
		for frame := range audioFrames {
			select {
			case a.ttsOut <- frame:
			case <-ctx.Done():
				return
			case <-a.shutdown:
				return
			}
		}
	}()
	return nil
}
