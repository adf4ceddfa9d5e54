// Package fake provides a canned-response LLM for tests. Replies cycle
// through a fixed list, and a user message containing the word "function"
// triggers a fake tool call when the request declares any functions.
package fake

import (
	"context"
	"fmt"
	"strings"

	"github.com/chriscow/meetbot/pkg/ai/llm"
)

var defaultResponses = []string{
	"This is a fake response from the fake LLM provider.",
	"I'm a fake AI assistant. How can I help you?",
	"This is another fake response for testing purposes.",
}

// FakeLLM cycles through a fixed list of replies.
type FakeLLM struct {
	responses []string
	calls     int
}

func NewFakeLLM(responses ...string) *FakeLLM {
	if len(responses) == 0 {
		responses = defaultResponses
	}
	return &FakeLLM{responses: responses}
}

// Chat returns the next canned reply, echoing the latest user message so
// callers can assert the request actually reached the provider. When the
// request declares functions and the user asked for one, a fabricated call
// to the first declared function is returned instead.
func (f *FakeLLM) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	if call := f.fakeFunctionCall(req); call != nil {
		return llm.ChatResponse{
			Message:      llm.Message{Role: llm.RoleAssistant},
			FunctionCall: call,
			TokensUsed:   50,
			FinishReason: "function_call",
		}, nil
	}

	reply := f.responses[f.calls%len(f.responses)]
	f.calls++

	if n := len(req.Messages); n > 0 && req.Messages[n-1].Role == llm.RoleUser {
		reply = fmt.Sprintf("%s (You said: %s)", reply, req.Messages[n-1].Content)
	}

	return llm.ChatResponse{
		Message:      llm.Message{Role: llm.RoleAssistant, Content: reply},
		TokensUsed:   len(strings.Fields(reply)) + 10,
		FinishReason: "stop",
	}, nil
}

func (f *FakeLLM) fakeFunctionCall(req llm.ChatRequest) *llm.FunctionCall {
	if len(req.Functions) == 0 {
		return nil
	}
	for _, msg := range req.Messages {
		if msg.Role == llm.RoleUser && strings.Contains(strings.ToLower(msg.Content), "function") {
			return &llm.FunctionCall{
				Name:      req.Functions[0].Name,
				Arguments: `{"param": "fake_value"}`,
			}
		}
	}
	return nil
}

func (f *FakeLLM) Capabilities() llm.LLMCapabilities {
	return llm.LLMCapabilities{
		SupportsFunctions:  true,
		MaxTokens:          4096,
		SupportedModels:    []string{"fake-model-1", "fake-model-2"},
		SupportsSystemRole: true,
	}
}
