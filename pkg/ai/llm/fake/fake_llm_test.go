package fake

import (
	"context"
	"strings"
	"testing"

	"github.com/chriscow/meetbot/pkg/ai/llm"
)

func userRequest(content string) llm.ChatRequest {
	return llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: content}},
	}
}

func TestFakeLLM_Capabilities(t *testing.T) {
	caps := NewFakeLLM().Capabilities()

	if !caps.SupportsFunctions || !caps.SupportsSystemRole {
		t.Error("fake LLM should support functions and the system role")
	}
	if caps.MaxTokens <= 0 || len(caps.SupportedModels) == 0 {
		t.Error("token limit and model list should be populated")
	}
}

func TestFakeLLM_ChatEchoesUserMessage(t *testing.T) {
	provider := NewFakeLLM("Base response")

	resp, err := provider.Chat(context.Background(), userRequest("My name is Alice"))
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if resp.Message.Role != llm.RoleAssistant {
		t.Errorf("Role = %v, want assistant", resp.Message.Role)
	}
	if !strings.Contains(resp.Message.Content, "Base response") {
		t.Errorf("reply %q missing the canned response", resp.Message.Content)
	}
	if !strings.Contains(resp.Message.Content, "Alice") {
		t.Errorf("reply %q should echo the user message", resp.Message.Content)
	}
	if resp.TokensUsed <= 0 {
		t.Error("TokensUsed should be positive")
	}
	if resp.FinishReason != "stop" {
		t.Errorf("FinishReason = %q, want stop", resp.FinishReason)
	}
}

func TestFakeLLM_RepliesCycle(t *testing.T) {
	responses := []string{"Response A", "Response B", "Response C"}
	provider := NewFakeLLM(responses...)

	for i := 0; i < 2*len(responses); i++ {
		resp, err := provider.Chat(context.Background(), userRequest("Test"))
		if err != nil {
			t.Fatalf("Chat call %d failed: %v", i, err)
		}
		want := responses[i%len(responses)]
		if !strings.Contains(resp.Message.Content, want) {
			t.Errorf("call %d: reply %q should contain %q", i, resp.Message.Content, want)
		}
	}
}

func TestFakeLLM_FunctionCall(t *testing.T) {
	provider := NewFakeLLM()

	req := userRequest("Please call a function")
	req.Functions = []llm.FunctionDefinition{{
		Name:        "test_function",
		Description: "A test function",
		Parameters:  map[string]any{"type": "object"},
	}}

	resp, err := provider.Chat(context.Background(), req)
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if resp.FunctionCall == nil {
		t.Fatal("expected a function call")
	}
	if resp.FunctionCall.Name != "test_function" {
		t.Errorf("function name = %q", resp.FunctionCall.Name)
	}
	if resp.FunctionCall.Arguments == "" {
		t.Error("function arguments should be set")
	}
	if resp.FinishReason != "function_call" {
		t.Errorf("FinishReason = %q, want function_call", resp.FinishReason)
	}
}

func TestFakeLLM_NoFunctionsDeclared(t *testing.T) {
	// Mentioning "function" without declaring any must yield a plain reply.
	resp, err := NewFakeLLM().Chat(context.Background(), userRequest("call a function"))
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.FunctionCall != nil {
		t.Error("function call returned without declared functions")
	}
	if resp.Message.Content == "" {
		t.Error("expected a text reply")
	}
}

func TestFakeLLM_MultiTurnConversation(t *testing.T) {
	provider := NewFakeLLM("Response")

	resp, err := provider.Chat(context.Background(), llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "You are a helpful assistant"},
			{Role: llm.RoleUser, Content: "Hello"},
			{Role: llm.RoleAssistant, Content: "Hi there!"},
			{Role: llm.RoleUser, Content: "How are you?"},
		},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if !strings.Contains(resp.Message.Content, "How are you?") {
		t.Errorf("reply %q should echo the latest user turn", resp.Message.Content)
	}
}
