// Package llm defines the chat completion provider contract, including
// function calling.
package llm

import (
	"context"

	"github.com/chriscow/meetbot/pkg/ai"
)

// Re-exported so provider code can classify failures without importing ai.
var (
	// ErrRecoverable marks temporary failures worth retrying, such as rate
	// limiting or service errors.
	ErrRecoverable = ai.ErrRecoverable

	// ErrFatal marks permanent failures, such as a bad API key or an
	// unsupported model.
	ErrFatal = ai.ErrFatal
)

// LLM performs chat completions.
type LLM interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	Capabilities() LLMCapabilities
}

type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleFunction  MessageRole = "function"
)

// Message is a single turn in a chat conversation.
type Message struct {
	Role    MessageRole
	Content string
	Name    string // for function messages
}

// ChatRequest contains parameters for a chat completion request.
type ChatRequest struct {
	Messages    []Message
	MaxTokens   int
	Temperature float32
	TopP        float32
	Functions   []FunctionDefinition
}

// ChatResponse contains the completion and token accounting. FunctionCall is
// set when the model chose to call a declared function instead of answering.
type ChatResponse struct {
	Message          Message
	FunctionCall     *FunctionCall
	TokensUsed       int
	PromptTokens     int
	CompletionTokens int
	FinishReason     string
}

// FunctionDefinition declares a function the model may call.
type FunctionDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON schema
}

// FunctionCall is the model's request to invoke a declared function.
type FunctionCall struct {
	Name      string
	Arguments string // JSON-encoded arguments
}

// LLMCapabilities describes what an LLM provider supports.
type LLMCapabilities struct {
	SupportsFunctions  bool
	SupportsStreaming  bool
	MaxTokens          int
	SupportedModels    []string
	SupportsSystemRole bool
}
