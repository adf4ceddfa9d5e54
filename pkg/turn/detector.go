// Package turn provides end-of-utterance detection: deciding, from recent
// conversation context, whether the user has finished speaking.
package turn

import (
	"context"

	"github.com/chriscow/meetbot/pkg/ai/llm"
)

// Detector predicts whether the current speaker is done with their turn.
type Detector interface {
	// UnlikelyThreshold returns the tuned threshold (0 to 1) for the
	// language, or an error if the language is unsupported.
	UnlikelyThreshold(language string) (float64, error)

	// SupportsLanguage reports whether a tuned threshold exists for the
	// language.
	SupportsLanguage(language string) bool

	// PredictEndOfTurn returns the probability (0 to 1) that the user has
	// finished speaking given recent chat context.
	PredictEndOfTurn(ctx context.Context, chatCtx ChatContext) (float64, error)
}

// ChatContext is the conversation slice a detector conditions on.
type ChatContext struct {
	Messages []llm.Message
	Language string
}
