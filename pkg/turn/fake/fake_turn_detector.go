// Package fake provides a turn detector with fixed outputs for tests.
package fake

import (
	"context"

	"github.com/chriscow/meetbot/pkg/turn"
)

// FakeTurnDetector answers every prediction with a configured probability.
type FakeTurnDetector struct {
	probability float64
	threshold   float64
}

func NewFakeTurnDetector() *FakeTurnDetector {
	return NewFakeTurnDetectorWithValues(0.85, 0.85)
}

func NewFakeTurnDetectorWithValues(probability, threshold float64) *FakeTurnDetector {
	return &FakeTurnDetector{probability: probability, threshold: threshold}
}

func (f *FakeTurnDetector) UnlikelyThreshold(language string) (float64, error) {
	return f.threshold, nil
}

func (f *FakeTurnDetector) SupportsLanguage(language string) bool {
	return true
}

func (f *FakeTurnDetector) PredictEndOfTurn(ctx context.Context, chatCtx turn.ChatContext) (float64, error) {
	return f.probability, nil
}
