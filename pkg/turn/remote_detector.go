package turn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/chriscow/meetbot/pkg/ai/llm"
)

const remoteTimeout = 2 * time.Second

// RemoteDetector delegates end-of-utterance prediction to an HTTP inference
// endpoint. When a fallback detector is provided, any remote failure is
// retried against it instead of being surfaced to the caller.
type RemoteDetector struct {
	endpoint string
	client   *http.Client
	fallback Detector
}

func NewRemoteDetector(endpoint string, fallback Detector) *RemoteDetector {
	return &RemoteDetector{
		endpoint: endpoint,
		client:   &http.Client{Timeout: remoteTimeout},
		fallback: fallback,
	}
}

type remoteRequest struct {
	Messages []llm.Message `json:"messages"`
	Language string        `json:"language,omitempty"`
}

type remoteResponse struct {
	Probability float64 `json:"eou_probability"`
	Error       string  `json:"error,omitempty"`
}

// UnlikelyThreshold delegates to the fallback when present. Otherwise a
// fixed threshold is used, slightly higher for English where the endpoint
// models are strongest.
func (d *RemoteDetector) UnlikelyThreshold(language string) (float64, error) {
	if d.fallback != nil {
		return d.fallback.UnlikelyThreshold(language)
	}
	switch language {
	case "en", "en-US", "en-GB":
		return 0.85, nil
	default:
		return 0.80, nil
	}
}

// SupportsLanguage reports what the fallback supports, or true when there is
// no fallback since the endpoint's language set is unknown.
func (d *RemoteDetector) SupportsLanguage(language string) bool {
	if d.fallback != nil {
		return d.fallback.SupportsLanguage(language)
	}
	return true
}

func (d *RemoteDetector) PredictEndOfTurn(ctx context.Context, chatCtx ChatContext) (float64, error) {
	p, err := d.predictRemote(ctx, chatCtx)
	if err != nil {
		if d.fallback == nil {
			return 0, fmt.Errorf("remote inference failed and no fallback available: %w", err)
		}
		slog.Warn("remote turn detection failed, using fallback", slog.String("error", err.Error()))
		return d.fallback.PredictEndOfTurn(ctx, chatCtx)
	}
	return p, nil
}

func (d *RemoteDetector) predictRemote(ctx context.Context, chatCtx ChatContext) (float64, error) {
	body, err := json.Marshal(remoteRequest{Messages: chatCtx.Messages, Language: chatCtx.Language})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "meetbot/turn-detector")

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(msg))
	}

	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Error != "" {
		return 0, fmt.Errorf("remote error: %s", out.Error)
	}
	if out.Probability < 0 || out.Probability > 1 {
		return 0, fmt.Errorf("invalid probability: %f", out.Probability)
	}
	return out.Probability, nil
}
