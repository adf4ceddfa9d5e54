package turn

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chriscow/meetbot/pkg/ai/llm"
)

type stubDetector struct {
	probability float64
	threshold   float64
	supported   bool
	calls       int
}

func (s *stubDetector) UnlikelyThreshold(language string) (float64, error) {
	if !s.supported {
		return 0, errors.New("unsupported language")
	}
	return s.threshold, nil
}

func (s *stubDetector) SupportsLanguage(language string) bool {
	return s.supported
}

func (s *stubDetector) PredictEndOfTurn(ctx context.Context, chatCtx ChatContext) (float64, error) {
	s.calls++
	return s.probability, nil
}

func chatContext(content string) ChatContext {
	return ChatContext{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: content}},
		Language: "en-US",
	}
}

func TestRemoteDetector_UsesEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req remoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if len(req.Messages) != 1 || req.Language != "en-US" {
			t.Errorf("unexpected payload: %+v", req)
		}
		json.NewEncoder(w).Encode(remoteResponse{Probability: 0.92})
	}))
	defer srv.Close()

	detector := NewRemoteDetector(srv.URL, nil)
	p, err := detector.PredictEndOfTurn(context.Background(), chatContext("see you tomorrow"))
	if err != nil {
		t.Fatalf("PredictEndOfTurn failed: %v", err)
	}
	if p != 0.92 {
		t.Errorf("probability = %v, want 0.92", p)
	}
}

func TestRemoteDetector_FallsBackOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	fallback := &stubDetector{probability: 0.7, supported: true}
	detector := NewRemoteDetector(srv.URL, fallback)

	p, err := detector.PredictEndOfTurn(context.Background(), chatContext("hello"))
	if err != nil {
		t.Fatalf("fallback path failed: %v", err)
	}
	if p != 0.7 || fallback.calls != 1 {
		t.Errorf("got p=%v calls=%d, want the fallback's prediction", p, fallback.calls)
	}
}

func TestRemoteDetector_RejectsOutOfRangeProbability(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(remoteResponse{Probability: 1.7})
	}))
	defer srv.Close()

	detector := NewRemoteDetector(srv.URL, nil)
	if _, err := detector.PredictEndOfTurn(context.Background(), chatContext("hi")); err == nil {
		t.Error("expected an error for probability outside [0,1]")
	}
}

func TestRemoteDetector_ErrorWithoutFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(remoteResponse{Error: "model not loaded"})
	}))
	defer srv.Close()

	detector := NewRemoteDetector(srv.URL, nil)
	if _, err := detector.PredictEndOfTurn(context.Background(), chatContext("hi")); err == nil {
		t.Error("expected the remote error to surface without a fallback")
	}
}

func TestRemoteDetector_DelegatesThresholdAndLanguage(t *testing.T) {
	fallback := &stubDetector{threshold: 0.65, supported: true}
	detector := NewRemoteDetector("http://unused", fallback)

	th, err := detector.UnlikelyThreshold("en-US")
	if err != nil || th != 0.65 {
		t.Errorf("UnlikelyThreshold = (%v, %v), want the fallback's threshold", th, err)
	}
	if !detector.SupportsLanguage("en-US") {
		t.Error("language support should follow the fallback")
	}

	bare := NewRemoteDetector("http://unused", nil)
	if th, err := bare.UnlikelyThreshold("en-US"); err != nil || th != 0.85 {
		t.Errorf("default English threshold = (%v, %v), want 0.85", th, err)
	}
	if th, err := bare.UnlikelyThreshold("fr-FR"); err != nil || th != 0.80 {
		t.Errorf("default threshold = (%v, %v), want 0.80", th, err)
	}
	if !bare.SupportsLanguage("anything") {
		t.Error("without a fallback all languages are assumed supported")
	}
}
