package turn

import (
	"fmt"
	"os"
)

// DetectorConfig selects the model and inference path for a detector.
type DetectorConfig struct {
	Model     string // "english" or "multilingual"
	ModelPath string // model file location, default cache when empty
	RemoteURL string // remote inference URL, local inference when empty
}

// NewDetector builds a turn detector. A remote URL, whether configured or
// taken from LIVEKIT_REMOTE_EOT_URL, yields a RemoteDetector that falls back
// to local ONNX inference. Otherwise the local detector is used directly.
func NewDetector(config DetectorConfig) (Detector, error) {
	remoteURL := config.RemoteURL
	if remoteURL == "" {
		remoteURL = os.Getenv("LIVEKIT_REMOTE_EOT_URL")
	}

	// Rooms are not English-only, so multilingual is the default.
	model := config.Model
	if model == "" {
		model = "multilingual"
	}
	if model != "english" && model != "multilingual" {
		return nil, fmt.Errorf("invalid model name: %s (supported: english|multilingual)", model)
	}

	local, err := NewONNXDetector(model, config.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX detector: %w", err)
	}

	if remoteURL != "" {
		return NewRemoteDetector(remoteURL, local), nil
	}
	return local, nil
}

// NewDefaultDetector builds a local multilingual detector.
func NewDefaultDetector() (Detector, error) {
	return NewDetector(DetectorConfig{Model: "multilingual"})
}
