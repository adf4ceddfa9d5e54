package turn

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/chriscow/meetbot/pkg/ai/llm"
	"github.com/chriscow/meetbot/pkg/turn/internal"
)

const (
	onnxModelFile = "onnx/model_q8.onnx"

	// maxContextTokens is the model's input window; longer chats are
	// left-truncated so the most recent tokens survive.
	maxContextTokens = 128

	// maxContextMessages limits how much history is fed to the tokenizer.
	maxContextMessages = 6

	// inferenceBudget is the latency the model is expected to stay under.
	inferenceBudget = 25 * time.Millisecond
)

// ONNXDetector predicts end-of-utterance probability with a local quantized
// transformer model. Tokenizer and per-language thresholds load lazily on
// first use so construction stays cheap.
type ONNXDetector struct {
	modelInfo internal.ModelInfo
	modelPath string

	tok        lazy[*tokenizer.Tokenizer]
	thresholds lazy[map[string]float64]
}

// lazy caches the result of a single load attempt.
type lazy[T any] struct {
	done  bool
	value T
	err   error
}

func (l *lazy[T]) get(load func() (T, error)) (T, error) {
	if !l.done {
		l.value, l.err = load()
		l.done = true
	}
	return l.value, l.err
}

// NewONNXDetector creates a detector for the named model ("english" or
// "multilingual"). An empty modelPath uses LK_MODEL_PATH or
// ~/.livekit/models.
func NewONNXDetector(modelName, modelPath string) (*ONNXDetector, error) {
	var modelInfo internal.ModelInfo
	found := false
	for _, model := range internal.AllModels {
		if model.Name == modelName {
			modelInfo = model
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("unknown model: %s", modelName)
	}

	if modelPath == "" {
		modelPath = defaultModelPath()
	}

	return &ONNXDetector{
		modelInfo: modelInfo,
		modelPath: modelPath,
	}, nil
}

// UnlikelyThreshold returns the tuned threshold below which the turn is
// considered unlikely to be over for the given language.
func (d *ONNXDetector) UnlikelyThreshold(language string) (float64, error) {
	thresholds, err := d.loadThresholds()
	if err != nil {
		return 0, err
	}
	threshold, ok := thresholds[language]
	if !ok {
		return 0, fmt.Errorf("unsupported language: %s", language)
	}
	return threshold, nil
}

// SupportsLanguage reports whether the model carries a tuned threshold for
// the language.
func (d *ONNXDetector) SupportsLanguage(language string) bool {
	thresholds, err := d.loadThresholds()
	if err != nil {
		return false
	}
	_, ok := thresholds[language]
	return ok
}

// PredictEndOfTurn returns the probability that the user finished speaking.
func (d *ONNXDetector) PredictEndOfTurn(ctx context.Context, chatCtx ChatContext) (float64, error) {
	start := time.Now()

	tokens, err := d.tokenize(chatCtx.Messages)
	if err != nil {
		return 0, fmt.Errorf("tokenize chat: %w", err)
	}
	if len(tokens) == 0 {
		// Nothing to judge; neither likely nor unlikely.
		return 0.5, nil
	}

	probability, err := d.infer(ctx, tokens)
	if err != nil {
		return 0, fmt.Errorf("inference failed: %w", err)
	}

	if elapsed := time.Since(start); elapsed > inferenceBudget {
		slog.Warn("slow turn detection inference",
			slog.Duration("elapsed", elapsed),
			slog.Duration("budget", inferenceBudget))
	}

	return probability, nil
}

func (d *ONNXDetector) loadTokenizer() (*tokenizer.Tokenizer, error) {
	return d.tok.get(func() (*tokenizer.Tokenizer, error) {
		path := d.modelFile("tokenizer.json")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("tokenizer file not found: %s (run 'meetbot download-models' first)", path)
		}
		return pretrained.FromFile(path)
	})
}

func (d *ONNXDetector) loadThresholds() (map[string]float64, error) {
	return d.thresholds.get(func() (map[string]float64, error) {
		file, err := os.Open(d.modelFile("languages.json"))
		if err != nil {
			return nil, fmt.Errorf("open languages.json: %w", err)
		}
		defer file.Close()

		var thresholds map[string]float64
		if err := json.NewDecoder(file).Decode(&thresholds); err != nil {
			return nil, fmt.Errorf("decode languages.json: %w", err)
		}
		return thresholds, nil
	})
}

// tokenize renders the recent chat history through the model's chat template
// and encodes it, left-truncated to the model's context window.
func (d *ONNXDetector) tokenize(messages []llm.Message) ([]int32, error) {
	tk, err := d.loadTokenizer()
	if err != nil {
		return nil, err
	}

	if len(messages) > maxContextMessages {
		messages = messages[len(messages)-maxContextMessages:]
	}

	// Chat template from the model config:
	// <|im_start|><|role|>content<|im_end|> per message.
	var text string
	for _, msg := range messages {
		text += fmt.Sprintf("<|im_start|><|%s|>%s<|im_end|>", string(msg.Role), msg.Content)
	}

	encoding, err := tk.EncodeSingle(text, false)
	if err != nil {
		return nil, err
	}

	ids := encoding.GetIds()
	if len(ids) > maxContextTokens {
		ids = ids[len(ids)-maxContextTokens:]
	}

	tokens := make([]int32, len(ids))
	for i, id := range ids {
		tokens[i] = int32(id)
	}
	return tokens, nil
}

// infer runs the model over the token sequence. Sessions in the onnxruntime
// binding are fixed-shape, and the sequence length varies per call, so a
// fresh session is built around each input tensor.
func (d *ONNXDetector) infer(ctx context.Context, tokens []int32) (float64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	modelFile := d.modelFile(onnxModelFile)
	if _, err := os.Stat(modelFile); os.IsNotExist(err) {
		return 0, fmt.Errorf("model file not found: %s (run 'meetbot download-models' first)", modelFile)
	}

	if err := ensureOrtEnv(); err != nil {
		return 0, fmt.Errorf("initialize onnx runtime: %w", err)
	}

	input := make([]float32, len(tokens))
	for i, token := range tokens {
		input[i] = float32(token)
	}

	inputTensor, err := ort.NewTensor(ort.NewShape(1, int64(len(tokens))), input)
	if err != nil {
		return 0, fmt.Errorf("create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		return 0, fmt.Errorf("create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	session, err := ort.NewSession[float32](
		modelFile,
		[]string{"input_ids"},
		[]string{"logits"},
		[]*ort.Tensor[float32]{inputTensor},
		[]*ort.Tensor[float32]{outputTensor},
	)
	if err != nil {
		return 0, fmt.Errorf("create session: %w", err)
	}
	defer session.Destroy()

	if err := session.Run(); err != nil {
		return 0, fmt.Errorf("run session: %w", err)
	}

	output := outputTensor.GetData()
	if len(output) == 0 {
		return 0, fmt.Errorf("empty output tensor")
	}

	probability := float64(output[0])
	if probability < 0 {
		probability = 0
	} else if probability > 1 {
		probability = 1
	}
	return probability, nil
}

func (d *ONNXDetector) modelFile(name string) string {
	return internal.GetModelFilePath(d.modelPath, d.modelInfo.Revision, name)
}

// defaultModelPath honors LK_MODEL_PATH, falling back to ~/.livekit/models.
func defaultModelPath() string {
	if path := os.Getenv("LK_MODEL_PATH"); path != "" {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/livekit-models"
	}
	return filepath.Join(homeDir, ".livekit", "models")
}
