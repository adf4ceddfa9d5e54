// Package internal describes the turn-detection model artifacts shared by
// the downloader and the ONNX detector.
package internal

import "path/filepath"

// ModelInfo identifies one published model revision on the Hugging Face hub.
type ModelInfo struct {
	Name       string // "english" or "multilingual"
	Repo       string
	Revision   string
	Size       int64
	SHA256Hash string // hash of the ONNX file, empty when unverified
	Files      []string
}

var modelFiles = []string{
	"onnx/model_q8.onnx",
	"tokenizer.json",
	"languages.json",
}

var (
	EnglishModel = ModelInfo{
		Name:       "english",
		Repo:       "livekit/turn-detector",
		Revision:   "v1.2.2-en",
		Size:       66 * 1024 * 1024,
		SHA256Hash: "fdd695a99bda01155fb0b5ce71d34cb9fd3902c62496db7a6c2c7bdeac310ac7",
		Files:      modelFiles,
	}

	MultilingualModel = ModelInfo{
		Name:     "multilingual",
		Repo:     "livekit/turn-detector",
		Revision: "v0.3.0-intl",
		Size:     281 * 1024 * 1024,
		Files:    modelFiles,
	}

	// AllModels enumerates every model the downloader manages.
	AllModels = []ModelInfo{EnglishModel, MultilingualModel}
)

// FileHashes maps model file paths to their expected SHA-256 digests.
// Files absent from the map are accepted without hash verification.
var FileHashes = map[string]string{
	"onnx/model_q8.onnx": "fdd695a99bda01155fb0b5ce71d34cb9fd3902c62496db7a6c2c7bdeac310ac7",
	"tokenizer.json":     "c8219a662de786c94771323c3500377970f5eaa3afbeaef9390c9a51db9f7884",
	"languages.json":     "a9b71f62240293b05e6fa2b75ffc997ae00cefcc8da8b9567e39e3c356b7ee1",
}

// GetModelPath returns the directory holding one model revision.
func GetModelPath(basePath, revision string) string {
	return filepath.Join(basePath, "turn-detector", revision)
}

// GetModelFilePath returns the location of a single file within a revision.
func GetModelFilePath(basePath, revision, filename string) string {
	return filepath.Join(GetModelPath(basePath, revision), filename)
}
