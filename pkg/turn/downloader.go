package turn

import (
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/chriscow/meetbot/pkg/turn/internal"
)

// Downloader fetches turn-detection model artifacts from the Hugging Face
// hub into the local model directory, verifying SHA-256 hashes where known.
type Downloader struct {
	modelPath string
	client    *http.Client
	logger    *slog.Logger
}

// NewDownloader stores models under modelPath, or the default model
// directory when empty.
func NewDownloader(modelPath string) *Downloader {
	if modelPath == "" {
		modelPath = defaultModelPath()
	}
	return &Downloader{
		modelPath: modelPath,
		client:    &http.Client{},
		logger:    slog.Default(),
	}
}

// DownloadAll fetches every known model revision.
func (d *Downloader) DownloadAll() error {
	for _, model := range internal.AllModels {
		if err := d.DownloadModel(model); err != nil {
			return fmt.Errorf("download model %s: %w", model.Name, err)
		}
	}
	return nil
}

// DownloadModel fetches the files of one model revision, skipping files that
// already exist with a valid hash.
func (d *Downloader) DownloadModel(model internal.ModelInfo) error {
	modelDir := internal.GetModelPath(d.modelPath, model.Revision)
	if err := os.MkdirAll(modelDir, 0755); err != nil {
		return fmt.Errorf("create model directory: %w", err)
	}

	for _, filename := range model.Files {
		filePath := filepath.Join(modelDir, filename)

		// Nested artifacts like onnx/model_q8.onnx need their parent dir.
		if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
			return fmt.Errorf("create directories for %s: %w", filename, err)
		}

		if d.fileIsValid(filePath, filename) {
			d.logger.Debug("model file up to date", slog.String("file", filename))
			continue
		}

		d.logger.Info("downloading model file",
			slog.String("model", model.Name),
			slog.String("file", filename))

		if err := d.fetch(model, filename, filePath); err != nil {
			os.Remove(filePath)
			return fmt.Errorf("download %s: %w", filename, err)
		}
	}

	d.logger.Info("model downloaded", slog.String("model", model.Name))
	return nil
}

// fetch streams one artifact from the hub to disk.
func (d *Downloader) fetch(model internal.ModelInfo, filename, destination string) error {
	url := fmt.Sprintf("https://huggingface.co/%s/resolve/%s/%s",
		model.Repo, model.Revision, filename)

	resp, err := d.client.Get(url)
	if err != nil {
		return fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	file, err := os.Create(destination)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, resp.Body); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// fileIsValid reports whether the file exists and, when a reference hash is
// known, matches it.
func (d *Downloader) fileIsValid(filePath, filename string) bool {
	info, err := os.Stat(filePath)
	if err != nil || info.Size() == 0 {
		return false
	}

	expectedHash := internal.FileHashes[filename]
	if expectedHash == "" {
		return true
	}

	file, err := os.Open(filePath)
	if err != nil {
		return false
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return false
	}
	return fmt.Sprintf("%x", hasher.Sum(nil)) == expectedHash
}

// GetModelStatus reports, per model name, whether every file is present and
// valid locally.
func (d *Downloader) GetModelStatus() map[string]bool {
	status := make(map[string]bool)
	for _, model := range internal.AllModels {
		complete := true
		for _, filename := range model.Files {
			if !d.fileIsValid(internal.GetModelFilePath(d.modelPath, model.Revision, filename), filename) {
				complete = false
				break
			}
		}
		status[model.Name] = complete
	}
	return status
}
