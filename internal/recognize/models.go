// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package recognize

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/schollz/progressbar/v3"

	"github.com/pdiddy/transcript-engine/internal/httputil"
	"github.com/pdiddy/transcript-engine/internal/logging"
	"github.com/pdiddy/transcript-engine/pkg/types"
)

// DefaultModelBaseURL hosts the ggml whisper.cpp model files.
const DefaultModelBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

// int8Quantization names the 8-bit-or-smaller weights published for each
// model size. large-v3 ships only q5_0 and large-v1 has no quantized file.
var int8Quantization = map[string]string{
	"tiny":      "q8_0",
	"tiny.en":   "q8_0",
	"base":      "q8_0",
	"base.en":   "q8_0",
	"small":     "q8_0",
	"small.en":  "q8_0",
	"medium":    "q8_0",
	"medium.en": "q8_0",
	"large-v1":  "",
	"large-v2":  "q8_0",
	"large-v3":  "q5_0",
}

// ModelFile maps a model size and compute type to a ggml file name. int8
// selects the quantized weights published for the size; float16 and float32
// both select the f16 weights whisper.cpp ships unquantized.
func ModelFile(size string, ct types.ComputeType) string {
	if ct == types.ComputeInt8 {
		if q := int8Quantization[size]; q != "" {
			return "ggml-" + size + "-" + q + ".bin"
		}
	}
	return "ggml-" + size + ".bin"
}

// Downloader fetches model files into a local directory.
type Downloader struct {
	Client  *http.Client
	BaseURL string
	// Token is sent as a bearer token when set (gated or private mirrors).
	Token string
	// Progress receives a progress bar; nil disables it.
	Progress io.Writer
}

// URL returns the download location of a model file.
func (d *Downloader) URL(file string) string {
	base := d.BaseURL
	if base == "" {
		base = DefaultModelBaseURL
	}
	return strings.TrimSuffix(base, "/") + "/" + file
}

// Ensure returns the path of file under dir, downloading it first when it
// is missing. Downloads go to a temporary file that is renamed on success,
// so an interrupted download never leaves a truncated model behind.
func (d *Downloader) Ensure(ctx context.Context, dir, file string) (string, error) {
	dest := filepath.Join(dir, file)
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating models directory: %w", err)
	}

	url := d.URL(file)
	logging.L().Info("downloading model", "file", file, "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	if d.Token != "" {
		req.Header.Set("Authorization", "Bearer "+d.Token)
	}
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, req, 0)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", file, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	tmp, err := os.CreateTemp(dir, ".model-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	var w io.Writer = tmp
	if d.Progress != nil {
		bar := progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetWriter(d.Progress),
			progressbar.OptionSetDescription(file),
			progressbar.OptionShowBytes(true),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Finish()
		w = io.MultiWriter(tmp, bar)
	}

	_, copyErr := io.Copy(w, resp.Body)
	closeErr := tmp.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing %s: %w", file, copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("renaming temp file: %w", err)
	}
	return dest, nil
}

// ModelInfo describes a downloaded model file.
type ModelInfo struct {
	File string
	Size int64
}

// ListModels returns the ggml model files in dir, sorted by name. A missing
// directory yields no models.
func ListModels(dir string) ([]ModelInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading models directory %s: %w", dir, err)
	}

	var models []ModelInfo
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "ggml-") || !strings.HasSuffix(name, ".bin") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		models = append(models, ModelInfo{File: name, Size: info.Size()})
	}
	sort.Slice(models, func(i, j int) bool { return models[i].File < models[j].File })
	return models, nil
}
