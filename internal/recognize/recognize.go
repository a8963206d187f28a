// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package recognize runs speech recognition on audio files. A Recognizer
// loads its model once and is then applied to each file of a batch in turn.
// Two backends are provided: whisper.cpp running locally and any
// OpenAI-compatible transcription API.
package recognize

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"strings"

	"github.com/pdiddy/transcript-engine/internal/audio"
	"github.com/pdiddy/transcript-engine/internal/logging"
	"github.com/pdiddy/transcript-engine/pkg/types"
)

// Recognizer turns one audio file into a transcript. The returned transcript
// carries Language, LanguageProbability, Duration and Segments; the caller
// stamps AudioFile and CreatedAt.
type Recognizer interface {
	Recognize(ctx context.Context, audioPath string) (*types.Transcript, error)
	Name() string
	Close() error
}

// Options carries dependencies shared by the backends.
type Options struct {
	// HTTPClient is used for model downloads. Nil uses http.DefaultClient.
	HTTPClient *http.Client

	// Progress receives download progress bars. Nil disables them.
	Progress io.Writer

	// ModelToken authenticates model downloads.
	ModelToken string
}

// New builds the Recognizer selected by cfg.Backend.
func New(ctx context.Context, cfg types.TranscriptionConfig, opts Options) (Recognizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case types.BackendOpenAI:
		return NewOpenAI(cfg)
	case types.BackendWhisperCpp:
		dl := &Downloader{Client: opts.HTTPClient, Progress: opts.Progress, Token: opts.ModelToken}
		path, err := dl.Ensure(ctx, cfg.ModelsDir, ModelFile(cfg.ModelSize, cfg.ComputeType))
		if err != nil {
			return nil, fmt.Errorf("preparing %s model: %w", cfg.ModelSize, err)
		}
		dec := audio.NewDecoder(audio.NewFFmpeg(cfg.FFmpegImage))
		return NewWhisperCpp(path, cfg, dec)
	}
	return nil, fmt.Errorf("%w: %q", types.ErrUnknownBackend, cfg.Backend)
}

// threads returns the decoder thread count for cfg.
func threads(cfg types.TranscriptionConfig) uint {
	if cfg.Threads > 0 {
		return uint(cfg.Threads)
	}
	return uint(runtime.GOMAXPROCS(0))
}

// fixedLanguage returns the configured language, or "" when the language
// should be detected.
func fixedLanguage(cfg types.TranscriptionConfig) string {
	lang := strings.TrimSpace(strings.ToLower(cfg.Language))
	if lang == "auto" {
		return ""
	}
	return lang
}

// apiKey resolves the OpenAI API key from config or the environment.
func apiKey(cfg types.OpenAIConfig) string {
	if cfg.APIKey != "" {
		return cfg.APIKey
	}
	return os.Getenv("OPENAI_API_KEY")
}

func logDevice(cfg types.TranscriptionConfig) {
	log := logging.L()
	if cfg.Device == types.DeviceCUDA && cfg.Backend == types.BackendWhisperCpp {
		log.Info("cuda requested; GPU offload depends on how libwhisper was built", "device", cfg.Device)
		return
	}
	log.Debug("speech model device", "device", cfg.Device, "compute_type", cfg.ComputeType)
}
