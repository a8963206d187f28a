// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package recognize

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pdiddy/transcript-engine/internal/logging"
	"github.com/pdiddy/transcript-engine/pkg/types"
)

// transcriptionClient is the part of the OpenAI client used here.
type transcriptionClient interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

// OpenAI recognizes speech through an OpenAI-compatible transcription API.
// Voice activity filtering and decoding happen server side.
type OpenAI struct {
	cfg    types.TranscriptionConfig
	client transcriptionClient
}

// NewOpenAI builds a client from cfg.OpenAI. BaseURL selects a compatible
// server such as Groq.
func NewOpenAI(cfg types.TranscriptionConfig) (*OpenAI, error) {
	key := apiKey(cfg.OpenAI)
	if key == "" {
		return nil, fmt.Errorf("openai backend requires an API key (openai.api_key, OPENAI_API_KEY or .secrets/openai-api-key)")
	}
	clientCfg := openai.DefaultConfig(key)
	if cfg.OpenAI.BaseURL != "" {
		clientCfg.BaseURL = cfg.OpenAI.BaseURL
	}
	logDevice(cfg)
	logging.L().Info("using OpenAI-compatible transcription", "model", cfg.OpenAI.Model, "base_url", clientCfg.BaseURL)

	return &OpenAI{cfg: cfg, client: openai.NewClientWithConfig(clientCfg)}, nil
}

// Name returns the backend name.
func (o *OpenAI) Name() string { return string(types.BackendOpenAI) }

// Close is a no-op; the HTTP client holds no model.
func (o *OpenAI) Close() error { return nil }

// Recognize uploads audioPath and maps the verbose JSON response.
func (o *OpenAI) Recognize(ctx context.Context, audioPath string) (*types.Transcript, error) {
	if o.cfg.OpenAI.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.OpenAI.Timeout)
		defer cancel()
	}

	lang := fixedLanguage(o.cfg)
	req := openai.AudioRequest{
		Model:    o.cfg.OpenAI.Model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: lang,
	}

	logging.L().Debug("uploading audio", "file", audioPath, "model", req.Model)
	resp, err := o.client.CreateTranscription(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("transcription request: %w", err)
	}

	t := &types.Transcript{
		Language: resp.Language,
		Duration: secondsToDuration(resp.Duration),
	}
	if lang != "" {
		t.Language = lang
		t.LanguageProbability = types.Probability(1)
	}
	if t.Language == "" {
		t.Language = unknownLanguage
	}

	for _, s := range resp.Segments {
		t.Segments = append(t.Segments, types.Segment{
			Start: secondsToDuration(s.Start),
			End:   secondsToDuration(s.End),
			Text:  s.Text,
		})
	}
	if len(t.Segments) == 0 && strings.TrimSpace(resp.Text) != "" {
		t.Segments = []types.Segment{{Start: 0, End: t.Duration, Text: resp.Text}}
	}

	return t, nil
}
