// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package recognize

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/transcript-engine/pkg/types"
)

// transcriptionServer mimics the verbose_json transcription endpoint and
// records the form fields it received.
func transcriptionServer(t *testing.T, body map[string]any, got map[string]string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		got["auth"] = r.Header.Get("Authorization")
		for _, k := range []string{"model", "response_format", "language"} {
			got[k] = r.FormValue(k)
		}
		if _, hdr, err := r.FormFile("file"); err == nil {
			got["file"] = hdr.Filename
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func openAIConfig(baseURL string) types.TranscriptionConfig {
	cfg := types.DefaultTranscriptionConfig()
	cfg.Backend = types.BackendOpenAI
	cfg.OpenAI.APIKey = "test-key"
	cfg.OpenAI.BaseURL = baseURL + "/v1"
	cfg.OpenAI.Timeout = 5 * time.Second
	return cfg
}

func audioFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memo.m4a")
	require.NoError(t, os.WriteFile(path, []byte("not really audio"), 0o644))
	return path
}

func TestOpenAIRecognize(t *testing.T) {
	got := map[string]string{}
	ts := transcriptionServer(t, map[string]any{
		"task":     "transcribe",
		"language": "english",
		"duration": 4.25,
		"text":     "Hello there. General Kenobi.",
		"segments": []map[string]any{
			{"id": 0, "start": 0.0, "end": 1.8, "text": " Hello there."},
			{"id": 1, "start": 1.8, "end": 4.25, "text": " General Kenobi."},
		},
	}, got)

	o, err := NewOpenAI(openAIConfig(ts.URL))
	require.NoError(t, err)
	assert.Equal(t, "openai", o.Name())

	tr, err := o.Recognize(context.Background(), audioFixture(t))
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", got["auth"])
	assert.Equal(t, "whisper-1", got["model"])
	assert.Equal(t, "verbose_json", got["response_format"])
	assert.Empty(t, got["language"])
	assert.Equal(t, "memo.m4a", got["file"])

	assert.Equal(t, "english", tr.Language)
	assert.Nil(t, tr.LanguageProbability)
	assert.Equal(t, 4250*time.Millisecond, tr.Duration)
	require.Len(t, tr.Segments, 2)
	assert.Equal(t, 1800*time.Millisecond, tr.Segments[1].Start)
	assert.Equal(t, " General Kenobi.", tr.Segments[1].Text)
}

func TestOpenAIRecognizeFixedLanguageWithoutSegments(t *testing.T) {
	got := map[string]string{}
	ts := transcriptionServer(t, map[string]any{
		"language": "french",
		"duration": 2.0,
		"text":     "Bonjour.",
	}, got)

	cfg := openAIConfig(ts.URL)
	cfg.Language = "fr"
	o, err := NewOpenAI(cfg)
	require.NoError(t, err)

	tr, err := o.Recognize(context.Background(), audioFixture(t))
	require.NoError(t, err)

	assert.Equal(t, "fr", got["language"])
	assert.Equal(t, "fr", tr.Language)
	require.NotNil(t, tr.LanguageProbability)
	assert.Equal(t, 1.0, *tr.LanguageProbability)
	require.Len(t, tr.Segments, 1)
	assert.Equal(t, 2*time.Second, tr.Segments[0].End)
	assert.Equal(t, "Bonjour.", tr.Segments[0].Text)
}

func TestOpenAIRecognizeServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"bad audio"}}`, http.StatusBadRequest)
	}))
	defer ts.Close()

	o, err := NewOpenAI(openAIConfig(ts.URL))
	require.NoError(t, err)

	_, err = o.Recognize(context.Background(), audioFixture(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transcription request")
}

func TestNewOpenAIRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg := types.DefaultTranscriptionConfig()
	cfg.Backend = types.BackendOpenAI

	_, err := NewOpenAI(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")

	t.Setenv("OPENAI_API_KEY", "from-env")
	_, err = NewOpenAI(cfg)
	assert.NoError(t, err)
}
