// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package recognize

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/transcript-engine/internal/httputil"
	"github.com/pdiddy/transcript-engine/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

func TestModelFile(t *testing.T) {
	tests := []struct {
		size string
		ct   types.ComputeType
		want string
	}{
		{"base", types.ComputeInt8, "ggml-base-q8_0.bin"},
		{"base", types.ComputeFloat16, "ggml-base.bin"},
		{"small.en", types.ComputeInt8, "ggml-small.en-q8_0.bin"},
		{"large-v3", types.ComputeFloat32, "ggml-large-v3.bin"},
		{"medium.en", types.ComputeInt8, "ggml-medium.en-q8_0.bin"},
		{"large-v2", types.ComputeInt8, "ggml-large-v2-q8_0.bin"},
		{"large-v3", types.ComputeInt8, "ggml-large-v3-q5_0.bin"},
		{"large-v1", types.ComputeInt8, "ggml-large-v1.bin"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ModelFile(tt.size, tt.ct))
	}
}

func TestModelFileCoversEverySize(t *testing.T) {
	for _, base := range types.ModelSizes {
		sizes := []string{base}
		if types.ValidModelSize(base + ".en") {
			sizes = append(sizes, base+".en")
		}
		for _, size := range sizes {
			_, ok := int8Quantization[size]
			assert.True(t, ok, "no int8 entry for %s", size)
		}
	}
}

func TestDownloaderURL(t *testing.T) {
	d := &Downloader{}
	assert.Equal(t, DefaultModelBaseURL+"ggml-tiny.bin", d.URL("ggml-tiny.bin"))

	d.BaseURL = "http://mirror.local/models/"
	assert.Equal(t, "http://mirror.local/models/ggml-tiny.bin", d.URL("ggml-tiny.bin"))
}

func TestDownloaderEnsure(t *testing.T) {
	payload := bytes.Repeat([]byte("ggml"), 1024)
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Path != "/ggml-tiny.bin" {
			http.NotFound(w, r)
			return
		}
		w.Write(payload)
	}))
	defer ts.Close()

	dir := filepath.Join(t.TempDir(), "models")
	var progress bytes.Buffer
	d := &Downloader{Client: ts.Client(), BaseURL: ts.URL, Progress: &progress}

	path, err := d.Ensure(context.Background(), dir, "ggml-tiny.bin")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ggml-tiny.bin"), path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	// A present model is not fetched again.
	_, err = d.Ensure(context.Background(), dir, "ggml-tiny.bin")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDownloaderSendsToken(t *testing.T) {
	var auth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Write([]byte("model"))
	}))
	defer ts.Close()

	d := &Downloader{Client: ts.Client(), BaseURL: ts.URL, Token: "hf_secret"}
	_, err := d.Ensure(context.Background(), t.TempDir(), "ggml-base.bin")
	require.NoError(t, err)
	assert.Equal(t, "Bearer hf_secret", auth)
}

func TestDownloaderEnsureFailure(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"not found", http.StatusNotFound},
		{"unavailable after retries", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer ts.Close()

			dir := t.TempDir()
			d := &Downloader{Client: ts.Client(), BaseURL: ts.URL}
			_, err := d.Ensure(context.Background(), dir, "ggml-huge.bin")
			require.Error(t, err)

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Empty(t, entries, "no partial model may remain")
		})
	}
}

func TestListModels(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ggml-small.bin"), []byte("abc"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ggml-base-q8_0.bin"), []byte("abcdef"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".model-123.tmp"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "ggml-dir.bin"), 0o755))

	models, err := ListModels(dir)
	require.NoError(t, err)
	assert.Equal(t, []ModelInfo{
		{File: "ggml-base-q8_0.bin", Size: 6},
		{File: "ggml-small.bin", Size: 3},
	}, models)

	missing, err := ListModels(filepath.Join(dir, "absent"))
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := types.DefaultTranscriptionConfig()
	cfg.Backend = "vosk"
	_, err := New(context.Background(), cfg, Options{})
	assert.ErrorIs(t, err, types.ErrUnknownBackend)
}
