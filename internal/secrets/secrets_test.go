// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
		want  Store
	}{
		{
			name: "reads key files and trims whitespace",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "openai-api-key", "  sk-abc123  \n")
				writeFile(t, dir, "huggingface-token", "hf_xyz789")
				return dir
			},
			want: Store{
				"openai-api-key":    "sk-abc123",
				"huggingface-token": "hf_xyz789",
			},
		},
		{
			name: "returns empty store for nonexistent directory",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "does-not-exist")
			},
			want: Store{},
		},
		{
			name: "skips empty files",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "openai-api-key", "valid-key")
				writeFile(t, dir, "empty-key", "")
				writeFile(t, dir, "whitespace-only", "   \n\t  ")
				return dir
			},
			want: Store{"openai-api-key": "valid-key"},
		},
		{
			name: "skips dotfiles and subdirectories",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, ".gitkeep", "")
				writeFile(t, dir, ".hidden-key", "secret")
				writeFile(t, dir, "huggingface-token", "hf_real")
				require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))
				return dir
			},
			want: Store{"huggingface-token": "hf_real"},
		},
		{
			name: "loads group-readable files",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				require.NoError(t, os.WriteFile(filepath.Join(dir, "openai-api-key"), []byte("sk-open"), 0o644))
				return dir
			},
			want: Store{"openai-api-key": "sk-open"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.setup(t))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("file permissions are not enforced for root")
	}
	dir := t.TempDir()
	writeFile(t, dir, "good-key", "value123")

	badPath := filepath.Join(dir, "bad-key")
	require.NoError(t, os.WriteFile(badPath, []byte("secret"), 0o000))
	t.Cleanup(func() { os.Chmod(badPath, 0o600) })

	got, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, Store{"good-key": "value123"}, got)
}

func TestStoreKeys(t *testing.T) {
	s := Store{"openai-api-key": "a", "huggingface-token": "b"}
	assert.Equal(t, []string{"huggingface-token", "openai-api-key"}, s.Keys())
	assert.Empty(t, Store{}.Keys())
}

func TestStoreDefault(t *testing.T) {
	s := Store{"openai-api-key": "sk-secret"}
	assert.Equal(t, "sk-explicit", s.Default("openai-api-key", "sk-explicit"))
	assert.Equal(t, "sk-secret", s.Default("openai-api-key", ""))
	assert.Equal(t, "", s.Default("huggingface-token", ""))

	var none Store
	assert.Equal(t, "", none.Default("openai-api-key", ""))
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}
