// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package transcribe

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/transcript-engine/internal/transcript"
	"github.com/pdiddy/transcript-engine/pkg/types"
)

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.Local)

func init() {
	now = func() time.Time { return fixedNow }
}

// fakeRecognizer returns a two-segment transcript, failing for files whose
// base name is listed in fail. Files listed in silent yield no segments.
// Recognizing the file named hold signals started and then waits for
// release.
type fakeRecognizer struct {
	mu     sync.Mutex
	fail   map[string]bool
	silent map[string]bool
	calls  []string

	hold    string
	started chan struct{}
	release chan struct{}
}

func (f *fakeRecognizer) Recognize(ctx context.Context, audioPath string) (*types.Transcript, error) {
	name := filepath.Base(audioPath)
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
	if f.hold != "" && name == f.hold {
		f.started <- struct{}{}
		<-f.release
	}
	if f.fail[name] {
		return nil, errors.New("decoding audio: invalid data found")
	}
	if f.silent[name] {
		return &types.Transcript{Language: "unknown", Duration: 4 * time.Second}, nil
	}
	return &types.Transcript{
		Language:            "en",
		LanguageProbability: types.Probability(0.97),
		Duration:            3 * time.Second,
		Segments: []types.Segment{
			{Start: 0, End: 1500 * time.Millisecond, Text: " Hello."},
			{Start: 1500 * time.Millisecond, End: 3 * time.Second, Text: " Goodbye."},
		},
	}, nil
}

func (f *fakeRecognizer) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRecognizer) count(name string) int {
	n := 0
	for _, c := range f.called() {
		if c == name {
			n++
		}
	}
	return n
}

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("audio"), 0o644))
	}
}

func testConfig(t *testing.T) types.TranscriptionConfig {
	cfg := types.DefaultTranscriptionConfig()
	root := t.TempDir()
	cfg.InputDir = filepath.Join(root, "audio_files")
	cfg.OutputDir = filepath.Join(root, "transcripts_output")
	require.NoError(t, os.MkdirAll(cfg.InputDir, 0o755))
	return cfg
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "b.m4a", "a.m4a", "c.mp3", "notes.txt")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.m4a"), 0o755))

	tests := []struct {
		name     string
		patterns []string
		want     []string
	}{
		{"single pattern sorted", []string{"*.m4a"}, []string{"a.m4a", "b.m4a"}},
		{"several patterns", []string{"*.mp3", "*.m4a"}, []string{"a.m4a", "b.m4a", "c.mp3"}},
		{"overlapping patterns deduplicated", []string{"*.m4a", "a.*"}, []string{"a.m4a", "b.m4a"}},
		{"no match", []string{"*.wav"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := Discover(dir, tt.patterns)
			require.NoError(t, err)
			var names []string
			for _, f := range files {
				names = append(names, filepath.Base(f))
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestDiscoverMissingDir(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "nope"), []string{"*.m4a"})
	assert.Error(t, err)
}

func TestTranscribeFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Subtitles = []types.SubtitleFormat{types.SubtitleSRT, types.SubtitleVTT}
	touch(t, cfg.InputDir, "meeting.m4a")

	res := TranscribeFile(context.Background(), &fakeRecognizer{}, filepath.Join(cfg.InputDir, "meeting.m4a"), cfg, fixedNow)
	require.NoError(t, res.Err)
	assert.Equal(t, types.StatusDone, res.Status)
	assert.Equal(t, filepath.Join(cfg.OutputDir, "meeting.txt"), res.Output)

	data, err := os.ReadFile(res.Output)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "Transcription of: meeting.m4a\nDate: 2026-03-14 09:26:53\n"))
	assert.Contains(t, text, "Language: en (probability: 0.97)\n")
	assert.True(t, strings.HasSuffix(text, "\nHello. Goodbye."))

	parsed, err := transcript.Parse(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Len(t, parsed.Segments, 2)

	srt, err := os.ReadFile(filepath.Join(cfg.OutputDir, "meeting.srt"))
	require.NoError(t, err)
	assert.Contains(t, string(srt), "00:00:01,500 --> 00:00:03,000")
	vtt, err := os.ReadFile(filepath.Join(cfg.OutputDir, "meeting.vtt"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(vtt), "WEBVTT"))

	// No temp files remain.
	entries, err := os.ReadDir(cfg.OutputDir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestTranscribeFileSilentWithSubtitles(t *testing.T) {
	cfg := testConfig(t)
	cfg.Subtitles = []types.SubtitleFormat{types.SubtitleSRT, types.SubtitleVTT}
	touch(t, cfg.InputDir, "quiet.m4a")
	rec := &fakeRecognizer{silent: map[string]bool{"quiet.m4a": true}}

	res := TranscribeFile(context.Background(), rec, filepath.Join(cfg.InputDir, "quiet.m4a"), cfg, fixedNow)
	require.NoError(t, res.Err)
	assert.Equal(t, types.StatusDone, res.Status)

	txt, err := os.ReadFile(filepath.Join(cfg.OutputDir, "quiet.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(txt), "Language: unknown\n")

	srt, err := os.ReadFile(filepath.Join(cfg.OutputDir, "quiet.srt"))
	require.NoError(t, err)
	assert.Empty(t, srt)

	vtt, err := os.ReadFile(filepath.Join(cfg.OutputDir, "quiet.vtt"))
	require.NoError(t, err)
	assert.Equal(t, "WEBVTT\n", string(vtt))
}

func TestTranscribeFileSkipExisting(t *testing.T) {
	cfg := testConfig(t)
	touch(t, cfg.InputDir, "a.m4a")
	require.NoError(t, os.MkdirAll(cfg.OutputDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.OutputDir, "a.txt"), []byte("old"), 0o644))

	rec := &fakeRecognizer{}
	audio := filepath.Join(cfg.InputDir, "a.m4a")

	cfg.SkipExisting = true
	res := TranscribeFile(context.Background(), rec, audio, cfg, fixedNow)
	assert.Equal(t, types.StatusSkipped, res.Status)
	assert.Empty(t, rec.called())

	cfg.SkipExisting = false
	res = TranscribeFile(context.Background(), rec, audio, cfg, fixedNow)
	assert.Equal(t, types.StatusDone, res.Status)
	data, err := os.ReadFile(res.Output)
	require.NoError(t, err)
	assert.NotEqual(t, "old", string(data), "existing transcripts are overwritten by default")
}

func TestTranscribeBatch(t *testing.T) {
	cfg := testConfig(t)
	touch(t, cfg.InputDir, "a.m4a", "bad.m4a", "c.m4a")
	files, err := Discover(cfg.InputDir, cfg.Patterns)
	require.NoError(t, err)

	rec := &fakeRecognizer{fail: map[string]bool{"bad.m4a": true}}
	var out bytes.Buffer
	result := TranscribeBatch(context.Background(), rec, files, cfg, &out)

	assert.Equal(t, BatchResult{Transcribed: 2, Failed: 1}, result)
	assert.Equal(t, 3, result.Total())
	assert.True(t, result.HasFailures())
	assert.Equal(t, []string{"a.m4a", "bad.m4a", "c.m4a"}, rec.called())

	got := out.String()
	assert.Contains(t, got, "Found 3 audio file(s) to transcribe.")
	assert.Contains(t, got, "[1/3] Processing: a.m4a\n✓ Saved transcription to: "+filepath.Join(cfg.OutputDir, "a.txt"))
	assert.Contains(t, got, "[2/3] Processing: bad.m4a\n✗ Error processing bad.m4a: decoding audio: invalid data found")
	assert.Contains(t, got, "Batch summary: 2 transcribed, 0 skipped, 1 failed (total: 3)")

	assert.NoFileExists(t, filepath.Join(cfg.OutputDir, "bad.txt"))
	assert.FileExists(t, filepath.Join(cfg.OutputDir, "c.txt"))
}

func TestTranscribeBatchNoFiles(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer
	result := TranscribeBatch(context.Background(), &fakeRecognizer{}, nil, cfg, &out)

	assert.Zero(t, result.Total())
	assert.False(t, result.HasFailures())
	assert.Equal(t, "No .m4a files found in "+cfg.InputDir+"/\n", out.String())
}

func TestTranscribeBatchCancelled(t *testing.T) {
	cfg := testConfig(t)
	touch(t, cfg.InputDir, "a.m4a", "b.m4a")
	files, err := Discover(cfg.InputDir, cfg.Patterns)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &fakeRecognizer{}
	var out bytes.Buffer
	result := TranscribeBatch(ctx, rec, files, cfg, &out)
	assert.Equal(t, 2, result.Failed)
	assert.Empty(t, rec.called())
	assert.Contains(t, out.String(), "Stopped before 2 remaining file(s)")
}

func TestWatch(t *testing.T) {
	cfg := testConfig(t)
	rec := &fakeRecognizer{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type outcome struct {
		result BatchResult
		err    error
	}
	var out bytes.Buffer
	done := make(chan outcome, 1)
	go func() {
		r, err := Watch(ctx, rec, cfg, &out, 50*time.Millisecond)
		done <- outcome{r, err}
	}()

	// Give the watcher time to register before creating files.
	time.Sleep(100 * time.Millisecond)
	touch(t, cfg.InputDir, "new.m4a", "ignored.mp3")

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(cfg.OutputDir, "new.txt"))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	got := <-done
	require.NoError(t, got.err)
	assert.Equal(t, 1, got.result.Transcribed)
	assert.Equal(t, []string{"new.m4a"}, rec.called())
	assert.Contains(t, out.String(), "Watching ")
}

func TestWatchRewriteWhileBusy(t *testing.T) {
	cfg := testConfig(t)
	rec := &fakeRecognizer{
		hold:    "a.m4a",
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out bytes.Buffer
	done := make(chan BatchResult, 1)
	go func() {
		r, _ := Watch(ctx, rec, cfg, &out, 50*time.Millisecond)
		done <- r
	}()
	time.Sleep(100 * time.Millisecond)

	touch(t, cfg.InputDir, "a.m4a")
	select {
	case <-rec.started:
	case <-time.After(5 * time.Second):
		t.Fatal("a.m4a was never picked up")
	}

	// b.m4a settles while a.m4a is still being transcribed, so its timer
	// fires and waits. It is then appended to before the loop is free.
	touch(t, cfg.InputDir, "b.m4a")
	time.Sleep(150 * time.Millisecond)
	f, err := os.OpenFile(filepath.Join(cfg.InputDir, "b.m4a"), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("more audio")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	time.Sleep(20 * time.Millisecond)
	close(rec.release)

	require.Eventually(t, func() bool {
		return rec.count("b.m4a") > 0
	}, 5*time.Second, 20*time.Millisecond)
	time.Sleep(300 * time.Millisecond)

	cancel()
	result := <-done
	assert.Equal(t, 1, rec.count("a.m4a"))
	assert.Equal(t, 1, rec.count("b.m4a"))
	assert.Equal(t, 2, result.Transcribed)

	got, err := os.ReadFile(filepath.Join(cfg.OutputDir, "b.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(got), "Transcription of: b.m4a")
}

func TestWatchUnchangedFileNotRepeated(t *testing.T) {
	cfg := testConfig(t)
	rec := &fakeRecognizer{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out bytes.Buffer
	done := make(chan BatchResult, 1)
	go func() {
		r, _ := Watch(ctx, rec, cfg, &out, 50*time.Millisecond)
		done <- r
	}()
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(cfg.InputDir, "memo.m4a")
	touch(t, cfg.InputDir, "memo.m4a")
	require.Eventually(t, func() bool {
		return rec.count("memo.m4a") == 1
	}, 5*time.Second, 20*time.Millisecond)

	// Opening for write without changing content or mtime emits no new
	// version of the file.
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("audio"), 0o644))
	require.NoError(t, os.Chtimes(path, info.ModTime(), info.ModTime()))
	time.Sleep(300 * time.Millisecond)

	cancel()
	result := <-done
	assert.Equal(t, 1, rec.count("memo.m4a"))
	assert.Equal(t, 1, result.Transcribed)
}

func TestDescribePatterns(t *testing.T) {
	assert.Equal(t, ".m4a", describePatterns([]string{"*.m4a"}))
	assert.Equal(t, ".m4a, .wav, memo-?.ogg", describePatterns([]string{"*.m4a", "*.wav", "memo-?.ogg"}))
}
