// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package transcribe runs the audio-to-transcript batch: it discovers audio
// files, hands each one to a Recognizer, and writes the transcript (and any
// subtitle files) next to the others in the output directory. A failure on
// one file is reported and the batch moves on.
package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/transcript-engine/internal/logging"
	"github.com/pdiddy/transcript-engine/internal/transcript"
	"github.com/pdiddy/transcript-engine/pkg/types"
)

// Recognizer turns one audio file into a transcript.
type Recognizer interface {
	Recognize(ctx context.Context, audioPath string) (*types.Transcript, error)
}

// now stamps transcripts; tests replace it.
var now = time.Now

// BatchResult holds the outcome of a transcription run.
type BatchResult struct {
	Transcribed int
	Skipped     int
	Failed      int
}

// Total returns the number of files processed.
func (r BatchResult) Total() int {
	return r.Transcribed + r.Skipped + r.Failed
}

// HasFailures reports whether any file failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

func (r *BatchResult) add(s types.FileStatus) {
	switch s {
	case types.StatusDone:
		r.Transcribed++
	case types.StatusSkipped:
		r.Skipped++
	case types.StatusFailed:
		r.Failed++
	}
}

// Result is the outcome of transcribing one file.
type Result struct {
	Status types.FileStatus
	// Output is the transcript path, set for done and skipped files.
	Output string
	Err    error
}

// Discover lists the files in dir matching any of patterns. The search is
// not recursive. Results are de-duplicated and sorted by path.
func Discover(dir string, patterns []string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("input directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input directory: %s is not a directory", dir)
	}

	seen := make(map[string]bool)
	var files []string
	for _, p := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, p))
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		for _, m := range matches {
			if seen[m] {
				continue
			}
			if fi, err := os.Stat(m); err != nil || fi.IsDir() {
				continue
			}
			seen[m] = true
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

// OutputPath returns where the transcript for audioPath is written.
func OutputPath(outDir, audioPath string) string {
	return filepath.Join(outDir, stem(audioPath)+".txt")
}

// TranscribeFile recognizes one audio file and writes its transcript to
// cfg.OutputDir, stamped with createdAt. With cfg.SkipExisting an existing
// transcript is kept and the recognizer is not invoked.
func TranscribeFile(ctx context.Context, rec Recognizer, audioPath string, cfg types.TranscriptionConfig, createdAt time.Time) Result {
	out := OutputPath(cfg.OutputDir, audioPath)
	if cfg.SkipExisting {
		if _, err := os.Stat(out); err == nil {
			return Result{Status: types.StatusSkipped, Output: out}
		}
	}

	t, err := rec.Recognize(ctx, audioPath)
	if err != nil {
		return Result{Status: types.StatusFailed, Err: err}
	}
	t.AudioFile = filepath.Base(audioPath)
	t.CreatedAt = createdAt

	// Subtitles are rendered first so a failure leaves no outputs behind.
	subs := make([][]byte, len(cfg.Subtitles))
	for i, f := range cfg.Subtitles {
		var buf bytes.Buffer
		if err := transcript.WriteSubtitles(&buf, t, f); err != nil {
			return Result{Status: types.StatusFailed, Err: fmt.Errorf("rendering %s subtitles: %w", f, err)}
		}
		subs[i] = buf.Bytes()
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return Result{Status: types.StatusFailed, Err: fmt.Errorf("creating output directory: %w", err)}
	}
	if err := writeAtomic(out, func(w io.Writer) error { return transcript.Write(w, t) }); err != nil {
		return Result{Status: types.StatusFailed, Err: err}
	}
	for i, f := range cfg.Subtitles {
		sub := filepath.Join(cfg.OutputDir, stem(audioPath)+"."+string(f))
		data := subs[i]
		err := writeAtomic(sub, func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		})
		if err != nil {
			return Result{Status: types.StatusFailed, Output: out, Err: fmt.Errorf("writing %s subtitles: %w", f, err)}
		}
	}

	logging.L().Debug("transcript written", "file", out, "segments", len(t.Segments), "language", t.Language)
	return Result{Status: types.StatusDone, Output: out}
}

// TranscribeBatch processes files in order, printing per-file status to w.
// Cancelling ctx stops the batch; files not yet attempted count as failed.
func TranscribeBatch(ctx context.Context, rec Recognizer, files []string, cfg types.TranscriptionConfig, w io.Writer) BatchResult {
	var result BatchResult
	if len(files) == 0 {
		fmt.Fprintf(w, "No %s files found in %s/\n", describePatterns(cfg.Patterns), cfg.InputDir)
		return result
	}

	fmt.Fprintf(w, "\nFound %d audio file(s) to transcribe.\n\n", len(files))
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			remaining := len(files) - i
			result.Failed += remaining
			fmt.Fprintf(w, "✗ Stopped before %d remaining file(s): %v\n\n", remaining, err)
			break
		}
		fmt.Fprintf(w, "[%d/%d] Processing: %s\n", i+1, len(files), filepath.Base(f))
		res := TranscribeFile(ctx, rec, f, cfg, now())
		report(w, f, res)
		result.add(res.Status)
	}

	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintln(w, "Transcription complete!")
	fmt.Fprintf(w, "All transcripts saved to: %s/\n", cfg.OutputDir)
	fmt.Fprintf(w, "Batch summary: %d transcribed, %d skipped, %d failed (total: %d)\n",
		result.Transcribed, result.Skipped, result.Failed, result.Total())
	return result
}

func report(w io.Writer, audioPath string, res Result) {
	switch res.Status {
	case types.StatusDone:
		fmt.Fprintf(w, "✓ Saved transcription to: %s\n\n", res.Output)
	case types.StatusSkipped:
		fmt.Fprintf(w, "- Skipped (already exists): %s\n\n", res.Output)
	default:
		err := res.Err
		if errors.Is(err, context.Canceled) {
			err = errors.New("interrupted")
		}
		fmt.Fprintf(w, "✗ Error processing %s: %v\n\n", filepath.Base(audioPath), err)
	}
}

// describePatterns renders glob patterns the way users name file types:
// "*.m4a" becomes ".m4a".
func describePatterns(patterns []string) string {
	names := make([]string, len(patterns))
	for i, p := range patterns {
		names[i] = strings.TrimPrefix(p, "*")
	}
	return strings.Join(names, ", ")
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// writeAtomic writes path through a temporary file in the same directory,
// so readers never observe a partially written file.
func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
