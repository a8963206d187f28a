// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns transcript text files into styled PDF documents.
// Each line of a transcript is classified into a Story of paragraphs,
// spacers and page breaks, laid out as HTML, and printed to PDF by a
// Renderer.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/transcript-engine/internal/logging"
	"github.com/pdiddy/transcript-engine/internal/transcript"
	"github.com/pdiddy/transcript-engine/pkg/types"
)

// BatchResult holds the outcome of a batch conversion run.
type BatchResult struct {
	Converted int
	Skipped   int
	Failed    int
}

// Total returns the number of files processed.
func (r BatchResult) Total() int {
	return r.Converted + r.Skipped + r.Failed
}

// HasFailures reports whether any file failed conversion.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// Result is the outcome of converting one file.
type Result struct {
	Status types.FileStatus
	Output string
	Err    error
}

// OutputPath returns where the PDF for txtPath is written.
func OutputPath(outDir, txtPath string) string {
	base := filepath.Base(txtPath)
	return filepath.Join(outDir, strings.TrimSuffix(base, filepath.Ext(base))+".pdf")
}

// ConvertFile converts one transcript to <OutputDir>/<stem>.pdf. With
// cfg.SkipExisting an existing PDF is kept.
func ConvertFile(ctx context.Context, r Renderer, txtPath string, cfg types.ConversionConfig) Result {
	out := OutputPath(cfg.OutputDir, txtPath)
	if cfg.SkipExisting {
		if _, err := os.Stat(out); err == nil {
			return Result{Status: types.StatusSkipped, Output: out}
		}
	}

	page, err := PageSettingsFor(cfg.PageSize)
	if err != nil {
		return Result{Status: types.StatusFailed, Err: err}
	}
	content, err := ReadText(txtPath)
	if err != nil {
		return Result{Status: types.StatusFailed, Err: err}
	}

	name := strings.TrimSuffix(filepath.Base(txtPath), filepath.Ext(txtPath))
	story := BuildStory(name, content)
	doc, err := RenderHTML("Transcription: "+name, story, DefaultStyleSheet(cfg.FontSize, cfg.FontName), page)
	if err != nil {
		return Result{Status: types.StatusFailed, Err: err}
	}

	htmlPath, cleanup, err := writeTemp(doc, "transcript-*.html")
	if err != nil {
		return Result{Status: types.StatusFailed, Err: err}
	}
	defer cleanup()

	pdf, err := r.RenderPDF(ctx, htmlPath, page)
	if err != nil {
		return Result{Status: types.StatusFailed, Err: err}
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return Result{Status: types.StatusFailed, Err: fmt.Errorf("creating output directory: %w", err)}
	}
	if err := writeFileAtomic(out, pdf); err != nil {
		return Result{Status: types.StatusFailed, Err: err}
	}

	logging.L().Debug("pdf written", "file", out, "elements", len(story), "bytes", len(pdf))
	return Result{Status: types.StatusDone, Output: out}
}

// ConvertBatch converts files in order, printing per-file status and a
// summary to w.
func ConvertBatch(ctx context.Context, r Renderer, files []string, cfg types.ConversionConfig, w io.Writer) BatchResult {
	var result BatchResult
	if len(files) == 0 {
		fmt.Fprintf(w, "No %s files found in %s/\n", transcript.Ext, cfg.InputDir)
		return result
	}

	fmt.Fprintf(w, "\nFound %d text file(s) to convert.\n\n", len(files))
	for i, f := range files {
		name := filepath.Base(f)
		fmt.Fprintf(w, "[%d/%d] Converting: %s\n", i+1, len(files), name)

		var res Result
		if err := ctx.Err(); err != nil {
			res = Result{Status: types.StatusFailed, Err: err}
		} else {
			res = ConvertFile(ctx, r, f, cfg)
		}

		switch res.Status {
		case types.StatusDone:
			result.Converted++
			fmt.Fprintf(w, "✓ Saved PDF to: %s\n\n", res.Output)
		case types.StatusSkipped:
			result.Skipped++
			fmt.Fprintf(w, "- Skipped (already exists): %s\n\n", res.Output)
		default:
			result.Failed++
			err := res.Err
			if errors.Is(err, context.Canceled) {
				err = errors.New("interrupted")
			}
			fmt.Fprintf(w, "✗ Error converting %s: %v\n\n", name, err)
		}
	}

	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintln(w, "Conversion complete!")
	fmt.Fprintf(w, "Successfully converted: %d file(s)\n", result.Converted)
	if result.Skipped > 0 {
		fmt.Fprintf(w, "Skipped: %d file(s)\n", result.Skipped)
	}
	if result.Failed > 0 {
		fmt.Fprintf(w, "Failed: %d file(s)\n", result.Failed)
	}
	fmt.Fprintf(w, "All PDFs saved to: %s/\n", cfg.OutputDir)
	return result
}

// writeTemp writes content to a new temporary file and returns its path
// and a cleanup function.
func writeTemp(content, pattern string) (string, func(), error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", nil, fmt.Errorf("creating temp file: %w", err)
	}
	path := f.Name()
	cleanup := func() { os.Remove(path) }

	if _, err := f.WriteString(content); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("closing temp file: %w", err)
	}
	return path, cleanup, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
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
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
