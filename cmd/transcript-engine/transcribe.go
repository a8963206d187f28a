// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/transcript-engine/internal/recognize"
	"github.com/pdiddy/transcript-engine/internal/transcribe"
	"github.com/pdiddy/transcript-engine/pkg/types"
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe",
	Short: "Transcribe audio files to timestamped text",
	Long: `Transcribe runs speech recognition on every audio file in the input
directory and writes one <stem>.txt transcript per file to the output
directory. Each transcript carries a metadata header, a timestamped segment
list, and the full text.

The model is loaded once per run. Files are processed sequentially; a file
that fails is reported and the batch continues. The command exits non-zero
when any file failed.

With --watch, the command keeps running after the batch and transcribes new
files as they appear.`,
	RunE: runTranscribe,
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	pipeline, err := loadPipelineConfig(viper.GetViper())
	if err != nil {
		return err
	}
	cfg := pipeline.Transcription
	if err := cfg.Validate(); err != nil {
		return err
	}
	watch, _ := cmd.Flags().GetBool("watch")

	ctx, stop := notifyContext(context.Background())
	defer stop()

	files, err := transcribe.Discover(cfg.InputDir, cfg.Patterns)
	if err != nil && !(errors.Is(err, fs.ErrNotExist) && !watch) {
		return err
	}

	var result transcribe.BatchResult
	if len(files) == 0 && !watch {
		return printBatch(transcribe.TranscribeBatch(ctx, nil, nil, cfg, os.Stdout))
	}

	rec, err := recognize.New(ctx, cfg, recognize.Options{
		Progress:   os.Stderr,
		ModelToken: secretDefault("huggingface-token", ""),
	})
	if err != nil {
		return err
	}
	defer rec.Close()

	if len(files) > 0 {
		result = transcribe.TranscribeBatch(ctx, rec, files, cfg, os.Stdout)
	}
	if watch && ctx.Err() == nil {
		debounce, _ := cmd.Flags().GetDuration("debounce")
		watched, err := transcribe.Watch(ctx, rec, cfg, os.Stdout, debounce)
		if err != nil {
			return err
		}
		result.Transcribed += watched.Transcribed
		result.Skipped += watched.Skipped
		result.Failed += watched.Failed
	}
	return printBatch(result)
}

// printBatch turns a batch result into the command's exit status.
func printBatch(r transcribe.BatchResult) error {
	if r.HasFailures() {
		return fmt.Errorf("%d file(s) failed transcription", r.Failed)
	}
	return nil
}

func init() {
	d := types.DefaultTranscriptionConfig()
	f := transcribeCmd.Flags()

	f.String("input-dir", d.InputDir, "directory scanned for audio files")
	f.String("output-dir", d.OutputDir, "directory receiving <stem>.txt transcripts")
	f.StringSlice("pattern", d.Patterns, "glob pattern for audio files (repeatable)")
	f.String("backend", string(d.Backend), "recognition backend: whispercpp or openai")
	f.String("model", d.ModelSize, "model size: tiny, base, small, medium, large-v1, large-v2, large-v3 (.en for English-only)")
	f.String("device", string(d.Device), "compute device: cpu or cuda")
	f.String("compute-type", string(d.ComputeType), "weight precision: int8, float16, or float32")
	f.String("models-dir", d.ModelsDir, "directory holding downloaded model files")
	f.String("language", d.Language, "language code, or auto to detect")
	f.Int("beam-size", d.BeamSize, "beam search width")
	f.Bool("vad", d.VAD, "skip silence with voice activity detection")
	f.Duration("min-silence", d.MinSilence, "shortest pause that splits speech regions")
	f.Int("threads", d.Threads, "decoder threads (0 = GOMAXPROCS)")
	f.StringSlice("subtitles", nil, "also write subtitles: srt, vtt")
	f.Bool("skip-existing", d.SkipExisting, "leave files whose transcript already exists")
	f.String("ffmpeg-image", d.FFmpegImage, "container image used when ffmpeg is not installed")
	f.String("openai-base-url", d.OpenAI.BaseURL, "OpenAI-compatible API base URL (openai backend)")
	f.String("openai-model", d.OpenAI.Model, "remote model name (openai backend)")
	f.Duration("openai-timeout", d.OpenAI.Timeout, "timeout for one remote transcription")
	f.Bool("watch", false, "keep running and transcribe new files as they appear")
	f.Duration("debounce", transcribe.DefaultDebounce, "quiet period before a watched file is picked up")

	bindFlags(transcribeCmd, map[string]string{
		"input-dir":       "transcription.input_dir",
		"output-dir":      "transcription.output_dir",
		"pattern":         "transcription.patterns",
		"backend":         "transcription.backend",
		"model":           "transcription.model_size",
		"device":          "transcription.device",
		"compute-type":    "transcription.compute_type",
		"models-dir":      "transcription.models_dir",
		"language":        "transcription.language",
		"beam-size":       "transcription.beam_size",
		"vad":             "transcription.vad",
		"min-silence":     "transcription.min_silence",
		"threads":         "transcription.threads",
		"subtitles":       "transcription.subtitles",
		"skip-existing":   "transcription.skip_existing",
		"ffmpeg-image":    "transcription.ffmpeg_image",
		"openai-base-url": "transcription.openai.base_url",
		"openai-model":    "transcription.openai.model",
		"openai-timeout":  "transcription.openai.timeout",
	})

	rootCmd.AddCommand(transcribeCmd)
}
