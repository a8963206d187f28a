// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/pdiddy/transcript-engine/internal/container"
	"github.com/pdiddy/transcript-engine/internal/logging"
)

const (
	binFFmpeg = "ffmpeg"
	// containerInputDir is where the input directory is mounted.
	containerInputDir = "/in"
)

// commandRunner abstracts local process execution for testing.
type commandRunner interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, name string, args []string, stdout io.Writer) error
}

type osRunner struct{}

func (osRunner) LookPath(file string) (string, error) { return exec.LookPath(file) }

func (osRunner) Run(ctx context.Context, name string, args []string, stdout io.Writer) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

// FFmpeg converts audio with the ffmpeg binary on PATH or, when it is
// missing, with an ffmpeg container image.
type FFmpeg struct {
	image  string
	runner commandRunner
	detect func() (container.Runtime, error)

	once    sync.Once
	local   bool
	runtime container.Runtime
}

// NewFFmpeg returns an FFmpeg that falls back to the given container image.
func NewFFmpeg(image string) *FFmpeg {
	return &FFmpeg{
		image:  image,
		runner: osRunner{},
		detect: container.DetectRuntime,
	}
}

func (f *FFmpeg) resolve() {
	f.once.Do(func() {
		log := logging.L()
		if _, err := f.runner.LookPath(binFFmpeg); err == nil {
			f.local = true
			log.Debug("using local ffmpeg")
			return
		}
		if f.image == "" || f.detect == nil {
			return
		}
		rt, err := f.detect()
		if err != nil {
			log.Debug("ffmpeg not on PATH and no container runtime", "error", err)
			return
		}
		if err := container.EnsureImage(rt, f.image); err != nil {
			log.Warn("ffmpeg image unavailable", "image", f.image, "error", err)
			return
		}
		log.Info("ffmpeg not on PATH, using container", "runtime", rt.Name(), "image", f.image)
		f.runtime = rt
	})
}

// Available reports whether ffmpeg can run locally or in a container.
func (f *FFmpeg) Available() bool {
	f.resolve()
	return f.local || f.runtime != nil
}

// Decode converts path to 16 kHz mono float32 samples.
func (f *FFmpeg) Decode(ctx context.Context, path string) ([]float32, error) {
	f.resolve()

	var out bytes.Buffer
	switch {
	case f.local:
		if err := f.runner.Run(ctx, binFFmpeg, ffmpegArgs(path), &out); err != nil {
			return nil, fmt.Errorf("ffmpeg decoding %s: %w", path, err)
		}
	case f.runtime != nil:
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", path, err)
		}
		spec := container.RunSpec{
			Image:  f.image,
			Mounts: []container.Mount{{Source: filepath.Dir(abs), Target: containerInputDir, ReadOnly: true}},
			Args:   ffmpegArgs(containerInputDir + "/" + filepath.Base(abs)),
		}
		if err := f.runtime.Run(spec, nil, &out); err != nil {
			return nil, fmt.Errorf("ffmpeg decoding %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: ffmpeg not found", ErrNoDecoder)
	}

	if out.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no audio for %s", path)
	}
	return pcmToFloat32(out.Bytes()), nil
}

// ffmpegArgs returns arguments that decode input to raw 16 kHz mono
// s16le PCM on stdout.
func ffmpegArgs(input string) []string {
	return []string{
		"-nostdin", "-hide_banner", "-loglevel", "error",
		"-i", input,
		"-ar", strconv.Itoa(SampleRate),
		"-ac", "1",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"pipe:1",
	}
}
