// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package audio decodes audio files into the 16 kHz mono float32 samples a
// speech model consumes. WAV is decoded in-process; OGG/Opus falls back to a
// pure-Go decoder; every other container (m4a, mp3, flac, ...) goes through
// ffmpeg, run locally or in a container.
package audio

import (
	"context"
	"errors"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"github.com/zeozeozeo/gomplerate"

	"github.com/pdiddy/transcript-engine/internal/logging"
)

// SampleRate is the output sample rate of every decoder in this package.
const SampleRate = 16000

// ErrNoDecoder is returned when no decoder can handle a file.
var ErrNoDecoder = errors.New("no audio decoder available")

// Decoder routes audio files to a decoder by sniffed content type.
type Decoder struct {
	ffmpeg *FFmpeg
}

// NewDecoder returns a Decoder that uses ff for formats without an
// in-process decoder. ff may be nil.
func NewDecoder(ff *FFmpeg) *Decoder {
	return &Decoder{ffmpeg: ff}
}

type format int

const (
	formatOther format = iota
	formatWAV
	formatOgg
)

func detectFormat(m *mimetype.MIME) format {
	switch {
	case m.Is("audio/wav"):
		return formatWAV
	case m.Is("audio/ogg"), m.Is("application/ogg"), m.Is("audio/opus"):
		return formatOgg
	}
	return formatOther
}

// Decode reads path and returns 16 kHz mono samples in [-1, 1].
func (d *Decoder) Decode(ctx context.Context, path string) ([]float32, error) {
	m, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("detecting audio type of %s: %w", path, err)
	}
	log := logging.L()
	log.Debug("decoding audio", "file", path, "mime", m.String())

	switch detectFormat(m) {
	case formatWAV:
		return decodeWAV(path)
	case formatOgg:
		if d.ffmpegAvailable() {
			return d.ffmpeg.Decode(ctx, path)
		}
		samples, err := decodeOggOpusSafe(path)
		if err != nil {
			return nil, fmt.Errorf("decoding OGG %s (install ffmpeg for reliable conversion): %w", path, err)
		}
		return samples, nil
	}

	if !d.ffmpegAvailable() {
		return nil, fmt.Errorf("%w for %s (%s): install ffmpeg or a container runtime", ErrNoDecoder, path, m.String())
	}
	return d.ffmpeg.Decode(ctx, path)
}

func (d *Decoder) ffmpegAvailable() bool {
	return d.ffmpeg != nil && d.ffmpeg.Available()
}

// Duration returns the play time of n samples at SampleRate, in seconds.
func Duration(n int) float64 {
	return float64(n) / SampleRate
}

// toMono converts interleaved multi-channel audio to mono by averaging.
func toMono(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	mono := make([]int16, len(samples)/channels)
	for i := range mono {
		var sum int32
		for ch := 0; ch < channels; ch++ {
			sum += int32(samples[i*channels+ch])
		}
		mono[i] = int16(sum / int32(channels))
	}
	return mono
}

// resample converts mono audio from one sample rate to another.
func resample(samples []int16, fromRate, toRate int) ([]int16, error) {
	if fromRate == toRate {
		return samples, nil
	}
	r, err := gomplerate.NewResampler(1, fromRate, toRate)
	if err != nil {
		return nil, fmt.Errorf("creating resampler %d->%d Hz: %w", fromRate, toRate, err)
	}
	return r.ResampleInt16(samples), nil
}

// int16ToFloat32 converts int16 samples to float32 normalized to [-1, 1].
func int16ToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// pcmToFloat32 converts raw signed 16-bit little-endian PCM to float32.
func pcmToFloat32(raw []byte) []float32 {
	out := make([]float32, len(raw)/2)
	for i := range out {
		s := int16(raw[2*i]) | int16(raw[2*i+1])<<8
		out[i] = float32(s) / 32768.0
	}
	return out
}
