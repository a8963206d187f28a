// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package audio

import (
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

// decodeWAV decodes a PCM WAV file, down-mixes it to mono and resamples it
// to SampleRate.
func decodeWAV(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening WAV %s: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file %s", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decoding WAV %s: %w", path, err)
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("WAV %s has no sample format", path)
	}

	samples := to16Bit(buf.Data, int(dec.BitDepth))
	mono := toMono(samples, buf.Format.NumChannels)
	out, err := resample(mono, buf.Format.SampleRate, SampleRate)
	if err != nil {
		return nil, err
	}
	return int16ToFloat32(out), nil
}

// to16Bit rescales integer PCM of the given bit depth to int16. 8-bit WAV
// data is unsigned and centered on 128.
func to16Bit(data []int, bitDepth int) []int16 {
	out := make([]int16, len(data))
	for i, v := range data {
		switch {
		case bitDepth == 8:
			out[i] = int16((v - 128) << 8)
		case bitDepth > 16:
			out[i] = int16(v >> (bitDepth - 16))
		default:
			out[i] = int16(v)
		}
	}
	return out
}
