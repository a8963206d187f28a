// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/pion/opus"
	"github.com/pion/opus/pkg/oggreader"

	"github.com/pdiddy/transcript-engine/internal/logging"
)

// maxFrameSize is the largest Opus frame: 120 ms at 48 kHz.
const maxFrameSize = 5760

// decodeOggOpusSafe decodes OGG/Opus in pure Go, turning decoder panics
// into errors.
func decodeOggOpusSafe(path string) (samples []float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.L().Warn("opus decoder panicked", "file", path, "panic", r)
			samples, err = nil, fmt.Errorf("opus decoder panic: %v", r)
		}
	}()
	return decodeOggOpus(path)
}

func decodeOggOpus(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	ogg, header, err := oggreader.NewWith(f)
	if err != nil {
		return nil, fmt.Errorf("parsing OGG container: %w", err)
	}
	rate := int(header.SampleRate)
	channels := max(int(header.Channels), 1)

	decoder := opus.NewDecoder()
	out := make([]byte, maxFrameSize*channels*2)

	var all []int16
	for {
		packets, _, err := ogg.ParseNextPage()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing OGG page: %w", err)
		}
		for _, pkt := range packets {
			if len(pkt) == 0 {
				continue
			}
			clear(out)
			if _, _, err := decoder.Decode(pkt, out); err != nil {
				logging.L().Debug("skipping opus packet", "len", len(pkt), "error", err)
				continue
			}
			n := packetSamples(pkt, rate) * channels * 2
			if n <= 0 || n > len(out) {
				all = append(all, trimPCM(out)...)
				continue
			}
			all = append(all, pcm16(out[:n])...)
		}
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("no audio decoded from %s", path)
	}

	mono := toMono(all, channels)
	res, err := resample(mono, rate, SampleRate)
	if err != nil {
		return nil, err
	}
	return int16ToFloat32(res), nil
}

// frameMicros holds the frame duration in microseconds for each of the 32
// TOC configurations: SILK, then Hybrid, then CELT.
var frameMicros = [32]int{
	10000, 20000, 40000, 60000,
	10000, 20000, 40000, 60000,
	10000, 20000, 40000, 60000,
	10000, 20000, 10000, 20000,
	2500, 5000, 10000, 20000,
	2500, 5000, 10000, 20000,
	2500, 5000, 10000, 20000,
	2500, 5000, 10000, 20000,
}

// packetSamples reads the packet's TOC byte and returns how many samples
// per channel it decodes to at the given rate, or 0 when the packet is
// malformed.
func packetSamples(pkt []byte, rate int) int {
	if len(pkt) == 0 || rate <= 0 {
		return 0
	}
	toc := pkt[0]
	frames := 1
	switch toc & 0x03 {
	case 1, 2:
		frames = 2
	case 3:
		if len(pkt) < 2 {
			return 0
		}
		frames = int(pkt[1] & 0x3F)
	}
	micros := frameMicros[toc>>3] * frames
	if frames == 0 || micros > 120000 {
		return 0
	}
	return micros * rate / 1000000
}

// pcm16 converts a little-endian 16-bit buffer to samples.
func pcm16(buf []byte) []int16 {
	out := make([]int16, len(buf)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(buf[2*i:]))
	}
	return out
}

// trimPCM converts a little-endian 16-bit buffer to samples, dropping the
// unused all-zero tail the decoder leaves after a short frame. It is only
// used when the packet's frame length cannot be read from its TOC byte.
func trimPCM(buf []byte) []int16 {
	end := len(buf) &^ 1
	for end >= 2 && buf[end-1] == 0 && buf[end-2] == 0 {
		end -= 2
	}
	return pcm16(buf[:end])
}
