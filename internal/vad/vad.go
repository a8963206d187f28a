// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package vad finds speech regions in 16 kHz mono audio so silence can be
// removed before recognition. Detection is energy based: each 30 ms frame is
// compared against a threshold derived from the recording's own noise floor.
package vad

import (
	"math"
	"slices"
	"time"
)

// SampleRate is the sample rate the detector expects.
const SampleRate = 16000

// Params tunes speech detection.
type Params struct {
	// MinSilence is the shortest pause that separates two speech regions.
	MinSilence time.Duration

	// MinSpeech drops regions shorter than this.
	MinSpeech time.Duration

	// SpeechPad is added before and after each region.
	SpeechPad time.Duration

	// Frame is the analysis window length.
	Frame time.Duration

	// Margin is how far above the noise floor (in dB) a frame must be to
	// count as speech.
	Margin float64

	// FloorDB is the lowest threshold used, in dBFS. It keeps digital
	// silence from turning the faintest hiss into speech.
	FloorDB float64

	// CeilingDB is the highest threshold used, in dBFS, so recordings with
	// no pauses at all are still detected as speech.
	CeilingDB float64
}

// DefaultParams returns detection settings with a 500 ms minimum silence.
func DefaultParams() Params {
	return Params{
		MinSilence: 500 * time.Millisecond,
		MinSpeech:  250 * time.Millisecond,
		SpeechPad:  200 * time.Millisecond,
		Frame:      30 * time.Millisecond,
		Margin:     12,
		FloorDB:    -50,
		CeilingDB:  -30,
	}
}

// Span is a half-open range of sample indexes [Start, End).
type Span struct {
	Start int
	End   int
}

// Len returns the number of samples in the span.
func (s Span) Len() int { return s.End - s.Start }

// Detect returns the speech regions of samples, in order and non-overlapping.
func Detect(samples []float32, p Params) []Span {
	frameLen := samplesFor(p.Frame)
	if frameLen <= 0 || len(samples) == 0 {
		return nil
	}

	nFrames := (len(samples) + frameLen - 1) / frameLen
	levels := make([]float64, nFrames)
	for i := range levels {
		start := i * frameLen
		end := min(start+frameLen, len(samples))
		levels[i] = frameDB(samples[start:end])
	}

	threshold := min(max(noiseFloor(levels)+p.Margin, p.FloorDB), p.CeilingDB)

	var (
		spans       []Span
		inSpeech    bool
		speechStart int
		silentRun   int
	)
	minSilenceFrames := max(1, ceilDiv(samplesFor(p.MinSilence), frameLen))

	for i, lvl := range levels {
		if lvl >= threshold {
			if !inSpeech {
				inSpeech = true
				speechStart = i
			}
			silentRun = 0
			continue
		}
		if !inSpeech {
			continue
		}
		silentRun++
		if silentRun >= minSilenceFrames {
			spans = append(spans, Span{Start: speechStart * frameLen, End: (i - silentRun + 1) * frameLen})
			inSpeech = false
			silentRun = 0
		}
	}
	if inSpeech {
		spans = append(spans, Span{Start: speechStart * frameLen, End: (nFrames - silentRun) * frameLen})
	}

	minSpeech := samplesFor(p.MinSpeech)
	pad := samplesFor(p.SpeechPad)
	out := spans[:0]
	for _, s := range spans {
		s.End = min(s.End, len(samples))
		if s.Len() < minSpeech {
			continue
		}
		s.Start = max(0, s.Start-pad)
		s.End = min(len(samples), s.End+pad)
		if n := len(out); n > 0 && s.Start <= out[n-1].End {
			out[n-1].End = max(out[n-1].End, s.End)
			continue
		}
		out = append(out, s)
	}
	return out
}

// frameDB returns the RMS level of frame in dBFS.
func frameDB(frame []float32) float64 {
	var sum float64
	for _, v := range frame {
		sum += float64(v) * float64(v)
	}
	rms := math.Sqrt(sum / float64(len(frame)))
	if rms < 1e-10 {
		return -200
	}
	return 20 * math.Log10(rms)
}

// noiseFloor estimates the background level as the 10th percentile of
// frame levels.
func noiseFloor(levels []float64) float64 {
	sorted := slices.Clone(levels)
	slices.Sort(sorted)
	return sorted[len(sorted)/10]
}

func samplesFor(d time.Duration) int {
	return int(d * SampleRate / time.Second)
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// Collect concatenates the samples covered by spans and returns a map from
// positions in the collected audio back to the original timeline.
func Collect(samples []float32, spans []Span) ([]float32, *TimestampMap) {
	total := 0
	for _, s := range spans {
		total += s.Len()
	}
	out := make([]float32, 0, total)
	m := &TimestampMap{}
	for _, s := range spans {
		m.chunks = append(m.chunks, chunk{collected: len(out), original: s.Start})
		out = append(out, samples[s.Start:s.End]...)
	}
	return out, m
}

type chunk struct {
	collected int
	original  int
}

// TimestampMap restores timestamps in collected audio to the original audio.
type TimestampMap struct {
	chunks []chunk
}

// Original maps a time offset in the collected audio to the corresponding
// offset in the original audio. Offsets on a chunk boundary map to the start
// of the later chunk; offsets past the end map relative to the last chunk.
func (m *TimestampMap) Original(t time.Duration) time.Duration {
	return m.lookup(t, false)
}

// OriginalEnd is Original for the end of a span: offsets on a chunk
// boundary map to the end of the earlier chunk.
func (m *TimestampMap) OriginalEnd(t time.Duration) time.Duration {
	return m.lookup(t, true)
}

func (m *TimestampMap) lookup(t time.Duration, end bool) time.Duration {
	if m == nil || len(m.chunks) == 0 {
		return t
	}
	pos := int(t * SampleRate / time.Second)
	c := m.chunks[0]
	for i, ch := range m.chunks {
		if ch.collected > pos || (end && i > 0 && ch.collected == pos) {
			break
		}
		c = ch
	}
	orig := c.original + (pos - c.collected)
	return time.Duration(orig) * time.Second / SampleRate
}
