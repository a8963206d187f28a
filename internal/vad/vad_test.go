// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package vad

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// signal builds audio from alternating parts: a positive duration is a
// 440 Hz tone at amplitude 0.5, a negative duration is silence.
func signal(parts ...time.Duration) []float32 {
	var out []float32
	for _, p := range parts {
		n := samplesFor(p)
		if p < 0 {
			out = append(out, make([]float32, -n)...)
			continue
		}
		for i := 0; i < n; i++ {
			out = append(out, float32(0.5*math.Sin(2*math.Pi*440*float64(i)/SampleRate)))
		}
	}
	return out
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func toMS(samples int) int { return samples * 1000 / SampleRate }

func TestDetect(t *testing.T) {
	p := DefaultParams()

	tests := []struct {
		name      string
		audio     []float32
		wantSpans int
	}{
		{name: "silence only", audio: signal(-ms(2000)), wantSpans: 0},
		{name: "empty input", audio: nil, wantSpans: 0},
		{name: "single burst", audio: signal(-ms(1000), ms(1200), -ms(1000)), wantSpans: 1},
		{name: "short pause is bridged", audio: signal(-ms(1000), ms(900), -ms(300), ms(900), -ms(1000)), wantSpans: 1},
		{name: "long pause splits", audio: signal(-ms(1000), ms(900), -ms(1500), ms(900), -ms(1000)), wantSpans: 2},
		{name: "blip shorter than min speech is dropped", audio: signal(-ms(1000), ms(90), -ms(1000)), wantSpans: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spans := Detect(tt.audio, p)
			assert.Len(t, spans, tt.wantSpans)
			for i, s := range spans {
				assert.GreaterOrEqual(t, s.Start, 0)
				assert.LessOrEqual(t, s.End, len(tt.audio))
				assert.Less(t, s.Start, s.End)
				if i > 0 {
					assert.Greater(t, s.Start, spans[i-1].End, "spans must not overlap")
				}
			}
		})
	}
}

func TestDetectBoundsAndPadding(t *testing.T) {
	p := DefaultParams()
	audio := signal(-ms(1000), ms(1200), -ms(1000))

	spans := Detect(audio, p)
	require.Len(t, spans, 1)

	// Speech occupies 1000-2200 ms; padding widens it by 200 ms each side,
	// with frame quantization allowing one 30 ms frame of slack.
	assert.InDelta(t, 800, toMS(spans[0].Start), 30)
	assert.InDelta(t, 2400, toMS(spans[0].End), 30)
}

func TestDetectPaddingClampsToAudio(t *testing.T) {
	audio := signal(ms(600))
	spans := Detect(audio, DefaultParams())
	require.Len(t, spans, 1)
	assert.Equal(t, 0, spans[0].Start)
	assert.Equal(t, len(audio), spans[0].End)
}

func TestCollectAndOriginal(t *testing.T) {
	audio := make([]float32, 5*SampleRate)
	spans := []Span{
		{Start: 1 * SampleRate, End: 2 * SampleRate},
		{Start: 3 * SampleRate, End: 4 * SampleRate},
	}

	collected, m := Collect(audio, spans)
	assert.Len(t, collected, 2*SampleRate)

	tests := []struct {
		in   time.Duration
		want time.Duration
	}{
		{0, time.Second},
		{500 * time.Millisecond, 1500 * time.Millisecond},
		{time.Second, 3 * time.Second},
		{1250 * time.Millisecond, 3250 * time.Millisecond},
		{2 * time.Second, 4 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, m.Original(tt.in), "Original(%v)", tt.in)
	}
}

func TestOriginalEndAtBoundary(t *testing.T) {
	spans := []Span{
		{Start: 1 * SampleRate, End: 2 * SampleRate},
		{Start: 3 * SampleRate, End: 4 * SampleRate},
	}
	_, m := Collect(make([]float32, 5*SampleRate), spans)

	assert.Equal(t, 3*time.Second, m.Original(time.Second))
	assert.Equal(t, 2*time.Second, m.OriginalEnd(time.Second))
	assert.Equal(t, 3500*time.Millisecond, m.OriginalEnd(1500*time.Millisecond))
	assert.Equal(t, time.Second, m.OriginalEnd(0))
}

func TestOriginalWithoutChunks(t *testing.T) {
	var m *TimestampMap
	assert.Equal(t, 3*time.Second, m.Original(3*time.Second))
	assert.Equal(t, 3*time.Second, m.OriginalEnd(3*time.Second))

	_, empty := Collect(nil, nil)
	assert.Equal(t, time.Second, empty.Original(time.Second))
}
