package types

import (
	"strings"
	"time"
)

// FileStatus indicates the outcome of processing one input file in a batch.
type FileStatus string

const (
	StatusDone    FileStatus = "done"
	StatusSkipped FileStatus = "skipped"
	StatusFailed  FileStatus = "failed"
)

// Segment is a contiguous span of recognized speech with start and end
// offsets into the source audio.
type Segment struct {
	Start time.Duration `json:"start" yaml:"start"`
	End   time.Duration `json:"end" yaml:"end"`
	Text  string        `json:"text" yaml:"text"`
}

// Transcript is the result of recognizing one audio file.
type Transcript struct {
	// AudioFile is the base name of the source audio file.
	AudioFile string `json:"audio_file" yaml:"audio_file"`

	// CreatedAt is the local wall-clock time the transcript was produced.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// Language is the spoken language code, either configured or detected.
	Language string `json:"language" yaml:"language"`

	// LanguageProbability is the detection confidence. Nil when the backend
	// does not report one.
	LanguageProbability *float64 `json:"language_probability,omitempty" yaml:"language_probability,omitempty"`

	// Duration is the length of the source audio.
	Duration time.Duration `json:"duration" yaml:"duration"`

	Segments []Segment `json:"segments" yaml:"segments"`
}

// FullText returns the trimmed segment texts joined with single spaces.
func (t *Transcript) FullText() string {
	parts := make([]string, len(t.Segments))
	for i, s := range t.Segments {
		parts[i] = strings.TrimSpace(s.Text)
	}
	return strings.Join(parts, " ")
}

// Probability returns a pointer to p, for filling LanguageProbability.
func Probability(p float64) *float64 {
	return &p
}
