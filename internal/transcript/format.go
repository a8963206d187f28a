// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package transcript reads and writes the plain-text transcript format that
// couples the transcription and PDF conversion stages.
//
// A transcript has three parts separated by rules of 80 characters: a
// metadata header, a TIMESTAMPED TRANSCRIPTION section with one
// "[start s -> end s]" line and one text line per segment, and a FULL
// TRANSCRIPTION section holding all segment texts joined by spaces.
package transcript

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pdiddy/transcript-engine/pkg/types"
)

// DateLayout is the layout of the Date: header line.
const DateLayout = "2006-01-02 15:04:05"

// Section headings and header prefixes.
const (
	PrefixSource      = "Transcription of:"
	PrefixDate        = "Date:"
	PrefixLanguage    = "Language:"
	PrefixDuration    = "Duration:"
	HeadingTimestamps = "TIMESTAMPED TRANSCRIPTION:"
	HeadingFullText   = "FULL TRANSCRIPTION (no timestamps):"
)

const ruleWidth = 80

var (
	// MajorRule separates the header and the full-text section.
	MajorRule = strings.Repeat("=", ruleWidth)

	// MinorRule follows the timestamped section heading.
	MinorRule = strings.Repeat("-", ruleWidth)
)

// Write renders t in the transcript text format. The output has no
// trailing newline after the full text.
func Write(w io.Writer, t *types.Transcript) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "%s %s\n", PrefixSource, t.AudioFile)
	fmt.Fprintf(bw, "%s %s\n", PrefixDate, t.CreatedAt.Format(DateLayout))
	if t.LanguageProbability != nil {
		fmt.Fprintf(bw, "%s %s (probability: %.2f)\n", PrefixLanguage, t.Language, *t.LanguageProbability)
	} else {
		fmt.Fprintf(bw, "%s %s\n", PrefixLanguage, t.Language)
	}
	fmt.Fprintf(bw, "%s %s seconds\n", PrefixDuration, seconds(t.Duration))
	fmt.Fprintf(bw, "%s\n\n", MajorRule)

	fmt.Fprintf(bw, "%s\n", HeadingTimestamps)
	fmt.Fprintf(bw, "%s\n\n", MinorRule)
	for _, s := range t.Segments {
		fmt.Fprintf(bw, "%s\n%s\n\n", TimestampLine(s.Start, s.End), strings.TrimSpace(s.Text))
	}

	fmt.Fprintf(bw, "\n%s\n", MajorRule)
	fmt.Fprintf(bw, "%s\n", HeadingFullText)
	fmt.Fprintf(bw, "%s\n\n", MajorRule)
	bw.WriteString(t.FullText())

	return bw.Flush()
}

// Format returns t rendered in the transcript text format.
func Format(t *types.Transcript) string {
	var b strings.Builder
	Write(&b, t)
	return b.String()
}

// TimestampLine formats a segment's time span as "[1.23s -> 4.56s]".
func TimestampLine(start, end time.Duration) string {
	return fmt.Sprintf("[%ss -> %ss]", seconds(start), seconds(end))
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.2f", d.Seconds())
}
