// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package transcript

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/transcript-engine/pkg/types"
)

// ErrMalformed is returned when input does not follow the transcript format.
var ErrMalformed = errors.New("malformed transcript")

var (
	timestampRe = regexp.MustCompile(`^\[(\d+(?:\.\d+)?)s -> (\d+(?:\.\d+)?)s\]$`)
	languageRe  = regexp.MustCompile(`^Language:\s*(\S*)(?:\s+\(probability:\s*([0-9.]+)\))?$`)
	durationRe  = regexp.MustCompile(`^Duration:\s*(\d+(?:\.\d+)?) seconds$`)
)

type parseState int

const (
	stateHeader parseState = iota
	stateTimestamps
	stateFullText
)

// Parse reads a transcript written by Write. Times are restored with the
// two-decimal precision of the text format. CRLF line endings are accepted.
func Parse(r io.Reader) (*types.Transcript, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var (
		t       types.Transcript
		state   = stateHeader
		pending *types.Segment
		lineNo  int
		sawRule bool
	)

	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")

		switch state {
		case stateHeader:
			trimmed := strings.TrimSpace(line)
			switch {
			case trimmed == "":
			case strings.HasPrefix(trimmed, PrefixSource):
				t.AudioFile = strings.TrimSpace(strings.TrimPrefix(trimmed, PrefixSource))
			case strings.HasPrefix(trimmed, PrefixDate):
				raw := strings.TrimSpace(strings.TrimPrefix(trimmed, PrefixDate))
				ts, err := time.ParseInLocation(DateLayout, raw, time.Local)
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: bad date %q: %v", ErrMalformed, lineNo, raw, err)
				}
				t.CreatedAt = ts
			case strings.HasPrefix(trimmed, PrefixLanguage):
				m := languageRe.FindStringSubmatch(trimmed)
				if m == nil {
					return nil, fmt.Errorf("%w: line %d: bad language line %q", ErrMalformed, lineNo, trimmed)
				}
				t.Language = m[1]
				if m[2] != "" {
					p, err := strconv.ParseFloat(m[2], 64)
					if err != nil {
						return nil, fmt.Errorf("%w: line %d: bad probability %q", ErrMalformed, lineNo, m[2])
					}
					t.LanguageProbability = types.Probability(p)
				}
			case strings.HasPrefix(trimmed, PrefixDuration):
				m := durationRe.FindStringSubmatch(trimmed)
				if m == nil {
					return nil, fmt.Errorf("%w: line %d: bad duration line %q", ErrMalformed, lineNo, trimmed)
				}
				d, err := parseSeconds(m[1])
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, lineNo, err)
				}
				t.Duration = d
			case trimmed == MajorRule:
				sawRule = true
			case trimmed == HeadingTimestamps:
				if !sawRule {
					return nil, fmt.Errorf("%w: line %d: section heading before header rule", ErrMalformed, lineNo)
				}
				state = stateTimestamps
			default:
				return nil, fmt.Errorf("%w: line %d: unexpected header line %q", ErrMalformed, lineNo, trimmed)
			}

		case stateTimestamps:
			if pending != nil {
				pending.Text = strings.TrimSpace(line)
				t.Segments = append(t.Segments, *pending)
				pending = nil
				continue
			}
			trimmed := strings.TrimSpace(line)
			switch {
			case trimmed == "" || trimmed == MinorRule || trimmed == MajorRule:
			case trimmed == HeadingFullText:
				state = stateFullText
			default:
				m := timestampRe.FindStringSubmatch(trimmed)
				if m == nil {
					return nil, fmt.Errorf("%w: line %d: expected timestamp, got %q", ErrMalformed, lineNo, trimmed)
				}
				start, err := parseSeconds(m[1])
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, lineNo, err)
				}
				end, err := parseSeconds(m[2])
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, lineNo, err)
				}
				pending = &types.Segment{Start: start, End: end}
			}

		case stateFullText:
			// The full text is derived from the segments.
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading transcript: %w", err)
	}

	if pending != nil {
		t.Segments = append(t.Segments, *pending)
	}
	if state == stateHeader {
		return nil, fmt.Errorf("%w: missing %q section", ErrMalformed, HeadingTimestamps)
	}
	if t.AudioFile == "" {
		return nil, fmt.Errorf("%w: missing %q line", ErrMalformed, PrefixSource)
	}

	return &t, nil
}

// parseSeconds converts a decimal seconds string to a Duration rounded to
// the millisecond.
func parseSeconds(s string) (time.Duration, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad seconds value %q", s)
	}
	ms := math.Round(f * 1000)
	return time.Duration(ms) * time.Millisecond, nil
}
