// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package transcript

import (
	"fmt"
	"io"
	"strings"

	"github.com/asticode/go-astisub"

	"github.com/pdiddy/transcript-engine/pkg/types"
)

// Subtitles converts the transcript segments into subtitle items. Segments
// with empty text are dropped.
func Subtitles(t *types.Transcript) *astisub.Subtitles {
	subs := astisub.NewSubtitles()
	for _, s := range t.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		subs.Items = append(subs.Items, &astisub.Item{
			StartAt: s.Start,
			EndAt:   s.End,
			Lines:   []astisub.Line{{Items: []astisub.LineItem{{Text: text}}}},
		})
	}
	return subs
}

// WriteSubtitles writes the transcript segments to w in the given format.
// A transcript without speech yields an empty SRT file and a VTT file with
// only the header.
func WriteSubtitles(w io.Writer, t *types.Transcript, format types.SubtitleFormat) error {
	subs := Subtitles(t)
	switch format {
	case types.SubtitleSRT:
		if len(subs.Items) == 0 {
			return nil
		}
		return subs.WriteToSRT(w)
	case types.SubtitleVTT:
		if len(subs.Items) == 0 {
			_, err := io.WriteString(w, "WEBVTT\n")
			return err
		}
		return subs.WriteToWebVTT(w)
	default:
		return fmt.Errorf("%w: %q", types.ErrInvalidSubtitle, format)
	}
}
