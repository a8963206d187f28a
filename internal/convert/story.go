// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"math"
	"strings"

	"github.com/pdiddy/transcript-engine/internal/transcript"
)

// Kind identifies a story element.
type Kind int

const (
	KindParagraph Kind = iota
	KindSpacer
	KindPageBreak
)

// Style names a paragraph style in a StyleSheet.
type Style string

const (
	StyleTitle    Style = "title"
	StyleHeader   Style = "header"
	StyleBody     Style = "body"
	StyleMetadata Style = "metadata"
)

// Element is one entry of a Story: a styled paragraph, vertical space, or
// a page break.
type Element struct {
	Kind  Kind
	Style Style
	// Text is plain text; escaping happens at render time.
	Text string
	Bold bool
	// Height is the spacer height in inches.
	Height float64
}

// Story is the ordered list of elements a document is laid out from.
type Story []Element

// Spacer heights in inches.
const (
	titleGap   = 0.2
	blankGap   = 0.1
	majorGap   = 0.15
	minorGap   = 0.1
	sectionGap = 0.2
)

var (
	majorMarker = strings.Repeat("=", 20)
	minorMarker = strings.Repeat("-", 20)
)

func paragraph(s Style, text string) Element {
	return Element{Kind: KindParagraph, Style: s, Text: text}
}

func spacer(h float64) Element {
	return Element{Kind: KindSpacer, Height: h}
}

// BuildStory classifies each line of a transcript and returns the styled
// story. The first matching rule wins:
//
//	blank line                       spacer, only inside the two transcript sections
//	"Transcription of:"              dropped; the title already names the file
//	"Date:" "Language:" "Duration:"  metadata paragraph
//	contains 20 "="                  spacer
//	"TIMESTAMPED TRANSCRIPTION:"     spacer and header
//	contains 20 "-"                  spacer
//	"FULL TRANSCRIPTION..."          page break and header
//	"[" ... "s ->"                   bold body paragraph
//	anything else                    body paragraph
//
// Lines are trimmed before classification.
func BuildStory(name, content string) Story {
	story := Story{
		paragraph(StyleTitle, "Transcription: "+name),
		spacer(titleGap),
	}

	inTimestamped, inFullText := false, false
	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)

		switch {
		case line == "":
			if inTimestamped || inFullText {
				story = append(story, spacer(blankGap))
			}
		case strings.HasPrefix(line, transcript.PrefixSource):
		case strings.HasPrefix(line, transcript.PrefixDate),
			strings.HasPrefix(line, transcript.PrefixLanguage),
			strings.HasPrefix(line, transcript.PrefixDuration):
			story = append(story, paragraph(StyleMetadata, line))
		case strings.Contains(line, majorMarker):
			story = append(story, spacer(majorGap))
		case line == transcript.HeadingTimestamps:
			story = append(story, spacer(sectionGap), paragraph(StyleHeader, line))
			inTimestamped, inFullText = true, false
		case strings.Contains(line, minorMarker):
			story = append(story, spacer(minorGap))
		case strings.HasPrefix(line, "FULL TRANSCRIPTION"):
			story = append(story, Element{Kind: KindPageBreak}, paragraph(StyleHeader, line))
			inTimestamped, inFullText = false, true
		case strings.HasPrefix(line, "[") && strings.Contains(line, "s ->"):
			p := paragraph(StyleBody, line)
			p.Bold = true
			story = append(story, p)
		default:
			story = append(story, paragraph(StyleBody, line))
		}
	}
	return story
}

// Alignment is a paragraph's horizontal alignment.
type Alignment string

const (
	AlignLeft   Alignment = "left"
	AlignCenter Alignment = "center"
)

// ParagraphStyle describes how a paragraph is set. Sizes are in points.
type ParagraphStyle struct {
	FontName    string
	FontSize    float64
	Leading     float64
	Color       string
	Bold        bool
	Align       Alignment
	SpaceBefore float64
	SpaceAfter  float64
}

// StyleSheet maps each Style to its ParagraphStyle.
type StyleSheet map[Style]ParagraphStyle

// DefaultStyleSheet returns the transcript document styles. fontSize and
// fontName apply to body text only.
func DefaultStyleSheet(fontSize float64, fontName string) StyleSheet {
	return StyleSheet{
		StyleTitle: {
			FontName: "Helvetica", FontSize: 16, Leading: 22, Color: "#2C3E50",
			Bold: true, Align: AlignCenter, SpaceAfter: 12,
		},
		StyleHeader: {
			FontName: "Helvetica", FontSize: 12, Leading: 18, Color: "#34495E",
			Bold: true, Align: AlignLeft, SpaceBefore: 12, SpaceAfter: 8,
		},
		StyleBody: {
			FontName: fontName, FontSize: fontSize, Leading: math.Round(fontSize*140) / 100, Color: "#000000",
			Align: AlignLeft, SpaceBefore: 6, SpaceAfter: 6,
		},
		StyleMetadata: {
			FontName: "Helvetica", FontSize: 9, Leading: 12, Color: "#7F8C8D",
			Align: AlignLeft, SpaceAfter: 4,
		},
	}
}
