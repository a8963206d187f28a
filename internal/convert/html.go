// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"fmt"
	"html/template"
	"sort"
	"strings"

	"github.com/pdiddy/transcript-engine/pkg/types"
)

// PageSettings is the paper size and margin of the document, in inches.
type PageSettings struct {
	Width  float64
	Height float64
	Margin float64
}

const pageMargin = 0.75

// PageSettingsFor returns the settings for a named paper size.
func PageSettingsFor(size types.PageSize) (PageSettings, error) {
	switch size {
	case types.PageLetter:
		return PageSettings{Width: 8.5, Height: 11, Margin: pageMargin}, nil
	case types.PageA4:
		return PageSettings{Width: 8.27, Height: 11.69, Margin: pageMargin}, nil
	}
	return PageSettings{}, fmt.Errorf("%w: %q (want letter or a4)", types.ErrInvalidPageSize, size)
}

var documentTemplate = template.Must(template.New("document").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
@page { size: {{.Page.Width}}in {{.Page.Height}}in; margin: {{.Page.Margin}}in; }
html, body { margin: 0; padding: 0; }
p { margin: 0; overflow-wrap: anywhere; }
.spacer { display: block; }
.page-break { break-before: page; page-break-before: always; height: 0; }
{{.CSS}}</style>
</head>
<body>
{{range .Elements}}{{if eq .Kind 0}}<p class="{{.Style}}">{{if .Bold}}<b>{{.Text}}</b>{{else}}{{.Text}}{{end}}</p>
{{else if eq .Kind 1}}<div class="spacer" style="height: {{.Height}}in"></div>
{{else}}<div class="page-break"></div>
{{end}}{{end}}</body>
</html>
`))

// RenderHTML lays out story as a standalone HTML document. Paragraph text
// is escaped.
func RenderHTML(title string, story Story, styles StyleSheet, page PageSettings) (string, error) {
	var b strings.Builder
	err := documentTemplate.Execute(&b, struct {
		Title    string
		Page     PageSettings
		CSS      template.CSS
		Elements Story
	}{
		Title:    title,
		Page:     page,
		CSS:      template.CSS(styleRules(styles)),
		Elements: story,
	})
	if err != nil {
		return "", fmt.Errorf("rendering HTML: %w", err)
	}
	return b.String(), nil
}

// styleRules renders one CSS class per paragraph style.
func styleRules(styles StyleSheet) string {
	names := make([]string, 0, len(styles))
	for s := range styles {
		names = append(names, string(s))
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		ps := styles[Style(name)]
		weight := "normal"
		if ps.Bold {
			weight = "bold"
		}
		fmt.Fprintf(&b, ".%s { font-family: %s; font-size: %gpt; line-height: %gpt; color: %s; font-weight: %s; text-align: %s; margin-top: %gpt; margin-bottom: %gpt; }\n",
			cssIdent(name), fontFamily(ps.FontName), ps.FontSize, ps.Leading, cssColor(ps.Color),
			weight, ps.Align, ps.SpaceBefore, ps.SpaceAfter)
	}
	return b.String()
}

// fontFamily maps the standard PDF font names to CSS font stacks. Other
// names are passed through quoted.
func fontFamily(name string) string {
	base := strings.SplitN(name, "-", 2)[0]
	switch strings.ToLower(base) {
	case "helvetica", "arial", "":
		return `Helvetica, Arial, "Liberation Sans", sans-serif`
	case "times", "times roman", "timesnewroman":
		return `"Times New Roman", Times, "Liberation Serif", serif`
	case "courier":
		return `"Courier New", Courier, "Liberation Mono", monospace`
	}
	return `"` + sanitizeCSS(name) + `", sans-serif`
}

func cssColor(c string) string {
	if c == "" {
		return "#000000"
	}
	return sanitizeCSS(c)
}

func cssIdent(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, s)
}

func sanitizeCSS(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '"', '\'', ';', '{', '}', '<', '>', '\\':
			return -1
		}
		return r
	}, s)
}
