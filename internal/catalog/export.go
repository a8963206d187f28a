// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"
)

// ExportTranscript is one transcript with its matching segments.
type ExportTranscript struct {
	ID                  string          `json:"id" yaml:"id"`
	AudioFile           string          `json:"audio_file" yaml:"audio_file"`
	CreatedAt           string          `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	Language            string          `json:"language" yaml:"language"`
	LanguageProbability *float64        `json:"language_probability,omitempty" yaml:"language_probability,omitempty"`
	DurationSeconds     float64         `json:"duration_seconds" yaml:"duration_seconds"`
	Segments            []ExportSegment `json:"segments" yaml:"segments"`
}

// ExportSegment is a segment with times in seconds.
type ExportSegment struct {
	Index int     `json:"index" yaml:"index"`
	Start float64 `json:"start" yaml:"start"`
	End   float64 `json:"end" yaml:"end"`
	Text  string  `json:"text" yaml:"text"`
}

const exportLimit = 1000000

// ExportYAML writes the catalog to CatalogDir/index/export.yaml. It takes
// the same filters as Search and returns the file path.
func (s *Store) ExportYAML(ctx context.Context, opts QueryOptions) (string, error) {
	entries, err := s.exportEntries(ctx, opts)
	if err != nil {
		return "", err
	}
	data, err := yaml.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("marshaling YAML: %w", err)
	}
	path := filepath.Join(s.catalogDir, indexDir, "export.yaml")
	return path, os.WriteFile(path, data, 0o644)
}

// ExportJSON writes the catalog to CatalogDir/index/export.json. It takes
// the same filters as Search and returns the file path.
func (s *Store) ExportJSON(ctx context.Context, opts QueryOptions) (string, error) {
	entries, err := s.exportEntries(ctx, opts)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling JSON: %w", err)
	}
	path := filepath.Join(s.catalogDir, indexDir, "export.json")
	return path, os.WriteFile(path, data, 0o644)
}

// exportEntries groups matching segments under their transcripts. With a
// full-text query, transcripts appear in order of their best match and only
// matching segments are listed. Without one, every transcript that passes
// the filters is exported with all of its segments, including transcripts
// that have none.
func (s *Store) exportEntries(ctx context.Context, opts QueryOptions) ([]ExportTranscript, error) {
	if opts.Query == "" {
		return s.exportAll(ctx, opts)
	}

	opts.MaxResults = exportLimit
	results, err := s.Search(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}

	entries := []ExportTranscript{}
	pos := make(map[string]int)
	for _, r := range results {
		i, ok := pos[r.TranscriptID]
		if !ok {
			e, err := s.transcriptEntry(ctx, r.TranscriptID)
			if err != nil {
				return nil, err
			}
			entries = append(entries, e)
			i = len(entries) - 1
			pos[r.TranscriptID] = i
		}
		entries[i].Segments = append(entries[i].Segments, exportSegment(r))
	}
	return entries, nil
}

// exportAll exports transcripts selected by the TranscriptID and Language
// filters, ordered by ID.
func (s *Store) exportAll(ctx context.Context, opts QueryOptions) ([]ExportTranscript, error) {
	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(`SELECT id FROM transcripts WHERE 1=1`)
	if opts.TranscriptID != "" {
		qb.WriteString(` AND id = ?`)
		args = append(args, opts.TranscriptID)
	}
	if opts.Language != "" {
		qb.WriteString(` AND language = ?`)
		args = append(args, opts.Language)
	}
	qb.WriteString(` ORDER BY id`)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}

	entries := []ExportTranscript{}
	for _, id := range ids {
		e, err := s.transcriptEntry(ctx, id)
		if err != nil {
			return nil, err
		}
		segs, err := s.Search(ctx, QueryOptions{TranscriptID: id, MaxResults: exportLimit})
		if err != nil {
			return nil, fmt.Errorf("loading segments of %s: %w", id, err)
		}
		for _, r := range segs {
			e.Segments = append(e.Segments, exportSegment(r))
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func exportSegment(r SearchResult) ExportSegment {
	return ExportSegment{
		Index: r.Index,
		Start: r.Start.Seconds(),
		End:   r.End.Seconds(),
		Text:  r.Text,
	}
}

func (s *Store) transcriptEntry(ctx context.Context, id string) (ExportTranscript, error) {
	var (
		e          ExportTranscript
		createdAt  sql.NullString
		lang       sql.NullString
		prob       sql.NullFloat64
		durationMS int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, audio_file, created_at, language, language_probability, duration_ms
		 FROM transcripts WHERE id = ?`, id,
	).Scan(&e.ID, &e.AudioFile, &createdAt, &lang, &prob, &durationMS)
	if err != nil {
		return e, fmt.Errorf("loading transcript %s: %w", id, err)
	}
	e.CreatedAt = createdAt.String
	e.Language = lang.String
	if prob.Valid {
		p := prob.Float64
		e.LanguageProbability = &p
	}
	e.DurationSeconds = float64(durationMS) / 1000
	e.Segments = []ExportSegment{}
	return e, nil
}
