// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a transcript or segment is not in the
// catalog.
var ErrNotFound = errors.New("not found")

// QueryOptions holds parameters for catalog queries.
type QueryOptions struct {
	// Query is an FTS5 match expression over segment text.
	Query string

	// TranscriptID restricts results to one transcript.
	TranscriptID string

	// Language restricts results to transcripts in this language.
	Language string

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// IsEmpty reports whether the query has no search terms or filters.
func (q QueryOptions) IsEmpty() bool {
	return q.Query == "" && q.TranscriptID == "" && q.Language == ""
}

// SearchResult is a matching segment with its transcript metadata.
type SearchResult struct {
	TranscriptID string        `json:"transcript_id" yaml:"transcript_id"`
	AudioFile    string        `json:"audio_file" yaml:"audio_file"`
	Language     string        `json:"language" yaml:"language"`
	Index        int           `json:"index" yaml:"index"`
	Start        time.Duration `json:"start" yaml:"start"`
	End          time.Duration `json:"end" yaml:"end"`
	Text         string        `json:"text" yaml:"text"`
}

// Search returns segments matching opts. Full-text queries are ranked by
// relevance; filter-only queries are ordered by transcript and position.
func (s *Store) Search(ctx context.Context, opts QueryOptions) ([]SearchResult, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb     strings.Builder
		args   []any
		useFTS = opts.Query != ""
	)

	if useFTS {
		qb.WriteString(
			`SELECT sg.transcript_id, t.audio_file, t.language, sg.idx, sg.start_ms, sg.end_ms, sg.text
			FROM segments_fts
			JOIN segments sg ON sg.rowid = segments_fts.rowid
			JOIN transcripts t ON t.id = sg.transcript_id
			WHERE segments_fts MATCH ?`)
		args = append(args, opts.Query)
	} else {
		qb.WriteString(
			`SELECT sg.transcript_id, t.audio_file, t.language, sg.idx, sg.start_ms, sg.end_ms, sg.text
			FROM segments sg
			JOIN transcripts t ON t.id = sg.transcript_id
			WHERE 1=1`)
	}

	if opts.TranscriptID != "" {
		qb.WriteString(` AND sg.transcript_id = ?`)
		args = append(args, opts.TranscriptID)
	}
	if opts.Language != "" {
		qb.WriteString(` AND t.language = ?`)
		args = append(args, opts.Language)
	}

	if useFTS {
		qb.WriteString(` ORDER BY segments_fts.rank`)
	} else {
		qb.WriteString(` ORDER BY sg.transcript_id, sg.idx`)
	}
	qb.WriteString(` LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying catalog: %w", err)
	}
	defer rows.Close()

	return scanSegments(rows)
}

// Context returns the segment at index in a transcript together with up to
// window segments on each side, in order.
func (s *Store) Context(ctx context.Context, transcriptID string, index, window int) ([]SearchResult, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM segments WHERE transcript_id = ? AND idx = ?`, transcriptID, index,
	).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("segment %s#%d: %w", transcriptID, index, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up segment: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT sg.transcript_id, t.audio_file, t.language, sg.idx, sg.start_ms, sg.end_ms, sg.text
		FROM segments sg
		JOIN transcripts t ON t.id = sg.transcript_id
		WHERE sg.transcript_id = ? AND sg.idx BETWEEN ? AND ?
		ORDER BY sg.idx`,
		transcriptID, index-window, index+window,
	)
	if err != nil {
		return nil, fmt.Errorf("querying context: %w", err)
	}
	defer rows.Close()

	return scanSegments(rows)
}

// scanSegments reads rows selected with the segment column list used above.
func scanSegments(rows *sql.Rows) ([]SearchResult, error) {
	var results []SearchResult
	for rows.Next() {
		var (
			r              SearchResult
			lang           sql.NullString
			startMS, endMS int64
		)
		if err := rows.Scan(&r.TranscriptID, &r.AudioFile, &lang, &r.Index, &startMS, &endMS, &r.Text); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		r.Language = lang.String
		r.Start = time.Duration(startMS) * time.Millisecond
		r.End = time.Duration(endMS) * time.Millisecond
		results = append(results, r)
	}
	return results, rows.Err()
}
