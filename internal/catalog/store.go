// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog indexes transcripts into SQLite so their segments can be
// searched with FTS5 and exported as YAML or JSON. Ingest is incremental:
// a transcript is re-read only when its file modification time changes.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/transcript-engine/internal/logging"
	"github.com/pdiddy/transcript-engine/internal/transcript"
	"github.com/pdiddy/transcript-engine/pkg/types"
)

const (
	indexDir = "index"
	dbFile   = "transcripts.db"
)

// Store manages the catalog database.
type Store struct {
	db             *sql.DB
	catalogDir     string
	transcriptsDir string
	maxResults     int
}

// NewStore opens or creates the catalog at CatalogDir/index/transcripts.db
// and creates the schema if it does not exist.
func NewStore(cfg types.CatalogConfig) (*Store, error) {
	dbDir := filepath.Join(cfg.CatalogDir, indexDir)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(dbDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	s := &Store{
		db:             db,
		catalogDir:     cfg.CatalogDir,
		transcriptsDir: cfg.TranscriptsDir,
		maxResults:     maxResults,
	}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS transcripts (
			id TEXT PRIMARY KEY,
			audio_file TEXT NOT NULL,
			created_at TEXT,
			language TEXT,
			language_probability REAL,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			source_path TEXT NOT NULL,
			run_id TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS segments (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			transcript_id TEXT NOT NULL REFERENCES transcripts(id) ON DELETE CASCADE,
			idx INTEGER NOT NULL,
			start_ms INTEGER NOT NULL,
			end_ms INTEGER NOT NULL,
			text TEXT NOT NULL,
			UNIQUE(transcript_id, idx)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_segments_transcript ON segments(transcript_id)`,
		`CREATE INDEX IF NOT EXISTS idx_transcripts_language ON transcripts(language)`,
		`CREATE TABLE IF NOT EXISTS indexing_status (
			transcript_id TEXT PRIMARY KEY,
			file_mod_time TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS ingest_runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			indexed INTEGER NOT NULL DEFAULT 0,
			updated INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0,
			removed INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='segments_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists > 0 {
		return nil
	}

	ftsStatements := []string{
		`CREATE VIRTUAL TABLE segments_fts USING fts5(text, content=segments, content_rowid=rowid)`,
		`CREATE TRIGGER segments_ai AFTER INSERT ON segments BEGIN
			INSERT INTO segments_fts(rowid, text) VALUES (new.rowid, new.text);
		END`,
		`CREATE TRIGGER segments_ad AFTER DELETE ON segments BEGIN
			INSERT INTO segments_fts(segments_fts, rowid, text) VALUES('delete', old.rowid, old.text);
		END`,
		`CREATE TRIGGER segments_au AFTER UPDATE ON segments BEGIN
			INSERT INTO segments_fts(segments_fts, rowid, text) VALUES('delete', old.rowid, old.text);
			INSERT INTO segments_fts(rowid, text) VALUES (new.rowid, new.text);
		END`,
	}
	for _, stmt := range ftsStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating FTS infrastructure: %w", err)
		}
	}
	return nil
}

// IngestSummary holds counts from one ingest run.
type IngestSummary struct {
	RunID   string
	Indexed int
	Updated int
	Skipped int
	Removed int
	Failed  int
}

// Total returns the number of transcript files processed. Removed entries
// had no file and are not counted.
func (s IngestSummary) Total() int {
	return s.Indexed + s.Updated + s.Skipped + s.Failed
}

// HasFailures reports whether any transcript failed to index.
func (s IngestSummary) HasFailures() bool {
	return s.Failed > 0
}

// Ingest indexes the transcripts in the transcripts directory. New files
// are indexed, files with a changed modification time are re-indexed,
// unchanged files are skipped, and catalog entries whose file is gone are
// removed. Each run is recorded in ingest_runs under a fresh UUID. When
// anything changed, export.yaml is rewritten.
func (s *Store) Ingest(ctx context.Context, w io.Writer) (IngestSummary, error) {
	files, err := transcript.List(s.transcriptsDir)
	if err != nil {
		return IngestSummary{}, fmt.Errorf("listing transcripts: %w", err)
	}

	summary := IngestSummary{RunID: uuid.NewString()}
	started := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO ingest_runs (id, started_at) VALUES (?, ?)`, summary.RunID, started,
	); err != nil {
		return summary, fmt.Errorf("recording ingest run: %w", err)
	}
	log := logging.L().With("run", summary.RunID)

	present := make(map[string]bool, len(files))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		id := transcriptID(path)
		present[id] = true

		info, err := os.Stat(path)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", id, err)
			summary.Failed++
			continue
		}
		modTime := info.ModTime().UTC().Format(time.RFC3339Nano)

		var storedModTime string
		err = s.db.QueryRowContext(ctx,
			`SELECT file_mod_time FROM indexing_status WHERE transcript_id = ?`, id,
		).Scan(&storedModTime)
		if err == nil && storedModTime == modTime {
			fmt.Fprintf(w, "skipped %s\n", id)
			summary.Skipped++
			continue
		}
		isUpdate := err == nil

		t, err := parseFile(path)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", id, err)
			summary.Failed++
			continue
		}

		if err := s.ingestTranscript(ctx, id, path, t, modTime, summary.RunID); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", id, err)
			summary.Failed++
			continue
		}

		if isUpdate {
			fmt.Fprintf(w, "updated %s (%d segments)\n", id, len(t.Segments))
			summary.Updated++
		} else {
			fmt.Fprintf(w, "indexing %s (%d segments)\n", id, len(t.Segments))
			summary.Indexed++
		}
	}

	removed, err := s.removeMissing(ctx, present)
	if err != nil {
		return summary, err
	}
	for _, id := range removed {
		fmt.Fprintf(w, "removed %s\n", id)
	}
	summary.Removed = len(removed)

	fmt.Fprintf(w, "\nindexed: %d, updated: %d, skipped: %d, removed: %d, failed: %d\n",
		summary.Indexed, summary.Updated, summary.Skipped, summary.Removed, summary.Failed)

	if _, err := s.db.ExecContext(ctx,
		`UPDATE ingest_runs SET finished_at = ?, indexed = ?, updated = ?, skipped = ?, removed = ?, failed = ?
		 WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		summary.Indexed, summary.Updated, summary.Skipped, summary.Removed, summary.Failed,
		summary.RunID,
	); err != nil {
		log.Warn("could not finish ingest run record", "error", err)
	}

	if summary.Indexed > 0 || summary.Updated > 0 || summary.Removed > 0 {
		if _, err := s.ExportYAML(ctx, QueryOptions{}); err != nil {
			fmt.Fprintf(w, "warning: export.yaml write failed: %v\n", err)
		}
	}
	log.Debug("ingest finished", "total", summary.Total())
	return summary, nil
}

func (s *Store) ingestTranscript(ctx context.Context, id, path string, t *types.Transcript, modTime, runID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM segments WHERE transcript_id = ?`, id); err != nil {
		return fmt.Errorf("deleting old segments: %w", err)
	}

	var prob sql.NullFloat64
	if t.LanguageProbability != nil {
		prob = sql.NullFloat64{Float64: *t.LanguageProbability, Valid: true}
	}
	createdAt := ""
	if !t.CreatedAt.IsZero() {
		createdAt = t.CreatedAt.Format(transcript.DateLayout)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO transcripts (id, audio_file, created_at, language, language_probability, duration_ms, source_path, run_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			audio_file=excluded.audio_file, created_at=excluded.created_at,
			language=excluded.language, language_probability=excluded.language_probability,
			duration_ms=excluded.duration_ms, source_path=excluded.source_path, run_id=excluded.run_id`,
		id, t.AudioFile, createdAt, t.Language, prob, t.Duration.Milliseconds(), path, runID,
	)
	if err != nil {
		return fmt.Errorf("upserting transcript: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO segments (transcript_id, idx, start_ms, end_ms, text) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, seg := range t.Segments {
		if _, err := stmt.ExecContext(ctx, id, i, seg.Start.Milliseconds(), seg.End.Milliseconds(), strings.TrimSpace(seg.Text)); err != nil {
			return fmt.Errorf("inserting segment %d: %w", i, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO indexing_status (transcript_id, file_mod_time) VALUES (?, ?)
		 ON CONFLICT(transcript_id) DO UPDATE SET file_mod_time=excluded.file_mod_time`,
		id, modTime,
	)
	if err != nil {
		return fmt.Errorf("updating indexing status: %w", err)
	}
	return tx.Commit()
}

// removeMissing deletes catalog entries whose transcript file is no longer
// present and returns their IDs.
func (s *Store) removeMissing(ctx context.Context, present map[string]bool) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM transcripts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing catalog: %w", err)
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if !present[id] {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range stale {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("beginning transaction: %w", err)
		}
		for _, q := range []string{
			`DELETE FROM segments WHERE transcript_id = ?`,
			`DELETE FROM transcripts WHERE id = ?`,
			`DELETE FROM indexing_status WHERE transcript_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				tx.Rollback()
				return nil, fmt.Errorf("removing %s: %w", id, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("removing %s: %w", id, err)
		}
	}
	return stale, nil
}

// transcriptID derives the catalog key from a transcript file name.
func transcriptID(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func parseFile(path string) (*types.Transcript, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return transcript.Parse(f)
}
