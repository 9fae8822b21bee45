// Package cache persists caption segments in a local SQLite store so a
// rewatched video replays its subtitles without another round trip to the
// transcription backend.
package cache

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped on incompatible schema changes; an old store
// must be cleared rather than migrated in place.
const schemaVersion = 1

var ErrSchemaMismatch = errors.New("cache schema version mismatch")

// Store is the segment cache backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open initializes or connects to the cache database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, now: time.Now}
	if err := store.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: store has version %d, expected %d (clear the cache or delete %s)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

// ensureVideo upserts the video row inside tx: a new URL gets a fresh
// record, an existing one keeps its created_at and bumps last_accessed.
func (s *Store) ensureVideo(ctx context.Context, tx *sql.Tx, url, title string) (string, error) {
	id := VideoID(url)
	now := s.now().UTC().Format(time.RFC3339Nano)
	_, err := tx.ExecContext(ctx, `
		INSERT INTO videos (id, url, title, created_at, last_accessed)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = CASE WHEN excluded.title != '' THEN excluded.title ELSE videos.title END,
			last_accessed = excluded.last_accessed`,
		id, url, title, now, now)
	if err != nil {
		return "", fmt.Errorf("upsert video: %w", err)
	}
	return id, nil
}

// SaveSegment stores one caption span for the video at url. A segment
// already stored for the same (video, start time) is merged: translation
// slots union with non-empty incoming values winning, while original,
// source language, confidence, and model follow the incoming save. User
// corrections survive merges untouched.
func (s *Store) SaveSegment(ctx context.Context, url, title string, seg Segment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	defer tx.Rollback()

	videoID, err := s.ensureVideo(ctx, tx, url, title)
	if err != nil {
		return err
	}

	var existingJSON string
	err = tx.QueryRowContext(ctx,
		"SELECT translations FROM segments WHERE video_id = ? AND start_time = ?",
		videoID, seg.StartTime,
	).Scan(&existingJSON)

	translations := normalizeTranslations(seg.Translations)
	switch {
	case err == nil:
		var existing map[string]string
		if jsonErr := json.Unmarshal([]byte(existingJSON), &existing); jsonErr != nil {
			return fmt.Errorf("decode stored translations: %w", jsonErr)
		}
		translations = mergeTranslations(existing, seg.Translations)
	case errors.Is(err, sql.ErrNoRows):
	default:
		return fmt.Errorf("read existing segment: %w", err)
	}

	encoded, err := json.Marshal(translations)
	if err != nil {
		return fmt.Errorf("encode translations: %w", err)
	}
	now := s.now().UTC().Format(time.RFC3339Nano)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO segments (video_id, start_time, end_time, original, source_lang,
			translations, confidence, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(video_id, start_time) DO UPDATE SET
			end_time = excluded.end_time,
			original = excluded.original,
			source_lang = excluded.source_lang,
			translations = excluded.translations,
			confidence = excluded.confidence,
			model = excluded.model`,
		videoID, seg.StartTime, seg.EndTime, seg.Original, seg.SourceLang,
		string(encoded), seg.Confidence, seg.Model, now)
	if err != nil {
		return fmt.Errorf("upsert segment: %w", err)
	}
	return tx.Commit()
}

// CorrectSegment records a user-supplied correction for an existing
// segment without touching the machine output.
func (s *Store) CorrectSegment(ctx context.Context, url string, startTime float64, corrected string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE segments SET user_corrected = 1, corrected_text = ? WHERE video_id = ? AND start_time = ?",
		corrected, VideoID(url), startTime)
	if err != nil {
		return fmt.Errorf("correct segment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no segment at %v to correct", startTime)
	}
	return nil
}

// Video returns the record for url, or nil when the video was never seen.
func (s *Store) Video(ctx context.Context, url string) (*VideoRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, url, title, created_at, last_accessed FROM videos WHERE id = ?",
		VideoID(url))
	record, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return record, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner) (*VideoRecord, error) {
	var record VideoRecord
	var createdAt, lastAccessed string
	if err := row.Scan(&record.ID, &record.URL, &record.Title, &createdAt, &lastAccessed); err != nil {
		return nil, err
	}
	var err error
	if record.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if record.LastAccessed, err = time.Parse(time.RFC3339Nano, lastAccessed); err != nil {
		return nil, fmt.Errorf("parse last_accessed: %w", err)
	}
	return &record, nil
}

func scanSegment(row rowScanner) (*Segment, error) {
	var seg Segment
	var translations, createdAt string
	if err := row.Scan(&seg.VideoID, &seg.StartTime, &seg.EndTime, &seg.Original, &seg.SourceLang,
		&translations, &seg.Confidence, &seg.Model, &seg.UserCorrected, &seg.CorrectedText, &createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(translations), &seg.Translations); err != nil {
		return nil, fmt.Errorf("decode translations: %w", err)
	}
	seg.Translations = normalizeTranslations(seg.Translations)
	var err error
	if seg.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &seg, nil
}

const segmentColumns = "video_id, start_time, end_time, original, source_lang, translations, " +
	"confidence, model, user_corrected, corrected_text, created_at"

// Segments returns every cached span for the video at url, ordered by
// start time.
func (s *Store) Segments(ctx context.Context, url string) ([]Segment, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+segmentColumns+" FROM segments WHERE video_id = ? ORDER BY start_time",
		VideoID(url))
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	var segments []Segment
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		segments = append(segments, *seg)
	}
	return segments, rows.Err()
}

// SegmentAt returns the span whose [start, end] interval contains
// playback position t, or nil when nothing covers it.
func (s *Store) SegmentAt(ctx context.Context, url string, t float64) (*Segment, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+segmentColumns+" FROM segments WHERE video_id = ? AND start_time <= ? AND end_time >= ? ORDER BY start_time DESC LIMIT 1",
		VideoID(url), t, t)
	seg, err := scanSegment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return seg, err
}

// ExportDocument is the JSON shape produced by Export.
type ExportDocument struct {
	ExportedAt time.Time     `json:"exportedAt"`
	Videos     []VideoRecord `json:"videos"`
	Segments   []Segment     `json:"segments"`
}

// Export serializes the whole cache as one JSON document.
func (s *Store) Export(ctx context.Context) ([]byte, error) {
	doc := ExportDocument{ExportedAt: s.now().UTC()}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, url, title, created_at, last_accessed FROM videos ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	for rows.Next() {
		record, err := scanVideo(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		doc.Videos = append(doc.Videos, *record)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx,
		"SELECT "+segmentColumns+" FROM segments ORDER BY video_id, start_time")
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		doc.Segments = append(doc.Segments, *seg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return json.MarshalIndent(doc, "", "  ")
}

// Clear drops every video and segment in one transaction.
func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM segments"); err != nil {
		return fmt.Errorf("clear segments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM videos"); err != nil {
		return fmt.Errorf("clear videos: %w", err)
	}
	return tx.Commit()
}

// Stats summarizes the cache contents.
type Stats struct {
	Videos   int
	Segments int
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM videos").Scan(&stats.Videos); err != nil {
		return stats, fmt.Errorf("count videos: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM segments").Scan(&stats.Segments); err != nil {
		return stats, fmt.Errorf("count segments: %w", err)
	}
	return stats, nil
}
