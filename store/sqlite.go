package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/core"
)

// SQLiteRepository stores metadata in a local SQLite file. Collection
// replacement runs as a single transaction so readers never observe a
// half-written transcript or section list.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}
	r := &SQLiteRepository{db: db}
	if err := r.ensureSchema(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *SQLiteRepository) Close() error { return r.db.Close() }

func (r *SQLiteRepository) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS videos (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		title TEXT,
		duration REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	CREATE TABLE IF NOT EXISTS transcript_segments (
		video_id TEXT NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		start_time REAL NOT NULL,
		end_time REAL NOT NULL,
		text TEXT NOT NULL,
		PRIMARY KEY (video_id, seq)
	);
	CREATE TABLE IF NOT EXISTS sections (
		video_id TEXT NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		title TEXT NOT NULL,
		start_time REAL NOT NULL,
		end_time REAL NOT NULL,
		PRIMARY KEY (video_id, seq)
	);
	CREATE TABLE IF NOT EXISTS frames (
		video_id TEXT NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
		timestamp REAL NOT NULL,
		path TEXT NOT NULL,
		context TEXT,
		PRIMARY KEY (video_id, timestamp)
	);
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		video_id TEXT NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
		turns TEXT NOT NULL
	);
	`
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CreateVideo(ctx context.Context, v *core.VideoAsset) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO videos (id, url, title, duration, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		v.ID, v.URL, v.Title, v.Duration, string(v.Status), v.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert video: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetVideo(ctx context.Context, id string) (*core.VideoAsset, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, url, title, duration, status, created_at FROM videos WHERE id = ?`, id)
	return scanVideo(row, id)
}

func scanVideo(row *sql.Row, id string) (*core.VideoAsset, error) {
	var v core.VideoAsset
	var status, created string
	var title sql.NullString
	err := row.Scan(&v.ID, &v.URL, &title, &v.Duration, &status, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NewError(core.KindNotFound, "video %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("scan video: %w", err)
	}
	v.Title = title.String
	v.Status = core.Status(status)
	if t, perr := time.Parse(time.RFC3339Nano, created); perr == nil {
		v.CreatedAt = t
	}
	return &v, nil
}

func (r *SQLiteRepository) ListVideos(ctx context.Context) ([]core.VideoAsset, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, url, title, duration, status, created_at FROM videos ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()
	var out []core.VideoAsset
	for rows.Next() {
		var v core.VideoAsset
		var status, created string
		var title sql.NullString
		if err := rows.Scan(&v.ID, &v.URL, &title, &v.Duration, &status, &created); err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		v.Title = title.String
		v.Status = core.Status(status)
		if t, perr := time.Parse(time.RFC3339Nano, created); perr == nil {
			v.CreatedAt = t
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpdateVideo(ctx context.Context, v *core.VideoAsset) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE videos SET url = ?, title = ?, duration = ?, status = ? WHERE id = ?`,
		v.URL, v.Title, v.Duration, string(v.Status), v.ID)
	if err != nil {
		return fmt.Errorf("update video: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NewError(core.KindNotFound, "video %s not found", v.ID)
	}
	return nil
}

func (r *SQLiteRepository) DeleteVideo(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM videos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NewError(core.KindNotFound, "video %s not found", id)
	}
	return nil
}

func (r *SQLiteRepository) replaceCollection(ctx context.Context, del, ins string, videoID string, rows [][]any) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, del, videoID); err != nil {
		return fmt.Errorf("clear collection: %w", err)
	}
	for _, args := range rows {
		if _, err := tx.ExecContext(ctx, ins, args...); err != nil {
			return fmt.Errorf("insert row: %w", err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) ReplaceSegments(ctx context.Context, videoID string, segs []core.TranscriptSegment) error {
	rows := make([][]any, 0, len(segs))
	for i, s := range segs {
		rows = append(rows, []any{videoID, i, s.Start, s.End, s.Text})
	}
	return r.replaceCollection(ctx,
		`DELETE FROM transcript_segments WHERE video_id = ?`,
		`INSERT INTO transcript_segments (video_id, seq, start_time, end_time, text) VALUES (?, ?, ?, ?, ?)`,
		videoID, rows)
}

func (r *SQLiteRepository) Segments(ctx context.Context, videoID string) ([]core.TranscriptSegment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT start_time, end_time, text FROM transcript_segments WHERE video_id = ? ORDER BY seq`, videoID)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()
	var out []core.TranscriptSegment
	for rows.Next() {
		var s core.TranscriptSegment
		if err := rows.Scan(&s.Start, &s.End, &s.Text); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ReplaceSections(ctx context.Context, videoID string, sections []core.Section) error {
	rows := make([][]any, 0, len(sections))
	for i, s := range sections {
		rows = append(rows, []any{videoID, i, s.Title, s.Start, s.End})
	}
	return r.replaceCollection(ctx,
		`DELETE FROM sections WHERE video_id = ?`,
		`INSERT INTO sections (video_id, seq, title, start_time, end_time) VALUES (?, ?, ?, ?, ?)`,
		videoID, rows)
}

func (r *SQLiteRepository) Sections(ctx context.Context, videoID string) ([]core.Section, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT title, start_time, end_time FROM sections WHERE video_id = ? ORDER BY seq`, videoID)
	if err != nil {
		return nil, fmt.Errorf("query sections: %w", err)
	}
	defer rows.Close()
	var out []core.Section
	for rows.Next() {
		var s core.Section
		if err := rows.Scan(&s.Title, &s.Start, &s.End); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ReplaceFrames(ctx context.Context, videoID string, frames []core.Frame) error {
	rows := make([][]any, 0, len(frames))
	for _, f := range frames {
		rows = append(rows, []any{videoID, f.Timestamp, f.Path, f.Context})
	}
	return r.replaceCollection(ctx,
		`DELETE FROM frames WHERE video_id = ?`,
		`INSERT INTO frames (video_id, timestamp, path, context) VALUES (?, ?, ?, ?)`,
		videoID, rows)
}

func (r *SQLiteRepository) Frames(ctx context.Context, videoID string) ([]core.Frame, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT timestamp, path, context FROM frames WHERE video_id = ? ORDER BY timestamp`, videoID)
	if err != nil {
		return nil, fmt.Errorf("query frames: %w", err)
	}
	defer rows.Close()
	var out []core.Frame
	for rows.Next() {
		var f core.Frame
		var fctx sql.NullString
		if err := rows.Scan(&f.Timestamp, &f.Path, &fctx); err != nil {
			return nil, fmt.Errorf("scan frame: %w", err)
		}
		f.Context = fctx.String
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SaveConversation(ctx context.Context, c *core.Conversation) error {
	turns, err := json.Marshal(c.Turns)
	if err != nil {
		return fmt.Errorf("marshal turns: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO conversations (id, video_id, turns) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET turns = excluded.turns`,
		c.ID, c.VideoID, string(turns))
	if err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetConversation(ctx context.Context, id string) (*core.Conversation, error) {
	var c core.Conversation
	var turns string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, video_id, turns FROM conversations WHERE id = ?`, id).Scan(&c.ID, &c.VideoID, &turns)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NewError(core.KindNotFound, "conversation %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	if err := json.Unmarshal([]byte(turns), &c.Turns); err != nil {
		return nil, fmt.Errorf("unmarshal turns: %w", err)
	}
	return &c, nil
}
