package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	logx "github.com/Ali1995A/moerduo/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sqlx.DB
	log logx.Logger
}

// Open opens (creating if needed) the SQLite database at cfg.Path and runs
// the embedded migrations.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("storage path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA foreign_keys = ON")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- Scheduler reads ----

func (s *sqliteStore) ListEnabledTasks(ctx context.Context) ([]ScheduledTask, error) {
	var tasks []ScheduledTask
	const q = `
	SELECT id, name, hour, minute, repeat_mode, custom_days, playlist_id,
	       volume, fade_in_duration, duration_minutes, is_enabled, priority, created_date
	FROM scheduled_tasks
	WHERE is_enabled = 1
	ORDER BY priority DESC, hour, minute`
	if err := s.db.SelectContext(ctx, &tasks, q); err != nil {
		return nil, fmt.Errorf("list enabled tasks: %w", err)
	}
	return tasks, nil
}

func (s *sqliteStore) CountExecutions(ctx context.Context, taskID int64) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM execution_history WHERE task_id = ?`, taskID)
	if err != nil {
		return 0, fmt.Errorf("count executions: %w", err)
	}
	return n, nil
}

func (s *sqliteStore) CountExecutionsSince(ctx context.Context, taskID int64, since time.Time) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM execution_history WHERE task_id = ? AND execution_time >= ?`,
		taskID, since.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("count executions since: %w", err)
	}
	return n, nil
}

func (s *sqliteStore) ListPlaylistItems(ctx context.Context, playlistID int64) ([]PlaylistItem, error) {
	var items []PlaylistItem
	const q = `
	SELECT af.id, af.file_path, af.duration, af.original_name
	FROM playlist_items pi
	JOIN audio_files af ON pi.audio_id = af.id
	WHERE pi.playlist_id = ?
	ORDER BY pi.sort_order`
	if err := s.db.SelectContext(ctx, &items, q, playlistID); err != nil {
		return nil, fmt.Errorf("list playlist items: %w", err)
	}
	return items, nil
}

func (s *sqliteStore) GetPlaylist(ctx context.Context, playlistID int64) (Playlist, error) {
	var p Playlist
	const q = `SELECT id, name, play_mode, created_date, updated_date FROM playlists WHERE id = ?`
	err := s.db.GetContext(ctx, &p, q, playlistID)
	if errors.Is(err, sql.ErrNoRows) {
		return Playlist{}, ErrNotFound
	}
	if err != nil {
		return Playlist{}, fmt.Errorf("get playlist: %w", err)
	}
	return p, nil
}

// ---- Scheduler writes ----

func (s *sqliteStore) InsertExecutionStart(ctx context.Context, taskID int64, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO execution_history (task_id, status, execution_time) VALUES (?, ?, ?)`,
		taskID, StatusStarted, at.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("insert execution start: %w", err)
	}
	return res.LastInsertId()
}

func (s *sqliteStore) FinishExecution(ctx context.Context, recordID int64, status ExecStatus, took time.Duration) error {
	secs := int64(took.Round(time.Second) / time.Second)
	_, err := s.db.ExecContext(ctx,
		`UPDATE execution_history SET status = ?, duration = ? WHERE id = ?`,
		status, secs, recordID)
	if err != nil {
		return fmt.Errorf("finish execution: %w", err)
	}
	return nil
}

func (s *sqliteStore) MarkPlayed(ctx context.Context, audioID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE audio_files SET play_count = play_count + 1, last_played = ? WHERE id = ?`,
		at.UnixMilli(), audioID)
	if err != nil {
		return fmt.Errorf("mark played: %w", err)
	}
	return nil
}

func (s *sqliteStore) AppendPlayback(ctx context.Context, e PlaybackEntry) error {
	if e.PlayTime.IsZero() {
		e.PlayTime = At(time.Now())
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO playback_history (audio_id, audio_name, playlist_id, playlist_name, play_time)
		 VALUES (?, ?, ?, ?, ?)`,
		e.AudioID, e.AudioName, e.PlaylistID, e.PlaylistName, e.PlayTime)
	if err != nil {
		return fmt.Errorf("append playback: %w", err)
	}
	return nil
}

// ---- Reporting ----

func (s *sqliteStore) RecentExecutions(ctx context.Context, limit int) ([]ExecutionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var recs []ExecutionRecord
	const q = `
	SELECT id, task_id, execution_time, status, duration
	FROM execution_history
	ORDER BY execution_time DESC, id DESC
	LIMIT ?`
	if err := s.db.SelectContext(ctx, &recs, q, limit); err != nil {
		return nil, fmt.Errorf("recent executions: %w", err)
	}
	return recs, nil
}

// ---- Settings ----

func (s *sqliteStore) GetSetting(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.GetContext(ctx, &v, `SELECT value FROM app_settings WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get setting: %w", err)
	}
	return v, nil
}

func (s *sqliteStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO app_settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}

// ---- Content management ----

func (s *sqliteStore) CreateAudioFile(ctx context.Context, a AudioFile) (int64, error) {
	if a.UploadDate.IsZero() {
		a.UploadDate = At(time.Now())
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO audio_files (filename, original_name, file_path, file_size, duration, format, upload_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.Filename, a.OriginalName, a.FilePath, a.FileSize, a.Duration, a.Format, a.UploadDate)
	if err != nil {
		return 0, fmt.Errorf("create audio file: %w", err)
	}
	return res.LastInsertId()
}

func (s *sqliteStore) GetAudioFile(ctx context.Context, id int64) (AudioFile, error) {
	var a AudioFile
	const q = `
	SELECT id, filename, original_name, file_path, file_size, duration, format,
	       upload_date, play_count, last_played
	FROM audio_files WHERE id = ?`
	err := s.db.GetContext(ctx, &a, q, id)
	if errors.Is(err, sql.ErrNoRows) {
		return AudioFile{}, ErrNotFound
	}
	if err != nil {
		return AudioFile{}, fmt.Errorf("get audio file: %w", err)
	}
	return a, nil
}

func (s *sqliteStore) CreatePlaylist(ctx context.Context, name string) (int64, error) {
	now := time.Now().UnixMilli()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO playlists (name, created_date, updated_date) VALUES (?, ?, ?)`,
		name, now, now)
	if err != nil {
		return 0, fmt.Errorf("create playlist: %w", err)
	}
	return res.LastInsertId()
}

func (s *sqliteStore) AddPlaylistItem(ctx context.Context, playlistID, audioID int64, sortOrder int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO playlist_items (playlist_id, audio_id, sort_order) VALUES (?, ?, ?)`,
		playlistID, audioID, sortOrder)
	if err != nil {
		return fmt.Errorf("add playlist item: %w", err)
	}
	return nil
}

func (s *sqliteStore) CreateTask(ctx context.Context, t ScheduledTask) (int64, error) {
	if t.CreatedDate.IsZero() {
		t.CreatedDate = At(time.Now())
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO scheduled_tasks
		 (name, hour, minute, repeat_mode, custom_days, playlist_id, volume,
		  fade_in_duration, duration_minutes, is_enabled, priority, created_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Name, t.Hour, t.Minute, t.RepeatMode, t.CustomDays, t.PlaylistID, t.Volume,
		t.FadeInSeconds, t.DurationMinutes, t.Enabled, t.Priority, t.CreatedDate)
	if err != nil {
		return 0, fmt.Errorf("create task: %w", err)
	}
	return res.LastInsertId()
}

func (s *sqliteStore) SetTaskEnabled(ctx context.Context, taskID int64, enabled bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_tasks SET is_enabled = ? WHERE id = ?`, enabled, taskID)
	if err != nil {
		return fmt.Errorf("set task enabled: %w", err)
	}
	return nil
}

// ---- Maintenance ----

func (s *sqliteStore) PruneHistory(ctx context.Context, before time.Time) (int64, error) {
	ms := before.UnixMilli()
	var total int64

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM execution_history WHERE execution_time < ?`, ms)
	if err != nil {
		return 0, fmt.Errorf("prune execution history: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		total += n
	}

	res, err = s.db.ExecContext(ctx,
		`DELETE FROM playback_history WHERE play_time < ?`, ms)
	if err != nil {
		return total, fmt.Errorf("prune playback history: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		total += n
	}

	// Keep the file compact after large deletes.
	_, _ = s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`)
	return total, nil
}
