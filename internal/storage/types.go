package storage

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("not found")

// Config configures the SQLite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// Repeat modes for scheduled tasks.
const (
	RepeatDaily   = "daily"
	RepeatWeekday = "weekday"
	RepeatWeekend = "weekend"
	RepeatCustom  = "custom"
	RepeatOnce    = "once"
)

// ExecStatus is the lifecycle state of one execution record.
type ExecStatus string

const (
	StatusStarted   ExecStatus = "started"
	StatusCompleted ExecStatus = "completed"
	StatusFailed    ExecStatus = "failed"
)

// UnixTime stores a timestamp as integer unix milliseconds in SQLite.
//
// Millisecond integers keep range comparisons cheap and avoid the timezone
// pitfalls of text timestamps. The zero value maps to NULL.
type UnixTime struct{ time.Time }

func At(t time.Time) UnixTime { return UnixTime{Time: t} }

func (t UnixTime) Value() (driver.Value, error) {
	if t.IsZero() {
		return nil, nil
	}
	return t.UnixMilli(), nil
}

func (t *UnixTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case int64:
		t.Time = time.UnixMilli(v)
		return nil
	case int:
		t.Time = time.UnixMilli(int64(v))
		return nil
	case float64:
		t.Time = time.UnixMilli(int64(v))
		return nil
	default:
		return fmt.Errorf("storage: cannot scan %T into UnixTime", src)
	}
}

// AudioFile mirrors the audio_files table.
//
// The core only mutates PlayCount and LastPlayed; everything else is owned
// by the (out-of-scope) file management surface.
type AudioFile struct {
	ID           int64    `db:"id"`
	Filename     string   `db:"filename"`
	OriginalName string   `db:"original_name"`
	FilePath     string   `db:"file_path"`
	FileSize     int64    `db:"file_size"`
	Duration     int64    `db:"duration"` // whole seconds
	Format       string   `db:"format"`
	UploadDate   UnixTime `db:"upload_date"`
	PlayCount    int64    `db:"play_count"`
	LastPlayed   UnixTime `db:"last_played"`
}

// Playlist mirrors the playlists table.
type Playlist struct {
	ID          int64    `db:"id"`
	Name        string   `db:"name"`
	PlayMode    string   `db:"play_mode"`
	CreatedDate UnixTime `db:"created_date"`
	UpdatedDate UnixTime `db:"updated_date"`
}

// PlaylistItem is one resolved entry of a playlist, joined against
// audio_files and ordered by sort_order.
type PlaylistItem struct {
	AudioID  int64  `db:"id"`
	Path     string `db:"file_path"`
	Duration int64  `db:"duration"` // whole seconds
	Name     string `db:"original_name"`
}

// ScheduledTask mirrors the scheduled_tasks table. Read-only to the core.
//
// CustomDays is a JSON array of weekday numbers (0=Sunday..6=Saturday) and is
// only meaningful when RepeatMode == "custom".
type ScheduledTask struct {
	ID              int64    `db:"id"`
	Name            string   `db:"name"`
	Hour            int      `db:"hour"`
	Minute          int      `db:"minute"`
	RepeatMode      string   `db:"repeat_mode"`
	CustomDays      *string  `db:"custom_days"`
	PlaylistID      int64    `db:"playlist_id"`
	Volume          int      `db:"volume"`           // 0..100
	FadeInSeconds   int      `db:"fade_in_duration"` // 0 = no fade
	DurationMinutes *int64   `db:"duration_minutes"` // nil = no cap
	Enabled         bool     `db:"is_enabled"`
	Priority        int      `db:"priority"`
	CreatedDate     UnixTime `db:"created_date"`
}

// ExecutionRecord mirrors the execution_history table.
type ExecutionRecord struct {
	ID            int64      `db:"id"`
	TaskID        int64      `db:"task_id"`
	ExecutionTime UnixTime   `db:"execution_time"`
	Status        ExecStatus `db:"status"`
	Duration      *int64     `db:"duration"` // whole seconds, set when the run ends
}

// PlaybackEntry mirrors the playback_history table (the stats feed for the
// calendar/statistics view).
type PlaybackEntry struct {
	ID           int64    `db:"id"`
	AudioID      int64    `db:"audio_id"`
	AudioName    string   `db:"audio_name"`
	PlaylistID   *int64   `db:"playlist_id"`
	PlaylistName *string  `db:"playlist_name"`
	PlayTime     UnixTime `db:"play_time"`
}
