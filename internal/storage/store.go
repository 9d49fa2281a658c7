package storage

import (
	"context"
	"time"
)

// Store is the persistence API consumed by the scheduling core and the
// (out-of-scope) configuration surface.
//
// Queries the scheduler depends on keep their ordering contracts here:
// ListEnabledTasks orders by priority DESC, then hour, then minute;
// ListPlaylistItems orders by sort_order.
type Store interface {
	// Scheduler reads.
	ListEnabledTasks(ctx context.Context) ([]ScheduledTask, error)
	CountExecutions(ctx context.Context, taskID int64) (int, error)
	CountExecutionsSince(ctx context.Context, taskID int64, since time.Time) (int, error)
	ListPlaylistItems(ctx context.Context, playlistID int64) ([]PlaylistItem, error)
	GetPlaylist(ctx context.Context, playlistID int64) (Playlist, error)

	// Scheduler writes. InsertExecutionStart returns the record id, which the
	// caller carries forward into FinishExecution (no max-timestamp re-lookup).
	InsertExecutionStart(ctx context.Context, taskID int64, at time.Time) (int64, error)
	FinishExecution(ctx context.Context, recordID int64, status ExecStatus, took time.Duration) error
	MarkPlayed(ctx context.Context, audioID int64, at time.Time) error
	AppendPlayback(ctx context.Context, e PlaybackEntry) error

	// Reporting.
	RecentExecutions(ctx context.Context, limit int) ([]ExecutionRecord, error)

	// Settings.
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Content management (configuration surface + tests).
	CreateAudioFile(ctx context.Context, a AudioFile) (int64, error)
	GetAudioFile(ctx context.Context, id int64) (AudioFile, error)
	CreatePlaylist(ctx context.Context, name string) (int64, error)
	AddPlaylistItem(ctx context.Context, playlistID, audioID int64, sortOrder int) error
	CreateTask(ctx context.Context, t ScheduledTask) (int64, error)
	SetTaskEnabled(ctx context.Context, taskID int64, enabled bool) error

	// Maintenance.
	PruneHistory(ctx context.Context, before time.Time) (int64, error)

	Close() error
}
