package eventbus

import "time"

// Event types published by the scheduling core.
const (
	EventTaskStarted   = "task.started"
	EventTaskCompleted = "task.completed"
	EventTaskFailed    = "task.failed"
	EventPlaybackItem  = "playback.item"
)

// TaskEvent accompanies task.started / task.completed / task.failed.
type TaskEvent struct {
	TaskID     int64         `json:"task_id"`
	TaskName   string        `json:"task_name"`
	PlaylistID int64         `json:"playlist_id"`
	RecordID   int64         `json:"record_id"`
	Took       time.Duration `json:"took,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// PlaybackEvent accompanies playback.item: one audio item started playing
// as part of a scheduled run.
type PlaybackEvent struct {
	TaskID     int64  `json:"task_id"`
	TaskName   string `json:"task_name"`
	PlaylistID int64  `json:"playlist_id"`
	AudioID    int64  `json:"audio_id"`
	AudioName  string `json:"audio_name"`
	Path       string `json:"path"`
	DurationS  int64  `json:"duration_s"`
}
