package scheduler

import (
	"errors"
	"fmt"
)

// ErrEmptyPlaylist means a task points at a playlist with no items. This is a
// user-configuration error: the run is recorded as failed, never retried.
var ErrEmptyPlaylist = errors.New("playlist has no items")

// PlaybackError wraps a device failure while starting an audio item.
// It aborts the remainder of the task's sequence.
type PlaybackError struct {
	AudioID int64
	Path    string
	Err     error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("playback of audio %d (%s) failed: %v", e.AudioID, e.Path, e.Err)
}

func (e *PlaybackError) Unwrap() error { return e.Err }
