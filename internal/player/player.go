package player

import "time"

// Player controls the single active audio output stream.
//
// Implementations must be safe for concurrent use: the scheduler's sequencer
// and the (out-of-scope) GUI layer both reach the same device. Calls acquire
// the device for one logical operation only; long waits happen outside the
// implementation so other callers are never starved.
//
// StopSignal surfaces an externally-issued Stop to whoever is waiting out a
// track, so a sequencer can abort instead of sleeping against silence.
type Player interface {
	// SetQueue replaces the pending queue with the given audio ids.
	SetQueue(audioIDs []int64, autoPlay bool)

	// SetScheduled marks subsequent playback as scheduler-triggered
	// (the GUI renders these differently from manual playback).
	SetScheduled(scheduled bool)

	// SetVolume sets the output volume, 0.0..1.0.
	SetVolume(v float64)

	// Play starts playback of the file at path. The audio id and display
	// name tag the stream for now-playing reporting.
	Play(path string, audioID int64, name string) error

	// Stop stops the active stream, if any.
	Stop()

	// StopSignal returns a channel that is closed when the stream started by
	// the most recent Play is stopped via Stop(). It is NOT closed when the
	// track ends on its own. Valid until the next Play call.
	StopSignal() <-chan struct{}
}

// NowPlaying describes the active stream.
type NowPlaying struct {
	AudioID   int64     `json:"audio_id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	StartedAt time.Time `json:"started_at"`
}

// Status is a point-in-time snapshot of the device.
type Status struct {
	Playing   bool        `json:"playing"`
	Current   *NowPlaying `json:"current,omitempty"`
	Volume    float64     `json:"volume"`
	Scheduled bool        `json:"scheduled"`
	Queue     []int64     `json:"queue,omitempty"`
}
