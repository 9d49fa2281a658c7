// Package storage is moerduo's SQLite persistence layer.
//
// It owns the schema (audio files, playlists, scheduled tasks, execution and
// playback history, settings) and exposes the narrow query/command surface
// the scheduling core consumes. The core never touches SQL directly.
package storage
