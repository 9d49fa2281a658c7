// Package scheduler is moerduo's automation core: a 30-second polling loop
// that matches enabled tasks against wall-clock time and weekday policy,
// guards against duplicate fires within a calendar day, and sequences
// playlist playback (fade-in, per-item waits, duration cap) on the shared
// audio device.
package scheduler
