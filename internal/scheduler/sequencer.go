package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/Ali1995A/moerduo/internal/eventbus"
	"github.com/Ali1995A/moerduo/internal/storage"
	logx "github.com/Ali1995A/moerduo/pkg/logx"
)

// runPlaylist drives the playback device through every item of the task's
// playlist in sort order: fade-in ramp, per-item wait, duration-cap
// enforcement, play-count bookkeeping.
//
// The whole run is synchronous; the caller owns the device for its duration.
// Long waits happen in one-second slices so an externally-issued stop (or a
// context cancellation) is noticed promptly and the device lock is never held
// across a wait.
func (s *Service) runPlaylist(ctx context.Context, t storage.ScheduledTask) error {
	items, err := s.store.ListPlaylistItems(ctx, t.PlaylistID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return ErrEmptyPlaylist
	}

	log := s.log.With(
		logx.Int64("task_id", t.ID),
		logx.String("task", t.Name),
		logx.Int64("playlist_id", t.PlaylistID))

	var playlistName *string
	if pl, err := s.store.GetPlaylist(ctx, t.PlaylistID); err == nil {
		playlistName = &pl.Name
	} else {
		log.Debug("playlist name lookup failed", logx.Err(err))
	}

	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.AudioID
	}
	s.player.SetQueue(ids, true)
	s.player.SetScheduled(true)
	defer s.player.SetScheduled(false)

	target := float64(t.Volume) / 100.0
	start := s.now()
	var limit time.Duration // 0 = uncapped
	if t.DurationMinutes != nil && *t.DurationMinutes > 0 {
		limit = time.Duration(*t.DurationMinutes) * time.Minute
	}

	for _, it := range items {
		if limit > 0 && s.now().Sub(start) >= limit {
			log.Info("duration cap reached, skipping remaining items",
				logx.Duration("cap", limit))
			s.player.Stop()
			return nil
		}

		if t.FadeInSeconds > 0 {
			s.player.SetVolume(0)
		} else {
			s.player.SetVolume(target)
		}

		if err := s.player.Play(it.Path, it.AudioID, it.Name); err != nil {
			return &PlaybackError{AudioID: it.AudioID, Path: it.Path, Err: err}
		}
		stopped := s.player.StopSignal()

		s.publish(eventbus.EventPlaybackItem, eventbus.PlaybackEvent{
			TaskID:     t.ID,
			TaskName:   t.Name,
			PlaylistID: t.PlaylistID,
			AudioID:    it.AudioID,
			AudioName:  it.Name,
			Path:       it.Path,
			DurationS:  it.Duration,
		})

		if t.FadeInSeconds > 0 {
			aborted, err := s.fadeIn(ctx, stopped, t.FadeInSeconds, target)
			if err != nil {
				return err
			}
			if aborted {
				log.Info("playback stopped externally during fade, ending run")
				return nil
			}
		}

		wait := time.Duration(it.Duration) * time.Second
		truncated := false
		if limit > 0 {
			remaining := limit - s.now().Sub(start)
			if remaining < 0 {
				remaining = 0
			}
			if remaining < wait {
				wait = remaining
				truncated = true
			}
		}

		aborted, err := s.waitPlayback(ctx, stopped, wait)
		if err != nil {
			return err
		}
		if aborted {
			log.Info("playback stopped externally, ending run",
				logx.Int64("audio_id", it.AudioID))
			return nil
		}
		if truncated {
			// The item did not play to completion; its play count stays as-is.
			log.Info("duration cap reached, stopping current item",
				logx.Int64("audio_id", it.AudioID),
				logx.Duration("cap", limit))
			s.player.Stop()
			return nil
		}

		at := s.now()
		if err := s.store.MarkPlayed(ctx, it.AudioID, at); err != nil {
			log.Warn("play count update failed",
				logx.Int64("audio_id", it.AudioID), logx.Err(err))
		}
		entry := storage.PlaybackEntry{
			AudioID:      it.AudioID,
			AudioName:    it.Name,
			PlaylistID:   &t.PlaylistID,
			PlaylistName: playlistName,
			PlayTime:     storage.At(at),
		}
		if err := s.store.AppendPlayback(ctx, entry); err != nil {
			log.Warn("playback history append failed",
				logx.Int64("audio_id", it.AudioID), logx.Err(err))
		}
	}
	return nil
}

// fadeIn ramps volume from silence to target, one step per second with
// increment target/fadeSeconds. The final step is clamped to exactly the
// target so float drift can never overshoot it.
func (s *Service) fadeIn(ctx context.Context, stopped <-chan struct{}, fadeSeconds int, target float64) (aborted bool, err error) {
	step := target / float64(fadeSeconds)
	for i := 1; i <= fadeSeconds; i++ {
		aborted, err := s.waitSlice(ctx, stopped, time.Second)
		if aborted || err != nil {
			return aborted, err
		}
		v := step * float64(i)
		if i == fadeSeconds || v > target {
			v = target
		}
		s.player.SetVolume(v)
	}
	return false, nil
}

// waitPlayback waits out d in one-second slices so external stops are
// noticed without holding the device.
func (s *Service) waitPlayback(ctx context.Context, stopped <-chan struct{}, d time.Duration) (aborted bool, err error) {
	for remaining := d; remaining > 0; remaining -= time.Second {
		slice := time.Second
		if remaining < slice {
			slice = remaining
		}
		aborted, err := s.waitSlice(ctx, stopped, slice)
		if aborted || err != nil {
			return aborted, err
		}
	}
	return false, nil
}

func (s *Service) waitSlice(ctx context.Context, stopped <-chan struct{}, d time.Duration) (aborted bool, err error) {
	select {
	case <-stopped:
		return true, nil
	default:
	}
	if err := s.sleep(ctx, d); err != nil {
		return false, err
	}
	select {
	case <-stopped:
		return true, nil
	default:
	}
	return false, nil
}

// sleepCtx is the production sleep: a timer gated by ctx.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsConfigError reports whether err is a user-configuration problem rather
// than a transient device/store failure.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrEmptyPlaylist)
}
