package scheduler

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Ali1995A/moerduo/internal/storage"
)

// windowMinutes is the width of the firing window past the trigger minute.
// It compensates for the polling cadence and clock jitter; the execution
// guard is what prevents double fires inside the window.
const windowMinutes = 2

// windowMatches reports whether the current wall-clock minute falls inside
// the task's firing window: delta = minute-of-day(now) - minute-of-day(trigger),
// match iff 0 <= delta <= windowMinutes.
//
// Matching is purely on minute-of-day difference; a trigger near midnight does
// not wrap into the next day.
func windowMatches(taskHour, taskMinute, nowHour, nowMinute int) bool {
	delta := (nowHour*60 + nowMinute) - (taskHour*60 + taskMinute)
	return delta >= 0 && delta <= windowMinutes
}

// dayMatches applies the repeat-mode day policy for the given weekday.
// executedEver is consulted only for mode "once": any prior execution record,
// whatever its status, permanently disables a once task.
//
// A malformed custom-day set returns an error; callers treat that as
// "does not match" and log it, never as a fatal condition.
func dayMatches(mode string, customDays *string, weekday time.Weekday, executedEver bool) (bool, error) {
	switch mode {
	case storage.RepeatDaily:
		return true, nil
	case storage.RepeatWeekday:
		return weekday >= time.Monday && weekday <= time.Friday, nil
	case storage.RepeatWeekend:
		return weekday == time.Sunday || weekday == time.Saturday, nil
	case storage.RepeatCustom:
		if customDays == nil {
			return false, nil
		}
		days, err := parseCustomDays(*customDays)
		if err != nil {
			return false, err
		}
		for _, d := range days {
			if d == int(weekday) {
				return true, nil
			}
		}
		return false, nil
	case storage.RepeatOnce:
		return !executedEver, nil
	default:
		return false, nil
	}
}

// parseCustomDays decodes a JSON array of weekday numbers (0=Sunday..6=Saturday).
func parseCustomDays(raw string) ([]int, error) {
	var days []int
	if err := json.Unmarshal([]byte(raw), &days); err != nil {
		return nil, fmt.Errorf("custom_days %q: %w", raw, err)
	}
	return days, nil
}
