package scheduler

import (
	"testing"
	"time"
)

func TestWindowMatches(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name                 string
		taskHour, taskMinute int
		nowHour, nowMinute   int
		want                 bool
	}{
		{name: "exact minute", taskHour: 8, taskMinute: 0, nowHour: 8, nowMinute: 0, want: true},
		{name: "one late", taskHour: 8, taskMinute: 0, nowHour: 8, nowMinute: 1, want: true},
		{name: "two late", taskHour: 8, taskMinute: 0, nowHour: 8, nowMinute: 2, want: true},
		{name: "three late", taskHour: 8, taskMinute: 0, nowHour: 8, nowMinute: 3, want: false},
		{name: "one early", taskHour: 8, taskMinute: 0, nowHour: 7, nowMinute: 59, want: false},
		{name: "hour boundary", taskHour: 7, taskMinute: 59, nowHour: 8, nowMinute: 1, want: true},
		{name: "late evening", taskHour: 23, taskMinute: 58, nowHour: 23, nowMinute: 59, want: true},
		{name: "no midnight wrap", taskHour: 23, taskMinute: 59, nowHour: 0, nowMinute: 0, want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := windowMatches(tt.taskHour, tt.taskMinute, tt.nowHour, tt.nowMinute)
			if got != tt.want {
				t.Fatalf("windowMatches(%02d:%02d at %02d:%02d) = %v, want %v",
					tt.taskHour, tt.taskMinute, tt.nowHour, tt.nowMinute, got, tt.want)
			}
		})
	}
}

func TestDayMatches(t *testing.T) {
	t.Parallel()
	days := func(s string) *string { return &s }

	tests := []struct {
		name         string
		mode         string
		customDays   *string
		weekday      time.Weekday
		executedEver bool
		want         bool
		wantErr      bool
	}{
		{name: "daily monday", mode: "daily", weekday: time.Monday, want: true},
		{name: "daily sunday", mode: "daily", weekday: time.Sunday, want: true},
		{name: "weekday friday", mode: "weekday", weekday: time.Friday, want: true},
		{name: "weekday saturday", mode: "weekday", weekday: time.Saturday, want: false},
		{name: "weekend saturday", mode: "weekend", weekday: time.Saturday, want: true},
		{name: "weekend sunday", mode: "weekend", weekday: time.Sunday, want: true},
		{name: "weekend wednesday", mode: "weekend", weekday: time.Wednesday, want: false},
		{name: "custom hit", mode: "custom", customDays: days("[1,3,5]"), weekday: time.Wednesday, want: true},
		{name: "custom miss", mode: "custom", customDays: days("[1,3,5]"), weekday: time.Tuesday, want: false},
		{name: "custom sunday zero", mode: "custom", customDays: days("[0]"), weekday: time.Sunday, want: true},
		{name: "custom nil set", mode: "custom", customDays: nil, weekday: time.Monday, want: false},
		{name: "custom malformed", mode: "custom", customDays: days("mon,tue"), weekday: time.Monday, wantErr: true},
		{name: "once never ran", mode: "once", weekday: time.Monday, want: true},
		{name: "once already ran", mode: "once", weekday: time.Monday, executedEver: true, want: false},
		{name: "unknown mode", mode: "hourly", weekday: time.Monday, want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := dayMatches(tt.mode, tt.customDays, tt.weekday, tt.executedEver)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error for malformed custom days")
				}
				return
			}
			if err != nil {
				t.Fatalf("dayMatches error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("dayMatches(%s, %v) = %v, want %v", tt.mode, tt.weekday, got, tt.want)
			}
		})
	}
}

func TestParseCustomDays(t *testing.T) {
	t.Parallel()
	got, err := parseCustomDays("[0,6]")
	if err != nil {
		t.Fatalf("parseCustomDays error: %v", err)
	}
	if len(got) != 2 || got[0] != 0 || got[1] != 6 {
		t.Fatalf("unexpected result: %v", got)
	}

	if _, err := parseCustomDays("{}"); err == nil {
		t.Fatal("expected error for non-array custom days")
	}
}

func TestStartOfDay(t *testing.T) {
	t.Parallel()
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	now := time.Date(2025, 6, 15, 14, 30, 45, 0, loc)
	got := startOfDay(now)
	want := time.Date(2025, 6, 15, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("startOfDay = %v, want %v", got, want)
	}
	if got.Location() != loc {
		t.Fatalf("startOfDay changed location: %v", got.Location())
	}
}
