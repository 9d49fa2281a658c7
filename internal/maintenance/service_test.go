package maintenance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "github.com/Ali1995A/moerduo/pkg/logx"
)

type fakeStore struct {
	mu     sync.Mutex
	before time.Time
	calls  int
}

func (f *fakeStore) PruneHistory(ctx context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.before = before
	f.calls++
	return 7, nil
}

func TestRunPruneUsesRetention(t *testing.T) {
	t.Parallel()
	st := &fakeStore{}
	s := New(Config{Enabled: true, RetentionDays: 30}, st, logx.Nop())

	s.runPrune()

	require.Equal(t, 1, st.calls)
	want := time.Now().AddDate(0, 0, -30)
	assert.WithinDuration(t, want, st.before, time.Minute)
}

func TestRunPruneDefaultRetention(t *testing.T) {
	t.Parallel()
	st := &fakeStore{}
	s := New(Config{Enabled: true}, st, logx.Nop())

	s.runPrune()

	want := time.Now().AddDate(0, 0, -defaultRetention)
	assert.WithinDuration(t, want, st.before, time.Minute)
}

func TestStartDisabled(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: false}, &fakeStore{}, logx.Nop())
	require.NoError(t, s.Start(context.Background()))
	s.Stop(context.Background()) // no-op, must not hang
}

func TestStartRejectsBadSchedule(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Schedule: "every day at dawn"}, &fakeStore{}, logx.Nop())
	require.Error(t, s.Start(context.Background()))
}

func TestStartStop(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Schedule: "30 3 * * *"}, &fakeStore{}, logx.Nop())
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()), "second Start is a no-op")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
