package player

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "github.com/Ali1995A/moerduo/pkg/logx"
)

func TestNewExecDefaults(t *testing.T) {
	t.Parallel()
	p, err := NewExec(Config{}, logx.Nop())
	require.NoError(t, err)
	require.NotNil(t, p)

	st := p.Status()
	assert.False(t, st.Playing)
	assert.Equal(t, 1.0, st.Volume)
}

func TestNewExecBadQuoting(t *testing.T) {
	t.Parallel()
	_, err := NewExec(Config{Command: `ffplay "unterminated {path}`}, logx.Nop())
	require.Error(t, err)
}

func TestSetVolumeClamps(t *testing.T) {
	t.Parallel()
	p, err := NewExec(Config{}, logx.Nop())
	require.NoError(t, err)

	p.SetVolume(1.7)
	assert.Equal(t, 1.0, p.Status().Volume)
	p.SetVolume(-0.2)
	assert.Equal(t, 0.0, p.Status().Volume)
	p.SetVolume(0.35)
	assert.Equal(t, 0.35, p.Status().Volume)
}

func TestStopSignalBeforePlay(t *testing.T) {
	t.Parallel()
	p, err := NewExec(Config{}, logx.Nop())
	require.NoError(t, err)

	select {
	case <-p.StopSignal():
		t.Fatal("stop signal fired without a Stop")
	default:
	}
}

func TestPlayAndStop(t *testing.T) {
	t.Parallel()
	// sleep gives us a process that stays alive until killed.
	p, err := NewExec(Config{Command: "sleep 30"}, logx.Nop())
	require.NoError(t, err)

	require.NoError(t, p.Play("/audio/a.mp3", 7, "a"))
	stopCh := p.StopSignal()

	st := p.Status()
	assert.True(t, st.Playing)
	require.NotNil(t, st.Current)
	assert.Equal(t, int64(7), st.Current.AudioID)
	assert.Equal(t, "a", st.Current.Name)

	p.Stop()
	select {
	case <-stopCh:
	case <-time.After(time.Second):
		t.Fatal("stop signal not closed after Stop")
	}
	assert.False(t, p.Status().Playing)
}

func TestNaturalExitDoesNotFireStopSignal(t *testing.T) {
	t.Parallel()
	p, err := NewExec(Config{Command: "true {path}"}, logx.Nop())
	require.NoError(t, err)

	require.NoError(t, p.Play("/audio/a.mp3", 7, "a"))
	stopCh := p.StopSignal()

	require.Eventually(t, func() bool {
		return !p.Status().Playing
	}, 2*time.Second, 10*time.Millisecond, "process should be reaped")

	select {
	case <-stopCh:
		t.Fatal("natural end must not look like an external stop")
	default:
	}
}

func TestSetQueueCopies(t *testing.T) {
	t.Parallel()
	p, err := NewExec(Config{}, logx.Nop())
	require.NoError(t, err)

	ids := []int64{1, 2, 3}
	p.SetQueue(ids, true)
	ids[0] = 99
	assert.Equal(t, []int64{1, 2, 3}, p.Status().Queue)
}
