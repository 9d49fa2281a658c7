package player

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	shellquote "github.com/kballard/go-shellquote"

	logx "github.com/Ali1995A/moerduo/pkg/logx"
)

// DefaultCommand is used when player.command is not configured.
// ffplay exits on its own when the file ends, which is what the reaper
// goroutine relies on.
const DefaultCommand = "ffplay -nodisp -autoexit -loglevel quiet -volume {volume} {path}"

// Config configures the exec-backed player.
type Config struct {
	// Command is a shell-quoted template. Placeholders:
	//   {path}   the audio file path
	//   {volume} current volume as an integer percentage (0..100)
	Command string
}

// ExecPlayer plays audio by spawning an external player process per track.
//
// Volume is tracked continuously (so fade ramps are observable and reported),
// but an external CLI player only takes volume at spawn time; the latest value
// is applied when the next track starts.
type ExecPlayer struct {
	log  logx.Logger
	argv []string

	mu        sync.Mutex
	cmd       *exec.Cmd
	stopCh    chan struct{}
	stopped   bool // stopCh already closed
	current   *NowPlaying
	volume    float64
	scheduled bool
	queue     []int64
}

func NewExec(cfg Config, log logx.Logger) (*ExecPlayer, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	command := strings.TrimSpace(cfg.Command)
	if command == "" {
		command = DefaultCommand
	}
	argv, err := shellquote.Split(command)
	if err != nil {
		return nil, fmt.Errorf("player.command: %w", err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("player.command is empty")
	}
	return &ExecPlayer{log: log, argv: argv, volume: 1.0}, nil
}

func (p *ExecPlayer) SetQueue(audioIDs []int64, autoPlay bool) {
	p.mu.Lock()
	p.queue = append([]int64(nil), audioIDs...)
	p.mu.Unlock()
	_ = autoPlay // queue advance is driven by the caller, not the device
}

func (p *ExecPlayer) SetScheduled(scheduled bool) {
	p.mu.Lock()
	p.scheduled = scheduled
	p.mu.Unlock()
}

func (p *ExecPlayer) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	p.mu.Lock()
	p.volume = v
	p.mu.Unlock()
}

func (p *ExecPlayer) Play(path string, audioID int64, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.killLocked()

	args := make([]string, 0, len(p.argv))
	vol := strconv.Itoa(int(p.volume*100 + 0.5))
	for _, a := range p.argv {
		a = strings.ReplaceAll(a, "{path}", path)
		a = strings.ReplaceAll(a, "{volume}", vol)
		args = append(args, a)
	}

	cmd := exec.Command(args[0], args[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", args[0], err)
	}

	p.cmd = cmd
	p.stopCh = make(chan struct{})
	p.stopped = false
	p.current = &NowPlaying{AudioID: audioID, Name: name, Path: path, StartedAt: time.Now()}
	p.log.Debug("playback started",
		logx.Int64("audio_id", audioID),
		logx.String("name", name),
		logx.String("path", path))

	// Reap the process so a naturally-finished track clears the current slot.
	go p.reap(cmd)
	return nil
}

func (p *ExecPlayer) reap(cmd *exec.Cmd) {
	err := cmd.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd != cmd {
		// A newer Play (or Stop) already replaced this process.
		return
	}
	p.cmd = nil
	p.current = nil
	if err != nil && !p.stopped {
		p.log.Warn("player process exited abnormally", logx.Err(err))
	}
}

func (p *ExecPlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.killLocked()
	if p.stopCh != nil && !p.stopped {
		p.stopped = true
		close(p.stopCh)
	}
}

// killLocked terminates the running process, if any. Caller holds p.mu.
func (p *ExecPlayer) killLocked() {
	if p.cmd == nil || p.cmd.Process == nil {
		p.cmd = nil
		p.current = nil
		return
	}
	_ = p.cmd.Process.Kill()
	p.cmd = nil
	p.current = nil
}

func (p *ExecPlayer) StopSignal() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopCh == nil {
		// Never played: return a channel that never fires.
		p.stopCh = make(chan struct{})
	}
	return p.stopCh
}

// Status reports a snapshot of the device for the now-playing surface.
func (p *ExecPlayer) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := Status{
		Playing:   p.cmd != nil,
		Volume:    p.volume,
		Scheduled: p.scheduled,
		Queue:     append([]int64(nil), p.queue...),
	}
	if p.current != nil {
		cp := *p.current
		st.Current = &cp
	}
	return st
}
