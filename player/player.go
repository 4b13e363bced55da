// Package player implements a video playback session: open a media URI,
// decode it on a dedicated goroutine, pace frames against the wall clock,
// and hand each one to the caller through a callback. The control surface
// (pause, resume, percent seek, close) is safe for concurrent use.
package player

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"playcore/media"
)

// readErrorBackoff is how long the decode loop sleeps after a transient
// read error before retrying.
const readErrorBackoff = 5 * time.Millisecond

// PlaybackStats is a point-in-time snapshot of session counters.
type PlaybackStats struct {
	FramesDelivered int64
	PositionMills   int64
	UptimeMs        int64
}

// task is one decode-loop incarnation. Pause and seek tear the task down
// and a later resume starts a fresh one; the engine underneath survives
// across tasks.
type task struct {
	stop atomic.Bool
	done chan struct{}
}

// Player is a single playback session. The zero value is not usable; call
// New. A Player moves through closed -> open (running or paused) -> closed;
// Open after Close is allowed and starts over with a fresh engine.
type Player struct {
	log *slog.Logger

	// ctl serializes the control surface: exactly one of Open, Close,
	// Pause, Resume, SeekToPercent runs at a time, and task joins happen
	// while holding it. Without this, a second control caller could slip
	// past an in-flight join and free the engine under the decode loop.
	// The decode loop and the getters never take ctl.
	ctl sync.Mutex

	// mu guards the structural fields below against concurrent getters.
	// Never held across a task join.
	mu   sync.Mutex
	eng  engine
	opts Options
	info media.VideoInfo
	cur  *task

	running         atomic.Bool
	currentMills    atomic.Int64
	framesDelivered atomic.Int64
	startedAt       time.Time
}

// New returns an idle player. A nil logger falls back to slog.Default.
func New(log *slog.Logger) *Player {
	if log == nil {
		log = slog.Default()
	}
	return &Player{log: log.With("component", "player")}
}

// Open loads uri, discovers its properties, and starts playback. It fails
// with ErrInvalidState when a session is already open. On success the
// VideoInfoCallback (if any) fires exactly once before Open returns, and
// frame delivery begins on a background goroutine.
func (p *Player) Open(uri string, opts Options) error {
	p.ctl.Lock()

	p.mu.Lock()
	open := p.eng != nil
	p.mu.Unlock()
	if open {
		p.ctl.Unlock()
		return ErrInvalidState
	}

	eng, err := newEngine(uri, opts, p.log)
	if err != nil {
		p.ctl.Unlock()
		return err
	}

	startMills := int64(0)
	if opts.StartMills > 0 {
		if serr := eng.SeekMills(opts.StartMills); serr != nil {
			p.log.Warn("start position seek failed, starting at zero",
				"start_ms", opts.StartMills, "error", serr)
		} else {
			startMills = opts.StartMills
		}
	}

	p.mu.Lock()
	p.eng = eng
	p.opts = opts
	p.info = eng.Info()
	p.currentMills.Store(startMills)
	p.framesDelivered.Store(0)
	p.startedAt = time.Now()
	p.startTaskLocked()
	info := p.info
	p.mu.Unlock()
	p.ctl.Unlock()

	if opts.VideoInfoCallback != nil {
		opts.VideoInfoCallback(info)
	}
	p.log.Info("session opened",
		"uri", uri,
		"duration_ms", info.DurationMills,
		"size", info.Width*info.Height,
		"start_ms", startMills,
	)
	return nil
}

// startTaskLocked spawns a fresh decode loop. Caller holds p.mu.
func (p *Player) startTaskLocked() {
	t := &task{done: make(chan struct{})}
	p.cur = t
	p.running.Store(true)
	go p.playLoop(t)
}

// stopTask signals the current task and waits for its goroutine to finish.
// Caller must hold ctl; the join happens outside mu so the loop can drain
// without deadlocking against getters.
func (p *Player) stopTask() {
	p.mu.Lock()
	t := p.cur
	p.cur = nil
	p.mu.Unlock()

	if t == nil {
		return
	}
	t.stop.Store(true)
	<-t.done
	p.running.Store(false)
}

// Pause stops frame delivery, keeping the decoder positioned where it is.
// Pausing an already-paused or closed session is a no-op.
func (p *Player) Pause() {
	p.ctl.Lock()
	defer p.ctl.Unlock()
	p.stopTask()
}

// Resume restarts delivery from the current position. It fails with
// ErrInvalidState when the session is closed or already running.
func (p *Player) Resume() error {
	p.ctl.Lock()
	defer p.ctl.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.eng == nil {
		return ErrInvalidState
	}
	if p.cur != nil {
		return ErrInvalidState
	}
	p.startTaskLocked()
	return nil
}

// SeekToPercent repositions the session at pct of its duration, where pct
// is clamped to [0,1]. NaN is rejected with ErrInvalidParameter. Delivery
// is stopped for the duration of the seek; on success it restarts at the
// new position, on failure the session stays paused at an unspecified
// position and a further seek or Resume is required.
func (p *Player) SeekToPercent(pct float64) error {
	if math.IsNaN(pct) {
		return ErrInvalidParameter
	}
	if pct < 0 {
		pct = 0
	} else if pct > 1 {
		pct = 1
	}

	p.ctl.Lock()
	defer p.ctl.Unlock()
	p.stopTask()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.eng == nil {
		return ErrInvalidState
	}
	targetMills, err := p.eng.SeekPercent(pct)
	if err != nil {
		p.log.Error("seek failed", "pct", pct, "error", err)
		return err
	}
	p.currentMills.Store(targetMills)
	p.startTaskLocked()
	p.log.Debug("seek", "pct", pct, "target_ms", targetMills)
	return nil
}

// Close stops delivery and releases the engine. Safe to call repeatedly
// and on a never-opened player.
func (p *Player) Close() {
	p.ctl.Lock()
	defer p.ctl.Unlock()
	p.stopTask()

	p.mu.Lock()
	eng := p.eng
	p.eng = nil
	p.mu.Unlock()

	if eng != nil {
		eng.Close()
		p.log.Info("session closed",
			"frames_delivered", p.framesDelivered.Load(),
			"position_ms", p.currentMills.Load(),
		)
	}
}

// IsRunning reports whether a decode loop is currently delivering frames.
func (p *Player) IsRunning() bool { return p.running.Load() }

// PlayingMills returns the presentation time of the most recently
// delivered frame in milliseconds.
func (p *Player) PlayingMills() int64 { return p.currentMills.Load() }

// DurationMills returns the media duration, 0 when no session is open.
func (p *Player) DurationMills() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.eng == nil {
		return 0
	}
	return p.eng.DurationMills()
}

// Info returns the property snapshot of the open session. The zero value
// is returned when no session is open.
func (p *Player) Info() media.VideoInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.eng == nil {
		return media.VideoInfo{}
	}
	return p.info
}

// Stats returns a snapshot of the session counters.
func (p *Player) Stats() PlaybackStats {
	p.mu.Lock()
	startedAt := p.startedAt
	open := p.eng != nil
	p.mu.Unlock()

	var uptime int64
	if open && !startedAt.IsZero() {
		uptime = time.Since(startedAt).Milliseconds()
	}
	return PlaybackStats{
		FramesDelivered: p.framesDelivered.Load(),
		PositionMills:   p.currentMills.Load(),
		UptimeMs:        uptime,
	}
}

// playLoop is the decode loop: read, pace, deliver, until the task is
// stopped. Each frame's presentation timestamp is measured against a
// baseline anchored at loop start minus the current position, so a resumed
// or seeked loop continues at the right wall-clock rate. End of stream
// restarts at position zero, looping forever.
func (p *Player) playLoop(t *task) {
	defer close(t.done)

	// Hardware-adjacent decoder backends require a stable OS thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	p.mu.Lock()
	eng := p.eng
	cb := p.opts.FrameCallback
	p.mu.Unlock()
	if eng == nil {
		return
	}

	// Baseline is established lazily from the first frame's pts so that
	// decoder startup cost does not count against the schedule.
	baselineUS := int64(-1)

	for !t.stop.Load() {
		frame, err := eng.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				p.log.Debug("end of stream, restarting")
				eng.RestartAtStart()
				p.currentMills.Store(0)
				baselineUS = -1
				continue
			}
			p.log.Warn("read frame", "error", err)
			time.Sleep(readErrorBackoff)
			continue
		}

		if baselineUS < 0 {
			baselineUS = time.Now().UnixMicro() - p.currentMills.Load()*1000
		}
		if wait := frame.PTS - (time.Now().UnixMicro() - baselineUS); wait > 0 {
			time.Sleep(time.Duration(wait) * time.Microsecond)
		}
		if t.stop.Load() {
			return
		}

		p.currentMills.Store(frame.PTS / 1000)
		if cb != nil {
			cb(frame)
		}
		p.framesDelivered.Add(1)
	}
}
