package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/eric-livezey/void-bot/internal/observe"
	"github.com/eric-livezey/void-bot/pkg/audio"
)

// errorBuffer is the capacity of a player's asynchronous error channel.
const errorBuffer = 16

// Status is the observable state of a [Player].
type Status int

const (
	// StatusIdle means nothing is playing.
	StatusIdle Status = iota

	// StatusPlaying means a track is playing or being prepared for playback.
	StatusPlaying

	// StatusPaused means the current track is paused.
	StatusPaused
)

// String returns the human-readable name of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// PlayerOption is a functional option for [NewPlayer].
type PlayerOption func(*Player)

// WithVolume sets the initial volume. Negative values are ignored.
func WithVolume(v float64) PlayerOption {
	return func(p *Player) {
		if v >= 0 && !math.IsNaN(v) {
			p.volume = v
		}
	}
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) PlayerOption {
	return func(p *Player) { p.metrics = m }
}

// Player is the playback state machine of one guild. It owns a [Queue], plays
// one track at a time through its sink, and advances automatically when the
// sink reports that a resource ended.
//
// Advances run on a single internal goroutine, so two sink events can never
// shift the queue twice. Asynchronous failures are delivered on [Player.Errors].
//
// All exported methods are safe for concurrent use.
type Player struct {
	guildID  string
	sink     audio.Sink
	platform audio.Platform
	queue    *Queue
	metrics  *observe.Metrics

	errs    chan error
	advance chan uint64
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once

	mu         sync.Mutex
	conn       audio.Connection
	detach     func()
	nowPlaying *Track
	current    *audio.Resource
	loop       bool
	volume     float64

	// gen is bumped whenever nowPlaying is replaced or cleared. A playback
	// whose resolution finishes under a stale generation is abandoned.
	gen uint64
}

// NewPlayer creates a player for guildID that outputs through sink. platform
// is consulted for the guild's voice connection when none has been bound with
// [Player.SetConnection]; it may be nil.
func NewPlayer(guildID string, sink audio.Sink, platform audio.Platform, opts ...PlayerOption) *Player {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Player{
		guildID:  guildID,
		sink:     sink,
		platform: platform,
		queue:    NewQueue(),
		errs:     make(chan error, errorBuffer),
		advance:  make(chan uint64, 1),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		volume:   1,
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	go p.run()
	return p
}

// GuildID returns the guild the player belongs to.
func (p *Player) GuildID() string { return p.guildID }

// Queue returns the player's queue.
func (p *Player) Queue() *Queue { return p.queue }

// Errors delivers asynchronous failures: sink errors, connection errors, and
// tracks that failed to resolve during an automatic advance.
func (p *Player) Errors() <-chan error { return p.errs }

// Done is closed when the player is destroyed.
func (p *Player) Done() <-chan struct{} { return p.done }

// NowPlaying returns the current track, or nil.
func (p *Player) NowPlaying() *Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nowPlaying
}

// Resource returns the resource of the current track once playback started,
// or nil.
func (p *Player) Resource() *audio.Resource {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Status returns the player's state.
func (p *Player) Status() Status {
	p.mu.Lock()
	playing := p.nowPlaying != nil
	p.mu.Unlock()
	switch {
	case !playing:
		return StatusIdle
	case p.sink.Status() == audio.SinkPaused:
		return StatusPaused
	default:
		return StatusPlaying
	}
}

// Loop reports whether the current track repeats.
func (p *Player) Loop() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loop
}

// SetLoop enables or disables repeating the current track.
func (p *Player) SetLoop(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loop = enabled
}

// Volume returns the gain multiplier applied to played tracks.
func (p *Player) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// SetVolume changes the gain multiplier. The current track is adjusted
// immediately. Negative values return [ErrInvalidVolume] and leave the volume
// unchanged.
func (p *Player) SetVolume(v float64) error {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidVolume, v)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = v
	if p.current != nil {
		p.current.SetVolume(v)
	}
	return nil
}

// Connection returns the bound voice connection, or nil.
func (p *Player) Connection() audio.Connection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn
}

// Enqueue plays t immediately when the player is idle and returns 0, or
// appends it to the queue and returns its 1-based position. When immediate
// playback fails it returns -1 and the error.
func (p *Player) Enqueue(ctx context.Context, t *Track) (int, error) {
	if pos, ok := p.pushIfBusy(t); ok {
		return pos, nil
	}
	if !p.ready() {
		p.stop()
		p.metrics.RecordTrackFailed(ctx, "connection")
		return -1, ErrNotConnected
	}

	p.mu.Lock()
	if p.nowPlaying != nil {
		// Another caller started playback while the connection was checked.
		pos := p.queue.Push(t)
		p.mu.Unlock()
		return pos, nil
	}
	gen := p.claimLocked(t)
	p.mu.Unlock()

	if err := p.start(ctx, t, gen); err != nil {
		return -1, err
	}
	return 0, nil
}

func (p *Player) pushIfBusy(t *Track) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.nowPlaying == nil {
		return 0, false
	}
	return p.queue.Push(t), true
}

// play makes t the current track and starts it.
func (p *Player) play(ctx context.Context, t *Track) error {
	if !p.ready() {
		p.stop()
		p.metrics.RecordTrackFailed(ctx, "connection")
		return ErrNotConnected
	}
	p.mu.Lock()
	gen := p.claimLocked(t)
	p.mu.Unlock()
	return p.start(ctx, t, gen)
}

func (p *Player) claimLocked(t *Track) uint64 {
	p.nowPlaying = t
	p.current = nil
	p.gen++
	return p.gen
}

// start resolves t outside the lock and hands the resource to the sink unless
// another operation replaced the current track in the meantime.
func (p *Player) start(ctx context.Context, t *Track, gen uint64) error {
	res, err := t.Resolve(ctx)

	p.mu.Lock()
	if p.gen != gen {
		p.mu.Unlock()
		slog.Debug("playback: discarding superseded track", "guild_id", p.guildID, "title", t.Title)
		if res != nil {
			_ = res.Close()
		}
		return nil
	}
	if err != nil {
		p.nowPlaying = nil
		p.gen++
		p.mu.Unlock()
		p.metrics.RecordTrackFailed(ctx, "resolution")
		return err
	}
	res.SetVolume(p.volume)
	p.current = res
	p.mu.Unlock()

	p.sink.Play(res)
	if p.sink.Status() == audio.SinkPaused {
		p.sink.Unpause()
	}
	p.metrics.TracksPlayed.Add(ctx, 1)
	slog.Debug("playback: playing", "guild_id", p.guildID, "title", t.Title)
	return nil
}

// next advances after the current resource ended. It only runs on the player
// goroutine.
func (p *Player) next(ctx context.Context) {
	if p.sink.Status() != audio.SinkIdle {
		// The resulting sink event re-enters next.
		p.sink.Stop(true)
		return
	}

	p.mu.Lock()
	loop, cur := p.loop, p.nowPlaying
	p.mu.Unlock()

	if loop && cur != nil {
		cur.Reset()
		err := p.play(ctx, cur)
		if err == nil {
			return
		}
		p.fail(err)
		p.SetLoop(false)
	}

	for {
		t := p.queue.Shift()
		if t == nil {
			p.stop()
			return
		}
		err := p.play(ctx, t)
		if err == nil {
			return
		}
		p.fail(err)
	}
}

// Pause suspends playback. It reports false when nothing is playing or the
// player is already paused.
func (p *Player) Pause() (bool, error) {
	if p.NowPlaying() == nil || p.sink.Status() != audio.SinkPlaying {
		return false, nil
	}
	if !p.sink.Pause() {
		return false, ErrPauseFailed
	}
	return true, nil
}

// Unpause resumes playback. It reports false when the player is not paused.
func (p *Player) Unpause() (bool, error) {
	if p.NowPlaying() == nil || p.sink.Status() != audio.SinkPaused {
		return false, nil
	}
	if !p.sink.Unpause() {
		return false, ErrUnpauseFailed
	}
	return true, nil
}

// Skip disables loop and advances to the next queued track. It returns the
// track that was playing, or nil.
func (p *Player) Skip() *Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loop = false
	t := p.nowPlaying
	if t == nil {
		return nil
	}

	// Stopping under the lock keeps the player goroutine from starting the
	// next track in between; the end event is handled after we return.
	if p.current != nil && p.sink.Stop(true) {
		return t
	}

	// The sink is idle: t is still resolving or its end event is pending.
	// Abandon it and let the player goroutine advance. The request is tied
	// to the new generation so it is dropped if playback moves on first.
	p.gen++
	p.current = nil
	for {
		select {
		case p.advance <- p.gen:
			return t
		default:
			select {
			case <-p.advance:
			default:
			}
		}
	}
}

// Stop clears the queue and the current track, disables loop, and idles the
// sink.
func (p *Player) Stop() {
	p.stop()
}

func (p *Player) stop() {
	p.mu.Lock()
	p.queue.Clear()
	p.loop = false
	p.nowPlaying = nil
	p.current = nil
	p.gen++
	p.mu.Unlock()
	p.sink.Stop(true)
}

// SetConnection binds the player's output to conn, unbinding any previous
// connection first. A nil or unusable connection stops the player. A bound
// connection that later disconnects stops the player too.
func (p *Player) SetConnection(conn audio.Connection) {
	p.mu.Lock()
	if p.detach != nil {
		p.detach()
		p.detach = nil
	}
	p.conn = nil
	if conn == nil || !conn.Status().Usable() {
		p.mu.Unlock()
		p.stop()
		return
	}
	p.conn = conn
	p.detach = p.sink.Attach(conn.OutputStream())
	p.mu.Unlock()

	conn.OnStateChange(func(ev audio.ConnectionEvent) {
		p.connectionChanged(conn, ev)
	})
}

func (p *Player) connectionChanged(conn audio.Connection, ev audio.ConnectionEvent) {
	p.mu.Lock()
	if p.conn != conn {
		p.mu.Unlock()
		return
	}
	lost := !ev.New.Usable()
	if lost {
		if p.detach != nil {
			p.detach()
			p.detach = nil
		}
		p.conn = nil
	}
	p.mu.Unlock()

	if ev.Err != nil {
		p.metrics.RecordTrackFailed(p.ctx, "connection")
		p.fail(fmt.Errorf("playback: voice connection %s: %w", ev.New, ev.Err))
	}
	if lost {
		slog.Info("playback: voice connection lost", "guild_id", p.guildID, "status", ev.New.String())
		p.stop()
	}
}

// ready reports whether a usable voice connection is bound, binding the
// platform's live connection for the guild when there is one.
func (p *Player) ready() bool {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn != nil && conn.Status() == audio.ConnReady {
		return true
	}
	if p.platform == nil {
		return false
	}
	live := p.platform.Connection(p.guildID)
	if live == nil || live.Status() != audio.ConnReady {
		return false
	}
	p.SetConnection(live)
	return true
}

// Destroy stops the player and releases its goroutine and sink. The player
// must not be used afterwards.
func (p *Player) Destroy() {
	p.once.Do(func() {
		p.stop()
		p.mu.Lock()
		if p.detach != nil {
			p.detach()
			p.detach = nil
		}
		p.conn = nil
		p.mu.Unlock()
		p.cancel()
		close(p.done)
		if c, ok := p.sink.(io.Closer); ok {
			if err := c.Close(); err != nil {
				slog.Warn("playback: close sink", "guild_id", p.guildID, "err", err)
			}
		}
	})
}

// run consumes sink events and advance requests until the player is destroyed.
func (p *Player) run() {
	for {
		select {
		case <-p.done:
			return
		case ev := <-p.sink.Events():
			p.handleSinkEvent(ev)
		case gen := <-p.advance:
			p.mu.Lock()
			stale := gen != p.gen
			p.mu.Unlock()
			if !stale {
				p.next(p.ctx)
			}
		}
	}
}

func (p *Player) handleSinkEvent(ev audio.SinkEvent) {
	p.mu.Lock()
	if ev.Resource == nil || ev.Resource != p.current {
		p.mu.Unlock()
		return
	}
	p.current = nil
	p.mu.Unlock()

	if ev.Err != nil {
		p.metrics.RecordTrackFailed(p.ctx, "sink")
		p.fail(fmt.Errorf("playback: sink: %w", ev.Err))
		p.SetLoop(false)
	}
	p.next(p.ctx)
}

// fail reports err on the error channel.
func (p *Player) fail(err error) {
	if errors.Is(err, context.Canceled) && p.ctx.Err() != nil {
		return
	}
	select {
	case p.errs <- err:
	default:
		slog.Warn("playback: error channel full", "guild_id", p.guildID, "err", err)
	}
}
