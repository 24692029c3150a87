// Package mock provides in-memory mock implementations of the [audio.Sink],
// [audio.Connection], and [audio.Platform] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record method calls so that
// tests can assert on call counts and arguments, and they expose exported
// fields that the test can set to control behaviour.
//
// Typical usage:
//
//	sink := mock.NewSink()
//	conn := mock.NewConnection("guild-1", "voice-1")
//	platform := &mock.Platform{ConnectResult: conn}
//	p := playback.NewPlayer("guild-1", sink, platform)
//	p.SetConnection(conn)
//	...
//	sink.Finish(nil) // simulate the current resource ending
package mock

import (
	"context"
	"sync"

	"github.com/eric-livezey/void-bot/pkg/audio"
)

// ─── Sink ─────────────────────────────────────────────────────────────────────

// Sink is a mock implementation of [audio.Sink]. Play moves it straight to
// [audio.SinkPlaying]; use [Sink.Finish] to end the current resource.
type Sink struct {
	mu sync.Mutex

	status  audio.SinkStatus
	current *audio.Resource
	events  chan audio.SinkEvent

	// RefusePause makes Pause and Unpause report failure.
	RefusePause bool

	// Played records every resource passed to Play, in order.
	Played []*audio.Resource

	// StopCalls records the force argument of each Stop call.
	StopCalls []bool

	// Outputs records every channel passed to Attach.
	Outputs []chan<- audio.AudioFrame

	// CallCountDetach records how many times a detach func was called.
	CallCountDetach int
}

// NewSink returns an idle mock sink.
func NewSink() *Sink {
	return &Sink{events: make(chan audio.SinkEvent, 16)}
}

// Play implements [audio.Sink].
func (s *Sink) Play(res *audio.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Played = append(s.Played, res)
	s.current = res
	s.status = audio.SinkPlaying
}

// Pause implements [audio.Sink].
func (s *Sink) Pause() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.RefusePause || s.status != audio.SinkPlaying {
		return false
	}
	s.status = audio.SinkPaused
	return true
}

// Unpause implements [audio.Sink].
func (s *Sink) Unpause() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.RefusePause || s.status != audio.SinkPaused {
		return false
	}
	s.status = audio.SinkPlaying
	return true
}

// Stop implements [audio.Sink]. It idles the sink immediately and emits a
// terminal event for the current resource.
func (s *Sink) Stop(force bool) bool {
	s.mu.Lock()
	s.StopCalls = append(s.StopCalls, force)
	if s.status == audio.SinkIdle {
		s.mu.Unlock()
		return false
	}
	ev := s.idleLocked(nil)
	s.mu.Unlock()
	s.events <- ev
	return true
}

// Status implements [audio.Sink].
func (s *Sink) Status() audio.SinkStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Attach implements [audio.Sink].
func (s *Sink) Attach(out chan<- audio.AudioFrame) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Outputs = append(s.Outputs, out)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.CallCountDetach++
	}
}

// Events implements [audio.Sink].
func (s *Sink) Events() <-chan audio.SinkEvent {
	return s.events
}

// Current returns the resource most recently passed to Play, or nil once the
// sink has idled.
func (s *Sink) Current() *audio.Resource {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// PlayCount returns len(Played).
func (s *Sink) PlayCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Played)
}

// Finish ends the current resource as if it had played out (err == nil) or
// failed (err != nil). It reports false when the sink was idle.
func (s *Sink) Finish(err error) bool {
	s.mu.Lock()
	if s.status == audio.SinkIdle {
		s.mu.Unlock()
		return false
	}
	ev := s.idleLocked(err)
	s.mu.Unlock()
	s.events <- ev
	return true
}

// SetStatus forces the sink status without emitting an event.
func (s *Sink) SetStatus(st audio.SinkStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
}

func (s *Sink) idleLocked(err error) audio.SinkEvent {
	ev := audio.SinkEvent{Resource: s.current, Old: s.status, Err: err}
	s.status = audio.SinkIdle
	s.current = nil
	return ev
}

// ─── Connection ───────────────────────────────────────────────────────────────

// Connection is a mock implementation of [audio.Connection]. A new
// connection is ready and has a buffered output stream.
type Connection struct {
	mu sync.Mutex

	guildID   string
	channelID string
	status    audio.ConnectionStatus
	output    chan audio.AudioFrame
	cb        func(audio.ConnectionEvent)

	// DisconnectError is returned by [Connection.Disconnect].
	DisconnectError error

	// CallCountDisconnect records how many times Disconnect was called.
	CallCountDisconnect int

	// CallCountOnStateChange records how many times OnStateChange was called.
	CallCountOnStateChange int
}

// NewConnection returns a ready mock connection.
func NewConnection(guildID, channelID string) *Connection {
	return &Connection{
		guildID:   guildID,
		channelID: channelID,
		status:    audio.ConnReady,
		output:    make(chan audio.AudioFrame, 64),
	}
}

// GuildID implements [audio.Connection].
func (c *Connection) GuildID() string { return c.guildID }

// ChannelID implements [audio.Connection].
func (c *Connection) ChannelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channelID
}

// Status implements [audio.Connection].
func (c *Connection) Status() audio.ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// OutputStream implements [audio.Connection].
func (c *Connection) OutputStream() chan<- audio.AudioFrame {
	return c.output
}

// Frames returns the receive side of the output stream.
func (c *Connection) Frames() <-chan audio.AudioFrame {
	return c.output
}

// OnStateChange implements [audio.Connection]. The callback replaces any
// previous one. Use [Connection.SetStatus] to trigger it.
func (c *Connection) OnStateChange(cb func(audio.ConnectionEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountOnStateChange++
	c.cb = cb
}

// Disconnect implements [audio.Connection]. It moves the connection to
// [audio.ConnDestroyed] and returns DisconnectError.
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	c.CallCountDisconnect++
	err := c.DisconnectError
	c.mu.Unlock()
	c.SetStatus(audio.ConnDestroyed, nil)
	return err
}

// SetStatus transitions the connection and synchronously invokes the
// registered callback when the status changed or err is non-nil.
func (c *Connection) SetStatus(s audio.ConnectionStatus, err error) {
	c.mu.Lock()
	old := c.status
	c.status = s
	cb := c.cb
	c.mu.Unlock()
	if cb != nil && (old != s || err != nil) {
		cb(audio.ConnectionEvent{Old: old, New: s, Err: err})
	}
}

// ─── Platform ─────────────────────────────────────────────────────────────────

// ConnectCall records the arguments of a single [Platform.Connect] invocation.
type ConnectCall struct {
	GuildID   string
	ChannelID string
}

// Platform is a mock implementation of [audio.Platform].
type Platform struct {
	mu sync.Mutex

	// ConnectResult is returned by Connect when non-nil. Otherwise Connect
	// creates a fresh [Connection].
	ConnectResult *Connection

	// ConnectError is returned by Connect when non-nil.
	ConnectError error

	// ConnectCalls records all Connect invocations.
	ConnectCalls []ConnectCall

	// Conns maps guild IDs to the connection returned by Connection. Connect
	// populates it.
	Conns map[string]*Connection
}

// Connect implements [audio.Platform].
func (p *Platform) Connect(_ context.Context, guildID, channelID string) (audio.Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConnectCalls = append(p.ConnectCalls, ConnectCall{GuildID: guildID, ChannelID: channelID})
	if p.ConnectError != nil {
		return nil, p.ConnectError
	}
	conn := p.ConnectResult
	if conn == nil {
		conn = NewConnection(guildID, channelID)
	}
	if p.Conns == nil {
		p.Conns = make(map[string]*Connection)
	}
	p.Conns[guildID] = conn
	return conn, nil
}

// Connection implements [audio.Platform].
func (p *Platform) Connection(guildID string) audio.Connection {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.Conns[guildID]; ok {
		return c
	}
	return nil
}
