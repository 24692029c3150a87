// Package audio defines the contracts between the playback engine and the
// audio transport:
//
//   - [Sink] plays one [Resource] at a time, pushes PCM [AudioFrame] values to
//     an attached output, and reports terminal state changes.
//   - [Connection] is an active voice channel session that accepts frames on
//     its output stream and reports lifecycle changes.
//   - [Platform] joins voice channels and looks up live connections per guild.
//
// Implementations live in adapter packages (audio/sink, audio/discord). The
// interfaces are kept narrow so the playback engine never sees transport types.
package audio

import (
	"context"
)

// SinkStatus is the operating state of a [Sink].
type SinkStatus int

const (
	// SinkIdle means no resource is loaded.
	SinkIdle SinkStatus = iota

	// SinkBuffering means a resource is loaded and its decoder is starting.
	SinkBuffering

	// SinkPlaying means frames are being produced.
	SinkPlaying

	// SinkPaused means a resource is loaded but frame output is suspended.
	SinkPaused
)

// String returns the human-readable name of the status.
func (s SinkStatus) String() string {
	switch s {
	case SinkIdle:
		return "idle"
	case SinkBuffering:
		return "buffering"
	case SinkPlaying:
		return "playing"
	case SinkPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// SinkEvent reports that a resource stopped occupying a [Sink]. It is sent
// exactly once per resource that ends, fails, or is stopped.
type SinkEvent struct {
	// Resource is the resource that was active before the transition.
	Resource *Resource

	// Old is the status before the transition. New is always [SinkIdle].
	Old SinkStatus

	// Err is non-nil when playback ended because of a decode or read failure.
	Err error
}

// Sink is an audio player that outputs one [Resource] at a time.
//
// Implementations must be safe for concurrent use.
type Sink interface {
	// Play starts playing res, replacing any current resource without emitting
	// a terminal event for the replaced one.
	Play(res *Resource)

	// Pause suspends output. Returns false when nothing is playing.
	Pause() bool

	// Unpause resumes output. Returns false when the sink is not paused.
	Unpause() bool

	// Stop ends the current resource. When force is false the sink flushes a
	// short run of silence first. Returns false when the sink was already idle.
	Stop(force bool) bool

	// Status returns the current status.
	Status() SinkStatus

	// Attach routes frames to out until the returned detach func is called.
	// Attaching replaces any previous output.
	Attach(out chan<- AudioFrame) (detach func())

	// Events delivers terminal transitions. There is a single consumer.
	Events() <-chan SinkEvent
}

// ConnectionStatus is the lifecycle state of a [Connection].
type ConnectionStatus int

const (
	// ConnConnecting means the voice handshake is in progress.
	ConnConnecting ConnectionStatus = iota

	// ConnReady means frames written to the output stream are transmitted.
	ConnReady

	// ConnDisconnected means the platform dropped the session.
	ConnDisconnected

	// ConnDestroyed means Disconnect was called. Terminal.
	ConnDestroyed
)

// String returns the human-readable name of the status.
func (s ConnectionStatus) String() string {
	switch s {
	case ConnConnecting:
		return "connecting"
	case ConnReady:
		return "ready"
	case ConnDisconnected:
		return "disconnected"
	case ConnDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Usable reports whether a connection in this state can carry audio.
func (s ConnectionStatus) Usable() bool {
	return s == ConnConnecting || s == ConnReady
}

// ConnectionEvent describes a lifecycle change of a [Connection].
type ConnectionEvent struct {
	Old, New ConnectionStatus

	// Err is set when the change was caused by a transport failure.
	Err error
}

// Connection represents an active session on a voice channel.
//
// Implementations must be safe for concurrent use.
type Connection interface {
	// GuildID returns the guild the connection belongs to.
	GuildID() string

	// ChannelID returns the voice channel currently joined.
	ChannelID() string

	// Status returns the current lifecycle state.
	Status() ConnectionStatus

	// OutputStream returns the channel that accepts 48 kHz stereo PCM frames
	// for transmission. The platform never closes it.
	OutputStream() chan<- AudioFrame

	// OnStateChange registers cb for lifecycle changes. Only one callback may be
	// registered; subsequent calls replace the previous one. The callback is
	// invoked on an internal goroutine.
	OnStateChange(cb func(ConnectionEvent))

	// Disconnect leaves the channel. It is safe to call more than once.
	Disconnect() error
}

// Platform joins voice channels.
//
// Implementations must be safe for concurrent use.
type Platform interface {
	// Connect joins channelID in guildID. Joining another channel in a guild
	// that already has a connection moves that connection.
	Connect(ctx context.Context, guildID, channelID string) (Connection, error)

	// Connection returns the live connection for guildID, or nil.
	Connection(guildID string) Connection
}
