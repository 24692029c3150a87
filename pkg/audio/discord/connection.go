package discord

import (
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/eric-livezey/void-bot/pkg/audio"
)

var _ audio.Connection = (*Connection)(nil)

const (
	outputChannelBuffer = 16

	// speakingTimeout is how long the send loop waits without frames before
	// clearing the speaking flag.
	speakingTimeout = 250 * time.Millisecond
)

// Connection wraps a discordgo.VoiceConnection for one guild and adapts it to
// [audio.Connection]. PCM frames written to the output stream are encoded to
// Opus and sent to Discord.
//
// Connection is safe for concurrent use.
type Connection struct {
	vc      *discordgo.VoiceConnection
	session *discordgo.Session
	guildID string
	userID  string // the bot's own user ID

	mu        sync.Mutex
	channelID string
	status    audio.ConnectionStatus
	changeCb  func(audio.ConnectionEvent)

	output chan audio.AudioFrame

	done      chan struct{}
	closeOnce sync.Once

	removeHandler func()

	// disconnectVC tears down the voice connection. Overridden in tests.
	disconnectVC func() error

	// speak toggles the speaking flag. Overridden in tests.
	speak func(bool) error

	// onClose is invoked once after Disconnect so the platform can forget us.
	onClose func(*Connection)
}

// newConnection initialises a Connection for an already-joined voice channel
// and starts the send loop.
func newConnection(vc *discordgo.VoiceConnection, session *discordgo.Session, guildID, channelID string) *Connection {
	c := &Connection{
		vc:           vc,
		session:      session,
		guildID:      guildID,
		channelID:    channelID,
		status:       audio.ConnReady,
		output:       make(chan audio.AudioFrame, outputChannelBuffer),
		done:         make(chan struct{}),
		disconnectVC: vc.Disconnect,
		speak:        vc.Speaking,
	}
	if session != nil && session.State != nil && session.State.User != nil {
		c.userID = session.State.User.ID
	}
	if session != nil {
		c.removeHandler = session.AddHandler(c.handleVoiceStateUpdate)
	}

	go c.sendLoop()
	return c
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

// OnStateChange implements [audio.Connection].
func (c *Connection) OnStateChange(cb func(audio.ConnectionEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.changeCb = cb
}

// Disconnect leaves the voice channel and stops the send loop. It is safe to
// call more than once; subsequent calls return nil.
func (c *Connection) Disconnect() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		if c.removeHandler != nil {
			c.removeHandler()
		}
		if c.disconnectVC != nil {
			err = c.disconnectVC()
		}
		c.setStatus(audio.ConnDestroyed, nil)
		if c.onClose != nil {
			c.onClose(c)
		}
	})
	return err
}

// moved records that the bot now sits in channelID, reviving a disconnected
// connection.
func (c *Connection) moved(channelID string) {
	c.mu.Lock()
	c.channelID = channelID
	c.mu.Unlock()
	c.setStatus(audio.ConnReady, nil)
}

// setStatus transitions to s and notifies the callback. Destroyed is terminal.
func (c *Connection) setStatus(s audio.ConnectionStatus, err error) {
	c.mu.Lock()
	old := c.status
	if old == s || old == audio.ConnDestroyed {
		c.mu.Unlock()
		return
	}
	c.status = s
	cb := c.changeCb
	c.mu.Unlock()

	slog.Debug("discord: voice connection state change",
		"guild_id", c.guildID, "from", old.String(), "to", s.String())
	if cb != nil {
		go cb(audio.ConnectionEvent{Old: old, New: s, Err: err})
	}
}

// sendLoop reads PCM frames from the output channel, encodes them to Opus,
// and sends the packets on the voice connection.
func (c *Connection) sendLoop() {
	enc, err := newOpusEncoder()
	if err != nil {
		slog.Error("discord: failed to create opus encoder", "guild_id", c.guildID, "err", err)
		c.setStatus(audio.ConnDisconnected, err)
		return
	}

	idle := time.NewTimer(speakingTimeout)
	defer idle.Stop()
	speaking := false

	// Frames are normally exactly audio.FrameBytes; buffer anything else.
	var buf []byte

	for {
		select {
		case <-c.done:
			if speaking {
				c.setSpeaking(false)
			}
			return
		case <-idle.C:
			if speaking {
				c.setSpeaking(false)
				speaking = false
			}
		case frame := <-c.output:
			if !speaking {
				c.setSpeaking(true)
				speaking = true
			}
			idle.Reset(speakingTimeout)

			buf = append(buf, frame.Data...)
			for len(buf) >= audio.FrameBytes {
				opus, eErr := enc.encode(buf[:audio.FrameBytes])
				buf = buf[audio.FrameBytes:]
				if eErr != nil {
					slog.Warn("discord: opus encode error", "guild_id", c.guildID, "err", eErr)
					continue
				}
				select {
				case c.vc.OpusSend <- opus:
				case <-c.done:
					return
				}
			}
		}
	}
}

// handleVoiceStateUpdate tracks the bot's own voice state in this guild.
func (c *Connection) handleVoiceStateUpdate(_ *discordgo.Session, vsu *discordgo.VoiceStateUpdate) {
	if vsu.VoiceState == nil || vsu.GuildID != c.guildID || vsu.UserID != c.userID || c.userID == "" {
		return
	}
	if vsu.ChannelID == "" {
		c.setStatus(audio.ConnDisconnected, nil)
		return
	}
	if vsu.ChannelID != c.ChannelID() || c.Status() == audio.ConnDisconnected {
		c.moved(vsu.ChannelID)
	}
}

// setSpeaking sends a speaking notification to Discord, logging any errors.
func (c *Connection) setSpeaking(b bool) {
	if err := c.speak(b); err != nil {
		slog.Warn("discord: speaking notification error", "speaking", b, "err", err)
	}
}
