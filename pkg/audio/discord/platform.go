// Package discord provides an [audio.Platform] implementation backed by
// Discord voice channels via the bwmarrin/discordgo library. It bridges the
// PCM [audio.AudioFrame] output of a player with Discord's Opus transport.
//
// The platform requires an active *discordgo.Session owned by the bot layer.
// It holds at most one [Connection] per guild; connecting to another channel
// in the same guild moves the existing connection.
package discord

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/eric-livezey/void-bot/pkg/audio"
)

var _ audio.Platform = (*Platform)(nil)

// Platform implements [audio.Platform] using discordgo voice connections.
//
// Platform is safe for concurrent use.
type Platform struct {
	session *discordgo.Session

	mu    sync.Mutex
	conns map[string]*Connection

	// join is session.ChannelVoiceJoin. Overridden in tests.
	join func(guildID, channelID string, mute, deaf bool) (*discordgo.VoiceConnection, error)
}

// New creates a Platform for the given session.
func New(session *discordgo.Session) *Platform {
	return &Platform{
		session: session,
		conns:   make(map[string]*Connection),
		join:    session.ChannelVoiceJoin,
	}
}

// Connect joins the voice channel identified by channelID in guildID and
// returns the guild's [audio.Connection]. If the bot already has a live
// connection in the guild it is moved and returned. The supplied ctx governs
// the setup phase only.
func (p *Platform) Connect(ctx context.Context, guildID, channelID string) (audio.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("discord: join voice channel %q: %w", channelID, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Join unmuted and deafened: the bot only sends audio.
	vc, err := p.join(guildID, channelID, false, true)
	if err != nil {
		return nil, fmt.Errorf("discord: join voice channel %q: %w", channelID, err)
	}

	if existing, ok := p.conns[guildID]; ok {
		if existing.vc == vc && existing.Status() != audio.ConnDestroyed {
			existing.moved(channelID)
			return existing, nil
		}
		delete(p.conns, guildID)
	}

	conn := newConnection(vc, p.session, guildID, channelID)
	conn.onClose = p.forget
	p.conns[guildID] = conn
	return conn, nil
}

// Connection returns the live connection for guildID, or nil.
func (p *Platform) Connection(guildID string) audio.Connection {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.conns[guildID]; ok {
		return c
	}
	return nil
}

// forget drops c from the connection map if it is still registered.
func (p *Platform) forget(c *Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conns[c.guildID] == c {
		delete(p.conns, c.guildID)
	}
}

// DisconnectAll disconnects every live connection, ignoring errors. Used on
// shutdown.
func (p *Platform) DisconnectAll() {
	p.mu.Lock()
	conns := make([]*Connection, 0, len(p.conns))
	for _, c := range p.conns {
		conns = append(conns, c)
	}
	p.mu.Unlock()

	for _, c := range conns {
		_ = c.Disconnect()
	}
}
