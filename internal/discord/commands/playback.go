// Package commands implements the playback slash commands of voidbot.
//
// Handlers are thin: they validate the invoking member (voice channel, DJ
// role), translate 1-based user positions, and call into the per-guild
// [playback.Player] obtained from the registry.
package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/eric-livezey/void-bot/internal/discord"
	"github.com/eric-livezey/void-bot/internal/playback"
	"github.com/eric-livezey/void-bot/internal/source"
	"github.com/eric-livezey/void-bot/pkg/audio"
	"github.com/eric-livezey/void-bot/pkg/provider/metadata"
)

const defaultTimeout = 30 * time.Second

// Sources turns user input into tracks. It is implemented by
// [*source.Factory].
type Sources interface {
	Resolve(ctx context.Context, input string) (source.Result, error)
	Search(ctx context.Context, s metadata.Searcher, query string) (*playback.Track, error)
	FromURL(rawURL, title string) *playback.Track
}

// VoiceStates reports voice channel membership from the gateway cache. It is
// implemented by [*discord.Bot].
type VoiceStates interface {
	UserVoiceChannel(guildID, userID string) string
}

// Config holds the dependencies of [PlaybackCommands].
type Config struct {
	Players  *playback.Registry
	Sources  Sources
	Platform audio.Platform
	Voice    VoiceStates
	Perms    *discord.PermissionChecker

	// Music backs /play-music. When nil the command is not registered.
	Music metadata.Searcher

	// Timeout bounds joining and resolution per command. Default: 30s.
	Timeout time.Duration
}

// PlaybackCommands holds the dependencies for the playback slash commands.
type PlaybackCommands struct {
	players  *playback.Registry
	sources  Sources
	platform audio.Platform
	voice    VoiceStates
	perms    *discord.PermissionChecker
	music    metadata.Searcher
	timeout  time.Duration
}

// NewPlaybackCommands creates a PlaybackCommands and registers its handlers
// with router.
func NewPlaybackCommands(router *discord.CommandRouter, cfg Config) *PlaybackCommands {
	pc := &PlaybackCommands{
		players:  cfg.Players,
		sources:  cfg.Sources,
		platform: cfg.Platform,
		voice:    cfg.Voice,
		perms:    cfg.Perms,
		music:    cfg.Music,
		timeout:  cfg.Timeout,
	}
	if pc.perms == nil {
		pc.perms = discord.NewPermissionChecker("")
	}
	if pc.timeout <= 0 {
		pc.timeout = defaultTimeout
	}
	pc.Register(router)
	return pc
}

// Register registers every playback command and the queue pager with router.
func (pc *PlaybackCommands) Register(router *discord.CommandRouter) {
	handlers := map[string]discord.HandlerFunc{
		"play":        pc.handlePlay,
		"play-file":   pc.handlePlayFile,
		"play-music":  pc.handlePlayMusic,
		"queue":       pc.handleQueue,
		"now-playing": pc.handleNowPlaying,
		"skip":        pc.handleSkip,
		"pause":       pc.handlePause,
		"resume":      pc.handleResume,
		"stop":        pc.handleStop,
		"loop":        pc.handleLoop,
		"volume":      pc.handleVolume,
		"move":        pc.handleMove,
		"remove":      pc.handleRemove,
		"shuffle":     pc.handleShuffle,
		"clear":       pc.handleClear,
		"join":        pc.handleJoin,
		"leave":       pc.handleLeave,
	}
	for _, def := range pc.Definitions() {
		router.RegisterCommand(def, handlers[def.Name])
	}
	router.RegisterComponentPrefix(queuePagePrefix, pc.handleQueuePage)
}

// Definitions returns the ApplicationCommand definitions for Discord.
func (pc *PlaybackCommands) Definitions() []*discordgo.ApplicationCommand {
	guildOnly := &[]discordgo.InteractionContextType{discordgo.InteractionContextGuild}
	zero := 0.0
	one := 1.0

	defs := []*discordgo.ApplicationCommand{
		{
			Name:        "play",
			Description: "Play something from YouTube.",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "query",
				Description: "A YouTube link, playlist link, or search query.",
				Required:    true,
			}},
		},
		{
			Name:        "play-file",
			Description: "Play an uploaded audio file.",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionAttachment,
				Name:        "file",
				Description: "An audio file.",
				Required:    true,
			}},
		},
		{
			Name:        "play-music",
			Description: "Play the best YouTube Music match for a query.",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "query",
				Description: "A search query.",
				Required:    true,
			}},
		},
		{Name: "queue", Description: "Display the queue."},
		{Name: "now-playing", Description: "Display the currently playing track."},
		{Name: "skip", Description: "Skip the current track."},
		{Name: "pause", Description: "Pause the current track."},
		{Name: "resume", Description: "Resume the current track."},
		{Name: "stop", Description: "Stop playback and clear the queue."},
		{
			Name:        "loop",
			Description: "Toggle repeating the current track.",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Name:        "enabled",
				Description: "Set instead of toggling.",
			}},
		},
		{
			Name:        "volume",
			Description: "Set the volume of the player.",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionNumber,
				Name:        "percentage",
				Description: "Volume percentage.",
				MinValue:    &zero,
				Required:    true,
			}},
		},
		{
			Name:        "move",
			Description: "Move a track in the queue.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "source",
					Description: "The position of the track to move.",
					MinValue:    &one,
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "destination",
					Description: "The position to move the track to.",
					MinValue:    &one,
					Required:    true,
				},
			},
		},
		{
			Name:        "remove",
			Description: "Remove a track from the queue.",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "position",
				Description: "The position of the track to remove.",
				MinValue:    &one,
				Required:    true,
			}},
		},
		{Name: "shuffle", Description: "Shuffle the queue."},
		{Name: "clear", Description: "Clear the queue."},
		{
			Name:        "join",
			Description: "Make the bot join a voice channel.",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:         discordgo.ApplicationCommandOptionChannel,
				Name:         "channel",
				Description:  "A voice channel. Defaults to yours.",
				ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildVoice},
			}},
		},
		{Name: "leave", Description: "Make the bot leave its voice channel."},
	}

	out := defs[:0]
	for _, d := range defs {
		if d.Name == "play-music" && pc.music == nil {
			continue
		}
		d.Contexts = guildOnly
		out = append(out, d)
	}
	return out
}

// canView reports whether something is playing in the guild, replying
// otherwise.
func (pc *PlaybackCommands) canView(s discord.Responder, i *discordgo.InteractionCreate) (*playback.Player, bool) {
	p, ok := pc.players.Get(i.GuildID)
	if !ok || p.NowPlaying() == nil {
		discord.RespondEphemeral(s, i, "Nothing is playing.")
		return nil, false
	}
	return p, true
}

// canManage reports whether the invoking member may control the guild's
// playback: something is playing, the member is a DJ, and the member sits
// in the bot's voice channel.
func (pc *PlaybackCommands) canManage(s discord.Responder, i *discordgo.InteractionCreate) (*playback.Player, bool) {
	p, ok := pc.canView(s, i)
	if !ok {
		return nil, false
	}
	if !pc.perms.IsDJ(i) {
		discord.RespondEphemeral(s, i, "You need the DJ role to control playback.")
		return nil, false
	}
	conn := p.Connection()
	if conn == nil {
		discord.RespondEphemeral(s, i, "Nothing is playing.")
		return nil, false
	}
	if pc.voice.UserVoiceChannel(i.GuildID, discord.UserID(i)) != conn.ChannelID() {
		discord.RespondEphemeral(s, i, "You must be in the same voice channel as the bot to use this command.")
		return nil, false
	}
	return p, true
}

// connectToSpeak joins the invoking member's voice channel (or moves there)
// and binds the guild's player to the connection. On success the reply has
// been deferred and further output must use follow-ups.
func (pc *PlaybackCommands) connectToSpeak(ctx context.Context, s discord.Responder, i *discordgo.InteractionCreate) (*playback.Player, bool) {
	channelID := pc.voice.UserVoiceChannel(i.GuildID, discord.UserID(i))
	if channelID == "" {
		discord.RespondEphemeral(s, i, "You are not in a voice channel.")
		return nil, false
	}
	discord.DeferReply(s, i)

	conn, err := pc.join(ctx, i.GuildID, channelID)
	if err != nil {
		discord.FollowUp(s, i, fmt.Sprintf("I couldn't connect to <#%s>: %v", channelID, err))
		return nil, false
	}
	p := pc.players.Of(i.GuildID)
	if p.Connection() != conn {
		p.SetConnection(conn)
	}
	return p, true
}

// join returns a usable connection to channelID, reusing the guild's live
// connection when it already sits there.
func (pc *PlaybackCommands) join(ctx context.Context, guildID, channelID string) (audio.Connection, error) {
	if conn := pc.platform.Connection(guildID); conn != nil && conn.ChannelID() == channelID && conn.Status().Usable() {
		return conn, nil
	}
	return pc.platform.Connect(ctx, guildID, channelID)
}

// context returns the per-command deadline.
func (pc *PlaybackCommands) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), pc.timeout)
}

// optionMap indexes the top-level options of a slash command by name.
func optionMap(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	opts := i.ApplicationCommandData().Options
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, o := range opts {
		m[o.Name] = o
	}
	return m
}
