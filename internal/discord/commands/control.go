package commands

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/bwmarrin/discordgo"

	"github.com/eric-livezey/void-bot/internal/discord"
	"github.com/eric-livezey/void-bot/internal/playback"
)

// handleSkip handles /skip.
func (pc *PlaybackCommands) handleSkip(s discord.Responder, i *discordgo.InteractionCreate) {
	p, ok := pc.canManage(s, i)
	if !ok {
		return
	}
	t := p.Skip()
	if t == nil {
		discord.RespondText(s, i, "Nothing is playing.")
		return
	}
	discord.RespondText(s, i, fmt.Sprintf("Skipped **%s**.", trackLink(t)))
}

// handlePause handles /pause.
func (pc *PlaybackCommands) handlePause(s discord.Responder, i *discordgo.InteractionCreate) {
	p, ok := pc.canManage(s, i)
	if !ok {
		return
	}
	changed, err := p.Pause()
	switch {
	case err != nil:
		discord.RespondText(s, i, "Playback could not be paused.")
	case changed:
		discord.RespondText(s, i, "Paused.")
	case p.Status() == playback.StatusIdle:
		discord.RespondText(s, i, "Nothing is playing.")
	case p.Status() == playback.StatusPaused:
		discord.RespondText(s, i, "Playback is already paused.")
	default:
		discord.RespondText(s, i, "Playback has not started yet.")
	}
}

// handleResume handles /resume.
func (pc *PlaybackCommands) handleResume(s discord.Responder, i *discordgo.InteractionCreate) {
	p, ok := pc.canManage(s, i)
	if !ok {
		return
	}
	changed, err := p.Unpause()
	switch {
	case err != nil:
		discord.RespondText(s, i, "Playback could not be resumed.")
	case !changed && p.Status() == playback.StatusIdle:
		discord.RespondText(s, i, "Nothing is playing.")
	case !changed:
		discord.RespondText(s, i, "Playback is not paused.")
	default:
		discord.RespondText(s, i, "Resumed.")
	}
}

// handleStop handles /stop.
func (pc *PlaybackCommands) handleStop(s discord.Responder, i *discordgo.InteractionCreate) {
	p, ok := pc.canManage(s, i)
	if !ok {
		return
	}
	p.Stop()
	discord.RespondText(s, i, "Stopped playback and cleared the queue.")
}

// handleLoop handles /loop [enabled].
func (pc *PlaybackCommands) handleLoop(s discord.Responder, i *discordgo.InteractionCreate) {
	p, ok := pc.canManage(s, i)
	if !ok {
		return
	}
	enabled := !p.Loop()
	if o, ok := optionMap(i)["enabled"]; ok {
		enabled = o.BoolValue()
	}
	p.SetLoop(enabled)
	if enabled {
		discord.RespondText(s, i, "Loop enabled.")
	} else {
		discord.RespondText(s, i, "Loop disabled.")
	}
}

// handleVolume handles /volume percentage.
func (pc *PlaybackCommands) handleVolume(s discord.Responder, i *discordgo.InteractionCreate) {
	pct := optionMap(i)["percentage"].FloatValue()
	if pct < 0 || math.IsNaN(pct) || math.IsInf(pct, 0) {
		discord.RespondEphemeral(s, i, "`percentage` must be greater than or equal to 0.")
		return
	}
	p, ok := pc.canManage(s, i)
	if !ok {
		return
	}
	if err := p.SetVolume(pct / 100); err != nil {
		discord.RespondError(s, i, err)
		return
	}
	discord.RespondText(s, i, "Volume set to "+strconv.FormatFloat(pct, 'f', -1, 64)+"%.")
}

// handleMove handles /move source destination.
func (pc *PlaybackCommands) handleMove(s discord.Responder, i *discordgo.InteractionCreate) {
	opts := optionMap(i)
	from, to := int(opts["source"].IntValue()), int(opts["destination"].IntValue())

	p, ok := pc.canManage(s, i)
	if !ok {
		return
	}
	q := p.Queue()
	n := q.Len()
	switch {
	case n == 0:
		discord.RespondText(s, i, "The queue is empty.")
		return
	case from < 1 || from > n:
		discord.RespondText(s, i, fmt.Sprintf("%d is not a valid position in the queue.", from))
		return
	case to < 1 || to > n:
		discord.RespondText(s, i, fmt.Sprintf("%d is not a valid position in the queue.", to))
		return
	case from == to:
		discord.RespondText(s, i, "Positions must not be equal.")
		return
	}

	t, err := q.Get(from - 1)
	if err == nil {
		err = q.Move(from-1, to-1)
	}
	if err != nil {
		// The queue changed underneath the bounds check.
		discord.RespondText(s, i, queueChanged(err))
		return
	}
	discord.Respond(s, i, &discordgo.InteractionResponseData{
		Content: fmt.Sprintf("Moved **%s** to position %d in the queue.", trackLink(t), to),
		Flags:   discordgo.MessageFlagsSuppressEmbeds,
	})
}

// handleRemove handles /remove position.
func (pc *PlaybackCommands) handleRemove(s discord.Responder, i *discordgo.InteractionCreate) {
	pos := int(optionMap(i)["position"].IntValue())

	p, ok := pc.canManage(s, i)
	if !ok {
		return
	}
	q := p.Queue()
	n := q.Len()
	if n == 0 {
		discord.RespondText(s, i, "The queue is empty.")
		return
	}
	if pos < 1 || pos > n {
		discord.RespondText(s, i, fmt.Sprintf("%d is not a valid position in the queue.", pos))
		return
	}
	t, err := q.Remove(pos - 1)
	if err != nil {
		discord.RespondText(s, i, queueChanged(err))
		return
	}
	discord.RespondEmbed(s, i, "**Removed**:", trackEmbed(t))
}

// handleShuffle handles /shuffle.
func (pc *PlaybackCommands) handleShuffle(s discord.Responder, i *discordgo.InteractionCreate) {
	p, ok := pc.canManage(s, i)
	if !ok {
		return
	}
	if p.Queue().Len() == 0 {
		discord.RespondText(s, i, "The queue is empty.")
		return
	}
	p.Queue().Shuffle()
	discord.RespondText(s, i, "Shuffled the queue.")
}

// handleClear handles /clear.
func (pc *PlaybackCommands) handleClear(s discord.Responder, i *discordgo.InteractionCreate) {
	p, ok := pc.canManage(s, i)
	if !ok {
		return
	}
	n := p.Queue().Clear()
	if n == 0 {
		discord.RespondText(s, i, "The queue is empty.")
		return
	}
	discord.RespondText(s, i, fmt.Sprintf("Removed %d tracks from the queue.", n))
}

// handleJoin handles /join [channel].
func (pc *PlaybackCommands) handleJoin(s discord.Responder, i *discordgo.InteractionCreate) {
	channelID := pc.voice.UserVoiceChannel(i.GuildID, discord.UserID(i))
	if o, ok := optionMap(i)["channel"]; ok {
		if id, _ := o.Value.(string); id != "" {
			channelID = id
		}
	}
	if channelID == "" {
		discord.RespondEphemeral(s, i, "You are not in a voice channel.")
		return
	}
	if conn := pc.platform.Connection(i.GuildID); conn != nil && conn.ChannelID() == channelID && conn.Status().Usable() {
		discord.RespondText(s, i, fmt.Sprintf("I am already connected to <#%s>.", channelID))
		return
	}

	ctx, cancel := pc.context()
	defer cancel()
	discord.DeferReply(s, i)

	conn, err := pc.platform.Connect(ctx, i.GuildID, channelID)
	if err != nil {
		discord.FollowUp(s, i, fmt.Sprintf("I couldn't connect to <#%s>: %v", channelID, err))
		return
	}
	if p, ok := pc.players.Get(i.GuildID); ok && p.Connection() != conn {
		p.SetConnection(conn)
	}
	discord.FollowUp(s, i, fmt.Sprintf("Connected to <#%s>.", channelID))
}

// handleLeave handles /leave. Disconnecting stops the guild's player through
// its connection watch.
func (pc *PlaybackCommands) handleLeave(s discord.Responder, i *discordgo.InteractionCreate) {
	conn := pc.platform.Connection(i.GuildID)
	if conn == nil || !conn.Status().Usable() {
		discord.RespondEphemeral(s, i, "I am not in a voice channel.")
		return
	}
	channelID := conn.ChannelID()
	if pc.voice.UserVoiceChannel(i.GuildID, discord.UserID(i)) != channelID && !pc.perms.IsDJ(i) {
		discord.RespondEphemeral(s, i, "You must be in the same voice channel as the bot to use this command.")
		return
	}
	if err := conn.Disconnect(); err != nil {
		discord.RespondError(s, i, err)
		return
	}
	discord.RespondText(s, i, fmt.Sprintf("Disconnected from <#%s>.", channelID))
}

// queueChanged renders a queue operation that lost a race with another
// mutation.
func queueChanged(err error) string {
	if errors.Is(err, playback.ErrOutOfBounds) {
		return "The queue changed, try again."
	}
	return "Error: " + err.Error()
}
