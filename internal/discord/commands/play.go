package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/bwmarrin/discordgo"

	"github.com/eric-livezey/void-bot/internal/discord"
	"github.com/eric-livezey/void-bot/internal/playback"
	"github.com/eric-livezey/void-bot/internal/source"
	"github.com/eric-livezey/void-bot/pkg/provider/metadata"
)

// handlePlay handles /play query.
func (pc *PlaybackCommands) handlePlay(s discord.Responder, i *discordgo.InteractionCreate) {
	query := optionMap(i)["query"].StringValue()

	ctx, cancel := pc.context()
	defer cancel()

	p, ok := pc.connectToSpeak(ctx, s, i)
	if !ok {
		return
	}
	res, err := pc.sources.Resolve(ctx, query)
	if err != nil {
		discord.FollowUp(s, i, resolveFailure(err))
		return
	}
	if res.Playlist != "" || len(res.Tracks) > 1 {
		pc.playAll(ctx, s, i, p, res)
		return
	}
	pc.playTrack(ctx, s, i, p, res.Tracks[0])
}

// handlePlayFile handles /play-file file.
func (pc *PlaybackCommands) handlePlayFile(s discord.Responder, i *discordgo.InteractionCreate) {
	att := Attachment(i, "file")
	if att == nil {
		discord.RespondEphemeral(s, i, "You must attach a file.")
		return
	}
	if !IsAudioAttachment(att) {
		discord.RespondEphemeral(s, i, fmt.Sprintf("`%s` is not an audio file.", att.Filename))
		return
	}

	ctx, cancel := pc.context()
	defer cancel()

	p, ok := pc.connectToSpeak(ctx, s, i)
	if !ok {
		return
	}
	pc.playTrack(ctx, s, i, p, pc.sources.FromURL(att.URL, att.Filename))
}

// handlePlayMusic handles /play-music query.
func (pc *PlaybackCommands) handlePlayMusic(s discord.Responder, i *discordgo.InteractionCreate) {
	query := optionMap(i)["query"].StringValue()

	ctx, cancel := pc.context()
	defer cancel()

	p, ok := pc.connectToSpeak(ctx, s, i)
	if !ok {
		return
	}
	t, err := pc.sources.Search(ctx, pc.music, query)
	if err != nil {
		discord.FollowUp(s, i, resolveFailure(err))
		return
	}
	pc.playTrack(ctx, s, i, p, t)
}

// playTrack enqueues t and reports where it landed.
func (pc *PlaybackCommands) playTrack(ctx context.Context, s discord.Responder, i *discordgo.InteractionCreate, p *playback.Player, t *playback.Track) {
	pos, err := p.Enqueue(ctx, t)
	switch {
	case err != nil:
		slog.Warn("play: enqueue failed", "guild_id", i.GuildID, "title", t.Title, "err", err)
		discord.FollowUp(s, i, "An error occurred while attempting to play the track.")
	case pos == 0:
		discord.FollowUpEmbed(s, i, "**Now Playing**:", trackEmbed(t))
	default:
		discord.FollowUpEmbed(s, i, "**Added to the Queue**:", trackEmbed(t, &discordgo.MessageEmbedField{
			Name:   "Position",
			Value:  strconv.Itoa(pos),
			Inline: true,
		}))
	}
}

// playAll enqueues every track of a playlist or multi-URL request. Tracks
// that fail when played immediately are skipped.
func (pc *PlaybackCommands) playAll(ctx context.Context, s discord.Responder, i *discordgo.InteractionCreate, p *playback.Player, res source.Result) {
	added := 0
	for _, t := range res.Tracks {
		pos, err := p.Enqueue(ctx, t)
		switch {
		case err != nil:
			slog.Debug("play: skipping track", "guild_id", i.GuildID, "title", t.Title, "err", err)
		case pos == 0:
			discord.FollowUpEmbed(s, i, "**Now Playing**:", trackEmbed(t))
		default:
			added++
		}
	}
	content := fmt.Sprintf("**Added %d tracks to the queue**", added)
	if res.Playlist == "" {
		discord.FollowUp(s, i, content+".")
		return
	}
	discord.FollowUpEmbed(s, i, content+":", playlistEmbed(res.Playlist, ""))
}

// resolveFailure renders a resolution error for the user.
func resolveFailure(err error) string {
	switch {
	case errors.Is(err, metadata.ErrNotFound):
		return "There were no valid results for your query."
	case errors.Is(err, source.ErrEmptyInput):
		return "You must provide a link or search query."
	case errors.Is(err, context.DeadlineExceeded):
		return "Looking that up took too long."
	default:
		return "That link or query could not be resolved."
	}
}
