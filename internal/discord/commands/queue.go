package commands

import (
	"github.com/bwmarrin/discordgo"

	"github.com/eric-livezey/void-bot/internal/discord"
)

// handleQueue handles /queue.
func (pc *PlaybackCommands) handleQueue(s discord.Responder, i *discordgo.InteractionCreate) {
	p, ok := pc.canView(s, i)
	if !ok {
		return
	}
	data, err := queueMessage(p, 0)
	if err != nil {
		discord.RespondError(s, i, err)
		return
	}
	discord.Respond(s, i, data)
}

// handleNowPlaying handles /now-playing.
func (pc *PlaybackCommands) handleNowPlaying(s discord.Responder, i *discordgo.InteractionCreate) {
	p, ok := pc.canView(s, i)
	if !ok {
		return
	}
	t := p.NowPlaying()
	if t == nil {
		discord.RespondText(s, i, "Nothing is playing.")
		return
	}
	discord.RespondEmbed(s, i, "**Now Playing**:", trackEmbed(t))
}

// handleQueuePage handles the queue pager buttons. A page that no longer
// exists because the queue shrank is clamped to the last page.
func (pc *PlaybackCommands) handleQueuePage(s discord.Responder, i *discordgo.InteractionCreate) {
	page, ok := parseQueuePage(i.MessageComponentData().CustomID)
	if !ok {
		discord.RespondEphemeral(s, i, "Unknown component.")
		return
	}
	p, ok := pc.players.Get(i.GuildID)
	if !ok {
		discord.UpdateMessage(s, i, &discordgo.InteractionResponseData{
			Content:    "Nothing is playing.",
			Embeds:     []*discordgo.MessageEmbed{},
			Components: []discordgo.MessageComponent{},
		})
		return
	}
	qp, err := p.QueuePage(0)
	if err != nil {
		discord.RespondError(s, i, err)
		return
	}
	page = min(page, qp.Pages-1)

	data, err := queueMessage(p, page)
	if err != nil {
		discord.RespondError(s, i, err)
		return
	}
	if data.Embeds == nil {
		data.Embeds = []*discordgo.MessageEmbed{}
	}
	if data.Components == nil {
		data.Components = []discordgo.MessageComponent{}
	}
	discord.UpdateMessage(s, i, data)
}
