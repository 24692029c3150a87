package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/eric-livezey/void-bot/internal/playback"
)

// queuePagePrefix prefixes the custom id of queue pager buttons; the suffix
// is the 0-based target page.
const queuePagePrefix = "queue_page:"

// embedColor is the sidebar color of every playback embed.
const embedColor = 0xE74C3C

// trackEmbed renders t. When res is non-nil and started, the duration field
// shows elapsed/total.
func trackEmbed(t *playback.Track, fields ...*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	eb := &discordgo.MessageEmbed{
		Title: t.Title,
		URL:   t.URL,
		Color: embedColor,
	}
	if t.Author.Name != "" {
		eb.Author = &discordgo.MessageEmbedAuthor{
			Name:    t.Author.Name,
			URL:     t.Author.URL,
			IconURL: t.Author.IconURL,
		}
	}
	if t.Thumbnail != "" {
		eb.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: t.Thumbnail}
	}
	if d := durationField(t); d != "" {
		eb.Fields = append(eb.Fields, &discordgo.MessageEmbedField{Name: "Duration", Value: d, Inline: true})
	}
	eb.Fields = append(eb.Fields, fields...)
	return eb
}

// durationField renders the known duration and, once playback started,
// the elapsed time in front of it.
func durationField(t *playback.Track) string {
	total := "unknown"
	if t.Duration > 0 {
		total = playback.FormatDuration(t.Duration)
	}
	if res := t.Resource(); res != nil && res.Started() {
		return playback.FormatDuration(res.PlaybackDuration()) + "/" + total
	}
	if t.Duration > 0 {
		return total
	}
	return ""
}

// trackLink renders a markdown link to t, or the bare title.
func trackLink(t *playback.Track) string {
	if t.URL == "" {
		return t.Title
	}
	return fmt.Sprintf("[%s](%s)", t.Title, t.URL)
}

// playlistEmbed renders the heading of an expanded playlist.
func playlistEmbed(title, url string) *discordgo.MessageEmbed {
	if title == "" {
		title = "Unknown"
	}
	return &discordgo.MessageEmbed{Title: title, URL: url, Color: embedColor}
}

// queueMessage renders page of the player's queue with pager buttons. An idle
// player renders as "Nothing is playing.".
func queueMessage(p *playback.Player, page int) (*discordgo.InteractionResponseData, error) {
	qp, err := p.QueuePage(page)
	if err != nil {
		return nil, err
	}
	if qp.NowPlaying == nil {
		return &discordgo.InteractionResponseData{Content: "Nothing is playing."}, nil
	}
	if len(qp.Entries) == 0 {
		return &discordgo.InteractionResponseData{
			Content: "**Now Playing**:",
			Embeds:  []*discordgo.MessageEmbed{trackEmbed(qp.NowPlaying)},
		}, nil
	}

	eb := &discordgo.MessageEmbed{Color: embedColor}
	if qp.Page == 0 {
		eb.Author = &discordgo.MessageEmbedAuthor{Name: "Now Playing:"}
		eb.Title = qp.NowPlaying.Title
		eb.URL = qp.NowPlaying.URL
	}
	for _, e := range qp.Entries {
		var b strings.Builder
		fmt.Fprintf(&b, "**%d: %s**", e.Position, trackLink(e.Track))
		if e.Track.Duration > 0 {
			b.WriteString("\n" + playback.FormatDuration(e.Track.Duration))
		}
		eb.Fields = append(eb.Fields, &discordgo.MessageEmbedField{Name: " ", Value: b.String()})
	}
	footer := fmt.Sprintf("%d items (%s)", qp.Total, playback.FormatDuration(qp.Duration))
	if qp.Pages > 1 {
		footer += fmt.Sprintf("\nPage %d/%d", qp.Page+1, qp.Pages)
	}
	eb.Footer = &discordgo.MessageEmbedFooter{Text: footer}

	data := &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{eb}}
	var buttons []discordgo.MessageComponent
	if qp.Page > 0 {
		buttons = append(buttons, pageButton("⬅", qp.Page-1))
	}
	if qp.Page < qp.Pages-1 {
		buttons = append(buttons, pageButton("➡", qp.Page+1))
	}
	if len(buttons) > 0 {
		data.Components = []discordgo.MessageComponent{discordgo.ActionsRow{Components: buttons}}
	} else {
		data.Components = []discordgo.MessageComponent{}
	}
	return data, nil
}

func pageButton(emoji string, page int) discordgo.Button {
	return discordgo.Button{
		Emoji:    &discordgo.ComponentEmoji{Name: emoji},
		Style:    discordgo.SecondaryButton,
		CustomID: queuePagePrefix + strconv.Itoa(page),
	}
}

// parseQueuePage extracts the page from a pager custom id.
func parseQueuePage(customID string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimPrefix(customID, queuePagePrefix))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
