package commands

import (
	"path/filepath"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// audioExtensions lists file extensions accepted by /play-file when Discord
// reports no usable content type.
var audioExtensions = map[string]bool{
	".mp3":  true,
	".ogg":  true,
	".oga":  true,
	".opus": true,
	".wav":  true,
	".flac": true,
	".m4a":  true,
	".aac":  true,
	".webm": true,
	".mp4":  true,
	".mkv":  true,
}

// Attachment returns the attachment passed as the named option, or nil.
func Attachment(i *discordgo.InteractionCreate, option string) *discordgo.MessageAttachment {
	if i.Type != discordgo.InteractionApplicationCommand {
		return nil
	}
	data := i.ApplicationCommandData()
	if data.Resolved == nil {
		return nil
	}
	for _, o := range data.Options {
		if o.Name != option || o.Type != discordgo.ApplicationCommandOptionAttachment {
			continue
		}
		id, _ := o.Value.(string)
		return data.Resolved.Attachments[id]
	}
	return nil
}

// IsAudioAttachment reports whether a looks like something ffmpeg can play:
// an audio or video content type, or a known media extension.
func IsAudioAttachment(a *discordgo.MessageAttachment) bool {
	ct := strings.ToLower(a.ContentType)
	if strings.HasPrefix(ct, "audio/") || strings.HasPrefix(ct, "video/") {
		return true
	}
	return audioExtensions[strings.ToLower(filepath.Ext(a.Filename))]
}
