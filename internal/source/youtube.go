package source

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	youtubeHosts = map[string]bool{
		"www.youtube.com":   true,
		"youtube.com":       true,
		"m.youtube.com":     true,
		"music.youtube.com": true,
	}
	videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
)

const shortHost = "youtu.be"

func parseHTTP(raw string) (*url.URL, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, false
	}
	return u, true
}

// IsYouTubeURL reports whether raw is an http(s) URL on a YouTube host. The
// youtu.be short host counts only when allowShort is set.
func IsYouTubeURL(raw string, allowShort bool) bool {
	u, ok := parseHTTP(raw)
	if !ok {
		return false
	}
	return youtubeHosts[u.Hostname()] || (allowShort && u.Hostname() == shortHost)
}

// ExtractVideoID returns the video id of a YouTube watch, shorts, or youtu.be
// URL.
func ExtractVideoID(raw string) (string, bool) {
	if !IsYouTubeURL(raw, true) {
		return "", false
	}
	u, _ := parseHTTP(raw)
	parts := strings.Split(strings.TrimPrefix(u.EscapedPath(), "/"), "/")

	var id string
	switch {
	case len(parts) > 2:
		return "", false
	case u.Hostname() == shortHost:
		if len(parts) == 1 {
			id = parts[0]
		}
	case parts[0] == "watch" && len(parts) == 1:
		id = u.Query().Get("v")
	case parts[0] == "watch" || parts[0] == "shorts":
		if len(parts) == 2 {
			id = parts[1]
		}
	}
	if !videoIDPattern.MatchString(id) {
		return "", false
	}
	return id, true
}

// ExtractPlaylistID returns the list parameter of a YouTube /playlist URL.
func ExtractPlaylistID(raw string) (string, bool) {
	if !IsYouTubeURL(raw, false) {
		return "", false
	}
	u, _ := parseHTTP(raw)
	if u.Path != "/playlist" {
		return "", false
	}
	id := u.Query().Get("list")
	return id, id != ""
}

// ExtractChannelID returns the channel id or @handle of a YouTube channel URL.
func ExtractChannelID(raw string) (string, bool) {
	if !IsYouTubeURL(raw, false) {
		return "", false
	}
	u, _ := parseHTTP(raw)
	parts := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")
	switch {
	case parts[0] == "channel" && len(parts) > 1 && parts[1] != "":
		return parts[1], true
	case strings.HasPrefix(parts[0], "@") && len(parts[0]) > 1:
		return parts[0], true
	}
	return "", false
}

// VideoURL returns the watch URL for id, or the youtu.be form when short is
// set.
func VideoURL(id string, short bool) string {
	if short {
		return "https://youtu.be/" + url.PathEscape(id)
	}
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(id)
}

// PlaylistURL returns the URL of playlist id.
func PlaylistURL(id string) string {
	return "https://www.youtube.com/playlist?list=" + url.QueryEscape(id)
}

// ChannelURL returns the URL of channel id.
func ChannelURL(id string) string {
	return "https://www.youtube.com/channel/" + url.PathEscape(id)
}

// ThumbnailURL returns the high-quality thumbnail URL of video id.
func ThumbnailURL(id string) string {
	return "https://i.ytimg.com/vi/" + url.PathEscape(id) + "/hqdefault.jpg"
}
