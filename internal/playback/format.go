package playback

import (
	"fmt"
	"strconv"
	"time"
)

// PageSize is the number of queue entries per [Player.QueuePage].
const PageSize = 25

// FormatDuration renders d as mm:ss, prefixed with hours and days when
// needed: 01:05, 1:01:05, 2:03:01:05. Fractions of a second are truncated.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	secs := total % 60
	mins := total / 60 % 60
	hours := total / 3600 % 24
	days := total / 86400

	out := fmt.Sprintf("%02d:%02d", mins, secs)
	switch {
	case days > 0:
		return strconv.FormatInt(days, 10) + ":" + fmt.Sprintf("%02d:", hours) + out
	case hours > 0:
		return strconv.FormatInt(hours, 10) + ":" + out
	default:
		return out
	}
}

// QueueEntry is one queued track with its 1-based position.
type QueueEntry struct {
	Position int
	Track    *Track
}

// QueuePage is a render-ready view of part of a player's queue.
type QueuePage struct {
	// NowPlaying is the current track, or nil when the player is idle.
	NowPlaying *Track

	// Entries holds up to [PageSize] queued tracks.
	Entries []QueueEntry

	// Page is the 0-based page index; Pages is the page count (at least 1).
	Page  int
	Pages int

	// Total counts the current track plus every queued track.
	Total int

	// Duration is the known duration of the current and queued tracks.
	Duration time.Duration
}

// QueuePage returns page (0-based) of the queue. Pages outside
// [0, Pages) return [ErrInvalidPage].
func (p *Player) QueuePage(page int) (QueuePage, error) {
	now := p.NowPlaying()
	tracks := p.queue.Tracks()

	pages := max((len(tracks)+PageSize-1)/PageSize, 1)
	if page < 0 || page >= pages {
		return QueuePage{}, fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidPage, page, pages)
	}

	qp := QueuePage{NowPlaying: now, Page: page, Pages: pages, Total: len(tracks)}
	if now != nil {
		qp.Total++
		qp.Duration = now.Duration
	}
	for _, t := range tracks {
		qp.Duration += t.Duration
	}
	end := min((page+1)*PageSize, len(tracks))
	for i := page * PageSize; i < end; i++ {
		qp.Entries = append(qp.Entries, QueueEntry{Position: i + 1, Track: tracks[i]})
	}
	return qp, nil
}
