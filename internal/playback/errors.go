package playback

import "errors"

var (
	// ErrOutOfBounds is returned by queue operations given an index outside
	// [0, length).
	ErrOutOfBounds = errors.New("playback: index out of bounds")

	// ErrInvalidVolume is returned by [Player.SetVolume] for negative or NaN
	// values.
	ErrInvalidVolume = errors.New("playback: invalid volume")

	// ErrNotConnected is returned when playback is requested while the player
	// has no ready voice connection.
	ErrNotConnected = errors.New("playback: not connected")

	// ErrResolution wraps every failure to turn a [Track] into a playable
	// resource: metadata lookups, downloads, HTTP errors, and tool exits.
	ErrResolution = errors.New("playback: resolution failed")

	// ErrPauseFailed is returned when the sink refuses to pause.
	ErrPauseFailed = errors.New("playback: sink refused to pause")

	// ErrUnpauseFailed is returned when the sink refuses to resume.
	ErrUnpauseFailed = errors.New("playback: sink refused to resume")

	// ErrInvalidPage is returned by [Player.QueuePage] for a page outside the
	// queue.
	ErrInvalidPage = errors.New("playback: invalid queue page")
)
