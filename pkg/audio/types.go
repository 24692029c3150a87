package audio

import (
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// AudioFrame is a single chunk of interleaved little-endian int16 PCM flowing
// from a [Sink] to a [Connection].
type AudioFrame struct {
	// PCM audio data.
	Data []byte

	// SampleRate in Hz (48000 for Discord voice).
	SampleRate int

	// Channels: 1 for mono, 2 for stereo.
	Channels int

	// Timestamp is the playback offset of this frame from the start of the resource.
	Timestamp time.Duration
}

// Resource is a playable audio input handed to a [Sink]. It is backed either by
// a local file path or by a one-shot byte stream. A Resource is consumed by a
// single playback; replaying the same logical track requires a new Resource.
//
// Volume and playback progress may be read and written concurrently.
type Resource struct {
	path   string
	stream io.ReadCloser

	volume  atomic.Uint64 // math.Float64bits
	played  atomic.Int64  // nanoseconds of audio handed to the output
	started atomic.Bool

	closeOnce sync.Once
}

// NewFileResource returns a Resource reading from the file at path.
func NewFileResource(path string) *Resource {
	r := &Resource{path: path}
	r.volume.Store(math.Float64bits(1))
	return r
}

// NewStreamResource returns a Resource reading from rc. The resource takes
// ownership of rc and closes it in [Resource.Close].
func NewStreamResource(rc io.ReadCloser) *Resource {
	r := &Resource{stream: rc}
	r.volume.Store(math.Float64bits(1))
	return r
}

// Path returns the backing file path, or "" for stream resources.
func (r *Resource) Path() string { return r.path }

// Stream returns the backing byte stream, or nil for file resources.
func (r *Resource) Stream() io.Reader {
	if r.stream == nil {
		return nil
	}
	return r.stream
}

// Volume returns the live gain multiplier applied to the resource's samples.
func (r *Resource) Volume() float64 {
	return math.Float64frombits(r.volume.Load())
}

// SetVolume changes the gain multiplier. Takes effect on the next frame.
func (r *Resource) SetVolume(v float64) {
	r.volume.Store(math.Float64bits(v))
}

// Started reports whether at least one frame of the resource has been output.
func (r *Resource) Started() bool { return r.started.Load() }

// PlaybackDuration returns how much audio of the resource has been output.
func (r *Resource) PlaybackDuration() time.Duration {
	return time.Duration(r.played.Load())
}

// AddPlayback records d of additional output. Called by sinks per frame.
func (r *Resource) AddPlayback(d time.Duration) {
	r.started.Store(true)
	r.played.Add(int64(d))
}

// Close releases the backing stream, if any. It is safe to call more than once.
func (r *Resource) Close() error {
	var err error
	r.closeOnce.Do(func() {
		if r.stream != nil {
			err = r.stream.Close()
		}
	})
	return err
}
