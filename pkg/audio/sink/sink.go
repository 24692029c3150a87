// Package sink provides the frame-pumping [audio.Sink] used by every guild
// player. A [Sink] decodes one [audio.Resource] at a time into 20 ms PCM
// frames, applies the resource's live volume, and pushes the frames into the
// attached output channel (normally a voice connection's output stream).
//
// Pacing comes from the consumer: a blocked output blocks the pump.
package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/eric-livezey/void-bot/pkg/audio"
)

var _ audio.Sink = (*Sink)(nil)

const (
	frameDuration = 20 * time.Millisecond

	// silenceFrames are flushed by a non-forced Stop so the transport can
	// interpolate cleanly.
	silenceFrames = 5

	eventBuffer = 16
)

// Decoder turns a resource into 48 kHz stereo little-endian int16 PCM.
type Decoder interface {
	Decode(ctx context.Context, res *audio.Resource) (io.ReadCloser, error)
}

// DecoderFunc adapts a function to [Decoder].
type DecoderFunc func(ctx context.Context, res *audio.Resource) (io.ReadCloser, error)

// Decode implements [Decoder].
func (f DecoderFunc) Decode(ctx context.Context, res *audio.Resource) (io.ReadCloser, error) {
	return f(ctx, res)
}

// playback is one resource occupying the sink.
type playback struct {
	res      *audio.Resource
	cancel   context.CancelFunc
	stopping bool // graceful stop requested; guarded by Sink.mu
}

// Sink implements [audio.Sink]. It is safe for concurrent use.
type Sink struct {
	dec    Decoder
	events chan audio.SinkEvent
	done   chan struct{}

	mu         sync.Mutex
	status     audio.SinkStatus
	current    *playback
	resume     chan struct{} // closed when leaving SinkPaused
	out        chan<- audio.AudioFrame
	outChanged chan struct{} // closed and replaced whenever out changes
	closeOnce  sync.Once
}

// Option configures a [Sink].
type Option func(*Sink)

// WithEventBuffer sets the capacity of the terminal event channel.
func WithEventBuffer(n int) Option {
	return func(s *Sink) {
		if n > 0 {
			s.events = make(chan audio.SinkEvent, n)
		}
	}
}

// New returns an idle Sink that decodes resources with dec.
func New(dec Decoder, opts ...Option) *Sink {
	s := &Sink{
		dec:        dec,
		events:     make(chan audio.SinkEvent, eventBuffer),
		done:       make(chan struct{}),
		resume:     make(chan struct{}),
		outChanged: make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Events implements [audio.Sink].
func (s *Sink) Events() <-chan audio.SinkEvent { return s.events }

// Status implements [audio.Sink].
func (s *Sink) Status() audio.SinkStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Attach implements [audio.Sink].
func (s *Sink) Attach(out chan<- audio.AudioFrame) func() {
	s.mu.Lock()
	s.setOutputLocked(out)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.out == out {
				s.setOutputLocked(nil)
			}
		})
	}
}

func (s *Sink) setOutputLocked(out chan<- audio.AudioFrame) {
	s.out = out
	close(s.outChanged)
	s.outChanged = make(chan struct{})
}

// Play implements [audio.Sink].
func (s *Sink) Play(res *audio.Resource) {
	ctx, cancel := context.WithCancel(context.Background())
	pb := &playback{res: res, cancel: cancel}

	s.mu.Lock()
	if prev := s.current; prev != nil {
		prev.cancel()
	}
	if s.status == audio.SinkPaused {
		close(s.resume)
		s.resume = make(chan struct{})
	}
	s.current = pb
	s.status = audio.SinkBuffering
	s.mu.Unlock()

	go s.run(ctx, pb)
}

// Pause implements [audio.Sink].
func (s *Sink) Pause() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != audio.SinkPlaying {
		return false
	}
	s.status = audio.SinkPaused
	return true
}

// Unpause implements [audio.Sink].
func (s *Sink) Unpause() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != audio.SinkPaused {
		return false
	}
	s.status = audio.SinkPlaying
	close(s.resume)
	s.resume = make(chan struct{})
	return true
}

// Stop implements [audio.Sink].
func (s *Sink) Stop(force bool) bool {
	s.mu.Lock()
	pb := s.current
	if pb == nil {
		s.mu.Unlock()
		return false
	}
	old := s.status
	if s.status == audio.SinkPaused {
		s.status = audio.SinkPlaying
		close(s.resume)
		s.resume = make(chan struct{})
	}
	if !force && s.status == audio.SinkPlaying {
		pb.stopping = true
		s.mu.Unlock()
		return true
	}
	s.current = nil
	s.status = audio.SinkIdle
	s.mu.Unlock()

	pb.cancel()
	s.emit(audio.SinkEvent{Resource: pb.res, Old: old})
	return true
}

// Close force-stops playback and releases the sink. Events are no longer
// delivered after Close returns.
func (s *Sink) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		pb := s.current
		s.current = nil
		s.status = audio.SinkIdle
		s.mu.Unlock()
		if pb != nil {
			pb.cancel()
		}
		close(s.done)
	})
	return nil
}

// run decodes pb and pumps frames until the stream ends, fails, or pb is
// cancelled.
func (s *Sink) run(ctx context.Context, pb *playback) {
	defer pb.res.Close()

	rc, err := s.dec.Decode(ctx, pb.res)
	if err != nil {
		s.finish(pb, fmt.Errorf("sink: decode: %w", err))
		return
	}
	defer rc.Close()

	s.mu.Lock()
	if s.current != pb {
		s.mu.Unlock()
		return
	}
	s.status = audio.SinkPlaying
	s.mu.Unlock()

	var ts time.Duration
	for {
		stopping, err := s.waitPlayable(ctx, pb)
		if err != nil {
			return
		}
		if stopping {
			for range silenceFrames {
				if !s.send(ctx, audio.AudioFrame{Data: audio.Silence(), SampleRate: audio.SampleRate, Channels: audio.Channels, Timestamp: ts}) {
					return
				}
			}
			s.finish(pb, nil)
			return
		}

		buf := make([]byte, audio.FrameBytes)
		n, err := io.ReadFull(rc, buf)
		if n > 0 {
			audio.ApplyVolume(buf, pb.res.Volume())
			if !s.send(ctx, audio.AudioFrame{Data: buf, SampleRate: audio.SampleRate, Channels: audio.Channels, Timestamp: ts}) {
				return
			}
			pb.res.AddPlayback(frameDuration)
			ts += frameDuration
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			s.finish(pb, nil)
			return
		case ctx.Err() != nil:
			return
		default:
			s.finish(pb, fmt.Errorf("sink: read: %w", err))
			return
		}
	}
}

// waitPlayable blocks while the sink is paused. It reports whether a graceful
// stop was requested and returns an error once pb has been cancelled.
func (s *Sink) waitPlayable(ctx context.Context, pb *playback) (bool, error) {
	for {
		s.mu.Lock()
		paused := s.status == audio.SinkPaused && s.current == pb
		resume := s.resume
		stopping := pb.stopping
		s.mu.Unlock()

		if !paused {
			return stopping, ctx.Err()
		}
		select {
		case <-resume:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

// send delivers frame to the attached output, waiting while none is attached.
func (s *Sink) send(ctx context.Context, frame audio.AudioFrame) bool {
	for {
		s.mu.Lock()
		out, changed := s.out, s.outChanged
		s.mu.Unlock()

		if out == nil {
			select {
			case <-changed:
				continue
			case <-ctx.Done():
				return false
			}
		}
		select {
		case out <- frame:
			return true
		case <-changed:
		case <-ctx.Done():
			return false
		}
	}
}

// finish moves the sink to idle if pb is still current and emits its terminal
// event. Replaced or force-stopped playbacks emit nothing here.
func (s *Sink) finish(pb *playback, err error) {
	s.mu.Lock()
	if s.current != pb {
		s.mu.Unlock()
		return
	}
	old := s.status
	s.current = nil
	s.status = audio.SinkIdle
	s.mu.Unlock()

	pb.cancel()
	if err != nil {
		slog.Debug("sink: playback failed", "err", err)
	}
	s.emit(audio.SinkEvent{Resource: pb.res, Old: old, Err: err})
}

func (s *Sink) emit(ev audio.SinkEvent) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}
