package playback

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eric-livezey/void-bot/pkg/audio"
	"github.com/eric-livezey/void-bot/pkg/audio/mock"
)

func newTestPlayer(t *testing.T) (*Player, *mock.Sink, *mock.Connection) {
	t.Helper()
	sink := mock.NewSink()
	conn := mock.NewConnection("g1", "v1")
	p := NewPlayer("g1", sink, nil)
	p.SetConnection(conn)
	t.Cleanup(p.Destroy)
	return p, sink, conn
}

func fileTrack(title string) *Track {
	return NewTrack(title, func(context.Context) (*audio.Resource, error) {
		return audio.NewFileResource("/cache/" + title + ".webm"), nil
	})
}

func failingTrack(title string) *Track {
	return NewTrack(title, func(context.Context) (*audio.Resource, error) {
		return nil, errors.New("exit status 1")
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func nextError(t *testing.T, p *Player) error {
	t.Helper()
	select {
	case err := <-p.Errors():
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("no error delivered")
		return nil
	}
}

func assertNoError(t *testing.T, p *Player) {
	t.Helper()
	select {
	case err := <-p.Errors():
		t.Errorf("unexpected player error: %v", err)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestEnqueue_IdlePlaysImmediately(t *testing.T) {
	t.Parallel()
	p, sink, _ := newTestPlayer(t)
	a := fileTrack("a")

	pos, err := p.Enqueue(context.Background(), a)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if pos != 0 {
		t.Errorf("position = %d, want 0", pos)
	}
	if p.NowPlaying() != a {
		t.Error("NowPlaying is not a")
	}
	if p.Status() != StatusPlaying {
		t.Errorf("Status = %v, want playing", p.Status())
	}
	if sink.PlayCount() != 1 || sink.Current() != p.Resource() {
		t.Error("sink is not playing the track's resource")
	}
}

func TestEnqueue_BusyAppends(t *testing.T) {
	t.Parallel()
	p, _, _ := newTestPlayer(t)
	a, b, c := fileTrack("a"), fileTrack("b"), fileTrack("c")

	if _, err := p.Enqueue(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	pos, err := p.Enqueue(context.Background(), b)
	if err != nil || pos != 1 {
		t.Fatalf("Enqueue(b) = %d, %v; want 1", pos, err)
	}
	if p.Queue().Len() != 1 {
		t.Errorf("queue len = %d, want 1", p.Queue().Len())
	}
	if !b.IsPrepared() {
		t.Error("b not prepared after becoming queue head")
	}
	pos, _ = p.Enqueue(context.Background(), c)
	if pos != 2 || pos != p.Queue().Len() {
		t.Errorf("Enqueue(c) = %d, want queue length 2", pos)
	}
}

func TestPlayer_AutoAdvance(t *testing.T) {
	t.Parallel()
	p, sink, _ := newTestPlayer(t)
	a, b := fileTrack("a"), fileTrack("b")
	_, _ = p.Enqueue(context.Background(), a)
	_, _ = p.Enqueue(context.Background(), b)

	sink.Finish(nil)
	waitFor(t, "b to play", func() bool { return p.NowPlaying() == b && sink.PlayCount() == 2 })
	if p.Queue().Len() != 0 {
		t.Errorf("queue len = %d, want 0", p.Queue().Len())
	}

	sink.Finish(nil)
	waitFor(t, "player to idle", func() bool { return p.NowPlaying() == nil })
	if p.Status() != StatusIdle {
		t.Errorf("Status = %v, want idle", p.Status())
	}
	assertNoError(t, p)
}

func TestEnqueue_NotConnected(t *testing.T) {
	t.Parallel()
	sink := mock.NewSink()
	p := NewPlayer("g1", sink, nil)
	t.Cleanup(p.Destroy)

	pos, err := p.Enqueue(context.Background(), fileTrack("a"))
	if !errors.Is(err, ErrNotConnected) || pos != -1 {
		t.Errorf("Enqueue = %d, %v; want -1, ErrNotConnected", pos, err)
	}
	if p.NowPlaying() != nil {
		t.Error("NowPlaying set without a connection")
	}
}

func TestEnqueue_UsesPlatformConnection(t *testing.T) {
	t.Parallel()
	sink := mock.NewSink()
	platform := &mock.Platform{}
	if _, err := platform.Connect(context.Background(), "g1", "v1"); err != nil {
		t.Fatal(err)
	}
	p := NewPlayer("g1", sink, platform)
	t.Cleanup(p.Destroy)

	if pos, err := p.Enqueue(context.Background(), fileTrack("a")); err != nil || pos != 0 {
		t.Fatalf("Enqueue = %d, %v", pos, err)
	}
	if p.Connection() == nil {
		t.Error("platform connection was not bound")
	}
	if len(sink.Outputs) != 1 {
		t.Errorf("sink attached %d times, want 1", len(sink.Outputs))
	}
}

func TestEnqueue_ImmediateResolutionFailure(t *testing.T) {
	t.Parallel()
	p, sink, _ := newTestPlayer(t)

	pos, err := p.Enqueue(context.Background(), failingTrack("bad"))
	if !errors.Is(err, ErrResolution) || pos != -1 {
		t.Fatalf("Enqueue = %d, %v; want -1, ErrResolution", pos, err)
	}
	if p.NowPlaying() != nil {
		t.Error("NowPlaying not cleared after failure")
	}
	if sink.PlayCount() != 0 {
		t.Error("sink played a failed track")
	}
	// Reported to the caller only.
	assertNoError(t, p)
}

func TestPlayer_AdvanceSkipsFailedTracks(t *testing.T) {
	t.Parallel()
	p, sink, _ := newTestPlayer(t)
	a, bad, c := fileTrack("a"), failingTrack("bad"), fileTrack("c")
	_, _ = p.Enqueue(context.Background(), a)
	_, _ = p.Enqueue(context.Background(), bad)
	_, _ = p.Enqueue(context.Background(), c)

	sink.Finish(nil)
	waitFor(t, "c to play", func() bool { return p.NowPlaying() == c })
	if err := nextError(t, p); !errors.Is(err, ErrResolution) {
		t.Errorf("error = %v, want ErrResolution", err)
	}
	assertNoError(t, p)
}

func TestSkip_DisablesLoopAndAdvances(t *testing.T) {
	t.Parallel()
	p, sink, _ := newTestPlayer(t)
	a, b := fileTrack("a"), fileTrack("b")
	_, _ = p.Enqueue(context.Background(), a)
	_, _ = p.Enqueue(context.Background(), b)
	p.SetLoop(true)

	if got := p.Skip(); got != a {
		t.Errorf("Skip returned %v, want a", got)
	}
	if p.Loop() {
		t.Error("loop still enabled after Skip")
	}
	waitFor(t, "b to play", func() bool { return p.NowPlaying() == b })
	if sink.PlayCount() != 2 {
		t.Errorf("play count = %d, want 2", sink.PlayCount())
	}
}

func TestSkip_Idle(t *testing.T) {
	t.Parallel()
	p, _, _ := newTestPlayer(t)
	if got := p.Skip(); got != nil {
		t.Errorf("Skip on idle player = %v, want nil", got)
	}
}

func TestSkip_WhileResolving(t *testing.T) {
	t.Parallel()
	p, sink, _ := newTestPlayer(t)
	release := make(chan struct{})
	a, c := fileTrack("a"), fileTrack("c")
	slow := NewTrack("slow", func(context.Context) (*audio.Resource, error) {
		<-release
		return audio.NewFileResource("/slow"), nil
	})
	_, _ = p.Enqueue(context.Background(), a)
	_, _ = p.Enqueue(context.Background(), slow)
	_, _ = p.Enqueue(context.Background(), c)

	sink.Finish(nil)
	waitFor(t, "slow to become current", func() bool { return p.NowPlaying() == slow })

	if got := p.Skip(); got != slow {
		t.Errorf("Skip returned %v, want slow", got)
	}
	close(release)
	waitFor(t, "c to play", func() bool { return p.NowPlaying() == c && sink.PlayCount() == 2 })
	for _, res := range sink.Played {
		if res.Path() == "/slow" {
			t.Error("skipped track reached the sink")
		}
	}
}

func TestLoop_ReplaysCurrentTrack(t *testing.T) {
	t.Parallel()
	p, sink, _ := newTestPlayer(t)
	var calls atomic.Int32
	a := NewTrack("a", countingPrepare(&calls))
	b := fileTrack("b")
	_, _ = p.Enqueue(context.Background(), a)
	_, _ = p.Enqueue(context.Background(), b)
	p.SetLoop(true)

	sink.Finish(nil)
	waitFor(t, "a to replay", func() bool { return sink.PlayCount() == 2 })
	if p.NowPlaying() != a {
		t.Error("NowPlaying changed while looping")
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("prepare calls = %d, want 2 (replay re-prepares)", got)
	}
	if p.Queue().Len() != 1 {
		t.Errorf("queue len = %d, want 1", p.Queue().Len())
	}
}

func TestLoop_ReplayFailureSkips(t *testing.T) {
	t.Parallel()
	p, sink, _ := newTestPlayer(t)
	var calls atomic.Int32
	a := NewTrack("a", func(context.Context) (*audio.Resource, error) {
		if calls.Add(1) > 1 {
			return nil, errors.New("gone")
		}
		return audio.NewFileResource("/a"), nil
	})
	b := fileTrack("b")
	_, _ = p.Enqueue(context.Background(), a)
	_, _ = p.Enqueue(context.Background(), b)
	p.SetLoop(true)

	sink.Finish(nil)
	waitFor(t, "b to play", func() bool { return p.NowPlaying() == b })
	if p.Loop() {
		t.Error("loop still enabled after replay failure")
	}
	if err := nextError(t, p); !errors.Is(err, ErrResolution) {
		t.Errorf("error = %v, want ErrResolution", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("prepare calls = %d, want 2", got)
	}
}

func TestSetVolume(t *testing.T) {
	t.Parallel()
	p, _, _ := newTestPlayer(t)

	if err := p.SetVolume(-1); !errors.Is(err, ErrInvalidVolume) {
		t.Errorf("SetVolume(-1) = %v, want ErrInvalidVolume", err)
	}
	if p.Volume() != 1 {
		t.Errorf("volume = %v after rejected change, want 1", p.Volume())
	}

	_, _ = p.Enqueue(context.Background(), fileTrack("a"))
	if err := p.SetVolume(0.5); err != nil {
		t.Fatal(err)
	}
	if got := p.Resource().Volume(); got != 0.5 {
		t.Errorf("live resource volume = %v, want 0.5", got)
	}

	_ = p.SetVolume(2)
	_, _ = p.Enqueue(context.Background(), fileTrack("b"))
	p.Skip()
	waitFor(t, "b to play", func() bool { return p.Resource() != nil && p.NowPlaying().Title == "b" })
	if got := p.Resource().Volume(); got != 2 {
		t.Errorf("next resource volume = %v, want 2", got)
	}
}

func TestPauseUnpause(t *testing.T) {
	t.Parallel()
	p, sink, _ := newTestPlayer(t)

	if ok, err := p.Pause(); ok || err != nil {
		t.Errorf("Pause on idle = %v, %v; want false, nil", ok, err)
	}
	_, _ = p.Enqueue(context.Background(), fileTrack("a"))

	if ok, err := p.Pause(); !ok || err != nil {
		t.Fatalf("Pause = %v, %v", ok, err)
	}
	if p.Status() != StatusPaused {
		t.Errorf("Status = %v, want paused", p.Status())
	}
	if ok, _ := p.Pause(); ok {
		t.Error("second Pause reported a transition")
	}
	if ok, err := p.Unpause(); !ok || err != nil {
		t.Fatalf("Unpause = %v, %v", ok, err)
	}
	if ok, _ := p.Unpause(); ok {
		t.Error("second Unpause reported a transition")
	}

	sink.RefusePause = true
	if _, err := p.Pause(); !errors.Is(err, ErrPauseFailed) {
		t.Errorf("Pause with refusing sink = %v, want ErrPauseFailed", err)
	}
}

func TestStop(t *testing.T) {
	t.Parallel()
	p, sink, _ := newTestPlayer(t)
	_, _ = p.Enqueue(context.Background(), fileTrack("a"))
	_, _ = p.Enqueue(context.Background(), fileTrack("b"))
	p.SetLoop(true)

	p.Stop()
	if p.NowPlaying() != nil || p.Queue().Len() != 0 || p.Loop() {
		t.Error("Stop did not reset state")
	}
	if sink.Status() != audio.SinkIdle {
		t.Errorf("sink status = %v, want idle", sink.Status())
	}
	if len(sink.StopCalls) == 0 || !sink.StopCalls[len(sink.StopCalls)-1] {
		t.Error("sink was not force-stopped")
	}
	// The stop event must not start anything.
	time.Sleep(20 * time.Millisecond)
	if sink.PlayCount() != 1 {
		t.Errorf("play count = %d after Stop, want 1", sink.PlayCount())
	}
}

func TestStop_ClosesPreparedQueueHead(t *testing.T) {
	t.Parallel()
	p, _, _ := newTestPlayer(t)
	body := newCountingCloser()
	next := streamTrack("next", body)
	_, _ = p.Enqueue(context.Background(), fileTrack("a"))
	_, _ = p.Enqueue(context.Background(), next)
	waitFor(t, "queue head to resolve", next.IsResolved)

	p.Stop()
	if got := body.closed.Load(); got != 1 {
		t.Errorf("queued stream closed = %d, want 1", got)
	}
}

func TestSkip_ClosesSupersededResource(t *testing.T) {
	t.Parallel()
	p, sink, _ := newTestPlayer(t)
	body := newCountingCloser()
	release := make(chan struct{})
	slow := NewTrack("slow", func(context.Context) (*audio.Resource, error) {
		<-release
		return audio.NewStreamResource(body), nil
	})
	_, _ = p.Enqueue(context.Background(), fileTrack("a"))
	_, _ = p.Enqueue(context.Background(), slow)

	sink.Finish(nil)
	waitFor(t, "slow to become current", func() bool { return p.NowPlaying() == slow })
	p.Skip()
	close(release)

	waitFor(t, "superseded stream to close", func() bool { return body.closed.Load() == 1 })
	if sink.PlayCount() != 1 {
		t.Errorf("play count = %d, want 1", sink.PlayCount())
	}
}

func TestSkip_StopsOnlyTheSkippedTrack(t *testing.T) {
	t.Parallel()
	p, sink, _ := newTestPlayer(t)
	a, b, c := fileTrack("a"), fileTrack("b"), fileTrack("c")
	_, _ = p.Enqueue(context.Background(), a)
	_, _ = p.Enqueue(context.Background(), b)
	_, _ = p.Enqueue(context.Background(), c)

	// a ends on its own while a skip is issued.
	sink.Finish(nil)
	skipped := p.Skip()

	var successor *Track
	switch skipped {
	case a:
		successor = b
	case b:
		successor = c
	default:
		t.Fatalf("Skip returned %v, want a or b", skipped)
	}
	waitFor(t, successor.Title+" to play", func() bool { return p.NowPlaying() == successor })
	time.Sleep(20 * time.Millisecond)
	if got := p.NowPlaying(); got != successor {
		t.Errorf("now playing %v after settling, want %s (one track skipped)", got, successor.Title)
	}
}

func TestConnectionLostStops(t *testing.T) {
	t.Parallel()

	for _, status := range []audio.ConnectionStatus{audio.ConnDisconnected, audio.ConnDestroyed} {
		t.Run(status.String(), func(t *testing.T) {
			t.Parallel()
			p, sink, conn := newTestPlayer(t)
			_, _ = p.Enqueue(context.Background(), fileTrack("a"))
			_, _ = p.Enqueue(context.Background(), fileTrack("b"))

			conn.SetStatus(status, nil)
			if p.NowPlaying() != nil || p.Queue().Len() != 0 {
				t.Error("player not stopped after connection loss")
			}
			if p.Connection() != nil {
				t.Error("lost connection still bound")
			}
			if sink.CallCountDetach != 1 {
				t.Errorf("detach calls = %d, want 1", sink.CallCountDetach)
			}
			if _, err := p.Enqueue(context.Background(), fileTrack("c")); !errors.Is(err, ErrNotConnected) {
				t.Errorf("Enqueue after loss = %v, want ErrNotConnected", err)
			}
		})
	}
}

func TestConnectionErrorIsReported(t *testing.T) {
	t.Parallel()
	p, _, conn := newTestPlayer(t)

	conn.SetStatus(audio.ConnReady, errors.New("udp timeout"))
	if err := nextError(t, p); err == nil {
		t.Fatal("nil error")
	}
	if p.Connection() == nil {
		t.Error("connection unbound after a recoverable error")
	}
}

func TestSetConnection_ReplacesAndIgnoresStaleCallbacks(t *testing.T) {
	t.Parallel()
	p, sink, old := newTestPlayer(t)
	fresh := mock.NewConnection("g1", "v2")

	p.SetConnection(fresh)
	if sink.CallCountDetach != 1 {
		t.Errorf("detach calls = %d, want 1", sink.CallCountDetach)
	}
	_, _ = p.Enqueue(context.Background(), fileTrack("a"))

	old.SetStatus(audio.ConnDestroyed, nil)
	if p.NowPlaying() == nil {
		t.Error("callback from a replaced connection stopped the player")
	}
}

func TestSetConnection_NilStops(t *testing.T) {
	t.Parallel()
	p, _, _ := newTestPlayer(t)
	_, _ = p.Enqueue(context.Background(), fileTrack("a"))

	p.SetConnection(nil)
	if p.NowPlaying() != nil {
		t.Error("player still playing after SetConnection(nil)")
	}
}

func TestSinkErrorSkips(t *testing.T) {
	t.Parallel()
	p, sink, _ := newTestPlayer(t)
	a, b := fileTrack("a"), fileTrack("b")
	_, _ = p.Enqueue(context.Background(), a)
	_, _ = p.Enqueue(context.Background(), b)
	p.SetLoop(true)

	sink.Finish(errors.New("decode: invalid data"))
	if err := nextError(t, p); err == nil {
		t.Fatal("nil error")
	}
	waitFor(t, "b to play", func() bool { return p.NowPlaying() == b })
	if p.Loop() {
		t.Error("loop still enabled after sink error")
	}
}

func TestDestroy(t *testing.T) {
	t.Parallel()
	sink := mock.NewSink()
	p := NewPlayer("g1", sink, nil)
	p.SetConnection(mock.NewConnection("g1", "v1"))
	_, _ = p.Enqueue(context.Background(), fileTrack("a"))

	p.Destroy()
	p.Destroy()
	select {
	case <-p.Done():
	default:
		t.Fatal("Done not closed")
	}
	if p.NowPlaying() != nil || p.Connection() != nil {
		t.Error("state survived Destroy")
	}
}
