package playback

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00"},
		{-time.Second, "00:00"},
		{65 * time.Second, "01:05"},
		{59*time.Minute + 59*time.Second + 999*time.Millisecond, "59:59"},
		{time.Hour + time.Minute + 5*time.Second, "1:01:05"},
		{23 * time.Hour, "23:00:00"},
		{2*24*time.Hour + 3*time.Hour + time.Minute + 5*time.Second, "2:03:01:05"},
	}
	for _, tc := range tests {
		t.Run(tc.want, func(t *testing.T) {
			if got := FormatDuration(tc.in); got != tc.want {
				t.Errorf("FormatDuration(%v) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestQueuePage(t *testing.T) {
	t.Parallel()
	p, _, _ := newTestPlayer(t)

	now := fileTrack("now")
	now.Duration = time.Minute
	if _, err := p.Enqueue(context.Background(), now); err != nil {
		t.Fatal(err)
	}
	for i := range 30 {
		tr := fileTrack(fmt.Sprintf("t%d", i+1))
		tr.Duration = time.Second
		_, _ = p.Enqueue(context.Background(), tr)
	}

	first, err := p.QueuePage(0)
	if err != nil {
		t.Fatalf("QueuePage(0): %v", err)
	}
	if first.NowPlaying != now {
		t.Error("NowPlaying missing from page")
	}
	if len(first.Entries) != PageSize || first.Entries[0].Position != 1 {
		t.Errorf("first page: %d entries starting at %d", len(first.Entries), first.Entries[0].Position)
	}
	if first.Pages != 2 || first.Total != 31 {
		t.Errorf("Pages = %d, Total = %d; want 2, 31", first.Pages, first.Total)
	}
	if want := time.Minute + 30*time.Second; first.Duration != want {
		t.Errorf("Duration = %v, want %v", first.Duration, want)
	}

	second, err := p.QueuePage(1)
	if err != nil {
		t.Fatalf("QueuePage(1): %v", err)
	}
	if len(second.Entries) != 5 || second.Entries[0].Position != 26 || second.Entries[4].Track.Title != "t30" {
		t.Errorf("second page entries = %+v", second.Entries)
	}

	for _, page := range []int{-1, 2} {
		if _, err := p.QueuePage(page); !errors.Is(err, ErrInvalidPage) {
			t.Errorf("QueuePage(%d) = %v, want ErrInvalidPage", page, err)
		}
	}
}

func TestQueuePage_Idle(t *testing.T) {
	t.Parallel()
	p, _, _ := newTestPlayer(t)

	qp, err := p.QueuePage(0)
	if err != nil {
		t.Fatal(err)
	}
	if qp.NowPlaying != nil || qp.Total != 0 || qp.Pages != 1 {
		t.Errorf("idle page = %+v", qp)
	}
}
