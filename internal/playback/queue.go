package playback

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"
)

// Queue is the ordered list of tracks waiting to play. Whenever the track at
// index 0 changes, its preparation is started so the next transition does not
// wait on a download.
//
// All methods are safe for concurrent use.
type Queue struct {
	mu     sync.Mutex
	tracks []*Track
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Len returns the number of queued tracks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tracks)
}

// Push appends t and returns the new length.
func (q *Queue) Push(t *Track) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	head := q.headLocked()
	q.tracks = append(q.tracks, t)
	q.warmLocked(head)
	return len(q.tracks)
}

// Shift removes and returns the head, or nil when the queue is empty.
func (q *Queue) Shift() *Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tracks) == 0 {
		return nil
	}
	t := q.tracks[0]
	q.tracks[0] = nil
	q.tracks = q.tracks[1:]
	q.warmLocked(t)
	return t
}

// Get returns the track at i.
func (q *Queue) Get(i int) (*Track, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.checkLocked(i); err != nil {
		return nil, err
	}
	return q.tracks[i], nil
}

// Set replaces the track at i.
func (q *Queue) Set(i int, t *Track) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.checkLocked(i); err != nil {
		return err
	}
	head := q.headLocked()
	q.tracks[i] = t
	q.warmLocked(head)
	return nil
}

// Remove deletes and returns the track at i. The returned track is reset,
// so any resource it had prepared is closed.
func (q *Queue) Remove(i int) (*Track, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.checkLocked(i); err != nil {
		return nil, err
	}
	head := q.headLocked()
	t := q.tracks[i]
	q.tracks = slices.Delete(q.tracks, i, i+1)
	q.warmLocked(head)
	t.Reset()
	return t, nil
}

// Move moves the track at from so that it ends up at index to.
func (q *Queue) Move(from, to int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.checkLocked(from); err != nil {
		return err
	}
	if err := q.checkLocked(to); err != nil {
		return err
	}
	if from == to {
		return nil
	}
	head := q.headLocked()
	t := q.tracks[from]
	q.tracks = slices.Insert(slices.Delete(q.tracks, from, from+1), to, t)
	q.warmLocked(head)
	return nil
}

// Splice removes up to count tracks starting at start, inserts items in their
// place, and returns the removed tracks. start may equal the length only when
// the queue is empty. Removed tracks that are not re-inserted are reset.
func (q *Queue) Splice(start, count int, items ...*Track) ([]*Track, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !(start == 0 && len(q.tracks) == 0) {
		if err := q.checkLocked(start); err != nil {
			return nil, err
		}
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: count %d", ErrOutOfBounds, count)
	}
	end := min(start+count, len(q.tracks))
	head := q.headLocked()
	removed := slices.Clone(q.tracks[start:end])
	q.tracks = slices.Replace(q.tracks, start, end, items...)
	q.warmLocked(head)
	for _, t := range removed {
		if !slices.Contains(items, t) {
			t.Reset()
		}
	}
	return removed, nil
}

// Clear removes and resets every track and returns how many were removed.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.tracks)
	for _, t := range q.tracks {
		t.Reset()
	}
	q.tracks = nil
	return n
}

// Shuffle randomly permutes the queue.
func (q *Queue) Shuffle() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tracks) < 2 {
		return
	}
	head := q.headLocked()
	rand.Shuffle(len(q.tracks), func(i, j int) {
		q.tracks[i], q.tracks[j] = q.tracks[j], q.tracks[i]
	})
	q.warmLocked(head)
}

// Tracks returns a snapshot of the queue.
func (q *Queue) Tracks() []*Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.tracks)
}

// Duration returns the sum of the known track durations.
func (q *Queue) Duration() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	var d time.Duration
	for _, t := range q.tracks {
		d += t.Duration
	}
	return d
}

func (q *Queue) checkLocked(i int) error {
	if i < 0 || i >= len(q.tracks) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfBounds, i, len(q.tracks))
	}
	return nil
}

func (q *Queue) headLocked() *Track {
	if len(q.tracks) == 0 {
		return nil
	}
	return q.tracks[0]
}

// warmLocked prepares the head if it is no longer prev.
func (q *Queue) warmLocked(prev *Track) {
	if head := q.headLocked(); head != nil && head != prev {
		head.Prepare()
	}
}
