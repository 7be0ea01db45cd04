package playback

import (
	"math/rand"

	"github.com/osa030/19player/internal/domain/track"
)

// Queue is an ordered list of tracks with one designated current position.
// CurrentIndex is -1 when the queue is empty, a valid index otherwise.
type Queue struct {
	Tracks       []track.Track
	CurrentIndex int
}

// NewQueue copies tracks into a new queue positioned at start.
func NewQueue(tracks []track.Track, start int) (Queue, error) {
	if start < 0 || start >= len(tracks) {
		return Queue{CurrentIndex: -1}, ErrInvalidIndex
	}
	q := Queue{
		Tracks:       make([]track.Track, len(tracks)),
		CurrentIndex: start,
	}
	copy(q.Tracks, tracks)
	return q, nil
}

// Len returns the number of tracks in the queue.
func (q Queue) Len() int {
	return len(q.Tracks)
}

// IsEmpty returns true if the queue has no tracks.
func (q Queue) IsEmpty() bool {
	return len(q.Tracks) == 0
}

// Current returns the track at CurrentIndex, or nil.
func (q Queue) Current() *track.Track {
	if q.CurrentIndex < 0 || q.CurrentIndex >= len(q.Tracks) {
		return nil
	}
	return &q.Tracks[q.CurrentIndex]
}

// IsLast reports whether the current position is the last entry.
func (q Queue) IsLast() bool {
	return q.CurrentIndex == len(q.Tracks)-1
}

// NextIndex returns the index playNext moves to. With shuffle on, any index
// may be picked, including the current one.
func (q Queue) NextIndex(shuffle bool, rnd *rand.Rand) int {
	if q.IsEmpty() {
		return -1
	}
	if shuffle {
		return rnd.Intn(len(q.Tracks))
	}
	return (q.CurrentIndex + 1) % len(q.Tracks)
}

// PreviousIndex returns the index one step back, wrapping to the end.
func (q Queue) PreviousIndex() int {
	if q.IsEmpty() {
		return -1
	}
	n := len(q.Tracks)
	return (q.CurrentIndex - 1 + n) % n
}

// Clone returns a copy that shares no memory with q.
func (q Queue) Clone() Queue {
	result := Queue{
		Tracks:       make([]track.Track, len(q.Tracks)),
		CurrentIndex: q.CurrentIndex,
	}
	copy(result.Tracks, q.Tracks)
	return result
}
