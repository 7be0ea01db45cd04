package notification

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// ErrStreamClosed is returned by Send after the stream was closed.
var ErrStreamClosed = errors.New("stream closed")

// ChannelStream is a Stream backed by a buffered channel, for in-process
// subscribers such as the terminal front end.
type ChannelStream struct {
	ch     chan *Notification
	done   chan struct{}
	closed sync.Once
}

// NewChannelStream creates a stream buffering up to size notifications.
func NewChannelStream(size int) *ChannelStream {
	return &ChannelStream{
		ch:   make(chan *Notification, size),
		done: make(chan struct{}),
	}
}

// Send implements Stream. It blocks while the buffer is full.
func (s *ChannelStream) Send(n *Notification) error {
	select {
	case <-s.done:
		return ErrStreamClosed
	default:
	}
	select {
	case s.ch <- n:
		return nil
	case <-s.done:
		return ErrStreamClosed
	}
}

// C returns the receive side of the stream.
func (s *ChannelStream) C() <-chan *Notification {
	return s.ch
}

// Close makes pending and future sends fail.
func (s *ChannelStream) Close() {
	s.closed.Do(func() {
		close(s.done)
	})
}
