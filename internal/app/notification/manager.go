// Package notification provides the notification manager for broadcasting
// playback changes to remote and terminal subscribers.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/osa030/19player/internal/app/playback"
)

const (
	defaultSendTimeout = 500 * time.Millisecond
	defaultViewRate    = 4 // Hz
)

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(*Notification) error
}

// subscription represents a subscriber's subscription.
type subscription struct {
	id     string
	stream Stream
}

// Option configures a Manager.
type Option func(*Manager)

// WithSendTimeout bounds how long a single subscriber may block a broadcast.
func WithSendTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.sendTimeout = d
		}
	}
}

// WithViewRate limits time-driven view updates to hz per second.
// Zero or negative disables the limit.
func WithViewRate(hz float64) Option {
	return func(m *Manager) {
		if hz <= 0 {
			m.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		m.limiter = rate.NewLimiter(rate.Limit(hz), 1)
	}
}

// WithMessages sets the toast texts.
func WithMessages(msgs Messages) Option {
	return func(m *Manager) {
		m.messages = msgs
	}
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sequenceNo    uint64
	sequenceNoMu  sync.Mutex

	sendTimeout time.Duration
	limiter     *rate.Limiter
	messages    Messages
}

// NewManager creates a new notification manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		subscriptions: make(map[string]*subscription),
		sendTimeout:   defaultSendTimeout,
		limiter:       rate.NewLimiter(rate.Limit(defaultViewRate), 1),
		messages:      DefaultMessages(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe adds a new subscription and returns the subscription ID.
func (m *Manager) Subscribe(stream Stream) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{
		id:     id,
		stream: stream,
	}
	zlog.Debug().Msgf("notification: subscribed: id=%s", id)
	return id
}

// NextSequenceNo returns the next sequence number and increments the counter.
func (m *Manager) NextSequenceNo() uint64 {
	m.sequenceNoMu.Lock()
	defer m.sequenceNoMu.Unlock()
	m.sequenceNo++
	return m.sequenceNo
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

// Publish converts a controller event and broadcasts it. Time updates beyond
// the view rate are dropped; every other event is delivered.
func (m *Manager) Publish(e playback.Event) {
	if e.Type == playback.EventTimeUpdated && !m.limiter.Allow() {
		return
	}
	m.Broadcast(FromEvent(e, m.messages))
}

// Broadcast sends a notification to all subscribers.
// Each stream send is done in a goroutine with a timeout to prevent blocking.
func (m *Manager) Broadcast(notification *Notification) {
	// シーケンス番号を取得してインクリメント
	notification.SequenceNo = m.NextSequenceNo()

	m.mu.RLock()
	// Copy subscriptions to avoid holding lock during sends
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	// Send to each subscriber in parallel with timeout
	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), m.sendTimeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- s.stream.Send(notification)
			}()

			select {
			case err := <-done:
				if err != nil {
					zlog.Debug().Msgf("notification: send failed: id=%s err=%v", s.id, err)
				}
			case <-ctx.Done():
				zlog.Warn().Msgf("notification: send timed out: id=%s type=%s", s.id, notification.Type)
			}
		}(sub)
	}

	// Wait for all sends to complete or timeout
	wg.Wait()
}

// Send sends a notification to a specific subscriber.
func (m *Manager) Send(subscriptionID string, notification *Notification) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sub, ok := m.subscriptions[subscriptionID]
	if !ok {
		return nil
	}

	return sub.stream.Send(notification)
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close closes the manager and removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make(map[string]*subscription)
}
