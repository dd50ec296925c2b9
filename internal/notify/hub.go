package notify

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/mailgrove/mailgrove/internal/models"
)

// subscriberBuffer is the per-subscriber event queue depth. A slow consumer
// drops events rather than blocking the publisher.
const subscriberBuffer = 16

// Subscriber receives newEmail events for one channel (a verified address).
type Subscriber struct {
	ch     chan models.NewEmailEvent
	closed chan struct{}
	once   sync.Once
}

// Events is the stream of published events for this subscriber.
func (s *Subscriber) Events() <-chan models.NewEmailEvent {
	return s.ch
}

// Close detaches the subscriber. Safe to call more than once.
func (s *Subscriber) Close() {
	s.once.Do(func() { close(s.closed) })
}

func (s *Subscriber) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// Hub is an in-process publish/subscribe bus keyed by email address. It backs
// the "new message" socket channel: delivery publishes, connected clients
// subscribe to their own address.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string][]*Subscriber
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[string][]*Subscriber)}
}

// Subscribe attaches a new subscriber to the channel for the given address.
func (h *Hub) Subscribe(email string) *Subscriber {
	sub := &Subscriber{
		ch:     make(chan models.NewEmailEvent, subscriberBuffer),
		closed: make(chan struct{}),
	}

	key := channelKey(email)
	h.mu.Lock()
	h.subscribers[key] = append(h.subscribers[key], sub)
	h.mu.Unlock()
	return sub
}

// Unsubscribe closes the subscriber and removes it from its channel.
func (h *Hub) Unsubscribe(email string, sub *Subscriber) {
	sub.Close()

	key := channelKey(email)
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.subscribers[key]
	for i, s := range subs {
		if s == sub {
			h.subscribers[key] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(h.subscribers[key]) == 0 {
		delete(h.subscribers, key)
	}
}

// PublishNewEmail delivers the event to every live subscriber of the channel.
// Best effort: full buffers and closed subscribers are skipped with a logged
// warning, never an error.
func (h *Hub) PublishNewEmail(_ context.Context, channel string, event models.NewEmailEvent) error {
	key := channelKey(channel)
	h.mu.RLock()
	subs := append([]*Subscriber(nil), h.subscribers[key]...)
	h.mu.RUnlock()

	for _, sub := range subs {
		if sub.isClosed() {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			slog.Warn("notification buffer full, dropping event", "channel", key, "sender", event.Sender)
		}
	}
	return nil
}

// ChannelSubscribers returns the number of live subscribers on a channel.
func (h *Hub) ChannelSubscribers(email string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[channelKey(email)])
}

func channelKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
