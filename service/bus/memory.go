package bus

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// MemoryBus is an in-process bus with the same contract as the Redis and
// NATS backends. Used by tests and by single-node embedded deployments.
type MemoryBus struct {
	mu     sync.RWMutex
	topics map[string]map[*memorySubscription]struct{}
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{topics: make(map[string]map[*memorySubscription]struct{})}
}

func (b *MemoryBus) Subscribe(ctx context.Context, topics ...string) (Subscription, error) {
	if len(topics) == 0 {
		return nil, errors.New("bus: no topics")
	}
	s := &memorySubscription{
		bus:    b,
		topics: topics,
		ch:     make(chan Message, 256),
		done:   make(chan struct{}),
	}
	b.mu.Lock()
	for _, topic := range topics {
		subs := b.topics[topic]
		if subs == nil {
			subs = make(map[*memorySubscription]struct{})
			b.topics[topic] = subs
		}
		subs[s] = struct{}{}
	}
	b.mu.Unlock()
	return s, nil
}

// Publish delivers to every current subscriber of topic. A subscriber whose
// buffer is full misses the message: at-most-once, same as the network
// backends under pressure.
func (b *MemoryBus) Publish(ctx context.Context, topic string, payload []byte) error {
	msg := Message{Topic: topic, Payload: payload}

	b.mu.RLock()
	targets := make([]*memorySubscription, 0, len(b.topics[topic]))
	for s := range b.topics[topic] {
		targets = append(targets, s)
	}
	b.mu.RUnlock()

	for _, s := range targets {
		select {
		case s.ch <- msg:
		case <-s.done:
		default:
		}
	}
	return nil
}

func (b *MemoryBus) drop(s *memorySubscription) {
	b.mu.Lock()
	for _, topic := range s.topics {
		if subs := b.topics[topic]; subs != nil {
			delete(subs, s)
			if len(subs) == 0 {
				delete(b.topics, topic)
			}
		}
	}
	b.mu.Unlock()
}

// SubscriberCount reports how many live subscriptions a topic has.
func (b *MemoryBus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

type memorySubscription struct {
	bus    *MemoryBus
	topics []string
	ch     chan Message

	closeOnce sync.Once
	done      chan struct{}
}

func (s *memorySubscription) Next(ctx context.Context) (Message, error) {
	// Drain buffered messages before reporting closed so a racing publish
	// and close still delivers what already arrived.
	select {
	case msg := <-s.ch:
		return msg, nil
	default:
	}
	select {
	case msg := <-s.ch:
		return msg, nil
	case <-s.done:
		return Message{}, ErrClosed
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (s *memorySubscription) Close() error {
	s.closeOnce.Do(func() {
		s.bus.drop(s)
		close(s.done)
	})
	return nil
}
