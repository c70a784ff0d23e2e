package bus

import (
	"context"
	"sync/atomic"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
)

// RedisBus runs the pub/sub conduit over a shared go-redis client. This is
// the default backend: one PubSub connection per gateway session.
type RedisBus struct {
	client *goredis.Client
}

func NewRedisBus(client *goredis.Client) *RedisBus {
	return &RedisBus{client: client}
}

func (b *RedisBus) Subscribe(ctx context.Context, topics ...string) (Subscription, error) {
	if len(topics) == 0 {
		return nil, errors.New("bus: no topics")
	}
	ps := b.client.Subscribe(ctx, topics...)
	// Force the SUBSCRIBE round trip so a broken bus fails the connection
	// attempt instead of the first Next call.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, errors.Wrap(err, "bus: redis subscribe")
	}
	return &redisSubscription{ps: ps}, nil
}

func (b *RedisBus) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.client.Publish(ctx, topic, payload).Err(); err != nil {
		return errors.Wrap(err, "bus: redis publish")
	}
	return nil
}

type redisSubscription struct {
	ps     *goredis.PubSub
	closed atomic.Bool
}

func (s *redisSubscription) Next(ctx context.Context) (Message, error) {
	msg, err := s.ps.ReceiveMessage(ctx)
	if err != nil {
		if s.closed.Load() {
			return Message{}, ErrClosed
		}
		if ctx.Err() != nil {
			return Message{}, ctx.Err()
		}
		return Message{}, errors.Wrap(err, "bus: redis receive")
	}
	return Message{Topic: msg.Channel, Payload: []byte(msg.Payload)}, nil
}

// Close unsubscribes all topics and unblocks a concurrent Next.
func (s *redisSubscription) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.ps.Close()
}
