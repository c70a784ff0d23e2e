package bus

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
)

// NatsBus is the alternative bus backend for deployments already running
// NATS. Core mode only: no JetStream, matching the no-durability contract.
type NatsBus struct {
	nc *nats.Conn
}

type NatsConfig struct {
	Servers       []string
	Name          string
	ReconnectWait time.Duration
	Timeout       time.Duration
}

func NewNatsBus(cfg NatsConfig) (*NatsBus, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("bus: nats servers missing")
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 500 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(cfg.Timeout),
	}
	nc, err := nats.Connect(strings.Join(cfg.Servers, ","), opts...)
	if err != nil {
		return nil, errors.Wrap(err, "bus: nats connect")
	}
	return &NatsBus{nc: nc}, nil
}

func (b *NatsBus) Subscribe(ctx context.Context, topics ...string) (Subscription, error) {
	if len(topics) == 0 {
		return nil, errors.New("bus: no topics")
	}
	s := &natsSubscription{
		ch:   make(chan *nats.Msg, 256),
		done: make(chan struct{}),
	}
	for _, topic := range topics {
		sub, err := b.nc.ChanSubscribe(topic, s.ch)
		if err != nil {
			_ = s.Close()
			return nil, errors.Wrapf(err, "bus: nats subscribe %s", topic)
		}
		s.subs = append(s.subs, sub)
	}
	return s, nil
}

func (b *NatsBus) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.nc.Publish(topic, payload); err != nil {
		return errors.Wrap(err, "bus: nats publish")
	}
	return nil
}

// Close drains the underlying connection.
func (b *NatsBus) Close() {
	if b.nc != nil {
		b.nc.Close()
	}
}

type natsSubscription struct {
	subs []*nats.Subscription
	ch   chan *nats.Msg

	closeOnce sync.Once
	done      chan struct{}
}

func (s *natsSubscription) Next(ctx context.Context) (Message, error) {
	select {
	case <-s.done:
		return Message{}, ErrClosed
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case msg := <-s.ch:
		return Message{Topic: msg.Subject, Payload: msg.Data}, nil
	}
}

func (s *natsSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		for _, sub := range s.subs {
			if uerr := sub.Unsubscribe(); uerr != nil && err == nil {
				err = uerr
			}
		}
		close(s.done)
	})
	return err
}
