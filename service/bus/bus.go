package bus

import (
	"context"

	"github.com/pkg/errors"
)

// Topic naming used across the platform: one channel per device plus a
// broadcast channel every session subscribes to.
const (
	DeviceTopicPrefix = "device:"
	BroadcastTopic    = "devices:all"
)

// DeviceTopic returns the per-device topic for a device id.
func DeviceTopic(deviceID string) string {
	return DeviceTopicPrefix + deviceID
}

// ErrClosed is the end-of-stream error returned by Subscription.Next after
// the subscription has been closed.
var ErrClosed = errors.New("bus: subscription closed")

// Message is one unit carried on the bus. The bus is a transient conduit:
// messages have no identity and no durability.
type Message struct {
	Topic   string
	Payload []byte
}

// Bus is a topic based publish/subscribe conduit with at-most-once delivery.
// A subscriber connected after a publish never sees it. Delivery order is
// preserved per topic; no ordering holds across topics.
type Bus interface {
	// Subscribe opens a subscription on the given topics.
	Subscribe(ctx context.Context, topics ...string) (Subscription, error)
	// Publish sends payload to every current subscriber of topic,
	// fire-and-forget.
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Subscription is a per-connection handle onto the bus.
//
// Next is the single suspension point: it blocks until a message arrives,
// ctx is done, or the subscription is closed. Close may be called from a
// different goroutine than the one blocked in Next and unblocks it with
// ErrClosed rather than leaking a waiter. Close is idempotent.
type Subscription interface {
	Next(ctx context.Context) (Message, error)
	Close() error
}
