package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/orbitflow/agentcore/internal/apperr"
)

// Broker fans out events to external subscribers (SSE clients, A2A peers)
// at-least-once (spec §4.2). The Redis channel is namespaced per task so a
// subscriber opens exactly one channel for its replay+live contract.
type Broker struct {
	client *redis.Client
}

// NewBroker constructs a Broker from a Redis connection URL.
func NewBroker(url string) (*Broker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("eventbus: parse broker url: %w", err)
	}
	return &Broker{client: redis.NewClient(opts)}, nil
}

func channelName(taskID string) string {
	return "task-events:" + taskID
}

// Publish delivers ev to the broker channel for its task. At-least-once:
// callers must not treat a publish error here as fatal to the append (the
// durable log already has the event; see Bus.Publish).
func (b *Broker) Publish(ctx context.Context, ev DomainEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return apperr.Wrap(apperr.Validation, "encode event for broker", err)
	}
	if err := b.client.Publish(ctx, channelName(ev.TaskID), payload).Err(); err != nil {
		return apperr.Wrap(apperr.DependencyUnavailable, "publish to broker", err)
	}
	return nil
}

// BrokerSubscription wraps a redis.PubSub, buffering raw messages so the
// replay+live contract (spec §4.2 steps 1-4) can start listening before
// reading the durable snapshot.
type BrokerSubscription struct {
	pubsub *redis.PubSub
	ch     <-chan *redis.Message
}

// Subscribe opens a broker subscription filtered to taskID, per step 1 of
// the replay+live contract. The caller must Close the subscription.
func (b *Broker) Subscribe(ctx context.Context, taskID string) *BrokerSubscription {
	ps := b.client.Subscribe(ctx, channelName(taskID))
	return &BrokerSubscription{pubsub: ps, ch: ps.Channel()}
}

// Next blocks until a message is available or ctx is done, decoding it into
// a DomainEvent.
func (s *BrokerSubscription) Next(ctx context.Context) (DomainEvent, bool, error) {
	select {
	case <-ctx.Done():
		return DomainEvent{}, false, ctx.Err()
	case msg, ok := <-s.ch:
		if !ok {
			return DomainEvent{}, false, nil
		}
		var ev DomainEvent
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			return DomainEvent{}, false, apperr.Wrap(apperr.DependencyUnavailable, "decode broker event", err)
		}
		return ev, true, nil
	}
}

// Close releases the underlying PubSub connection.
func (s *BrokerSubscription) Close() error {
	return s.pubsub.Close()
}
