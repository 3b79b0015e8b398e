package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	redislib "github.com/redis/go-redis/v9"

	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
)

type redisPublisher interface {
	Publish(ctx context.Context, channel string, payload any) error
}

type redisSubscriber interface {
	Subscribe(ctx context.Context, channels ...string) (*redislib.PubSub, error)
}

// RedisPublisher broadcasts events to every API instance through RelayChannel.
type RedisPublisher struct {
	client redisPublisher
}

func NewRedisPublisher(client redisPublisher) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, topic string, event Event) error {
	event.Topic = topic
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode realtime event: %w", err)
	}
	if err := p.client.Publish(ctx, RelayChannel, string(raw)); err != nil {
		return fmt.Errorf("publish realtime event: %w", err)
	}
	return nil
}

// Relay feeds events received on RelayChannel into the local hub.
type Relay struct {
	client redisSubscriber
	hub    Publisher
	logg   *logger.Logger
}

func NewRelay(client redisSubscriber, hub Publisher, logg *logger.Logger) *Relay {
	return &Relay{client: client, hub: hub, logg: logg}
}

// Run blocks until ctx is cancelled or the subscription closes.
func (r *Relay) Run(ctx context.Context) error {
	sub, err := r.client.Subscribe(ctx, RelayChannel)
	if err != nil {
		return err
	}
	defer sub.Close()
	r.pump(ctx, sub.Channel())
	return ctx.Err()
}

func (r *Relay) pump(ctx context.Context, messages <-chan *redislib.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil || event.Topic == "" {
				if r.logg != nil {
					r.logg.Warn(r.logg.WithField(ctx, "channel", msg.Channel), "dropping malformed realtime message")
				}
				continue
			}
			if err := r.hub.Publish(ctx, event.Topic, event); err != nil {
				return
			}
		}
	}
}
