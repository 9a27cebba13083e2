package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultChannel is the Redis pub/sub channel used for prescription changes.
const DefaultChannel = "rxdesk:prescriptions"

// NewRedisClient parses a redis:// URL and checks the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisBus publishes events on a Redis channel and delivers every message
// on that channel, including its own, to local subscribers.
type RedisBus struct {
	client  *redis.Client
	channel string
	logger  zerolog.Logger
	f       *fanout

	mu     sync.Mutex
	pubsub *redis.PubSub
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRedisBus(client *redis.Client, channel string, logger zerolog.Logger) *RedisBus {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBus{
		client:  client,
		channel: channel,
		logger:  logger.With().Str("component", "events").Str("channel", channel).Logger(),
		f:       newFanout(),
		done:    make(chan struct{}),
	}
}

func (b *RedisBus) Publish(ctx context.Context, event Event) error {
	data, err := encode(event)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Subscribe starts the Redis subscription on first use.
func (b *RedisBus) Subscribe(ctx context.Context) (<-chan Event, error) {
	ch, err := b.f.add(ctx)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel == nil {
		rctx, cancel := context.WithCancel(context.Background())
		b.cancel = cancel
		b.pubsub = b.client.Subscribe(rctx, b.channel)
		go b.receive(rctx)
	}
	return ch, nil
}

func (b *RedisBus) receive(ctx context.Context) {
	defer close(b.done)
	msgs := b.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			event, err := decode([]byte(msg.Payload))
			if err != nil {
				b.logger.Warn().Err(err).Msg("dropping malformed event")
				continue
			}
			if dropped := b.f.deliver(event); dropped > 0 {
				b.logger.Warn().Int("dropped", dropped).Str("event_id", event.ID).Msg("subscriber buffer full")
			}
		}
	}
}

func (b *RedisBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var err error
	if b.cancel != nil {
		b.cancel()
		err = b.pubsub.Close()
		<-b.done
	}
	b.f.close()
	return err
}
