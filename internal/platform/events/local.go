package events

import (
	"context"
	"errors"
)

// ErrClosed is returned when publishing to or subscribing on a closed bus.
var ErrClosed = errors.New("event bus closed")

// LocalBus delivers events within the process. It is used when no Redis
// URL is configured.
type LocalBus struct {
	f *fanout
}

func NewLocalBus() *LocalBus {
	return &LocalBus{f: newFanout()}
}

func (b *LocalBus) Publish(_ context.Context, event Event) error {
	b.f.mu.RLock()
	closed := b.f.closed
	b.f.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	b.f.deliver(event)
	return nil
}

func (b *LocalBus) Subscribe(ctx context.Context) (<-chan Event, error) {
	return b.f.add(ctx)
}

func (b *LocalBus) Close() error {
	b.f.close()
	return nil
}
