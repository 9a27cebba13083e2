package events

import (
	"context"
	"testing"
	"time"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestLocalBus_FanOut(t *testing.T) {
	bus := NewLocalBus()
	defer bus.Close()
	ctx := context.Background()

	a, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := bus.Subscribe(ctx)

	ev := NewEvent(TypePrescriptionsChanged, ActionUpsert, "node-1")
	ev.DoctorID = 1
	if err := bus.Publish(ctx, ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, ch := range []<-chan Event{a, b} {
		got := receive(t, ch)
		if got.ID != ev.ID || got.DoctorID != 1 {
			t.Errorf("unexpected event: %+v", got)
		}
	}
}

func TestLocalBus_UnsubscribeOnContextDone(t *testing.T) {
	bus := NewLocalBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := bus.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("subscription was not removed")
	}
}

func TestLocalBus_Closed(t *testing.T) {
	bus := NewLocalBus()
	bus.Close()

	if err := bus.Publish(context.Background(), Event{}); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, err := bus.Subscribe(context.Background()); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestLocalBus_FullBufferDoesNotBlock(t *testing.T) {
	bus := NewLocalBus()
	defer bus.Close()
	bus.Subscribe(context.Background())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			bus.Publish(context.Background(), Event{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestEncodeDecode(t *testing.T) {
	ev := NewEvent(TypePrescriptionsChanged, ActionDelete, "node-2")
	ev.PrescriptionID = 7

	data, err := encode(ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := decode(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.PrescriptionID != 7 || got.Action != ActionDelete || got.Origin != "node-2" {
		t.Errorf("unexpected event: %+v", got)
	}

	if _, err := decode([]byte("not json")); err == nil {
		t.Error("expected error for malformed payload")
	}
}

func TestNewRedisClient_BadURL(t *testing.T) {
	if _, err := NewRedisClient(context.Background(), "::not a url"); err == nil {
		t.Error("expected error for malformed redis url")
	}
}
