// Package events carries change notifications between the parts of one
// instance and, when Redis is configured, between instances.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// TypePrescriptionsChanged is published after a prescription write
	// succeeds.
	TypePrescriptionsChanged = "prescriptions.changed"
	// TypeReferenceChanged is published after a doctor, patient, pharmacy,
	// company, drug, pharmacy drug or contract write succeeds.
	TypeReferenceChanged = "reference.changed"

	ActionUpsert = "upsert"
	ActionAdd    = "add"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Event describes a committed change. Origin identifies the publishing
// instance so it can skip work it has already done.
type Event struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	Action         string    `json:"action"`
	Entity         string    `json:"entity,omitempty"`
	PrescriptionID int64     `json:"prescription_id,omitempty"`
	DoctorID       int64     `json:"doctor_id,omitempty"`
	PatientID      int64     `json:"patient_id,omitempty"`
	Origin         string    `json:"origin"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// NewEvent stamps an id and time on a change event.
func NewEvent(typ, action, origin string) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       typ,
		Action:     action,
		Origin:     origin,
		OccurredAt: time.Now().UTC(),
	}
}

// Bus fans events out to every subscriber, including subscribers on the
// publishing instance.
type Bus interface {
	Publish(ctx context.Context, event Event) error
	// Subscribe returns a channel that receives events until ctx is done
	// or the bus is closed.
	Subscribe(ctx context.Context) (<-chan Event, error)
	Close() error
}

func encode(e Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

func decode(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return e, nil
}

// fanout is the subscriber set shared by both bus implementations.
type fanout struct {
	mu     sync.RWMutex
	subs   map[chan Event]struct{}
	closed bool
}

func newFanout() *fanout {
	return &fanout{subs: make(map[chan Event]struct{})}
}

func (f *fanout) add(ctx context.Context) (<-chan Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}
	ch := make(chan Event, 64)
	f.subs[ch] = struct{}{}
	go func() {
		<-ctx.Done()
		f.remove(ch)
	}()
	return ch, nil
}

func (f *fanout) remove(ch chan Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[ch]; !ok {
		return
	}
	delete(f.subs, ch)
	close(ch)
}

// deliver drops the event for subscribers whose buffer is full.
func (f *fanout) deliver(e Event) (dropped int) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for ch := range f.subs {
		select {
		case ch <- e:
		default:
			dropped++
		}
	}
	return dropped
}

func (f *fanout) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for ch := range f.subs {
		close(ch)
	}
	f.subs = make(map[chan Event]struct{})
}
