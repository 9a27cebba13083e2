package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestScheduler_RunsJob(t *testing.T) {
	s := New(zerolog.Nop())

	var calls atomic.Int32
	if err := s.Every("sweep", 20*time.Millisecond, func() int {
		calls.Add(1)
		return 1
	}); err != nil {
		t.Fatalf("Every: %v", err)
	}
	if s.Jobs() != 1 {
		t.Fatalf("expected 1 job, got %d", s.Jobs())
	}

	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if calls.Load() == 0 {
		t.Fatal("expected job to run at least once")
	}
}

func TestScheduler_RejectsNonPositiveInterval(t *testing.T) {
	s := New(zerolog.Nop())
	if err := s.Every("bad", 0, func() int { return 0 }); err == nil {
		t.Fatal("expected error for zero interval")
	}
	if s.Jobs() != 0 {
		t.Fatalf("expected no jobs, got %d", s.Jobs())
	}
}

func TestScheduler_StopHaltsJobs(t *testing.T) {
	s := New(zerolog.Nop())

	var calls atomic.Int32
	s.Every("sweep", 20*time.Millisecond, func() int {
		calls.Add(1)
		return 0
	})
	s.Start()
	time.Sleep(60 * time.Millisecond)
	s.Stop()

	after := calls.Load()
	time.Sleep(80 * time.Millisecond)
	if calls.Load() > after+1 {
		t.Errorf("job kept running after Stop: %d -> %d", after, calls.Load())
	}
}
