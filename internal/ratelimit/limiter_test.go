package ratelimit

import (
	"testing"
	"time"
)

func TestStore_AllowsBurstPerKey(t *testing.T) {
	s := New(1, 2)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	if !s.Allow("a") || !s.Allow("a") {
		t.Fatalf("burst rejected")
	}
	if s.Allow("a") {
		t.Fatalf("third call allowed, want rejected")
	}
	if !s.Allow("b") {
		t.Fatalf("other key rejected")
	}

	now = now.Add(time.Second)
	if !s.Allow("a") {
		t.Fatalf("token not refilled after 1s")
	}
}

func TestStore_EvictsIdleKeys(t *testing.T) {
	s := New(1, 1)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.Allow("a")
	s.Allow("b")
	now = now.Add(idleTTL + time.Minute)
	s.Allow("c")

	if got := s.size(); got != 1 {
		t.Fatalf("size = %d, want 1", got)
	}
}

func TestNew_DisabledAllowsAll(t *testing.T) {
	s := New(0, 0)
	if s != nil {
		t.Fatalf("New(0, 0) = %v, want nil", s)
	}
	for i := 0; i < 100; i++ {
		if !s.Allow("x") {
			t.Fatalf("nil store rejected a call")
		}
	}
}
