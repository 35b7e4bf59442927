package handlers

import (
	"testing"
	"time"
)

func TestWindowCounterFixedWindow(t *testing.T) {
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	throttle := newWindowCounter(2, time.Minute, func() time.Time { return now })

	for i := 0; i < 2; i++ {
		if ok, _ := throttle.Take("user-1"); !ok {
			t.Fatalf("call %d should pass", i+1)
		}
	}

	now = now.Add(20 * time.Second)
	ok, retry := throttle.Take("user-1")
	if ok || retry != 40*time.Second {
		t.Fatalf("expected limit with 40s retry, got ok=%v retry=%s", ok, retry)
	}
	if ok, _ := throttle.Take("user-2"); !ok {
		t.Fatalf("limits must be per caller")
	}

	now = now.Add(40 * time.Second)
	if ok, _ := throttle.Take("user-1"); !ok {
		t.Fatalf("expected window reset at the boundary")
	}
}

func TestWindowCounterDisabled(t *testing.T) {
	if throttle := newWindowCounter(0, time.Minute, nil); throttle != nil {
		t.Fatalf("expected nil throttle for zero limit")
	}
}
