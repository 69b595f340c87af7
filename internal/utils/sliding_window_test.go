package utils

import (
	"testing"
	"time"
)

func TestSlidingWindowTryAdd(t *testing.T) {
	window := NewSlidingWindow(2 * time.Second)
	now := time.Now()
	if ok, _ := window.TryAdd(now, 2); !ok {
		t.Fatalf("first hit should pass")
	}
	window.TryAdd(now.Add(500*time.Millisecond), 2)
	if count := window.Count(now.Add(1 * time.Second)); count != 2 {
		t.Fatalf("expected 2, got %d", count)
	}
	ok, wait := window.TryAdd(now.Add(1*time.Second), 2)
	if ok {
		t.Fatalf("third hit should be refused")
	}
	if wait != time.Second {
		t.Fatalf("expected 1s wait, got %v", wait)
	}
	if count := window.Count(now.Add(3 * time.Second)); count != 0 {
		t.Fatalf("expected 0, got %d", count)
	}
}

func TestCooldownPerKey(t *testing.T) {
	cooldown := NewCooldown(1, 5*time.Minute)
	now := time.Now()
	if ok, _ := cooldown.Allow("g1", now); !ok {
		t.Fatalf("expected first ping allowed")
	}
	if ok, wait := cooldown.Allow("g1", now.Add(time.Minute)); ok || wait != 4*time.Minute {
		t.Fatalf("expected refusal with 4m wait, got ok=%v wait=%v", ok, wait)
	}
	if ok, _ := cooldown.Allow("g2", now.Add(time.Minute)); !ok {
		t.Fatalf("other key should not share the window")
	}
	if ok, _ := cooldown.Allow("g1", now.Add(6*time.Minute)); !ok {
		t.Fatalf("expected allow after window")
	}
}

func TestCooldownDisabled(t *testing.T) {
	cooldown := NewCooldown(0, time.Minute)
	for i := 0; i < 5; i++ {
		if ok, _ := cooldown.Allow("g1", time.Now()); !ok {
			t.Fatalf("disabled cooldown must always allow")
		}
	}
}

func TestCooldownRelease(t *testing.T) {
	cooldown := NewCooldown(1, 5*time.Minute)
	now := time.Now()
	if ok, _ := cooldown.Allow("g1", now); !ok {
		t.Fatalf("expected first ping allowed")
	}
	cooldown.Release("g1", now)
	if ok, _ := cooldown.Allow("g1", now.Add(time.Second)); !ok {
		t.Fatalf("released slot should be reusable")
	}
	if ok, _ := cooldown.Allow("g1", now.Add(2*time.Second)); ok {
		t.Fatalf("second hit should be refused")
	}
	cooldown.Release("unknown", now)
}
