package ratelimit

import (
	"testing"
	"time"
)

func TestAllowEnforcesBudget(t *testing.T) {
	l := NewLimiter(3, time.Minute)
	defer l.Stop()

	for i := 0; i < 3; i++ {
		if !l.Allow("t1") {
			t.Fatalf("request %d should be within budget", i+1)
		}
	}
	if l.Allow("t1") {
		t.Fatalf("request over budget should be rejected")
	}
}

func TestAllowEmptyKeyNeverLimited(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	defer l.Stop()

	for i := 0; i < 10; i++ {
		if !l.Allow("") {
			t.Fatalf("empty key must never be limited")
		}
	}
}

func TestAllowKeysAreIndependent(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	defer l.Stop()

	if !l.Allow("t1") {
		t.Fatalf("first request for t1 should pass")
	}
	if !l.Allow("t2") {
		t.Fatalf("t2 has its own budget")
	}
	if l.Allow("t1") {
		t.Fatalf("t1 budget is spent")
	}
}

func TestAllowStrictSeparateFromGeneral(t *testing.T) {
	l := NewLimiter(100, time.Minute)
	defer l.Stop()

	if !l.AllowStrict("1.2.3.4", 1, time.Minute) {
		t.Fatalf("first strict request should pass")
	}
	if l.AllowStrict("1.2.3.4", 1, time.Minute) {
		t.Fatalf("strict budget of one is spent")
	}
	// The general budget for the same key is untouched.
	if !l.Allow("1.2.3.4") {
		t.Fatalf("general budget must not share the strict bucket")
	}
}

func TestWindowSlides(t *testing.T) {
	l := NewLimiter(1, 20*time.Millisecond)
	defer l.Stop()

	if !l.Allow("t1") {
		t.Fatalf("first request should pass")
	}
	if l.Allow("t1") {
		t.Fatalf("second request inside the window should fail")
	}
	time.Sleep(30 * time.Millisecond)
	if !l.Allow("t1") {
		t.Fatalf("request after the window should pass")
	}
}
