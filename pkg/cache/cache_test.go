package cache

import (
	"testing"
	"time"
)

func TestSetAndGet(t *testing.T) {
	c := New()
	c.Set("stats:t1", 42, time.Minute)

	v, ok := c.Get("stats:t1")
	if !ok {
		t.Fatalf("expected a hit")
	}
	if v.(int) != 42 {
		t.Fatalf("expected 42, got %v", v)
	}
}

func TestGetMiss(t *testing.T) {
	c := New()
	if _, ok := c.Get("absent"); ok {
		t.Fatalf("expected a miss")
	}
}

func TestExpiry(t *testing.T) {
	c := New()
	c.Set("k", "v", 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected the entry to expire")
	}
}

func TestDelete(t *testing.T) {
	c := New()
	c.Set("k", "v", time.Minute)
	c.Delete("k")

	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected the entry to be gone")
	}
}

func TestInvalidatePrefix(t *testing.T) {
	c := New()
	c.Set("stats:t1", 1, time.Minute)
	c.Set("stats:t2", 2, time.Minute)
	c.Set("other:t1", 3, time.Minute)

	c.InvalidatePrefix("stats:")

	if _, ok := c.Get("stats:t1"); ok {
		t.Fatalf("expected stats:t1 to be invalidated")
	}
	if _, ok := c.Get("stats:t2"); ok {
		t.Fatalf("expected stats:t2 to be invalidated")
	}
	if _, ok := c.Get("other:t1"); !ok {
		t.Fatalf("expected other:t1 to survive")
	}
}
