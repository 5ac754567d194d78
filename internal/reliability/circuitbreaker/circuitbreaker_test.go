package circuitbreaker

import (
	"testing"
	"time"
)

func TestTripsOpenAfterThreshold(t *testing.T) {
	b := New(3, 1, time.Minute)

	for i := 0; i < 2; i++ {
		b.RecordFailure()
		if b.CurrentState() != StateClosed {
			t.Fatalf("breaker should stay closed below the threshold")
		}
	}
	b.RecordFailure()
	if b.CurrentState() != StateOpen {
		t.Fatalf("breaker should trip open at the threshold")
	}
	if b.Allow() {
		t.Fatalf("open breaker must reject calls before the timeout")
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	b := New(2, 1, time.Minute)

	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	if b.CurrentState() != StateClosed {
		t.Fatalf("a success between failures should reset the count")
	}
}

func TestHalfOpenProbeAndRecovery(t *testing.T) {
	b := New(1, 2, 10*time.Millisecond)

	b.RecordFailure()
	if b.CurrentState() != StateOpen {
		t.Fatalf("breaker should be open")
	}

	time.Sleep(20 * time.Millisecond)
	if !b.Allow() {
		t.Fatalf("breaker should allow a probe after the timeout")
	}
	if b.CurrentState() != StateHalfOpen {
		t.Fatalf("breaker should be half-open while probing")
	}

	b.RecordSuccess()
	if b.CurrentState() != StateHalfOpen {
		t.Fatalf("one success is below the close threshold")
	}
	b.RecordSuccess()
	if b.CurrentState() != StateClosed {
		t.Fatalf("breaker should close after enough successful probes")
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b := New(1, 1, 10*time.Millisecond)

	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	if !b.Allow() {
		t.Fatalf("breaker should allow a probe")
	}
	b.RecordFailure()
	if b.CurrentState() != StateOpen {
		t.Fatalf("a failed probe should reopen the breaker")
	}
}
