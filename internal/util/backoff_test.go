package util

import (
	"testing"
	"time"
)

func TestBackoffZeroAttemptRunsImmediately(t *testing.T) {
	t.Parallel()

	if got := Backoff(time.Second, 0); got != 0 {
		t.Fatalf("attempt 0 must return zero, got %v", got)
	}
	if got := Backoff(time.Second, -3); got != 0 {
		t.Fatalf("negative attempts must return zero, got %v", got)
	}
	if got := Backoff(0, 5); got != 0 {
		t.Fatalf("a zero base must return zero, got %v", got)
	}
}

func TestBackoffGrowsWithinJitterBounds(t *testing.T) {
	t.Parallel()

	base := 100 * time.Millisecond
	for attempt := 1; attempt <= 5; attempt++ {
		expected := base * time.Duration(1<<uint(attempt-1))
		lower := expected - expected/4
		upper := expected + expected/4

		for i := 0; i < 50; i++ {
			got := Backoff(base, attempt)
			if got < lower || got > upper {
				t.Fatalf("attempt %d delay %v outside [%v, %v]", attempt, got, lower, upper)
			}
		}
	}
}

func TestBackoffTinyBaseSkipsJitter(t *testing.T) {
	t.Parallel()

	if got := Backoff(time.Nanosecond, 1); got != time.Nanosecond {
		t.Fatalf("expected the raw delay for an indivisible base, got %v", got)
	}
	if got := Backoff(2*time.Nanosecond, 1); got <= 0 {
		t.Fatalf("expected a positive delay, got %v", got)
	}
}

func TestBackoffIsCapped(t *testing.T) {
	t.Parallel()

	for i := 0; i < 50; i++ {
		got := Backoff(time.Second, 40)
		upper := maxBackoff + maxBackoff/4
		if got > upper {
			t.Fatalf("delay %v exceeds cap bound %v", got, upper)
		}
	}
}
