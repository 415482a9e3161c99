package jitter

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExponentialBackoffBounds(t *testing.T) {
	base := 100 * time.Millisecond
	max := time.Second

	for attempt := 0; attempt < 8; attempt++ {
		got := ExponentialBackoff(base, max, attempt, DefaultJitter)

		want := base << attempt
		if want > max {
			want = max
		}
		upper := want + time.Duration(float64(want)*DefaultJitter)
		if got < want || got > upper {
			t.Fatalf("attempt %d: backoff %v outside [%v, %v]", attempt, got, want, upper)
		}
	}
}

func TestSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("Sleep() = %v, want context.Canceled", err)
	}
}
