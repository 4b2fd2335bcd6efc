package clock

import (
	"testing"
	"time"
)

// TestManualAdvance tests that the manual clock only moves on demand
func TestManualAdvance(t *testing.T) {
	c := NewManual(5 * time.Second)
	if c.Now() != 5*time.Second {
		t.Errorf("Expected 5s, got %v", c.Now())
	}

	c.Advance(1500 * time.Millisecond)
	if c.Now() != 6500*time.Millisecond {
		t.Errorf("Expected 6.5s, got %v", c.Now())
	}

	c.Set(0)
	if c.Now() != 0 {
		t.Errorf("Expected 0 after Set, got %v", c.Now())
	}
}

// TestRemaining tests remaining duration computation
func TestRemaining(t *testing.T) {
	c := NewManual(10 * time.Second)

	tests := []struct {
		name string
		end  time.Duration
		want time.Duration
	}{
		{"future", 12 * time.Second, 2 * time.Second},
		{"exactly now", 10 * time.Second, 0},
		{"past", 3 * time.Second, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Remaining(c, tt.end); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}

	if !Elapsed(c, 10*time.Second) {
		t.Error("End equal to now should count as elapsed")
	}
	if Elapsed(c, 11*time.Second) {
		t.Error("Future end should not be elapsed")
	}
}

// TestMonotonicNonDecreasing tests that the monotonic clock never goes back
func TestMonotonicNonDecreasing(t *testing.T) {
	c := NewMonotonic()
	prev := c.Now()
	for i := 0; i < 100; i++ {
		now := c.Now()
		if now < prev {
			t.Fatalf("Clock went backwards: %v -> %v", prev, now)
		}
		prev = now
	}
}

// TestFrozenHoldsReading tests that a frozen clock only moves on Freeze
func TestFrozenHoldsReading(t *testing.T) {
	src := NewManual(time.Second)
	f := NewFrozen(src)

	src.Advance(time.Second)
	if f.Now() != time.Second {
		t.Errorf("Expected 1s until frozen again, got %v", f.Now())
	}
	if got := f.Freeze(); got != 2*time.Second || f.Now() != 2*time.Second {
		t.Errorf("Expected 2s after Freeze, got %v", f.Now())
	}
}
