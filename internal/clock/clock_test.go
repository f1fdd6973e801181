package clock

import (
	"testing"
	"time"
)

func TestFixedClock(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	c := NewFixed(at)
	if !c.Now().Equal(at) {
		t.Fatalf("expected %v, got %v", at, c.Now())
	}
}

func TestManualClockAdvance(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	c := NewManual(at)
	c.Advance(31 * time.Minute)
	if want := at.Add(31 * time.Minute); !c.Now().Equal(want) {
		t.Fatalf("expected %v, got %v", want, c.Now())
	}
}
