package throttle

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTracker(cooldown time.Duration) (*Tracker, *fakeClock) {
	clk := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	tr := New(cooldown)
	tr.SetClock(clk.now)
	return tr, clk
}

func TestThirdInvalidAttemptStrikes(t *testing.T) {
	tr, clk := newTracker(0)
	got := []bool{}
	for i := 0; i < 6; i++ {
		got = append(got, tr.RecordInvalid())
		clk.advance(time.Second)
	}
	want := []bool{false, false, true, false, false, true}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("strikes = %v, want %v", got, want)
		}
	}
	if tr.InvalidCount() != 0 {
		t.Errorf("count after strike = %d, want 0", tr.InvalidCount())
	}
}

func TestInvalidWindowExpires(t *testing.T) {
	tr, clk := newTracker(0)
	tr.RecordInvalid()
	tr.RecordInvalid()
	clk.advance(InvalidWindow + time.Millisecond)
	if tr.RecordInvalid() {
		t.Fatal("strike after window expired")
	}
	if tr.InvalidCount() != 1 {
		t.Errorf("count = %d, want 1", tr.InvalidCount())
	}

	// Exactly at the window boundary the count is kept.
	clk.advance(InvalidWindow)
	if tr.RecordInvalid(); tr.InvalidCount() != 2 {
		t.Errorf("count at boundary = %d, want 2", tr.InvalidCount())
	}
}

func TestAcceptedResetsInvalidCount(t *testing.T) {
	tr, _ := newTracker(0)
	tr.RecordInvalid()
	tr.RecordInvalid()
	tr.RecordAccepted()
	if tr.InvalidCount() != 0 {
		t.Fatalf("count = %d, want 0", tr.InvalidCount())
	}
	if tr.RecordInvalid() {
		t.Error("strike right after an accepted command")
	}
}

func TestCooldown(t *testing.T) {
	tr, clk := newTracker(30 * time.Second)
	if tr.InCooldown() {
		t.Fatal("cooldown active before any command")
	}
	tr.RecordAccepted()
	clk.advance(10 * time.Second)
	if !tr.InCooldown() {
		t.Fatal("cooldown should be active")
	}
	if got := tr.Remaining(); got != 20*time.Second {
		t.Errorf("Remaining() = %v, want 20s", got)
	}
	clk.advance(20 * time.Second)
	if tr.InCooldown() || tr.Remaining() != 0 {
		t.Error("cooldown should have elapsed")
	}
}

func TestZeroCooldownNeverGates(t *testing.T) {
	tr, _ := newTracker(-5 * time.Second)
	tr.RecordAccepted()
	if tr.InCooldown() {
		t.Error("zero cooldown gated a command")
	}
}
