package lifecycle

import (
	"testing"
	"time"
)

func TestTracker_IdleInitially(t *testing.T) {
	tr := NewTracker()
	if tr.Count() != 0 {
		t.Fatalf("Count() = %d, want 0", tr.Count())
	}
	if !tr.WaitWithTimeout(time.Millisecond) {
		t.Fatal("new tracker should be idle")
	}
}

func TestTracker_WaitsForDone(t *testing.T) {
	tr := NewTracker()
	tr.Add()
	tr.Add()

	if tr.WaitWithTimeout(10 * time.Millisecond) {
		t.Fatal("tracker with live work reported idle")
	}

	go func() {
		time.Sleep(5 * time.Millisecond)
		tr.Done()
		tr.Done()
	}()
	if !tr.WaitWithTimeout(time.Second) {
		t.Fatal("tracker did not become idle")
	}
}

func TestTracker_ReusableAfterIdle(t *testing.T) {
	tr := NewTracker()
	tr.Add()
	tr.Done()
	tr.Add()
	select {
	case <-tr.Idle():
		t.Fatal("Idle() closed while work is live")
	default:
	}
	tr.Done()
	select {
	case <-tr.Idle():
	default:
		t.Fatal("Idle() not closed after Done")
	}
}

func TestTracker_DonePanicsOnUnderflow(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Done without Add should panic")
		}
	}()
	NewTracker().Done()
}
