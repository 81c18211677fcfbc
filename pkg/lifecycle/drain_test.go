package lifecycle

import (
	"testing"
	"time"
)

func immediate(name string) Target {
	return TargetFunc{TargetName: name, Await: func(time.Duration) bool { return true }}
}

func never(name string) Target {
	return TargetFunc{TargetName: name, Await: func(timeout time.Duration) bool {
		time.Sleep(timeout)
		return false
	}}
}

func TestDrain_AllConfirm(t *testing.T) {
	logger := &mockLogger{}
	start := time.Now()
	outcomes := Drain([]Target{immediate("a"), immediate("b")}, time.Second, logger)

	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Drain took %v, want near-instant", elapsed)
	}
	if len(outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(outcomes))
	}
	for _, o := range outcomes {
		if !o.Drained {
			t.Errorf("target %s not drained", o.Target)
		}
	}
	if len(logger.warns) != 0 {
		t.Errorf("unexpected warnings: %v", logger.warns)
	}
}

func TestDrain_TimeoutIsBoundedAndOrdered(t *testing.T) {
	logger := &mockLogger{}
	timeout := 50 * time.Millisecond

	start := time.Now()
	outcomes := Drain([]Target{never("stuck"), immediate("after")}, timeout, logger)
	elapsed := time.Since(start)

	if elapsed < timeout {
		t.Errorf("Drain returned after %v, want >= %v", elapsed, timeout)
	}
	if elapsed > timeout+200*time.Millisecond {
		t.Errorf("Drain took %v, want about %v", elapsed, timeout)
	}
	if outcomes[0].Target != "stuck" || outcomes[0].Drained {
		t.Errorf("outcome 0 = %+v, want stuck timeout", outcomes[0])
	}
	if outcomes[1].Target != "after" || !outcomes[1].Drained {
		t.Errorf("outcome 1 = %+v, want after drained", outcomes[1])
	}
	if len(logger.warns) != 1 {
		t.Errorf("got %d warnings, want 1", len(logger.warns))
	}
}

func TestDrain_NoTargets(t *testing.T) {
	if got := Drain(nil, time.Second, nil); len(got) != 0 {
		t.Errorf("Drain(nil) = %v, want empty", got)
	}
}
