package oneshot

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPromise_CompleteTwiceRejected(t *testing.T) {
	p := NewPromise[int]()
	if err := p.Succeed(1); err != nil {
		t.Fatalf("first Succeed() error = %v", err)
	}
	if err := p.Succeed(2); !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("second Succeed() error = %v, want ErrAlreadyCompleted", err)
	}
	if err := p.Fail(errors.New("late")); !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("Fail() after Succeed error = %v, want ErrAlreadyCompleted", err)
	}
	if p.TryComplete(3, nil) {
		t.Fatal("TryComplete() = true on completed promise")
	}

	r, ok := p.Future().Result()
	if !ok || r.Value != 1 || r.Err != nil {
		t.Errorf("Result() = %+v, %v; want value 1", r, ok)
	}
}

func TestFuture_OnCompleteBeforeAndAfter(t *testing.T) {
	p := NewPromise[string]()
	var got []string
	p.Future().OnComplete(func(r Result[string]) { got = append(got, "before:"+r.Value) })

	_ = p.Succeed("v")
	p.Future().OnComplete(func(r Result[string]) { got = append(got, "after:"+r.Value) })

	if len(got) != 2 || got[0] != "before:v" || got[1] != "after:v" {
		t.Errorf("callbacks = %v", got)
	}
}

func TestFuture_CallbackRunsOnce(t *testing.T) {
	p := NewPromise[int]()
	calls := 0
	p.Future().OnComplete(func(Result[int]) { calls++ })
	_ = p.Succeed(1)
	_ = p.Succeed(2)
	if calls != 1 {
		t.Errorf("callback ran %d times, want 1", calls)
	}
}

func TestFuture_Await(t *testing.T) {
	p := NewPromise[int]()
	go func() {
		time.Sleep(5 * time.Millisecond)
		_ = p.Fail(errors.New("boom"))
	}()
	_, err := p.Future().Await(context.Background())
	if err == nil || err.Error() != "boom" {
		t.Fatalf("Await() error = %v, want boom", err)
	}
}

func TestFuture_AwaitDeadline(t *testing.T) {
	p := NewPromise[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.Future().Await(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Await() error = %v, want DeadlineExceeded", err)
	}
	if p.Future().IsComplete() {
		t.Error("future should still be pending")
	}
}

func TestSucceededAndFailed(t *testing.T) {
	v, err := Succeeded(7).Await(context.Background())
	if err != nil || v != 7 {
		t.Errorf("Succeeded(7) = %v, %v", v, err)
	}
	boom := errors.New("boom")
	if _, err := Failed[int](boom).Await(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Failed() error = %v, want boom", err)
	}
}

func TestJoin(t *testing.T) {
	errA := errors.New("a failed")
	errC := errors.New("c failed")

	tests := []struct {
		name     string
		outcomes []Result[int]
		wantErrs []error
		wantVals []int
	}{
		{"empty", nil, nil, []int{}},
		{"all succeed", []Result[int]{{Value: 1}, {Value: 2}, {Value: 3}}, nil, []int{1, 2, 3}},
		{"some fail", []Result[int]{{Err: errA}, {Value: 2}, {Err: errC}}, []error{errA, errC}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			promises := make([]*Promise[int], len(tt.outcomes))
			futs := make([]*Future[int], len(tt.outcomes))
			for i := range promises {
				promises[i] = NewPromise[int]()
				futs[i] = promises[i].Future()
			}
			joined := Join(futs...)

			// complete in reverse to check ordering is by input position
			for i := len(promises) - 1; i >= 0; i-- {
				if joined.IsComplete() && len(promises) > 0 {
					t.Fatal("join completed before all inputs")
				}
				_ = promises[i].Complete(tt.outcomes[i].Value, tt.outcomes[i].Err)
			}

			vals, err := joined.Await(context.Background())
			if tt.wantErrs == nil {
				if err != nil {
					t.Fatalf("Join error = %v", err)
				}
				if len(vals) != len(tt.wantVals) {
					t.Fatalf("Join values = %v, want %v", vals, tt.wantVals)
				}
				for i := range vals {
					if vals[i] != tt.wantVals[i] {
						t.Errorf("value[%d] = %d, want %d", i, vals[i], tt.wantVals[i])
					}
				}
				return
			}
			for _, want := range tt.wantErrs {
				if !errors.Is(err, want) {
					t.Errorf("Join error %v does not wrap %v", err, want)
				}
			}
		})
	}
}
