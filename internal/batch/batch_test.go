package batch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunPreservesOrderAndBoundsConcurrency(t *testing.T) {
	inputs := make([]int, 40)
	for i := range inputs {
		inputs[i] = i
	}
	var inFlight, peak atomic.Int32
	var mu sync.Mutex
	var progress []int

	out := Run(context.Background(), inputs, Options{
		Limit: 3,
		OnDone: func(done, total int) {
			mu.Lock()
			progress = append(progress, done)
			mu.Unlock()
			if total != 40 {
				t.Errorf("unexpected total %d", total)
			}
		},
	}, func(_ context.Context, index int, input int) int {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		inFlight.Add(-1)
		return input * 10
	})

	for i, v := range out {
		if v != i*10 {
			t.Fatalf("out[%d] = %d", i, v)
		}
	}
	if peak.Load() > 3 {
		t.Fatalf("more than 3 jobs in flight: %d", peak.Load())
	}
	if len(progress) != 40 {
		t.Fatalf("expected 40 progress callbacks, got %d", len(progress))
	}
}

func TestRunFailureDoesNotCancelSiblings(t *testing.T) {
	type result struct {
		ok  bool
		err error
	}
	out := Run(context.Background(), []string{"a", "bad", "c"}, Options{Limit: 2}, func(ctx context.Context, _ int, input string) result {
		if input == "bad" {
			return result{err: context.Canceled}
		}
		if ctx.Err() != nil {
			return result{err: ctx.Err()}
		}
		return result{ok: true}
	})
	if !out[0].ok || out[1].err == nil || !out[2].ok {
		t.Fatalf("unexpected results %+v", out)
	}
}

func TestRunEmptyAndZeroLimit(t *testing.T) {
	if out := Run(context.Background(), []int(nil), Options{}, func(context.Context, int, int) int { return 1 }); len(out) != 0 {
		t.Fatalf("expected empty output, got %v", out)
	}
	out := Run(context.Background(), []int{1, 2}, Options{Limit: 0}, func(_ context.Context, _ int, v int) int { return v + 1 })
	if out[0] != 2 || out[1] != 3 {
		t.Fatalf("unexpected output %v", out)
	}
}
