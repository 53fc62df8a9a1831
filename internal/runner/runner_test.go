package runner

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestRun_PreservesInputOrder(t *testing.T) {
	ctx := context.Background()
	items := MakeItems([]string{"a", "b", "c", "d", "e"})

	// Later items finish first so completion order is the reverse of input
	// order.
	op := func(ctx context.Context, item Item) Outcome {
		time.Sleep(time.Duration(len(items)-item.Ordinal) * 5 * time.Millisecond)
		return Outcome{Ref: "out-" + item.Ref, Source: item.Ref}
	}

	results := Run(ctx, items, len(items), op)

	if len(results) != len(items) {
		t.Fatalf("expected %d results, got %d", len(items), len(results))
	}
	for i, item := range items {
		if results[i].Source != item.Ref {
			t.Errorf("result[%d].Source = %q, want %q", i, results[i].Source, item.Ref)
		}
		if results[i].Ref != "out-"+item.Ref {
			t.Errorf("result[%d].Ref = %q, want %q", i, results[i].Ref, "out-"+item.Ref)
		}
	}
}

func TestRun_ConcurrencyBound(t *testing.T) {
	ctx := context.Background()
	const limit = 3
	items := MakeItems(make([]string, 20))

	var current, peak int64
	op := func(ctx context.Context, item Item) Outcome {
		n := atomic.AddInt64(&current, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt64(&current, -1)
		return Outcome{Source: item.Ref}
	}

	Run(ctx, items, limit, op)

	if got := atomic.LoadInt64(&peak); got > limit {
		t.Errorf("observed %d concurrent operations, limit is %d", got, limit)
	}
}

func TestRun_PanicBecomesFailure(t *testing.T) {
	ctx := context.Background()
	items := MakeItems([]string{"ok-1", "boom", "ok-2", "ok-3"})

	op := func(ctx context.Context, item Item) Outcome {
		if item.Ref == "boom" {
			panic("corrupt working set")
		}
		return Outcome{Ref: item.Ref, Source: item.Ref}
	}

	results := Run(ctx, items, 2, op)

	var failures, successes int
	for i, r := range results {
		if r.Success() {
			successes++
			continue
		}
		failures++
		if items[i].Ref != "boom" {
			t.Errorf("unexpected failure at index %d (%s)", i, items[i].Ref)
		}
		if r.Source != "boom" {
			t.Errorf("failure Source = %q, want %q", r.Source, "boom")
		}
		if !strings.Contains(r.Err.Error(), "corrupt working set") {
			t.Errorf("failure reason should carry the fault message, got %q", r.Err.Error())
		}
	}
	if successes != 3 || failures != 1 {
		t.Errorf("got %d successes and %d failures, want 3 and 1", successes, failures)
	}
}

func TestRun_ExactlyOneAttemptPerItem(t *testing.T) {
	ctx := context.Background()
	items := MakeItems(make([]string, 50))

	counts := make([]int64, len(items))
	op := func(ctx context.Context, item Item) Outcome {
		atomic.AddInt64(&counts[item.Ordinal], 1)
		if item.Ordinal%7 == 0 {
			return Outcome{Source: item.Ref, Err: fmt.Errorf("induced failure")}
		}
		return Outcome{Source: item.Ref}
	}

	Run(ctx, items, 4, op)

	for i, c := range counts {
		if c != 1 {
			t.Errorf("item %d attempted %d times, want exactly 1", i, c)
		}
	}
}

func TestRun_LimitCoercedToOne(t *testing.T) {
	ctx := context.Background()
	items := MakeItems([]string{"x", "y", "z"})

	var current, peak int64
	op := func(ctx context.Context, item Item) Outcome {
		n := atomic.AddInt64(&current, 1)
		if n > atomic.LoadInt64(&peak) {
			atomic.StoreInt64(&peak, n)
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt64(&current, -1)
		return Outcome{Source: item.Ref}
	}

	results := Run(ctx, items, 0, op)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if atomic.LoadInt64(&peak) != 1 {
		t.Errorf("limit 0 should run sequentially, saw peak %d", peak)
	}
}

func TestRun_EmptyItems(t *testing.T) {
	results := Run(context.Background(), nil, 5, func(ctx context.Context, item Item) Outcome {
		t.Error("op should not be called for empty input")
		return Outcome{}
	})

	if results == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(results) != 0 {
		t.Fatalf("expected 0 results, got %d", len(results))
	}
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := MakeItems([]string{"a", "b"})
	results := Run(ctx, items, 1, func(ctx context.Context, item Item) Outcome {
		return Outcome{Source: item.Ref}
	})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Success() {
			t.Errorf("result[%d] should fail when the context is already cancelled", i)
		}
	}
}

func TestMakeItems(t *testing.T) {
	items := MakeItems([]string{"p", "q"})
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Ref != "p" || items[0].Ordinal != 0 {
		t.Errorf("items[0] = %+v", items[0])
	}
	if items[1].Ref != "q" || items[1].Ordinal != 1 {
		t.Errorf("items[1] = %+v", items[1])
	}
}
