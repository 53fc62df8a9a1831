// Package runner provides the bounded-concurrency fan-out primitive used by
// batch operations. It runs one operation per work item with at most a fixed
// number in flight, and converts any per-item panic into a failure outcome so
// a single bad item never drops or corrupts its siblings' results.
package runner

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/pixlift/pixlift/internal/errors"
)

// Item is one unit of work flowing through a batch. Ordinal is the item's
// position in the original request; it is the only correlation key that
// survives filtering and renaming across phases.
type Item struct {
	Ref     string
	Ordinal int
}

// Outcome is the result shape every per-item operation in the system returns.
// Err == nil means success, with Ref carrying the produced artifact (an output
// path or an object URL). Source always carries the reference the operation
// consumed.
type Outcome struct {
	Ref        string
	Source     string
	SizeBefore int64
	SizeAfter  int64
	Err        error
}

// Success reports whether the outcome is a success.
func (o Outcome) Success() bool {
	return o.Err == nil
}

// Op is a per-item operation. Implementations report failures through the
// returned Outcome; a panic is treated as a programmer error and recovered
// into a failure by the runner.
type Op func(ctx context.Context, item Item) Outcome

// Run executes op for every item with at most limit invocations in flight.
// The returned slice has exactly len(items) outcomes and result[i] corresponds
// to items[i] regardless of completion order. Each item is attempted exactly
// once; there are no retries. A limit below 1 is coerced to 1.
func Run(ctx context.Context, items []Item, limit int, op Op) []Outcome {
	results := make([]Outcome, len(items))
	if len(items) == 0 {
		return results
	}
	if limit < 1 {
		limit = 1
	}

	sem := semaphore.NewWeighted(int64(limit))
	var wg sync.WaitGroup

	for i, item := range items {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = Outcome{
				Source: item.Ref,
				Err:    fmt.Errorf("acquire permit for %s: %w", item.Ref, err),
			}
			continue
		}

		wg.Add(1)
		go func(i int, item Item) {
			defer sem.Release(1)
			defer wg.Done()

			// Each goroutine writes a distinct index, so no lock is needed.
			results[i] = invoke(ctx, item, op)
		}(i, item)
	}

	wg.Wait()
	return results
}

// invoke calls op with a recover boundary around the single item.
func invoke(ctx context.Context, item Item, op Op) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{
				Source: item.Ref,
				Err:    errors.NewInternalError(fmt.Sprintf("operation panicked for %s: %v", item.Ref, r), nil),
			}
		}
	}()
	return op(ctx, item)
}

// MakeItems wraps raw references into work items, assigning ordinals by
// position.
func MakeItems(refs []string) []Item {
	items := make([]Item, len(refs))
	for i, ref := range refs {
		items[i] = Item{Ref: ref, Ordinal: i}
	}
	return items
}
