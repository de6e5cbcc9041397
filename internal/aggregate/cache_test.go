package aggregate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"registro/internal/core"
	"registro/internal/query"
)

func testSpec(search string) query.FilterSpec {
	return query.Normalize(query.RawFilter{Search: search}, "", time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC))
}

func TestTotalsComputesAtMostOncePerKey(t *testing.T) {
	c := New(100, time.Hour)
	defer c.Close()

	var calls int32
	compute := func(ctx context.Context) (core.Totals, error) {
		atomic.AddInt32(&calls, 1)
		return core.Totals{Income: core.Money{Cents: 100}, Complete: true}, nil
	}

	spec := testSpec("rent")
	first, err := c.Totals(context.Background(), "fam-1", 7, spec, compute)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := c.Totals(context.Background(), "fam-1", 7, spec, compute)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("compute invoked %d times, want 1", got)
	}
	if first != second {
		t.Errorf("cache hit returned different totals: %+v vs %+v", first, second)
	}
}

func TestTotalsRecomputesWhenVersionAdvances(t *testing.T) {
	c := New(100, time.Hour)
	defer c.Close()

	var calls int32
	compute := func(ctx context.Context) (core.Totals, error) {
		atomic.AddInt32(&calls, 1)
		return core.Totals{Complete: true}, nil
	}

	spec := testSpec("rent")
	if _, err := c.Totals(context.Background(), "fam-1", 7, spec, compute); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Totals(context.Background(), "fam-1", 8, spec, compute); err != nil {
		t.Fatal(err)
	}

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("compute invoked %d times across versions, want 2", got)
	}
}

func TestTotalsScopesDoNotShareEntries(t *testing.T) {
	c := New(100, time.Hour)
	defer c.Close()

	var calls int32
	compute := func(ctx context.Context) (core.Totals, error) {
		atomic.AddInt32(&calls, 1)
		return core.Totals{}, nil
	}

	spec := testSpec("rent")
	_, _ = c.Totals(context.Background(), "fam-1", 1, spec, compute)
	_, _ = c.Totals(context.Background(), "fam-2", 1, spec, compute)

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("compute invoked %d times for two scopes, want 2", got)
	}
}

func TestTotalsFailureIsNotCached(t *testing.T) {
	c := New(100, time.Hour)
	defer c.Close()

	var calls int32
	boom := errors.New("store unavailable")
	failing := func(ctx context.Context) (core.Totals, error) {
		atomic.AddInt32(&calls, 1)
		return core.Totals{}, boom
	}

	spec := testSpec("rent")
	if _, err := c.Totals(context.Background(), "fam-1", 1, spec, failing); !errors.Is(err, boom) {
		t.Fatalf("expected compute failure to surface, got %v", err)
	}

	ok := func(ctx context.Context) (core.Totals, error) {
		atomic.AddInt32(&calls, 1)
		return core.Totals{Complete: true}, nil
	}
	totals, err := c.Totals(context.Background(), "fam-1", 1, spec, ok)
	if err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if !totals.Complete {
		t.Error("retry should have recomputed fresh totals")
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("compute invoked %d times, want 2 (failure never cached)", got)
	}
}

func TestTotalsConcurrentMissesCollapse(t *testing.T) {
	c := New(100, time.Hour)
	defer c.Close()

	var calls int32
	release := make(chan struct{})
	compute := func(ctx context.Context) (core.Totals, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return core.Totals{Complete: true}, nil
	}

	spec := testSpec("rent")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Totals(context.Background(), "fam-1", 3, spec, compute); err != nil {
				t.Errorf("concurrent call: %v", err)
			}
		}()
	}

	// Let the goroutines pile onto the same key before releasing.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("compute invoked %d times under concurrency, want 1", got)
	}
}

func TestKeyIncludesAllComponents(t *testing.T) {
	spec := testSpec("rent")
	base := Key("fam-1", 1, spec)

	if Key("fam-2", 1, spec) == base {
		t.Error("key must vary with scope")
	}
	if Key("fam-1", 2, spec) == base {
		t.Error("key must vary with mutation version")
	}
	if Key("fam-1", 1, testSpec("other")) == base {
		t.Error("key must vary with filter digest")
	}
}
