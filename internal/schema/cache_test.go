package schema

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingSource struct {
	mu     sync.Mutex
	builds atomic.Int64
	delay  time.Duration
	fail   map[string]error
	descs  map[string]Description
}

func (s *countingSource) LoadDescription(ctx context.Context, databaseID string) (Description, error) {
	s.builds.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return Description{}, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.fail[databaseID]; ok {
		return Description{}, err
	}
	desc, ok := s.descs[databaseID]
	if !ok {
		return Description{}, errors.New("unknown database")
	}
	return desc, nil
}

func TestCacheLoadsOnceAndReuses(t *testing.T) {
	source := &countingSource{descs: map[string]Description{"sales": salesDescription()}}
	cache := NewCache(source)

	first, err := cache.Load(t.Context(), "sales")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	second, err := cache.Load(t.Context(), "sales")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if first != second {
		t.Fatal("expected the same catalog instance")
	}
	if got := source.builds.Load(); got != 1 {
		t.Fatalf("builds = %d", got)
	}
	if !cache.Cached("sales") {
		t.Fatal("Cached(sales) = false")
	}
}

func TestCacheCoalescesConcurrentFirstLoads(t *testing.T) {
	source := &countingSource{
		descs: map[string]Description{"sales": salesDescription()},
		delay: 50 * time.Millisecond,
	}
	cache := NewCache(source)

	const callers = 16
	var wg sync.WaitGroup
	results := make([]*Catalog, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.Load(context.Background(), "sales")
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if results[i] != results[0] {
			t.Fatalf("caller %d got a different catalog instance", i)
		}
	}
	if got := source.builds.Load(); got != 1 {
		t.Fatalf("builds = %d, want 1", got)
	}
}

func TestCacheFailedBuildIsNotCached(t *testing.T) {
	boom := errors.New("boom")
	source := &countingSource{
		descs: map[string]Description{},
		fail:  map[string]error{"sales": boom},
	}
	cache := NewCache(source)

	if _, err := cache.Load(t.Context(), "sales"); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if cache.Cached("sales") {
		t.Fatal("failed build was cached")
	}

	// The source recovers; the next load must rebuild.
	source.mu.Lock()
	delete(source.fail, "sales")
	source.descs["sales"] = salesDescription()
	source.mu.Unlock()

	if _, err := cache.Load(t.Context(), "sales"); err != nil {
		t.Fatalf("Load after recovery: %v", err)
	}
	if got := source.builds.Load(); got != 2 {
		t.Fatalf("builds = %d, want 2", got)
	}
}

func TestCacheWaiterCancellationDoesNotKillBuild(t *testing.T) {
	source := &countingSource{
		descs: map[string]Description{"sales": salesDescription()},
		delay: 80 * time.Millisecond,
	}
	cache := NewCache(source)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := cache.Load(ctx, "sales")
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled waiter err = %v", err)
	}

	// The build keeps running; a later caller picks up its result without a
	// second build.
	deadline := time.After(2 * time.Second)
	for {
		if cache.Cached("sales") {
			break
		}
		select {
		case <-deadline:
			t.Fatal("build never completed after waiter cancellation")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if _, err := cache.Load(context.Background(), "sales"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := source.builds.Load(); got != 1 {
		t.Fatalf("builds = %d, want 1", got)
	}
}

func TestCacheInvalidateForcesRebuild(t *testing.T) {
	source := &countingSource{descs: map[string]Description{"sales": salesDescription()}}
	cache := NewCache(source)

	if _, err := cache.Load(t.Context(), "sales"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	cache.Invalidate("sales")
	if cache.Cached("sales") {
		t.Fatal("still cached after Invalidate")
	}
	if _, err := cache.Load(t.Context(), "sales"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := source.builds.Load(); got != 2 {
		t.Fatalf("builds = %d, want 2", got)
	}
}
