package waveform

import (
	"fmt"
	"slices"
	"sync"
	"testing"
)

func sized(path string, peaks int) *Data {
	return &Data{Path: path, SamplesPerPixel: 1, Peaks: make([]Peak, peaks)}
}

func TestCacheEvictsLeastRecentlyInserted(t *testing.T) {
	c := NewCache(3 * 80)
	c.Put(sized("a", 10))
	c.Put(sized("b", 10))
	c.Put(sized("c", 10))
	c.Put(sized("d", 10))

	if c.Contains("a") {
		t.Error("expected a to be evicted first")
	}
	for _, p := range []string{"b", "c", "d"} {
		if !c.Contains(p) {
			t.Errorf("expected %s to stay resident", p)
		}
	}
}

func TestCacheAccessProtectsEntry(t *testing.T) {
	c := NewCache(3 * 80)
	c.Put(sized("a", 10))
	c.Put(sized("b", 10))
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should be resident")
	}
	c.Put(sized("c", 10))
	c.Put(sized("d", 10))

	if !c.Contains("a") {
		t.Error("a was accessed after b and should have survived")
	}
	if c.Contains("b") {
		t.Error("b should have been evicted")
	}
}

func TestCacheContainsDoesNotTouchRecency(t *testing.T) {
	c := NewCache(2 * 80)
	c.Put(sized("a", 10))
	c.Put(sized("b", 10))
	c.Contains("a")
	c.Put(sized("c", 10))

	if c.Contains("a") {
		t.Error("Contains must not refresh recency")
	}
}

func TestCacheBudgetHolds(t *testing.T) {
	const budget = 1000
	c := NewCache(budget)

	for i := 0; i < 200; i++ {
		c.Put(sized(fmt.Sprintf("f%d", i), 1+i%37))
		if i%3 == 0 {
			c.Get(fmt.Sprintf("f%d", i/2))
		}
		if c.Used() > budget {
			t.Fatalf("after put %d used %d exceeds budget %d", i, c.Used(), budget)
		}
	}
}

func TestCacheOversizedEntry(t *testing.T) {
	c := NewCache(100)
	c.Put(sized("small", 5))
	c.Put(sized("huge", 50))

	if !c.Contains("huge") {
		t.Fatal("oversized entry should be admitted")
	}
	if c.Contains("small") {
		t.Error("everything else should have been evicted for the oversized entry")
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}

	c.Put(sized("next", 5))
	if c.Contains("huge") {
		t.Error("oversized entry should be the first eviction candidate")
	}
	if !c.Contains("next") {
		t.Error("next should be resident")
	}
}

func TestCacheUnlimited(t *testing.T) {
	c := NewCache(0)
	for i := 0; i < 100; i++ {
		c.Put(sized(fmt.Sprintf("f%d", i), 100))
	}
	if c.Len() != 100 {
		t.Errorf("Len = %d, want 100", c.Len())
	}
	if c.Used() != 100*100*8 {
		t.Errorf("Used = %d, want %d", c.Used(), 100*100*8)
	}
}

func TestCacheSetMaxSizeEvictsImmediately(t *testing.T) {
	c := NewCache(0)
	for _, p := range []string{"a", "b", "c", "d"} {
		c.Put(sized(p, 10))
	}
	c.Get("a")

	c.SetMaxSize(2 * 80)

	if c.MaxSize() != 160 {
		t.Errorf("MaxSize = %d, want 160", c.MaxSize())
	}
	if c.Used() > 160 {
		t.Errorf("Used = %d exceeds new budget", c.Used())
	}
	if got, want := c.Paths(), []string{"d", "a"}; !slices.Equal(got, want) {
		t.Errorf("Paths = %v, want %v", got, want)
	}
}

func TestCacheReplaceSamePath(t *testing.T) {
	c := NewCache(0)
	c.Put(sized("a", 10))
	c.Put(sized("a", 20))

	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
	if c.Used() != 160 {
		t.Errorf("Used = %d, want 160", c.Used())
	}
	data, _ := c.Get("a")
	if len(data.Peaks) != 20 {
		t.Errorf("replaced entry has %d peaks, want 20", len(data.Peaks))
	}
}

func TestCacheRemoveAndClear(t *testing.T) {
	c := NewCache(0)
	c.Put(sized("a", 1))
	c.Put(sized("b", 1))

	if !c.Remove("a") {
		t.Error("Remove(a) = false, want true")
	}
	if c.Remove("a") {
		t.Error("second Remove(a) = true, want false")
	}
	if c.Used() != 8 {
		t.Errorf("Used = %d, want 8", c.Used())
	}

	c.Clear()
	if c.Len() != 0 || c.Used() != 0 {
		t.Errorf("after Clear Len=%d Used=%d", c.Len(), c.Used())
	}
	if _, ok := c.Get("b"); ok {
		t.Error("b should be gone after Clear")
	}
}

func TestCacheManyRemovalsKeepOrder(t *testing.T) {
	c := NewCache(0)
	for i := 0; i < 100; i++ {
		c.Put(sized(fmt.Sprintf("f%d", i), 1))
	}
	for i := 0; i < 95; i++ {
		c.Remove(fmt.Sprintf("f%d", i))
	}
	c.Get("f95")

	c.SetMaxSize(4 * 8)
	if c.Contains("f96") {
		t.Error("f96 is least recently used and should be evicted")
	}
	if !c.Contains("f95") {
		t.Error("f95 was accessed and should be resident")
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := NewCache(50 * 80)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				path := fmt.Sprintf("f%d", (w*31+i)%120)
				if _, ok := c.Get(path); !ok {
					c.Put(sized(path, 10))
				}
				if i%50 == 0 {
					c.Remove(path)
				}
			}
		}(w)
	}
	wg.Wait()

	if c.Used() > c.MaxSize() {
		t.Errorf("Used %d exceeds budget %d", c.Used(), c.MaxSize())
	}
	var sum int64
	for _, p := range c.Paths() {
		if d, ok := c.Get(p); ok {
			sum += d.SizeBytes()
		}
	}
	if sum != c.Used() {
		t.Errorf("resident sizes sum to %d, Used reports %d", sum, c.Used())
	}
}

// --- Reservations ---

func TestCacheReservationCommits(t *testing.T) {
	c := NewCache(0)
	ticket := c.Reserve("a")
	if !c.PutReserved(sized("a", 10), ticket) {
		t.Fatal("PutReserved = false for a valid reservation")
	}
	if !c.Contains("a") || c.Used() != 80 {
		t.Errorf("Contains = %v, Used = %d", c.Contains("a"), c.Used())
	}
	if c.PutReserved(sized("a", 20), ticket) {
		t.Error("a ticket must only commit once")
	}
}

func TestCacheRemoveRevokesReservation(t *testing.T) {
	c := NewCache(0)
	revoked := c.Reserve("a")
	other := c.Reserve("b")

	if c.Remove("a") {
		t.Error("Remove of a non-resident path should report false")
	}
	if c.PutReserved(sized("a", 10), revoked) {
		t.Error("PutReserved after Remove should be dropped")
	}
	if c.Contains("a") || c.Used() != 0 {
		t.Errorf("revoked data is resident, Used = %d", c.Used())
	}
	if !c.PutReserved(sized("b", 10), other) {
		t.Error("reservations of other paths must survive")
	}
}

func TestCacheClearRevokesReservations(t *testing.T) {
	c := NewCache(0)
	ticket := c.Reserve("a")
	c.Clear()
	if c.PutReserved(sized("a", 10), ticket) || c.Len() != 0 {
		t.Error("PutReserved after Clear should be dropped")
	}
}

func TestCacheReleaseAndMismatchedPath(t *testing.T) {
	c := NewCache(0)
	ticket := c.Reserve("a")
	if c.PutReserved(sized("b", 10), ticket) {
		t.Error("a ticket for a must not commit b")
	}

	released := c.Reserve("a")
	c.Release(released)
	if c.PutReserved(sized("a", 10), released) {
		t.Error("released ticket must not commit")
	}
}
