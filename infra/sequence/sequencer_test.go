package sequence

import (
	"sync"
	"testing"
)

func TestNextIsMonotonic(t *testing.T) {
	s := New(0)
	for want := uint64(1); want <= 100; want++ {
		if got := s.Next(); got != want {
			t.Fatalf("Next() = %d, want %d", got, want)
		}
	}
	if s.Current() != 100 {
		t.Errorf("Current() = %d, want 100", s.Current())
	}
}

func TestNewWithStart(t *testing.T) {
	s := New(41)
	if got := s.Next(); got != 42 {
		t.Errorf("Next() = %d, want 42", got)
	}
}

func TestConcurrentNextNoDuplicates(t *testing.T) {
	s := New(0)
	const workers, perWorker = 8, 1000

	ids := make(chan uint64, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				ids <- s.Next()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint64]bool, workers*perWorker)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}
	if len(seen) != workers*perWorker {
		t.Errorf("issued %d ids, want %d", len(seen), workers*perWorker)
	}
}
