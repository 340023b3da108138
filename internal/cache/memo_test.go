package cache

import (
	"sync"
	"testing"
	"time"
)

func TestSetAndGet(t *testing.T) {
	memo := New[string, int](time.Minute, 0)

	memo.Set("key1", 42)

	value, ok := memo.Get("key1")
	if !ok {
		t.Fatal("Get returned ok=false for existing key")
	}
	if value != 42 {
		t.Errorf("Get returned wrong value: got %d, want 42", value)
	}

	if _, ok := memo.Get("missing"); ok {
		t.Error("Get returned ok=true for missing key")
	}
}

func TestExpiry(t *testing.T) {
	memo := New[string, string](time.Minute, 0)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	memo.now = func() time.Time { return now }

	memo.Set("verse", "spans")
	now = now.Add(59 * time.Second)
	if _, ok := memo.Get("verse"); !ok {
		t.Error("entry expired too early")
	}
	now = now.Add(time.Second)
	if _, ok := memo.Get("verse"); ok {
		t.Error("entry should have expired")
	}

	memo.Set("verse", "fresh")
	if v, ok := memo.Get("verse"); !ok || v != "fresh" {
		t.Errorf("Get after re-Set = %q, %v", v, ok)
	}
}

func TestNoExpiry(t *testing.T) {
	memo := New[int, int](0, 0)
	now := time.Now()
	memo.now = func() time.Time { return now }

	memo.Set(1, 1)
	now = now.Add(1000 * time.Hour)
	if _, ok := memo.Get(1); !ok {
		t.Error("zero ttl entries should never expire")
	}
}

func TestEviction(t *testing.T) {
	memo := New[int, int](0, 2)

	memo.Set(1, 10)
	memo.Set(2, 20)
	memo.Set(2, 21)
	if memo.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", memo.Len())
	}

	memo.Set(3, 30)
	if memo.Len() != 2 {
		t.Errorf("Len() = %d, want 2", memo.Len())
	}
	if _, ok := memo.Get(1); ok {
		t.Error("oldest entry should have been evicted")
	}
	if v, ok := memo.Get(2); !ok || v != 21 {
		t.Errorf("Get(2) = %d, %v; want 21, true", v, ok)
	}
}

func TestInvalidate(t *testing.T) {
	memo := New[string, int](time.Minute, 0)
	memo.Set("a", 1)
	memo.Set("b", 2)

	memo.Invalidate()
	if memo.Len() != 0 {
		t.Errorf("Len() after Invalidate = %d, want 0", memo.Len())
	}
	if _, ok := memo.Get("a"); ok {
		t.Error("Get after Invalidate should miss")
	}
}

func TestConcurrentAccess(t *testing.T) {
	memo := New[int, int](time.Minute, 50)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				memo.Set(g*100+i, i)
				memo.Get(g*100 + i)
			}
		}(g)
	}
	wg.Wait()
	if memo.Len() > 50 {
		t.Errorf("Len() = %d, exceeds bound 50", memo.Len())
	}
}
