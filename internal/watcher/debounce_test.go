package watcher

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncer_Add_SingleKey(t *testing.T) {
	var called atomic.Int32
	var calledKey string
	var mu sync.Mutex

	delay := 50 * time.Millisecond
	d := NewDebouncer(delay, func(key string) {
		mu.Lock()
		calledKey = key
		mu.Unlock()
		called.Add(1)
	})

	d.Add("/data/2025-09-23_EN")

	if !d.IsPending("/data/2025-09-23_EN") {
		t.Error("key should be pending after Add")
	}

	time.Sleep(delay + 50*time.Millisecond)

	if called.Load() != 1 {
		t.Errorf("expected callback to be called once, got %d", called.Load())
	}
	mu.Lock()
	if calledKey != "/data/2025-09-23_EN" {
		t.Errorf("expected key /data/2025-09-23_EN, got %s", calledKey)
	}
	mu.Unlock()
	if d.PendingCount() != 0 {
		t.Error("key should not be pending after callback")
	}
}

func TestDebouncer_Add_CoalescesRapidEvents(t *testing.T) {
	var callCount atomic.Int32

	delay := 100 * time.Millisecond
	d := NewDebouncer(delay, func(key string) {
		callCount.Add(1)
	})

	for i := 0; i < 5; i++ {
		d.Add("/data/reports")
		time.Sleep(10 * time.Millisecond)
	}

	if d.PendingCount() != 1 {
		t.Errorf("expected 1 pending, got %d", d.PendingCount())
	}

	time.Sleep(delay + 80*time.Millisecond)

	if callCount.Load() != 1 {
		t.Errorf("expected callback to be called once, got %d", callCount.Load())
	}
}

func TestDebouncer_Add_MultipleKeys(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[string]int)

	delay := 50 * time.Millisecond
	d := NewDebouncer(delay, func(key string) {
		mu.Lock()
		seen[key]++
		mu.Unlock()
	})

	d.Add("/a")
	d.Add("/b")
	d.Add("/c")

	if d.PendingCount() != 3 {
		t.Errorf("expected 3 pending, got %d", d.PendingCount())
	}

	time.Sleep(delay + 80*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for _, key := range []string{"/a", "/b", "/c"} {
		if seen[key] != 1 {
			t.Errorf("expected one callback for %s, got %d", key, seen[key])
		}
	}
}

func TestDebouncer_CancelAll(t *testing.T) {
	var callCount atomic.Int32

	delay := 50 * time.Millisecond
	d := NewDebouncer(delay, func(key string) {
		callCount.Add(1)
	})

	d.Add("/a")
	d.Add("/b")
	d.CancelAll()

	if d.PendingCount() != 0 {
		t.Errorf("expected 0 pending after CancelAll, got %d", d.PendingCount())
	}

	time.Sleep(delay + 50*time.Millisecond)

	if callCount.Load() != 0 {
		t.Errorf("expected no callbacks after CancelAll, got %d", callCount.Load())
	}
}

func TestDebouncer_NilCallback(t *testing.T) {
	d := NewDebouncer(10*time.Millisecond, nil)
	d.Add("/a")
	time.Sleep(40 * time.Millisecond)
	if d.PendingCount() != 0 {
		t.Error("expected the key to be released without a callback")
	}
}

func TestDebouncer_ConcurrentAccess(t *testing.T) {
	var callCount atomic.Int32

	d := NewDebouncer(100*time.Millisecond, func(key string) {
		callCount.Add(1)
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Add("/data/reports")
			d.PendingCount()
		}()
	}
	wg.Wait()

	time.Sleep(250 * time.Millisecond)

	if callCount.Load() != 1 {
		t.Errorf("expected concurrent Adds to coalesce into one callback, got %d", callCount.Load())
	}
}
