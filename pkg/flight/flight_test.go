package flight

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDoCachesResult(t *testing.T) {
	var calls atomic.Int32
	c := NewCache[string, string]()
	work := func() (string, error) {
		calls.Add(1)
		return "caption", nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.Do("digest-a", work)
		if err != nil {
			t.Fatal(err)
		}
		if v != "caption" {
			t.Fatalf("Do = %q", v)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("work ran %d times, want 1", n)
	}
}

func TestDoCoalescesConcurrentCallers(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	c := NewCache[string, string]()
	work := func() (string, error) {
		calls.Add(1)
		<-release
		return "done", nil
	}

	const n = 8
	var wg sync.WaitGroup
	results := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = c.Do("same-key", work)
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("work ran %d times for %d concurrent callers, want 1", got, n)
	}
	for i, r := range results {
		if r != "done" {
			t.Errorf("caller %d got %q", i, r)
		}
	}
}

func TestErrorsAreNotCached(t *testing.T) {
	var calls atomic.Int32
	c := NewCache[string, string]()
	work := func() (string, error) {
		if calls.Add(1) == 1 {
			return "", errors.New("transient")
		}
		return "recovered", nil
	}

	if _, err := c.Do("k", work); err == nil {
		t.Fatal("first Do should fail")
	}
	v, err := c.Do("k", work)
	if err != nil || v != "recovered" {
		t.Fatalf("second Do = %q, %v", v, err)
	}
}

func TestExpiry(t *testing.T) {
	var calls atomic.Int32
	c := NewCache[string, string]()
	c.Expiry(10 * time.Millisecond)
	work := func() (string, error) {
		calls.Add(1)
		return "v", nil
	}

	c.Do("k", work)
	time.Sleep(25 * time.Millisecond)
	c.Do("k", work)

	if n := calls.Load(); n != 2 {
		t.Errorf("work ran %d times, want 2 after expiry", n)
	}
}

func TestForget(t *testing.T) {
	var calls atomic.Int32
	c := NewCache[string, string]()
	work := func() (string, error) {
		calls.Add(1)
		return "v", nil
	}
	c.Do("k", work)
	c.Forget("k")
	c.Do("k", work)
	if n := calls.Load(); n != 2 {
		t.Errorf("work ran %d times, want 2 after Forget", n)
	}
}
