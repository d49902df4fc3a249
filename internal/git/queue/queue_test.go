package queue

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"
)

func waitLen(t *testing.T, s *Serializer, key string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.Len(key) != want {
		if time.Now().After(deadline) {
			t.Fatalf("Len(%q) = %d, want %d", key, s.Len(key), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestDo_SameKeyIsFIFOAndExclusive(t *testing.T) {
	t.Parallel()

	s := New()
	release := make(chan struct{})
	var (
		mu      sync.Mutex
		order   []string
		running int
		overlap bool
	)
	task := func(name string, block bool) func() error {
		return func() error {
			mu.Lock()
			running++
			if running > 1 {
				overlap = true
			}
			order = append(order, name)
			mu.Unlock()
			if block {
				<-release
			}
			mu.Lock()
			running--
			mu.Unlock()
			return nil
		}
	}

	var wg sync.WaitGroup
	for i, name := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Do(context.Background(), "/repo", task(name, i == 0)); err != nil {
				t.Errorf("Do(%s) error = %v", name, err)
			}
		}()
		waitLen(t, s, "/repo", i+1)
	}
	close(release)
	wg.Wait()

	if overlap {
		t.Fatal("tasks on the same key overlapped")
	}
	if want := []string{"a", "b", "c", "d"}; !slices.Equal(order, want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	if s.Keys() != 0 {
		t.Fatalf("Keys() = %d after drain, want 0", s.Keys())
	}
}

func TestDo_DifferentKeysRunConcurrently(t *testing.T) {
	t.Parallel()

	s := New()
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.Do(context.Background(), "/repo1", func() error {
			<-release
			return nil
		})
	}()
	waitLen(t, s, "/repo1", 1)

	ran := false
	if err := s.Do(context.Background(), "/repo2", func() error {
		ran = true
		return nil
	}); err != nil {
		t.Fatalf("Do(/repo2) error = %v", err)
	}
	if !ran {
		t.Fatal("task on /repo2 did not run while /repo1 was busy")
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Do(/repo1) error = %v", err)
	}
}

func TestDo_TimeoutWhileWaiting(t *testing.T) {
	t.Parallel()

	s := New()
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.Do(context.Background(), "/repo", func() error {
			<-release
			return nil
		})
	}()
	waitLen(t, s, "/repo", 1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	ran := false
	err := s.Do(ctx, "/repo", func() error {
		ran = true
		return nil
	})
	if !errors.Is(err, ErrTimeout) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Do() error = %v, want ErrTimeout", err)
	}
	if ran {
		t.Fatal("timed out task ran")
	}
	if got := s.Len("/repo"); got != 1 {
		t.Fatalf("Len() = %d after timeout, want 1", got)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first Do() error = %v", err)
	}
	if s.Keys() != 0 {
		t.Fatalf("Keys() = %d, want 0", s.Keys())
	}
}

func TestDo_RunningTaskIsNotInterrupted(t *testing.T) {
	t.Parallel()

	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	want := errors.New("task result")
	err := s.Do(ctx, "/repo", func() error {
		cancel()
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("Do() error = %v, want %v", err, want)
	}
}

func TestDo_PanicReleasesSlot(t *testing.T) {
	t.Parallel()

	s := New()
	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic")
			}
		}()
		_ = s.Do(context.Background(), "/repo", func() error { panic("boom") })
	}()

	ran := false
	if err := s.Do(context.Background(), "/repo", func() error {
		ran = true
		return nil
	}); err != nil || !ran {
		t.Fatalf("Do() after panic = %v, ran=%v", err, ran)
	}
}

func TestDo_EmptyKey(t *testing.T) {
	t.Parallel()

	if err := New().Do(context.Background(), "", func() error { return nil }); err == nil {
		t.Fatal("expected error")
	}
}
