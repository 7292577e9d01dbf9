package warmup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestWorker_RunOnce(t *testing.T) {
	t.Parallel()

	warmer := &stubWarmer{}
	worker := NewWorker(warmer)

	if err := worker.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if calls := warmer.calls(); calls != 1 {
		t.Fatalf("unexpected warm calls: got=%d want=1", calls)
	}
}

func TestWorker_RunOnce_Error(t *testing.T) {
	t.Parallel()

	warmer := &stubWarmer{errs: []error{errors.New("boom")}}
	worker := NewWorker(warmer)

	if err := worker.RunOnce(context.Background()); err == nil {
		t.Fatal("expected RunOnce error")
	}
}

func TestWorker_RunOnce_AppliesTimeout(t *testing.T) {
	t.Parallel()

	warmer := &stubWarmer{block: true}
	worker := NewWorker(warmer, WithTimeout(10*time.Millisecond))

	err := worker.RunOnce(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestWorker_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	warmer := &stubWarmer{}
	worker := NewWorker(warmer, WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}

	if calls := warmer.calls(); calls < 2 {
		t.Fatalf("expected periodic warmups, got %d calls", calls)
	}
}

func TestWorker_Run_NilWarmer(t *testing.T) {
	t.Parallel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		NewWorker(nil).Run(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker with nil warmer must return immediately")
	}
}

type stubWarmer struct {
	mu        sync.Mutex
	errs      []error
	block     bool
	callCount int
}

func (s *stubWarmer) Warm(ctx context.Context) error {
	s.mu.Lock()
	s.callCount++
	var err error
	if len(s.errs) > 0 {
		err = s.errs[0]
		s.errs = s.errs[1:]
	}
	block := s.block
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (s *stubWarmer) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callCount
}
