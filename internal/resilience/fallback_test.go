package resilience

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
)

func TestExecuteWithResult_Order(t *testing.T) {
	t.Parallel()

	type attempt struct {
		name string
		ok   bool
	}
	var (
		mu       sync.Mutex
		attempts []attempt
	)
	fg := NewFallbackGroup("primary", "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1},
		OnAttempt: func(_ context.Context, name string, err error) {
			mu.Lock()
			defer mu.Unlock()
			attempts = append(attempts, attempt{name, err == nil})
		},
	})
	fg.AddFallback("second", "second")
	fg.AddFallback("third", "third")

	if got := fg.Names(); !slices.Equal(got, []string{"primary", "second", "third"}) {
		t.Fatalf("Names = %v", got)
	}

	call := func(ctx context.Context, v string) (string, error) {
		if v == "third" {
			return "answer from " + v, nil
		}
		return "", errTest
	}

	got, err := ExecuteWithResult(context.Background(), fg, call)
	if err != nil {
		t.Fatalf("ExecuteWithResult: %v", err)
	}
	if got != "answer from third" {
		t.Errorf("result = %q", got)
	}
	want := []attempt{{"primary", false}, {"second", false}, {"third", true}}
	if !slices.Equal(attempts, want) {
		t.Errorf("attempts = %v, want %v", attempts, want)
	}

	// Both failed breakers are now open, so only the third entry is tried.
	attempts = nil
	if _, err := ExecuteWithResult(context.Background(), fg, call); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(attempts, []attempt{{"third", true}}) {
		t.Errorf("second run attempts = %v", attempts)
	}
}

func TestExecuteWithResult_AllFailed(t *testing.T) {
	t.Parallel()
	fg := NewFallbackGroup(1, "one", FallbackConfig{})
	fg.AddFallback("two", 2)

	_, err := ExecuteWithResult(context.Background(), fg, func(context.Context, int) (int, error) {
		return 0, errTest
	})
	if !errors.Is(err, ErrAllFailed) || !errors.Is(err, errTest) {
		t.Errorf("err = %v, want ErrAllFailed wrapping errTest", err)
	}
}

func TestExecuteWithResult_StopsOnCancel(t *testing.T) {
	t.Parallel()
	fg := NewFallbackGroup(1, "one", FallbackConfig{})
	fg.AddFallback("two", 2)

	ctx, cancel := context.WithCancel(context.Background())
	var tried []int
	_, err := ExecuteWithResult(ctx, fg, func(ctx context.Context, v int) (int, error) {
		tried = append(tried, v)
		cancel()
		return 0, ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if !slices.Equal(tried, []int{1}) {
		t.Errorf("tried = %v, want only the primary", tried)
	}
}
