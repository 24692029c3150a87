package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		maxAttempts  int
		succeedOn    int // 0 = never
		wantCalls    int
		wantCleanups int
		wantErr      bool
	}{
		{name: "first try", maxAttempts: 5, succeedOn: 1, wantCalls: 1},
		{name: "third try", maxAttempts: 5, succeedOn: 3, wantCalls: 3, wantCleanups: 2},
		{name: "exhausted", maxAttempts: 5, wantCalls: 5, wantCleanups: 5, wantErr: true},
		{name: "zero attempts means one", maxAttempts: 0, wantCalls: 1, wantCleanups: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls, cleanups, failures int
			err := Retry(context.Background(), RetryConfig{
				MaxAttempts: tt.maxAttempts,
				Cleanup:     func() { cleanups++ },
				OnFailure:   func(int, error) { failures++ },
			}, func(_ context.Context, attempt int) error {
				calls++
				if attempt != calls {
					t.Errorf("attempt = %d, want %d", attempt, calls)
				}
				if attempt == tt.succeedOn {
					return nil
				}
				return errTest
			})

			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if cleanups != tt.wantCleanups || failures != tt.wantCleanups {
				t.Errorf("cleanups = %d, failures = %d, want %d", cleanups, failures, tt.wantCleanups)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrAttemptsExhausted) || !errors.Is(err, errTest) {
					t.Errorf("err = %v, want ErrAttemptsExhausted wrapping errTest", err)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestRetry_Backoff(t *testing.T) {
	t.Parallel()

	start := time.Now()
	_ = Retry(context.Background(), RetryConfig{MaxAttempts: 3, Backoff: 10 * time.Millisecond},
		func(context.Context, int) error { return errTest })
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("elapsed = %v, want at least two backoffs", elapsed)
	}
}

func TestRetry_ContextCancelledDuringBackoff(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, RetryConfig{MaxAttempts: 5, Backoff: time.Hour},
		func(context.Context, int) error {
			calls++
			cancel()
			return errTest
		})
	if !errors.Is(err, context.Canceled) || !errors.Is(err, errTest) {
		t.Errorf("err = %v, want Canceled wrapping errTest", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetry_AlreadyCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, RetryConfig{MaxAttempts: 3}, func(context.Context, int) error {
		t.Error("fn called with cancelled context")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
