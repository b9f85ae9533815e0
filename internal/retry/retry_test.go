package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var (
	errFlaky = errors.New("flaky")
	errAuth  = errors.New("token expired")
	errFatal = errors.New("bad request")
)

func classify(err error) Class {
	switch {
	case errors.Is(err, errFlaky):
		return Retryable
	case errors.Is(err, errAuth):
		return Reauth
	default:
		return Terminal
	}
}

func fastPolicy() Policy {
	return Policy{MaxAttempts: 3, Backoff: time.Millisecond}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastPolicy(), classify, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errFlaky
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" || calls != 3 {
		t.Errorf("got %q after %d calls", got, calls)
	}
}

func TestDoStopsOnTerminal(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(), classify, func(context.Context) (int, error) {
		calls++
		return 0, errFatal
	})
	if !errors.Is(err, errFatal) {
		t.Fatalf("err = %v, want errFatal", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoExhausts(t *testing.T) {
	var retries []int
	p := fastPolicy()
	p.OnRetry = func(attempt int, _ error, _ time.Duration) { retries = append(retries, attempt) }

	calls := 0
	_, err := Do(context.Background(), p, classify, func(context.Context) (int, error) {
		calls++
		return 0, errFlaky
	})
	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("err = %v, want ExhaustedError", err)
	}
	if ex.Attempts != 3 || !errors.Is(err, errFlaky) {
		t.Errorf("exhausted = %+v", ex)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(retries) != 2 {
		t.Errorf("OnRetry called %d times, want 2", len(retries))
	}
}

func TestDoReauthenticates(t *testing.T) {
	refreshed := 0
	p := fastPolicy()
	p.Reauth = func(context.Context) error {
		refreshed++
		return nil
	}

	calls := 0
	_, err := Do(context.Background(), p, classify, func(context.Context) (int, error) {
		calls++
		if refreshed == 0 {
			return 0, errAuth
		}
		return 1, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refreshed != 1 || calls != 2 {
		t.Errorf("refreshed=%d calls=%d", refreshed, calls)
	}
}

func TestDoReauthFailureEndsLoop(t *testing.T) {
	errRefresh := errors.New("refresh denied")
	p := fastPolicy()
	p.Reauth = func(context.Context) error { return errRefresh }

	calls := 0
	_, err := Do(context.Background(), p, classify, func(context.Context) (int, error) {
		calls++
		return 0, errAuth
	})
	if !errors.Is(err, errRefresh) || !errors.Is(err, errAuth) {
		t.Fatalf("err = %v, want both refresh and auth errors", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 5, Backoff: time.Hour}

	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := Do(ctx, p, classify, func(context.Context) (int, error) {
		calls++
		return 0, errFlaky
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDelayIsLinearAndCapped(t *testing.T) {
	p := Policy{Backoff: 100 * time.Millisecond, MaxBackoff: 250 * time.Millisecond}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 250 * time.Millisecond}
	for i, w := range want {
		if got := p.Delay(i + 1); got != w {
			t.Errorf("Delay(%d) = %v, want %v", i+1, got, w)
		}
	}
}
