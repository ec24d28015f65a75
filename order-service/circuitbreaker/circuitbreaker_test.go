package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(clock *fakeClock) *CircuitBreaker {
	return NewCircuitBreaker(Settings{
		Name:                     "test",
		ErrorThresholdPercentage: 50,
		VolumeThreshold:          4,
		ResetTimeout:             30 * time.Second,
		RollingWindow:            10 * time.Second,
		Buckets:                  10,
		Now:                      clock.Now,
	})
}

func succeed(context.Context) error { return nil }
func fail(context.Context) error    { return errBoom }

func tripBreaker(t *testing.T, cb *CircuitBreaker) {
	t.Helper()
	for i := 0; i < 4; i++ {
		_ = cb.Execute(context.Background(), fail)
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("Expected breaker to be OPEN, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_OpensOnErrorRateAboveVolume(t *testing.T) {
	clock := newFakeClock()
	cb := newTestBreaker(clock)
	ctx := context.Background()

	_ = cb.Execute(ctx, succeed)
	_ = cb.Execute(ctx, succeed)
	_ = cb.Execute(ctx, fail)

	if cb.GetState() != StateClosed {
		t.Fatalf("Expected CLOSED below volume threshold, got %s", cb.GetState())
	}

	_ = cb.Execute(ctx, fail)

	if cb.GetState() != StateOpen {
		t.Fatalf("Expected OPEN at 50%% failures over 4 calls, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_StaysClosedBelowErrorRate(t *testing.T) {
	clock := newFakeClock()
	cb := newTestBreaker(clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, succeed)
	}
	_ = cb.Execute(ctx, fail)

	if cb.GetState() != StateClosed {
		t.Errorf("Expected CLOSED at 25%% failures, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_OpenShortCircuits(t *testing.T) {
	clock := newFakeClock()
	cb := newTestBreaker(clock)
	tripBreaker(t, cb)

	calls := 0
	err := cb.Execute(context.Background(), func(context.Context) error {
		calls++
		return nil
	})

	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
	if calls != 0 {
		t.Errorf("Expected operation not to run while OPEN, ran %d times", calls)
	}
	if stats := cb.Stats(); stats.Fallbacks != 1 {
		t.Errorf("Expected 1 fallback, got %d", stats.Fallbacks)
	}
}

func TestCircuitBreaker_HalfOpenTrialSuccessCloses(t *testing.T) {
	clock := newFakeClock()
	cb := newTestBreaker(clock)
	tripBreaker(t, cb)

	clock.Advance(30 * time.Second)

	var stateDuringTrial State
	err := cb.Execute(context.Background(), func(context.Context) error {
		stateDuringTrial = cb.GetState()
		return nil
	})
	if err != nil {
		t.Fatalf("Expected trial to succeed, got %v", err)
	}

	if stateDuringTrial != StateHalfOpen {
		t.Errorf("Expected HALF_OPEN while trial runs, got %s", stateDuringTrial)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("Expected CLOSED after successful trial, got %s", cb.GetState())
	}
	if stats := cb.Stats(); stats.WindowRequests != 0 {
		t.Errorf("Expected window to be cleared, got %d requests", stats.WindowRequests)
	}
}

func TestCircuitBreaker_HalfOpenTrialFailureReopens(t *testing.T) {
	clock := newFakeClock()
	cb := newTestBreaker(clock)
	tripBreaker(t, cb)

	clock.Advance(31 * time.Second)
	if err := cb.Execute(context.Background(), fail); !errors.Is(err, errBoom) {
		t.Fatalf("Expected trial error, got %v", err)
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("Expected OPEN after failed trial, got %s", cb.GetState())
	}

	// The cooldown restarts from the failed trial.
	clock.Advance(29 * time.Second)
	if err := cb.Execute(context.Background(), succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen inside restarted cooldown, got %v", err)
	}

	clock.Advance(time.Second)
	if err := cb.Execute(context.Background(), succeed); err != nil {
		t.Errorf("Expected trial after cooldown, got %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("Expected CLOSED, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_HalfOpenAllowsSingleTrial(t *testing.T) {
	clock := newFakeClock()
	cb := newTestBreaker(clock)
	tripBreaker(t, cb)
	clock.Advance(30 * time.Second)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	calls := 0
	err := cb.Execute(context.Background(), func(context.Context) error {
		calls++
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen while trial in flight, got %v", err)
	}
	if calls != 0 {
		t.Errorf("Expected concurrent call to be rejected, ran %d times", calls)
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("Expected trial to succeed, got %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("Expected CLOSED, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_TimeoutCountsAsFailure(t *testing.T) {
	cb := NewCircuitBreaker(Settings{
		Name:            "slow",
		Timeout:         20 * time.Millisecond,
		VolumeThreshold: 1,
	})

	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Expected ErrTimeout, got %v", err)
	}
	stats := cb.Stats()
	if stats.Timeouts != 1 {
		t.Errorf("Expected 1 timeout, got %d", stats.Timeouts)
	}
	if stats.State != "OPEN" {
		t.Errorf("Expected OPEN after timeout, got %s", stats.State)
	}
}

func TestCircuitBreaker_IsFailureFiltersBusinessErrors(t *testing.T) {
	errBusiness := errors.New("insufficient stock")
	cb := NewCircuitBreaker(Settings{
		Name:            "filtered",
		VolumeThreshold: 1,
		IsFailure: func(err error) bool {
			return err != nil && !errors.Is(err, errBusiness)
		},
	})

	for i := 0; i < 5; i++ {
		err := cb.Execute(context.Background(), func(context.Context) error { return errBusiness })
		if !errors.Is(err, errBusiness) {
			t.Fatalf("Expected business error to pass through, got %v", err)
		}
	}

	stats := cb.Stats()
	if stats.State != "CLOSED" {
		t.Errorf("Expected CLOSED, got %s", stats.State)
	}
	if stats.Successes != 5 || stats.Failures != 0 {
		t.Errorf("Expected 5 successes and 0 failures, got %d and %d", stats.Successes, stats.Failures)
	}
}

func TestCircuitBreaker_OldOutcomesLeaveWindow(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(Settings{
		Name:            "window",
		VolumeThreshold: 2,
		RollingWindow:   10 * time.Second,
		Buckets:         10,
		Now:             clock.Now,
	})

	_ = cb.Execute(context.Background(), fail)
	clock.Advance(11 * time.Second)
	_ = cb.Execute(context.Background(), fail)

	if cb.GetState() != StateClosed {
		t.Errorf("Expected CLOSED when the first failure has aged out, got %s", cb.GetState())
	}
	if stats := cb.Stats(); stats.WindowRequests != 1 {
		t.Errorf("Expected 1 request in window, got %d", stats.WindowRequests)
	}
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	clock := newFakeClock()
	var transitions []string
	cb := NewCircuitBreaker(Settings{
		Name:            "hooked",
		VolumeThreshold: 1,
		ResetTimeout:    time.Second,
		Now:             clock.Now,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_ = cb.Execute(context.Background(), fail)
	clock.Advance(time.Second)
	_ = cb.Execute(context.Background(), succeed)

	want := []string{"CLOSED->OPEN", "OPEN->HALF_OPEN", "HALF_OPEN->CLOSED"}
	if len(transitions) != len(want) {
		t.Fatalf("Expected transitions %v, got %v", want, transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("Expected transition %d to be %s, got %s", i, want[i], transitions[i])
		}
	}
}

func TestCall_ReturnsValue(t *testing.T) {
	cb := NewCircuitBreaker(Settings{Name: "call"})

	got, err := Call(context.Background(), cb, func(context.Context) (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got != 42 {
		t.Errorf("Expected 42, got %d", got)
	}

	tripped := NewCircuitBreaker(Settings{Name: "call-open", VolumeThreshold: 1})
	_ = tripped.Execute(context.Background(), fail)
	got, err = Call(context.Background(), tripped, func(context.Context) (int, error) {
		return 7, nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
	if got != 0 {
		t.Errorf("Expected zero value on fallback, got %d", got)
	}
}

func TestCircuitBreaker_CallerCancellationIsNotAFailure(t *testing.T) {
	cb := NewCircuitBreaker(Settings{
		Name:            "cart",
		Timeout:         time.Second,
		VolumeThreshold: 1,
	})

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		err := cb.Execute(ctx, func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})
		cancel()
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("Expected the caller's deadline error, got %v", err)
		}
	}

	stats := cb.Stats()
	if stats.State != "CLOSED" {
		t.Errorf("Expected CLOSED, got %s", stats.State)
	}
	if stats.Failures != 0 || stats.Timeouts != 0 || stats.WindowRequests != 0 {
		t.Errorf("Expected no recorded outcomes, got %+v", stats)
	}
	if stats.Cancelled != 3 {
		t.Errorf("Expected 3 cancelled calls, got %d", stats.Cancelled)
	}
}

func TestCircuitBreaker_CancelledTrialFreesHalfOpen(t *testing.T) {
	clock := newFakeClock()
	cb := newTestBreaker(clock)
	tripBreaker(t, cb)
	clock.Advance(31 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = cb.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })

	if cb.GetState() != StateHalfOpen {
		t.Fatalf("Expected HALF_OPEN after a cancelled trial, got %s", cb.GetState())
	}
	if err := cb.Execute(context.Background(), succeed); err != nil {
		t.Fatalf("Expected the next trial to run, got %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("Expected CLOSED, got %s", cb.GetState())
	}
}
