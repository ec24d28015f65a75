package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

var (
	// ErrCircuitOpen is the fallback returned instead of invoking the operation.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTimeout is returned when the operation outlives Settings.Timeout.
	ErrTimeout = errors.New("circuit breaker call timed out")
)

// Settings parametrizes one breaker instance.
type Settings struct {
	Name string
	// Timeout bounds each call. Zero disables the bound.
	Timeout time.Duration
	// ErrorThresholdPercentage is the failure rate (0-100) that opens the breaker.
	ErrorThresholdPercentage float64
	// VolumeThreshold is the minimum number of calls in the window before the
	// failure rate is considered.
	VolumeThreshold int
	// ResetTimeout is the cooldown spent OPEN before a trial call is let through.
	ResetTimeout time.Duration
	// RollingWindow is the span over which outcomes are counted.
	RollingWindow time.Duration
	Buckets       int

	// IsFailure reports whether err counts against the breaker. Defaults to err != nil.
	IsFailure     func(err error) bool
	OnStateChange func(name string, from, to State)
	Now           func() time.Time
}

// Stats is a point-in-time view of a breaker.
type Stats struct {
	Name           string `json:"name"`
	State          string `json:"state"`
	Requests       int64  `json:"requests"`
	Successes      int64  `json:"successes"`
	Failures       int64  `json:"failures"`
	Timeouts       int64  `json:"timeouts"`
	Fallbacks      int64  `json:"fallbacks"`
	Cancelled      int64  `json:"cancelled"`
	WindowRequests int    `json:"window_requests"`
	WindowFailures int    `json:"window_failures"`
}

type CircuitBreaker struct {
	settings Settings

	mu             sync.Mutex
	state          State
	openedAt       time.Time
	halfOpenFlight bool
	window         *rollingWindow

	requests  int64
	successes int64
	failures  int64
	timeouts  int64
	fallbacks int64
	cancelled int64
}

func NewCircuitBreaker(s Settings) *CircuitBreaker {
	if s.ErrorThresholdPercentage <= 0 {
		s.ErrorThresholdPercentage = 50
	}
	if s.VolumeThreshold < 1 {
		s.VolumeThreshold = 1
	}
	if s.ResetTimeout <= 0 {
		s.ResetTimeout = 30 * time.Second
	}
	if s.RollingWindow <= 0 {
		s.RollingWindow = 10 * time.Second
	}
	if s.Buckets < 1 {
		s.Buckets = 10
	}
	if s.IsFailure == nil {
		s.IsFailure = func(err error) bool { return err != nil }
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	recordState(s.Name, StateClosed)
	return &CircuitBreaker{
		settings: s,
		state:    StateClosed,
		window:   newRollingWindow(s.RollingWindow, s.Buckets),
	}
}

func (cb *CircuitBreaker) Name() string {
	return cb.settings.Name
}

// Execute runs fn unless the breaker short-circuits, in which case it returns
// ErrCircuitOpen without calling fn. fn receives a context bounded by the
// configured timeout; once the timeout fires the call is abandoned.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	trial, err := cb.allow()
	if err != nil {
		return err
	}

	err = cb.run(ctx, fn)
	if err != nil && ctx.Err() != nil {
		// The caller gave up; the outcome says nothing about the dependency.
		cb.release(trial)
		return err
	}
	cb.record(trial, err)
	return err
}

// Call is Execute for operations that produce a value.
func Call[T any](ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := cb.Execute(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		// out may still be written by an abandoned call.
		var zero T
		return zero, err
	}
	return out, nil
}

func (cb *CircuitBreaker) allow() (trial bool, err error) {
	now := cb.settings.Now()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.requests++
	switch cb.state {
	case StateOpen:
		if now.Sub(cb.openedAt) < cb.settings.ResetTimeout {
			cb.fallbacks++
			recordCall(cb.settings.Name, "short_circuit")
			return false, ErrCircuitOpen
		}
		cb.setState(StateHalfOpen)
	case StateHalfOpen:
		if cb.halfOpenFlight {
			cb.fallbacks++
			recordCall(cb.settings.Name, "short_circuit")
			return false, ErrCircuitOpen
		}
	}

	if cb.state == StateHalfOpen {
		cb.halfOpenFlight = true
		return true, nil
	}
	return false, nil
}

func (cb *CircuitBreaker) run(ctx context.Context, fn func(ctx context.Context) error) error {
	if cb.settings.Timeout <= 0 {
		return fn(ctx)
	}

	callCtx, cancel := context.WithTimeout(ctx, cb.settings.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(callCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTimeout
	}
}

// release ends a call that the caller cancelled without touching the window.
func (cb *CircuitBreaker) release(trial bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if trial {
		cb.halfOpenFlight = false
	}
	cb.cancelled++
	recordCall(cb.settings.Name, "cancelled")
}

func (cb *CircuitBreaker) record(trial bool, err error) {
	now := cb.settings.Now()
	failed := cb.settings.IsFailure(err)

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if trial {
		cb.halfOpenFlight = false
	}

	b := cb.window.bucket(now)
	switch {
	case errors.Is(err, ErrTimeout):
		cb.timeouts++
		b.timeouts++
		recordCall(cb.settings.Name, "timeout")
	case failed:
		cb.failures++
		b.failures++
		recordCall(cb.settings.Name, "failure")
	default:
		cb.successes++
		b.successes++
		recordCall(cb.settings.Name, "success")
	}
	failed = failed || errors.Is(err, ErrTimeout)

	if trial {
		if failed {
			cb.openedAt = now
			cb.setState(StateOpen)
			return
		}
		cb.window.reset()
		cb.setState(StateClosed)
		return
	}

	if cb.state != StateClosed || !failed {
		return
	}
	total, failures := cb.window.totals(now)
	if total < cb.settings.VolumeThreshold {
		return
	}
	if float64(failures)*100/float64(total) >= cb.settings.ErrorThresholdPercentage {
		cb.openedAt = now
		cb.setState(StateOpen)
	}
}

// setState must be called with mu held.
func (cb *CircuitBreaker) setState(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	recordState(cb.settings.Name, to)
	if cb.settings.OnStateChange != nil {
		cb.settings.OnStateChange(cb.settings.Name, from, to)
	}
}

func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Stats() Stats {
	now := cb.settings.Now()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	total, failures := cb.window.totals(now)
	return Stats{
		Name:           cb.settings.Name,
		State:          cb.state.String(),
		Requests:       cb.requests,
		Successes:      cb.successes,
		Failures:       cb.failures,
		Timeouts:       cb.timeouts,
		Fallbacks:      cb.fallbacks,
		Cancelled:      cb.cancelled,
		WindowRequests: total,
		WindowFailures: failures,
	}
}
