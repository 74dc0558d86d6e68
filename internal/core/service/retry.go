package service

import (
	"context"
	"time"

	"airemover/internal/core/domain"

	"github.com/rs/zerolog"
)

const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 2 * time.Second
)

// Sleeper waits between attempts. Implementations must return early with ctx.Err() when ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Decision is the verdict on a single outcome.
type Decision struct {
	Retry bool
	Delay time.Duration
}

// RetryResult is the final state after Execute stops.
type RetryResult struct {
	Outcome   domain.CallOutcome
	Attempts  int
	Exhausted bool
	// Err is set when waiting for the next attempt was interrupted.
	Err error
}

// RetryPolicy decides whether a provider call is repeated and drives the attempts.
type RetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	sleeper     Sleeper
	logger      zerolog.Logger
}

// NewRetryPolicy builds a policy. A nil sleeper waits on real timers.
func NewRetryPolicy(maxAttempts int, baseDelay time.Duration, sleeper Sleeper, logger zerolog.Logger) *RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay < 0 {
		baseDelay = DefaultRetryDelay
	}
	if sleeper == nil {
		sleeper = timerSleeper{}
	}

	return &RetryPolicy{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		sleeper:     sleeper,
		logger:      logger.With().Str("component", "retry").Logger(),
	}
}

func (p *RetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// Retryable reports whether a failure class is ever retried.
func Retryable(class domain.FailureClass) bool {
	switch class {
	case domain.FailureRateLimited, domain.FailureServer, domain.FailureReadTimeout:
		return true
	default:
		return false
	}
}

// ShouldRetry judges the outcome of the attempt with zero-based index attempt.
func (p *RetryPolicy) ShouldRetry(outcome domain.CallOutcome, attempt int) Decision {
	if outcome.Succeeded() || !Retryable(outcome.Class) || attempt+1 >= p.maxAttempts {
		return Decision{}
	}

	if outcome.Class == domain.FailureRateLimited {
		return Decision{Retry: true, Delay: p.baseDelay * time.Duration(attempt+1)}
	}

	return Decision{Retry: true, Delay: p.baseDelay}
}

type retryState struct {
	attempt int
	last    domain.FailureClass
	next    time.Duration
}

func (s *retryState) record(outcome domain.CallOutcome, decision Decision) {
	s.attempt++
	s.last = outcome.Class
	s.next = decision.Delay
}

// Execute calls fn until it succeeds, fails with a non-retryable class, or the attempt budget runs out.
func (p *RetryPolicy) Execute(ctx context.Context, fn func(ctx context.Context) domain.CallOutcome) RetryResult {
	var state retryState

	for {
		outcome := fn(ctx)
		decision := p.ShouldRetry(outcome, state.attempt)
		state.record(outcome, decision)

		if !decision.Retry {
			return RetryResult{
				Outcome:   outcome,
				Attempts:  state.attempt,
				Exhausted: !outcome.Succeeded() && Retryable(outcome.Class),
			}
		}

		p.logger.Warn().
			Int("attempt", state.attempt).
			Int("maxAttempts", p.maxAttempts).
			Str("class", string(state.last)).
			Dur("delay", state.next).
			Msg("provider call failed, retrying")

		if err := p.sleeper.Sleep(ctx, state.next); err != nil {
			return RetryResult{Outcome: outcome, Attempts: state.attempt, Err: err}
		}
	}
}
