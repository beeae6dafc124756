package store

import "time"

// RetryPolicy is a reusable retry schedule: one immediate attempt followed
// by one retry per backoff entry. It is a value object so the same schedule
// can be injected everywhere retrying is needed.
type RetryPolicy struct {
	// Backoff holds the fixed delay before each retry.
	Backoff []time.Duration

	// Sleep is the sleep function, overridable in tests. Nil means
	// time.Sleep.
	Sleep func(time.Duration)
}

// DefaultRetryPolicy is the engine's bounded schedule: at most three retries
// and at most 13s of cumulative delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Backoff: []time.Duration{time.Second, 3 * time.Second, 9 * time.Second}}
}

// Attempts returns the total number of attempts the policy permits.
func (p RetryPolicy) Attempts() int { return len(p.Backoff) + 1 }

// Do runs fn until it succeeds or the schedule is exhausted, returning the
// last error on exhaustion.
func (p RetryPolicy) Do(fn func() error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	err := fn()
	if err == nil {
		return nil
	}

	for _, delay := range p.Backoff {
		sleep(delay)
		if err = fn(); err == nil {
			return nil
		}
	}
	return err
}
