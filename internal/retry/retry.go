package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Policy is a fixed retry schedule: the first attempt runs immediately and
// each entry in Delays is the wait before one further attempt.
type Policy struct {
	Delays []time.Duration
}

// VideoUploadPolicy gives five attempts: now, then after 3s, 5s, 10s and 20s.
func VideoUploadPolicy() Policy {
	return Policy{Delays: []time.Duration{3 * time.Second, 5 * time.Second, 10 * time.Second, 20 * time.Second}}
}

// Immediate retries attempts-1 times without waiting.
func Immediate(attempts int) Policy {
	if attempts < 1 {
		attempts = 1
	}
	return Policy{Delays: make([]time.Duration, attempts-1)}
}

func (p Policy) MaxAttempts() int {
	return len(p.Delays) + 1
}

// BackOff returns a fresh backoff.BackOff walking the schedule.
func (p Policy) BackOff() backoff.BackOff {
	return &schedule{delays: p.Delays}
}

type schedule struct {
	delays []time.Duration
	next   int
}

func (s *schedule) NextBackOff() time.Duration {
	if s.next >= len(s.delays) {
		return backoff.Stop
	}
	d := s.delays[s.next]
	s.next++
	return d
}

func (s *schedule) Reset() {
	s.next = 0
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs operation under the policy until it succeeds, returns a permanent
// error, the schedule is exhausted or ctx is done.
func Do(ctx context.Context, logger *zap.Logger, operationName string, p Policy, operation func() error) error {
	b := backoff.WithContext(p.BackOff(), ctx)

	attempt := 1
	notify := func(err error, next time.Duration) {
		attempt++
		logger.Warn("Operation failed, retrying...",
			zap.String("operation", operationName),
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.MaxAttempts()),
			zap.Duration("next_attempt_in", next.Round(time.Millisecond)),
		)
	}

	return backoff.RetryNotify(operation, b, notify)
}
