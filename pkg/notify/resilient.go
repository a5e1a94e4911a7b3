package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Mrtrew97/Schedule-Bot--I/pkg/logger"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/metrics"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/models"
	backoff "github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"
)

// Policy configures the resilience decorator
type Policy struct {
	// CallTimeout bounds every outbound call
	CallTimeout time.Duration
	// MaxAttempts applies to idempotent calls only; Post is never retried
	// here because a lost response could duplicate the message
	MaxAttempts    int
	InitialBackoff time.Duration
	// FailureThreshold consecutive failures open the breaker for OpenTimeout
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// DefaultPolicy is used by the bot binary
var DefaultPolicy = Policy{
	CallTimeout:      10 * time.Second,
	MaxAttempts:      3,
	InitialBackoff:   500 * time.Millisecond,
	FailureThreshold: 5,
	OpenTimeout:      30 * time.Second,
}

// Resilient wraps a Notifier with per-call timeouts, retries for idempotent
// operations and a circuit breaker. Any failure that is not ErrNotFound or
// ErrForbidden comes back wrapped in ErrTransient.
type Resilient struct {
	next   Notifier
	cb     *gobreaker.CircuitBreaker
	policy Policy
	clock  clockwork.Clock
	logger *logger.Logger
}

var _ Notifier = (*Resilient)(nil)

// NewResilient creates a resilient notifier around next
func NewResilient(next Notifier, policy Policy, clock clockwork.Clock) *Resilient {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	log := logger.New("notify")

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "notifier",
		MaxRequests: 1,
		Timeout:     policy.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= policy.FailureThreshold
		},
		// Not-found and forbidden answers prove the platform is reachable
		IsSuccessful: func(err error) bool {
			return err == nil || IsBenign(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker %s changed from %s to %s", name, from, to)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &Resilient{
		next:   next,
		cb:     cb,
		policy: policy,
		clock:  clock,
		logger: log,
	}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// State exposes the breaker state for health checks
func (r *Resilient) State() gobreaker.State {
	return r.cb.State()
}

// call runs op once through the breaker with the call timeout applied
func (r *Resilient) call(ctx context.Context, op string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	res, err := r.cb.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, r.policy.CallTimeout)
		defer cancel()
		return fn(callCtx)
	})

	status := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		status = "not_found"
	case errors.Is(err, ErrForbidden):
		status = "forbidden"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		status = "rejected"
	default:
		status = "error"
	}
	metrics.NotifierCalls.WithLabelValues(op, status).Inc()
	return res, err
}

// retry repeats an idempotent op with doubling backoff until it succeeds,
// fails benignly, or attempts run out
func (r *Resilient) retry(ctx context.Context, op string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	var res interface{}
	attempt := 0

	operation := func() error {
		attempt++
		out, err := r.call(ctx, op, fn)
		switch {
		case err == nil:
			res = out
			return nil
		case IsBenign(err), errors.Is(err, gobreaker.ErrOpenState):
			return backoff.Permanent(err)
		}
		return err
	}
	onRetry := func(err error, wait time.Duration) {
		r.logger.Debug("%s failed (attempt %d/%d), retrying in %v: %v", op, attempt, r.policy.MaxAttempts, wait, err)
	}

	err := backoff.RetryNotifyWithTimer(operation, r.newBackOff(ctx), onRetry, &clockTimer{clock: r.clock})
	switch {
	case err == nil:
		return res, nil
	case IsBenign(err):
		return nil, err
	}
	return nil, transient(op, err)
}

// newBackOff builds the per-call schedule: InitialBackoff doubling on every
// retry, at most MaxAttempts calls in total
func (r *Resilient) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.policy.InitialBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	if r.policy.OpenTimeout > 0 {
		b.MaxInterval = r.policy.OpenTimeout
	}
	b.MaxElapsedTime = 0
	b.Clock = r.clock
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.policy.MaxAttempts-1)), ctx)
}

// clockTimer drives backoff waits from the injected clock
type clockTimer struct {
	clock clockwork.Clock
	timer clockwork.Timer
}

func (t *clockTimer) Start(d time.Duration) {
	if t.timer == nil {
		t.timer = t.clock.NewTimer(d)
		return
	}
	t.timer.Reset(d)
}

func (t *clockTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *clockTimer) C() <-chan time.Time {
	return t.timer.Chan()
}

func transient(op string, err error) error {
	if errors.Is(err, ErrTransient) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrTransient, op, err)
}

// Post implements Notifier
func (r *Resilient) Post(ctx context.Context, channel string, p Payload) (models.MessageRef, error) {
	res, err := r.call(ctx, "post", func(ctx context.Context) (interface{}, error) {
		return r.next.Post(ctx, channel, p)
	})
	if err != nil {
		if IsBenign(err) {
			return models.MessageRef{}, err
		}
		return models.MessageRef{}, transient("post", err)
	}
	return res.(models.MessageRef), nil
}

// Delete implements Notifier
func (r *Resilient) Delete(ctx context.Context, ref models.MessageRef) error {
	_, err := r.retry(ctx, "delete", func(ctx context.Context) (interface{}, error) {
		return nil, r.next.Delete(ctx, ref)
	})
	return err
}

// RetractReaction implements Notifier
func (r *Resilient) RetractReaction(ctx context.Context, ref models.MessageRef, userID string, emoji models.VoteEmoji) error {
	_, err := r.retry(ctx, "retract_reaction", func(ctx context.Context) (interface{}, error) {
		return nil, r.next.RetractReaction(ctx, ref, userID, emoji)
	})
	return err
}

// Reactors implements Notifier
func (r *Resilient) Reactors(ctx context.Context, ref models.MessageRef, emoji models.VoteEmoji) ([]string, error) {
	res, err := r.retry(ctx, "reactors", func(ctx context.Context) (interface{}, error) {
		return r.next.Reactors(ctx, ref, emoji)
	})
	if err != nil {
		return nil, err
	}
	users, _ := res.([]string)
	return users, nil
}
