package resilience

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ErrOpen is returned by Execute while the breaker rejects calls.
var ErrOpen = errors.New("resilience: breaker open")

// State is the breaker position.
type State int

const (
	// Closed passes every call through and counts failures.
	Closed State = iota
	// Open rejects calls until the cool-off elapses.
	Open
	// HalfOpen lets a single trial call through.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker is a failure-ratio circuit breaker around one downstream target.
type Breaker struct {
	mu           sync.Mutex
	state        State
	failures     int
	successes    int
	probing      bool
	openedAt     time.Time
	minRequests  int
	failureRatio float64
	openFor      time.Duration
	target       string
	logger       zerolog.Logger
}

// NewBreaker returns a closed breaker for target. It opens once at least
// minRequests outcomes were seen and the failure ratio reaches failureRatio.
func NewBreaker(target string, minRequests int, failureRatio float64, openFor time.Duration, logger zerolog.Logger) *Breaker {
	if minRequests <= 0 {
		minRequests = 1
	}
	if failureRatio <= 0 || failureRatio > 1 {
		failureRatio = 0.5
	}
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	target = strings.TrimSpace(target)
	if target == "" {
		target = "default"
	}
	b := &Breaker{
		minRequests:  minRequests,
		failureRatio: failureRatio,
		openFor:      openFor,
		target:       target,
		logger:       logger,
	}
	b.recordState()
	return b
}

// State reports the current position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Execute runs fn unless the breaker is open and records its outcome.
// Cancellation by the caller is not held against the target.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if !b.allow(ctx) {
		return ErrOpen
	}
	err := fn(ctx)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		b.release()
		return err
	}
	b.report(ctx, err == nil)
	return err
}

func (b *Breaker) allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Open:
		if time.Since(b.openedAt) < b.openFor {
			return false
		}
		b.transition(ctx, HalfOpen)
		b.probing = true
		return true
	case HalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return true
	}
}

func (b *Breaker) release() {
	b.mu.Lock()
	b.probing = false
	b.mu.Unlock()
}

func (b *Breaker) report(ctx context.Context, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == HalfOpen {
		b.probing = false
		if success {
			b.transition(ctx, Closed)
		} else {
			b.transition(ctx, Open)
		}
		return
	}
	if b.state == Open {
		return
	}

	if success {
		b.successes++
	} else {
		b.failures++
	}
	total := b.failures + b.successes
	if total < b.minRequests {
		return
	}
	if float64(b.failures)/float64(total) >= b.failureRatio {
		b.transition(ctx, Open)
	} else if total > b.minRequests*2 {
		// decay so old outcomes weigh less
		b.successes = (b.successes + 1) / 2
		b.failures = (b.failures + 1) / 2
	}
}

func (b *Breaker) transition(ctx context.Context, next State) {
	prev := b.state
	if prev == next {
		return
	}
	b.state = next
	b.failures, b.successes = 0, 0
	switch next {
	case Open:
		b.openedAt = time.Now()
		breakerOpened.WithLabelValues(b.target).Inc()
	case Closed:
		b.openedAt = time.Time{}
	}
	breakerTransitions.WithLabelValues(b.target, prev.String(), next.String()).Inc()
	b.recordState()

	evt := b.logger.Info().Str("target", b.target).Str("from_state", prev.String()).Str("to_state", next.String())
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		evt = evt.Str("trace_id", sc.TraceID().String())
	}
	evt.Msg("breaker_transition")
}

func (b *Breaker) recordState() {
	breakerState.WithLabelValues(b.target).Set(float64(b.state))
}
