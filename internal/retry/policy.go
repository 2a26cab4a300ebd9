package retry

import (
	"context"
	"fmt"
	"time"

	"git.home.luguber.info/inful/plugsmith/internal/foundation/normalization"
)

// Mode enumerates supported backoff strategies.
type Mode string

const (
	ModeFixed       Mode = "fixed"
	ModeLinear      Mode = "linear"
	ModeExponential Mode = "exponential"
)

var modes = normalization.NewNormalizer(map[string]Mode{
	"fixed":       ModeFixed,
	"constant":    ModeFixed,
	"linear":      ModeLinear,
	"exponential": ModeExponential,
	"exp":         ModeExponential,
}, "")

// ParseMode maps user input onto a Mode; unknown input yields "".
func ParseMode(raw string) Mode {
	return modes.Normalize(raw)
}

// Policy is the backoff used between registry write attempts.
type Policy struct {
	Mode       Mode
	Initial    time.Duration
	Max        time.Duration // delays never exceed this
	MaxRetries int           // attempts after the first failure
}

// DefaultPolicy returns the registry write policy (linear, 50ms initial, 1s cap, 2 retries).
func DefaultPolicy() Policy {
	return Policy{Mode: ModeLinear, Initial: 50 * time.Millisecond, Max: time.Second, MaxRetries: 2}
}

// NewPolicy fills zero or unknown fields from DefaultPolicy. A negative
// maxRetries keeps the default count.
func NewPolicy(mode Mode, initial, maxDuration time.Duration, maxRetries int) Policy {
	p := DefaultPolicy()
	if maxRetries >= 0 {
		p.MaxRetries = maxRetries
	}
	if initial > 0 {
		p.Initial = initial
	}
	if maxDuration > 0 {
		p.Max = maxDuration
	}
	if m := ParseMode(string(mode)); m != "" {
		p.Mode = m
	}
	if p.Initial > p.Max {
		p.Initial = p.Max
	}
	return p
}

// Delay is the wait before retry n (1-based).
func (p Policy) Delay(retryCount int) time.Duration {
	if retryCount <= 0 {
		return 0
	}
	var d time.Duration
	switch p.Mode {
	case ModeFixed:
		return p.Initial
	case ModeExponential:
		shift := retryCount - 1
		if shift >= 62 || p.Initial > p.Max>>shift {
			return p.Max
		}
		d = p.Initial << shift
	default: // linear
		d = time.Duration(retryCount) * p.Initial
	}
	return min(d, p.Max)
}

func (p Policy) Validate() error {
	switch {
	case p.Initial <= 0:
		return fmt.Errorf("retry initial delay must be positive, got %s", p.Initial)
	case p.Max <= 0:
		return fmt.Errorf("retry max delay must be positive, got %s", p.Max)
	case p.MaxRetries < 0:
		return fmt.Errorf("retry count must not be negative, got %d", p.MaxRetries)
	}
	return nil
}

// Do runs fn until it succeeds, the retries are exhausted or ctx is done.
// onRetry, when set, is called before every retry with the 1-based retry
// number and the error that triggered it. The last error is returned.
func (p Policy) Do(ctx context.Context, fn func() error, onRetry func(n int, err error)) error {
	err := fn()
	for n := 1; err != nil && n <= p.MaxRetries; n++ {
		if onRetry != nil {
			onRetry(n, err)
		}
		timer := time.NewTimer(p.Delay(n))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
		err = fn()
	}
	return err
}
