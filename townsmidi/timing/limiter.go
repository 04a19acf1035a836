// Package timing paces the driver's timer pulses in real time.
package timing

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownLimiter is returned by NewLimiter for an unknown kind.
var ErrUnknownLimiter = errors.New("timing: unknown limiter")

// Limiter kinds accepted by NewLimiter.
const (
	KindAdaptive = "adaptive"
	KindTicker   = "ticker"
)

// Limiter spaces out timer pulses.
type Limiter interface {
	// WaitForNextPulse blocks until the next pulse is due.
	// Returns immediately if timing is behind schedule.
	WaitForNextPulse()

	// Reset resets the timing state, useful after pauses.
	Reset()
}

// NewNoOpLimiter returns a limiter that doesn't wait (for offline rendering).
func NewNoOpLimiter() Limiter {
	return &noOpLimiter{}
}

type noOpLimiter struct{}

func (n *noOpLimiter) WaitForNextPulse() {}
func (n *noOpLimiter) Reset()            {}

// PulsePeriod converts a driver base tempo in microseconds to a pulse period.
func PulsePeriod(baseTempo uint32) time.Duration {
	return time.Duration(baseTempo) * time.Microsecond
}

// PulsesPerSecond is the pulse rate for a base tempo.
func PulsesPerSecond(baseTempo uint32) float64 {
	if baseTempo == 0 {
		return 0
	}
	return float64(time.Second) / float64(PulsePeriod(baseTempo))
}

// NewLimiter builds a real time limiter of the given kind for period.
func NewLimiter(kind string, period time.Duration) (Limiter, error) {
	switch kind {
	case KindAdaptive, "":
		return NewAdaptiveLimiter(period), nil
	case KindTicker:
		return NewTickerLimiter(period), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownLimiter, kind)
	}
}
