package timing

import (
	"log/slog"
	"time"
)

// driftCheckPulses is how often the adaptive limiter measures drift.
const driftCheckPulses = 240

// AdaptiveLimiter uses precise timing with drift compensation.
// Combines sleep for efficiency with busy-waiting for accuracy.
type AdaptiveLimiter struct {
	period        time.Duration
	nextPulseTime time.Time
	start         time.Time
	pulses        int64
}

func NewAdaptiveLimiter(period time.Duration) *AdaptiveLimiter {
	now := time.Now()
	return &AdaptiveLimiter{
		period:        period,
		nextPulseTime: now,
		start:         now,
	}
}

func (a *AdaptiveLimiter) WaitForNextPulse() {
	now := time.Now()
	sleepTime := a.nextPulseTime.Sub(now)

	if sleepTime > 0 {
		if sleepTime > 2*time.Millisecond {
			time.Sleep(sleepTime - time.Millisecond)
		}
		for time.Now().Before(a.nextPulseTime) {
			// busy-wait the last stretch, higher accuracy.
		}
	} else if sleepTime < -5*a.period {
		// too far behind, drop the backlog
		a.nextPulseTime = now
	}

	a.nextPulseTime = a.nextPulseTime.Add(a.period)
	a.pulses++

	if a.pulses%driftCheckPulses == 0 {
		drift := time.Since(a.nextPulseTime)
		if drift.Abs() > 10*time.Millisecond {
			a.nextPulseTime = a.nextPulseTime.Add(drift / 10)
			slog.Debug("timer pulse drift correction",
				"drift_ms", drift.Milliseconds(),
				"pulses_per_sec", float64(a.pulses)/time.Since(a.start).Seconds())
		}
	}
}

func (a *AdaptiveLimiter) Reset() {
	a.nextPulseTime = time.Now()
	a.start = a.nextPulseTime
	a.pulses = 0
}
