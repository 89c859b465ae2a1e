package control

import "time"

// Sleeper rate-limits the control loop to roughly one iteration per period,
// regardless of how long the iteration's own work took. Ported from
// original_source/taskmasterd/src/sleeper.rs's elapsed-then-sleep-remainder
// pattern.
type Sleeper struct {
	period time.Duration
	last   time.Time
}

// NewSleeper returns a Sleeper with its clock already started.
func NewSleeper(period time.Duration) *Sleeper {
	return &Sleeper{period: period, last: time.Now()}
}

// Sleep blocks for whatever remains of the period since the last Sleep
// call returned, or returns immediately if the loop body already overran
// it.
func (s *Sleeper) Sleep() {
	now := time.Now()
	elapsed := now.Sub(s.last)
	if elapsed < s.period {
		time.Sleep(s.period - elapsed)
	}
	s.last = time.Now()
}
