package mqclient

import "time"

// Clock supplies the current time for keep-alive and retransmit
// scheduling (spec.md §6). Tests substitute a fake implementation so
// timer behavior can be exercised without real sleeps; production
// code uses realClock.
//
// Resolves open question §9.6: every consumer of "now" in this
// package goes through Clock.Now, which returns time.Time — there is
// no separate wall-clock/monotonic split as there was in the source.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
