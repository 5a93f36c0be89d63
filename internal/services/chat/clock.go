package chat

import "time"

// Clock is the sleep seam for the run poller, so tests can simulate many
// ticks without wall-clock waiting
type Clock interface {
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Sleep(d time.Duration) {
	time.Sleep(d)
}
