package filament

import "time"

// manualClock is a deterministic Clock for tests: timers fire, in deadline
// order, when advance moves the clock past them.
type manualClock struct {
	now    time.Duration
	timers []*manualTimer
	nextID int
}

type manualTimer struct {
	id       int
	deadline time.Duration
	fn       func()
	stopped  bool
}

func newManualClock() *manualClock {
	return &manualClock{}
}

func (c *manualClock) AfterFunc(d time.Duration, fn func()) func() {
	c.nextID++
	t := &manualTimer{id: c.nextID, deadline: c.now + d, fn: fn}
	c.timers = append(c.timers, t)
	return func() { t.stopped = true }
}

func (c *manualClock) advance(d time.Duration) {
	c.now += d
	for {
		var due *manualTimer
		for _, t := range c.timers {
			if t.stopped || t.deadline > c.now {
				continue
			}
			if due == nil || t.deadline < due.deadline || (t.deadline == due.deadline && t.id < due.id) {
				due = t
			}
		}
		if due == nil {
			return
		}
		due.stopped = true
		due.fn()
	}
}

// pendingTimers reports how many armed timers have not fired.
func (c *manualClock) pendingTimers() int {
	n := 0
	for _, t := range c.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}
