package filament

import "time"

// Scheduler is the "run after the current turn" primitive the task queue
// uses to arm a flush. It is the sole seam between the runtime and its host
// environment: a host supplies whatever mechanism it has for running a
// callback after the current synchronous call stack unwinds.
//
// Implementations must deliver the flush callback on the goroutine that owns
// the Runtime. TimerScheduler is intended for hosts that serialize access
// externally; everything else should prefer the host-pumped ManualScheduler.
type Scheduler interface {
	// Schedule arranges for flush to run after the current unit of work.
	// The task queue calls it at most once per armed flush.
	Schedule(flush func())
}

// SchedulerFunc adapts a function to the Scheduler interface.
type SchedulerFunc func(flush func())

// Schedule implements Scheduler.
func (f SchedulerFunc) Schedule(flush func()) { f(flush) }

// ManualScheduler is a host-pumped scheduler: armed flushes accumulate until
// the host calls Run. It is the default for a new Runtime, and the natural
// choice for tests and for hosts with their own event loop that can call
// Runtime.Flush at turn boundaries.
type ManualScheduler struct {
	pending []func()
}

// NewManualScheduler creates an empty ManualScheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// Schedule implements Scheduler.
func (m *ManualScheduler) Schedule(flush func()) {
	m.pending = append(m.pending, flush)
}

// HasPending reports whether any armed flush is waiting to run.
func (m *ManualScheduler) HasPending() bool {
	return len(m.pending) > 0
}

// Run executes every armed flush, including any that become armed while
// running (a flushed task may schedule more work, arming a new flush).
func (m *ManualScheduler) Run() {
	for len(m.pending) > 0 {
		fns := m.pending
		m.pending = nil
		for _, fn := range fns {
			fn()
		}
	}
}

// TimerScheduler arms flushes with time.AfterFunc. The callback fires on a
// timer goroutine, so this is only suitable for hosts that serialize all
// runtime access externally (for example by posting the flush back onto
// their own loop).
type TimerScheduler struct {
	// Delay before the flush runs. Zero schedules as soon as possible.
	Delay time.Duration
}

// Schedule implements Scheduler.
func (t TimerScheduler) Schedule(flush func()) {
	time.AfterFunc(t.Delay, flush)
}

// Clock is the timer seam used by rate limiting and throttling. The returned
// cancel function stops the timer if it has not fired yet; calling it after
// the timer fired is a no-op.
//
// As with Scheduler, implementations must deliver fn on the goroutine that
// owns the Runtime.
type Clock interface {
	AfterFunc(d time.Duration, fn func()) (cancel func())
}

// systemClock is the default Clock, backed by time.AfterFunc.
type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}
