package filament

import "time"

// limiter intercepts change and beforeChange notifications on a subscribable
// and coalesces them: any number of changes between deliveries collapses into
// at most one beforeChange (the first) and one change (the last value) per
// batch. The finish trampoline decides when a batch is delivered; extenders
// supply it (next task, throttle window, debounce window).
type limiter struct {
	s *Subscribable

	// finish re-arms or confirms the scheduled delivery. Installed by the
	// extender, invoked on every intercepted change.
	finish func()

	previousValue any
	pendingValue  any

	// pending is true from the first intercepted change until delivery.
	pending bool
	// didUpdate distinguishes real changes from dirty-only batches.
	didUpdate bool
	// notifyNext forces delivery even if the value returned to what the last
	// notification reported. Set when a dependent reads the target mid-batch.
	notifyNext bool
	// ignoreBeforeChange suppresses the second and later beforeChange of a
	// batch.
	ignoreBeforeChange bool
}

// installLimit installs or replaces the delivery trampoline. limitFn receives
// the deliver function and returns the finish trampoline that schedules it.
// Reapplying an extender replaces the trampoline but keeps batch state.
func (s *Subscribable) installLimit(limitFn func(deliver func()) func()) {
	if s.limiter == nil {
		s.limiter = &limiter{s: s}
	}
	s.limiter.finish = limitFn(s.limiter.deliver)
}

// deliver ends the current batch: resolve the pending value, decide whether
// the coalesced change is worth announcing, and notify the snapshot taken at
// dirty time.
func (l *limiter) deliver() {
	s := l.s
	l.pending = false
	l.ignoreBeforeChange = false
	if s.selfRef != nil && l.pendingValue == s.selfRef {
		// A computed handed a reference to itself; resolve it now so the
		// evaluation happens at delivery time, not at dirty time.
		if s.reevaluate != nil {
			l.pendingValue = s.reevaluate()
		}
	}
	shouldNotify := l.notifyNext || (l.didUpdate && s.isDifferent(l.previousValue, l.pendingValue))
	l.didUpdate = false
	l.notifyNext = false
	if shouldNotify {
		l.previousValue = l.pendingValue
		s.notifyDirect(l.pendingValue, EventChange)
	} else {
		s.changeSnapshot = nil
	}
}

// limitChange records a change (or, for computeds, a dirty marking when
// isDirty is true) and pokes the trampoline. The change subscribers are
// snapshotted here so the eventual delivery goes to the set that existed when
// the batch started.
func (l *limiter) limitChange(value any, isDirty bool) {
	s := l.s
	if !isDirty || !l.pending {
		l.didUpdate = !isDirty
	}
	list := s.subscriptions[EventChange]
	snapshot := make([]*Subscription, len(list))
	copy(snapshot, list)
	s.changeSnapshot = snapshot
	l.pending = true
	l.ignoreBeforeChange = true
	l.pendingValue = value
	l.finish()
}

// limitBeforeChange forwards the first beforeChange of a batch and records
// the outgoing value the delivery decision compares against.
func (l *limiter) limitBeforeChange(value any) {
	if !l.ignoreBeforeChange {
		l.previousValue = value
		l.s.notifyDirect(value, EventBeforeChange)
	}
}

// intercept routes a change or beforeChange notification into the batch.
func (l *limiter) intercept(value any, event string) {
	switch event {
	case EventChange:
		l.limitChange(value, false)
	case EventBeforeChange:
		l.limitBeforeChange(value)
	}
}

// Extender is a behavior modifier applied through Extend. Extenders are
// applied in argument order; a later extender may supersede an earlier one.
type Extender interface {
	applyExtender(s *Subscribable)
}

type extenderFunc func(*Subscribable)

func (f extenderFunc) applyExtender(s *Subscribable) { f(s) }

// Deferred makes notifications asynchronous: changes coalesce until the next
// task queue flush, so a burst of writes within one turn produces a single
// change notification carrying the final value. Dependent computeds of a
// deferred target track its dirty event and re-evaluate lazily.
//
// Applying Deferred to an already-deferred target is a no-op.
func Deferred() Extender {
	return extenderFunc(func(s *Subscribable) {
		if s.deferUpdates {
			return
		}
		s.deferUpdates = true
		s.installLimit(func(deliver func()) func() {
			var handle TaskHandle
			ignoreUpdates := false
			return func() {
				if ignoreUpdates {
					return
				}
				s.rt.tasks.Cancel(handle)
				handle = s.rt.tasks.Schedule(deliver)
				// Announce dirtiness synchronously; guard against a dirty
				// subscriber writing back into this target.
				ignoreUpdates = true
				defer func() { ignoreUpdates = false }()
				s.notifyDirect(nil, EventDirty)
			}
		})
	})
}

// RateLimitMethod selects how RateLimit times its deliveries.
type RateLimitMethod int

const (
	// NotifyAtFixedRate delivers at most once per timeout window, timed from
	// the first change of the window. The default.
	NotifyAtFixedRate RateLimitMethod = iota
	// NotifyWhenChangesStop delivers once timeout has elapsed with no further
	// change (trailing debounce).
	NotifyWhenChangesStop
)

// RateLimitOption configures RateLimit.
type RateLimitOption func(*rateLimitConfig)

type rateLimitConfig struct {
	method RateLimitMethod
}

// WithMethod selects the rate limiting method.
func WithMethod(m RateLimitMethod) RateLimitOption {
	return func(cfg *rateLimitConfig) {
		cfg.method = m
	}
}

// RateLimit coalesces change notifications over a time window using the
// runtime's Clock. It supersedes Deferred on the same target.
func RateLimit(timeout time.Duration, opts ...RateLimitOption) Extender {
	cfg := rateLimitConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return extenderFunc(func(s *Subscribable) {
		s.deferUpdates = false
		s.installLimit(func(deliver func()) func() {
			if cfg.method == NotifyWhenChangesStop {
				return debounce(s.rt.clock, deliver, timeout)
			}
			return throttle(s.rt.clock, deliver, timeout)
		})
	})
}

// throttle fires deliver once per window, timed from the window's first poke.
func throttle(clock Clock, deliver func(), timeout time.Duration) func() {
	var cancel func()
	return func() {
		if cancel == nil {
			cancel = clock.AfterFunc(timeout, func() {
				cancel = nil
				deliver()
			})
		}
	}
}

// debounce restarts the window on every poke and fires when it runs out.
func debounce(clock Clock, deliver func(), timeout time.Duration) func() {
	var cancel func()
	return func() {
		if cancel != nil {
			cancel()
		}
		cancel = clock.AfterFunc(timeout, func() {
			cancel = nil
			deliver()
		})
	}
}

// NotifyMode selects the change predicate Notify installs.
type NotifyMode int

const (
	// NotifyDefault restores the primitive-kinds predicate.
	NotifyDefault NotifyMode = iota
	// NotifyAlways removes change suppression: every write notifies, equal
	// values included.
	NotifyAlways
)

// Notify replaces the target's change predicate wholesale.
func Notify(mode NotifyMode) Extender {
	return extenderFunc(func(s *Subscribable) {
		if mode == NotifyAlways {
			s.equality = nil
		} else {
			s.equality = primitiveEquals
		}
	})
}
