package filament

import "time"

// computedLifecycle tracks which of the three coarse states a computed is in.
// Sleeping applies only to pure computeds with no change subscribers; a
// sleeping computed holds no live subscriptions to its dependencies.
type computedLifecycle int

const (
	computedAwake computedLifecycle = iota
	computedSleeping
	computedDisposed
)

// dependencyRecord tracks one dependency of a computed. A live record holds
// the subscription(s) to the target; a sleeping computed keeps placeholder
// records (nil dispose) carrying just the target, order and last-seen
// version so it can re-subscribe in the original order on wake.
type dependencyRecord struct {
	target  *Subscribable
	dispose func()
	order   int
	version uint64
}

// Computed is a derived reactive value. Its read function runs inside a
// tracking frame; the reads it performs become the computed's dependencies
// for the next round, and subscriptions to dependencies that were not read
// again are released.
//
// A computed is dirty when it knows a notification is coming, and stale when
// it knows its value is out of date. Pure computeds sleep while nobody
// subscribes to their changes: no live subscriptions, re-evaluation on
// demand only when a dependency's version moved.
type Computed[T any] struct {
	base  Subscribable
	read  func() T
	write func(T)
	value T

	lifecycle  computedLifecycle
	dirty      bool
	stale      bool
	evaluating bool

	pure      bool
	deferEval bool

	// relevant, when set, is checked before each evaluation; a false result
	// disposes the computed unless the suppressDisposal latch is armed.
	relevant         func() bool
	suppressDisposal bool
	// anchored means disposal is managed externally; anchored computeds use a
	// single change subscription even to deferred dependencies.
	anchored bool

	deps     map[uint64]*dependencyRecord
	depCount int

	// evalCancel stops a pending throttled re-evaluation.
	evalCancel func()
}

// ComputedOption configures a Computed at construction.
type ComputedOption[T any] func(*Computed[T])

// WithWrite makes the computed writable: Set invokes write instead of
// panicking.
func WithWrite[T any](write func(T)) ComputedOption[T] {
	return func(c *Computed[T]) {
		c.write = write
	}
}

// Pure marks the computed as side-effect free, enabling the sleeping
// optimization: while no change subscribers exist the computed holds no
// subscriptions to its dependencies and re-evaluates only on demand.
// Pure implies deferred first evaluation.
func Pure[T any]() ComputedOption[T] {
	return func(c *Computed[T]) {
		c.pure = true
	}
}

// DeferEvaluation postpones the first evaluation until the value is first
// read or subscribed to.
func DeferEvaluation[T any]() ComputedOption[T] {
	return func(c *Computed[T]) {
		c.deferEval = true
	}
}

// RelevantWhen installs a relevance predicate checked before every
// evaluation. When it returns false the computed disposes itself instead of
// evaluating. Combine with DeferDisposal to survive a false period at
// construction time.
func RelevantWhen[T any](pred func() bool) ComputedOption[T] {
	return func(c *Computed[T]) {
		c.relevant = pred
	}
}

// DeferDisposal arms a latch that suppresses relevance-triggered disposal
// until the predicate has returned true at least once, and marks the
// computed's disposal as externally managed.
func DeferDisposal[T any]() ComputedOption[T] {
	return func(c *Computed[T]) {
		c.anchored = true
		c.suppressDisposal = true
	}
}

// NewComputed creates a computed from read. Unless Pure or DeferEvaluation
// is given, the first evaluation happens immediately. A nil read panics with
// ErrNilCallback.
func NewComputed[T any](rt *Runtime, read func() T, opts ...ComputedOption[T]) *Computed[T] {
	if read == nil {
		panic(ErrNilCallback)
	}
	c := &Computed[T]{read: read, dirty: true, stale: true}
	c.base.init(rt)
	c.base.equality = primitiveEquals
	c.base.selfRef = c
	c.base.reevaluate = c.evalIfChanged
	c.base.beforeSubscriptionAdd = c.onBeforeSubscriptionAdd
	c.base.afterSubscriptionRemove = c.onAfterSubscriptionRemove
	for _, opt := range opts {
		opt(c)
	}
	if c.pure {
		c.lifecycle = computedSleeping
		c.base.versionFunc = c.currentVersion
	} else if !c.deferEval {
		c.evaluate(false)
	}
	return c
}

// NewPureComputed is shorthand for NewComputed with the Pure option.
func NewPureComputed[T any](rt *Runtime, read func() T, opts ...ComputedOption[T]) *Computed[T] {
	return NewComputed(rt, read, append([]ComputedOption[T]{Pure[T]()}, opts...)...)
}

// Get returns the current value, re-evaluating first if the computed knows
// it is out of date, and registers a dependency with the active tracking
// frame.
func (c *Computed[T]) Get() T {
	if c.lifecycle != computedDisposed {
		c.base.rt.registerDependency(&c.base)
	}
	if c.dirty || (c.lifecycle == computedSleeping && c.haveDependenciesChanged()) {
		c.evaluate(false)
	}
	return c.value
}

// Peek returns the current value without registering a dependency. It still
// evaluates when there is no value yet (deferred first evaluation) or when a
// sleeping computed's dependencies moved.
func (c *Computed[T]) Peek() T {
	if (c.dirty && c.depCount == 0) || (c.lifecycle == computedSleeping && c.haveDependenciesChanged()) {
		c.evaluate(false)
	}
	return c.value
}

// Set invokes the write function. A computed constructed without WithWrite
// panics with ErrWriteToReadOnlyComputed.
func (c *Computed[T]) Set(value T) *Computed[T] {
	if c.write == nil {
		panic(ErrWriteToReadOnlyComputed)
	}
	c.write(value)
	return c
}

// evalIfChanged brings the value up to date if a real change is pending and
// returns it. Installed as the limiter's lazy re-evaluation hook; also used
// when a dependent pulls the value out of a coalesced batch. At delivery time
// no notification is pending anymore, so the evaluation's change notification
// re-enters the limiter and marks the batch as a real update.
func (c *Computed[T]) evalIfChanged() any {
	if c.lifecycle != computedSleeping {
		if c.stale {
			c.evaluate(!c.base.notificationPending())
		} else {
			c.dirty = false
		}
	}
	return c.value
}

// evaluate runs one evaluation round. The re-entrancy guard makes a
// recursive evaluation a silent no-op. Returns whether the value changed.
func (c *Computed[T]) evaluate(notifyChange bool) bool {
	if c.evaluating || c.lifecycle == computedDisposed {
		return false
	}
	if c.relevant != nil && !c.relevant() {
		if !c.suppressDisposal {
			c.Dispose()
			return false
		}
	} else {
		c.suppressDisposal = false
	}
	c.evaluating = true
	start := time.Now()
	defer func() {
		c.evaluating = false
		c.base.rt.recordEvaluation(time.Since(start))
	}()
	return c.evaluateWithDependencyDetection(notifyChange)
}

func (c *Computed[T]) evaluateWithDependencyDetection(notifyChange bool) bool {
	rt := c.base.rt
	sleeping := c.lifecycle == computedSleeping

	// Previous dependencies become disposal candidates; any that the read
	// function touches again keep their subscription.
	candidates := c.deps
	candidateCount := c.depCount
	isInitial := !c.pure && c.depCount == 0

	c.deps = make(map[uint64]*dependencyRecord)
	c.depCount = 0

	frame := &trackingFrame{callback: func(target *Subscribable, id uint64) {
		if c.lifecycle == computedDisposed {
			return
		}
		if rec, ok := candidates[id]; ok && candidateCount > 0 {
			c.addDependency(id, target, rec)
			delete(candidates, id)
			candidateCount--
		} else if _, tracked := c.deps[id]; !tracked {
			if c.lifecycle == computedSleeping {
				c.addDependency(id, target, &dependencyRecord{target: target})
			} else {
				c.addDependency(id, target, c.subscribeToDependency(target))
			}
		}
		// A mid-batch read of a coalesced target observes its intermediate
		// value; force the pending notification so we do not end up stale.
		if target.notificationPending() {
			target.forceNextNotification()
		}
	}}

	var newValue T
	func() {
		defer func() {
			rt.endFrame()
			if candidateCount > 0 && !sleeping {
				for _, rec := range candidates {
					if rec.dispose != nil {
						rec.dispose()
					}
				}
			}
			c.stale = false
			c.dirty = false
		}()
		rt.beginFrame(frame)
		newValue = c.read()
	}()

	var changed bool
	if c.depCount == 0 {
		// A read that touches nothing can never change again.
		if c.lifecycle != computedDisposed {
			c.Dispose()
		}
		changed = true
	} else {
		changed = c.base.isDifferent(c.value, newValue)
	}

	if changed {
		if !sleeping {
			c.base.NotifySubscribers(c.value, EventBeforeChange)
		} else {
			c.base.updateVersion()
		}
		c.value = newValue
		if !sleeping && notifyChange {
			c.base.NotifySubscribers(c.value, EventChange)
		}
	}
	if isInitial {
		c.base.NotifySubscribers(c.value, EventAwake)
	}
	return changed
}

func (c *Computed[T]) addDependency(id uint64, target *Subscribable, rec *dependencyRecord) {
	if c.pure && target == &c.base {
		panic(ErrPureComputedSelfReference)
	}
	c.deps[id] = rec
	rec.order = c.depCount
	c.depCount++
	rec.version = target.Version()
}

// subscribeToDependency attaches to target. Deferred targets get a dirty
// subscription (lazy staleness marking) alongside the change subscription,
// unless this computed's disposal is externally managed.
func (c *Computed[T]) subscribeToDependency(target *Subscribable) *dependencyRecord {
	rec := &dependencyRecord{target: target}
	if target.deferUpdates && !c.anchored {
		dirtySub := target.On(EventDirty, func(any) { c.markDirty() })
		changeSub := target.On(EventChange, func(any) { c.respondToChange() })
		rec.dispose = func() {
			dirtySub.Dispose()
			changeSub.Dispose()
		}
	} else {
		sub := target.On(EventChange, func(any) { c.evaluatePossiblyAsync() })
		rec.dispose = sub.Dispose
	}
	return rec
}

// markDirty handles a dependency's dirty event. Only meaningful when this
// computed itself coalesces notifications; otherwise the eventual change
// event drives the update.
func (c *Computed[T]) markDirty() {
	if c.base.limiter != nil && !c.evaluating {
		c.evalDelayed(false)
	}
}

// respondToChange handles a dependency's change event for a computed with
// dual dirty+change subscriptions.
func (c *Computed[T]) respondToChange() {
	if !c.base.notificationPending() {
		c.evaluatePossiblyAsync()
	} else if c.dirty {
		c.stale = true
	}
}

// evaluatePossiblyAsync is the change reaction: throttled computeds restart
// their evaluation timer, coalescing computeds route through their limiter,
// everything else evaluates synchronously.
func (c *Computed[T]) evaluatePossiblyAsync() {
	if c.base.throttleEvaluation > 0 {
		if c.evalCancel != nil {
			c.evalCancel()
		}
		c.evalCancel = c.base.rt.clock.AfterFunc(c.base.throttleEvaluation, func() {
			c.evalCancel = nil
			c.evaluate(true)
		})
		return
	}
	if c.base.limiter != nil {
		c.evalDelayed(true)
		return
	}
	c.evaluate(true)
}

// evalDelayed records a pending update in the limiter, passing the computed
// itself as the pending value so the actual evaluation happens lazily at
// delivery time.
func (c *Computed[T]) evalDelayed(isChange bool) {
	l := c.base.limiter
	l.limitBeforeChange(c.value)
	c.dirty = true
	if isChange {
		c.stale = true
	}
	l.limitChange(c, !isChange)
}

// haveDependenciesChanged reports whether any tracked dependency moved past
// the version this computed last consumed, or holds a pending coalesced
// notification this computed would coalesce too.
func (c *Computed[T]) haveDependenciesChanged() bool {
	for _, rec := range c.deps {
		if c.base.limiter != nil && rec.target.notificationPending() {
			return true
		}
		if rec.target.HasChanged(rec.version) {
			return true
		}
	}
	return false
}

// onBeforeSubscriptionAdd wakes a sleeping pure computed when its first
// change subscriber arrives, and forces the first evaluation of a
// deferred-evaluation computed on any change/beforeChange subscription.
func (c *Computed[T]) onBeforeSubscriptionAdd(event string) {
	if c.pure {
		if c.lifecycle == computedSleeping && event == EventChange {
			c.wake()
		}
		return
	}
	if c.deferEval && (event == EventChange || event == EventBeforeChange) {
		c.Peek()
	}
}

// wake transitions a sleeping pure computed to the listening state. If the
// value may be out of date the dependency set is rebuilt from scratch;
// otherwise the placeholder records are re-subscribed in their original
// relative order.
func (c *Computed[T]) wake() {
	c.lifecycle = computedAwake
	if c.stale || c.haveDependenciesChanged() {
		c.deps = nil
		c.depCount = 0
		if c.evaluate(false) {
			c.base.updateVersion()
		}
	} else {
		ordered := make([]uint64, c.depCount)
		for id, rec := range c.deps {
			ordered[rec.order] = id
		}
		for order, id := range ordered {
			placeholder := c.deps[id]
			fresh := c.subscribeToDependency(placeholder.target)
			fresh.order = order
			fresh.version = placeholder.version
			c.deps[id] = fresh
		}
		// Re-subscribing can move dependencies after the check above: waking a
		// dependency evaluates it lazily, and its awake listeners may write to
		// targets not re-subscribed yet.
		if c.dirty || c.haveDependenciesChanged() {
			if c.evaluate(false) {
				c.base.updateVersion()
			}
		}
	}
	if c.lifecycle != computedDisposed {
		c.base.NotifySubscribers(c.value, EventAwake)
	}
}

// onAfterSubscriptionRemove puts a pure computed to sleep when its last
// change subscriber leaves: live subscriptions are released and replaced
// with placeholders preserving order and last-seen versions.
func (c *Computed[T]) onAfterSubscriptionRemove(event string) {
	if !c.pure || c.lifecycle == computedDisposed || event != EventChange {
		return
	}
	if c.base.HasSubscribersFor(EventChange) {
		return
	}
	for id, rec := range c.deps {
		if rec.dispose != nil {
			c.deps[id] = &dependencyRecord{target: rec.target, order: rec.order, version: rec.version}
			rec.dispose()
		}
	}
	c.lifecycle = computedSleeping
	c.base.NotifySubscribers(nil, EventAsleep)
}

// currentVersion is the version reported while this computed may be
// sleeping. A sleeping computed is not updated automatically, so a pending
// re-evaluation is folded in before the version is read.
func (c *Computed[T]) currentVersion() uint64 {
	if c.lifecycle == computedSleeping && (c.dirty || c.haveDependenciesChanged()) {
		c.evaluate(false)
	}
	return c.base.version
}

// Dispose permanently deactivates the computed: dependency subscriptions are
// released and it will never re-evaluate. Disposal is idempotent. Existing
// subscribers to the computed itself are not detached; they simply never
// fire again.
func (c *Computed[T]) Dispose() {
	if c.lifecycle == computedDisposed {
		return
	}
	if c.lifecycle != computedSleeping {
		for _, rec := range c.deps {
			if rec.dispose != nil {
				rec.dispose()
			}
		}
	}
	if c.evalCancel != nil {
		c.evalCancel()
		c.evalCancel = nil
	}
	c.deps = nil
	c.depCount = 0
	c.lifecycle = computedDisposed
	c.dirty = false
	c.stale = false
	c.relevant = nil
}

// IsDisposed reports whether the computed has been disposed.
func (c *Computed[T]) IsDisposed() bool {
	return c.lifecycle == computedDisposed
}

// IsActive reports whether the computed can still change: it has
// dependencies, or has not evaluated yet.
func (c *Computed[T]) IsActive() bool {
	return c.lifecycle != computedDisposed && (c.dirty || c.depCount > 0)
}

// DependencyCount returns the number of dependencies tracked by the last
// evaluation.
func (c *Computed[T]) DependencyCount() int {
	return c.depCount
}

// Subscribe registers fn for change notifications with the typed new value.
func (c *Computed[T]) Subscribe(fn func(T)) *Subscription {
	return c.On(EventChange, fn)
}

// On registers fn for the named event.
func (c *Computed[T]) On(event string, fn func(T)) *Subscription {
	if fn == nil {
		panic(ErrNilCallback)
	}
	return c.base.On(event, func(v any) {
		fn(coerce[T](v))
	})
}

// WithEquals replaces the change predicate with a typed one. Passing nil
// makes every evaluation that produces a value notify.
func (c *Computed[T]) WithEquals(equals func(old, new T) bool) *Computed[T] {
	if equals == nil {
		c.base.equality = nil
		return c
	}
	c.base.equality = func(old, new any) bool {
		return equals(coerce[T](old), coerce[T](new))
	}
	return c
}

// Extend applies extenders in argument order.
func (c *Computed[T]) Extend(exts ...Extender) *Computed[T] {
	for _, ext := range exts {
		ext.applyExtender(&c.base)
	}
	return c
}

// Throttle makes re-evaluation debounced: dependency changes restart a timer
// of length d, and the computed re-evaluates once it expires. Returns the
// receiver.
func (c *Computed[T]) Throttle(d time.Duration) *Computed[T] {
	c.base.throttleEvaluation = d
	return c
}

// Base exposes the underlying subscribable for untyped consumers.
func (c *Computed[T]) Base() *Subscribable {
	return &c.base
}

// Version returns the computed's change counter, re-evaluating a sleeping
// pure computed first when its dependencies moved.
func (c *Computed[T]) Version() uint64 {
	return c.base.Version()
}
