package filament

import "time"

// Observable is a writable reactive value cell. Reads inside a tracking frame
// register a dependency; writes that pass the change predicate notify
// subscribers with beforeChange/change bracketing.
type Observable[T any] struct {
	base  Subscribable
	value T
}

// NewObservable creates an observable holding initial. The change predicate
// starts as the primitive-kinds default; see WithEquals.
func NewObservable[T any](rt *Runtime, initial T) *Observable[T] {
	o := &Observable[T]{value: initial}
	o.base.init(rt)
	o.base.equality = primitiveEquals
	o.base.selfRef = o
	return o
}

// Get returns the current value and registers a dependency with the active
// tracking frame, if any.
func (o *Observable[T]) Get() T {
	o.base.rt.registerDependency(&o.base)
	return o.value
}

// Peek returns the current value without registering a dependency.
func (o *Observable[T]) Peek() T {
	return o.value
}

// Set writes value. When the change predicate considers it different from the
// current value, subscribers are notified with the beforeChange/change pair;
// otherwise nothing fires. Returns the observable for chaining.
func (o *Observable[T]) Set(value T) *Observable[T] {
	if !o.base.isDifferent(o.value, value) {
		return o
	}
	o.ValueWillMutate()
	o.value = value
	o.ValueHasMutated()
	return o
}

// Update applies fn to the current value and writes the result. The read does
// not register a dependency.
func (o *Observable[T]) Update(fn func(T) T) *Observable[T] {
	return o.Set(fn(o.value))
}

// ValueWillMutate notifies beforeChange subscribers with the current value.
// Use it with ValueHasMutated to bracket in-place mutation of a composite
// value held by the observable.
func (o *Observable[T]) ValueWillMutate() {
	o.base.NotifySubscribers(o.value, EventBeforeChange)
}

// ValueHasMutated notifies change subscribers with the current value.
func (o *Observable[T]) ValueHasMutated() {
	o.base.NotifySubscribers(o.value, EventChange)
}

// Subscribe registers fn for change notifications with the typed new value.
func (o *Observable[T]) Subscribe(fn func(T)) *Subscription {
	return o.On(EventChange, fn)
}

// On registers fn for the named event. The value delivered for change and
// beforeChange is the observable's value at the corresponding moment.
func (o *Observable[T]) On(event string, fn func(T)) *Subscription {
	if fn == nil {
		panic(ErrNilCallback)
	}
	return o.base.On(event, func(v any) {
		fn(coerce[T](v))
	})
}

// WithEquals replaces the change predicate with a typed one. Passing nil
// makes every write notify.
func (o *Observable[T]) WithEquals(equals func(old, new T) bool) *Observable[T] {
	if equals == nil {
		o.base.equality = nil
		return o
	}
	o.base.equality = func(old, new any) bool {
		return equals(coerce[T](old), coerce[T](new))
	}
	return o
}

// Extend applies extenders in argument order. See Deferred, RateLimit and
// Notify.
func (o *Observable[T]) Extend(exts ...Extender) *Observable[T] {
	for _, ext := range exts {
		ext.applyExtender(&o.base)
	}
	return o
}

// Throttle returns a writable computed wrapping this observable whose writes
// are debounced: a write becomes visible on the underlying observable only
// after d elapses with no further writes. Reads pass through immediately.
func (o *Observable[T]) Throttle(d time.Duration) *Computed[T] {
	var cancel func()
	return NewComputed(o.base.rt, o.Get, WithWrite(func(value T) {
		if cancel != nil {
			cancel()
		}
		cancel = o.base.rt.clock.AfterFunc(d, func() {
			cancel = nil
			o.Set(value)
		})
	}))
}

// Base exposes the underlying subscribable for untyped consumers.
func (o *Observable[T]) Base() *Subscribable {
	return &o.base
}

// Version returns the observable's change counter.
func (o *Observable[T]) Version() uint64 {
	return o.base.Version()
}

// coerce recovers the typed value from an any-typed notification payload. A
// nil payload (possible for interface-typed T) yields the zero value.
func coerce[T any](v any) T {
	if v == nil {
		var zero T
		return zero
	}
	return v.(T)
}
