package filament

import (
	"fmt"
	"time"
)

// Event names understood by On and NotifySubscribers. The default event is
// EventChange.
const (
	// EventChange fires after a value change with the new value.
	EventChange = "change"
	// EventBeforeChange fires before a value change with the outgoing value.
	EventBeforeChange = "beforeChange"
	// EventDirty fires when a deferred target learns it will change, before
	// the coalesced change notification is delivered.
	EventDirty = "dirty"
	// EventAwake fires when a pure computed transitions to the listening
	// state, with its current value.
	EventAwake = "awake"
	// EventAsleep fires when a pure computed releases its dependency
	// subscriptions.
	EventAsleep = "asleep"
	// EventArrayChange fires on observable arrays with the structural change
	// records for the mutation.
	EventArrayChange = "arrayChange"
)

// EqualsFunc reports whether two values are equal for change-suppression
// purposes. A nil EqualsFunc means every write is treated as a change.
type EqualsFunc func(old, new any) bool

// Subscription is a registered callback for one event on one subscribable.
// Dispose detaches it; disposal is idempotent, and a subscription disposed
// mid-delivery is skipped for the remainder of that delivery.
type Subscription struct {
	callback  func(any)
	disposeFn func()
	disposed  bool
}

// Dispose detaches the subscription from its subscribable.
func (s *Subscription) Dispose() {
	if s.disposed {
		return
	}
	s.disposed = true
	if s.disposeFn != nil {
		s.disposeFn()
		s.disposeFn = nil
	}
}

// IsDisposed reports whether Dispose has been called.
func (s *Subscription) IsDisposed() bool {
	return s.disposed
}

// Subscribable is the pub/sub base shared by observables and computeds. It
// keeps per-event ordered subscription lists and a monotonic version counter
// that advances exactly once per change notification, whether or not anyone
// is subscribed.
//
// A Subscribable is confined to its Runtime's goroutine.
type Subscribable struct {
	rt    *Runtime
	id    uint64
	depID uint64

	subscriptions map[string][]*Subscription

	// changeSnapshot, when non-nil, pins the set of change subscribers a
	// limiter captured at dirty time; the coalesced notification goes to
	// exactly that set.
	changeSnapshot []*Subscription

	version  uint64
	equality EqualsFunc
	limiter  *limiter

	deferUpdates       bool
	throttleEvaluation time.Duration

	// selfRef lets a limiter recognize "the pending value is the target
	// itself" and call reevaluate lazily at delivery time. Computeds set both.
	selfRef    any
	reevaluate func() any

	// Lifecycle taps used by computeds for sleep/wake and deferred first
	// evaluation. Called with the event name being subscribed/unsubscribed.
	beforeSubscriptionAdd   func(event string)
	afterSubscriptionRemove func(event string)

	// versionFunc, when set, overrides Version(). Sleeping pure computeds use
	// it to fold a pending re-evaluation into the reported version.
	versionFunc func() uint64
}

// NewSubscribable creates a bare subscribable with no change predicate, so
// every NotifySubscribers call is delivered.
func NewSubscribable(rt *Runtime) *Subscribable {
	s := &Subscribable{}
	s.init(rt)
	return s
}

func (s *Subscribable) init(rt *Runtime) {
	s.rt = rt
	s.id = rt.assignPrimitiveID()
}

// ID returns the subscribable's diagnostic id, unique within its Runtime.
func (s *Subscribable) ID() uint64 {
	return s.id
}

// Runtime returns the Runtime this subscribable belongs to.
func (s *Subscribable) Runtime() *Runtime {
	return s.rt
}

// Subscribe registers fn for the change event and returns its subscription.
func (s *Subscribable) Subscribe(fn func(any)) *Subscription {
	return s.On(EventChange, fn)
}

// On registers fn for the named event. Subscribers for one event are notified
// in subscription order. Passing a nil fn panics with ErrNilCallback.
func (s *Subscribable) On(event string, fn func(any)) *Subscription {
	if fn == nil {
		panic(ErrNilCallback)
	}
	sub := &Subscription{callback: fn}
	sub.disposeFn = func() {
		s.removeSubscription(event, sub)
	}
	if s.beforeSubscriptionAdd != nil {
		s.beforeSubscriptionAdd(event)
	}
	if s.subscriptions == nil {
		s.subscriptions = make(map[string][]*Subscription)
	}
	s.subscriptions[event] = append(s.subscriptions[event], sub)
	return sub
}

func (s *Subscribable) removeSubscription(event string, sub *Subscription) {
	list := s.subscriptions[event]
	for i, candidate := range list {
		if candidate == sub {
			s.subscriptions[event] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if s.afterSubscriptionRemove != nil {
		s.afterSubscriptionRemove(event)
	}
}

// NotifySubscribers delivers value to every subscriber of event. An empty
// event means EventChange. Change and beforeChange notifications pass through
// an installed limiter; everything else is delivered immediately.
func (s *Subscribable) NotifySubscribers(value any, event string) {
	if event == "" {
		event = EventChange
	}
	if s.limiter != nil && (event == EventChange || event == EventBeforeChange) {
		s.limiter.intercept(value, event)
		return
	}
	s.notifyDirect(value, event)
}

// notifyDirect performs the actual delivery: snapshot the subscriber list,
// suppress tracking, and invoke each live callback. The version advances for
// every change notification even with zero subscribers.
func (s *Subscribable) notifyDirect(value any, event string) {
	var subs []*Subscription
	if event == EventChange {
		s.version++
		if s.changeSnapshot != nil {
			subs = s.changeSnapshot
			s.changeSnapshot = nil
		}
	}
	if subs == nil {
		list := s.subscriptions[event]
		if len(list) > 0 {
			subs = make([]*Subscription, len(list))
			copy(subs, list)
		}
	}
	s.rt.recordNotification(event, len(subs))
	if len(subs) == 0 {
		return
	}
	s.rt.beginFrame(nil)
	defer s.rt.endFrame()
	for _, sub := range subs {
		if sub.disposed {
			continue
		}
		s.invokeSubscriber(sub, value)
	}
}

// invokeSubscriber runs one callback, converting a panic into a deferred
// error so the remaining subscribers are still notified.
func (s *Subscribable) invokeSubscriber(sub *Subscription, value any) {
	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(error); ok {
				s.rt.deferError(fmt.Errorf("filament: subscriber panicked: %w", err))
			} else {
				s.rt.deferError(fmt.Errorf("filament: subscriber panicked: %v", r))
			}
		}
	}()
	sub.callback(value)
}

// HasSubscribers reports whether any subscription exists for any event.
func (s *Subscribable) HasSubscribers() bool {
	for _, list := range s.subscriptions {
		if len(list) > 0 {
			return true
		}
	}
	return false
}

// HasSubscribersFor reports whether any subscription exists for event.
func (s *Subscribable) HasSubscribersFor(event string) bool {
	return len(s.subscriptions[event]) > 0
}

// SubscriptionCount returns the total number of live subscriptions.
func (s *Subscribable) SubscriptionCount() int {
	n := 0
	for _, list := range s.subscriptions {
		n += len(list)
	}
	return n
}

// SubscriptionCountFor returns the number of live subscriptions for event.
func (s *Subscribable) SubscriptionCountFor(event string) int {
	return len(s.subscriptions[event])
}

// Version returns the change counter. Dependents compare versions to decide
// whether a target changed since they last read it.
func (s *Subscribable) Version() uint64 {
	if s.versionFunc != nil {
		return s.versionFunc()
	}
	return s.version
}

// HasChanged reports whether the target changed since the given version.
func (s *Subscribable) HasChanged(since uint64) bool {
	return s.Version() != since
}

// updateVersion advances the version counter without notifying. Sleeping pure
// computeds use it when their value changes with no one listening.
func (s *Subscribable) updateVersion() {
	s.version++
}

// isDifferent applies the change predicate. With no predicate every write is
// a change.
func (s *Subscribable) isDifferent(old, new any) bool {
	if s.equality == nil {
		return true
	}
	return !s.equality(old, new)
}

// notificationPending reports whether a limiter holds a coalesced
// notification that has not been delivered yet.
func (s *Subscribable) notificationPending() bool {
	return s.limiter != nil && s.limiter.pending
}

// forceNextNotification makes the pending coalesced notification fire even if
// the value returns to what the last notification reported. A dependent that
// read the target mid-batch has seen the intermediate value, so suppressing
// the delivery would leave it stale. Forcing only applies when the observed
// value actually differs from the last one notified.
func (s *Subscribable) forceNextNotification() {
	if s.limiter == nil || !s.limiter.pending {
		return
	}
	l := s.limiter
	current := l.pendingValue
	if s.selfRef != nil && current == s.selfRef && s.reevaluate != nil {
		current = s.reevaluate()
	}
	if s.isDifferent(l.previousValue, current) {
		l.notifyNext = true
	}
}

// primitiveEquals is the default change predicate: Go's primitive kinds
// compare by ==, everything else is treated as always different, matching the
// expectation that mutable composites notify even when written back in place.
func primitiveEquals(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case int:
		bv, ok := b.(int)
		return ok && av == bv
	case int8:
		bv, ok := b.(int8)
		return ok && av == bv
	case int16:
		bv, ok := b.(int16)
		return ok && av == bv
	case int32:
		bv, ok := b.(int32)
		return ok && av == bv
	case int64:
		bv, ok := b.(int64)
		return ok && av == bv
	case uint:
		bv, ok := b.(uint)
		return ok && av == bv
	case uint8:
		bv, ok := b.(uint8)
		return ok && av == bv
	case uint16:
		bv, ok := b.(uint16)
		return ok && av == bv
	case uint32:
		bv, ok := b.(uint32)
		return ok && av == bv
	case uint64:
		bv, ok := b.(uint64)
		return ok && av == bv
	case uintptr:
		bv, ok := b.(uintptr)
		return ok && av == bv
	case float32:
		bv, ok := b.(float32)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case complex64:
		bv, ok := b.(complex64)
		return ok && av == bv
	case complex128:
		bv, ok := b.(complex128)
		return ok && av == bv
	}
	return false
}
