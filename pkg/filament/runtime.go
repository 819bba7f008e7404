package filament

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// Runtime holds all of the state shared by the reactive primitives created
// from it: the dependency-tracking frame stack, the dependency id counter,
// the task queue, the timer seam, and the deferred-error channel.
//
// Making this an explicit object (rather than package-level globals) allows
// multiple independent runtimes to coexist, for example one per test.
//
// A Runtime and every primitive created from it are confined to a single
// goroutine. "Asynchrony" in this package means deferral within that
// goroutine via the task queue and timer seams, never parallel execution.
// Scheduler and Clock implementations must deliver their callbacks on the
// goroutine that owns the Runtime; see the Scheduler documentation.
type Runtime struct {
	// frames is the dependency-tracking frame stack. Only the top frame is
	// active. A nil entry suppresses tracking for its extent.
	frames []*trackingFrame

	// nextDependencyID assigns per-target-stable dependency ids. An id is
	// assigned the first time a target is ever tracked by anyone, so the
	// same target always reports the same id.
	nextDependencyID uint64

	// nextPrimitiveID assigns unique ids to subscribables for diagnostics.
	nextPrimitiveID uint64

	tasks          *TaskQueue
	scheduler      Scheduler
	clock          Clock
	onError        func(error)
	hooks          Hooks
	maxFlushGroups int

	stats runtimeStats
}

// trackingFrame is one entry of the evaluation frame stack. Reads performed
// on any subscribable while a frame is active are reported to the frame's
// callback together with the target's stable dependency id.
type trackingFrame struct {
	callback func(target *Subscribable, id uint64)
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithScheduler sets the "run after the current turn" primitive used by the
// task queue. The default is a ManualScheduler pumped via Runtime.Flush.
func WithScheduler(s Scheduler) RuntimeOption {
	return func(rt *Runtime) {
		if s != nil {
			rt.scheduler = s
		}
	}
}

// WithClock sets the timer seam used by rate limiting and throttling.
// The default uses time.AfterFunc.
func WithClock(c Clock) RuntimeOption {
	return func(rt *Runtime) {
		if c != nil {
			rt.clock = c
		}
	}
}

// WithErrorHandler sets the deferred-error channel. Runaway-recursion errors
// and panics recovered from subscriber callbacks or scheduled tasks are
// passed to it. The default logs via log/slog.
func WithErrorHandler(fn func(error)) RuntimeOption {
	return func(rt *Runtime) {
		if fn != nil {
			rt.onError = fn
		}
	}
}

// WithHooks installs an instrumentation seam. See Hooks.
func WithHooks(h Hooks) RuntimeOption {
	return func(rt *Runtime) {
		rt.hooks = h
	}
}

// WithMaxFlushGroups sets the task queue's recursion safety valve: the
// number of task "groups" a single flush may process before it is aborted
// with ErrTooMuchRecursion. The default is DefaultMaxFlushGroups. The exact
// number encodes an engineering trade-off, not a correctness requirement.
func WithMaxFlushGroups(n int) RuntimeOption {
	return func(rt *Runtime) {
		if n > 0 {
			rt.maxFlushGroups = n
		}
	}
}

// New creates a Runtime with its own task queue and frame stack.
func New(opts ...RuntimeOption) *Runtime {
	rt := &Runtime{
		scheduler:      NewManualScheduler(),
		clock:          systemClock{},
		maxFlushGroups: DefaultMaxFlushGroups,
	}
	rt.onError = func(err error) {
		slog.Error("filament: deferred error", "err", err)
	}
	for _, opt := range opts {
		opt(rt)
	}
	rt.tasks = newTaskQueue(rt)
	return rt
}

// SetHooks replaces the runtime's instrumentation seam. It exists for hooks
// that need the Runtime to construct themselves, such as the inspector; call
// it before creating primitives on the runtime's goroutine. Passing nil
// removes the hooks.
func (rt *Runtime) SetHooks(h Hooks) {
	rt.hooks = h
}

// Tasks returns the runtime's task queue.
func (rt *Runtime) Tasks() *TaskQueue {
	return rt.tasks
}

// Flush runs any work the scheduler has armed. With the default
// ManualScheduler this is how a host pumps deferred notifications: schedule
// writes, then call Flush at the end of the turn. With a custom scheduler it
// drains the task queue synchronously instead.
func (rt *Runtime) Flush() {
	if m, ok := rt.scheduler.(*ManualScheduler); ok {
		m.Run()
		return
	}
	rt.tasks.RunEarly()
}

// Ignore runs fn with dependency tracking suppressed. Reads performed inside
// fn do not register dependencies on the active frame. The suppression is
// exception-safe: the frame is popped even if fn panics.
func (rt *Runtime) Ignore(fn func()) {
	rt.beginFrame(nil)
	defer rt.endFrame()
	fn()
}

// Untracked evaluates fn with dependency tracking suppressed and returns its
// result. Prefer Peek for single reads.
func Untracked[T any](rt *Runtime, fn func() T) T {
	var v T
	rt.Ignore(func() { v = fn() })
	return v
}

// beginFrame pushes a tracking frame. A nil frame suppresses tracking.
func (rt *Runtime) beginFrame(f *trackingFrame) {
	rt.frames = append(rt.frames, f)
}

// endFrame pops the top tracking frame.
func (rt *Runtime) endFrame() {
	rt.frames = rt.frames[:len(rt.frames)-1]
}

// currentFrame returns the active frame, or nil when the stack is empty or
// tracking is suppressed.
func (rt *Runtime) currentFrame() *trackingFrame {
	if len(rt.frames) == 0 {
		return nil
	}
	return rt.frames[len(rt.frames)-1]
}

// registerDependency reports a read of target to the active frame. It is a
// no-op unless a frame is active. The target is assigned its stable
// dependency id on first-ever use.
func (rt *Runtime) registerDependency(target *Subscribable) {
	f := rt.currentFrame()
	if f == nil {
		return
	}
	if target.depID == 0 {
		rt.nextDependencyID++
		target.depID = rt.nextDependencyID
	}
	f.callback(target, target.depID)
}

// assignPrimitiveID hands out diagnostic ids for subscribables.
func (rt *Runtime) assignPrimitiveID() uint64 {
	rt.nextPrimitiveID++
	return rt.nextPrimitiveID
}

// deferError routes an error to the deferred-error channel. One failing
// listener or task never prevents delivery to the rest.
func (rt *Runtime) deferError(err error) {
	if rt.onError != nil {
		rt.onError(err)
	}
}

// runtimeStats are cheap counters kept with atomics so diagnostic surfaces
// (the inspector) can read them from other goroutines.
type runtimeStats struct {
	evaluations     atomic.Uint64
	notifications   atomic.Uint64
	flushes         atomic.Uint64
	tasksExecuted   atomic.Uint64
	arrayDiffs      atomic.Uint64
	recursionAborts atomic.Uint64
}

// Stats is a snapshot of a Runtime's activity counters.
type Stats struct {
	Evaluations     uint64 `json:"evaluations"`
	Notifications   uint64 `json:"notifications"`
	Flushes         uint64 `json:"flushes"`
	TasksExecuted   uint64 `json:"tasks_executed"`
	ArrayDiffs      uint64 `json:"array_diffs"`
	RecursionAborts uint64 `json:"recursion_aborts"`
}

// Stats returns a snapshot of the runtime's activity counters. It is safe to
// call from any goroutine.
func (rt *Runtime) Stats() Stats {
	return Stats{
		Evaluations:     rt.stats.evaluations.Load(),
		Notifications:   rt.stats.notifications.Load(),
		Flushes:         rt.stats.flushes.Load(),
		TasksExecuted:   rt.stats.tasksExecuted.Load(),
		ArrayDiffs:      rt.stats.arrayDiffs.Load(),
		RecursionAborts: rt.stats.recursionAborts.Load(),
	}
}

func (rt *Runtime) recordEvaluation(d time.Duration) {
	rt.stats.evaluations.Add(1)
	if rt.hooks != nil {
		rt.hooks.ComputedEvaluated(d)
	}
}

func (rt *Runtime) recordNotification(event string, subscribers int) {
	rt.stats.notifications.Add(1)
	if rt.hooks != nil {
		rt.hooks.NotificationDelivered(event, subscribers)
	}
}

func (rt *Runtime) recordFlush(tasks, groups int) {
	rt.stats.flushes.Add(1)
	rt.stats.tasksExecuted.Add(uint64(tasks))
	if rt.hooks != nil {
		rt.hooks.FlushCompleted(tasks, groups)
	}
}

func (rt *Runtime) recordArrayDiff(records int) {
	rt.stats.arrayDiffs.Add(1)
	if rt.hooks != nil {
		rt.hooks.ArrayDiffed(records)
	}
}
