package filament

import "fmt"

// DefaultMaxFlushGroups is the default recursion safety valve for a task
// queue flush. A "group" completes when the processing cursor catches up
// with the queue tail recorded at the start of the group; tasks scheduled
// during a flush open new groups. A flush that exceeds the limit is aborted
// with ErrTooMuchRecursion.
const DefaultMaxFlushGroups = 5000

// TaskHandle identifies a scheduled task for cancellation. Handles are only
// valid until the flush that would have run the task completes; after a
// flush, all prior handles are invalid.
type TaskHandle uint64

// TaskQueue is a FIFO of deferred zero-argument callbacks. Scheduling the
// first task of a turn arms exactly one flush through the runtime's
// Scheduler; every task scheduled before that flush runs is processed by it,
// in scheduling order, including tasks appended while the flush is running.
//
// A panicking task is captured and routed to the runtime's error handler; it
// never aborts the flush.
type TaskQueue struct {
	rt *Runtime

	queue      []func()
	nextIndex  int
	nextHandle uint64
}

func newTaskQueue(rt *Runtime) *TaskQueue {
	return &TaskQueue{rt: rt, nextHandle: 1}
}

// Schedule appends fn to the queue and returns a handle that can cancel it.
// If the queue was empty, a single flush is armed via the scheduler.
func (q *TaskQueue) Schedule(fn func()) TaskHandle {
	if fn == nil {
		panic(ErrNilCallback)
	}
	if len(q.queue) == 0 {
		q.rt.scheduler.Schedule(q.flush)
	}
	q.queue = append(q.queue, fn)
	h := TaskHandle(q.nextHandle)
	q.nextHandle++
	return h
}

// Cancel marks the task for h as skipped if it has not run yet.
// Cancellation nulls the slot rather than removing it, so the indices of
// other pending tasks stay stable. Cancelling an already-run, already-
// cancelled, or stale handle is a no-op.
func (q *TaskQueue) Cancel(h TaskHandle) {
	// Map the handle back to a queue index. Handles issued before the last
	// flush land outside the live range and are ignored.
	index := int64(h) - (int64(q.nextHandle) - int64(len(q.queue)))
	if index >= int64(q.nextIndex) && index < int64(len(q.queue)) {
		q.queue[index] = nil
	}
}

// Len reports the number of scheduled entries not yet reached by a flush,
// including cancelled slots.
func (q *TaskQueue) Len() int {
	return len(q.queue) - q.nextIndex
}

// RunEarly processes all pending tasks synchronously, without waiting for
// the armed flush. The armed flush still runs later (finding nothing to do)
// and resets the queue.
func (q *TaskQueue) RunEarly() {
	q.processTasks()
}

// flush is the armed callback handed to the scheduler.
func (q *TaskQueue) flush() {
	q.processTasks()
	q.queue = q.queue[:0]
	q.nextIndex = 0
}

func (q *TaskQueue) processTasks() {
	if q.nextIndex >= len(q.queue) {
		return
	}
	// mark records the queue tail for the current group; catching up with it
	// while the tail has grown opens the next group.
	mark := len(q.queue)
	groups := 1
	tasksRun := 0
	for q.nextIndex < len(q.queue) {
		task := q.queue[q.nextIndex]
		q.nextIndex++
		if task == nil {
			continue
		}
		if q.nextIndex > mark {
			groups++
			if groups > q.rt.maxFlushGroups {
				// Abandon the rest of the flush; later scheduling still works.
				q.nextIndex = len(q.queue)
				q.rt.stats.recursionAborts.Add(1)
				q.rt.deferError(fmt.Errorf("%w: exceeded %d task groups in a single flush", ErrTooMuchRecursion, q.rt.maxFlushGroups))
				break
			}
			mark = len(q.queue)
		}
		q.runTask(task)
		tasksRun++
	}
	q.rt.recordFlush(tasksRun, groups)
}

// runTask executes one task, converting a panic into a deferred error.
func (q *TaskQueue) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(error); ok {
				q.rt.deferError(fmt.Errorf("filament: task panicked: %w", err))
			} else {
				q.rt.deferError(fmt.Errorf("filament: task panicked: %v", r))
			}
		}
	}()
	task()
}
