package filament

import "time"

// Hooks is the instrumentation seam. A Runtime created with WithHooks calls
// these methods synchronously on the runtime goroutine as the corresponding
// events happen, so implementations must be fast and must not call back into
// the runtime. Implementations that fan out to other goroutines (exporters,
// websocket hubs) should hand the event off through a buffered channel.
type Hooks interface {
	// ComputedEvaluated is called after a computed's read function returns,
	// with the wall time the evaluation took.
	ComputedEvaluated(d time.Duration)

	// NotificationDelivered is called after an event was delivered to its
	// subscribers. It fires even when subscribers is zero.
	NotificationDelivered(event string, subscribers int)

	// FlushCompleted is called at the end of a task queue flush with the
	// number of tasks executed and the number of groups processed.
	FlushCompleted(tasks, groups int)

	// ArrayDiffed is called after an observable array computed structural
	// change records, with the number of records produced.
	ArrayDiffed(records int)
}

// MultiHooks combines several Hooks into one that forwards every event to
// each of them in order. Nil entries are skipped.
func MultiHooks(hooks ...Hooks) Hooks {
	filtered := make([]Hooks, 0, len(hooks))
	for _, h := range hooks {
		if h != nil {
			filtered = append(filtered, h)
		}
	}
	return multiHooks(filtered)
}

type multiHooks []Hooks

func (m multiHooks) ComputedEvaluated(d time.Duration) {
	for _, h := range m {
		h.ComputedEvaluated(d)
	}
}

func (m multiHooks) NotificationDelivered(event string, subscribers int) {
	for _, h := range m {
		h.NotificationDelivered(event, subscribers)
	}
}

func (m multiHooks) FlushCompleted(tasks, groups int) {
	for _, h := range m {
		h.FlushCompleted(tasks, groups)
	}
}

func (m multiHooks) ArrayDiffed(records int) {
	for _, h := range m {
		h.ArrayDiffed(records)
	}
}
