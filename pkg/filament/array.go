package filament

import (
	"sort"

	"github.com/filament-dev/filament/pkg/seqdiff"
)

// ObservableArray is an observable slice with structural change tracking.
// Mutators bracket the write with beforeChange/change like any observable;
// subscribers to the arrayChange event additionally receive edit records
// describing what was added, deleted and moved.
//
// Change tracking is lazy twice over: nothing is tracked until the first
// arrayChange subscriber appears, and known-shape mutators (Push, Pop,
// Shift, Unshift, Splice) derive their records from the call's arguments so
// no diff runs at all. Other mutations fall back to seqdiff against the
// previous contents.
type ObservableArray[T comparable] struct {
	obs *Observable[[]T]

	tracking  bool
	prev      []T
	cached    []seqdiff.Record[T]
	pending   int
	changeSub *Subscription
}

// NewObservableArray creates an observable array holding a copy of initial.
func NewObservableArray[T comparable](rt *Runtime, initial []T) *ObservableArray[T] {
	a := &ObservableArray[T]{
		obs: NewObservable(rt, append([]T(nil), initial...)),
	}
	// Slices fail the primitive predicate, so every mutation notifies.
	a.obs.base.beforeSubscriptionAdd = func(event string) {
		if event == EventArrayChange {
			a.trackChanges()
		}
	}
	a.obs.base.afterSubscriptionRemove = func(event string) {
		if event == EventArrayChange && !a.obs.base.HasSubscribersFor(EventArrayChange) {
			a.stopTracking()
		}
	}
	return a
}

// Get returns the current contents and registers a dependency. The returned
// slice is the live backing array; callers must not mutate it.
func (a *ObservableArray[T]) Get() []T {
	return a.obs.Get()
}

// Peek returns the current contents without registering a dependency.
func (a *ObservableArray[T]) Peek() []T {
	return a.obs.Peek()
}

// Len returns the current length, registering a dependency.
func (a *ObservableArray[T]) Len() int {
	return len(a.obs.Get())
}

// IndexOf returns the index of the first element equal to value, or -1. It
// registers a dependency.
func (a *ObservableArray[T]) IndexOf(value T) int {
	for i, v := range a.obs.Get() {
		if v == value {
			return i
		}
	}
	return -1
}

// Set replaces the contents with a copy of items.
func (a *ObservableArray[T]) Set(items []T) *ObservableArray[T] {
	a.mutate(nil, func([]T) []T {
		return append([]T(nil), items...)
	})
	return a
}

// mutate is the shared mutation path: optionally cache an argument-derived
// diff (only when it would describe the sole mutation of the batch), then
// bracket the write with the observable's notifications.
func (a *ObservableArray[T]) mutate(makeDiff func(old []T) []seqdiff.Record[T], apply func(old []T) []T) {
	old := a.obs.value
	if a.tracking && a.pending == 0 && makeDiff != nil {
		a.cached = makeDiff(old)
	}
	a.obs.ValueWillMutate()
	a.obs.value = apply(old)
	if a.tracking {
		a.pending++
	}
	a.obs.ValueHasMutated()
}

// Push appends items.
func (a *ObservableArray[T]) Push(items ...T) {
	if len(items) == 0 {
		return
	}
	a.mutate(func(old []T) []seqdiff.Record[T] {
		recs := make([]seqdiff.Record[T], len(items))
		for i, v := range items {
			recs[i] = seqdiff.Record[T]{Op: seqdiff.OpAdded, Value: v, Index: len(old) + i, Moved: -1}
		}
		return recs
	}, func(old []T) []T {
		return append(append(make([]T, 0, len(old)+len(items)), old...), items...)
	})
}

// Pop removes and returns the last element. Popping an empty array returns
// the zero value without notifying.
func (a *ObservableArray[T]) Pop() T {
	old := a.obs.value
	if len(old) == 0 {
		var zero T
		return zero
	}
	removed := old[len(old)-1]
	a.mutate(func(old []T) []seqdiff.Record[T] {
		return []seqdiff.Record[T]{{Op: seqdiff.OpDeleted, Value: removed, Index: len(old) - 1, Moved: -1}}
	}, func(old []T) []T {
		return append([]T(nil), old[:len(old)-1]...)
	})
	return removed
}

// Shift removes and returns the first element. Shifting an empty array
// returns the zero value without notifying.
func (a *ObservableArray[T]) Shift() T {
	old := a.obs.value
	if len(old) == 0 {
		var zero T
		return zero
	}
	removed := old[0]
	a.mutate(func(old []T) []seqdiff.Record[T] {
		return []seqdiff.Record[T]{{Op: seqdiff.OpDeleted, Value: removed, Index: 0, Moved: -1}}
	}, func(old []T) []T {
		return append([]T(nil), old[1:]...)
	})
	return removed
}

// Unshift prepends items.
func (a *ObservableArray[T]) Unshift(items ...T) {
	if len(items) == 0 {
		return
	}
	a.mutate(func(old []T) []seqdiff.Record[T] {
		recs := make([]seqdiff.Record[T], len(items))
		for i, v := range items {
			recs[i] = seqdiff.Record[T]{Op: seqdiff.OpAdded, Value: v, Index: i, Moved: -1}
		}
		return recs
	}, func(old []T) []T {
		return append(append(make([]T, 0, len(old)+len(items)), items...), old...)
	})
}

// Splice removes deleteCount elements starting at start, inserts items in
// their place, and returns the removed elements. A negative start counts
// from the end; a negative deleteCount removes through the end. Out-of-range
// values are clamped.
func (a *ObservableArray[T]) Splice(start, deleteCount int, items ...T) []T {
	old := a.obs.value
	n := len(old)
	if start < 0 {
		start = n + start
	}
	if start < 0 {
		start = 0
	}
	if start > n {
		start = n
	}
	end := n
	if deleteCount >= 0 {
		end = start + deleteCount
		if end > n {
			end = n
		}
	}
	removed := append([]T(nil), old[start:end]...)

	a.mutate(func(old []T) []seqdiff.Record[T] {
		return spliceDiff(old, start, end, items)
	}, func(old []T) []T {
		result := make([]T, 0, len(old)-(end-start)+len(items))
		result = append(result, old[:start]...)
		result = append(result, items...)
		result = append(result, old[end:]...)
		return result
	})
	return removed
}

// spliceDiff derives the edit records for a splice from its arguments,
// interleaving deletions and additions by index and linking moves between
// this call's own removals and insertions.
func spliceDiff[T comparable](old []T, start, endDelete int, items []T) []seqdiff.Record[T] {
	endAdd := start + len(items)
	endIndex := endDelete
	if endAdd > endIndex {
		endIndex = endAdd
	}
	var script, deletions, additions []*seqdiff.Record[T]
	for index := start; index < endIndex; index++ {
		if index < endDelete {
			rec := &seqdiff.Record[T]{Op: seqdiff.OpDeleted, Value: old[index], Index: index, Moved: -1}
			deletions = append(deletions, rec)
			script = append(script, rec)
		}
		if index < endAdd {
			rec := &seqdiff.Record[T]{Op: seqdiff.OpAdded, Value: items[index-start], Index: index, Moved: -1}
			additions = append(additions, rec)
			script = append(script, rec)
		}
	}
	seqdiff.LinkMoves(deletions, additions, 0)
	out := make([]seqdiff.Record[T], len(script))
	for i, rec := range script {
		out[i] = *rec
	}
	return out
}

// Reverse reverses the contents in place.
func (a *ObservableArray[T]) Reverse() {
	a.mutate(nil, func(old []T) []T {
		result := make([]T, len(old))
		for i, v := range old {
			result[len(old)-1-i] = v
		}
		return result
	})
}

// Sort sorts the contents with less as the ordering. The sort is stable.
func (a *ObservableArray[T]) Sort(less func(a, b T) bool) {
	a.mutate(nil, func(old []T) []T {
		result := append([]T(nil), old...)
		sort.SliceStable(result, func(i, j int) bool {
			return less(result[i], result[j])
		})
		return result
	})
}

// Remove removes every element for which pred returns true and returns the
// removed elements. When nothing matches, no notification fires.
func (a *ObservableArray[T]) Remove(pred func(T) bool) []T {
	old := a.obs.value
	var removed, kept []T
	for _, v := range old {
		if pred(v) {
			removed = append(removed, v)
		} else {
			kept = append(kept, v)
		}
	}
	if len(removed) == 0 {
		return nil
	}
	a.mutate(nil, func([]T) []T {
		return kept
	})
	return removed
}

// RemoveAll empties the array and returns the removed elements.
func (a *ObservableArray[T]) RemoveAll() []T {
	return a.Splice(0, -1)
}

// Clear empties the array.
func (a *ObservableArray[T]) Clear() {
	a.Splice(0, -1)
}

// Replace substitutes the first element equal to oldItem with newItem.
func (a *ObservableArray[T]) Replace(oldItem, newItem T) {
	for i, v := range a.obs.value {
		if v == oldItem {
			index := i
			a.mutate(nil, func(old []T) []T {
				result := append([]T(nil), old...)
				result[index] = newItem
				return result
			})
			return
		}
	}
}

// Subscribe registers fn for change notifications with the new contents.
func (a *ObservableArray[T]) Subscribe(fn func([]T)) *Subscription {
	return a.obs.Subscribe(fn)
}

// SubscribeChanges registers fn for structural change records. The first
// such subscription starts change tracking; disposal of the last one stops
// it.
func (a *ObservableArray[T]) SubscribeChanges(fn func([]seqdiff.Record[T])) *Subscription {
	if fn == nil {
		panic(ErrNilCallback)
	}
	return a.obs.base.On(EventArrayChange, func(v any) {
		if recs, ok := v.([]seqdiff.Record[T]); ok {
			fn(recs)
		}
	})
}

// Observable exposes the underlying slice observable.
func (a *ObservableArray[T]) Observable() *Observable[[]T] {
	return a.obs
}

// Base exposes the underlying subscribable.
func (a *ObservableArray[T]) Base() *Subscribable {
	return &a.obs.base
}

// trackChanges starts structural change tracking: snapshot the contents and
// watch our own change event to emit records.
func (a *ObservableArray[T]) trackChanges() {
	if a.tracking {
		return
	}
	a.tracking = true
	a.prev = append([]T(nil), a.obs.value...)
	a.cached = nil
	a.pending = 0
	a.changeSub = a.obs.base.On(EventChange, func(any) {
		a.handleChange()
	})
}

func (a *ObservableArray[T]) stopTracking() {
	if !a.tracking {
		return
	}
	a.tracking = false
	a.changeSub.Dispose()
	a.changeSub = nil
	a.prev = nil
	a.cached = nil
	a.pending = 0
}

// handleChange runs on our own change event while tracking: compute the
// records for the batch (cached fast path when exactly one known-shape
// mutation happened, full diff otherwise), reset, and notify.
func (a *ObservableArray[T]) handleChange() {
	current := append([]T(nil), a.obs.value...)
	var changes []seqdiff.Record[T]
	if a.obs.base.HasSubscribersFor(EventArrayChange) {
		changes = a.changesSince(a.prev, current)
	}
	a.prev = current
	a.cached = nil
	a.pending = 0
	if len(changes) > 0 {
		a.obs.base.rt.recordArrayDiff(len(changes))
		a.obs.base.NotifySubscribers(changes, EventArrayChange)
	}
}

func (a *ObservableArray[T]) changesSince(prev, current []T) []seqdiff.Record[T] {
	if a.cached == nil || a.pending > 1 {
		a.cached = seqdiff.Diff(prev, current, seqdiff.Sparse())
	}
	return a.cached
}
