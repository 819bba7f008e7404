package filament

import (
	"testing"

	"github.com/filament-dev/filament/pkg/seqdiff"
)

func TestObservableArrayBasic(t *testing.T) {
	rt := New()
	a := NewObservableArray(rt, []string{"a", "b"})

	if a.Len() != 2 {
		t.Fatalf("expected length 2, got %d", a.Len())
	}

	a.Push("c")
	got := a.Get()
	if len(got) != 3 || got[2] != "c" {
		t.Errorf("expected [a b c], got %v", got)
	}
	if a.IndexOf("b") != 1 || a.IndexOf("z") != -1 {
		t.Error("IndexOf is off")
	}
}

func TestObservableArrayNotifiesLikeObservable(t *testing.T) {
	rt := New()
	a := NewObservableArray(rt, []int{1})

	notified := 0
	a.Subscribe(func([]int) { notified++ })

	a.Push(2)
	a.Pop()
	if notified != 2 {
		t.Errorf("expected 2 change notifications, got %d", notified)
	}
}

func TestObservableArrayPushRecords(t *testing.T) {
	rt := New()
	a := NewObservableArray(rt, []int{1, 2})

	var got [][]seqdiff.Record[int]
	a.SubscribeChanges(func(recs []seqdiff.Record[int]) { got = append(got, recs) })

	a.Push(3, 4)

	if len(got) != 1 {
		t.Fatalf("expected one batch of records, got %d", len(got))
	}
	recs := got[0]
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %v", recs)
	}
	for i, want := range []int{3, 4} {
		if recs[i].Op != seqdiff.OpAdded || recs[i].Value != want || recs[i].Index != 2+i {
			t.Errorf("record %d = %+v, want added %d at %d", i, recs[i], want, 2+i)
		}
	}
}

func TestObservableArrayPopShiftUnshiftRecords(t *testing.T) {
	rt := New()
	a := NewObservableArray(rt, []int{1, 2, 3})

	var last []seqdiff.Record[int]
	a.SubscribeChanges(func(recs []seqdiff.Record[int]) { last = recs })

	if v := a.Pop(); v != 3 {
		t.Fatalf("expected pop 3, got %d", v)
	}
	if len(last) != 1 || last[0].Op != seqdiff.OpDeleted || last[0].Index != 2 {
		t.Errorf("pop records = %+v", last)
	}

	if v := a.Shift(); v != 1 {
		t.Fatalf("expected shift 1, got %d", v)
	}
	if len(last) != 1 || last[0].Op != seqdiff.OpDeleted || last[0].Index != 0 {
		t.Errorf("shift records = %+v", last)
	}

	a.Unshift(0)
	if len(last) != 1 || last[0].Op != seqdiff.OpAdded || last[0].Index != 0 || last[0].Value != 0 {
		t.Errorf("unshift records = %+v", last)
	}
}

func TestObservableArraySpliceRecordsWithMove(t *testing.T) {
	rt := New()
	a := NewObservableArray(rt, []string{"a", "b", "c"})

	var last []seqdiff.Record[string]
	a.SubscribeChanges(func(recs []seqdiff.Record[string]) { last = recs })

	// Replace b,c with c: c is deleted at 2 and re-added at 1, so the two
	// records link as a move.
	removed := a.Splice(1, 2, "c")
	if len(removed) != 2 || removed[0] != "b" || removed[1] != "c" {
		t.Fatalf("expected removed [b c], got %v", removed)
	}

	var deletedC, addedC *seqdiff.Record[string]
	for i := range last {
		if last[i].Value == "c" && last[i].Op == seqdiff.OpDeleted {
			deletedC = &last[i]
		}
		if last[i].Value == "c" && last[i].Op == seqdiff.OpAdded {
			addedC = &last[i]
		}
	}
	if deletedC == nil || addedC == nil {
		t.Fatalf("expected c to appear as deletion and addition, got %+v", last)
	}
	if deletedC.Moved != addedC.Index || addedC.Moved != deletedC.Index {
		t.Errorf("expected linked move, got deleted %+v added %+v", *deletedC, *addedC)
	}
}

func TestObservableArraySpliceNegativeDeleteCount(t *testing.T) {
	rt := New()
	a := NewObservableArray(rt, []int{1, 2, 3, 4})

	removed := a.Splice(2, -1)
	if len(removed) != 2 || removed[0] != 3 || removed[1] != 4 {
		t.Errorf("negative deleteCount must remove through the end, got %v", removed)
	}
	if a.Len() != 2 {
		t.Errorf("expected length 2, got %d", a.Len())
	}
}

func TestObservableArraySortFullDiff(t *testing.T) {
	rt := New()
	a := NewObservableArray(rt, []int{3, 1, 2})

	var last []seqdiff.Record[int]
	a.SubscribeChanges(func(recs []seqdiff.Record[int]) { last = recs })

	a.Sort(func(x, y int) bool { return x < y })

	got := a.Get()
	if got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("expected sorted [1 2 3], got %v", got)
	}
	if len(last) == 0 {
		t.Error("sort must produce structural records via the full diff")
	}
	for _, rec := range last {
		if rec.Op == seqdiff.OpRetained {
			t.Errorf("tracking diffs are sparse, got retained record %+v", rec)
		}
	}
}

func TestObservableArrayMultipleMutationsFallBackToFullDiff(t *testing.T) {
	rt := New()
	a := NewObservableArray(rt, []int{1, 2, 3})

	var batches [][]seqdiff.Record[int]
	a.SubscribeChanges(func(recs []seqdiff.Record[int]) { batches = append(batches, recs) })

	// Coalesce the change notifications so two known-shape ops land in one
	// batch; the cached single-op diff must not be trusted.
	a.Observable().Extend(Deferred())
	a.Push(4)
	a.Push(5)
	rt.Flush()

	if len(batches) != 1 {
		t.Fatalf("expected one coalesced batch, got %d", len(batches))
	}
	recs := batches[0]
	if len(recs) != 2 {
		t.Fatalf("expected additions for 4 and 5, got %+v", recs)
	}
	for i, want := range []int{4, 5} {
		if recs[i].Op != seqdiff.OpAdded || recs[i].Value != want {
			t.Errorf("record %d = %+v, want added %d", i, recs[i], want)
		}
	}
}

func TestObservableArrayRemoveAndReplace(t *testing.T) {
	rt := New()
	a := NewObservableArray(rt, []int{1, 2, 3, 4})

	removed := a.Remove(func(v int) bool { return v%2 == 0 })
	if len(removed) != 2 || removed[0] != 2 || removed[1] != 4 {
		t.Errorf("expected removed [2 4], got %v", removed)
	}
	got := a.Get()
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Errorf("expected [1 3], got %v", got)
	}

	notified := 0
	a.Subscribe(func([]int) { notified++ })
	if a.Remove(func(int) bool { return false }) != nil {
		t.Error("expected nil removal")
	}
	if notified != 0 {
		t.Errorf("no-op removal must not notify, got %d", notified)
	}

	a.Replace(3, 30)
	if a.Get()[1] != 30 {
		t.Errorf("expected replacement, got %v", a.Get())
	}
}

func TestObservableArrayRemoveAllAndClear(t *testing.T) {
	rt := New()
	a := NewObservableArray(rt, []int{1, 2})

	removed := a.RemoveAll()
	if len(removed) != 2 || a.Len() != 0 {
		t.Errorf("expected everything removed, got %v, len %d", removed, a.Len())
	}

	a.Push(9)
	a.Clear()
	if a.Len() != 0 {
		t.Errorf("expected empty array after Clear, got %d", a.Len())
	}
}

func TestObservableArrayNoDiffWithoutStructuralSubscribers(t *testing.T) {
	rt := New()
	a := NewObservableArray(rt, []int{1, 2, 3})

	a.Sort(func(x, y int) bool { return x > y })
	if rt.Stats().ArrayDiffs != 0 {
		t.Errorf("no diffs may run without structural subscribers, got %d", rt.Stats().ArrayDiffs)
	}

	a.SubscribeChanges(func([]seqdiff.Record[int]) {})
	a.Sort(func(x, y int) bool { return x < y })
	if rt.Stats().ArrayDiffs != 1 {
		t.Errorf("expected exactly one diff, got %d", rt.Stats().ArrayDiffs)
	}
}

func TestObservableArrayInComputed(t *testing.T) {
	rt := New()
	a := NewObservableArray(rt, []int{1, 2})
	sum := NewComputed(rt, func() int {
		total := 0
		for _, v := range a.Get() {
			total += v
		}
		return total
	})

	if sum.Get() != 3 {
		t.Fatalf("expected 3, got %d", sum.Get())
	}
	a.Push(4)
	if sum.Get() != 7 {
		t.Errorf("expected 7 after push, got %d", sum.Get())
	}
}
