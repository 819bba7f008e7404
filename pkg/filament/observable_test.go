package filament

import (
	"testing"
)

func TestObservableBasic(t *testing.T) {
	rt := New()
	count := NewObservable(rt, 0)

	if count.Get() != 0 {
		t.Errorf("expected initial value 0, got %d", count.Get())
	}

	count.Set(5)
	if count.Get() != 5 {
		t.Errorf("expected value 5, got %d", count.Get())
	}
	if count.Peek() != 5 {
		t.Errorf("expected peek 5, got %d", count.Peek())
	}
}

func TestObservableSubscription(t *testing.T) {
	rt := New()
	name := NewObservable(rt, "a")

	var seen []string
	name.Subscribe(func(v string) { seen = append(seen, v) })

	name.Set("b")
	name.Set("c")

	if len(seen) != 2 || seen[0] != "b" || seen[1] != "c" {
		t.Errorf("expected [b c], got %v", seen)
	}
}

func TestObservableEqualWriteFiresNothing(t *testing.T) {
	rt := New()
	count := NewObservable(rt, 3)

	notified := 0
	count.Subscribe(func(int) { notified++ })
	count.On(EventBeforeChange, func(int) { notified++ })

	v := count.Version()
	count.Set(3)

	if notified != 0 {
		t.Errorf("write of equal primitive must fire nothing, got %d notifications", notified)
	}
	if count.Version() != v {
		t.Error("write of equal primitive must not advance the version")
	}
}

func TestObservableBeforeChangeCarriesOldValue(t *testing.T) {
	rt := New()
	count := NewObservable(rt, 1)

	var before, after int
	count.On(EventBeforeChange, func(v int) { before = v })
	count.Subscribe(func(v int) { after = v })

	count.Set(2)

	if before != 1 {
		t.Errorf("expected beforeChange with outgoing value 1, got %d", before)
	}
	if after != 2 {
		t.Errorf("expected change with new value 2, got %d", after)
	}
}

func TestObservableSliceAlwaysNotifies(t *testing.T) {
	rt := New()
	items := NewObservable(rt, []int{1, 2})

	notified := 0
	items.Subscribe(func([]int) { notified++ })

	// Non-primitive values fail the default predicate even when "equal".
	items.Set([]int{1, 2})
	if notified != 1 {
		t.Errorf("expected slice write to notify, got %d", notified)
	}
}

func TestObservableWithEquals(t *testing.T) {
	rt := New()
	type point struct{ x, y int }
	p := NewObservable(rt, point{1, 1}).WithEquals(func(old, new point) bool {
		return old == new
	})

	notified := 0
	p.Subscribe(func(point) { notified++ })

	p.Set(point{1, 1})
	if notified != 0 {
		t.Errorf("custom predicate should suppress the write, got %d", notified)
	}
	p.Set(point{2, 1})
	if notified != 1 {
		t.Errorf("expected 1 notification, got %d", notified)
	}
}

func TestObservableUpdate(t *testing.T) {
	rt := New()
	count := NewObservable(rt, 10)
	count.Update(func(v int) int { return v * 2 })
	if count.Get() != 20 {
		t.Errorf("expected 20, got %d", count.Get())
	}
}

func TestObservableMutateBracketing(t *testing.T) {
	rt := New()
	items := NewObservable(rt, []string{"a"})

	var events []string
	items.On(EventBeforeChange, func([]string) { events = append(events, "before") })
	items.Subscribe(func([]string) { events = append(events, "change") })

	items.ValueWillMutate()
	items.Peek()[0] = "b"
	items.ValueHasMutated()

	if len(events) != 2 || events[0] != "before" || events[1] != "change" {
		t.Errorf("expected [before change], got %v", events)
	}
}

func TestIgnoreSuppressesTracking(t *testing.T) {
	rt := New()
	tracked := NewObservable(rt, 1)
	ignored := NewObservable(rt, 10)

	c := NewComputed(rt, func() int {
		v := tracked.Get()
		rt.Ignore(func() { v += ignored.Get() })
		return v
	})

	if c.Get() != 11 {
		t.Fatalf("expected 11, got %d", c.Get())
	}
	if c.DependencyCount() != 1 {
		t.Errorf("expected 1 dependency, got %d", c.DependencyCount())
	}

	ignored.Set(100)
	if c.Get() != 11 {
		t.Errorf("ignored read must not re-evaluate, got %d", c.Get())
	}
}

func TestUntrackedReturnsValue(t *testing.T) {
	rt := New()
	o := NewObservable(rt, 7)

	c := NewComputed(rt, func() int {
		return Untracked(rt, o.Get) * 2
	})

	if c.Get() != 14 {
		t.Errorf("expected 14, got %d", c.Get())
	}
	if c.IsActive() {
		t.Error("computed with only untracked reads must auto-dispose")
	}
}
