// Package filament is a fine-grained reactive dependency-tracking runtime.
//
// The primitives are Observable (a writable value cell), Computed (a derived
// value that re-evaluates when the values it read change), and
// ObservableArray (an observable slice with structural change records).
// Dependencies are discovered automatically: while a computed's read
// function runs, every Get it performs registers the target as a dependency,
// and the set is rebuilt on each evaluation, so conditional reads subscribe
// to exactly what the last evaluation touched.
//
// All primitives hang off a Runtime created with New. A Runtime and
// everything created from it are confined to a single goroutine; deferred
// and rate-limited notifications are deferral within that goroutine through
// the Runtime's task queue and timer seams, never parallelism. Hosts with
// their own event loop pump the default ManualScheduler by calling
// Runtime.Flush at turn boundaries.
//
// A minimal session:
//
//	rt := filament.New()
//	first := filament.NewObservable(rt, "Ada")
//	last := filament.NewObservable(rt, "Lovelace")
//	full := filament.NewComputed(rt, func() string {
//		return first.Get() + " " + last.Get()
//	})
//	full.Subscribe(func(v string) { fmt.Println(v) })
//	first.Set("Alan") // prints "Alan Lovelace"
//
// Extenders change notification behavior after the fact: Deferred coalesces
// a turn's writes into one notification delivered on the next flush,
// RateLimit coalesces over a time window, Notify controls change
// suppression. Pure computeds additionally sleep while nobody subscribes to
// them, holding no subscriptions to their dependencies at all.
package filament
