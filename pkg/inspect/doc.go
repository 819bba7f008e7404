// Package inspect provides a development-time HTTP inspector for a filament
// Runtime.
//
// The server exposes a JSON snapshot of the runtime's activity counters and
// a websocket stream of instrumentation events. It implements filament.Hooks
// so it can be installed directly:
//
//	rt := filament.New()
//	insp := inspect.NewServer(rt)
//	rt.SetHooks(insp)
//	http.ListenAndServe(":7979", insp.Handler())
//
// Events are handed off from the runtime goroutine through a buffered
// channel; when the buffer or a client falls behind, events are dropped
// rather than ever blocking the runtime.
package inspect
