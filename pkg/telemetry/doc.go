// Package telemetry provides observability adapters for a filament Runtime.
//
// Metrics implements filament.Hooks on top of Prometheus collectors; Tracing
// does the same with OpenTelemetry spans. Both are pure observers: install
// them with filament.WithHooks (combine with filament.MultiHooks) and they
// never feed back into the runtime's behavior.
package telemetry
