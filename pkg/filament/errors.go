package filament

import "errors"

// ErrTooMuchRecursion is reported through the runtime's error handler when a
// task queue flush exceeds its group limit. This happens when scheduled tasks
// keep scheduling more tasks without the queue ever draining, which almost
// always indicates a feedback loop between reactive values.
//
// The remainder of the offending flush is abandoned; scheduling afterwards
// works normally.
var ErrTooMuchRecursion = errors.New("filament: too much recursion in task queue")

// ErrWriteToReadOnlyComputed is the panic value raised when a value is
// written to a computed that was constructed without a write function.
var ErrWriteToReadOnlyComputed = errors.New("filament: cannot write to a computed without a write function")

// ErrPureComputedSelfReference is the panic value raised when a pure
// computed's read function reads the computed itself. A pure computed has no
// defined value while it is being evaluated, so self-reference is always a
// programming error.
var ErrPureComputedSelfReference = errors.New("filament: a pure computed must not depend on itself")

// ErrNilCallback is the panic value raised when a nil function is passed
// where a callback is required (subscriptions, task scheduling, computed
// read functions).
var ErrNilCallback = errors.New("filament: callback must not be nil")
