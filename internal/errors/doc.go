// Package errors provides structured, actionable errors for the hooks runtime.
//
// Every error carries a stable code (e.g. "H001") that maps to a registered
// template with a category, a short message, a longer explanation and a
// documentation link. Errors compare with errors.Is by code, so a sentinel
// created from a code matches every error instantiated from that code:
//
//	var ErrOrderingViolation = errors.New("H001")
//
//	err := errors.New("H001").
//	    WithSlot(2).
//	    WithDetail("expected State hook at index 2, got Effect")
//
//	stdErrors.Is(err, ErrOrderingViolation) // true
//
// # Categories
//
//   - ordering: slot order, slot count and dependency arity violations
//   - lifecycle: writes to torn-down instances, reentrant commits
//   - effect: panics raised by effect bodies or their cleanups
//   - config: configuration file problems
//   - scenario: scenario definition problems
//   - cli: command line problems
//
// # Terminal output
//
// Format renders an error for developers:
//
//	ERROR H001: Hook order changed between renders
//
//	  instance counter#3, slot 2
//
//	  Hooks must be declared unconditionally and in the same order on every render.
//
//	  Hint: move the conditional inside the effect body
package errors
