package hooks

import (
	"strconv"

	"github.com/vango-dev/hooks/internal/errors"
)

// Cleanup is returned by an effect body and runs before the body's next
// invocation, or when the instance is torn down.
type Cleanup func()

// EffectFunc is an effect body. It may return nil when there is nothing to
// clean up.
type EffectFunc func() Cleanup

// effectSlot is the per-slot state of one effect registration.
//
// Lifecycle: a slot is Registered-Pending between its first declaration and
// the first commit, Active once its body has run at least once, and
// Unregistered again after teardown.
type effectSlot struct {
	// deps is the dependency list from the most recently committed render.
	deps Deps

	// next and nextDeps are declared by the render being committed.
	next     EffectFunc
	nextDeps Deps

	// cleanup is the cleanup returned by the previous invocation, if any.
	cleanup Cleanup

	// active is true once the body has been invoked.
	active bool
}

// UseEffect registers an effect for the current render of inst. Nothing
// runs during render: the body is invoked by CommitRender.
//
// deps controls re-runs:
//   - nil (Always): after every commit
//   - DepsOf(): after the first commit only
//   - DepsOf(a, b, ...): after the first commit, then whenever any position
//     differs from the previous commit under Same
//
// The list must keep its arity across renders; changing it panics with
// ErrArityViolation.
//
// Example:
//
//	count, setCount := hooks.UseState(inst, 0)
//	hooks.UseEffect(inst, func() hooks.Cleanup {
//	    fmt.Println("count is", count)
//	    return func() { fmt.Println("cleanup") }
//	}, hooks.DepsOf(count))
func UseEffect(inst *Instance, fn EffectFunc, deps Deps) {
	s, index, fresh := inst.claim(HookEffect)
	if s == nil {
		return
	}

	if deps != nil {
		deps = append(Deps{}, deps...)
	}

	if fresh {
		inst.mu.Lock()
		s.effect = &effectSlot{next: fn, nextDeps: deps}
		inst.mu.Unlock()
		return
	}

	e := s.effect
	if (e.deps == nil) != (deps == nil) || len(e.deps) != len(deps) {
		inst.fail(errors.New("H002").
			WithSite(inst.String(), index).
			WithDetailf("dependency list was %s, now %s", describeDeps(e.deps), describeDeps(deps)).
			WithSuggestion("keep the dependency list the same length on every render"))
	}
	e.next = fn
	e.nextDeps = deps
}

func describeDeps(d Deps) string {
	switch {
	case d == nil:
		return "absent"
	case len(d) == 1:
		return "1 value"
	default:
		return strconv.Itoa(len(d)) + " values"
	}
}

// shouldRun decides whether the slot's body runs in the current commit.
func (e *effectSlot) shouldRun() bool {
	if !e.active {
		return true
	}
	if e.nextDeps == nil {
		return true
	}
	return !e.deps.equal(e.nextDeps)
}

// reconcile commits the slot's pending declaration and, when required, runs
// the previous cleanup followed by the new body.
func (inst *Instance) reconcile(index int, e *effectSlot) []error {
	run := e.shouldRun()
	fn := e.next

	inst.mu.Lock()
	e.deps = e.nextDeps
	e.next = nil
	e.nextDeps = nil
	inst.mu.Unlock()

	if !run {
		return nil
	}

	var errs []error
	if err := inst.runCleanup(index, e); err != nil {
		errs = append(errs, err)
	}

	inst.emit(EventEffectRun, index, nil)
	var cleanup Cleanup
	err := protect(func() {
		if fn != nil {
			cleanup = fn()
		}
	})

	// Teardown reads cleanups under mu after setting disposed, so a body
	// that finishes after teardown started owns its cleanup and runs it here.
	inst.mu.Lock()
	e.active = true
	late := err == nil && inst.disposed.Load()
	if err == nil && !late {
		e.cleanup = cleanup
	}
	inst.mu.Unlock()

	if err != nil {
		herr := errors.New("H004").WithSite(inst.String(), index).Wrap(err)
		inst.logger.Error("effect failed", "slot", index, "error", err)
		inst.emit(EventEffectFailed, index, herr)
		errs = append(errs, herr)
	}
	if late {
		if err := inst.invokeCleanup(index, cleanup); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// runCleanup consumes and invokes the slot's cleanup, if any. A panicking
// cleanup is still consumed.
func (inst *Instance) runCleanup(index int, e *effectSlot) error {
	inst.mu.Lock()
	cleanup := e.cleanup
	e.cleanup = nil
	inst.mu.Unlock()

	return inst.invokeCleanup(index, cleanup)
}

// invokeCleanup runs cleanup for slot index, recovering a panic.
func (inst *Instance) invokeCleanup(index int, cleanup Cleanup) error {
	if cleanup == nil {
		return nil
	}

	inst.emit(EventCleanupRun, index, nil)
	if err := protect(cleanup); err != nil {
		herr := errors.New("H005").WithSite(inst.String(), index).Wrap(err)
		inst.logger.Error("effect cleanup failed", "slot", index, "error", err)
		inst.emit(EventCleanupFailed, index, herr)
		return herr
	}
	return nil
}

// OnMount registers a body that runs after the first commit only.
func OnMount(inst *Instance, fn func()) {
	UseEffect(inst, func() Cleanup {
		fn()
		return nil
	}, DepsOf())
}

// OnUnmount registers a function that runs when the instance is torn down.
func OnUnmount(inst *Instance, fn func()) {
	UseEffect(inst, func() Cleanup {
		return fn
	}, DepsOf())
}
