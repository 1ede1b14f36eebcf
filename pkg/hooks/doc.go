// Package hooks provides component-local state cells and dependency-driven
// effects, plus the scheduler that decides after every committed render
// which effects re-run and when their cleanups fire.
//
// # Instances and slots
//
// An Instance is one mounted component. Its hooks are identified by the
// order in which the component body declares them, so every render must
// declare the same hooks in the same order. The instance is passed
// explicitly to every hook; there is no ambient "current component".
//
//	func Counter(inst *hooks.Instance) {
//	    count, setCount := hooks.UseState(inst, 0)
//	    hooks.UseEffect(inst, func() hooks.Cleanup {
//	        fmt.Println("count is", count)
//	        return nil
//	    }, hooks.DepsOf(count))
//	    _ = setCount
//	}
//
// # Render cycle
//
// A host drives each render with three calls:
//
//	inst.BeginRender()   // fresh slot cursor, consistent state snapshot
//	Counter(inst)        // declare hooks; nothing executes
//	inst.CommitRender()  // reconcile effects in registration order
//
// and ends the instance's life with inst.Teardown(), which runs every
// outstanding cleanup once, in registration order.
//
// Host is a ready-made loop: it queues instances whose state changed and
// runs one render/commit pass at a time, so writes made inside effects are
// rendered after the current pass instead of re-entering it.
//
// # Effects
//
// The dependency list decides re-runs:
//
//	hooks.UseEffect(inst, fn, nil)               // after every commit
//	hooks.UseEffect(inst, fn, hooks.DepsOf())     // once, after the first commit
//	hooks.UseEffect(inst, fn, hooks.DepsOf(a, b)) // when a or b changes
//
// A re-running effect always has its previous cleanup invoked first.
// Dependencies compare shallowly with Same: identity for references, value
// equality for scalars.
//
// # Errors
//
// Declaring hooks in a different order (ErrOrderingViolation) or changing a
// dependency list's length (ErrArityViolation) panics out of the hook call;
// Host recovers it and CommitRender refuses the render, leaving the last
// committed state in place. Panics in effects and cleanups are recovered,
// reported by CommitRender, and never re-invoked. Writes to a torn-down
// instance are ignored with a warning.
package hooks
