// Package hookstest provides testing helpers for hook components.
//
// The hookstest package reduces boilerplate when testing components by
// mounting them on a private host with an event recorder and offering
// assertions over the recorded transcript.
//
// # Quick Start
//
//	func TestCounter(t *testing.T) {
//	    var set *hooks.Setter[int]
//	    h := hookstest.New(t, "counter", func(inst *hooks.Instance) {
//	        n, s := hooks.UseState(inst, 0)
//	        set = s
//	        hooks.UseEffect(inst, func() hooks.Cleanup { return nil }, hooks.DepsOf(n))
//	    })
//
//	    set.Set(1)
//	    h.MustFlush()
//	    h.ExpectGeneration(2)
//	    h.ExpectTranscript([]string{
//	        "counter effect_run slot=1 gen=1",
//	        "counter effect_run slot=1 gen=2",
//	    }, hooks.EventEffectRun)
//	}
//
// The harness unmounts its instance when the test ends, so cleanups run
// and teardown failures are reported.
//
// # Remounting
//
// Remount tears the instance down and mounts the body again from scratch,
// which is how a test checks that teardown released everything:
//
//	h.Remount()
//	h.ExpectGeneration(1)
//
// # Error Assertions
//
//	err := h.Flush()
//	hookstest.ExpectCode(t, err, "H004")
package hookstest
