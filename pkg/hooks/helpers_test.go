package hooks

import (
	stderrors "errors"
	"testing"
)

// render runs one manual begin/body/commit cycle.
func render(t *testing.T, inst *Instance, body Component) error {
	t.Helper()
	inst.BeginRender()
	if err := protect(func() { body(inst) }); err != nil {
		inst.AbortRender(err)
	}
	return inst.CommitRender()
}

// mustRender fails the test if the render returns an error.
func mustRender(t *testing.T, inst *Instance, body Component) {
	t.Helper()
	if err := render(t, inst, body); err != nil {
		t.Fatalf("render failed: %v", err)
	}
}

// expectPanicIs runs fn and checks that it panics with an error matching target.
func expectPanicIs(t *testing.T, target error, fn func()) {
	t.Helper()
	err := protect(fn)
	if err == nil {
		t.Fatalf("expected panic matching %v", target)
	}
	if !stderrors.Is(err, target) {
		t.Fatalf("panic = %v, want %v", err, target)
	}
}

// callLog records ordered effect and cleanup invocations.
type callLog struct {
	calls []string
}

func (l *callLog) add(s string) {
	l.calls = append(l.calls, s)
}

func (l *callLog) count(s string) int {
	n := 0
	for _, c := range l.calls {
		if c == s {
			n++
		}
	}
	return n
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
