package hooks

import (
	"fmt"

	"github.com/vango-dev/hooks/internal/errors"
)

// Sentinel errors. Errors returned or panicked by this package match these
// with errors.Is, whatever detail they carry.
var (
	// ErrOrderingViolation is raised when the kind or number of hooks declared
	// by a render differs from the instance's first committed render.
	ErrOrderingViolation = errors.New("H001")

	// ErrArityViolation is raised when an effect's dependency list changes
	// length, or switches between a list and the "no list" sentinel.
	ErrArityViolation = errors.New("H002")

	// ErrStaleInstance describes a write or declaration against a torn-down
	// instance. It is only ever reported through diagnostics.
	ErrStaleInstance = errors.New("H003")

	// ErrEffectFailed wraps a panic raised by an effect body.
	ErrEffectFailed = errors.New("H004")

	// ErrCleanupFailed wraps a panic raised by an effect cleanup.
	ErrCleanupFailed = errors.New("H005")

	// ErrReentrantCommit is returned when CommitRender is called from inside
	// a commit pass of the same instance.
	ErrReentrantCommit = errors.New("H006")

	// ErrPassBudgetExceeded is returned by Host.RunUntilIdle when a flush runs
	// more render passes than the configured budget.
	ErrPassBudgetExceeded = errors.New("H007")

	// ErrNotRendering is raised when a hook is declared, or a render committed,
	// outside BeginRender/CommitRender.
	ErrNotRendering = errors.New("H008")

	// ErrRenderFailed wraps a panic raised by a component body.
	ErrRenderFailed = errors.New("H009")
)

// panicError converts a recovered panic value into an error.
func panicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", r)
}

// protect runs fn and converts a panic into an error.
func protect(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	fn()
	return nil
}
