package hooks

import (
	"fmt"
	"sync"

	"github.com/vango-dev/hooks/internal/errors"
)

// Ref holds a mutable value that survives renders without triggering them.
//
// Ref[T] is safe for concurrent access.
type Ref[T any] struct {
	value T
	mu    sync.RWMutex
}

// UseRef declares a ref slot holding initial on the first render and
// returns the same *Ref on every later render.
//
// Example:
//
//	renders := hooks.UseRef(inst, 0)
//	renders.Set(renders.Current() + 1)
func UseRef[T any](inst *Instance, initial T) *Ref[T] {
	s, index, fresh := inst.claim(HookRef)
	if s == nil {
		return &Ref[T]{value: initial}
	}
	if fresh {
		r := &Ref[T]{value: initial}
		inst.mu.Lock()
		s.ref = r
		inst.mu.Unlock()
		return r
	}
	if r, ok := s.ref.(*Ref[T]); ok {
		return r
	}
	inst.fail(errors.New("H001").
		WithSite(inst.String(), index).
		WithDetailf("ref at index %d holds %T, declared as *Ref[%T]", index, s.ref, initial))
	return nil
}

// Current returns the current value of the ref.
func (r *Ref[T]) Current() T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.value
}

// Set sets the ref's value.
func (r *Ref[T]) Set(value T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.value = value
}

func (r *Ref[T]) describe() string {
	return fmt.Sprintf("%v", r.Current())
}
