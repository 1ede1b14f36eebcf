package hooks

import (
	"github.com/vango-dev/hooks/internal/errors"
)

// stateCell is the storage of a state slot.
type stateCell struct {
	// value is the latest stored value. Setters read and write it.
	value any

	// snapshot is the value handed out by the render in progress, taken
	// atomically for all cells at BeginRender.
	snapshot any

	// version increments on every changed write.
	version uint64
}

// Setter writes a state slot. It is safe for concurrent use and remains
// valid for the whole life of the instance; after teardown it is a no-op.
type Setter[T any] struct {
	inst  *Instance
	index int
}

// UseState declares a state slot holding initial on the first render.
// Later renders return the stored value and ignore initial.
//
// Example:
//
//	count, setCount := hooks.UseState(inst, 0)
//	setCount.Update(func(n int) int { return n + 1 })
func UseState[T any](inst *Instance, initial T) (T, *Setter[T]) {
	return useState(inst, func() T { return initial })
}

// UseStateFunc declares a state slot whose initial value is computed by
// init. init is invoked at most once for the lifetime of the slot.
func UseStateFunc[T any](inst *Instance, init func() T) (T, *Setter[T]) {
	return useState(inst, init)
}

func useState[T any](inst *Instance, init func() T) (T, *Setter[T]) {
	s, index, fresh := inst.claim(HookState)
	if s == nil {
		var zero T
		return zero, &Setter[T]{inst: inst, index: -1}
	}

	if fresh {
		v := init()
		inst.mu.Lock()
		s.state = &stateCell{value: v, snapshot: v}
		inst.mu.Unlock()
		return v, &Setter[T]{inst: inst, index: index}
	}

	inst.mu.Lock()
	v := s.state.snapshot
	inst.mu.Unlock()
	t, ok := v.(T)
	if !ok && v != nil {
		inst.fail(errors.New("H001").
			WithSite(inst.String(), index).
			WithDetailf("state at index %d holds %T, declared with a different type", index, v))
	}
	return t, &Setter[T]{inst: inst, index: index}
}

// Set stores v. If v is the same as the stored value under Same, nothing
// happens; otherwise the owning instance is marked for re-render.
func (s *Setter[T]) Set(v T) {
	s.inst.write(s.index, func(any) any { return v })
}

// Update stores fn(latest). fn receives the latest stored value, not the
// value captured by the render that created the closure.
func (s *Setter[T]) Update(fn func(prev T) T) {
	s.inst.write(s.index, func(prev any) any { return fn(as[T](prev)) })
}

// Get returns the latest stored value, which may be newer than the value
// the current render observed.
func (s *Setter[T]) Get() T {
	v, _ := s.inst.read(s.index)
	return as[T](v)
}

func as[T any](v any) T {
	t, _ := v.(T)
	return t
}

// read returns the latest value of a state slot.
func (inst *Instance) read(index int) (any, uint64) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	cell := inst.cell(index)
	if cell == nil {
		return nil, 0
	}
	return cell.value, cell.version
}

func (inst *Instance) cell(index int) *stateCell {
	if index < 0 || index >= len(inst.slots) || inst.slots[index].kind != HookState {
		return nil
	}
	return inst.slots[index].state
}

// write applies next to the latest value of a state slot. next runs without
// the lock held, so it may itself read state; a concurrent write between the
// read and the store causes a retry with the newer value.
func (inst *Instance) write(index int, next func(prev any) any) {
	for {
		if inst.disposed.Load() {
			inst.stale(index)
			return
		}

		prev, version := inst.read(index)
		v := next(prev)

		inst.mu.Lock()
		if inst.disposed.Load() {
			inst.mu.Unlock()
			inst.stale(index)
			return
		}
		cell := inst.cell(index)
		if cell == nil {
			inst.mu.Unlock()
			return
		}
		if cell.version != version {
			inst.mu.Unlock()
			continue
		}
		if Same(prev, v) {
			inst.mu.Unlock()
			return
		}
		cell.value = v
		cell.version++
		request := inst.markDirty()
		inst.mu.Unlock()

		inst.emit(EventStateChanged, index, nil)
		if request != nil {
			request()
		}
		return
	}
}
