package hooks

import (
	"context"
)

// FetchStatus is the lifecycle state of a UseFetch slot.
type FetchStatus int

const (
	FetchLoading FetchStatus = iota // Fetch in progress
	FetchReady                      // Data successfully loaded
	FetchError                      // Fetch failed
)

// String returns the status name.
func (s FetchStatus) String() string {
	switch s {
	case FetchLoading:
		return "loading"
	case FetchReady:
		return "ready"
	case FetchError:
		return "error"
	default:
		return "unknown"
	}
}

// Source is an asynchronous data source. It must honour ctx cancellation
// if it wants to stop early; its result is discarded once ctx is done.
type Source[T any] func(ctx context.Context) (T, error)

// FetchState is the value returned by UseFetch.
type FetchState[T any] struct {
	Status FetchStatus
	Data   T
	Err    error

	// seq identifies the fetch that produced this state.
	seq uint64
}

// Loading reports whether a fetch is in progress.
func (f FetchState[T]) Loading() bool {
	return f.Status == FetchLoading
}

// UseFetch loads data from src after the first commit, and again whenever
// deps change, storing the outcome in a state slot.
//
// Each run calls src in its own goroutine with a context derived from the
// instance context. The effect cleanup cancels that context, so a fetch
// superseded by a newer one, or outliving its instance, never writes.
//
// Example:
//
//	posts := hooks.UseFetch(inst, api.ListPosts, hooks.DepsOf())
//	if posts.Loading() {
//	    // render a spinner
//	}
func UseFetch[T any](inst *Instance, src Source[T], deps Deps) FetchState[T] {
	state, set := UseState(inst, FetchState[T]{Status: FetchLoading})
	seq := UseRef(inst, uint64(0))

	UseEffect(inst, func() Cleanup {
		n := seq.Current() + 1
		seq.Set(n)

		if n > 1 {
			set.Update(func(prev FetchState[T]) FetchState[T] {
				prev.Status = FetchLoading
				prev.Err = nil
				prev.seq = n
				return prev
			})
		}

		ctx, cancel := context.WithCancel(inst.Context())
		go func() {
			data, err := src(ctx)
			if ctx.Err() != nil {
				return
			}
			next := FetchState[T]{Status: FetchReady, Data: data, seq: n}
			if err != nil {
				next = FetchState[T]{Status: FetchError, Err: err, seq: n}
			}
			set.Update(func(prev FetchState[T]) FetchState[T] {
				if ctx.Err() != nil || prev.seq > n {
					return prev
				}
				return next
			})
		}()

		return Cleanup(cancel)
	}, deps)

	return state
}
