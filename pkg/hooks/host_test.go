package hooks

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync/atomic"
	"testing"
)

func TestHostMountRendersOnFlush(t *testing.T) {
	h := NewHost()
	defer h.Close()

	renders := 0
	inst := h.Mount("mount", func(inst *Instance) { renders++ })

	if renders != 0 {
		t.Fatal("Mount should only queue the first render")
	}
	if h.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", h.Pending())
	}

	if err := h.RunUntilIdle(context.Background()); err != nil {
		t.Fatalf("RunUntilIdle: %v", err)
	}
	if renders != 1 || inst.Generation() != 1 {
		t.Errorf("renders = %d, generation = %d, want 1/1", renders, inst.Generation())
	}
	if got, ok := h.Lookup(inst.ID()); !ok || got != inst {
		t.Error("Lookup should find the mounted instance")
	}
}

// Instance declares one state slot (initial 0) and one effect with deps
// [count]. Render 1 runs the effect; an external increment re-renders and
// runs cleanup A then the effect; teardown runs cleanup B. Nothing else.
func TestHostCounterScenario(t *testing.T) {
	ctx := context.Background()
	h := NewHost()

	log := &callLog{}
	var setCount *Setter[int]
	inst := h.Mount("counter", func(inst *Instance) {
		count, set := UseState(inst, 0)
		setCount = set
		UseEffect(inst, func() Cleanup {
			log.add(fmt.Sprintf("effect %d", count))
			return func() { log.add(fmt.Sprintf("cleanup %d", count)) }
		}, DepsOf(count))
	})

	if err := h.RunUntilIdle(ctx); err != nil {
		t.Fatalf("first render: %v", err)
	}
	setCount.Update(func(n int) int { return n + 1 })
	if err := h.RunUntilIdle(ctx); err != nil {
		t.Fatalf("second render: %v", err)
	}
	if err := h.Unmount(inst); err != nil {
		t.Fatalf("Unmount: %v", err)
	}

	want := []string{"effect 0", "cleanup 0", "effect 1", "cleanup 1"}
	if !equalStrings(log.calls, want) {
		t.Errorf("calls = %v, want %v", log.calls, want)
	}
	if inst.Generation() != 2 {
		t.Errorf("generation = %d, want 2", inst.Generation())
	}
}

func TestHostBatchProducesSinglePass(t *testing.T) {
	rec := NewRecorder()
	h := NewHost(WithHostObserver(rec), WithAutoFlush(true))
	defer h.Close()

	type seen struct{ a, b int }
	var renders []seen
	var setA, setB *Setter[int]
	h.Mount("batch", func(inst *Instance) {
		a, sa := UseState(inst, 0)
		b, sb := UseState(inst, 0)
		setA, setB = sa, sb
		renders = append(renders, seen{a, b})
	})

	h.Batch(func() {
		setA.Set(1)
		setB.Set(2)
	})

	want := []seen{{0, 0}, {1, 2}}
	if len(renders) != len(want) || renders[0] != want[0] || renders[1] != want[1] {
		t.Errorf("renders = %v, want %v", renders, want)
	}
	if n := len(rec.Filter(EventRenderCommitted)); n != 2 {
		t.Errorf("commits = %d, want 2", n)
	}
}

func TestHostAutoFlushWithoutBatchRendersPerWrite(t *testing.T) {
	h := NewHost(WithAutoFlush(true))
	defer h.Close()

	renders := 0
	var setA, setB *Setter[int]
	h.Mount("unbatched", func(inst *Instance) {
		_, setA = UseState(inst, 0)
		_, setB = UseState(inst, 0)
		renders++
	})

	setA.Set(1)
	setB.Set(2)

	if renders != 3 {
		t.Errorf("renders = %d, want 3", renders)
	}
}

func TestHostDispatchBatchesHandlerWrites(t *testing.T) {
	h := NewHost()
	defer h.Close()

	renders := 0
	var setName *Setter[string]
	var setAge *Setter[int]
	inst := h.Mount("profile", func(inst *Instance) {
		_, setName = UseState(inst, "John")
		_, setAge = UseState(inst, 30)
		renders++
	})
	if err := h.RunUntilIdle(context.Background()); err != nil {
		t.Fatal(err)
	}

	err := h.Dispatch(context.Background(), inst, func() {
		setName.Set("Jane")
		setAge.Update(func(n int) int { return n + 1 })
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if renders != 2 {
		t.Errorf("renders = %d, want 2", renders)
	}
}

func TestHostEffectWritesRunAfterCurrentPass(t *testing.T) {
	rec := NewRecorder()
	h := NewHost(WithHostObserver(rec))
	defer h.Close()

	h.Mount("loader", func(inst *Instance) {
		loaded, setLoaded := UseState(inst, false)
		UseEffect(inst, func() Cleanup {
			setLoaded.Set(true)
			return nil
		}, DepsOf())
		_ = loaded
	})

	if err := h.RunUntilIdle(context.Background()); err != nil {
		t.Fatal(err)
	}

	got := rec.Transcript(EventRenderStarted, EventEffectRun, EventStateChanged, EventCommitFinished)
	want := []string{
		"loader render_started gen=0",
		"loader effect_run slot=1 gen=1",
		"loader state_changed slot=0 gen=1",
		"loader commit_finished gen=1",
		"loader render_started gen=1",
		"loader commit_finished gen=2",
	}
	if !equalStrings(got, want) {
		t.Errorf("transcript = %v\nwant         %v", got, want)
	}
}

// An effect without a dependency list that always sets a strictly
// increasing value loops forever by construction. The host must run it one
// complete pass at a time, without re-entering or dropping renders.
func TestHostSelfSchedulingEffectNeverReenters(t *testing.T) {
	rec := NewRecorder()
	h := NewHost(WithHostObserver(rec))
	defer h.Close()

	depth := 0
	maxDepth := 0
	var seen []int
	inst := h.Mount("ticker", func(inst *Instance) {
		n, setN := UseState(inst, 0)
		seen = append(seen, n)
		UseEffect(inst, func() Cleanup {
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
			setN.Update(func(v int) int { return v + 1 })
			// A nested flush request is absorbed by the running loop.
			_ = h.RunUntilIdle(context.Background())
			depth--
			return nil
		}, Always)
	})

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		ran, err := h.Step(ctx)
		if err != nil || !ran {
			t.Fatalf("step %d: ran=%v err=%v", i, ran, err)
		}
		if h.Pending() != 1 {
			t.Fatalf("step %d: Pending() = %d, want 1", i, h.Pending())
		}
	}

	if !equalInts(seen, []int{0, 1, 2, 3, 4}) {
		t.Errorf("rendered values = %v, want [0 1 2 3 4]", seen)
	}
	if maxDepth != 1 {
		t.Errorf("max effect nesting = %d, want 1", maxDepth)
	}
	if inst.Generation() != 5 {
		t.Errorf("generation = %d, want 5", inst.Generation())
	}

	// Every pass finishes before the next begins.
	events := rec.Filter(EventRenderStarted, EventCommitFinished)
	for i, e := range events {
		want := EventRenderStarted
		if i%2 == 1 {
			want = EventCommitFinished
		}
		if e.Kind != want {
			t.Fatalf("event %d = %s, want %s", i, e.Kind, want)
		}
	}
}

func TestHostPassBudget(t *testing.T) {
	h := NewHost(WithMaxPasses(3))
	defer h.Close()

	h.Mount("runaway", func(inst *Instance) {
		_, set := UseState(inst, 0)
		UseEffect(inst, func() Cleanup {
			set.Update(func(v int) int { return v + 1 })
			return nil
		}, nil)
	})

	err := h.RunUntilIdle(context.Background())
	if !stderrors.Is(err, ErrPassBudgetExceeded) {
		t.Fatalf("RunUntilIdle() = %v, want ErrPassBudgetExceeded", err)
	}
	if h.Pending() != 1 {
		t.Errorf("Pending() = %d, want remaining work to stay queued", h.Pending())
	}
}

func TestHostRenderPanicKeepsCommittedState(t *testing.T) {
	h := NewHost()
	defer h.Close()

	fail := false
	runs := 0
	var set *Setter[int]
	inst := h.Mount("fragile", func(inst *Instance) {
		n, s := UseState(inst, 0)
		set = s
		if fail {
			panic("render exploded")
		}
		UseEffect(inst, func() Cleanup {
			runs++
			return nil
		}, DepsOf(n))
	})
	ctx := context.Background()
	if err := h.RunUntilIdle(ctx); err != nil {
		t.Fatal(err)
	}

	fail = true
	set.Set(1)
	err := h.RunUntilIdle(ctx)
	if !stderrors.Is(err, ErrRenderFailed) {
		t.Fatalf("RunUntilIdle() = %v, want ErrRenderFailed", err)
	}
	if inst.Generation() != 1 || runs != 1 {
		t.Errorf("generation = %d, runs = %d, want 1/1", inst.Generation(), runs)
	}

	fail = false
	if err := h.Render(ctx, inst); err != nil {
		t.Fatal(err)
	}
	if inst.Generation() != 2 || runs != 2 {
		t.Errorf("generation = %d, runs = %d, want 2/2", inst.Generation(), runs)
	}
}

func TestHostOrderingViolationSurfaces(t *testing.T) {
	h := NewHost()
	defer h.Close()

	flip := false
	inst := h.Mount("conditional", func(inst *Instance) {
		if !flip {
			UseState(inst, 0)
		}
		UseEffect(inst, func() Cleanup { return nil }, nil)
	})
	ctx := context.Background()
	if err := h.RunUntilIdle(ctx); err != nil {
		t.Fatal(err)
	}

	flip = true
	err := h.Render(ctx, inst)
	if !stderrors.Is(err, ErrOrderingViolation) {
		t.Fatalf("Render() = %v, want ErrOrderingViolation", err)
	}
}

func TestHostUnmountDropsQueuedRender(t *testing.T) {
	h := NewHost()

	renders := 0
	inst := h.Mount("dropped", func(inst *Instance) { renders++ })
	if err := h.Unmount(inst); err != nil {
		t.Fatal(err)
	}
	if err := h.RunUntilIdle(context.Background()); err != nil {
		t.Fatal(err)
	}

	if renders != 0 {
		t.Errorf("renders = %d, want 0", renders)
	}
	if len(h.Instances()) != 0 {
		t.Errorf("Instances() = %d, want 0", len(h.Instances()))
	}

	// Dispatch against a torn-down instance is dropped silently.
	called := false
	if err := h.Dispatch(context.Background(), inst, func() { called = true }); err != nil {
		t.Errorf("Dispatch() = %v, want nil", err)
	}
	if called {
		t.Error("handler must not run for a torn-down instance")
	}
}

func TestHostCloseUnmountsInReverseOrder(t *testing.T) {
	h := NewHost()

	log := &callLog{}
	for _, name := range []string{"first", "second", "third"} {
		name := name
		h.Mount(name, func(inst *Instance) {
			OnUnmount(inst, func() { log.add(name) })
		})
	}
	if err := h.RunUntilIdle(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !equalStrings(log.calls, []string{"third", "second", "first"}) {
		t.Errorf("unmount order = %v, want [third second first]", log.calls)
	}
}

func TestHostStepHonoursContext(t *testing.T) {
	h := NewHost()
	defer h.Close()
	h.Mount("ctx", func(inst *Instance) {})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran, err := h.Step(ctx)
	if ran || !stderrors.Is(err, context.Canceled) {
		t.Errorf("Step() = %v, %v; want false, context.Canceled", ran, err)
	}
	if h.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", h.Pending())
	}
}

func TestHostWakeSignalsQueuedWork(t *testing.T) {
	h := NewHost()
	defer h.Close()

	h.Mount("wake", func(inst *Instance) {})

	select {
	case <-h.Wake():
	default:
		t.Error("Wake() should be signalled after Mount")
	}
}

func TestHostAddObserverSeesMountedInstances(t *testing.T) {
	h := NewHost()
	inst := h.Mount("late", func(inst *Instance) { UseState(inst, 0) })

	rec := NewRecorder()
	h.AddObserver(rec)

	if err := h.RunUntilIdle(context.Background()); err != nil {
		t.Fatalf("RunUntilIdle: %v", err)
	}
	if err := h.Unmount(inst); err != nil {
		t.Fatalf("Unmount: %v", err)
	}

	want := []string{
		"late render_started gen=0",
		"late render_committed gen=1",
		"late commit_finished gen=1",
		"late teardown gen=1",
	}
	if got := rec.Transcript(); !equalStrings(got, want) {
		t.Errorf("transcript = %v, want %v", got, want)
	}
}

func TestHostUnmountFromEffectDefersTeardown(t *testing.T) {
	rec := NewRecorder()
	h := NewHost(WithHostObserver(rec))
	log := &callLog{}

	var inst *Instance
	inst = h.Mount("self", func(i *Instance) {
		UseEffect(i, func() Cleanup {
			log.add("effect")
			if err := h.Unmount(inst); err != nil {
				t.Errorf("Unmount: %v", err)
			}
			if inst.IsDisposed() {
				t.Error("instance torn down inside its own pass")
			}
			return func() { log.add("cleanup") }
		}, DepsOf())
		UseEffect(i, func() Cleanup {
			log.add("skipped")
			return nil
		}, DepsOf())
	})

	if err := h.RunUntilIdle(context.Background()); err != nil {
		t.Fatalf("RunUntilIdle: %v", err)
	}

	if want := []string{"effect", "cleanup"}; !equalStrings(log.calls, want) {
		t.Errorf("calls = %v, want %v", log.calls, want)
	}
	if !inst.IsDisposed() {
		t.Error("instance should be disposed once the pass ends")
	}
	want := []string{
		"self effect_run slot=0 gen=1",
		"self cleanup_run slot=0 gen=1",
		"self teardown gen=1",
	}
	if got := rec.Transcript(EventEffectRun, EventCleanupRun, EventTeardown); !equalStrings(got, want) {
		t.Errorf("transcript = %v, want %v", got, want)
	}
}

func TestHostUnmountDuringPassFromAnotherGoroutine(t *testing.T) {
	tests := []struct {
		name    string
		unmount func(h *Host, inst *Instance) error
	}{
		{"Unmount", func(h *Host, inst *Instance) error { return h.Unmount(inst) }},
		{"Close", func(h *Host, _ *Instance) error { return h.Close() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHost()
			entered := make(chan struct{})
			release := make(chan struct{})
			var cleanups atomic.Int32

			inst := h.Mount("slow", func(i *Instance) {
				UseEffect(i, func() Cleanup {
					close(entered)
					<-release
					return func() { cleanups.Add(1) }
				}, DepsOf())
			})

			done := make(chan error, 1)
			go func() { done <- h.RunUntilIdle(context.Background()) }()

			<-entered
			if err := tt.unmount(h, inst); err != nil {
				t.Fatalf("%s: %v", tt.name, err)
			}
			if inst.IsDisposed() {
				t.Error("teardown ran while the effect body was still running")
			}
			close(release)

			if err := <-done; err != nil {
				t.Fatalf("RunUntilIdle: %v", err)
			}
			if n := cleanups.Load(); n != 1 {
				t.Errorf("cleanups = %d, want 1", n)
			}
			if !inst.IsDisposed() {
				t.Error("instance should be disposed after the pass")
			}
			if len(h.Instances()) != 0 {
				t.Errorf("Instances() = %d, want 0", len(h.Instances()))
			}
		})
	}
}
